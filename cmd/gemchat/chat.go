package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"gemchat/internal/config"
	"gemchat/internal/logger"
	"gemchat/internal/services"
	"gemchat/internal/tui"
	"gemchat/pkg/chattypes"

	"github.com/spf13/cobra"
)

func (c *cli) newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat screen",
		Long:  `Start the full-screen chat interface. This is also what running gemchat without a command does.`,
		Args:  cobra.NoArgs,
		RunE:  c.runChat,
	}
}

func (c *cli) runChat(cmd *cobra.Command, _ []string) error {
	client := mustModelClient(c.cfg)
	quietLogs(c.cfg)

	a, err := openApp(c.cfg, client)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, a.chat, tui.Options{
		Provider: client.GetProviderName(),
		Model:    client.GetModelName(),
	})
}

func (c *cli) newAskCmd() *cobra.Command {
	var newSession bool
	cmd := &cobra.Command{
		Use:   "ask <text...>",
		Short: "Send one message and stream the reply",
		Long: `Send a message into the active session (the newest one, or a new session
when there are none) and stream the reply to stdout.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return services.ErrEmptyMessage
			}
			return c.runAsk(cmd.Context(), cmd.OutOrStdout(), text, newSession)
		},
	}
	cmd.Flags().BoolVar(&newSession, "new", false, "Start a new session for this message")
	return cmd
}

func (c *cli) runAsk(ctx context.Context, out io.Writer, text string, newSession bool) error {
	return ask(ctx, c.cfg, mustModelClient(c.cfg), out, text, newSession)
}

// ask runs one turn and prints the reply as it streams in.
func ask(ctx context.Context, cfg *config.Config, client chattypes.ModelClient, out io.Writer, text string, newSession bool) error {
	a, err := openApp(cfg, client)
	if err != nil {
		return err
	}
	defer a.Close()

	if newSession {
		a.chat.CreateSession()
	}

	printer := &replyPrinter{out: out}
	a.chat.Subscribe(printer.observe)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = a.chat.Send(ctx, text)
	printer.finish()
	if err != nil {
		return err
	}
	logger.Debug("Ask completed", "session", a.chat.Snapshot().ActiveID)
	return nil
}

// replyPrinter writes the growing assistant reply of the current turn to out.
type replyPrinter struct {
	mu        sync.Mutex
	out       io.Writer
	messageID string
	printed   string
}

func (p *replyPrinter) observe(snap chattypes.Snapshot) {
	session, ok := snap.ActiveSession()
	if !ok {
		return
	}
	reply, ok := session.LastMessage()
	if !ok || reply.Role != chattypes.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if reply.ID != p.messageID {
		p.messageID, p.printed = reply.ID, ""
	}
	switch {
	case strings.HasPrefix(reply.Content, p.printed):
		fmt.Fprint(p.out, reply.Content[len(p.printed):])
	default:
		// The reply was replaced (the apology after a failure).
		fmt.Fprint(p.out, "\n"+reply.Content)
	}
	p.printed = reply.Content
}

func (p *replyPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messageID != "" {
		fmt.Fprintln(p.out)
	}
}
