// Package tui is gemchat's interactive terminal interface. It renders the
// snapshots published by the session orchestrator and forwards user intents
// back to it; it holds no conversation state of its own.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gemchat/internal/logger"
	"gemchat/pkg/chattypes"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultHeaderTitle is shown when no session is active.
const DefaultHeaderTitle = "Gemini Chat"

// ChatService is the orchestrator surface the TUI needs.
type ChatService interface {
	Snapshot() chattypes.Snapshot
	CreateSession() string
	SelectSession(id string)
	DeleteSession(id string)
	Send(ctx context.Context, text string) error
	Subscribe(fn func(chattypes.Snapshot))
}

// SnapshotMsg carries a new orchestrator snapshot into the update loop.
type SnapshotMsg struct {
	Snapshot chattypes.Snapshot
}

// sendDoneMsg reports the end of a Send issued by the TUI.
type sendDoneMsg struct {
	err error
}

// Options configures the chat screen.
type Options struct {
	Provider string
	Model    string
	// Copy replaces the platform clipboard (tests).
	Copy func(string) error
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx     context.Context
	service ChatService
	opts    Options
	snap    chattypes.Snapshot

	keys     KeyMap
	styles   Styles
	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	width  int
	height int
	status string
	err    error
}

// New creates the chat screen for service.
func New(ctx context.Context, service ChatService, opts Options) Model {
	if opts.Copy == nil {
		opts.Copy = writeToClipboard
	}

	input := textarea.New()
	input.Placeholder = "Message Gemini..."
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(3)
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:      ctx,
		service:  service,
		opts:     opts,
		snap:     service.Snapshot(),
		keys:     DefaultKeyMap(),
		styles:   DefaultStyles(),
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		help:     help.New(),
		width:    80 + sidebarWidth,
		height:   30,
	}
	m.layout()
	m.refreshViewport()
	return m
}

// Run starts the chat screen on the alternate screen and blocks until the user quits.
func Run(ctx context.Context, service ChatService, opts Options) error {
	program := tea.NewProgram(New(ctx, service, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	// Intents issued from Update notify synchronously, so delivery must not
	// wait on the update loop. applySnapshot drops reordered versions.
	service.Subscribe(func(snap chattypes.Snapshot) {
		go program.Send(SnapshotMsg{Snapshot: snap})
	})

	_, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat screen failed: %w", err)
	}
	return nil
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.refreshViewport()
		return m, nil

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, nil

	case sendDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			logger.Debug("Send rejected", "error", msg.err)
		}
		m.applySnapshot(m.service.Snapshot())
		return m, nil

	case spinner.TickMsg:
		if !m.snap.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshViewport()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status, m.err = "", nil

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.NewChat):
		m.service.CreateSession()
		m.applySnapshot(m.service.Snapshot())
		return m, nil

	case key.Matches(msg, m.keys.PrevSession):
		m.selectRelative(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextSession):
		m.selectRelative(1)
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if m.snap.ActiveID != "" {
			m.service.DeleteSession(m.snap.ActiveID)
			m.applySnapshot(m.service.Snapshot())
		}
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		m.copyLastReply()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.snap.Busy {
			return m, nil
		}
		m.input.Reset()
		return m, m.send(text)
	}

	if i := m.keys.quickActionIndex(msg); i >= 0 {
		if !m.showQuickActions() || m.snap.Busy {
			return m, nil
		}
		return m, m.send(QuickActions[i].Prompt)
	}

	if m.snap.Busy {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send runs the turn off the update loop; progress arrives as SnapshotMsgs.
func (m *Model) send(text string) tea.Cmd {
	service, ctx := m.service, m.ctx
	// Mark busy locally so a second Enter is ignored before the first snapshot arrives.
	m.snap.Busy = true
	m.input.Blur()
	return tea.Batch(
		func() tea.Msg {
			return sendDoneMsg{err: service.Send(ctx, text)}
		},
		m.spinner.Tick,
	)
}

func (m *Model) selectRelative(delta int) {
	sessions := m.snap.Sessions
	if len(sessions) == 0 {
		return
	}
	idx := m.snap.IndexOf(m.snap.ActiveID)
	switch {
	case idx < 0 && delta > 0:
		idx = 0
	case idx < 0:
		idx = len(sessions) - 1
	default:
		idx = (idx + delta + len(sessions)) % len(sessions)
	}
	m.service.SelectSession(sessions[idx].ID)
	m.applySnapshot(m.service.Snapshot())
}

func (m *Model) copyLastReply() {
	session, ok := m.snap.ActiveSession()
	if !ok {
		m.status = "Nothing to copy"
		return
	}
	reply, ok := session.LastAssistantMessage()
	if !ok || reply.Content == "" {
		m.status = "Nothing to copy"
		return
	}
	if err := m.opts.Copy(reply.Content); err != nil {
		m.err = fmt.Errorf("copy failed: %w", err)
		return
	}
	m.status = fmt.Sprintf("Copied %d characters to clipboard", len([]rune(reply.Content)))
}

// applySnapshot keeps the newest snapshot; observers may deliver them out of order.
func (m *Model) applySnapshot(snap chattypes.Snapshot) {
	if snap.Version < m.snap.Version {
		return
	}
	m.snap = snap
	if snap.Busy {
		m.input.Blur()
	} else {
		m.input.Focus()
	}
	m.refreshViewport()
}

func (m Model) showQuickActions() bool {
	session, ok := m.snap.ActiveSession()
	return !ok || len(session.Messages) == 0
}

func (m *Model) layout() {
	mainWidth := m.width - sidebarWidth - 3
	if mainWidth < 20 {
		mainWidth = 20
	}
	m.input.SetWidth(mainWidth - 2)
	m.help.Width = mainWidth

	// header (2) + input (5) + status (1) + help (1)
	vpHeight := m.height - 9
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = mainWidth
	m.viewport.Height = vpHeight
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderConversation(m.viewport.Width))
	m.viewport.GotoBottom()
}

// View renders the screen.
func (m Model) View() string {
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.styles.Input.Render(m.input.View()),
		m.renderStatus(),
		m.help.View(m.keys),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
}

func (m Model) renderHeader() string {
	title := DefaultHeaderTitle
	if session, ok := m.snap.ActiveSession(); ok {
		title = session.Title
	}
	meta := ""
	if m.opts.Provider != "" {
		meta = m.styles.HeaderMeta.Render(fmt.Sprintf("  %s · %s", m.opts.Provider, m.opts.Model))
	}
	return m.styles.Header.Width(m.viewport.Width).Render(title + meta)
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(m.styles.SidebarTitle.Render("Chats"))
	b.WriteString("\n")

	if len(m.snap.Sessions) == 0 {
		b.WriteString(m.styles.SessionItem.Render("No chats yet"))
	}
	for _, session := range m.snap.Sessions {
		label := truncate(session.Title, sidebarWidth-4)
		if session.ID == m.snap.ActiveID {
			b.WriteString(m.styles.SessionActive.Render("▸ " + label))
		} else {
			b.WriteString(m.styles.SessionItem.Render("  " + label))
		}
		b.WriteString("\n")
	}

	height := m.height
	if height < 1 {
		height = 1
	}
	return m.styles.Sidebar.Height(height).Render(b.String())
}

func (m Model) renderConversation(width int) string {
	if m.showQuickActions() {
		return m.renderEmptyChat()
	}
	session, _ := m.snap.ActiveSession()

	contentStyle := m.styles.Content.Width(width)
	var b strings.Builder
	for i, msg := range session.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		label := m.styles.UserLabel.Render(msg.Role.DisplayName())
		if msg.Role == chattypes.RoleAssistant {
			label = m.styles.AssistantLabel.Render(msg.Role.DisplayName())
		}
		b.WriteString(label + " " + m.styles.Timestamp.Render(msg.Timestamp.Time().Format("15:04")))
		b.WriteString("\n")

		content := msg.Content
		if msg.IsStreaming {
			if content == "" {
				content = m.spinner.View() + " Thinking..."
			} else {
				content += " " + m.spinner.View()
			}
		}
		b.WriteString(contentStyle.Render(content))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderEmptyChat() string {
	var b strings.Builder
	b.WriteString(m.styles.Empty.Render("How can I help you today?"))
	b.WriteString("\n")
	for i, action := range QuickActions {
		b.WriteString(m.styles.QuickTitle.Render(fmt.Sprintf("F%d  %s", i+1, action.Title)))
		b.WriteString("\n")
		b.WriteString(m.styles.QuickPrompt.Render(truncate(action.Prompt, m.viewport.Width-6)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderStatus() string {
	switch {
	case m.err != nil:
		return m.styles.Error.Render(m.err.Error())
	case m.snap.Busy:
		return m.styles.Status.Render(m.spinner.View() + " Gemini is typing...")
	case m.status != "":
		return m.styles.Status.Render(m.status)
	default:
		return m.styles.Status.Render(fmt.Sprintf("%d chats · clipboard: %s", len(m.snap.Sessions), clipboardMethod))
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if max < 4 || len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
