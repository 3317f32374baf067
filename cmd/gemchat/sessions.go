package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gemchat/internal/output"
	"gemchat/internal/services"

	"github.com/spf13/cobra"
)

func (c *cli) newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage stored chat sessions",
		Long:    `List, inspect, create, delete and export stored chat sessions. Sessions can be named by id or a unique id prefix.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(func(a *app) error {
				return listSessions(newPrinter(cmd.OutOrStdout()), a)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app) error {
				return exportSession(cmd.OutOrStdout(), a, args[0], services.FormatMarkdown)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Create an empty session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(func(a *app) error {
				newPrinter(cmd.OutOrStdout()).Println(a.chat.CreateSession())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app) error {
				session, err := a.chat.FindSession(args[0])
				if err != nil {
					return err
				}
				a.chat.DeleteSession(session.ID)
				newPrinter(cmd.OutOrStdout()).Success(fmt.Sprintf("Deleted %s (%s)", session.ID, session.Title))
				return nil
			})
		},
	})

	var format string
	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a session",
		Long:  fmt.Sprintf("Export a session in one of these formats: %s.", strings.Join(services.ExportFormats, ", ")),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(func(a *app) error {
				return exportSession(cmd.OutOrStdout(), a, args[0], format)
			})
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", services.FormatMarkdown, "Export format (markdown|json|yaml)")
	cmd.AddCommand(exportCmd)

	return cmd
}

// withApp opens the store without a model client; session management never sends.
func (c *cli) withApp(fn func(a *app) error) error {
	a, err := openApp(c.cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func listSessions(printer *output.Printer, a *app) error {
	snap := a.chat.Snapshot()
	if len(snap.Sessions) == 0 {
		printer.Info("No sessions")
		return nil
	}

	// Columns are aligned first so header styling cannot skew the widths.
	var table strings.Builder
	w := tabwriter.NewWriter(&table, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
	for _, session := range snap.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			session.ID,
			session.Title,
			len(session.Messages),
			session.UpdatedAt.Time().Local().Format(time.DateTime))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	header, rows, _ := strings.Cut(table.String(), "\n")
	printer.Muted(header)
	printer.Print(rows)
	return nil
}

func exportSession(out io.Writer, a *app, idOrPrefix, format string) error {
	session, err := a.chat.FindSession(idOrPrefix)
	if err != nil {
		return err
	}
	text, err := services.NewExportService(time.Local).Export(session, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, text)
	return err
}
