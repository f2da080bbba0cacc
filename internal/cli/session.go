package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/models"
	"github.com/example/dlqwatch/internal/ports/primary"
	"github.com/example/dlqwatch/internal/wire"
)

// SessionCmd returns the session command
func SessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect investigation sessions",
		Long:  `List investigation session history and show per-session details.`,
	}

	cmd.AddCommand(sessionListCmd())
	cmd.AddCommand(sessionShowCmd())
	cmd.AddCommand(sessionEventsCmd())

	return cmd
}

func sessionListCmd() *cobra.Command {
	var queue string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Long: `List investigation sessions, newest first.

Examples:
  dlqwatch session list
  dlqwatch session list --queue payments-dlq
  dlqwatch session list --status failed --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer wire.Close()

			sessions, err := wire.MonitorService().Sessions(cmd.Context(), primary.SessionFilters{
				QueueName: queue,
				Status:    status,
				Limit:     limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			now := time.Now()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tQUEUE\tSTATUS\tSTARTED\tDURATION\tDETAIL")
			fmt.Fprintln(w, "--\t-----\t------\t-------\t--------\t------")
			for _, s := range sessions {
				forcedMark := ""
				if s.Forced {
					forcedMark = " [forced]"
				}
				fmt.Fprintf(w, "%d\t%s%s\t%s\t%s\t%s\t%s\n",
					s.ID,
					s.QueueName, forcedMark,
					colorizeStatus(s.Status),
					s.StartedAt.Local().Format("2006-01-02 15:04"),
					s.Duration(now).Round(time.Second),
					truncate(s.Detail, 48))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&queue, "queue", "q", "", "Filter by queue name")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (triggered|running|completed|failed|timed_out)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to show")

	return cmd
}

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [queue-name]",
		Short: "Show the latest session for a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer wire.Close()

			sessions, err := wire.MonitorService().Sessions(cmd.Context(), primary.SessionFilters{
				QueueName: args[0],
				Limit:     1,
			})
			if err != nil {
				return fmt.Errorf("failed to load session: %w", err)
			}
			if len(sessions) == 0 {
				return fmt.Errorf("no sessions for queue %s", args[0])
			}

			s := sessions[0]
			fmt.Printf("Session:  %d\n", s.ID)
			fmt.Printf("Queue:    %s\n", s.QueueName)
			fmt.Printf("Status:   %s\n", colorizeStatus(s.Status))
			fmt.Printf("Forced:   %t\n", s.Forced)
			fmt.Printf("Started:  %s\n", s.StartedAt.Local().Format(time.RFC1123))
			if !s.EndedAt.IsZero() {
				fmt.Printf("Ended:    %s (%s)\n", s.EndedAt.Local().Format(time.RFC1123), s.Duration(time.Now()).Round(time.Second))
			}
			if !s.CooldownUntil.IsZero() {
				fmt.Printf("Cooldown: until %s\n", s.CooldownUntil.Local().Format(time.RFC1123))
			}
			if s.Handle != "" {
				fmt.Printf("Worker:   %s\n", s.Handle)
				if s.Status == models.StatusRunning {
					fmt.Printf("\nAttach with: tmux attach -t %s\n", s.Handle)
				}
			}
			if s.Detail != "" {
				fmt.Printf("Detail:   %s\n", s.Detail)
			}
			return nil
		},
	}
}

func sessionEventsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent lifecycle events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer wire.Close()

			events, err := wire.MonitorService().Events(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to load events: %w", err)
			}
			if len(events) == 0 {
				fmt.Println("No events recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tKIND\tQUEUE\tDETAIL")
			fmt.Fprintln(w, "----\t----\t-----\t------")
			for _, e := range events {
				detail := e.Detail
				if e.Kind == models.EventMessagesDetected {
					detail = fmt.Sprintf("%d messages", e.MessageCount)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					e.At.Local().Format("2006-01-02 15:04:05"),
					e.Kind,
					e.QueueName,
					truncate(detail, 60))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum events to show")

	return cmd
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
