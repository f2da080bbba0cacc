package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/models"
	"github.com/example/dlqwatch/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show all dead-letter queues and their latest sessions",
		Long: `Display every discovered dead-letter queue with its current message
count, the most recent investigation session, and any open cooldown
window. Queues in the target_queues allow-list are marked; others are
monitored but never auto-investigated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer wire.Close()

			report, err := wire.MonitorService().Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read queue status: %w", err)
			}
			fmt.Printf("Sessions: %d running (max %d)\n\n", report.Running, report.MaxConcurrent)
			if len(report.Queues) == 0 {
				fmt.Println("No dead-letter queues found.")
				fmt.Println("Check aws.queue_patterns in the config if queues were expected.")
				return nil
			}

			now := time.Now()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUEUE\tMESSAGES\tTARGETED\tLAST SESSION\tCOOLDOWN")
			fmt.Fprintln(w, "-----\t--------\t--------\t------------\t--------")
			for _, qs := range report.Queues {
				targeted := ""
				if qs.Targeted {
					targeted = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					qs.Snapshot.Name,
					formatCount(qs.Snapshot.MessageCount),
					targeted,
					formatLatest(qs.Latest),
					formatCooldown(qs.Latest, now))
			}
			w.Flush()
			return nil
		},
	}
}

func formatCount(count int) string {
	if count == 0 {
		return "0"
	}
	return color.New(color.FgHiRed).Sprintf("%d", count)
}

func formatLatest(s *models.Session) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%s %s", colorizeStatus(s.Status), s.StartedAt.Local().Format("2006-01-02 15:04"))
}

func formatCooldown(s *models.Session, now time.Time) string {
	if s == nil || s.Status.Active() || !now.Before(s.CooldownUntil) {
		return "-"
	}
	return s.CooldownUntil.Sub(now).Round(time.Second).String()
}

func colorizeStatus(status models.SessionStatus) string {
	switch status {
	case models.StatusCompleted:
		return color.New(color.FgGreen).Sprint(status)
	case models.StatusFailed:
		return color.New(color.FgRed).Sprint(status)
	case models.StatusTimedOut:
		return color.New(color.FgYellow).Sprint(status)
	case models.StatusRunning:
		return color.New(color.FgCyan).Sprint(status)
	default:
		return string(status)
	}
}
