package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/wire"
)

// WatchCmd returns the watch command, the engine's daemon mode.
func WatchCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the monitoring loop",
		Long: `Run the continuous monitoring loop: poll dead-letter queues, start
investigation sessions for queues with messages, and supervise running
sessions until completion or timeout.

The loop first recovers any sessions persisted by a previous run, then
ticks every check_interval. Stop it with Ctrl-C or SIGTERM; in-flight
tmux sessions keep running and are re-attached on the next start.

Examples:
  dlqwatch watch           # Run until interrupted
  dlqwatch watch --once    # Run a single poll/admit/reap cycle and exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer wire.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			orchestrator := wire.Orchestrator()
			if once {
				if err := orchestrator.RunOnce(ctx); err != nil {
					return fmt.Errorf("cycle failed: %w", err)
				}
				return nil
			}
			return orchestrator.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run one cycle and exit (for cron or debugging)")

	return cmd
}
