package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/wire"
)

// TriggerCmd returns the trigger command
func TriggerCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "trigger [queue-name]",
		Short: "Manually start an investigation session for a queue",
		Long: `Manually start an investigation session for a dead-letter queue,
regardless of the target_queues allow-list.

The same guards as automatic triggering apply: the queue must have
messages, must not have an active session, and must be out of cooldown.
--force bypasses the cooldown only.

Examples:
  dlqwatch trigger payments-dlq
  dlqwatch trigger payments-dlq --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer wire.Close()

			session, err := wire.MonitorService().Trigger(cmd.Context(), args[0], force)
			if err != nil {
				return fmt.Errorf("failed to trigger investigation: %w", err)
			}

			fmt.Printf("✓ Started session %d for %s\n", session.ID, session.QueueName)
			fmt.Printf("  Attach with: tmux attach -t %s\n", session.Handle)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Bypass the cooldown window")

	return cmd
}
