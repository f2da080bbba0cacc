package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/wire"
)

// PurgeCmd returns the purge command
func PurgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge [queue-name]",
		Short: "Delete all messages from a dead-letter queue",
		Long: `Delete all messages from a dead-letter queue. This is an explicit
operator action - the engine never purges on its own, not even after a
successful investigation.

Purging is irreversible; the command asks for confirmation unless --yes
is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer wire.Close()
			queueName := args[0]

			if !yes {
				fmt.Printf("Permanently delete ALL messages from %s? [y/N] ", queueName)
				reader := bufio.NewReader(os.Stdin)
				answer, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			if err := wire.MonitorService().Purge(cmd.Context(), queueName); err != nil {
				return fmt.Errorf("failed to purge queue: %w", err)
			}

			fmt.Printf("✓ Purged %s\n", queueName)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
