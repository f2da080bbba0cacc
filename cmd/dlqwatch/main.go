package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/cli"
	"github.com/example/dlqwatch/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "dlqwatch",
		Short:   "dlqwatch - dead-letter queue investigation engine",
		Version: version.String(),
		Long: `dlqwatch monitors dead-letter queues and launches supervised
investigation sessions when messages appear. Each investigation runs an
agent CLI inside a detached tmux session; the engine enforces cooldowns,
a concurrency ceiling, and one session per queue at a time.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.WatchCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.SessionCmd())
	rootCmd.AddCommand(cli.TriggerCmd())
	rootCmd.AddCommand(cli.PurgeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
