package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/config"
	"github.com/example/dlqwatch/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the dlqwatch database and config",
		Long: `Initialize the dlqwatch database at ~/.dlqwatch/dlqwatch.db with the
required schema, and write a default config.yaml if none exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := db.GetDBPath()
			if err != nil {
				return fmt.Errorf("failed to get database path: %w", err)
			}

			fmt.Printf("Initializing dlqwatch database at %s\n", dbPath)
			if err := db.InitSchema(); err != nil {
				return fmt.Errorf("failed to initialize schema: %w", err)
			}
			fmt.Println("✓ Database initialized successfully")

			cfgPath, err := config.DefaultPath()
			if err != nil {
				return fmt.Errorf("failed to get config path: %w", err)
			}
			if _, err := os.Stat(cfgPath); err == nil {
				fmt.Printf("✓ Config already exists at %s\n", cfgPath)
			} else {
				if err := config.Save(cfgPath, config.Default()); err != nil {
					return fmt.Errorf("failed to write default config: %w", err)
				}
				fmt.Printf("✓ Default config written to %s\n", cfgPath)
			}

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Printf("  edit %s (set aws.region and monitor.target_queues)\n", cfgPath)
			fmt.Println("  dlqwatch doctor")
			fmt.Println("  dlqwatch watch")
			return nil
		},
	}
}
