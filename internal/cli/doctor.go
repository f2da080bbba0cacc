package cli

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/adapters/sqs"
	"github.com/example/dlqwatch/internal/config"
	"github.com/example/dlqwatch/internal/db"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool
	var skipAWS bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the dlqwatch environment",
		Long: `Environment health check for dlqwatch.

Validates:
- Configuration file loads and passes validation
- Database at ~/.dlqwatch/dlqwatch.db opens and has the schema
- tmux is installed (investigation workers run in tmux sessions)
- The worker command is on PATH
- AWS credentials can list queues (skippable)

Examples:
  dlqwatch doctor             # Run full health check
  dlqwatch doctor --skip-aws  # Offline check only
  dlqwatch doctor --quiet     # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, results := checkConfig()
			results = append(results, checkDatabase())
			results = append(results, checkBinary("tmux", "install tmux; workers run in detached tmux sessions"))
			if cfg != nil {
				results = append(results, checkBinary(cfg.Worker.Command, "worker.command must be on PATH"))
				if !skipAWS {
					results = append(results, checkAWS(cmd.Context(), cfg))
				}
			}

			hasErrors := false
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
				}
				if !quiet {
					fmt.Printf("%s %s\n", r.Status, r.Name)
					if r.Status != "✓" && r.Details != "" {
						fmt.Printf("    %s\n", r.Details)
					}
				}
			}

			if hasErrors {
				return fmt.Errorf("environment has issues")
			}
			if !quiet {
				fmt.Println()
				fmt.Println("Environment healthy.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Exit code only, no output")
	cmd.Flags().BoolVar(&skipAWS, "skip-aws", false, "Skip the AWS connectivity check")

	return cmd
}

func checkConfig() (*config.Config, []CheckResult) {
	cfg, err := config.LoadOrDefault()
	if err != nil {
		return nil, []CheckResult{{Name: "Configuration", Status: "✗", Details: err.Error()}}
	}
	if err := cfg.Validate(); err != nil {
		return nil, []CheckResult{{Name: "Configuration", Status: "✗", Details: err.Error()}}
	}
	if len(cfg.Monitor.TargetQueues) == 0 {
		return cfg, []CheckResult{{
			Name:    "Configuration",
			Status:  "⚠",
			Details: "monitor.target_queues is empty: queues are monitored but never auto-investigated",
		}}
	}
	return cfg, []CheckResult{{Name: "Configuration", Status: "✓"}}
}

func checkDatabase() CheckResult {
	database, err := db.GetDB()
	if err != nil {
		return CheckResult{Name: "Database", Status: "✗", Details: fmt.Sprintf("%v (run `dlqwatch init`)", err)}
	}
	var count int
	if err := database.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return CheckResult{Name: "Database", Status: "✗", Details: fmt.Sprintf("schema missing: %v (run `dlqwatch init`)", err)}
	}
	return CheckResult{Name: "Database", Status: "✓"}
}

func checkBinary(name, hint string) CheckResult {
	if _, err := exec.LookPath(name); err != nil {
		return CheckResult{Name: fmt.Sprintf("Binary: %s", name), Status: "✗", Details: hint}
	}
	return CheckResult{Name: fmt.Sprintf("Binary: %s", name), Status: "✓"}
}

func checkAWS(ctx context.Context, cfg *config.Config) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	backend, err := sqs.New(ctx, sqs.Config{
		Region:        cfg.AWS.Region,
		Profile:       cfg.AWS.Profile,
		Endpoint:      cfg.AWS.Endpoint,
		QueuePatterns: cfg.AWS.QueuePatterns,
		CallTimeout:   cfg.AWS.CallTimeout.Std(),
	}, zap.NewNop())
	if err != nil {
		return CheckResult{Name: "AWS access", Status: "✗", Details: err.Error()}
	}

	queues, err := backend.Discover(ctx)
	if err != nil {
		return CheckResult{Name: "AWS access", Status: "✗", Details: err.Error()}
	}
	if len(queues) == 0 {
		return CheckResult{
			Name:    "AWS access",
			Status:  "⚠",
			Details: fmt.Sprintf("no dead-letter queues matched patterns %v in %s", cfg.AWS.QueuePatterns, cfg.AWS.Region),
		}
	}
	return CheckResult{Name: "AWS access", Status: "✓"}
}
