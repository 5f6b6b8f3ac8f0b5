// Package cmd defines and implements the CLI commands for the
// policyharvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/config"
	"github.com/bredec/policy-harvester/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policyharvester",
		Short: "Ingests institutional web content into a versioned policy corpus.",
		Long: `policyharvester traverses a restricted web domain following a priority
heuristic, acquires raw content from pages and linked documents (including
scanned PDFs), and materializes policy-bearing documents into a versioned,
deduplicated output corpus keyed by title.`,

		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			path := cfgFile
			if path == "" {
				if _, err := os.Stat("policyharvester.yaml"); err == nil {
					path = "policyharvester.yaml"
				}
			}
			var err error
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger, err = logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./policyharvester.yaml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newMaterializeCmd())
	cmd.AddCommand(newResetCmd())

	return cmd
}

// Execute is the main entry point. Setup failures exit non-zero; a failed
// single URL inside a run never reaches this path.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
