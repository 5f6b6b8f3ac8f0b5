package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bredec/policy-harvester/internal/state"
)

// newResetCmd creates and configures the 'reset' subcommand. A completed
// crawl is never auto-cleared; starting over requires this explicit reset.
func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clears persisted crawl state",

		RunE: func(_ *cobra.Command, _ []string) error {
			states, err := state.New(cfg.Store.StateDir, logger)
			if err != nil {
				return fmt.Errorf("open state store: %w", err)
			}
			if err := states.Clear(); err != nil {
				return fmt.Errorf("clear crawl state: %w", err)
			}
			logger.Info("Crawl state cleared")
			return nil
		},
	}
}
