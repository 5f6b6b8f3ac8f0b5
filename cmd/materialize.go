package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/capture"
	"github.com/bredec/policy-harvester/internal/materialize"
	"github.com/bredec/policy-harvester/internal/record"
)

// newMaterializeCmd creates and configures the 'materialize' subcommand.
func newMaterializeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "materialize",
		Short: "Builds the versioned policy corpus from the crawl log",
		Long: `Reads the crawl log, classifies each raw capture, and writes the
policy-bearing ones into the output corpus: one folder per policy title,
older captures of the same title superseded by newer ones.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			captures, err := capture.New(cfg.Store.RawDir, logger)
			if err != nil {
				return fmt.Errorf("open raw store: %w", err)
			}
			recorder, err := record.New(cfg.Store.LogPath)
			if err != nil {
				return fmt.Errorf("open crawl log: %w", err)
			}
			materializer, err := materialize.New(captures, buildClassifier(cfg), cfg.Store.CorpusDir, logger)
			if err != nil {
				return fmt.Errorf("open corpus: %w", err)
			}

			rows, err := recorder.Rows()
			if err != nil {
				return fmt.Errorf("read crawl log: %w", err)
			}

			stats := materializer.Run(cmd.Context(), rows)
			logger.Info("Materialization finished",
				zap.Int("materialized", stats.Materialized),
				zap.Int("skipped", stats.Skipped),
				zap.Int("failed", stats.Failed))
			return nil
		},
	}
}
