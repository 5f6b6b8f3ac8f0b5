package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/acquire"
	"github.com/bredec/policy-harvester/internal/capture"
	"github.com/bredec/policy-harvester/internal/crawl"
	"github.com/bredec/policy-harvester/internal/materialize"
)

// newCollectCmd creates and configures the 'collect' subcommand: a single
// URL acquired, classified, and materialized without touching crawl state.
func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect <url>",
		Short: "Acquires and materializes a single URL",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), args[0])
		},
	}
}

func runCollect(ctx context.Context, rawURL string) error {
	policy := crawl.NewURLPolicy(cfg.Crawl.AllowedDomains)

	renderer, err := acquire.NewChromedpRenderer(acquire.RendererConfig{
		Headless:   cfg.Browser.Headless,
		NavTimeout: time.Duration(cfg.Browser.NavTimeoutSec) * time.Second,
		UserAgent:  cfg.Crawl.UserAgent,
	}, logger)
	if err != nil {
		return fmt.Errorf("start browser session: %w", err)
	}
	defer func() {
		if cerr := renderer.Close(context.Background()); cerr != nil {
			logger.Warn("Failed to close browser session", zap.Error(cerr))
		}
	}()

	captures, err := capture.New(cfg.Store.RawDir, logger)
	if err != nil {
		return fmt.Errorf("open raw store: %w", err)
	}
	downloader, err := acquire.NewCollyDownloader(acquire.DownloaderConfig{
		UserAgent:      cfg.Crawl.UserAgent,
		RequestTimeout: cfg.RequestTimeout(),
	}, logger)
	if err != nil {
		return fmt.Errorf("init downloader: %w", err)
	}

	acquirer := acquire.New(policy, renderer, downloader, buildOCR(cfg), captures, logger)
	classifier := buildClassifier(cfg)

	result, err := acquirer.Acquire(ctx, rawURL, 0)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", rawURL, err)
	}
	logger.Info("Captured URL",
		zap.String("url", rawURL),
		zap.String("timestamp_id", result.Capture.TimestampID))

	materializer, err := materialize.New(captures, classifier, cfg.Store.CorpusDir, logger)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}

	written, err := materializer.MaterializeCapture(ctx, result.Capture.TimestampID, rawURL)
	if err != nil {
		return fmt.Errorf("materialize %s: %w", rawURL, err)
	}
	if !written {
		logger.Info("URL did not materialize as policy", zap.String("url", rawURL))
	}
	return nil
}
