package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/acquire"
	"github.com/bredec/policy-harvester/internal/capture"
	"github.com/bredec/policy-harvester/internal/classify"
	"github.com/bredec/policy-harvester/internal/config"
	"github.com/bredec/policy-harvester/internal/crawl"
	"github.com/bredec/policy-harvester/internal/ocr"
	"github.com/bredec/policy-harvester/internal/ops"
	"github.com/bredec/policy-harvester/internal/record"
	"github.com/bredec/policy-harvester/internal/state"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	var definiteOnly bool
	var noBootstrap bool

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs the resumable priority-driven traversal",
		Long: `Starts (or resumes) the crawl: pops URLs from the priority frontier,
acquires their content through the render/download/OCR fallback chain,
classifies each result, and appends outcomes to the crawl log. An interrupt
signal drains gracefully: the in-flight URL finishes, state is saved, and
the browser session is released.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			if definiteOnly {
				cfg.Crawl.DefiniteOnly = true
			}
			return runCrawl(cmd.Context(), cfg, !noBootstrap)
		},
	}

	cmd.Flags().BoolVar(&definiteOnly, "definite-only", false, "enqueue only definite-tier links")
	cmd.Flags().BoolVar(&noBootstrap, "no-bootstrap", false, "skip the manual-authentication pause")
	return cmd
}

func runCrawl(parent context.Context, cfg config.Config, bootstrap bool) error {
	if cfg.Crawl.StartURL == "" {
		return fmt.Errorf("crawl.start_url must be configured")
	}
	if len(cfg.Crawl.AllowedDomains) == 0 {
		return fmt.Errorf("crawl.allowed_domains must be configured")
	}

	ctx, stop := drainOnInterrupt(parent, logger)
	defer stop()

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

	scheduler, err := buildScheduler(cfg, renderer, bootstrap)
	if err != nil {
		return err
	}

	var opsServer *ops.Server
	if cfg.Ops.Enabled {
		opsServer = ops.NewServer(cfg.Ops.Port, logger)
		opsServer.Start()
		defer func() {
			if serr := opsServer.Shutdown(context.Background()); serr != nil {
				logger.Warn("Failed to stop ops listener", zap.Error(serr))
			}
		}()
	}

	if err := scheduler.Run(ctx); err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	logger.Info("Crawl finished", zap.String("phase", string(scheduler.Phase())))
	return nil
}

func buildScheduler(cfg config.Config, renderer acquire.Renderer, bootstrap bool) (*crawl.Scheduler, error) {
	policy := crawl.NewURLPolicy(cfg.Crawl.AllowedDomains)

	captures, err := capture.New(cfg.Store.RawDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open raw store: %w", err)
	}
	states, err := state.New(cfg.Store.StateDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	recorder, err := record.New(cfg.Store.LogPath)
	if err != nil {
		return nil, fmt.Errorf("open crawl log: %w", err)
	}

	downloader, err := acquire.NewCollyDownloader(acquire.DownloaderConfig{
		UserAgent:      cfg.Crawl.UserAgent,
		RequestTimeout: cfg.RequestTimeout(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init downloader: %w", err)
	}

	acquirer := acquire.New(policy, renderer, downloader, buildOCR(cfg), captures, logger)
	classifier := buildClassifier(cfg)

	return crawl.NewScheduler(
		crawl.SchedulerConfig{
			StartURL:           cfg.Crawl.StartURL,
			MaxDepth:           cfg.Crawl.MaxDepth,
			CheckpointInterval: cfg.Crawl.CheckpointInterval,
			DefiniteOnly:       cfg.Crawl.DefiniteOnly,
			RootFallbackLinks:  cfg.Crawl.RootFallbackLinks,
			Bootstrap:          bootstrap,
		},
		policy,
		acquirer,
		acquirer,
		classifier,
		states,
		recorder,
		crawl.NewStdinConfirmer(),
		logger,
	), nil
}

func buildClassifier(cfg config.Config) *classify.Classifier {
	client := classify.NewHTTPClient(classify.ClientConfig{
		Endpoint: cfg.Classifier.Endpoint,
		APIKey:   cfg.Classifier.APIKey,
		Model:    cfg.Classifier.Model,
		Timeout:  time.Duration(cfg.Classifier.TimeoutSeconds) * time.Second,
	})
	return classify.New(client, cfg.Classifier.MaxContentChars, cfg.Classifier.MaxLinks, logger)
}

func buildOCR(cfg config.Config) acquire.OCRConverter {
	if cfg.OCR.Endpoint == "" {
		return nil
	}
	return ocr.New(ocr.Config{
		Endpoint: cfg.OCR.Endpoint,
		APIKey:   cfg.OCR.APIKey,
		Model:    cfg.OCR.Model,
		Timeout:  time.Duration(cfg.OCR.TimeoutSeconds) * time.Second,
	}, logger)
}

// drainOnInterrupt cancels the returned context on the first interrupt so
// the scheduler drains on its own stack. Repeat signals while draining are
// logged and ignored; exit proceeds once.
func drainOnInterrupt(parent context.Context, logger *zap.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		first := true
		for range sigCh {
			if first {
				first = false
				logger.Info("Interrupt received, draining")
				cancel()
				continue
			}
			logger.Warn("Already draining, ignoring repeat signal")
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(sigCh)
		cancel()
	}
}
