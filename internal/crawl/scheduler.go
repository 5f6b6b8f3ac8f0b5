package crawl

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Phase is the scheduler lifecycle state.
type Phase string

// Scheduler lifecycle phases.
const (
	PhaseIdle              Phase = "idle"
	PhaseAwaitingBootstrap Phase = "awaiting_bootstrap"
	PhaseRunning           Phase = "running"
	PhaseDraining          Phase = "draining"
	PhaseCompleted         Phase = "completed"
)

// SchedulerConfig holds the traversal knobs.
type SchedulerConfig struct {
	StartURL           string
	MaxDepth           int
	CheckpointInterval int
	// DefiniteOnly suppresses enqueueing of probable-tier links.
	DefiniteOnly bool
	// RootFallbackLinks caps how many raw links are enqueued from the seed
	// page when the classifier finds none. Applies at depth 0 only.
	RootFallbackLinks int
	// Bootstrap enables the manual-authentication pause before crawling.
	Bootstrap bool
}

// Scheduler owns the priority frontier and drives the acquirer, classifier,
// state store, and recorder each iteration. It is single-threaded: one URL
// is in flight at a time because the browser session cannot be shared.
type Scheduler struct {
	cfg        SchedulerConfig
	policy     URLPolicy
	acquirer   Acquirer
	navigator  Navigator
	classifier Classifier
	states     StateStore
	recorder   Recorder
	confirmer  Confirmer
	logger     *zap.Logger

	frontier  *Frontier
	state     State
	phase     Phase
	processed int
}

// NewScheduler wires a Scheduler. navigator and confirmer may be nil when
// cfg.Bootstrap is false.
func NewScheduler(
	cfg SchedulerConfig,
	policy URLPolicy,
	acquirer Acquirer,
	navigator Navigator,
	classifier Classifier,
	states StateStore,
	recorder Recorder,
	confirmer Confirmer,
	logger *zap.Logger,
) *Scheduler {
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 5
	}
	if cfg.RootFallbackLinks <= 0 {
		cfg.RootFallbackLinks = 20
	}
	return &Scheduler{
		cfg:        cfg,
		policy:     policy,
		acquirer:   acquirer,
		navigator:  navigator,
		classifier: classifier,
		states:     states,
		recorder:   recorder,
		confirmer:  confirmer,
		logger:     logger,
		frontier:   NewFrontier(),
		state:      NewState(),
		phase:      PhaseIdle,
	}
}

// Phase reports the current lifecycle phase.
func (s *Scheduler) Phase() Phase {
	return s.phase
}

// Run executes the crawl until the frontier drains or the context is
// canceled. Cancellation is polled between iterations: the in-flight URL
// finishes, state is saved, and Run returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.bootstrap(ctx); err != nil {
		return err
	}

	if loaded, found := s.states.Load(); found {
		s.state = loaded
		s.frontier.Restore(loaded.Frontier)
		s.logger.Info("Resuming prior crawl state",
			zap.Int("visited", len(loaded.Visited)),
			zap.Int("queued", s.frontier.Len()))
	} else {
		s.frontier.Push(FrontierEntry{
			Priority: s.policy.Priority(s.cfg.StartURL, ""),
			URL:      s.cfg.StartURL,
			Depth:    0,
		})
	}

	s.phase = PhaseRunning
	for {
		if ctx.Err() != nil {
			s.phase = PhaseDraining
			s.logger.Info("Drain requested, saving state before exit")
			s.checkpoint()
			return nil
		}

		entry, ok := s.frontier.Pop()
		if !ok {
			s.phase = PhaseCompleted
			s.checkpoint()
			s.logger.Info("Frontier exhausted, crawl complete",
				zap.Int("visited", len(s.state.Visited)))
			return nil
		}

		// In-flight work is never interrupted by the drain signal; every
		// operation underneath carries its own timeout. The drain check at
		// the top of the loop is the only cancellation point.
		s.step(context.WithoutCancel(ctx), entry)
	}
}

// bootstrap opens the start URL in the browser session and blocks until the
// operator confirms any interactive authentication is done.
func (s *Scheduler) bootstrap(ctx context.Context) error {
	if !s.cfg.Bootstrap {
		return nil
	}
	s.phase = PhaseAwaitingBootstrap
	if err := s.navigator.Navigate(ctx, s.cfg.StartURL); err != nil {
		return fmt.Errorf("open start url: %w", err)
	}
	if err := s.confirmer.Confirm(ctx, "Complete any required login in the browser, then press Enter to start the crawl."); err != nil {
		return fmt.Errorf("await bootstrap confirmation: %w", err)
	}
	return nil
}

// step processes one dequeued frontier entry.
func (s *Scheduler) step(ctx context.Context, entry FrontierEntry) {
	norm := Normalize(entry.URL)
	if s.state.Visited[norm] {
		// Duplicate frontier entries are expected; dequeue is idempotent.
		return
	}
	if entry.Depth > s.cfg.MaxDepth {
		return
	}
	if !s.policy.IsAllowed(entry.URL, s.state.Visited) {
		// Explicitly excluded URLs join the visited set so they are not
		// re-evaluated from another referrer.
		s.state.Visited[norm] = true
		return
	}

	s.state.Visited[norm] = true
	s.state.LastURL = entry.URL
	s.state.LastDepth = entry.Depth
	TotalProcessed.Inc()

	s.logger.Info("Processing URL",
		zap.String("url", entry.URL),
		zap.Int("depth", entry.Depth),
		zap.Float64("priority", entry.Priority),
		zap.Int("queued", s.frontier.Len()))

	result, err := s.acquirer.Acquire(ctx, entry.URL, entry.Depth)
	if err != nil {
		TotalAcquireErrors.Inc()
		s.logger.Warn("Acquisition failed, skipping URL",
			zap.String("url", entry.URL), zap.Error(err))
		s.afterStep()
		return
	}

	row := LogRow{
		URL:             entry.URL,
		FilePath:        result.Capture.TimestampID + ".md",
		FoundLinksCount: len(result.Links),
		TimestampID:     result.Capture.TimestampID,
	}

	if s.policy.IsDocument(entry.URL) {
		verdict, cerr := s.classifier.ClassifyDocument(ctx, result.Markdown, entry.URL)
		if cerr != nil {
			s.logger.Warn("Document classification failed, treating as non-policy",
				zap.String("url", entry.URL), zap.Error(cerr))
		}
		row.Include = cerr == nil && verdict.ContainsPolicy
	} else {
		verdict, cerr := s.classifier.ClassifyPage(ctx, result.Markdown, entry.URL, result.Links)
		if cerr != nil {
			s.logger.Warn("Page classification failed, treating as non-policy",
				zap.String("url", entry.URL), zap.Error(cerr))
			verdict = PageVerdict{}
		}
		row.Include = verdict.Include
		row.DefiniteLinks = verdict.DefiniteLinks
		row.ProbableLinks = verdict.ProbableLinks
		s.enqueueFollowups(entry, result, verdict)
	}

	if err := s.recorder.Append(row); err != nil {
		// Losing a log row is reported but never stops the crawl.
		s.logger.Error("Failed to append crawl log row",
			zap.String("url", entry.URL), zap.Error(err))
	}

	s.afterStep()
}

// enqueueFollowups admits classifier-tiered links into the frontier at the
// next depth. Definite links are always enqueued; probable links unless
// definite-only mode is set. At depth 0 only, a classifier that found
// nothing falls back to the first raw links as a safety net.
func (s *Scheduler) enqueueFollowups(entry FrontierEntry, result AcquireResult, verdict PageVerdict) {
	if entry.Depth >= s.cfg.MaxDepth {
		return
	}

	textByURL := make(map[string]string, len(result.Links))
	for _, l := range result.Links {
		textByURL[l.URL] = l.Text
	}

	next := entry.Depth + 1
	enqueued := 0
	for _, u := range verdict.DefiniteLinks {
		enqueued += s.enqueue(u, textByURL[u], next)
	}
	if !s.cfg.DefiniteOnly {
		for _, u := range verdict.ProbableLinks {
			enqueued += s.enqueue(u, textByURL[u], next)
		}
	}

	if entry.Depth == 0 && len(verdict.DefiniteLinks) == 0 && len(verdict.ProbableLinks) == 0 && len(result.Links) > 0 {
		s.logger.Warn("Classifier found no links on the seed page, enqueueing raw links as fallback",
			zap.Int("available", len(result.Links)))
		for i, l := range result.Links {
			if i >= s.cfg.RootFallbackLinks {
				break
			}
			enqueued += s.enqueue(l.URL, l.Text, next)
		}
	}

	if enqueued > 0 {
		s.logger.Info("Enqueued follow-up links",
			zap.String("from", entry.URL), zap.Int("count", enqueued))
	}
}

func (s *Scheduler) enqueue(rawURL, linkText string, depth int) int {
	if !s.policy.IsAllowed(rawURL, s.state.Visited) {
		return 0
	}
	s.frontier.Push(FrontierEntry{
		Priority: s.policy.Priority(rawURL, linkText),
		URL:      rawURL,
		Depth:    depth,
	})
	TotalEnqueued.Inc()
	return 1
}

func (s *Scheduler) afterStep() {
	s.processed++
	if s.processed%s.cfg.CheckpointInterval == 0 {
		s.checkpoint()
	}
}

// checkpoint persists the current state. Failures are logged and the crawl
// continues; only resumability of this checkpoint is lost.
func (s *Scheduler) checkpoint() {
	s.state.Frontier = s.frontier.Snapshot()
	if err := s.states.Save(s.state); err != nil {
		s.logger.Error("Failed to save crawl state", zap.Error(err))
		return
	}
	TotalCheckpoints.Inc()
}
