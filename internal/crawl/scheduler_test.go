package crawl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAcquirer struct {
	mock.Mock
}

func (m *mockAcquirer) Acquire(ctx context.Context, rawURL string, depth int) (AcquireResult, error) {
	args := m.Called(ctx, rawURL, depth)
	return args.Get(0).(AcquireResult), args.Error(1)
}

type mockClassifier struct {
	mock.Mock
}

func (m *mockClassifier) ClassifyDocument(ctx context.Context, content, sourceURL string) (DocumentVerdict, error) {
	args := m.Called(ctx, content, sourceURL)
	return args.Get(0).(DocumentVerdict), args.Error(1)
}

func (m *mockClassifier) ClassifyPage(ctx context.Context, content, sourceURL string, links []LinkRef) (PageVerdict, error) {
	args := m.Called(ctx, content, sourceURL, links)
	return args.Get(0).(PageVerdict), args.Error(1)
}

// memStateStore keeps state in memory so tests can seed and inspect it.
type memStateStore struct {
	saved     []State
	preloaded *State
}

func (s *memStateStore) Save(state State) error {
	s.saved = append(s.saved, state)
	return nil
}

func (s *memStateStore) Load() (State, bool) {
	if s.preloaded == nil {
		return NewState(), false
	}
	return *s.preloaded, true
}

func (s *memStateStore) Clear() error {
	s.saved = nil
	s.preloaded = nil
	return nil
}

type memRecorder struct {
	rows []LogRow
}

func (r *memRecorder) Append(row LogRow) error {
	r.rows = append(r.rows, row)
	return nil
}

const (
	seedURL = "https://example.edu/"
	linkA   = "https://example.edu/policies/leave"
	linkB   = "https://example.edu/hr/benefits"
	linkC   = "https://example.edu/news"
)

func seedResult(links ...LinkRef) AcquireResult {
	return AcquireResult{
		Markdown: "# Example\n\nSeed page content.",
		Capture:  RawCapture{TimestampID: "20260831120000000001", SourceURL: seedURL},
		Links:    links,
	}
}

func leafResult(ts string) AcquireResult {
	return AcquireResult{
		Markdown: "Leaf content.",
		Capture:  RawCapture{TimestampID: ts},
	}
}

func newTestScheduler(cfg SchedulerConfig, acq Acquirer, cls Classifier, states StateStore, rec Recorder) *Scheduler {
	policy := NewURLPolicy([]string{"example.edu"})
	return NewScheduler(cfg, policy, acq, nil, cls, states, rec, nil, zap.NewNop())
}

func TestSchedulerEnqueuesTieredLinksOnly(t *testing.T) {
	links := []LinkRef{
		{URL: linkA, Text: "Leave Policy"},
		{URL: linkB, Text: "Benefits"},
		{URL: linkC, Text: "News"},
	}

	acq := new(mockAcquirer)
	acq.On("Acquire", mock.Anything, seedURL, 0).Return(seedResult(links...), nil)
	acq.On("Acquire", mock.Anything, linkA, 1).Return(leafResult("20260831120000000002"), nil)
	acq.On("Acquire", mock.Anything, linkB, 1).Return(leafResult("20260831120000000003"), nil)

	cls := new(mockClassifier)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, seedURL, mock.Anything).Return(PageVerdict{
		Include:       true,
		DefiniteLinks: []string{linkA},
		ProbableLinks: []string{linkB},
	}, nil)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, linkA, mock.Anything).Return(PageVerdict{}, nil)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, linkB, mock.Anything).Return(PageVerdict{}, nil)

	states := &memStateStore{}
	rec := &memRecorder{}

	s := newTestScheduler(SchedulerConfig{StartURL: seedURL, MaxDepth: 1}, acq, cls, states, rec)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, PhaseCompleted, s.Phase())
	acq.AssertNumberOfCalls(t, "Acquire", 3)
	acq.AssertNotCalled(t, "Acquire", mock.Anything, linkC, mock.Anything)
	require.Len(t, rec.rows, 3)
	assert.Equal(t, seedURL, rec.rows[0].URL)
	assert.True(t, rec.rows[0].Include)
	assert.Equal(t, 3, rec.rows[0].FoundLinksCount)
	assert.Equal(t, "20260831120000000001.md", rec.rows[0].FilePath)
}

func TestSchedulerDequeueIsIdempotent(t *testing.T) {
	links := []LinkRef{{URL: linkA, Text: "Leave Policy"}}

	acq := new(mockAcquirer)
	acq.On("Acquire", mock.Anything, seedURL, 0).Return(seedResult(links...), nil)
	acq.On("Acquire", mock.Anything, linkA, 1).Return(leafResult("20260831120000000002"), nil)

	cls := new(mockClassifier)
	// The same URL lands in both tiers, producing a duplicate frontier entry.
	cls.On("ClassifyPage", mock.Anything, mock.Anything, seedURL, mock.Anything).Return(PageVerdict{
		DefiniteLinks: []string{linkA},
		ProbableLinks: []string{linkA},
	}, nil)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, linkA, mock.Anything).Return(PageVerdict{}, nil)

	s := newTestScheduler(SchedulerConfig{StartURL: seedURL, MaxDepth: 1}, acq, cls, &memStateStore{}, &memRecorder{})
	require.NoError(t, s.Run(context.Background()))

	// The duplicate dequeue is a no-op: one acquisition for the seed, one
	// for the duplicated link.
	acq.AssertNumberOfCalls(t, "Acquire", 2)
}

func TestSchedulerDefiniteOnlySuppressesProbable(t *testing.T) {
	links := []LinkRef{
		{URL: linkA, Text: "Leave Policy"},
		{URL: linkB, Text: "Benefits"},
	}

	acq := new(mockAcquirer)
	acq.On("Acquire", mock.Anything, seedURL, 0).Return(seedResult(links...), nil)
	acq.On("Acquire", mock.Anything, linkA, 1).Return(leafResult("20260831120000000002"), nil)

	cls := new(mockClassifier)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, seedURL, mock.Anything).Return(PageVerdict{
		DefiniteLinks: []string{linkA},
		ProbableLinks: []string{linkB},
	}, nil)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, linkA, mock.Anything).Return(PageVerdict{}, nil)

	s := newTestScheduler(SchedulerConfig{StartURL: seedURL, MaxDepth: 1, DefiniteOnly: true}, acq, cls, &memStateStore{}, &memRecorder{})
	require.NoError(t, s.Run(context.Background()))

	acq.AssertNotCalled(t, "Acquire", mock.Anything, linkB, mock.Anything)
}

func TestSchedulerSeedFallbackWhenClassifierFindsNothing(t *testing.T) {
	links := []LinkRef{
		{URL: linkA, Text: "Leave Policy"},
		{URL: linkB, Text: "Benefits"},
		{URL: linkC, Text: "News"},
	}

	acq := new(mockAcquirer)
	acq.On("Acquire", mock.Anything, seedURL, 0).Return(seedResult(links...), nil)
	acq.On("Acquire", mock.Anything, linkA, 1).Return(leafResult("20260831120000000002"), nil)
	acq.On("Acquire", mock.Anything, linkB, 1).Return(leafResult("20260831120000000003"), nil)

	cls := new(mockClassifier)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(PageVerdict{}, nil)

	cfg := SchedulerConfig{StartURL: seedURL, MaxDepth: 1, RootFallbackLinks: 2}
	s := newTestScheduler(cfg, acq, cls, &memStateStore{}, &memRecorder{})
	require.NoError(t, s.Run(context.Background()))

	// Fallback is capped and applies only at the seed.
	acq.AssertNumberOfCalls(t, "Acquire", 3)
	acq.AssertNotCalled(t, "Acquire", mock.Anything, linkC, mock.Anything)
}

func TestSchedulerAcquisitionFailureSkipsURL(t *testing.T) {
	acq := new(mockAcquirer)
	acq.On("Acquire", mock.Anything, seedURL, 0).Return(AcquireResult{}, assert.AnError)

	cls := new(mockClassifier)
	rec := &memRecorder{}

	s := newTestScheduler(SchedulerConfig{StartURL: seedURL, MaxDepth: 1}, acq, cls, &memStateStore{}, rec)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, PhaseCompleted, s.Phase())
	assert.Empty(t, rec.rows)
	cls.AssertNotCalled(t, "ClassifyPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSchedulerClassifierErrorYieldsConservativeRow(t *testing.T) {
	links := []LinkRef{{URL: linkA, Text: "Leave Policy"}}

	acq := new(mockAcquirer)
	acq.On("Acquire", mock.Anything, seedURL, 0).Return(seedResult(links...), nil)

	cls := new(mockClassifier)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, seedURL, mock.Anything).Return(PageVerdict{}, assert.AnError)

	rec := &memRecorder{}
	s := newTestScheduler(SchedulerConfig{StartURL: seedURL, MaxDepth: 0}, acq, cls, &memStateStore{}, rec)
	require.NoError(t, s.Run(context.Background()))

	require.Len(t, rec.rows, 1)
	assert.False(t, rec.rows[0].Include)
	assert.Empty(t, rec.rows[0].DefiniteLinks)
	assert.Empty(t, rec.rows[0].ProbableLinks)
}

func TestSchedulerRoutesDocumentsToDocumentClassifier(t *testing.T) {
	docURL := "https://example.edu/files/handbook.pdf"

	acq := new(mockAcquirer)
	acq.On("Acquire", mock.Anything, docURL, 0).Return(AcquireResult{
		Markdown: "Handbook text.",
		Capture:  RawCapture{TimestampID: "20260831120000000009"},
	}, nil)

	cls := new(mockClassifier)
	cls.On("ClassifyDocument", mock.Anything, "Handbook text.", docURL).Return(DocumentVerdict{
		ContainsPolicy: true,
		PolicyTitle:    "Employee Handbook",
	}, nil)

	rec := &memRecorder{}
	s := newTestScheduler(SchedulerConfig{StartURL: docURL, MaxDepth: 1}, acq, cls, &memStateStore{}, rec)
	require.NoError(t, s.Run(context.Background()))

	cls.AssertNotCalled(t, "ClassifyPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, rec.rows, 1)
	assert.True(t, rec.rows[0].Include)
}

func TestSchedulerDrainsOnCanceledContext(t *testing.T) {
	acq := new(mockAcquirer)
	cls := new(mockClassifier)
	states := &memStateStore{}

	s := newTestScheduler(SchedulerConfig{StartURL: seedURL, MaxDepth: 1}, acq, cls, states, &memRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, PhaseDraining, s.Phase())
	acq.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, states.saved, 1)
	require.Len(t, states.saved[0].Frontier, 1)
	assert.Equal(t, seedURL, states.saved[0].Frontier[0].URL)
}

func TestSchedulerFinishesInFlightURLWhenDrainRequested(t *testing.T) {
	links := []LinkRef{{URL: linkA, Text: "Leave Policy"}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The drain signal arrives while the seed acquisition is in flight. The
	// step's context must stay live so the acquisition runs to completion,
	// and the drain takes effect at the next iteration.
	var inFlightErr error
	acq := new(mockAcquirer)
	acq.On("Acquire", mock.Anything, seedURL, 0).Run(func(args mock.Arguments) {
		cancel()
		inFlightErr = args.Get(0).(context.Context).Err()
	}).Return(seedResult(links...), nil)

	cls := new(mockClassifier)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, seedURL, mock.Anything).Return(PageVerdict{
		DefiniteLinks: []string{linkA},
	}, nil)

	states := &memStateStore{}
	rec := &memRecorder{}
	s := newTestScheduler(SchedulerConfig{StartURL: seedURL, MaxDepth: 1}, acq, cls, states, rec)
	require.NoError(t, s.Run(ctx))

	assert.NoError(t, inFlightErr)
	assert.Equal(t, PhaseDraining, s.Phase())

	// The in-flight URL was fully processed and its follow-up survives in
	// the checkpoint for the resumed run.
	require.Len(t, rec.rows, 1)
	assert.Equal(t, seedURL, rec.rows[0].URL)
	acq.AssertNumberOfCalls(t, "Acquire", 1)
	require.NotEmpty(t, states.saved)
	final := states.saved[len(states.saved)-1]
	require.Len(t, final.Frontier, 1)
	assert.Equal(t, linkA, final.Frontier[0].URL)
}

func TestSchedulerResumesFromSavedState(t *testing.T) {
	prior := NewState()
	prior.Visited[Normalize(seedURL)] = true
	prior.Frontier = []FrontierEntry{{Priority: 16.0, URL: linkA, Depth: 1}}

	acq := new(mockAcquirer)
	acq.On("Acquire", mock.Anything, linkA, 1).Return(leafResult("20260831120000000002"), nil)

	cls := new(mockClassifier)
	cls.On("ClassifyPage", mock.Anything, mock.Anything, linkA, mock.Anything).Return(PageVerdict{}, nil)

	states := &memStateStore{preloaded: &prior}
	s := newTestScheduler(SchedulerConfig{StartURL: seedURL, MaxDepth: 1}, acq, cls, states, &memRecorder{})
	require.NoError(t, s.Run(context.Background()))

	acq.AssertNumberOfCalls(t, "Acquire", 1)
	acq.AssertNotCalled(t, "Acquire", mock.Anything, seedURL, mock.Anything)
}

func TestSchedulerSkipsEntriesBeyondMaxDepth(t *testing.T) {
	prior := NewState()
	prior.Frontier = []FrontierEntry{{Priority: 1.0, URL: linkA, Depth: 3}}

	acq := new(mockAcquirer)
	cls := new(mockClassifier)

	states := &memStateStore{preloaded: &prior}
	s := newTestScheduler(SchedulerConfig{StartURL: seedURL, MaxDepth: 2}, acq, cls, states, &memRecorder{})
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, PhaseCompleted, s.Phase())
	acq.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything)
}
