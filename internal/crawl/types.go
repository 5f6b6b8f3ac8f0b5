// Package crawl defines core types shared across subsystems and implements
// the traversal scheduler that drives them.
package crawl

// LinkRef is a discovered outbound link together with its anchor text.
type LinkRef struct {
	URL  string `json:"url"`
	Text string `json:"anchor_text"`
}

// FrontierEntry is one scheduled URL awaiting processing.
// Higher priority entries are dequeued first.
type FrontierEntry struct {
	Priority float64 `json:"priority"`
	URL      string  `json:"url"`
	Depth    int     `json:"depth"`
}

// State is the resumable traversal state persisted between runs.
type State struct {
	Visited   map[string]bool
	Frontier  []FrontierEntry
	LastURL   string
	LastDepth int
}

// NewState returns an empty traversal state.
func NewState() State {
	return State{Visited: make(map[string]bool)}
}

// RawCapture identifies a single acquisition written to the raw store.
// The TimestampID is the sole join key between a capture, its crawl log
// row, and any later materialized policy folder. Immutable once created.
type RawCapture struct {
	TimestampID  string
	SourceURL    string
	Depth        int
	MarkdownPath string
	ImageDir     string
}

// LogRow is one record appended to the crawl log for a processed URL.
type LogRow struct {
	URL             string
	FilePath        string
	Include         bool
	FoundLinksCount int
	DefiniteLinks   []string
	ProbableLinks   []string
	TimestampID     string
}

// AcquireResult bundles everything the acquirer produced for one URL.
type AcquireResult struct {
	Markdown string
	Capture  RawCapture
	Links    []LinkRef
}

// DocumentVerdict is the classifier's answer for a single document.
type DocumentVerdict struct {
	ContainsPolicy bool
	PolicyTitle    string
	Reasoning      string
}

// PageVerdict is the classifier's answer for a page with candidate links.
// DefiniteLinks and ProbableLinks are confidence tiers for follow-up
// crawling; Content is the filtered relevant content (kept for contract
// completeness, not consumed by the scheduler).
type PageVerdict struct {
	Include       bool
	Content       string
	DefiniteLinks []string
	ProbableLinks []string
	Reasoning     string
}
