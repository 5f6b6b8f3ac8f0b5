package crawl

import "context"

// Acquirer obtains normalized markdown content for a URL.
type Acquirer interface {
	Acquire(ctx context.Context, rawURL string, depth int) (AcquireResult, error)
}

// Navigator opens a URL in the shared browser session without scraping it.
// Used for the manual authentication bootstrap before the crawl starts.
type Navigator interface {
	Navigate(ctx context.Context, rawURL string) error
}

// Classifier is the external content classification collaborator.
// Implementations must never fail on malformed model output; they degrade
// to a conservative verdict instead.
type Classifier interface {
	ClassifyDocument(ctx context.Context, content, sourceURL string) (DocumentVerdict, error)
	ClassifyPage(ctx context.Context, content, sourceURL string, links []LinkRef) (PageVerdict, error)
}

// StateStore persists the traversal frontier and visited set.
type StateStore interface {
	Save(state State) error
	Load() (State, bool)
	Clear() error
}

// Recorder appends processed-URL outcomes to the crawl log.
type Recorder interface {
	Append(row LogRow) error
}

// Confirmer blocks until an external confirmation arrives, e.g. an operator
// finishing interactive authentication in the browser session.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) error
}
