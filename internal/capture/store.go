// Package capture implements the write-once raw capture store.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/crawl"
)

// timestampIDWidth is the fixed width of capture identifiers. Version
// supersession compares identifiers lexically, which is only sound while
// every identifier has exactly this width.
const timestampIDWidth = 20

// Image is one extracted image to be stored alongside a capture.
type Image struct {
	ID   string
	Data []byte
}

// Store writes raw captures to a directory, one markdown file per capture
// plus an optional sibling image directory. Files are never overwritten.
type Store struct {
	root   string
	logger *zap.Logger
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create raw store dir %s: %w", dir, err)
	}
	return &Store{root: dir, logger: logger}, nil
}

// Root returns the raw store root directory.
func (s *Store) Root() string {
	return s.root
}

// NewTimestampID returns a fresh 20-digit capture identifier: the UTC
// date-time to the second followed by microseconds. The fixed width keeps
// lexical comparison equivalent to chronological comparison.
func NewTimestampID() string {
	now := time.Now().UTC()
	id := now.Format("20060102150405") + fmt.Sprintf("%06d", now.Nanosecond()/1000)
	if len(id) != timestampIDWidth {
		panic(fmt.Sprintf("timestamp id %q is not %d digits", id, timestampIDWidth))
	}
	return id
}

// ValidTimestampID reports whether id has the fixed 20-digit shape.
func ValidTimestampID(id string) bool {
	if len(id) != timestampIDWidth {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Put writes one capture: `<id>.md` with a provenance header, and any
// images under `<id>/`. The returned RawCapture is immutable thereafter.
func (s *Store) Put(markdown, sourceURL string, depth int, timestampID string, images []Image) (crawl.RawCapture, error) {
	if !ValidTimestampID(timestampID) {
		return crawl.RawCapture{}, fmt.Errorf("invalid timestamp id %q", timestampID)
	}

	target := filepath.Join(s.root, timestampID+".md")
	if _, err := os.Stat(target); err == nil {
		return crawl.RawCapture{}, fmt.Errorf("capture %s already exists", timestampID)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Source URL: %s\n", sourceURL))
	b.WriteString(fmt.Sprintf("# Depth: %d\n", depth))
	b.WriteString(fmt.Sprintf("# Timestamp: %s\n", timestampID))
	b.WriteString("\n---\n\n")
	b.WriteString(markdown)

	if err := os.WriteFile(target, []byte(b.String()), 0o600); err != nil {
		return crawl.RawCapture{}, fmt.Errorf("write capture %s: %w", timestampID, err)
	}

	rc := crawl.RawCapture{
		TimestampID:  timestampID,
		SourceURL:    sourceURL,
		Depth:        depth,
		MarkdownPath: target,
	}

	if len(images) == 0 {
		return rc, nil
	}

	imageDir := filepath.Join(s.root, timestampID)
	if err := os.MkdirAll(imageDir, 0o750); err != nil {
		return crawl.RawCapture{}, fmt.Errorf("create image dir %s: %w", imageDir, err)
	}
	for _, img := range images {
		id := img.ID
		if id == "" {
			id = uuid.NewString()
		}
		name := filepath.Join(imageDir, sanitizeImageID(id)+".png")
		if err := os.WriteFile(name, img.Data, 0o600); err != nil {
			s.logger.Warn("Failed to write capture image",
				zap.String("timestamp_id", timestampID),
				zap.String("image", id),
				zap.Error(err))
			continue
		}
	}
	rc.ImageDir = imageDir
	return rc, nil
}

// MarkdownBody reads a capture file and returns its markdown body with the
// provenance header removed.
func (s *Store) MarkdownBody(timestampID string) (string, error) {
	payload, err := os.ReadFile(filepath.Join(s.root, timestampID+".md"))
	if err != nil {
		return "", fmt.Errorf("read capture %s: %w", timestampID, err)
	}
	return StripHeader(string(payload)), nil
}

// StripHeader removes the provenance header block from a capture payload.
// Payloads without a separator are returned unchanged.
func StripHeader(payload string) string {
	const separator = "\n---\n"
	if idx := strings.Index(payload, separator); idx >= 0 {
		return strings.TrimLeft(payload[idx+len(separator):], "\n")
	}
	return payload
}

func sanitizeImageID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return uuid.NewString()
	}
	return b.String()
}
