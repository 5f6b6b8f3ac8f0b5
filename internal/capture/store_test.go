package capture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testID = "20260831120000123456"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestNewTimestampID(t *testing.T) {
	t.Parallel()

	a := NewTimestampID()
	b := NewTimestampID()

	assert.True(t, ValidTimestampID(a))
	assert.True(t, ValidTimestampID(b))
	// Identifiers issued in sequence never run backwards lexically.
	assert.LessOrEqual(t, a, b)
}

func TestValidTimestampID(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidTimestampID(testID))
	assert.False(t, ValidTimestampID(""))
	assert.False(t, ValidTimestampID("2026083112000012345"))   // too short
	assert.False(t, ValidTimestampID("202608311200001234567")) // too long
	assert.False(t, ValidTimestampID("2026083112000012345x"))
}

func TestPutWritesProvenanceHeader(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	rc, err := store.Put("# Leave Policy\n\nBody text.", "https://example.edu/leave", 2, testID, nil)
	require.NoError(t, err)
	assert.Equal(t, testID, rc.TimestampID)
	assert.Equal(t, "https://example.edu/leave", rc.SourceURL)
	assert.Equal(t, 2, rc.Depth)
	assert.Empty(t, rc.ImageDir)

	payload, err := os.ReadFile(rc.MarkdownPath)
	require.NoError(t, err)
	content := string(payload)
	assert.Contains(t, content, "# Source URL: https://example.edu/leave\n")
	assert.Contains(t, content, "# Depth: 2\n")
	assert.Contains(t, content, "# Timestamp: "+testID+"\n")
	assert.Contains(t, content, "---")

	body, err := store.MarkdownBody(testID)
	require.NoError(t, err)
	assert.Equal(t, "# Leave Policy\n\nBody text.", body)
}

func TestPutRefusesOverwrite(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Put("first", "https://example.edu/a", 0, testID, nil)
	require.NoError(t, err)

	_, err = store.Put("second", "https://example.edu/b", 0, testID, nil)
	require.Error(t, err)

	// The original capture is untouched.
	body, err := store.MarkdownBody(testID)
	require.NoError(t, err)
	assert.Equal(t, "first", body)
}

func TestPutRejectsInvalidID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Put("content", "https://example.edu/a", 0, "not-a-timestamp", nil)
	require.Error(t, err)
}

func TestPutWritesImages(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	images := []Image{
		{ID: "figure-1", Data: []byte{0x89, 0x50}},
		{ID: "weird/../name", Data: []byte{0x01}},
	}
	rc, err := store.Put("doc", "https://example.edu/doc.pdf", 1, testID, images)
	require.NoError(t, err)
	require.NotEmpty(t, rc.ImageDir)

	entries, err := os.ReadDir(rc.ImageDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Image names are sanitized into the capture's own directory.
	for _, e := range entries {
		assert.Equal(t, ".png", filepath.Ext(e.Name()))
		assert.NotContains(t, e.Name(), "/")
	}
}

func TestStripHeader(t *testing.T) {
	t.Parallel()

	t.Run("removes header block", func(t *testing.T) {
		payload := "# Source URL: x\n# Depth: 0\n# Timestamp: y\n\n---\n\nbody here"
		assert.Equal(t, "body here", StripHeader(payload))
	})

	t.Run("payload without separator unchanged", func(t *testing.T) {
		assert.Equal(t, "plain text", StripHeader("plain text"))
	})
}
