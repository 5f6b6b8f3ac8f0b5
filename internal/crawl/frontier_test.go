package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontierPopsHighestPriorityFirst(t *testing.T) {
	t.Parallel()

	f := NewFrontier()
	f.Push(FrontierEntry{Priority: 1.0, URL: "https://example.edu/low", Depth: 1})
	f.Push(FrontierEntry{Priority: 16.0, URL: "https://example.edu/policy", Depth: 1})
	f.Push(FrontierEntry{Priority: 5.5, URL: "https://example.edu/mid", Depth: 2})

	entry, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://example.edu/policy", entry.URL)

	entry, ok = f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://example.edu/mid", entry.URL)

	entry, ok = f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://example.edu/low", entry.URL)

	_, ok = f.Pop()
	assert.False(t, ok)
	assert.Zero(t, f.Len())
}

func TestFrontierAllowsDuplicateURLs(t *testing.T) {
	t.Parallel()

	f := NewFrontier()
	f.Push(FrontierEntry{Priority: 2.0, URL: "https://example.edu/a", Depth: 1})
	f.Push(FrontierEntry{Priority: 3.0, URL: "https://example.edu/a", Depth: 1})

	assert.Equal(t, 2, f.Len())

	first, _ := f.Pop()
	second, _ := f.Pop()
	assert.Equal(t, first.URL, second.URL)
}

func TestFrontierSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	f := NewFrontier()
	f.Push(FrontierEntry{Priority: 1.0, URL: "https://example.edu/a", Depth: 0})
	f.Push(FrontierEntry{Priority: 9.0, URL: "https://example.edu/b", Depth: 1})
	f.Push(FrontierEntry{Priority: 4.0, URL: "https://example.edu/c", Depth: 2})

	snap := f.Snapshot()
	require.Len(t, snap, 3)

	restored := NewFrontier()
	restored.Restore(snap)
	require.Equal(t, 3, restored.Len())

	// Restoring must preserve dequeue order regardless of snapshot order.
	var urls []string
	for {
		entry, ok := restored.Pop()
		if !ok {
			break
		}
		urls = append(urls, entry.URL)
	}
	assert.Equal(t, []string{"https://example.edu/b", "https://example.edu/c", "https://example.edu/a"}, urls)
}

func TestFrontierSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	f := NewFrontier()
	f.Push(FrontierEntry{Priority: 1.0, URL: "https://example.edu/a", Depth: 0})

	snap := f.Snapshot()
	snap[0].URL = "https://example.edu/mutated"

	entry, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "https://example.edu/a", entry.URL)
}
