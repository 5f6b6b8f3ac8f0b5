package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bredec/policy-harvester/internal/crawl"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	st := crawl.NewState()
	st.Visited["https://example.edu/"] = true
	st.Visited["https://example.edu/policies"] = true
	st.Frontier = []crawl.FrontierEntry{
		{Priority: 16.0, URL: "https://example.edu/policies/leave", Depth: 1},
		{Priority: 2.5, URL: "https://example.edu/hr", Depth: 1},
	}
	st.LastURL = "https://example.edu/policies"
	st.LastDepth = 1

	require.NoError(t, store.Save(st))

	loaded, found := store.Load()
	require.True(t, found)
	assert.Equal(t, st.Visited, loaded.Visited)
	assert.Equal(t, st.Frontier, loaded.Frontier)
	assert.Equal(t, st.LastURL, loaded.LastURL)
	assert.Equal(t, st.LastDepth, loaded.LastDepth)
}

func TestLoadWithoutPriorState(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	loaded, found := store.Load()
	assert.False(t, found)
	assert.Empty(t, loaded.Visited)
	assert.Empty(t, loaded.Frontier)
}

func TestLoadRejectsPartialState(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := New(dir, zap.NewNop())
	require.NoError(t, err)

	// A state document without its frontier blob must not be resumed.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crawl_state.json"), []byte(`{"visited_urls":["https://example.edu/"]}`), 0o640))

	_, found := store.Load()
	assert.False(t, found)
}

func TestLoadRejectsCorruptArtifacts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		state    []byte
		frontier []byte
	}{
		{name: "corrupt state document", state: []byte("{not json"), frontier: []byte("irrelevant")},
		{name: "corrupt frontier blob", state: []byte(`{"visited_urls":[]}`), frontier: []byte("not gob")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			store, err := New(dir, zap.NewNop())
			require.NoError(t, err)

			require.NoError(t, os.WriteFile(filepath.Join(dir, "crawl_state.json"), tc.state, 0o640))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "frontier.bin"), tc.frontier, 0o640))

			loaded, found := store.Load()
			assert.False(t, found)
			assert.Empty(t, loaded.Visited)
		})
	}
}

func TestSaveOverwritesPreviousCheckpoint(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	first := crawl.NewState()
	first.Visited["https://example.edu/a"] = true
	require.NoError(t, store.Save(first))

	second := crawl.NewState()
	second.Visited["https://example.edu/a"] = true
	second.Visited["https://example.edu/b"] = true
	second.Frontier = []crawl.FrontierEntry{{Priority: 1.0, URL: "https://example.edu/c", Depth: 2}}
	require.NoError(t, store.Save(second))

	loaded, found := store.Load()
	require.True(t, found)
	assert.Len(t, loaded.Visited, 2)
	require.Len(t, loaded.Frontier, 1)
	assert.Equal(t, "https://example.edu/c", loaded.Frontier[0].URL)
}

func TestClear(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	st := crawl.NewState()
	st.Visited["https://example.edu/"] = true
	require.NoError(t, store.Save(st))
	require.NoError(t, store.Clear())

	_, found := store.Load()
	assert.False(t, found)

	// Clearing an already-empty store is not an error.
	require.NoError(t, store.Clear())
}
