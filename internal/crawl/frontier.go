package crawl

import "container/heap"

// Frontier is a max-priority queue of FrontierEntry values. Duplicate URLs
// are allowed; the visited check happens at dequeue time, making a second
// dequeue of the same URL a no-op for the scheduler.
type Frontier struct {
	entries frontierHeap
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	f := &Frontier{}
	heap.Init(&f.entries)
	return f
}

// Push adds an entry to the frontier.
func (f *Frontier) Push(entry FrontierEntry) {
	heap.Push(&f.entries, entry)
}

// Pop removes and returns the highest-priority entry. The second return is
// false when the frontier is empty.
func (f *Frontier) Pop() (FrontierEntry, bool) {
	if f.entries.Len() == 0 {
		return FrontierEntry{}, false
	}
	entry := heap.Pop(&f.entries).(FrontierEntry)
	return entry, true
}

// Len reports the number of queued entries.
func (f *Frontier) Len() int {
	return f.entries.Len()
}

// Snapshot returns a copy of the queued entries in unspecified order,
// suitable for persistence.
func (f *Frontier) Snapshot() []FrontierEntry {
	out := make([]FrontierEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Restore replaces the frontier contents with the given entries.
func (f *Frontier) Restore(entries []FrontierEntry) {
	f.entries = make(frontierHeap, len(entries))
	copy(f.entries, entries)
	heap.Init(&f.entries)
}

// frontierHeap implements heap.Interface ordered by descending priority.
type frontierHeap []FrontierEntry

func (h frontierHeap) Len() int            { return len(h) }
func (h frontierHeap) Less(i, j int) bool  { return h[i].Priority > h[j].Priority }
func (h frontierHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x interface{}) { *h = append(*h, x.(FrontierEntry)) }

func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}
