package crawl

// frontier is the collection of discovered-but-unvisited URLs. Pop order is
// LIFO: the most recently discovered URL is visited first. This affects
// traversal order only, not coverage — every pushed URL is eventually
// popped exactly once.
//
// The seen set covers everything ever pushed, so a URL can never be queued
// twice regardless of how many pages link to it. The frontier is owned by
// the single traversal flow and needs no locking.
type frontier struct {
	stack []string
	seen  map[string]bool
}

func newFrontier() *frontier {
	return &frontier{seen: make(map[string]bool)}
}

// Push adds a URL unless it was ever pushed before. Returns true if added.
func (f *frontier) Push(rawURL string) bool {
	if f.seen[rawURL] {
		return false
	}
	f.seen[rawURL] = true
	f.stack = append(f.stack, rawURL)
	return true
}

// Pop removes and returns the most recently pushed URL.
func (f *frontier) Pop() (string, bool) {
	if len(f.stack) == 0 {
		return "", false
	}
	last := len(f.stack) - 1
	rawURL := f.stack[last]
	f.stack = f.stack[:last]
	return rawURL, true
}

func (f *frontier) Len() int {
	return len(f.stack)
}
