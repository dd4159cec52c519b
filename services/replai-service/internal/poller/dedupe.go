package poller

import "sync"

// DedupeSet remembers provider message ids already handled in this process.
// It is shared by all mailbox loops and is never pruned.
type DedupeSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewDedupeSet returns an empty set.
func NewDedupeSet() *DedupeSet {
	return &DedupeSet{ids: make(map[string]struct{})}
}

// Has reports whether id was added before.
func (d *DedupeSet) Has(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ids[id]
	return ok
}

// Add records id.
func (d *DedupeSet) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids[id] = struct{}{}
}

// Len returns the number of remembered ids.
func (d *DedupeSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ids)
}
