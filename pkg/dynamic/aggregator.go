package dynamic

import (
	"strings"
	"sync"
)

// Aggregator holds one slot per segment and joins them into renders.
// The number of slots is fixed at creation.
type Aggregator struct {
	mu    sync.Mutex
	slots []string
}

// NewAggregator returns an aggregator with n empty slots.
func NewAggregator(n int) *Aggregator {
	return &Aggregator{slots: make([]string, n)}
}

// Len returns the number of slots.
func (a *Aggregator) Len() int {
	return len(a.slots)
}

// Set writes a slot without producing a render.
func (a *Aggregator) Set(index int, value string) {
	a.mu.Lock()
	a.slots[index] = value
	a.mu.Unlock()
}

// Apply writes value into slot index and returns the join of all slots.
// The write and the join happen in one critical section, so every result
// reflects a fully settled slot table.
func (a *Aggregator) Apply(index int, value string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.slots[index] = value
	return strings.Join(a.slots, "")
}

// Join returns the current render.
func (a *Aggregator) Join() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return strings.Join(a.slots, "")
}

// Update writes value into slot index and passes the resulting render to
// emit while still holding the lock, so renders reach emit in the order the
// slot table changed. emit must not block.
func (a *Aggregator) Update(index int, value string, emit func(string) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.slots[index] = value
	return emit(strings.Join(a.slots, ""))
}
