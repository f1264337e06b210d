package worker

import "sync"

// Budget caps how many post jobs are enqueued per country across all workers.
// A limit of zero or less means unlimited.
type Budget struct {
	limit int
	mu    sync.Mutex
	used  map[string]int
}

// NewBudget returns a Budget allowing limit posts per country.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit, used: make(map[string]int)}
}

// Reserve claims one post slot for country and reports whether it succeeded.
func (b *Budget) Reserve(country string) bool {
	if b == nil || b.limit <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used[country] >= b.limit {
		return false
	}
	b.used[country]++
	return true
}

// Exhausted reports whether country has no slots left.
func (b *Budget) Exhausted(country string) bool {
	if b == nil || b.limit <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used[country] >= b.limit
}
