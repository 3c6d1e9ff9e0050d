package engine

import "sync"

// SharedHistory is a history table shared across all Lazy-SMP worker
// goroutines: every worker adds its quiet beta cutoffs to it. Move ordering
// does not read it; each worker orders quiets by its private
// MoveOrderer.history, which only reflects that worker's own search tree.
type SharedHistory struct {
	mu    sync.Mutex
	table [64][64]int
}

// NewSharedHistory creates an empty shared history table.
func NewSharedHistory() *SharedHistory {
	return &SharedHistory{}
}

// Get returns the shared history score for a from/to square pair.
func (sh *SharedHistory) Get(from, to int) int {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.table[from][to]
}

// Update applies the capped, saturating history bonus for depth to a
// from/to square pair.
func (sh *SharedHistory) Update(from, to, depth int) {
	bonus := historyBonus(depth)

	sh.mu.Lock()
	sh.table[from][to] = applyHistoryUpdate(sh.table[from][to], bonus)
	sh.mu.Unlock()
}

// Clear resets the shared history table for a new search.
func (sh *SharedHistory) Clear() {
	sh.mu.Lock()
	for i := range sh.table {
		for j := range sh.table[i] {
			sh.table[i][j] = 0
		}
	}
	sh.mu.Unlock()
}
