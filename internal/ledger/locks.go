package ledger

import (
	"sort"
	"sync"
)

// productLocks hands out one mutex per product id. SQLite has no row-level
// SELECT ... FOR UPDATE, so stock validation and commit are serialized per
// product in-process instead. Locks are taken in ascending id order to rule
// out deadlocks between overlapping invoices.
type productLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[uint]*sync.Mutex)}
}

func (p *productLocks) get(id uint) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.locks[id]
	if !ok {
		m = &sync.Mutex{}
		p.locks[id] = m
	}
	return m
}

func (p *productLocks) lock(ids []uint) func() {
	seen := make(map[uint]bool, len(ids))
	ordered := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		m := p.get(id)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
