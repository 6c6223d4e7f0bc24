package pool

import (
	"sort"
	"sync"

	"github.com/go-logr/logr"
)

// Shrinker aggregates active pools and is the single entry point used by
// the memory-pressure subsystem. Pools are kept ordered smallest order
// first, so cheap-to-reconstruct pools drain before expensive ones.
type Shrinker struct {
	mu     sync.Mutex
	pools  []*PagePool
	logger logr.Logger
}

// NewShrinker creates an empty Shrinker.
func NewShrinker(logger logr.Logger) *Shrinker {
	return &Shrinker{logger: logger.WithName("Shrinker")}
}

// Register adds a pool, keeping the priority ordering.
func (s *Shrinker) Register(p *PagePool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pools = append(s.pools, p)
	sort.SliceStable(s.pools, func(i, j int) bool {
		return s.pools[i].Order() < s.pools[j].Order()
	})
}

// Unregister removes a pool. The pool itself is left untouched.
func (s *Shrinker) Unregister(p *PagePool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, registered := range s.pools {
		if registered == p {
			s.pools = append(s.pools[:i], s.pools[i+1:]...)
			return
		}
	}
}

// Pools returns a snapshot of the registered pools in priority order.
func (s *Shrinker) Pools() []*PagePool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*PagePool(nil), s.pools...)
}

// Count returns the total evictable base units for this caller, i.e. the
// sum of pure-query shrinks across all pools.
func (s *Shrinker) Count(rc ReclaimContext) int {
	total := 0
	for _, p := range s.Pools() {
		total += p.Shrink(rc, 0)
	}
	return total
}

// Reclaim distributes scanBudget across the pools in priority order and
// returns the base units actually freed.
func (s *Shrinker) Reclaim(rc ReclaimContext, scanBudget int) int {
	if scanBudget <= 0 {
		return 0
	}

	freed := 0
	for _, p := range s.Pools() {
		remaining := scanBudget - freed
		if remaining <= 0 {
			break
		}
		freed += p.Shrink(rc, remaining)
	}

	s.logger.V(5).Info("reclaim pass finished",
		"scanBudget", scanBudget, "freed", freed, "reclaimer", rc.Reclaimer)
	return freed
}
