package pool

import (
	"context"
	"sync"
)

// PagePool is a free list of equally sized blocks split into two tiers.
// Highmem blocks land in the high tier, everything else in the low tier.
// Removal within a tier is FIFO: the oldest pooled block leaves first.
type PagePool struct {
	alloc  Allocator
	flags  AllocFlags
	order  uint
	cached bool

	mu        sync.Mutex
	lowItems  []*Block
	highItems []*Block
	lowCount  int
	highCount int
}

// NewPagePool creates an empty pool of the given order. flags are passed
// through to the raw allocator on fallback allocations. cached marks the
// pool as holding cache-coherent memory; it does not change pool logic.
func NewPagePool(alloc Allocator, flags AllocFlags, order uint, cached bool) *PagePool {
	return &PagePool{
		alloc:  alloc,
		flags:  flags,
		order:  order,
		cached: cached,
	}
}

// Order returns the pool's size class.
func (p *PagePool) Order() uint {
	return p.order
}

// Cached reports whether the pool holds cache-coherent memory.
func (p *PagePool) Cached() bool {
	return p.cached
}

// add appends blk to the tier matching its memory class. Caller must
// hold p.mu.
func (p *PagePool) add(blk *Block) {
	if blk.Highmem {
		p.highItems = append(p.highItems, blk)
		p.highCount++
	} else {
		p.lowItems = append(p.lowItems, blk)
		p.lowCount++
	}
	addTotalPages(int64(1) << p.order)
}

// remove pops the oldest block from the requested tier. Caller must hold
// p.mu and have checked the tier is non-empty.
func (p *PagePool) remove(high bool) *Block {
	var blk *Block
	if high {
		blk = p.highItems[0]
		p.highItems = p.highItems[1:]
		p.highCount--
	} else {
		blk = p.lowItems[0]
		p.lowItems = p.lowItems[1:]
		p.lowCount--
	}
	addTotalPages(-(int64(1) << p.order))
	return blk
}

// Alloc returns one block, preferring the pool when preferPool is set and
// the pool lock is immediately available. The high tier is checked before
// the low tier. On a pool miss the request falls through to the raw
// allocator and fromPool is false. A canceled context aborts the request
// before the pool is touched.
func (p *PagePool) Alloc(ctx context.Context, preferPool bool) (blk *Block, fromPool bool, err error) {
	if ctx.Err() != nil {
		return nil, false, ErrInterrupted
	}

	if preferPool && p.mu.TryLock() {
		if p.highCount > 0 {
			blk = p.remove(true)
		} else if p.lowCount > 0 {
			blk = p.remove(false)
		}
		p.mu.Unlock()
	}
	if blk != nil {
		return blk, true, nil
	}

	blk, allocErr := p.alloc.Allocate(p.order, p.flags)
	if allocErr != nil || blk == nil {
		return nil, false, ErrOutOfMemory
	}
	return blk, false, nil
}

// AllocPoolOnly returns a pooled block or ErrNotFound. It never falls
// back to the raw allocator, and a contended pool lock counts as a miss.
func (p *PagePool) AllocPoolOnly() (*Block, error) {
	var blk *Block

	if p.mu.TryLock() {
		if p.highCount > 0 {
			blk = p.remove(true)
		} else if p.lowCount > 0 {
			blk = p.remove(false)
		}
		p.mu.Unlock()
	}

	if blk == nil {
		return nil, ErrNotFound
	}
	return blk, nil
}

// Free returns blk to the pool, in the tier matching its memory class.
func (p *PagePool) Free(blk *Block) {
	p.mu.Lock()
	p.add(blk)
	p.mu.Unlock()
}

// FreeImmediate bypasses the pool and hands blk straight back to the raw
// allocator.
func (p *PagePool) FreeImmediate(blk *Block) {
	p.alloc.Release(blk, p.order)
}

// Total returns the pooled block count in base units, including the high
// tier only when includeHigh is set.
func (p *PagePool) Total(includeHigh bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalLocked(includeHigh)
}

func (p *PagePool) totalLocked(includeHigh bool) int {
	count := p.lowCount
	if includeHigh {
		count += p.highCount
	}
	return count << p.order
}

// LowCount returns the low tier entry count.
func (p *PagePool) LowCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lowCount
}

// HighCount returns the high tier entry count.
func (p *PagePool) HighCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.highCount
}

// Shrink evicts pooled blocks back to the raw allocator until scanBudget
// base units have been freed or the eligible tiers are empty. The low
// tier always drains first; the high tier is touched only for callers
// with high-tier privilege. A zero budget performs no eviction and
// returns the evictable total for this caller instead.
func (p *PagePool) Shrink(rc ReclaimContext, scanBudget int) int {
	high := rc.highEligible()

	if scanBudget == 0 {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.totalLocked(high)
	}

	freed := 0
	for freed < scanBudget {
		var blk *Block

		p.mu.Lock()
		if p.lowCount > 0 {
			blk = p.remove(false)
		} else if high && p.highCount > 0 {
			blk = p.remove(true)
		} else {
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		p.alloc.Release(blk, p.order)
		freed += 1 << p.order
	}

	return freed
}

// Destroy drains every pooled block back to the raw allocator. The pool
// must not be used afterwards.
func (p *PagePool) Destroy() {
	p.Shrink(ReclaimContext{Reclaimer: true}, int(^uint(0)>>1))
}
