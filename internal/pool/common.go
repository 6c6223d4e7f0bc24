// Package pool implements per-order block pools with two priority tiers
// and a scan-bounded shrink protocol for memory-pressure callbacks.
package pool

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrInterrupted is returned when the caller's context is already
	// canceled; the pool is not touched in that case.
	ErrInterrupted = errors.New("allocation interrupted")

	// ErrOutOfMemory is returned when neither the pool nor the raw
	// allocator can satisfy a request.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrNotFound is returned by pool-only allocation when the pool is
	// empty or its lock is contended.
	ErrNotFound = errors.New("no pooled block available")
)

// AllocFlags qualify raw allocations handed to an Allocator.
type AllocFlags uint32

const (
	// FlagHighmem requests memory from the constrained high tier.
	FlagHighmem AllocFlags = 1 << iota
	// FlagZero requests zeroed memory.
	FlagZero
)

// ReclaimContext identifies the caller of a shrink pass. The dedicated
// reclaim worker, or any caller whose request allows highmem, may evict
// the high tier.
type ReclaimContext struct {
	// Reclaimer is true when the caller is the privileged reclaim worker.
	Reclaimer bool
	// Highmem is true when the triggering request allows high-tier memory.
	Highmem bool
}

func (rc ReclaimContext) highEligible() bool {
	return rc.Reclaimer || rc.Highmem
}

// nrTotalPages tracks pooled base units across every pool. It is updated
// with relaxed atomics and no cross-pool synchronization; transient
// inaccuracy is tolerated and negative readings clamp to zero.
var nrTotalPages atomic.Int64

func addTotalPages(n int64) {
	nrTotalPages.Add(n)
}

// TotalPages returns the global pooled base-unit count across all pools.
// A racy negative value is corrected to zero.
func TotalPages() int64 {
	n := nrTotalPages.Load()
	if n < 0 {
		nrTotalPages.CompareAndSwap(n, 0)
		return 0
	}
	return n
}
