package pool

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAllocator struct {
	mu        sync.Mutex
	allocated int
	released  []*Block
	fail      bool
}

func (a *fakeAllocator) Allocate(order uint, flags AllocFlags) (*Block, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fail {
		return nil, errors.New("exhausted")
	}
	a.allocated++
	return &Block{
		Order:   order,
		Highmem: flags&FlagHighmem != 0,
		Data:    make([]byte, BaseUnitSize<<order),
	}, nil
}

func (a *fakeAllocator) Release(blk *Block, order uint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.released = append(a.released, blk)
}

func (a *fakeAllocator) releasedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.released)
}

func lowBlock() *Block {
	return &Block{Data: make([]byte, 1)}
}

func highBlock() *Block {
	return &Block{Highmem: true, Data: make([]byte, 1)}
}

func TestPagePool_AllocPrefersHighThenFIFO(t *testing.T) {
	nrTotalPages.Store(0)
	p := NewPagePool(&fakeAllocator{}, 0, 0, false)

	a := lowBlock()
	b := lowBlock()
	h := highBlock()
	p.Free(a)
	p.Free(b)
	p.Free(h)

	got, fromPool, err := p.Alloc(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, fromPool)
	assert.Same(t, h, got, "high tier is checked before low")

	got, fromPool, err = p.Alloc(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, fromPool)
	assert.Same(t, a, got, "oldest low entry leaves first")

	got, _, err = p.Alloc(context.Background(), true)
	require.NoError(t, err)
	assert.Same(t, b, got)
}

func TestPagePool_AllocFallsBackToAllocator(t *testing.T) {
	nrTotalPages.Store(0)
	alloc := &fakeAllocator{}
	p := NewPagePool(alloc, 0, 0, false)

	blk, fromPool, err := p.Alloc(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, blk)
	assert.False(t, fromPool)
	assert.Equal(t, 1, alloc.allocated)
}

func TestPagePool_AllocOutOfMemory(t *testing.T) {
	nrTotalPages.Store(0)
	p := NewPagePool(&fakeAllocator{fail: true}, 0, 0, false)

	blk, fromPool, err := p.Alloc(context.Background(), true)
	assert.Nil(t, blk)
	assert.False(t, fromPool)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestPagePool_AllocInterrupted(t *testing.T) {
	nrTotalPages.Store(0)
	p := NewPagePool(&fakeAllocator{}, 0, 0, false)
	p.Free(lowBlock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blk, fromPool, err := p.Alloc(ctx, true)
	assert.Nil(t, blk)
	assert.False(t, fromPool)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, 1, p.LowCount(), "interrupted alloc must not touch the pool")
}

func TestPagePool_AllocPoolOnly(t *testing.T) {
	nrTotalPages.Store(0)
	alloc := &fakeAllocator{}
	p := NewPagePool(alloc, 0, 0, false)

	blk, err := p.AllocPoolOnly()
	assert.Nil(t, blk)
	assert.ErrorIs(t, err, ErrNotFound)

	freed := lowBlock()
	p.Free(freed)

	blk, err = p.AllocPoolOnly()
	require.NoError(t, err)
	assert.Same(t, freed, blk)
	assert.Equal(t, 0, p.Total(true), "pool is empty again")
	assert.Equal(t, 0, alloc.allocated, "pool-only never hits the raw allocator")
}

func TestPagePool_TotalCountsByTier(t *testing.T) {
	nrTotalPages.Store(0)
	p := NewPagePool(&fakeAllocator{}, 0, 2, false)

	for i := 0; i < 3; i++ {
		p.Free(lowBlock())
	}
	for i := 0; i < 2; i++ {
		p.Free(highBlock())
	}

	assert.Equal(t, 12, p.Total(false))
	assert.Equal(t, 20, p.Total(true))
}

func TestPagePool_ShrinkZeroBudgetIsPureQuery(t *testing.T) {
	nrTotalPages.Store(0)
	alloc := &fakeAllocator{}
	p := NewPagePool(alloc, 0, 1, false)

	p.Free(lowBlock())
	p.Free(highBlock())

	got := p.Shrink(ReclaimContext{Reclaimer: true}, 0)
	assert.Equal(t, 4, got)
	assert.Equal(t, 1, p.LowCount())
	assert.Equal(t, 1, p.HighCount())
	assert.Zero(t, alloc.releasedCount())

	got = p.Shrink(ReclaimContext{}, 0)
	assert.Equal(t, 2, got, "unprivileged query excludes the high tier")
}

func TestPagePool_ShrinkDrainsLowBeforeHigh(t *testing.T) {
	nrTotalPages.Store(0)
	alloc := &fakeAllocator{}
	p := NewPagePool(alloc, 0, 0, false)

	p.Free(highBlock())
	p.Free(lowBlock())
	p.Free(lowBlock())

	freed := p.Shrink(ReclaimContext{Reclaimer: true}, 2)
	assert.Equal(t, 2, freed)
	assert.Equal(t, 0, p.LowCount(), "low tier drains first regardless of budget")
	assert.Equal(t, 1, p.HighCount())

	freed = p.Shrink(ReclaimContext{Reclaimer: true}, 10)
	assert.Equal(t, 1, freed)
	assert.Equal(t, 0, p.HighCount())
}

func TestPagePool_ShrinkRoundsUpToBlockSize(t *testing.T) {
	nrTotalPages.Store(0)
	p := NewPagePool(&fakeAllocator{}, 0, 2, false)

	for i := 0; i < 4; i++ {
		p.Free(lowBlock())
	}

	freed := p.Shrink(ReclaimContext{Reclaimer: true}, 5)
	assert.Equal(t, 8, freed, "budget rounds up to the next multiple of the block size")
	assert.Equal(t, 2, p.LowCount())
}

func TestPagePool_ShrinkHighTierNeedsPrivilege(t *testing.T) {
	nrTotalPages.Store(0)
	alloc := &fakeAllocator{}
	p := NewPagePool(alloc, 0, 0, false)

	p.Free(highBlock())

	freed := p.Shrink(ReclaimContext{}, 10)
	assert.Zero(t, freed)
	assert.Equal(t, 1, p.HighCount())

	freed = p.Shrink(ReclaimContext{Highmem: true}, 10)
	assert.Equal(t, 1, freed)
	assert.Zero(t, p.HighCount())
}

func TestPagePool_FreeImmediateBypassesPool(t *testing.T) {
	nrTotalPages.Store(0)
	alloc := &fakeAllocator{}
	p := NewPagePool(alloc, 0, 0, false)

	p.FreeImmediate(lowBlock())
	assert.Zero(t, p.Total(true))
	assert.Equal(t, 1, alloc.releasedCount())
}

func TestTotalPages_TracksPoolsAndClamps(t *testing.T) {
	nrTotalPages.Store(0)
	p := NewPagePool(&fakeAllocator{}, 0, 1, false)

	p.Free(lowBlock())
	p.Free(highBlock())
	assert.Equal(t, int64(4), TotalPages())

	p.Shrink(ReclaimContext{Reclaimer: true}, 100)
	assert.Equal(t, int64(0), TotalPages())

	// Simulate the tolerated racy underflow.
	nrTotalPages.Store(-3)
	assert.Equal(t, int64(0), TotalPages())
	assert.Equal(t, int64(0), nrTotalPages.Load(), "negative reading self-corrects")
}

func TestTotalPages_ConcurrentChurnStaysNonNegative(t *testing.T) {
	nrTotalPages.Store(0)
	p := NewPagePool(&fakeAllocator{}, 0, 0, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p.Free(lowBlock())
				p.AllocPoolOnly()
				assert.GreaterOrEqual(t, TotalPages(), int64(0))
			}
		}()
	}
	wg.Wait()
}
