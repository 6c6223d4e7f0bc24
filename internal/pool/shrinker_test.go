package pool

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
)

func TestShrinker_PoolsOrderedSmallestFirst(t *testing.T) {
	nrTotalPages.Store(0)
	s := NewShrinker(logr.Discard())

	big := NewPagePool(&fakeAllocator{}, 0, 4, false)
	small := NewPagePool(&fakeAllocator{}, 0, 0, false)
	mid := NewPagePool(&fakeAllocator{}, 0, 2, true)

	s.Register(big)
	s.Register(small)
	s.Register(mid)

	pools := s.Pools()
	assert.Equal(t, []uint{0, 2, 4}, []uint{pools[0].Order(), pools[1].Order(), pools[2].Order()})
}

func TestShrinker_CountRespectsPrivilege(t *testing.T) {
	nrTotalPages.Store(0)
	s := NewShrinker(logr.Discard())

	p0 := NewPagePool(&fakeAllocator{}, 0, 0, false)
	p1 := NewPagePool(&fakeAllocator{}, 0, 1, false)
	s.Register(p0)
	s.Register(p1)

	p0.Free(lowBlock())
	p0.Free(highBlock())
	p1.Free(highBlock())

	assert.Equal(t, 1, s.Count(ReclaimContext{}))
	assert.Equal(t, 4, s.Count(ReclaimContext{Reclaimer: true}))
}

func TestShrinker_ReclaimDistributesBudget(t *testing.T) {
	nrTotalPages.Store(0)
	alloc := &fakeAllocator{}
	s := NewShrinker(logr.Discard())

	small := NewPagePool(alloc, 0, 0, false)
	big := NewPagePool(alloc, 0, 2, false)
	s.Register(big)
	s.Register(small)

	for i := 0; i < 3; i++ {
		small.Free(lowBlock())
	}
	for i := 0; i < 2; i++ {
		big.Free(lowBlock())
	}

	freed := s.Reclaim(ReclaimContext{Reclaimer: true}, 5)
	assert.Equal(t, 7, freed, "small pool drains fully, then one big block covers the rest")
	assert.Zero(t, small.Total(true))
	assert.Equal(t, 4, big.Total(true))

	assert.Zero(t, s.Reclaim(ReclaimContext{Reclaimer: true}, 0))
}

func TestShrinker_Unregister(t *testing.T) {
	nrTotalPages.Store(0)
	s := NewShrinker(logr.Discard())

	p := NewPagePool(&fakeAllocator{}, 0, 0, false)
	s.Register(p)
	p.Free(lowBlock())

	s.Unregister(p)
	assert.Zero(t, s.Count(ReclaimContext{Reclaimer: true}))
	assert.Empty(t, s.Pools())
}
