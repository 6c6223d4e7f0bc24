package pool

import (
	"fmt"
	"sync/atomic"
)

// BaseUnitSize is the size in bytes of a single order-0 block.
const BaseUnitSize = 4096

// Block is an externally allocated memory unit of a fixed order. Pools
// never inspect the payload; they only chain blocks and read the Highmem
// tag fixed by the allocator at creation.
type Block struct {
	Order   uint
	Highmem bool
	Data    []byte
}

// Allocator supplies and takes back raw blocks. Implementations decide
// the memory class of each block they hand out.
type Allocator interface {
	Allocate(order uint, flags AllocFlags) (*Block, error)
	Release(blk *Block, order uint)
}

// HeapAllocator services blocks from the process heap. An optional byte
// limit makes exhaustion observable to pools.
type HeapAllocator struct {
	limit int64
	used  atomic.Int64
}

// NewHeapAllocator creates a HeapAllocator. limitBytes of zero means
// unlimited.
func NewHeapAllocator(limitBytes int64) *HeapAllocator {
	return &HeapAllocator{limit: limitBytes}
}

func (a *HeapAllocator) Allocate(order uint, flags AllocFlags) (*Block, error) {
	size := int64(BaseUnitSize << order)
	if a.limit > 0 && a.used.Add(size) > a.limit {
		a.used.Add(-size)
		return nil, fmt.Errorf("heap allocator: %d byte limit exceeded", a.limit)
	}

	return &Block{
		Order:   order,
		Highmem: flags&FlagHighmem != 0,
		Data:    make([]byte, size),
	}, nil
}

func (a *HeapAllocator) Release(blk *Block, order uint) {
	if blk == nil {
		return
	}
	a.used.Add(-int64(BaseUnitSize << order))
	blk.Data = nil
}

// UsedBytes reports the bytes currently handed out.
func (a *HeapAllocator) UsedBytes() int64 {
	return a.used.Load()
}
