package block

import (
	"fmt"
	"sync"

	"github.com/robert-malhotra/go-rasterstream/internal/alloc"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// Pool recycles blocks of one band selection and layout.
//
// A pass never holds more than queue capacity + producers + consumers blocks
// at once, so the pool is bounded by Max; asking for more is a bug and is
// reported rather than allocated.
type Pool struct {
	mu sync.Mutex

	alloc   *alloc.Allocator
	maxArea int
	bands   []int
	il      rasterio.Interleave
	max     int

	free    []*Block
	created int
	gets    uint64
	reuses  uint64
}

// PoolStats reports pool usage.
type PoolStats struct {
	Created     int
	Outstanding int
	Gets        uint64
	Reuses      uint64
}

// NewPool creates a pool of at most max blocks, each holding maxArea pixels
// of bands in layout il. Buffer memory is reserved through a.
func NewPool(a *alloc.Allocator, max, maxArea int, bands []int, il rasterio.Interleave) *Pool {
	return &Pool{
		alloc:   a,
		maxArea: maxArea,
		bands:   bands,
		il:      il,
		max:     max,
	}
}

// BlockBytes returns the buffer size of one block in bytes.
func (p *Pool) BlockBytes() uint64 {
	return uint64(p.maxArea*len(p.bands)) * 8
}

// Get returns a free block, making a new one if none is free.
func (p *Pool) Get() (*Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gets++
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		p.reuses++
		return b, nil
	}
	if p.created >= p.max {
		return nil, fmt.Errorf("%w: pool of %d blocks exhausted", alloc.ErrAllocation, p.max)
	}
	if err := p.alloc.Alloc(p.BlockBytes()); err != nil {
		return nil, err
	}
	p.created++
	return New(p.maxArea, p.bands, p.il), nil
}

// Put returns a block to the pool.
func (p *Pool) Put(b *Block) {
	if b == nil {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, b)
	p.mu.Unlock()
}

// Release drops every free block and returns its memory to the allocator.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for range p.free {
		p.alloc.Free(p.BlockBytes())
	}
	p.created -= len(p.free)
	p.free = nil
}

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Created:     p.created,
		Outstanding: p.created - len(p.free),
		Gets:        p.gets,
		Reuses:      p.reuses,
	}
}

// Validate reports blocks that were taken and never returned.
func (p *Pool) Validate() error {
	if out := p.Stats().Outstanding; out != 0 {
		return fmt.Errorf("%d blocks not returned to the pool", out)
	}
	return nil
}
