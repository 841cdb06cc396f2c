// Package block defines the unit of work of the streaming engine: a
// rectangle of pixels plus an owned sample buffer, the planner that tiles
// an image into rectangles, and the pool that recycles buffers between
// producers and consumers.
package block

import (
	"fmt"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// Block is a rectangle of pixels for a fixed band selection and layout.
//
// A Block exclusively owns Data. Its capacity is fixed when the block is
// made; Reset changes the rectangle and the logical length between uses.
type Block struct {
	// Seq is the index of Rect in the plan.
	Seq  int
	Rect rasterio.Rect

	// Bands are the 1-based source bands, in buffer order.
	Bands      []int
	Interleave rasterio.Interleave

	// Data holds Rect.Area()*len(Bands) samples laid out per Interleave.
	Data []float64
}

// New makes a block able to hold maxArea pixels of the given bands.
func New(maxArea int, bands []int, il rasterio.Interleave) *Block {
	return &Block{
		Bands:      bands,
		Interleave: il,
		Data:       make([]float64, 0, maxArea*len(bands)),
	}
}

// Reset points the block at a new rectangle and resizes Data to match.
func (b *Block) Reset(seq int, r rasterio.Rect) error {
	n := r.Area() * len(b.Bands)
	if n > cap(b.Data) {
		return fmt.Errorf("block %v needs %d samples, buffer holds %d", r, n, cap(b.Data))
	}
	b.Seq = seq
	b.Rect = r
	b.Data = b.Data[:n]
	return nil
}

// NumBands returns the number of bands in the block.
func (b *Block) NumBands() int {
	return len(b.Bands)
}

// Index returns the position in Data of band position k at local (x, y).
func (b *Block) Index(k, x, y int) int {
	return b.Interleave.Index(len(b.Bands), b.Rect.W, b.Rect.H, k, x, y)
}

// At returns the sample of band position k at local (x, y).
func (b *Block) At(k, x, y int) float64 {
	return b.Data[b.Index(k, x, y)]
}

// Pixel gathers the band vector of pixel i (row-major within the block)
// into dst, which must have NumBands elements.
func (b *Block) Pixel(i int, dst []float64) {
	n := len(b.Bands)
	if b.Interleave == rasterio.BIP {
		copy(dst, b.Data[i*n:(i+1)*n])
		return
	}
	bs, xs, ys := b.Interleave.Strides(n, b.Rect.W, b.Rect.H)
	base := (i%b.Rect.W)*xs + (i/b.Rect.W)*ys
	for k := range dst {
		dst[k] = b.Data[base+k*bs]
	}
}

