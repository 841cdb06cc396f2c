package moments

import (
	"fmt"
	"math"

	"github.com/robert-malhotra/go-rasterstream/internal/block"
)

// Columns accumulates per-band, per-column sums of a raster: the input to
// column moment matching.
type Columns struct {
	bands int
	width int
	Count []int64   // pixels seen per column
	Sum   []float64 // indexed band*width + column
	SumSq []float64
	Min   []float64
	Max   []float64
}

// NewColumns returns an empty column accumulator.
func NewColumns(bands, width int) *Columns {
	c := &Columns{
		bands: bands,
		width: width,
		Count: make([]int64, width),
		Sum:   make([]float64, bands*width),
		SumSq: make([]float64, bands*width),
		Min:   make([]float64, bands*width),
		Max:   make([]float64, bands*width),
	}
	for i := range c.Min {
		c.Min[i] = math.Inf(1)
		c.Max[i] = math.Inf(-1)
	}
	return c
}

// AddBlock accumulates every sample of b at its image column.
func (c *Columns) AddBlock(b *block.Block) error {
	if b.NumBands() != c.bands {
		return fmt.Errorf("block has %d bands, accumulator %d", b.NumBands(), c.bands)
	}
	r := b.Rect
	if r.X+r.W > c.width {
		return fmt.Errorf("block %v exceeds width %d", r, c.width)
	}
	for k := 0; k < c.bands; k++ {
		lo, hi := k*c.width+r.X, k*c.width+r.X+r.W
		sum, sumSq := c.Sum[lo:hi], c.SumSq[lo:hi]
		mins, maxs := c.Min[lo:hi], c.Max[lo:hi]
		for y := 0; y < r.H; y++ {
			for x := 0; x < r.W; x++ {
				v := b.At(k, x, y)
				sum[x] += v
				sumSq[x] += v * v
				mins[x] = math.Min(mins[x], v)
				maxs[x] = math.Max(maxs[x], v)
			}
		}
	}
	for x := r.X; x < r.X+r.W; x++ {
		c.Count[x] += int64(r.H)
	}
	return nil
}

// Merge adds the sums of o into c.
func (c *Columns) Merge(o *Columns) error {
	if o.bands != c.bands || o.width != c.width {
		return fmt.Errorf("merging %dx%d column sums into %dx%d", o.bands, o.width, c.bands, c.width)
	}
	for i := range c.Count {
		c.Count[i] += o.Count[i]
	}
	for i := range c.Sum {
		c.Sum[i] += o.Sum[i]
		c.SumSq[i] += o.SumSq[i]
		c.Min[i] = math.Min(c.Min[i], o.Min[i])
		c.Max[i] = math.Max(c.Max[i], o.Max[i])
	}
	return nil
}

// Band returns the column means and standard deviations of band position k.
func (c *Columns) Band(k int) (mean, std []float64) {
	mean = make([]float64, c.width)
	std = make([]float64, c.width)
	for x := 0; x < c.width; x++ {
		n := float64(c.Count[x])
		if n == 0 {
			continue
		}
		i := k*c.width + x
		mean[x] = c.Sum[i] / n
		std[x] = stdDev(c.Sum[i], c.SumSq[i], n, c.Min[i] == c.Max[i])
	}
	return mean, std
}

// Bands returns the number of bands.
func (c *Columns) Bands() int { return c.bands }

// Width returns the number of columns.
func (c *Columns) Width() int { return c.width }
