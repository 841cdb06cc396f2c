// Package moments accumulates raw statistical moments of multi-band pixels
// and turns merged moments into mean, standard deviation, covariance and
// correlation.
//
// Only raw sums are accumulated: Σx, Σx² and Σxᵢxⱼ per band pair. Sums are
// commutative and associative, so per-worker accumulators can be merged in
// any grouping and the result does not depend on how blocks were split
// between workers.
package moments

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/robert-malhotra/go-rasterstream/internal/block"
)

// Accumulator holds the raw moments of a stream of n-band pixel vectors.
// It is owned by a single goroutine until merged.
type Accumulator struct {
	n     int
	Count int64
	Sum   []float64
	SumSq []float64
	// Cross is the packed upper triangle of Σxᵢxⱼ for i <= j, see Tri.
	Cross []float64
	Min   []float64
	Max   []float64

	px []float64
}

// New returns an empty accumulator for n bands.
func New(n int) *Accumulator {
	a := &Accumulator{
		n:     n,
		Sum:   make([]float64, n),
		SumSq: make([]float64, n),
		Cross: make([]float64, n*(n+1)/2),
		Min:   make([]float64, n),
		Max:   make([]float64, n),
		px:    make([]float64, n),
	}
	for i := range a.Min {
		a.Min[i] = math.Inf(1)
		a.Max[i] = math.Inf(-1)
	}
	return a
}

// Tri returns the packed index of (i, j), i <= j, in an n x n upper triangle.
func Tri(n, i, j int) int {
	return i*(2*n-i-1)/2 + j
}

// Bands returns the number of bands.
func (a *Accumulator) Bands() int {
	return a.n
}

// Add accumulates one pixel vector.
func (a *Accumulator) Add(px []float64) {
	n := a.n
	for i, v := range px {
		a.Sum[i] += v
		a.SumSq[i] += v * v
		if v < a.Min[i] {
			a.Min[i] = v
		}
		if v > a.Max[i] {
			a.Max[i] = v
		}
		row := a.Cross[Tri(n, i, i) : Tri(n, i, n-1)+1]
		for j, w := range px[i:] {
			row[j] += v * w
		}
	}
	a.Count++
}

// AddBlock accumulates every pixel of b.
func (a *Accumulator) AddBlock(b *block.Block) error {
	if b.NumBands() != a.n {
		return fmt.Errorf("block has %d bands, accumulator %d", b.NumBands(), a.n)
	}
	for i, area := 0, b.Rect.Area(); i < area; i++ {
		b.Pixel(i, a.px)
		a.Add(a.px)
	}
	return nil
}

// Merge adds the moments of o into a.
func (a *Accumulator) Merge(o *Accumulator) error {
	if o.n != a.n {
		return fmt.Errorf("merging %d-band moments into %d-band moments", o.n, a.n)
	}
	a.Count += o.Count
	for i := range a.Sum {
		a.Sum[i] += o.Sum[i]
		a.SumSq[i] += o.SumSq[i]
		a.Min[i] = math.Min(a.Min[i], o.Min[i])
		a.Max[i] = math.Max(a.Max[i], o.Max[i])
	}
	for i := range a.Cross {
		a.Cross[i] += o.Cross[i]
	}
	return nil
}

// Merge combines partial accumulators, in order, into a new accumulator.
func Merge(parts ...*Accumulator) (*Accumulator, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no partial moments to merge")
	}
	total := New(parts[0].n)
	for i, p := range parts {
		if err := total.Merge(p); err != nil {
			return nil, fmt.Errorf("partial %d: %w", i, err)
		}
	}
	return total, nil
}

// Result holds statistics derived from merged moments.
type Result struct {
	Pixels      int64
	Mean        []float64
	StdDev      []float64
	Min         []float64
	Max         []float64
	Covariance  *mat.SymDense
	Correlation *mat.SymDense
}

// Finalize derives population statistics over n pixels.
func (a *Accumulator) Finalize(n int64) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cannot derive statistics over %d pixels", n)
	}
	nb := a.n
	N := float64(n)
	r := &Result{
		Pixels:      n,
		Mean:        make([]float64, nb),
		StdDev:      make([]float64, nb),
		Min:         append([]float64(nil), a.Min...),
		Max:         append([]float64(nil), a.Max...),
		Covariance:  mat.NewSymDense(nb, nil),
		Correlation: mat.NewSymDense(nb, nil),
	}

	for b := 0; b < nb; b++ {
		r.Mean[b] = a.Sum[b] / N
	}
	for b := 0; b < nb; b++ {
		r.StdDev[b] = stdDev(a.Sum[b], a.SumSq[b], N, a.Min[b] == a.Max[b])
	}
	for i := 0; i < nb; i++ {
		for j := i; j < nb; j++ {
			cov := a.Cross[Tri(nb, i, j)]/N - r.Mean[i]*r.Mean[j]
			switch {
			case i == j:
				cov = r.StdDev[i] * r.StdDev[i]
			case r.StdDev[i] == 0 || r.StdDev[j] == 0:
				cov = 0
			}
			r.Covariance.SetSym(i, j, cov)

			var corr float64
			switch {
			case i == j:
				corr = 1
			case r.StdDev[i] == 0 || r.StdDev[j] == 0:
				corr = 0
			default:
				corr = math.Max(-1, math.Min(1, cov/(r.StdDev[i]*r.StdDev[j])))
			}
			r.Correlation.SetSym(i, j, corr)
		}
	}
	return r, nil
}

// stdDev returns sqrt(max(Σx²/n - mean², 0)). A constant series has exactly
// zero spread even when its value has no exact float64 square.
func stdDev(sum, sumSq, n float64, constant bool) float64 {
	if constant {
		return 0
	}
	mean := sum / n
	return math.Sqrt(math.Max(sumSq/n-mean*mean, 0))
}
