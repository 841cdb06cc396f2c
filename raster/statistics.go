package raster

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/robert-malhotra/go-rasterstream/internal/linalg"
	"github.com/robert-malhotra/go-rasterstream/internal/moments"
	"github.com/robert-malhotra/go-rasterstream/internal/pipeline"
)

// Statistics are whole-image band statistics. Standard deviations and
// covariances are population values (divided by the pixel count).
type Statistics struct {
	// Bands are the 1-based input bands the statistics describe, in order.
	Bands       []int       `yaml:"bands"`
	PixelCount  int64       `yaml:"pixel_count"`
	Mean        []float64   `yaml:"mean"`
	StdDev      []float64   `yaml:"stddev"`
	Min         []float64   `yaml:"min"`
	Max         []float64   `yaml:"max"`
	Covariance  [][]float64 `yaml:"covariance"`
	Correlation [][]float64 `yaml:"correlation"`
}

func newStatistics(bands []int, r *moments.Result) *Statistics {
	return &Statistics{
		Bands:       append([]int(nil), bands...),
		PixelCount:  r.Pixels,
		Mean:        r.Mean,
		StdDev:      r.StdDev,
		Min:         r.Min,
		Max:         r.Max,
		Covariance:  rows(r.Covariance),
		Correlation: rows(r.Correlation),
	}
}

func rows(m mat.Symmetric) [][]float64 {
	n := m.SymmetricDim()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// CovarianceMatrix returns the covariance as a symmetric matrix.
func (s *Statistics) CovarianceMatrix() *mat.SymDense {
	n := len(s.Covariance)
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.SetSym(i, j, s.Covariance[i][j])
		}
	}
	return m
}

// Invertible reports whether the covariance passes the inversion check RX
// scoring applies at the default condition limit. A false result means
// DetectAnomalies needs WithPseudoInverse.
func (s *Statistics) Invertible() bool {
	return linalg.Invertible(s.CovarianceMatrix(), linalg.DefaultConditionLimit)
}

func (s *Statistics) validate(bands int) error {
	if len(s.Mean) != bands || len(s.Covariance) != bands {
		return fmt.Errorf("%w: statistics describe %d bands, %d selected", ErrInvalidOption, len(s.Mean), bands)
	}
	for i, row := range s.Covariance {
		if len(row) != bands {
			return fmt.Errorf("%w: covariance row %d has %d entries", ErrInvalidOption, i, len(row))
		}
	}
	return nil
}

// ComputeStatistics streams input once and returns the mean, standard
// deviation, covariance and correlation of the selected bands.
func ComputeStatistics(ctx context.Context, input string, opts ...Option) (*Statistics, error) {
	r, err := newRun(input, 1, opts)
	if err != nil {
		return nil, err
	}
	r.progress.Start()

	s, err := r.statistics(ctx)
	if err = r.done("statistics", err); err != nil {
		return nil, err
	}
	return s, nil
}

// statistics runs the moment pass and merges the per-consumer moments.
func (r *run) statistics(ctx context.Context) (*Statistics, error) {
	parts := make([]*moments.Accumulator, r.opts.consumers)
	_, err := pipeline.Run(ctx, r.config("statistics"), func(w int) (pipeline.Consumer, error) {
		parts[w] = moments.New(len(r.bands))
		return pipeline.ConsumerFunc(parts[w].AddBlock), nil
	})
	if err != nil {
		return nil, err
	}

	total, err := moments.Merge(parts...)
	if err != nil {
		return nil, err
	}
	if want := r.geom.Pixels(); total.Count != want {
		return nil, fmt.Errorf("statistics pass saw %d pixels, image has %d", total.Count, want)
	}
	res, err := total.Finalize(total.Count)
	if err != nil {
		return nil, err
	}
	s := newStatistics(r.bands, res)
	r.log.WithField("pixels", s.PixelCount).Debug("statistics merged")
	return s, nil
}
