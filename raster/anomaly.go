package raster

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/robert-malhotra/go-rasterstream/internal/block"
	"github.com/robert-malhotra/go-rasterstream/internal/linalg"
	"github.com/robert-malhotra/go-rasterstream/internal/pipeline"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// RXKind selects the anomaly score. With μ the mean vector, K the
// covariance and 1 the all-ones vector:
//
//	RXD     (x-μ)ᵀ K⁻¹ (x-μ)
//	UTD     (1-μ)ᵀ K⁻¹ (x-μ)
//	RXDUTD  (x-1)ᵀ K⁻¹ (x-μ)
type RXKind int

const (
	RXD RXKind = iota
	UTD
	RXDUTD
)

func (k RXKind) String() string {
	switch k {
	case RXD:
		return "rxd"
	case UTD:
		return "utd"
	case RXDUTD:
		return "rxd-utd"
	default:
		return fmt.Sprintf("RXKind(%d)", int(k))
	}
}

// ParseRXKind parses "rxd", "utd" or "rxd-utd".
func ParseRXKind(s string) (RXKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rxd", "":
		return RXD, nil
	case "utd":
		return UTD, nil
	case "rxd-utd", "rxdutd":
		return RXDUTD, nil
	}
	return RXD, fmt.Errorf("%w: unknown RX kind %q", ErrInvalidOption, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k RXKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *RXKind) UnmarshalText(b []byte) error {
	v, err := ParseRXKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// AnomalyReport summarises an anomaly pass.
type AnomalyReport struct {
	Kind          RXKind        `yaml:"kind"`
	Output        string        `yaml:"output"`
	PseudoInverse bool          `yaml:"pseudo_inverse"`
	Statistics    *Statistics   `yaml:"statistics"`
	MinScore      float64       `yaml:"min_score"`
	MaxScore      float64       `yaml:"max_score"`
	MeanScore     float64       `yaml:"mean_score"`
	Blocks        int           `yaml:"blocks"`
	Duration      time.Duration `yaml:"duration"`
}

// DetectAnomalies writes a single-band Float32 raster to output holding the
// RX score of every pixel of input.
//
// Unless WithStatistics supplies them, a statistics pass runs first. A
// covariance that is not safely invertible fails with
// ErrSingularCovariance before output is created; WithPseudoInverse scores
// with the pseudo-inverse instead. Any failure after creation removes
// output.
func DetectAnomalies(ctx context.Context, input, output string, opts ...Option) (*AnomalyReport, error) {
	start := time.Now()
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	passes := 2
	if o.stats != nil {
		passes = 1
	}

	r, err := newRun(input, passes, opts)
	if err != nil {
		return nil, err
	}
	r.progress.Start()

	rep, err := r.detectAnomalies(ctx, output)
	err = r.done("anomaly detection", err)
	if err != nil {
		return nil, err
	}
	rep.Duration = time.Since(start)
	return rep, nil
}

func (r *run) detectAnomalies(ctx context.Context, output string) (*AnomalyReport, error) {
	stats := r.opts.stats
	if stats == nil {
		var err error
		if stats, err = r.statistics(ctx); err != nil {
			return nil, err
		}
	} else if err := stats.validate(len(r.bands)); err != nil {
		return nil, err
	}

	inv, err := r.inverse(stats.CovarianceMatrix())
	if err != nil {
		return nil, err
	}

	if err := r.createOutput(output, 1, rasterio.Float32); err != nil {
		return nil, err
	}

	scorers := make([]*rxScorer, r.opts.consumers)
	st, err := pipeline.RunTransform(ctx, r.config("rx"), r.output(output, 1), func(w int) (pipeline.Transformer, error) {
		scorers[w] = newRXScorer(r.opts.kind, stats.Mean, inv)
		return scorers[w], nil
	})
	if err != nil {
		r.removeOutput(output)
		return nil, err
	}

	rep := &AnomalyReport{
		Kind:          r.opts.kind,
		Output:        output,
		PseudoInverse: r.opts.pinv,
		Statistics:    stats,
		MinScore:      math.Inf(1),
		MaxScore:      math.Inf(-1),
		Blocks:        st.Blocks,
	}
	var sum float64
	var n int64
	for _, s := range scorers {
		rep.MinScore = math.Min(rep.MinScore, s.min)
		rep.MaxScore = math.Max(rep.MaxScore, s.max)
		sum += s.sum
		n += s.n
	}
	if n > 0 {
		rep.MeanScore = sum / float64(n)
	}
	r.log.WithFields(logrus.Fields{
		"kind": rep.Kind,
		"min":  rep.MinScore,
		"max":  rep.MaxScore,
		"mean": rep.MeanScore,
	}).Info("anomaly scores written")
	return rep, nil
}

// inverse returns the row-major covariance inverse used for scoring.
func (r *run) inverse(cov *mat.SymDense) ([]float64, error) {
	if r.opts.pinv {
		inv, err := linalg.PseudoInverse(cov)
		if err != nil {
			return nil, err
		}
		return linalg.RowMajor(inv), nil
	}
	inv, err := linalg.Invert(cov, r.opts.conditionLimit)
	if err != nil {
		return nil, err
	}
	return linalg.RowMajor(inv), nil
}

// rxScorer scores the pixels of one consumer's blocks and keeps running
// score statistics.
type rxScorer struct {
	kind RXKind
	mean []float64
	inv  []float64

	px  []float64
	d   []float64
	u   []float64
	min float64
	max float64
	sum float64
	n   int64
}

func newRXScorer(kind RXKind, mean, inv []float64) *rxScorer {
	n := len(mean)
	s := &rxScorer{
		kind: kind,
		mean: mean,
		inv:  inv,
		px:   make([]float64, n),
		d:    make([]float64, n),
		u:    make([]float64, n),
		min:  math.Inf(1),
		max:  math.Inf(-1),
	}
	if kind == UTD {
		for k, m := range mean {
			s.u[k] = 1 - m
		}
	}
	return s
}

// Score returns the score of one pixel vector.
func (s *rxScorer) Score(px []float64) float64 {
	for k, v := range px {
		s.d[k] = v - s.mean[k]
	}
	switch s.kind {
	case UTD:
		return linalg.QuadForm(s.inv, s.u, s.d)
	case RXDUTD:
		for k, v := range px {
			s.u[k] = v - 1
		}
		return linalg.QuadForm(s.inv, s.u, s.d)
	default:
		return linalg.QuadForm(s.inv, s.d, s.d)
	}
}

func (s *rxScorer) Transform(in, out *block.Block) error {
	for i, area := 0, in.Rect.Area(); i < area; i++ {
		in.Pixel(i, s.px)
		v := s.Score(s.px)
		out.Data[i] = v
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
		s.sum += v
	}
	s.n += int64(in.Rect.Area())
	return nil
}
