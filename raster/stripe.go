package raster

import (
	"context"
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-rasterstream/internal/block"
	"github.com/robert-malhotra/go-rasterstream/internal/linalg"
	"github.com/robert-malhotra/go-rasterstream/internal/moments"
	"github.com/robert-malhotra/go-rasterstream/internal/pipeline"
)

// StripeMethod selects how the target mean and standard deviation of each
// column are estimated.
type StripeMethod int

const (
	// MovingWindow smooths column statistics with a triangular window.
	MovingWindow StripeMethod = iota
	// PolyFit fits a polynomial across columns.
	PolyFit
)

func (m StripeMethod) String() string {
	switch m {
	case MovingWindow:
		return "window"
	case PolyFit:
		return "poly"
	default:
		return fmt.Sprintf("StripeMethod(%d)", int(m))
	}
}

// ParseStripeMethod parses "window" or "poly".
func ParseStripeMethod(s string) (StripeMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "window", "moving-window", "":
		return MovingWindow, nil
	case "poly", "polyfit":
		return PolyFit, nil
	}
	return MovingWindow, fmt.Errorf("%w: unknown stripe method %q", ErrInvalidOption, s)
}

// RemoveStripes removes vertical striping from every selected band by
// column moment matching and writes the result to output with the input's
// pixel type and georeference.
//
// A first pass collects per-column mean and standard deviation. A second
// pass maps every sample x of column c to g*(x - mean[c]) + target[c], with
// g = targetStd[c]/std[c], or 1 for a constant column.
func RemoveStripes(ctx context.Context, input, output string, opts ...Option) error {
	r, err := newRun(input, 2, opts)
	if err != nil {
		return err
	}
	r.progress.Start()

	err = r.removeStripes(ctx, output)
	err = r.done("stripe removal", err)
	return err
}

func (r *run) removeStripes(ctx context.Context, output string) error {
	nb := len(r.bands)
	parts := make([]*moments.Columns, r.opts.consumers)
	_, err := pipeline.Run(ctx, r.config("destripe-columns"), func(w int) (pipeline.Consumer, error) {
		parts[w] = moments.NewColumns(nb, r.geom.Width)
		return pipeline.ConsumerFunc(parts[w].AddBlock), nil
	})
	if err != nil {
		return err
	}
	cols := parts[0]
	for _, p := range parts[1:] {
		if err := cols.Merge(p); err != nil {
			return err
		}
	}

	m := &columnMapping{width: r.geom.Width}
	for k := 0; k < nb; k++ {
		mean, std := cols.Band(k)
		tm, ts, err := stripeTargets(r.opts.stripeMethod, r.opts.stripeWindow, mean, std)
		if err != nil {
			return err
		}
		m.add(mean, std, tm, ts)
	}
	r.log.WithField("method", r.opts.stripeMethod).Debug("column targets computed")

	if err := r.createOutput(output, nb, r.geom.PixelType); err != nil {
		return err
	}
	_, err = pipeline.RunTransform(ctx, r.config("destripe-apply"), r.output(output, nb), func(int) (pipeline.Transformer, error) {
		return m, nil
	})
	if err != nil {
		r.removeOutput(output)
		return err
	}
	return nil
}

// columnMapping holds, per band position and column, the offset and gain
// of the linear map applied to samples. It is read-only during the pass
// and shared by all consumers.
type columnMapping struct {
	width  int
	gain   [][]float64
	offset [][]float64
}

func (m *columnMapping) add(mean, std, targetMean, targetStd []float64) {
	gain := make([]float64, m.width)
	offset := make([]float64, m.width)
	for c := range gain {
		g := 1.0
		if std[c] != 0 {
			g = targetStd[c] / std[c]
		}
		gain[c] = g
		offset[c] = targetMean[c] - g*mean[c]
	}
	m.gain = append(m.gain, gain)
	m.offset = append(m.offset, offset)
}

func (m *columnMapping) Transform(in, out *block.Block) error {
	r := in.Rect
	area := r.Area()
	for k := range in.Bands {
		gain := m.gain[k][r.X : r.X+r.W]
		offset := m.offset[k][r.X : r.X+r.W]
		plane := out.Data[k*area : (k+1)*area]
		for y := 0; y < r.H; y++ {
			for x := 0; x < r.W; x++ {
				plane[y*r.W+x] = gain[x]*in.At(k, x, y) + offset[x]
			}
		}
	}
	return nil
}

// stripeTargets estimates the destriped column mean and standard deviation.
func stripeTargets(method StripeMethod, n int, mean, std []float64) (tm, ts []float64, err error) {
	switch method {
	case PolyFit:
		if tm, err = polyTarget(mean, n); err != nil {
			return nil, nil, err
		}
		if ts, err = polyTarget(std, n); err != nil {
			return nil, nil, err
		}
		return tm, ts, nil
	default:
		return windowTarget(mean, n), windowTarget(std, n), nil
	}
}

// windowTarget smooths v with a normalised triangular window of n columns
// (n forced odd). The h = (n-1)/2 columns at each edge take the mean of
// the h source columns there. Rows shorter than the window take the mean
// of all columns.
func windowTarget(v []float64, n int) []float64 {
	if n%2 == 0 {
		n++
	}
	w := len(v)
	out := make([]float64, w)
	if w < n {
		fill(out, average(v))
		return out
	}

	h := (n - 1) / 2
	weights := make([]float64, n)
	var total float64
	for i := range weights {
		weights[i] = float64(h + 1 - abs(i-h))
		total += weights[i]
	}
	for i := range weights {
		weights[i] /= total
	}

	for c := h; c < w-h; c++ {
		var s float64
		for i, wt := range weights {
			s += wt * v[c-h+i]
		}
		out[c] = s
	}
	if h > 0 {
		fill(out[:h], average(v[:h]))
		fill(out[w-h:], average(v[w-h:]))
	}
	return out
}

// polyTarget fits a polynomial of the given degree to v over columns
// scaled to [-1, 1] and evaluates it at every column.
func polyTarget(v []float64, degree int) ([]float64, error) {
	w := len(v)
	degree = min(degree, w-1)
	x := make([]float64, w)
	for c := range x {
		if w > 1 {
			x[c] = -1 + 2*float64(c)/float64(w-1)
		}
	}
	coef, err := linalg.PolyFit(x, v, degree)
	if err != nil {
		return nil, fmt.Errorf("fitting column statistics: %w", err)
	}
	out := make([]float64, w)
	for c, xc := range x {
		out[c] = linalg.PolyEval(coef, xc)
	}
	return out, nil
}

func average(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func fill(v []float64, x float64) {
	for i := range v {
		v[i] = x
	}
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
