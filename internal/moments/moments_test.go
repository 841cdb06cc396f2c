package moments

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/robert-malhotra/go-rasterstream/internal/block"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

func bsqBlock(t *testing.T, r rasterio.Rect, bands ...[]float64) *block.Block {
	t.Helper()
	sel := rasterio.AllBands(len(bands))
	b := block.New(r.Area(), sel, rasterio.BSQ)
	require.NoError(t, b.Reset(0, r))
	for k, band := range bands {
		copy(b.Data[k*r.Area():], band)
	}
	return b
}

func TestTri(t *testing.T) {
	n := 4
	want := 0
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			assert.Equal(t, want, Tri(n, i, j), "(%d,%d)", i, j)
			want++
		}
	}
}

func TestAntiCorrelatedExample(t *testing.T) {
	up := make([]float64, 16)
	down := make([]float64, 16)
	for i := range up {
		up[i] = float64(i + 1)
		down[i] = float64(16 - i)
	}
	acc := New(2)
	require.NoError(t, acc.AddBlock(bsqBlock(t, rasterio.Rect{W: 4, H: 4}, up, down)))

	res, err := acc.Finalize(16)
	require.NoError(t, err)

	assert.Equal(t, []float64{8.5, 8.5}, res.Mean)
	assert.InDelta(t, math.Sqrt(21.25), res.StdDev[0], 1e-12)
	assert.InDelta(t, math.Sqrt(21.25), res.StdDev[1], 1e-12)
	assert.InDelta(t, 21.25, res.Covariance.At(0, 0), 1e-12)
	assert.InDelta(t, -21.25, res.Covariance.At(0, 1), 1e-12)
	assert.InDelta(t, -1, res.Correlation.At(0, 1), 1e-12)
	assert.Equal(t, []float64{1, 1}, res.Min)
	assert.Equal(t, []float64{16, 16}, res.Max)
}

func TestConstantBandHasZeroCorrelation(t *testing.T) {
	vary := []float64{1, 5, 2, 8, 3, 9}
	flat := []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	acc := New(2)
	require.NoError(t, acc.AddBlock(bsqBlock(t, rasterio.Rect{W: 3, H: 2}, vary, flat)))

	res, err := acc.Finalize(6)
	require.NoError(t, err)
	assert.Zero(t, res.StdDev[1])
	assert.Zero(t, res.Correlation.At(0, 1))
	assert.Zero(t, res.Covariance.At(0, 1))
	assert.Equal(t, 1.0, res.Correlation.At(1, 1))
	assert.False(t, math.IsNaN(res.Correlation.At(1, 0)))
}

func TestHighMeanSmallSpread(t *testing.T) {
	high := make([]float64, 16)
	ramp := make([]float64, 16)
	for i := range high {
		high[i] = 1e6 + 0.5
		if i%2 == 1 {
			high[i] = 1e6 - 0.5
		}
		ramp[i] = float64(i)
	}
	acc := New(2)
	require.NoError(t, acc.AddBlock(bsqBlock(t, rasterio.Rect{W: 4, H: 4}, high, ramp)))
	res, err := acc.Finalize(16)
	require.NoError(t, err)

	assert.InDelta(t, stat.PopStdDev(high, nil), res.StdDev[0], 5e-3)
	assert.InDelta(t, stat.PopStdDev(ramp, nil), res.StdDev[1], 1e-9)
	assert.InDelta(t, stat.Covariance(high, ramp, nil)*15/16, res.Covariance.At(0, 1), 1e-6)
	assert.InDelta(t, stat.Correlation(high, ramp, nil), res.Correlation.At(0, 1), 2e-3)
	assert.Less(t, res.Correlation.At(0, 1), 0.0)
}

func TestConstantUnrepresentableSquare(t *testing.T) {
	// 0.1 has no exact square, so Σx²/n - mean² need not cancel.
	flat := make([]float64, 49)
	for i := range flat {
		flat[i] = 1e5 + 0.1
	}
	acc := New(1)
	require.NoError(t, acc.AddBlock(bsqBlock(t, rasterio.Rect{W: 7, H: 7}, flat)))
	res, err := acc.Finalize(49)
	require.NoError(t, err)
	assert.Zero(t, res.StdDev[0])
	assert.Zero(t, res.Covariance.At(0, 0))

	c := NewColumns(1, 7)
	require.NoError(t, c.AddBlock(bsqBlock(t, rasterio.Rect{W: 7, H: 7}, flat)))
	_, std := c.Band(0)
	assert.Equal(t, make([]float64, 7), std)
}

func TestMergeMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const nb, w, h = 3, 9, 7
	bands := make([][]float64, nb)
	for k := range bands {
		bands[k] = make([]float64, w*h)
		for i := range bands[k] {
			bands[k][i] = rng.NormFloat64()*10 + float64(k)*rng.Float64()*float64(i)
		}
	}

	// Split the image into row strips and accumulate in three partials.
	parts := []*Accumulator{New(nb), New(nb), New(nb)}
	for y := 0; y < h; y++ {
		r := rasterio.Rect{Y: y, W: w, H: 1}
		row := make([][]float64, nb)
		for k := range row {
			row[k] = bands[k][y*w : (y+1)*w]
		}
		require.NoError(t, parts[y%3].AddBlock(bsqBlock(t, r, row...)))
	}
	forward, err := Merge(parts...)
	require.NoError(t, err)
	backward, err := Merge(parts[2], parts[0], parts[1])
	require.NoError(t, err)

	res, err := forward.Finalize(w * h)
	require.NoError(t, err)
	alt, err := backward.Finalize(w * h)
	require.NoError(t, err)

	n := float64(w * h)
	for i := 0; i < nb; i++ {
		assert.InDelta(t, stat.Mean(bands[i], nil), res.Mean[i], 1e-9)
		for j := 0; j < nb; j++ {
			popCov := stat.Covariance(bands[i], bands[j], nil) * (n - 1) / n
			assert.InDelta(t, popCov, res.Covariance.At(i, j), 1e-8)
			assert.InDelta(t, res.Covariance.At(i, j), res.Covariance.At(j, i), 0)
			assert.InDelta(t, res.Covariance.At(i, j), alt.Covariance.At(i, j), 1e-9)
			if i != j {
				assert.InDelta(t, stat.Correlation(bands[i], bands[j], nil), res.Correlation.At(i, j), 1e-9)
			}
			c := res.Correlation.At(i, j)
			assert.True(t, c >= -1 && c <= 1)
		}
	}
}

func TestMergeMismatch(t *testing.T) {
	_, err := Merge(New(2), New(3))
	assert.Error(t, err)
	_, err = Merge()
	assert.Error(t, err)
	_, err = New(1).Finalize(0)
	assert.Error(t, err)
}

func TestColumns(t *testing.T) {
	c := NewColumns(1, 4)
	left := bsqBlock(t, rasterio.Rect{X: 0, W: 2, H: 2}, []float64{1, 10, 3, 10})
	right := bsqBlock(t, rasterio.Rect{X: 2, W: 2, H: 2}, []float64{5, 0, 5, 4})
	require.NoError(t, c.AddBlock(left))

	other := NewColumns(1, 4)
	require.NoError(t, other.AddBlock(right))
	require.NoError(t, c.Merge(other))

	mean, std := c.Band(0)
	assert.Equal(t, []float64{2, 10, 5, 2}, mean)
	assert.Equal(t, []float64{1, 0, 0, 2}, std)
	assert.Equal(t, []int64{2, 2, 2, 2}, c.Count)

	assert.Error(t, c.Merge(NewColumns(2, 4)))

	// A small spread on a large offset survives.
	big := NewColumns(1, 1)
	require.NoError(t, big.AddBlock(bsqBlock(t, rasterio.Rect{W: 1, H: 4}, []float64{1e6 + 0.5, 1e6 - 0.5, 1e6 + 0.5, 1e6 - 0.5})))
	_, std = big.Band(0)
	assert.InDelta(t, 0.5, std[0], 5e-3)
}
