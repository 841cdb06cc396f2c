package raster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
	"github.com/robert-malhotra/go-rasterstream/rasterio/memory"
)

func TestWindowTarget(t *testing.T) {
	// Triangular weights 1,2,1 over alternating columns average to 5.
	v := []float64{0, 10, 0, 10, 0, 10}
	got := windowTarget(v, 3)
	assert.Equal(t, []float64{0, 5, 5, 5, 5, 10}, got)

	// An even length is widened to the next odd one.
	assert.Equal(t, got, windowTarget(v, 2))

	// A linear ramp is preserved away from the edges.
	ramp := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}
	got = windowTarget(ramp, 5)
	assert.InDeltaSlice(t, []float64{2, 3, 4, 5, 6}, got[2:7], 1e-12)
	assert.Equal(t, []float64{0.5, 0.5}, got[:2])
	assert.Equal(t, []float64{7.5, 7.5}, got[7:])

	// Narrower than the window: every column takes the overall mean.
	assert.Equal(t, []float64{2, 2, 2}, windowTarget([]float64{1, 2, 3}, 5))

	// A window of one leaves values unchanged.
	assert.Equal(t, ramp, windowTarget(ramp, 1))
}

func TestPolyTarget(t *testing.T) {
	v := make([]float64, 11)
	for c := range v {
		x := -1 + 2*float64(c)/10
		v[c] = 3 - 2*x + 0.5*x*x
	}
	got, err := polyTarget(v, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, v, got, 1e-9)

	// The degree is capped by the number of columns.
	got, err = polyTarget([]float64{4, 6}, 5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, 6}, got, 1e-9)

	got, err = polyTarget([]float64{9}, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{9}, got, 1e-9)
}

func TestParseStripeMethod(t *testing.T) {
	m, err := ParseStripeMethod("poly")
	require.NoError(t, err)
	assert.Equal(t, PolyFit, m)

	m, err = ParseStripeMethod("window")
	require.NoError(t, err)
	assert.Equal(t, MovingWindow, m)

	_, err = ParseStripeMethod("fft")
	assert.ErrorIs(t, err, ErrInvalidOption)
}

// stripedImage returns a band whose pixel (x, y) is y + offsets[x].
func stripedImage(width, height int, offsets []float64) []float64 {
	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[y*width+x] = float64(y) + offsets[x]
		}
	}
	return out
}

func TestRemoveStripesMovingWindow(t *testing.T) {
	const width, height = 10, 12
	offsets := make([]float64, width)
	for x := range offsets {
		if x%2 == 1 {
			offsets[x] = 10
		}
	}
	striped := stripedImage(width, height, offsets)
	input := putImage(t, "img", width, height, rasterio.Float64, [][]float64{striped, striped})
	output := outPath(t, "clean")

	err := RemoveStripes(context.Background(), input, output,
		WithFormat(memory.DriverName),
		WithStripeWindow(3),
		WithBlockSize(4),
		WithConsumers(3),
		WithWriters(2),
	)
	require.NoError(t, err)

	for b := 1; b <= 2; b++ {
		got := band(t, output, b)
		for y := 0; y < height; y++ {
			// Edge columns keep their own statistics.
			assert.Equal(t, striped[y*width], got[y*width])
			assert.Equal(t, striped[y*width+width-1], got[y*width+width-1])
			for x := 1; x < width-1; x++ {
				assert.InDelta(t, float64(y)+5, got[y*width+x], 1e-9, "band %d (%d,%d)", b, x, y)
			}
		}
	}
}

func TestRemoveStripesPolyFit(t *testing.T) {
	const width, height = 9, 7
	// A linear trend across columns has no stripes to remove.
	offsets := make([]float64, width)
	for x := range offsets {
		offsets[x] = 2 * float64(x)
	}
	smooth := stripedImage(width, height, offsets)
	input := putImage(t, "img", width, height, rasterio.Float64, [][]float64{smooth})
	output := outPath(t, "clean")

	err := RemoveStripes(context.Background(), input, output,
		WithFormat(memory.DriverName),
		WithStripeMethod(PolyFit),
		WithStripeWindow(1),
		WithBlockShape(StripBlocks),
		WithBlockSize(2),
	)
	require.NoError(t, err)
	assert.InDeltaSlice(t, smooth, band(t, output, 1), 1e-9)
}

func TestRemoveStripesKeepsPixelType(t *testing.T) {
	const width, height = 6, 4
	offsets := []float64{0, 4, 0, 4, 0, 4}
	input := putImage(t, "img", width, height, rasterio.Byte,
		[][]float64{stripedImage(width, height, offsets)})
	output := outPath(t, "clean")

	require.NoError(t, RemoveStripes(context.Background(), input, output,
		WithFormat(memory.DriverName), WithStripeWindow(3)))

	ds, err := rasterio.Open(output, rasterio.ReadOnly)
	require.NoError(t, err)
	defer ds.Close()
	assert.Equal(t, rasterio.Byte, ds.Geometry().PixelType)

	// Interior columns move to y + 2 and are rounded back to integers.
	got := band(t, output, 1)
	for y := 0; y < height; y++ {
		assert.Equal(t, float64(y)+2, got[y*width+2])
	}
}

func TestRemoveStripesReadFailureRemovesOutput(t *testing.T) {
	const width, height = 16, 16
	putImage(t, "img", width, height, rasterio.Float64, randomImage(2, width, height, 1))
	input := faultPrefix + t.Name() + "/img"
	faults.Store(input, fault{read: true, x: 0, y: 0})
	t.Cleanup(func() { faults.Delete(input) })

	output := outPath(t, "clean")
	err := RemoveStripes(context.Background(), input, output, WithFormat(memory.DriverName))
	require.ErrorIs(t, err, ErrBlockRead)
	assert.False(t, memory.Exists(output))
}
