package memory

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

func seed(t *testing.T, path string) rasterio.Geometry {
	t.Helper()
	g := rasterio.Geometry{Width: 3, Height: 2, Bands: 2, PixelType: rasterio.Float64}
	require.NoError(t, Put(path, g, [][]float64{
		{1, 2, 3, 4, 5, 6},
		{10, 20, 30, 40, 50, 60},
	}))
	t.Cleanup(func() { _ = Driver{}.Remove(path) })
	return g
}

func TestReadBlockInterleaves(t *testing.T) {
	path := "mem://interleaves"
	seed(t, path)

	ds, err := rasterio.Open(path, rasterio.ReadOnly)
	require.NoError(t, err)
	defer ds.Close()

	r := rasterio.Rect{X: 1, Y: 0, W: 2, H: 2}
	tests := []struct {
		il   rasterio.Interleave
		want []float64
	}{
		{rasterio.BSQ, []float64{2, 3, 5, 6, 20, 30, 50, 60}},
		{rasterio.BIL, []float64{2, 3, 20, 30, 5, 6, 50, 60}},
		{rasterio.BIP, []float64{2, 20, 3, 30, 5, 50, 6, 60}},
	}
	for _, tt := range tests {
		t.Run(tt.il.String(), func(t *testing.T) {
			dst := make([]float64, 8)
			require.NoError(t, ds.ReadBlock(r, []int{1, 2}, tt.il, dst))
			assert.Equal(t, tt.want, dst)
		})
	}
}

func TestReadBlockBandSubset(t *testing.T) {
	path := "mem://subset"
	seed(t, path)

	ds, err := rasterio.Open(path, rasterio.ReadOnly)
	require.NoError(t, err)

	dst := make([]float64, 6)
	require.NoError(t, ds.ReadBlock(rasterio.Rect{W: 3, H: 2}, []int{2}, rasterio.BIP, dst))
	assert.Equal(t, []float64{10, 20, 30, 40, 50, 60}, dst)

	err = ds.ReadBlock(rasterio.Rect{X: 2, W: 2, H: 1}, []int{1}, rasterio.BSQ, make([]float64, 2))
	assert.ErrorIs(t, err, rasterio.ErrOutOfBounds)
	err = ds.ReadBlock(rasterio.Rect{W: 1, H: 1}, []int{3}, rasterio.BSQ, make([]float64, 1))
	assert.ErrorIs(t, err, rasterio.ErrOutOfBounds)
}

func TestCreateWriteQuantizes(t *testing.T) {
	path := "mem://create"
	g := rasterio.Geometry{Width: 2, Height: 2, Bands: 1, PixelType: rasterio.Byte}
	ds, err := rasterio.Create(DriverName, path, g)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rasterio.Remove(path) })

	require.NoError(t, ds.WriteBlock(rasterio.Rect{W: 2, H: 1}, 1, []float64{1.6, 300}))
	require.NoError(t, ds.WriteBlock(rasterio.Rect{Y: 1, W: 2, H: 1}, 1, []float64{-5, 7}))
	require.NoError(t, ds.Close())

	band, err := Band(path, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 255, 0, 7}, band)
}

func TestReadOnlyAndClosed(t *testing.T) {
	path := "mem://readonly"
	seed(t, path)

	ds, err := Driver{}.Open(path, rasterio.ReadOnly)
	require.NoError(t, err)
	err = ds.WriteBlock(rasterio.Rect{W: 1, H: 1}, 1, []float64{0})
	assert.ErrorIs(t, err, rasterio.ErrReadOnly)

	require.NoError(t, ds.Close())
	err = ds.ReadBlock(rasterio.Rect{W: 1, H: 1}, []int{1}, rasterio.BSQ, make([]float64, 1))
	assert.ErrorIs(t, err, rasterio.ErrClosed)
}

func TestOpenMissing(t *testing.T) {
	_, err := rasterio.Open("mem://does-not-exist", rasterio.ReadOnly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rasterio.ErrBackendOpen))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestGeoReferenceCopy(t *testing.T) {
	src := "mem://geo-src"
	seed(t, src)
	in, err := rasterio.Open(src, rasterio.Update)
	require.NoError(t, err)
	ref := rasterio.GeoReference{Transform: [6]float64{100, 30, 0, 200, 0, -30}, HasTransform: true, Projection: "EPSG:32650"}
	require.NoError(t, in.SetGeoReference(ref))

	dst := "mem://geo-dst"
	out, err := rasterio.Create(DriverName, dst, in.Geometry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rasterio.Remove(dst) })

	require.NoError(t, rasterio.CopyGeoReference(in, out))
	got, err := out.GeoReference()
	require.NoError(t, err)
	assert.Equal(t, ref, got)
}
