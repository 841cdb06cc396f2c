package envi

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

const sampleHeader = `ENVI
description = {
  test scene}
samples = 4
lines = 3
bands = 2
header offset = 0
file type = ENVI Standard
data type = 2
interleave = bil
byte order = 1
map info = {UTM, 1.000, 1.000, 500000.000, 4200000.000, 30.0, 30.0, 50, North, WGS-84, units=Meters}
coordinate system string = {PROJCS["WGS_1984_UTM_Zone_50N"]}
wavelength units = Nanometers
`

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(strings.NewReader(sampleHeader))
	require.NoError(t, err)

	assert.Equal(t, 4, h.Samples)
	assert.Equal(t, 3, h.Lines)
	assert.Equal(t, 2, h.Bands)
	assert.Equal(t, rasterio.BIL, h.Interleave)
	assert.True(t, h.BigEndian)
	assert.Equal(t, "test scene", h.Description)
	assert.Equal(t, "Nanometers", h.Other["wavelength units"])

	g, err := h.Geometry()
	require.NoError(t, err)
	assert.Equal(t, rasterio.Geometry{Width: 4, Height: 3, Bands: 2, PixelType: rasterio.Int16}, g)

	ref, err := h.GeoReference()
	require.NoError(t, err)
	assert.True(t, ref.HasTransform)
	assert.Equal(t, [6]float64{500000, 30, 0, 4200000, 0, -30}, ref.Transform)
	assert.Equal(t, `PROJCS["WGS_1984_UTM_Zone_50N"]`, ref.Projection)
}

func TestParseHeaderErrors(t *testing.T) {
	_, err := ParseHeader(strings.NewReader("GDAL\nsamples = 1\n"))
	assert.ErrorIs(t, err, ErrNotENVI)

	_, err = ParseHeader(strings.NewReader("ENVI\nsamples = 1\n"))
	assert.Error(t, err)

	h, err := ParseHeader(strings.NewReader("ENVI\nsamples = 1\nlines = 1\nbands = 1\ndata type = 6\n"))
	require.NoError(t, err)
	_, err = h.Geometry()
	assert.ErrorIs(t, err, rasterio.ErrUnsupportedPixelType)
}

func TestMapInfoReferencePixel(t *testing.T) {
	h := &Header{MapInfo: []string{"Arbitrary", "2", "3", "1000", "2000", "10", "5"}}
	ref, err := h.GeoReference()
	require.NoError(t, err)
	assert.Equal(t, [6]float64{990, 10, 0, 2010, 0, -5}, ref.Transform)

	h.SetGeoReference(ref)
	again, err := h.GeoReference()
	require.NoError(t, err)
	assert.Equal(t, ref.Transform, again.Transform)
}

func TestCreateWriteReadAllInterleaves(t *testing.T) {
	dir := t.TempDir()
	g := rasterio.Geometry{Width: 5, Height: 3, Bands: 3, PixelType: rasterio.UInt16}
	band := func(b int) []float64 {
		out := make([]float64, g.Width*g.Height)
		for i := range out {
			out[i] = float64(b*100 + i)
		}
		return out
	}

	for _, il := range []rasterio.Interleave{rasterio.BSQ, rasterio.BIL, rasterio.BIP} {
		t.Run(il.String(), func(t *testing.T) {
			path := filepath.Join(dir, "scene_"+il.String()+".img")
			ds, err := Driver{Interleave: il}.Create(path, g)
			require.NoError(t, err)

			full := rasterio.Rect{W: g.Width, H: g.Height}
			// Each band goes out as two partial rectangles.
			for b := 1; b <= g.Bands; b++ {
				data := band(b)
				top := rasterio.Rect{W: g.Width, H: 2}
				bottom := rasterio.Rect{Y: 2, W: g.Width, H: 1}
				require.NoError(t, ds.WriteBlock(top, b, data[:10]))
				require.NoError(t, ds.WriteBlock(bottom, b, data[10:]))
			}
			ref := rasterio.GeoReference{Transform: [6]float64{10, 2, 0, 20, 0, -2}, HasTransform: true, Projection: "LOCAL_CS[\"x\"]"}
			require.NoError(t, ds.SetGeoReference(ref))
			require.NoError(t, ds.Close())

			_, err = os.Stat(filepath.Join(dir, "scene_"+il.String()+".hdr"))
			require.NoError(t, err)
			require.True(t, Driver{}.Identify(path))

			in, err := rasterio.Open(path, rasterio.ReadOnly)
			require.NoError(t, err)
			defer in.Close()
			assert.Equal(t, g, in.Geometry())

			dst := make([]float64, full.Area()*2)
			require.NoError(t, in.ReadBlock(full, []int{3, 1}, rasterio.BSQ, dst))
			assert.Equal(t, band(3), dst[:full.Area()])
			assert.Equal(t, band(1), dst[full.Area():])

			sub := rasterio.Rect{X: 1, Y: 1, W: 2, H: 2}
			bip := make([]float64, sub.Area()*3)
			require.NoError(t, in.ReadBlock(sub, []int{1, 2, 3}, rasterio.BIP, bip))
			// Pixel (1,1) is row-major index 6.
			assert.Equal(t, []float64{106, 206, 306}, bip[:3])

			got, err := in.GeoReference()
			require.NoError(t, err)
			assert.Equal(t, ref, got)

			require.NoError(t, Driver{}.Remove(path))
			assert.False(t, Driver{}.Identify(path))
		})
	}
}

func TestReadOnlyAndTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.dat")
	g := rasterio.Geometry{Width: 2, Height: 2, Bands: 1, PixelType: rasterio.Float32}
	ds, err := Driver{}.Create(path, g)
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	ro, err := Driver{}.Open(path, rasterio.ReadOnly)
	require.NoError(t, err)
	err = ro.WriteBlock(rasterio.Rect{W: 1, H: 1}, 1, []float64{1})
	assert.ErrorIs(t, err, rasterio.ErrReadOnly)
	require.NoError(t, ro.Close())

	require.NoError(t, os.Truncate(path, 4))
	_, err = Driver{}.Open(path, rasterio.ReadOnly)
	assert.Error(t, err)
}
