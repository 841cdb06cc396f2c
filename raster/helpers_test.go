package raster

import (
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
	"github.com/robert-malhotra/go-rasterstream/rasterio/memory"
)

// faultPrefix paths are served from the memory store through faultDriver,
// which fails reads or writes of blocks containing a chosen pixel.
const (
	faultPrefix = "fault://"
	faultFormat = "FAULT"
)

type fault struct {
	read, write bool
	x, y        int
}

var faults sync.Map // path -> fault

func init() {
	rasterio.Register(faultDriver{})
}

type faultDriver struct{}

func memPath(path string) string {
	return memory.Prefix + strings.TrimPrefix(path, faultPrefix)
}

func (faultDriver) Name() string              { return faultFormat }
func (faultDriver) Identify(path string) bool { return strings.HasPrefix(path, faultPrefix) }

func (faultDriver) Open(path string, mode rasterio.Mode) (rasterio.Dataset, error) {
	ds, err := memory.Driver{}.Open(memPath(path), mode)
	if err != nil {
		return nil, err
	}
	f, _ := faults.Load(path)
	ft, _ := f.(fault)
	return &faultDataset{Dataset: ds, fault: ft}, nil
}

func (faultDriver) Create(path string, g rasterio.Geometry) (rasterio.Dataset, error) {
	return memory.Driver{}.Create(memPath(path), g)
}

func (faultDriver) Remove(path string) error {
	return memory.Driver{}.Remove(memPath(path))
}

type faultDataset struct {
	rasterio.Dataset
	fault fault
}

func (d *faultDataset) hit(r rasterio.Rect) bool {
	return d.fault.x >= r.X && d.fault.x < r.X+r.W && d.fault.y >= r.Y && d.fault.y < r.Y+r.H
}

func (d *faultDataset) ReadBlock(r rasterio.Rect, bands []int, il rasterio.Interleave, dst []float64) error {
	if d.fault.read && d.hit(r) {
		return errInjected
	}
	return d.Dataset.ReadBlock(r, bands, il, dst)
}

func (d *faultDataset) WriteBlock(r rasterio.Rect, band int, src []float64) error {
	if d.fault.write && d.hit(r) {
		return errInjected
	}
	return d.Dataset.WriteBlock(r, band, src)
}

type injectedError struct{}

func (injectedError) Error() string { return "injected fault" }

var errInjected error = injectedError{}

// putImage stores bands under a per-test memory path.
func putImage(t *testing.T, name string, width, height int, pt rasterio.PixelType, bands [][]float64) string {
	t.Helper()
	path := memory.Prefix + t.Name() + "/" + name
	g := rasterio.Geometry{Width: width, Height: height, Bands: len(bands), PixelType: pt}
	require.NoError(t, memory.Put(path, g, bands))
	t.Cleanup(func() { _ = memory.Driver{}.Remove(path) })
	return path
}

// outPath returns a per-test memory output path and removes it afterwards.
func outPath(t *testing.T, name string) string {
	t.Helper()
	path := memory.Prefix + t.Name() + "/" + name
	t.Cleanup(func() { _ = memory.Driver{}.Remove(path) })
	return path
}

// randomImage returns correlated bands: band k = base + k*noise_k.
func randomImage(seed int64, width, height, bands int) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	n := width * height
	out := make([][]float64, bands)
	base := make([]float64, n)
	for i := range base {
		base[i] = 100 + 20*rng.NormFloat64()
	}
	for k := range out {
		out[k] = make([]float64, n)
		for i := range out[k] {
			out[k][i] = base[i]*float64(k+1)/2 + 5*rng.NormFloat64() + float64(k)
		}
	}
	return out
}

func band(t *testing.T, path string, b int) []float64 {
	t.Helper()
	v, err := memory.Band(path, b)
	require.NoError(t, err)
	return v
}
