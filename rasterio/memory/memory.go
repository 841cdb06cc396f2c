// Package memory is an in-process raster driver. Paths of the form
// "mem://name" address images held in a process-wide store; every Open
// returns a new handle onto the same image.
package memory

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/robert-malhotra/go-rasterstream/internal/dtype"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// Prefix marks paths served by this driver.
const Prefix = "mem://"

// DriverName is the registry name of the driver.
const DriverName = "MEM"

func init() {
	rasterio.Register(Driver{})
}

type image struct {
	mu    sync.RWMutex
	geom  rasterio.Geometry
	bands [][]float64
	ref   rasterio.GeoReference
}

var store = struct {
	mu     sync.Mutex
	images map[string]*image
}{images: make(map[string]*image)}

func lookup(path string) (*image, bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	img, ok := store.images[path]
	return img, ok
}

func newImage(g rasterio.Geometry) *image {
	img := &image{geom: g, bands: make([][]float64, g.Bands)}
	for i := range img.bands {
		img.bands[i] = make([]float64, g.Width*g.Height)
	}
	return img
}

// Put stores an image under path, replacing any previous one. Each entry of
// bands is one band in row-major order and must hold Width*Height samples.
// Samples are quantized to g.PixelType.
func Put(path string, g rasterio.Geometry, bands [][]float64) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if len(bands) != g.Bands {
		return fmt.Errorf("got %d bands, geometry has %d", len(bands), g.Bands)
	}
	img := newImage(g)
	for b, src := range bands {
		if len(src) != g.Width*g.Height {
			return fmt.Errorf("band %d holds %d samples, need %d", b+1, len(src), g.Width*g.Height)
		}
		for i, v := range src {
			img.bands[b][i] = dtype.Quantize(g.PixelType, v)
		}
	}
	store.mu.Lock()
	store.images[path] = img
	store.mu.Unlock()
	return nil
}

// Band returns a copy of a 1-based band of the image stored under path.
func Band(path string, band int) ([]float64, error) {
	img, ok := lookup(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	img.mu.RLock()
	defer img.mu.RUnlock()
	if band < 1 || band > len(img.bands) {
		return nil, fmt.Errorf("%w: band %d of %d", rasterio.ErrOutOfBounds, band, len(img.bands))
	}
	out := make([]float64, len(img.bands[band-1]))
	copy(out, img.bands[band-1])
	return out, nil
}

// Exists reports whether an image is stored under path.
func Exists(path string) bool {
	_, ok := lookup(path)
	return ok
}

// Driver implements rasterio.Driver for mem:// paths.
type Driver struct{}

func (Driver) Name() string { return DriverName }

func (Driver) Identify(path string) bool {
	return strings.HasPrefix(path, Prefix)
}

func (Driver) Open(path string, mode rasterio.Mode) (rasterio.Dataset, error) {
	img, ok := lookup(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return &dataset{img: img, mode: mode}, nil
}

func (Driver) Create(path string, g rasterio.Geometry) (rasterio.Dataset, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	img := newImage(g)
	store.mu.Lock()
	store.images[path] = img
	store.mu.Unlock()
	return &dataset{img: img, mode: rasterio.Update}, nil
}

func (Driver) Remove(path string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.images[path]; !ok {
		return fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	delete(store.images, path)
	return nil
}

type dataset struct {
	img    *image
	mode   rasterio.Mode
	closed bool
}

func (d *dataset) Geometry() rasterio.Geometry {
	return d.img.geom
}

func (d *dataset) ReadBlock(r rasterio.Rect, bands []int, il rasterio.Interleave, dst []float64) error {
	if d.closed {
		return rasterio.ErrClosed
	}
	g := d.img.geom
	if err := rasterio.CheckRead(g, r, bands, dst); err != nil {
		return err
	}
	n := len(bands)
	bs, xs, ys := il.Strides(n, r.W, r.H)

	d.img.mu.RLock()
	defer d.img.mu.RUnlock()
	for k, b := range bands {
		plane := d.img.bands[b-1]
		for y := 0; y < r.H; y++ {
			row := plane[(r.Y+y)*g.Width+r.X : (r.Y+y)*g.Width+r.X+r.W]
			i := k*bs + y*ys
			if xs == 1 {
				copy(dst[i:i+r.W], row)
				continue
			}
			for _, v := range row {
				dst[i] = v
				i += xs
			}
		}
	}
	return nil
}

func (d *dataset) WriteBlock(r rasterio.Rect, band int, src []float64) error {
	if d.closed {
		return rasterio.ErrClosed
	}
	if d.mode != rasterio.Update {
		return rasterio.ErrReadOnly
	}
	g := d.img.geom
	if err := rasterio.CheckWrite(g, r, band, src); err != nil {
		return err
	}

	d.img.mu.Lock()
	defer d.img.mu.Unlock()
	plane := d.img.bands[band-1]
	for y := 0; y < r.H; y++ {
		row := plane[(r.Y+y)*g.Width+r.X : (r.Y+y)*g.Width+r.X+r.W]
		for x := range row {
			row[x] = dtype.Quantize(g.PixelType, src[y*r.W+x])
		}
	}
	return nil
}

func (d *dataset) GeoReference() (rasterio.GeoReference, error) {
	d.img.mu.RLock()
	defer d.img.mu.RUnlock()
	return d.img.ref, nil
}

func (d *dataset) SetGeoReference(ref rasterio.GeoReference) error {
	if d.mode != rasterio.Update {
		return rasterio.ErrReadOnly
	}
	d.img.mu.Lock()
	defer d.img.mu.Unlock()
	d.img.ref = ref
	return nil
}

func (d *dataset) Close() error {
	d.closed = true
	return nil
}
