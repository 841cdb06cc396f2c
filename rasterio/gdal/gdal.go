//go:build gdal

// Package gdal registers a raster driver backed by the GDAL library through
// godal. It accepts any path no other driver claims and creates outputs in
// any GDAL format. Select one with a format name of "GDAL:<ShortName>" or the
// bare GDAL short name, for example "GTiff" or "GDAL:HFA".
//
// Building it requires cgo, the GDAL development headers and the gdal build
// tag.
package gdal

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// DriverName is the registry name of the driver.
const DriverName = "GDAL"

var registerOnce sync.Once

func init() {
	registerOnce.Do(godal.RegisterAll)
	rasterio.Register(Driver{Format: "GTiff"})
}

// Driver implements rasterio.Driver on top of GDAL. Format is the GDAL
// driver used by Create.
type Driver struct {
	Format string
}

func (Driver) Name() string { return DriverName }

// Fallback reports that the driver is consulted after all others.
func (Driver) Fallback() bool { return true }

// WithFormat returns a driver creating the GDAL format with the given short
// name, for example HFA. It reports false when GDAL has no raster driver of
// that name.
func (Driver) WithFormat(format string) (rasterio.Driver, bool) {
	if _, ok := godal.RasterDriver(godal.DriverName(format)); !ok {
		return nil, false
	}
	return Driver{Format: format}, true
}

// SerialWrites reports that concurrent update handles on one GDAL file are
// unsafe.
func (Driver) SerialWrites() bool { return true }

// Identify accepts every path that is not a URL of another driver.
func (Driver) Identify(path string) bool {
	return !strings.Contains(path, "://") || strings.HasPrefix(path, "/vsi")
}

var pixelTypes = map[godal.DataType]rasterio.PixelType{
	godal.Byte:    rasterio.Byte,
	godal.UInt16:  rasterio.UInt16,
	godal.Int16:   rasterio.Int16,
	godal.UInt32:  rasterio.UInt32,
	godal.Int32:   rasterio.Int32,
	godal.Float32: rasterio.Float32,
	godal.Float64: rasterio.Float64,
}

func dataType(pt rasterio.PixelType) (godal.DataType, error) {
	for dt, p := range pixelTypes {
		if p == pt {
			return dt, nil
		}
	}
	return godal.Unknown, fmt.Errorf("%w: %v", rasterio.ErrUnsupportedPixelType, pt)
}

func (Driver) Open(path string, mode rasterio.Mode) (rasterio.Dataset, error) {
	var opts []godal.OpenOption
	if mode == rasterio.Update {
		opts = append(opts, godal.Update())
	}
	ds, err := godal.Open(path, opts...)
	if err != nil {
		return nil, err
	}
	st := ds.Structure()
	pt, ok := pixelTypes[st.DataType]
	if !ok {
		ds.Close()
		return nil, fmt.Errorf("%w: GDAL type %v", rasterio.ErrUnsupportedPixelType, st.DataType)
	}
	return &dataset{
		ds:   ds,
		mode: mode,
		geom: rasterio.Geometry{Width: st.SizeX, Height: st.SizeY, Bands: st.NBands, PixelType: pt},
	}, nil
}

func (d Driver) Create(path string, g rasterio.Geometry) (rasterio.Dataset, error) {
	dt, err := dataType(g.PixelType)
	if err != nil {
		return nil, err
	}
	format := d.Format
	if format == "" {
		format = "GTiff"
	}
	ds, err := godal.Create(godal.DriverName(format), path, g.Bands, dt, g.Width, g.Height)
	if err != nil {
		return nil, err
	}
	return &dataset{ds: ds, mode: rasterio.Update, geom: g}, nil
}

func (Driver) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return err
	}
	// GDAL may leave an .aux.xml sidecar next to the file.
	if err := os.Remove(path + ".aux.xml"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type dataset struct {
	ds     *godal.Dataset
	mode   rasterio.Mode
	geom   rasterio.Geometry
	closed bool

	scratch []float64
	zbands  []int
}

func (d *dataset) Geometry() rasterio.Geometry { return d.geom }

// ReadBlock reads pixel-interleaved samples and reorders them into il.
func (d *dataset) ReadBlock(r rasterio.Rect, bands []int, il rasterio.Interleave, dst []float64) error {
	if d.closed {
		return rasterio.ErrClosed
	}
	if err := rasterio.CheckRead(d.geom, r, bands, dst); err != nil {
		return err
	}
	d.zbands = d.zbands[:0]
	for _, b := range bands {
		d.zbands = append(d.zbands, b-1)
	}

	buf := dst
	if il != rasterio.BIP && len(bands) > 1 {
		if cap(d.scratch) < len(dst) {
			d.scratch = make([]float64, len(dst))
		}
		buf = d.scratch[:len(dst)]
	}
	if err := d.ds.Read(r.X, r.Y, buf, r.W, r.H, godal.Bands(d.zbands...)); err != nil {
		return err
	}
	if &buf[0] != &dst[0] {
		rasterio.Reorder(dst, il, buf, rasterio.BIP, len(bands), r.W, r.H)
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
	if err := rasterio.CheckWrite(d.geom, r, band, src); err != nil {
		return err
	}
	return d.ds.Bands()[band-1].Write(r.X, r.Y, src, r.W, r.H)
}

func (d *dataset) GeoReference() (rasterio.GeoReference, error) {
	ref := rasterio.GeoReference{Projection: d.ds.Projection()}
	if gt, err := d.ds.GeoTransform(); err == nil {
		ref.Transform = gt
		ref.HasTransform = true
	}
	return ref, nil
}

func (d *dataset) SetGeoReference(ref rasterio.GeoReference) error {
	if d.mode != rasterio.Update {
		return rasterio.ErrReadOnly
	}
	if ref.HasTransform {
		if err := d.ds.SetGeoTransform(ref.Transform); err != nil {
			return fmt.Errorf("setting geotransform: %w", err)
		}
	}
	if ref.Projection != "" {
		if err := d.ds.SetProjection(ref.Projection); err != nil {
			return fmt.Errorf("setting projection: %w", err)
		}
	}
	return nil
}

func (d *dataset) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.ds.Close()
}
