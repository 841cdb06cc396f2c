// Package envi implements a pure Go raster driver for ENVI raw binary files
// with a text .hdr sidecar.
//
// Each Open returns a handle with its own *os.File, so handles used by
// different workers never share a file offset; all I/O is positioned
// (ReadAt/WriteAt). Samples are addressed according to the file's own
// interleave and converted to and from float64 by the dtype codec.
package envi

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	rbinary "github.com/robert-malhotra/go-rasterstream/internal/binary"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// DriverName is the registry name of the driver.
const DriverName = "ENVI"

func init() {
	rasterio.Register(Driver{})
}

// Driver implements rasterio.Driver for ENVI files. Create lays out new
// files in Interleave (BSQ for the zero value).
type Driver struct {
	Interleave rasterio.Interleave
}

func (Driver) Name() string { return DriverName }

// Identify accepts a .hdr path or a data path with a readable ENVI sidecar.
func (Driver) Identify(path string) bool {
	if strings.Contains(path, "://") {
		return false
	}
	hdr, err := findHeader(path)
	if err != nil {
		return false
	}
	f, err := os.Open(hdr)
	if err != nil {
		return false
	}
	defer f.Close()
	magic := make([]byte, 4)
	if _, err := io.ReadFull(f, magic); err != nil {
		return false
	}
	return string(magic) == "ENVI"
}

// headerCandidates lists the sidecar names checked for a data path.
func headerCandidates(path string) []string {
	if strings.EqualFold(filepath.Ext(path), ".hdr") {
		return []string{path}
	}
	candidates := []string{path + ".hdr"}
	if ext := filepath.Ext(path); ext != "" {
		candidates = append(candidates, strings.TrimSuffix(path, ext)+".hdr")
	}
	return candidates
}

func findHeader(path string) (string, error) {
	for _, c := range headerCandidates(path) {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no ENVI header for %s: %w", path, os.ErrNotExist)
}

// dataPath returns the raw data file for path, which may name the header.
func dataPath(path string) string {
	if !strings.EqualFold(filepath.Ext(path), ".hdr") {
		return path
	}
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, ext := range []string{"", ".img", ".dat", ".raw", ".bsq", ".bil", ".bip"} {
		if _, err := os.Stat(base + ext); err == nil {
			return base + ext
		}
	}
	return base
}

// ReadHeader parses the sidecar header of path.
func ReadHeader(path string) (*Header, error) {
	hdrPath, err := findHeader(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(hdrPath)
	if err != nil {
		return nil, fmt.Errorf("opening header: %w", err)
	}
	defer f.Close()
	h, err := ParseHeader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", hdrPath, err)
	}
	return h, nil
}

// Open opens an existing ENVI raster.
func (Driver) Open(path string, mode rasterio.Mode) (rasterio.Dataset, error) {
	hdr, err := ReadHeader(path)
	if err != nil {
		return nil, err
	}
	hdrPath, _ := findHeader(path)
	geom, err := hdr.Geometry()
	if err != nil {
		return nil, err
	}

	flag := os.O_RDONLY
	if mode == rasterio.Update {
		flag = os.O_RDWR
	}
	data := dataPath(path)
	f, err := os.OpenFile(data, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat data file: %w", err)
	}
	if need := hdr.HeaderOffset + geom.Bytes(); info.Size() < need {
		f.Close()
		return nil, fmt.Errorf("data file %s holds %d bytes, header describes %d", data, info.Size(), need)
	}
	if mode == rasterio.ReadOnly {
		adviseSequential(f)
	}
	return newDataset(f, hdrPath, hdr, geom, mode), nil
}

// Create creates a zero-filled little-endian ENVI raster at path and writes
// its header next to it.
func (d Driver) Create(path string, g rasterio.Geometry) (rasterio.Dataset, error) {
	code, err := dataTypeCode(g.PixelType)
	if err != nil {
		return nil, err
	}
	data := dataPath(path)
	hdrPath := data + ".hdr"
	if ext := filepath.Ext(data); ext != "" {
		hdrPath = strings.TrimSuffix(data, ext) + ".hdr"
	}

	hdr := &Header{
		Samples:    g.Width,
		Lines:      g.Height,
		Bands:      g.Bands,
		DataType:   code,
		Interleave: d.Interleave,
		Other:      map[string]string{},
	}

	f, err := os.Create(data)
	if err != nil {
		return nil, fmt.Errorf("creating data file: %w", err)
	}
	if err := f.Truncate(g.Bytes()); err != nil {
		f.Close()
		os.Remove(data)
		return nil, fmt.Errorf("sizing data file: %w", err)
	}
	if err := writeHeader(hdrPath, hdr); err != nil {
		f.Close()
		os.Remove(data)
		return nil, err
	}
	return newDataset(f, hdrPath, hdr, g, rasterio.Update), nil
}

// Remove deletes the data file and its header.
func (Driver) Remove(path string) error {
	data := dataPath(path)
	var errs []error
	if err := os.Remove(data); err != nil {
		errs = append(errs, err)
	}
	for _, c := range headerCandidates(data) {
		if err := os.Remove(c); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeHeader(path string, hdr *Header) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating header: %w", err)
	}
	if _, err := hdr.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing header: %w", err)
	}
	return f.Close()
}

type dataset struct {
	file    *os.File
	hdrPath string
	hdr     *Header
	geom    rasterio.Geometry
	mode    rasterio.Mode
	reader  *rbinary.Reader
	writer  *rbinary.Writer
	size    int

	samples []float64

	dirty  bool
	closed bool
}

func newDataset(f *os.File, hdrPath string, hdr *Header, g rasterio.Geometry, mode rasterio.Mode) *dataset {
	cfg := rbinary.DefaultConfig()
	if hdr.BigEndian {
		cfg.ByteOrder = binary.BigEndian
	}
	d := &dataset{
		file:    f,
		hdrPath: hdrPath,
		hdr:     hdr,
		geom:    g,
		mode:    mode,
		reader:  rbinary.NewReader(f, cfg),
		size:    g.PixelType.Size(),
	}
	if mode == rasterio.Update {
		d.writer = rbinary.NewWriter(f, cfg)
	}
	return d
}

func (d *dataset) Geometry() rasterio.Geometry {
	return d.geom
}

// offset returns the file position of sample (band, x, y), band 0-based.
func (d *dataset) offset(band, x, y int) int64 {
	g := d.geom
	idx := int64(d.hdr.Interleave.Index(g.Bands, g.Width, g.Height, band, x, y))
	return d.hdr.HeaderOffset + idx*int64(d.size)
}

// readRun reads n consecutive samples starting at (band, x, y) into the
// handle's scratch buffer.
func (d *dataset) readRun(band, x, y, n int) ([]float64, error) {
	if cap(d.samples) < n {
		d.samples = make([]float64, n)
	}
	samples := d.samples[:n]
	d.reader.Seek(d.offset(band, x, y))
	if err := d.reader.ReadSamples(d.geom.PixelType, samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func (d *dataset) ReadBlock(r rasterio.Rect, bands []int, il rasterio.Interleave, dst []float64) error {
	if d.closed {
		return rasterio.ErrClosed
	}
	if err := rasterio.CheckRead(d.geom, r, bands, dst); err != nil {
		return err
	}
	n := len(bands)
	bs, xs, ys := il.Strides(n, r.W, r.H)

	if d.hdr.Interleave == rasterio.BIP {
		// One contiguous run per row holds every band of the row span.
		nb := d.geom.Bands
		for y := 0; y < r.H; y++ {
			run, err := d.readRun(0, r.X, r.Y+y, r.W*nb)
			if err != nil {
				return fmt.Errorf("reading row %d: %w", r.Y+y, err)
			}
			for k, b := range bands {
				i := k*bs + y*ys
				for x := 0; x < r.W; x++ {
					dst[i] = run[x*nb+b-1]
					i += xs
				}
			}
		}
		return nil
	}

	for k, b := range bands {
		for y := 0; y < r.H; y++ {
			run, err := d.readRun(b-1, r.X, r.Y+y, r.W)
			if err != nil {
				return fmt.Errorf("reading band %d row %d: %w", b, r.Y+y, err)
			}
			i := k*bs + y*ys
			if xs == 1 {
				copy(dst[i:i+r.W], run)
				continue
			}
			for _, v := range run {
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
	if err := rasterio.CheckWrite(d.geom, r, band, src); err != nil {
		return err
	}

	if d.hdr.Interleave == rasterio.BIP {
		nb := d.geom.Bands
		for y := 0; y < r.H; y++ {
			run, err := d.readRun(0, r.X, r.Y+y, r.W*nb)
			if err != nil {
				return fmt.Errorf("reading row %d: %w", r.Y+y, err)
			}
			for x := 0; x < r.W; x++ {
				run[x*nb+band-1] = src[y*r.W+x]
			}
			if err := d.writeRun(0, r.X, r.Y+y, run); err != nil {
				return fmt.Errorf("writing row %d: %w", r.Y+y, err)
			}
		}
		return nil
	}

	for y := 0; y < r.H; y++ {
		if err := d.writeRun(band-1, r.X, r.Y+y, src[y*r.W:(y+1)*r.W]); err != nil {
			return fmt.Errorf("writing band %d row %d: %w", band, r.Y+y, err)
		}
	}
	return nil
}

func (d *dataset) writeRun(band, x, y int, samples []float64) error {
	d.writer.Seek(d.offset(band, x, y))
	return d.writer.WriteSamples(d.geom.PixelType, samples)
}

func (d *dataset) GeoReference() (rasterio.GeoReference, error) {
	return d.hdr.GeoReference()
}

func (d *dataset) SetGeoReference(ref rasterio.GeoReference) error {
	if d.mode != rasterio.Update {
		return rasterio.ErrReadOnly
	}
	d.hdr.SetGeoReference(ref)
	d.dirty = true
	return nil
}

// Close rewrites the header if the georeference changed and closes the file.
func (d *dataset) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if d.dirty {
		errs = append(errs, writeHeader(d.hdrPath, d.hdr))
	}
	errs = append(errs, d.file.Close())
	return errors.Join(errs...)
}
