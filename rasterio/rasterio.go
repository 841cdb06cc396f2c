// Package rasterio defines the storage contract the streaming engine reads
// from and writes to: datasets addressed by rectangle, band list and
// interleave, drivers that open and create them, and a process-wide driver
// registry.
//
// Pixel values cross the contract as float64 regardless of the on-disk pixel
// type. A Dataset handle is not safe for concurrent use; every worker opens
// its own handle onto the same path.
package rasterio

import (
	"fmt"
	"strings"
)

// PixelType identifies the storage type of a raster's samples.
type PixelType int

// Supported pixel types.
const (
	Unknown PixelType = iota
	Byte
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
	Int64
	UInt64
)

var pixelTypeNames = map[PixelType]string{
	Byte:    "Byte",
	UInt16:  "UInt16",
	Int16:   "Int16",
	UInt32:  "UInt32",
	Int32:   "Int32",
	Float32: "Float32",
	Float64: "Float64",
	Int64:   "Int64",
	UInt64:  "UInt64",
}

func (p PixelType) String() string {
	if name, ok := pixelTypeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PixelType(%d)", int(p))
}

// Size returns the size of one sample in bytes, or 0 for Unknown.
func (p PixelType) Size() int {
	switch p {
	case Byte:
		return 1
	case UInt16, Int16:
		return 2
	case UInt32, Int32, Float32:
		return 4
	case Float64, Int64, UInt64:
		return 8
	default:
		return 0
	}
}

// IsInteger reports whether samples are stored as integers.
func (p PixelType) IsInteger() bool {
	return p != Float32 && p != Float64 && p.Valid()
}

// Valid reports whether p is one of the supported pixel types.
func (p PixelType) Valid() bool {
	_, ok := pixelTypeNames[p]
	return ok
}

// ParsePixelType parses a pixel type name, case-insensitively.
func ParsePixelType(s string) (PixelType, error) {
	for p, name := range pixelTypeNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnsupportedPixelType, s)
}

// Mode selects how an existing dataset is opened.
type Mode int

const (
	ReadOnly Mode = iota
	Update
)

// Rect is a pixel rectangle with a zero-based origin.
type Rect struct {
	X, Y int
	W, H int
}

// Area returns the number of pixels covered by r.
func (r Rect) Area() int {
	return r.W * r.H
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Within reports whether r lies inside a width x height image.
func (r Rect) Within(width, height int) bool {
	return !r.Empty() && r.X >= 0 && r.Y >= 0 && r.X+r.W <= width && r.Y+r.H <= height
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d@(%d,%d)", r.W, r.H, r.X, r.Y)
}

// Geometry describes the extent and sample layout of a dataset.
type Geometry struct {
	Width     int
	Height    int
	Bands     int
	PixelType PixelType
}

// Validate checks that the geometry describes a non-empty raster of a
// supported pixel type.
func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 || g.Bands <= 0 {
		return fmt.Errorf("invalid raster size %dx%dx%d", g.Width, g.Height, g.Bands)
	}
	if !g.PixelType.Valid() {
		return fmt.Errorf("%w: %v", ErrUnsupportedPixelType, g.PixelType)
	}
	return nil
}

// Pixels returns the number of pixels per band.
func (g Geometry) Pixels() int64 {
	return int64(g.Width) * int64(g.Height)
}

// Bytes returns the storage size of all samples.
func (g Geometry) Bytes() int64 {
	return g.Pixels() * int64(g.Bands) * int64(g.PixelType.Size())
}

// GeoReference holds the affine geotransform and projection of a dataset.
// Transform follows the usual six-coefficient convention:
//
//	Xgeo = T[0] + col*T[1] + row*T[2]
//	Ygeo = T[3] + col*T[4] + row*T[5]
type GeoReference struct {
	Transform    [6]float64
	HasTransform bool
	Projection   string
}

// Dataset is an open raster handle.
//
// ReadBlock fills dst with the samples of r for the given 1-based bands in
// the requested interleave; len(dst) must be r.Area()*len(bands).
// WriteBlock stores r.Area() samples of a single 1-based band.
type Dataset interface {
	Geometry() Geometry
	ReadBlock(r Rect, bands []int, il Interleave, dst []float64) error
	WriteBlock(r Rect, band int, src []float64) error
	GeoReference() (GeoReference, error)
	SetGeoReference(GeoReference) error
	Close() error
}

// Driver opens, creates and removes datasets of one storage format.
type Driver interface {
	Name() string
	Identify(path string) bool
	Open(path string, mode Mode) (Dataset, error)
	Create(path string, g Geometry) (Dataset, error)
	Remove(path string) error
}

// CheckRead validates the arguments of a ReadBlock call against g.
func CheckRead(g Geometry, r Rect, bands []int, dst []float64) error {
	if !r.Within(g.Width, g.Height) {
		return fmt.Errorf("%w: %v in %dx%d", ErrOutOfBounds, r, g.Width, g.Height)
	}
	for _, b := range bands {
		if b < 1 || b > g.Bands {
			return fmt.Errorf("%w: band %d of %d", ErrOutOfBounds, b, g.Bands)
		}
	}
	if want := r.Area() * len(bands); len(dst) != want {
		return fmt.Errorf("buffer holds %d samples, need %d", len(dst), want)
	}
	return nil
}

// CheckWrite validates the arguments of a WriteBlock call against g.
func CheckWrite(g Geometry, r Rect, band int, src []float64) error {
	return CheckRead(g, r, []int{band}, src)
}

// CopyGeoReference copies the geotransform and projection of src onto dst.
func CopyGeoReference(src, dst Dataset) error {
	ref, err := src.GeoReference()
	if err != nil {
		return fmt.Errorf("reading georeference: %w", err)
	}
	if err := dst.SetGeoReference(ref); err != nil {
		return fmt.Errorf("writing georeference: %w", err)
	}
	return nil
}

// AllBands returns the 1-based band list 1..n.
func AllBands(n int) []int {
	bands := make([]int, n)
	for i := range bands {
		bands[i] = i + 1
	}
	return bands
}
