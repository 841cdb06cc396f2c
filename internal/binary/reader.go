// Package binary provides positioned, endian-aware access to raw raster files.
//
// Readers and writers are cursors over an io.ReaderAt / io.WriterAt. A
// cursor belongs to one file handle and is used by one goroutine; it keeps
// a scratch buffer so repeated sample runs do not allocate.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/robert-malhotra/go-rasterstream/internal/dtype"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// ErrShortRead is returned when fewer bytes than requested are available.
var ErrShortRead = errors.New("short read")

// Config holds cursor configuration, typically derived from a raster header.
type Config struct {
	ByteOrder binary.ByteOrder
}

// DefaultConfig returns a little-endian configuration.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian}
}

func (c Config) order() binary.ByteOrder {
	if c.ByteOrder == nil {
		return binary.LittleEndian
	}
	return c.ByteOrder
}

// Reader reads sample runs from a position in an io.ReaderAt.
type Reader struct {
	r     io.ReaderAt
	order binary.ByteOrder
	pos   int64
	raw   []byte
}

// NewReader creates a reader positioned at offset zero.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{r: r, order: cfg.order()}
}

// Seek moves the reader to an absolute offset.
func (r *Reader) Seek(offset int64) {
	r.pos = offset
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// ByteOrder returns the configured byte order.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.order
}

// ReadInto fills buf from the current position and advances past it.
// A read that reaches EOF before buf is full reports ErrShortRead.
func (r *Reader) ReadInto(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := r.r.ReadAt(buf, r.pos)
	r.pos += int64(n)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: got %d of %d bytes at offset %d", ErrShortRead, n, len(buf), r.pos-int64(n))
	}
	return err
}

// ReadSamples reads len(dst) samples of type pt and decodes them into dst.
func (r *Reader) ReadSamples(pt rasterio.PixelType, dst []float64) error {
	n := len(dst) * pt.Size()
	if cap(r.raw) < n {
		r.raw = make([]byte, n)
	}
	raw := r.raw[:n]
	if err := r.ReadInto(raw); err != nil {
		return err
	}
	return dtype.Decode(pt, r.order, raw, dst)
}
