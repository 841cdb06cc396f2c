package binary

import (
	"encoding/binary"
	"io"

	"github.com/robert-malhotra/go-rasterstream/internal/dtype"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// Writer writes sample runs at a position in an io.WriterAt.
type Writer struct {
	w     io.WriterAt
	order binary.ByteOrder
	pos   int64
	raw   []byte
}

// NewWriter creates a writer positioned at offset zero.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{w: w, order: cfg.order()}
}

// Seek moves the writer to an absolute offset.
func (w *Writer) Seek(offset int64) {
	w.pos = offset
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// WriteBytes writes data at the current position and advances past it.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	if err == nil && n < len(data) {
		return io.ErrShortWrite
	}
	return err
}

// WriteSamples encodes src as samples of type pt and writes them.
// Values are quantized to pt.
func (w *Writer) WriteSamples(pt rasterio.PixelType, src []float64) error {
	n := len(src) * pt.Size()
	if cap(w.raw) < n {
		w.raw = make([]byte, n)
	}
	raw := w.raw[:n]
	if err := dtype.Encode(pt, w.order, src, raw); err != nil {
		return err
	}
	return w.WriteBytes(raw)
}
