package binary

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// bytesReaderAt wraps a byte slice to implement io.ReaderAt.
type bytesReaderAt []byte

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestReaderSeek(t *testing.T) {
	r := NewReader(bytesReaderAt{0x00, 0x11, 0x22, 0x33}, Config{})
	if r.ByteOrder() != binary.LittleEndian {
		t.Errorf("expected little endian default, got %v", r.ByteOrder())
	}

	r.Seek(3)
	buf := make([]byte, 1)
	if err := r.ReadInto(buf); err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if buf[0] != 0x33 {
		t.Errorf("expected 0x33, got 0x%02x", buf[0])
	}
	if r.Pos() != 4 {
		t.Errorf("expected position 4, got %d", r.Pos())
	}
}

func TestReaderReadInto(t *testing.T) {
	r := NewReader(bytesReaderAt{1, 2, 3, 4, 5}, DefaultConfig())
	r.Seek(1)

	buf := make([]byte, 3)
	if err := r.ReadInto(buf); err != nil {
		t.Fatalf("ReadInto failed: %v", err)
	}
	if buf[0] != 2 || buf[2] != 4 {
		t.Errorf("unexpected bytes %v", buf)
	}

	err := r.ReadInto(make([]byte, 4))
	if !errors.Is(err, ErrShortRead) {
		t.Errorf("expected ErrShortRead, got %v", err)
	}
}

func TestReaderReadSamples(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
		pt    rasterio.PixelType
		data  []byte
		want  []float64
	}{
		{"byte", binary.LittleEndian, rasterio.Byte, []byte{0, 7, 255}, []float64{0, 7, 255}},
		{"int16 big endian", binary.BigEndian, rasterio.Int16, []byte{0xff, 0xfe, 0x01, 0x00}, []float64{-2, 256}},
		{"uint16 little endian", binary.LittleEndian, rasterio.UInt16, []byte{0x01, 0x00, 0xff, 0xff}, []float64{1, 65535}},
		{"float32 big endian", binary.BigEndian, rasterio.Float32, []byte{0x3f, 0xc0, 0x00, 0x00}, []float64{1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(bytesReaderAt(tt.data), Config{ByteOrder: tt.order})
			got := make([]float64, len(tt.want))
			if err := r.ReadSamples(tt.pt, got); err != nil {
				t.Fatalf("ReadSamples failed: %v", err)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestReaderReadSamplesShort(t *testing.T) {
	r := NewReader(bytesReaderAt{0, 0, 0, 0, 0, 0}, DefaultConfig())
	err := r.ReadSamples(rasterio.Float64, make([]float64, 1))
	if !errors.Is(err, ErrShortRead) {
		t.Errorf("expected ErrShortRead, got %v", err)
	}
}

func TestReaderReusesScratch(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data, math.Float64bits(2.5))
	binary.LittleEndian.PutUint64(data[8:], math.Float64bits(-1))
	r := NewReader(bytesReaderAt(data), DefaultConfig())

	got := make([]float64, 1)
	for i, want := range []float64{2.5, -1} {
		r.Seek(int64(8 * i))
		if err := r.ReadSamples(rasterio.Float64, got); err != nil {
			t.Fatalf("ReadSamples failed: %v", err)
		}
		if got[0] != want {
			t.Errorf("run %d: got %v, want %v", i, got[0], want)
		}
	}
}
