package dtype

// Conversion Strategy
//
// Decode and Encode dispatch once per call on the pixel type and then run a
// tight per-element loop; no reflection is involved.
//
// # Fast Path
//
// When the samples are Float64 in the platform's native byte order, the raw
// bytes already are the float64 values, so Decode and Encode reduce to a
// single memory copy through an unsafe view. This is controlled by
// canDirectCopy and directView.

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// nativeOrder is the byte order of the running platform.
var nativeOrder binary.ByteOrder = func() binary.ByteOrder {
	x := uint16(1)
	if *(*byte)(unsafe.Pointer(&x)) == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// ElementSize returns the size of a single sample in bytes.
func ElementSize(pt rasterio.PixelType) int {
	return pt.Size()
}

// Decode converts len(dst) samples of type pt from src into dst.
// src must hold at least len(dst)*ElementSize(pt) bytes.
func Decode(pt rasterio.PixelType, order binary.ByteOrder, src []byte, dst []float64) error {
	size := pt.Size()
	if size == 0 {
		return fmt.Errorf("%w: %v", rasterio.ErrUnsupportedPixelType, pt)
	}
	n := len(dst)
	if len(src) < n*size {
		return fmt.Errorf("decoding %d %v samples: have %d bytes, need %d", n, pt, len(src), n*size)
	}

	if canDirectCopy(pt, order) {
		copy(dst, directView(src, n))
		return nil
	}

	switch pt {
	case rasterio.Byte:
		for i := range dst {
			dst[i] = float64(src[i])
		}
	case rasterio.Int16:
		for i := range dst {
			dst[i] = float64(int16(order.Uint16(src[i*2:])))
		}
	case rasterio.UInt16:
		for i := range dst {
			dst[i] = float64(order.Uint16(src[i*2:]))
		}
	case rasterio.Int32:
		for i := range dst {
			dst[i] = float64(int32(order.Uint32(src[i*4:])))
		}
	case rasterio.UInt32:
		for i := range dst {
			dst[i] = float64(order.Uint32(src[i*4:]))
		}
	case rasterio.Int64:
		for i := range dst {
			dst[i] = float64(int64(order.Uint64(src[i*8:])))
		}
	case rasterio.UInt64:
		for i := range dst {
			dst[i] = float64(order.Uint64(src[i*8:]))
		}
	case rasterio.Float32:
		for i := range dst {
			dst[i] = float64(math.Float32frombits(order.Uint32(src[i*4:])))
		}
	case rasterio.Float64:
		for i := range dst {
			dst[i] = math.Float64frombits(order.Uint64(src[i*8:]))
		}
	}
	return nil
}

// Encode converts src into len(src) samples of type pt in dst.
// dst must hold at least len(src)*ElementSize(pt) bytes.
func Encode(pt rasterio.PixelType, order binary.ByteOrder, src []float64, dst []byte) error {
	size := pt.Size()
	if size == 0 {
		return fmt.Errorf("%w: %v", rasterio.ErrUnsupportedPixelType, pt)
	}
	n := len(src)
	if len(dst) < n*size {
		return fmt.Errorf("encoding %d %v samples: have %d bytes, need %d", n, pt, len(dst), n*size)
	}

	if canDirectCopy(pt, order) {
		copy(directView(dst, n), src)
		return nil
	}

	switch pt {
	case rasterio.Byte:
		for i, v := range src {
			dst[i] = uint8(Quantize(pt, v))
		}
	case rasterio.Int16:
		for i, v := range src {
			order.PutUint16(dst[i*2:], uint16(int16(Quantize(pt, v))))
		}
	case rasterio.UInt16:
		for i, v := range src {
			order.PutUint16(dst[i*2:], uint16(Quantize(pt, v)))
		}
	case rasterio.Int32:
		for i, v := range src {
			order.PutUint32(dst[i*4:], uint32(int32(Quantize(pt, v))))
		}
	case rasterio.UInt32:
		for i, v := range src {
			order.PutUint32(dst[i*4:], uint32(Quantize(pt, v)))
		}
	case rasterio.Int64:
		for i, v := range src {
			order.PutUint64(dst[i*8:], uint64(quantizeInt64(v)))
		}
	case rasterio.UInt64:
		for i, v := range src {
			order.PutUint64(dst[i*8:], quantizeUint64(v))
		}
	case rasterio.Float32:
		for i, v := range src {
			order.PutUint32(dst[i*4:], math.Float32bits(float32(v)))
		}
	case rasterio.Float64:
		for i, v := range src {
			order.PutUint64(dst[i*8:], math.Float64bits(v))
		}
	}
	return nil
}

// canDirectCopy reports whether raw bytes can be reinterpreted as float64
// values without conversion.
func canDirectCopy(pt rasterio.PixelType, order binary.ByteOrder) bool {
	return pt == rasterio.Float64 && order == nativeOrder
}

// directView reinterprets the first n*8 bytes of b as float64 values.
func directView(b []byte, n int) []float64 {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), n)
}
