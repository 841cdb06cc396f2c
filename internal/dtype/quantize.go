package dtype

import (
	"math"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// Range returns the smallest and largest values representable by pt.
func Range(pt rasterio.PixelType) (lo, hi float64) {
	switch pt {
	case rasterio.Byte:
		return 0, math.MaxUint8
	case rasterio.Int16:
		return math.MinInt16, math.MaxInt16
	case rasterio.UInt16:
		return 0, math.MaxUint16
	case rasterio.Int32:
		return math.MinInt32, math.MaxInt32
	case rasterio.UInt32:
		return 0, math.MaxUint32
	case rasterio.Int64:
		return math.MinInt64, math.MaxInt64
	case rasterio.UInt64:
		return 0, math.MaxUint64
	case rasterio.Float32:
		return -math.MaxFloat32, math.MaxFloat32
	default:
		return -math.MaxFloat64, math.MaxFloat64
	}
}

// Quantize maps v onto the values pt can store. Integer types round half
// away from zero and saturate; Float32 rounds to single precision.
func Quantize(pt rasterio.PixelType, v float64) float64 {
	if !pt.IsInteger() {
		if pt == rasterio.Float32 {
			return float64(float32(v))
		}
		return v
	}
	if math.IsNaN(v) {
		return 0
	}
	lo, hi := Range(pt)
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// quantizeInt64 saturates without converting 2^63, which int64 cannot hold.
func quantizeInt64(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(v)
}

func quantizeUint64(v float64) uint64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	v = math.Round(v)
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}
