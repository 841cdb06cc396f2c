// Package dtype converts raster samples between their on-disk encoding and
// the float64 values the streaming engine works with.
//
// # Type Mapping
//
// Raster pixel types map to Go types as follows:
//
//	PixelType | Go Type | Size
//	----------|---------|-----
//	Byte      | uint8   | 1
//	Int16     | int16   | 2
//	UInt16    | uint16  | 2
//	Int32     | int32   | 4
//	UInt32    | uint32  | 4
//	Int64     | int64   | 8
//	UInt64    | uint64  | 8
//	Float32   | float32 | 4
//	Float64   | float64 | 8
//
// Int64 and UInt64 values beyond 2^53 lose precision in float64.
//
// # Reading Data
//
// Use [Decode] to convert raw bytes into a caller-owned float64 buffer:
//
//	err := dtype.Decode(rasterio.Int16, binary.LittleEndian, raw, samples)
//
// # Writing Data
//
// Use [Encode] to convert float64 samples into raw bytes. Integer types are
// rounded half away from zero and saturated at the type limits; NaN encodes
// as zero. [Quantize] applies the same rule without encoding, for backends
// that keep samples in memory.
//
// # Key Functions
//
//   - [Decode]: raw bytes to float64
//   - [Encode]: float64 to raw bytes
//   - [Quantize]: round and saturate a value to a pixel type's range
//   - [ElementSize]: size of one sample in bytes
//   - [Range]: representable range of a pixel type
package dtype
