package rasterio

import (
	"fmt"
	"strings"
)

// Interleave is the in-memory ordering of band and spatial samples.
type Interleave int

const (
	// BSQ stores each band as a full w*h plane.
	BSQ Interleave = iota
	// BIL stores, for every row, one w-sample line per band.
	BIL
	// BIP stores all band samples of a pixel together.
	BIP
)

func (il Interleave) String() string {
	switch il {
	case BSQ:
		return "bsq"
	case BIL:
		return "bil"
	case BIP:
		return "bip"
	default:
		return fmt.Sprintf("Interleave(%d)", int(il))
	}
}

// ParseInterleave parses "bsq", "bil" or "bip", case-insensitively.
func ParseInterleave(s string) (Interleave, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bsq":
		return BSQ, nil
	case "bil":
		return BIL, nil
	case "bip":
		return BIP, nil
	}
	return BSQ, fmt.Errorf("unknown interleave %q", s)
}

// Index returns the buffer position of sample (k, x, y) in an n-band block
// of width w and height h, where k is the position within the band list.
func (il Interleave) Index(n, w, h, k, x, y int) int {
	switch il {
	case BIL:
		return (y*n+k)*w + x
	case BIP:
		return (y*w+x)*n + k
	default:
		return (k*h+y)*w + x
	}
}

// Strides returns the distance between consecutive samples along the band,
// x and y axes.
func (il Interleave) Strides(n, w, h int) (band, x, y int) {
	switch il {
	case BIL:
		return w, 1, n * w
	case BIP:
		return 1, n, w * n
	default:
		return w * h, 1, w
	}
}

// Reorder copies an n-band w x h block from src in layout srcIl into dst in
// layout dstIl. dst and src must not overlap.
func Reorder(dst []float64, dstIl Interleave, src []float64, srcIl Interleave, n, w, h int) {
	if dstIl == srcIl || n == 1 {
		copy(dst, src[:n*w*h])
		return
	}
	sb, sx, sy := srcIl.Strides(n, w, h)
	db, dx, dy := dstIl.Strides(n, w, h)
	for k := 0; k < n; k++ {
		for y := 0; y < h; y++ {
			si := k*sb + y*sy
			di := k*db + y*dy
			if sx == 1 && dx == 1 {
				copy(dst[di:di+w], src[si:si+w])
				continue
			}
			for x := 0; x < w; x++ {
				dst[di] = src[si]
				si += sx
				di += dx
			}
		}
	}
}

