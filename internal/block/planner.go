package block

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// Shape selects how an image is tiled.
type Shape int

const (
	// Square tiles the image with Size x Size blocks, row-major.
	Square Shape = iota
	// Strip tiles the image with full-width strips of Size rows.
	Strip
)

func (s Shape) String() string {
	switch s {
	case Square:
		return "square"
	case Strip:
		return "strip"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ParseShape parses "square" or "strip".
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "square":
		return Square, nil
	case "strip", "line":
		return Strip, nil
	}
	return Square, fmt.Errorf("unknown block shape %q", s)
}

// Policy is a block shape and size.
type Policy struct {
	Shape Shape
	Size  int
}

// Dims returns the nominal block width and height for a width x height image.
func (p Policy) Dims(width, height int) (w, h int) {
	w, h = p.Size, p.Size
	if p.Shape == Strip {
		w = width
	}
	return min(w, width), min(h, height)
}

// Plan tiles [0,width) x [0,height) with non-overlapping rectangles.
// Blocks are ordered by block row, then block column; the last block in
// each direction is shrunk to the pixels that remain.
func Plan(width, height int, p Policy) ([]rasterio.Rect, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if p.Size <= 0 {
		return nil, fmt.Errorf("invalid block size %d", p.Size)
	}
	bw, bh := p.Dims(width, height)

	cols := (width + bw - 1) / bw
	rows := (height + bh - 1) / bh
	rects := make([]rasterio.Rect, 0, cols*rows)
	for y := 0; y < height; y += bh {
		h := min(bh, height-y)
		for x := 0; x < width; x += bw {
			rects = append(rects, rasterio.Rect{X: x, Y: y, W: min(bw, width-x), H: h})
		}
	}
	return rects, nil
}
