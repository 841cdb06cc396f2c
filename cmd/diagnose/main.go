// Diagnostic tool for inspecting rasters before streaming them
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/robert-malhotra/go-rasterstream/internal/block"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
	_ "github.com/robert-malhotra/go-rasterstream/rasterio/envi"
	_ "github.com/robert-malhotra/go-rasterstream/rasterio/memory"
)

func main() {
	size := pflag.IntP("block-size", "b", 256, "block side, or strip height, in pixels")
	shape := pflag.String("block-shape", "square", "block shape: square or strip")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: diagnose [flags] <raster>...")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(1)
	}

	s, err := block.ParseShape(*shape)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	policy := block.Policy{Shape: s, Size: *size}

	failed := false
	for _, path := range pflag.Args() {
		if err := describe(path, policy); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			failed = true
		}
		fmt.Println()
	}
	if failed {
		os.Exit(1)
	}
}

func describe(path string, policy block.Policy) error {
	fmt.Printf("=== Analyzing %s ===\n\n", path)

	d, err := rasterio.DriverFor(path)
	if err != nil {
		return err
	}
	ds, err := d.Open(path, rasterio.ReadOnly)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer ds.Close()

	g := ds.Geometry()
	fmt.Printf("Driver:     %s\n", d.Name())
	fmt.Printf("Size:       %d x %d, %d bands\n", g.Width, g.Height, g.Bands)
	fmt.Printf("Pixel type: %v (%d bytes)\n", g.PixelType, g.PixelType.Size())
	fmt.Printf("Data:       %s (%s pixels)\n", humanize.IBytes(uint64(g.Bytes())), humanize.Comma(g.Pixels()))

	ref, err := ds.GeoReference()
	switch {
	case err != nil:
		fmt.Printf("Georef:     ERROR %v\n", err)
	case ref.HasTransform:
		t := ref.Transform
		fmt.Printf("Origin:     (%g, %g)\n", t[0], t[3])
		fmt.Printf("Pixel size: (%g, %g)\n", t[1], t[5])
		if t[2] != 0 || t[4] != 0 {
			fmt.Printf("Rotation:   (%g, %g)\n", t[2], t[4])
		}
	default:
		fmt.Println("Georef:     none")
	}
	if ref.Projection != "" {
		proj := ref.Projection
		if len(proj) > 72 {
			proj = proj[:72] + "..."
		}
		fmt.Printf("Projection: %s\n", strings.TrimSpace(proj))
	}

	plan, err := block.Plan(g.Width, g.Height, policy)
	if err != nil {
		return err
	}
	first := plan[0]
	bytes := uint64(first.Area()) * uint64(g.Bands) * 8
	fmt.Printf("Blocks:     %d %v blocks of %d, largest %dx%d (%s per block as float64)\n",
		len(plan), policy.Shape, policy.Size, first.W, first.H, humanize.IBytes(bytes))
	return nil
}
