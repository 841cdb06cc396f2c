// Package raster computes whole-image statistics, RX anomaly scores and
// destriped images over rasters too large to hold in memory.
//
// Every operation streams the input through fixed-size blocks. Producer
// goroutines read blocks through their own dataset handles into a bounded
// queue; consumer goroutines accumulate or transform them. Results do not
// depend on block size, goroutine counts or queue capacity.
//
// # Statistics
//
//	stats, err := raster.ComputeStatistics(ctx, "scene.img",
//	    raster.WithBlockSize(512),
//	    raster.WithConsumers(8),
//	)
//
// # Anomaly Detection
//
// DetectAnomalies writes a single-band Float32 raster of RX scores:
//
//	rep, err := raster.DetectAnomalies(ctx, "scene.img", "rx.img",
//	    raster.WithRXKind(raster.RXD),
//	    raster.WithWriters(2),
//	)
//
// A singular covariance fails with [ErrSingularCovariance] unless
// [WithPseudoInverse] is set.
//
// # Stripe Removal
//
//	err := raster.RemoveStripes(ctx, "scene.img", "clean.img",
//	    raster.WithStripeMethod(raster.PolyFit),
//	    raster.WithStripeWindow(3),
//	)
//
// # Drivers
//
// Paths are resolved through the rasterio driver registry. Importing
// rasterio/memory or rasterio/envi registers those drivers; this package
// imports both.
package raster

import (
	_ "github.com/robert-malhotra/go-rasterstream/rasterio/envi"
	_ "github.com/robert-malhotra/go-rasterstream/rasterio/memory"
)
