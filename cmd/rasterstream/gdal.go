//go:build gdal

package main

import _ "github.com/robert-malhotra/go-rasterstream/rasterio/gdal"
