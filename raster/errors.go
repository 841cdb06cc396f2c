package raster

import (
	"errors"

	"github.com/robert-malhotra/go-rasterstream/internal/alloc"
	"github.com/robert-malhotra/go-rasterstream/internal/linalg"
	"github.com/robert-malhotra/go-rasterstream/rasterio"
)

// Error kinds. Every error returned by this package matches at most one of
// these with errors.Is, plus the underlying cause.
var (
	ErrBackendOpen          = rasterio.ErrBackendOpen
	ErrBackendCreate        = rasterio.ErrBackendCreate
	ErrUnsupportedPixelType = rasterio.ErrUnsupportedPixelType
	ErrBlockRead            = rasterio.ErrBlockRead
	ErrBlockWrite           = rasterio.ErrBlockWrite
	ErrSingularCovariance   = linalg.ErrSingularCovariance
	ErrAllocation           = alloc.ErrAllocation
	ErrInvalidOption        = errors.New("invalid option")
)
