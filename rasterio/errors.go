package rasterio

import "errors"

// Backend errors. Drivers wrap the underlying cause with one of these kinds.
var (
	ErrBackendOpen          = errors.New("cannot open raster dataset")
	ErrBackendCreate        = errors.New("cannot create raster dataset")
	ErrUnsupportedPixelType = errors.New("unsupported pixel type")
	ErrBlockRead            = errors.New("block read failed")
	ErrBlockWrite           = errors.New("block write failed")
	ErrNoDriver             = errors.New("no raster driver")
	ErrOutOfBounds          = errors.New("block outside raster extent")
	ErrReadOnly             = errors.New("dataset opened read-only")
	ErrClosed               = errors.New("dataset is closed")
)
