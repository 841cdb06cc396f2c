package rasterio

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Fallback is implemented by drivers that accept almost any path and must
// therefore be consulted after every other driver.
type Fallback interface {
	Fallback() bool
}

// SerialWriter is implemented by drivers whose files must not be written
// through more than one handle at a time.
type SerialWriter interface {
	SerialWrites() bool
}

// SerialWrites reports whether the driver registered under format requires
// a single writer.
func SerialWrites(format string) bool {
	d, err := Lookup(format)
	if err != nil {
		return false
	}
	s, ok := d.(SerialWriter)
	return ok && s.SerialWrites()
}

// FormatDriver is implemented by drivers that create more than one output
// format, such as a GDAL binding.
type FormatDriver interface {
	Driver
	// WithFormat returns a driver creating format, or false if the format is
	// unknown to it.
	WithFormat(format string) (Driver, bool)
}

var registry struct {
	mu      sync.RWMutex
	drivers []Driver
}

// Register adds d to the driver registry, replacing any driver with the
// same name.
func Register(d Driver) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	for i, existing := range registry.drivers {
		if strings.EqualFold(existing.Name(), d.Name()) {
			registry.drivers[i] = d
			return
		}
	}
	registry.drivers = append(registry.drivers, d)
}

// Unregister removes the driver with the given name, if any.
func Unregister(name string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	for i, d := range registry.drivers {
		if strings.EqualFold(d.Name(), name) {
			registry.drivers = append(registry.drivers[:i], registry.drivers[i+1:]...)
			return
		}
	}
}

// Drivers returns the registered drivers in lookup order.
func Drivers() []Driver {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	ordered := make([]Driver, 0, len(registry.drivers))
	var last []Driver
	for _, d := range registry.drivers {
		if f, ok := d.(Fallback); ok && f.Fallback() {
			last = append(last, d)
			continue
		}
		ordered = append(ordered, d)
	}
	return append(ordered, last...)
}

// Lookup returns the driver for an output format. name is a registered
// driver name ("ENVI"), a driver and one of its formats ("GDAL:HFA"), or a
// bare format that a FormatDriver accepts ("GTiff").
func Lookup(name string) (Driver, error) {
	drivers := Drivers()
	for _, d := range drivers {
		if strings.EqualFold(d.Name(), name) {
			return d, nil
		}
	}

	if base, format, ok := strings.Cut(name, ":"); ok {
		for _, d := range drivers {
			if !strings.EqualFold(d.Name(), base) {
				continue
			}
			if fd, ok := d.(FormatDriver); ok {
				if sub, ok := fd.WithFormat(format); ok {
					return sub, nil
				}
			}
			return nil, fmt.Errorf("%w: %s has no format %q", ErrNoDriver, d.Name(), format)
		}
		return nil, fmt.Errorf("%w named %q", ErrNoDriver, base)
	}

	for _, d := range drivers {
		if fd, ok := d.(FormatDriver); ok {
			if sub, ok := fd.WithFormat(name); ok {
				return sub, nil
			}
		}
	}
	return nil, fmt.Errorf("%w named %q", ErrNoDriver, name)
}

// DriverFor returns the first driver that identifies path.
func DriverFor(path string) (Driver, error) {
	for _, d := range Drivers() {
		if d.Identify(path) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w for %q", ErrNoDriver, path)
}

// Open opens path with the first driver that identifies it.
func Open(path string, mode Mode) (Dataset, error) {
	d, err := DriverFor(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendOpen, err)
	}
	ds, err := d.Open(path, mode)
	if err != nil {
		return nil, wrapKind(ErrBackendOpen, d.Name(), path, err)
	}
	return ds, nil
}

// OpenFormat opens path with the driver registered under format, skipping
// identification.
func OpenFormat(format, path string, mode Mode) (Dataset, error) {
	d, err := Lookup(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendOpen, err)
	}
	ds, err := d.Open(path, mode)
	if err != nil {
		return nil, wrapKind(ErrBackendOpen, d.Name(), path, err)
	}
	return ds, nil
}

// Create creates path with the driver registered under format.
func Create(format, path string, g Geometry) (Dataset, error) {
	if err := g.Validate(); err != nil {
		return nil, wrapKind(ErrBackendCreate, format, path, err)
	}
	d, err := Lookup(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendCreate, err)
	}
	ds, err := d.Create(path, g)
	if err != nil {
		return nil, wrapKind(ErrBackendCreate, d.Name(), path, err)
	}
	return ds, nil
}

// Remove deletes path through the driver that identifies it.
func Remove(path string) error {
	d, err := DriverFor(path)
	if err != nil {
		return err
	}
	return d.Remove(path)
}

// wrapKind prefixes err with kind unless the driver already did.
func wrapKind(kind error, driver, path string, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", kind, driver, path, err)
}
