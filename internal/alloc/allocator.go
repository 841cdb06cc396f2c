// Package alloc accounts for the memory held by block buffers.
package alloc

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAllocation is returned when an allocation would exceed the limit.
var ErrAllocation = errors.New("allocation failed")

// Allocator tracks bytes handed out to block buffers against an optional
// limit. It does not allocate memory itself; callers reserve before they
// make a buffer and release when the buffer is dropped.
type Allocator struct {
	mu sync.Mutex

	// limit is the maximum number of bytes in use at once; zero means unlimited.
	limit uint64

	stats Stats
}

// Stats contains allocation statistics.
type Stats struct {
	TotalAllocations uint64 // Number of reservations made
	TotalBytesAlloc  uint64 // Total bytes reserved
	TotalBytesFree   uint64 // Total bytes released
	LargestAlloc     uint64 // Largest single reservation
	InUse            uint64 // Bytes currently reserved
	Peak             uint64 // Highest InUse observed
	Rejected         uint64 // Reservations refused by the limit
}

// New creates an Allocator with the given byte limit (0 for no limit).
func New(limit uint64) *Allocator {
	return &Allocator{limit: limit}
}

// Alloc reserves size bytes. It fails with ErrAllocation if the reservation
// would push usage past the limit.
func (a *Allocator) Alloc(size uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.limit > 0 && a.stats.InUse+size > a.limit {
		a.stats.Rejected++
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use", ErrAllocation, size, a.stats.InUse, a.limit)
	}

	a.stats.TotalAllocations++
	a.stats.TotalBytesAlloc += size
	a.stats.InUse += size
	if size > a.stats.LargestAlloc {
		a.stats.LargestAlloc = size
	}
	if a.stats.InUse > a.stats.Peak {
		a.stats.Peak = a.stats.InUse
	}
	return nil
}

// Free releases size bytes previously reserved with Alloc.
func (a *Allocator) Free(size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size > a.stats.InUse {
		size = a.stats.InUse
	}
	a.stats.InUse -= size
	a.stats.TotalBytesFree += size
}

// Limit returns the configured limit in bytes.
func (a *Allocator) Limit() uint64 {
	return a.limit
}

// Stats returns a copy of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Validate checks that every reservation has been released.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stats.InUse != 0 {
		return fmt.Errorf("%d bytes still reserved", a.stats.InUse)
	}
	if a.stats.TotalBytesFree != a.stats.TotalBytesAlloc {
		return fmt.Errorf("released %d bytes, reserved %d", a.stats.TotalBytesFree, a.stats.TotalBytesAlloc)
	}
	return nil
}
