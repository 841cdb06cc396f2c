// Package alloc provides memory accounting for block buffers.
//
// A streaming pass holds a fixed number of pixel blocks in flight: the queue
// capacity plus one block per producer and consumer. Each block buffer is
// reserved through an [Allocator] before it is made. With a limit configured,
// a pipeline whose blocks do not fit fails with [ErrAllocation] as soon as
// the first block over the limit is requested.
//
// # Usage
//
//	a := alloc.New(512 << 20) // 512 MiB
//	if err := a.Alloc(uint64(len(buf) * 8)); err != nil {
//		return err
//	}
//	defer a.Free(uint64(len(buf) * 8))
//
// [Allocator.Stats] reports totals, current usage and the peak; after a pass
// [Allocator.Validate] confirms every reservation was released.
package alloc
