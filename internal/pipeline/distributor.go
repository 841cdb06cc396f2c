package pipeline

import "fmt"

// Range is a half-open interval [Start, End) of plan indices.
type Range struct {
	Start int
	End   int
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Split divides [0, total) into threads contiguous ranges. Every range holds
// total/threads indices except the last, which also takes the remainder.
// Ranges may be empty when threads exceeds total.
func Split(total, threads int) []Range {
	if threads < 1 {
		threads = 1
	}
	if total < 0 {
		total = 0
	}
	size := total / threads
	ranges := make([]Range, threads)
	for i := range ranges {
		ranges[i] = Range{Start: i * size, End: (i + 1) * size}
	}
	ranges[threads-1].End = total
	return ranges
}
