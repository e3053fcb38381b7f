package math

import "golang.org/x/exp/constraints"

type MemoryRange struct {
	Offset uint64
	Size   uint64
}

// GetAligned rounds operand up to the next multiple of granularity, which must be a power of two.
func GetAligned[T constraints.Unsigned](operand, granularity T) T {
	return (operand + (granularity - 1)) &^ (granularity - 1)
}

func GetAlignedRange(offset, size, granularity uint64) MemoryRange {
	return MemoryRange{
		Offset: GetAligned(offset, granularity),
		Size:   GetAligned(size, granularity),
	}
}

// Stride pads size to a multiple of alignment using ((size-1)|(alignment-1))+1.
// A zero size has a zero stride.
func Stride[T constraints.Unsigned](size, alignment T) T {
	if size == 0 {
		return 0
	}
	if alignment <= 1 {
		return size
	}
	return ((size - 1) | (alignment - 1)) + 1
}
