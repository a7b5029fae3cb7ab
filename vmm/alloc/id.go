package alloc

import (
	"slices"
)

// IdAllocator manages one inclusive range of unsigned 32-bit integers,
// typically instance ids or interrupt lines. Used values are kept as an
// ascending, duplicate-free sequence.
type IdAllocator struct {
	start uint32
	end   uint32 // inclusive
	used  []uint32
}

// NewIdAllocator creates a pool managing [start, end]. An inverted range is
// rejected with a types.ErrKindInvalid error rather than silently producing
// an always-empty pool.
func NewIdAllocator(start, end uint32) (*IdAllocator, error) {
	if start > end {
		return nil, ErrInvalid
	}
	return &IdAllocator{start: start, end: end}, nil
}

// Start returns the lowest managed value.
func (p *IdAllocator) Start() uint32 { return p.start }

// End returns the highest managed value, inclusive.
func (p *IdAllocator) End() uint32 { return p.end }

// Used returns a snapshot of the allocated values in ascending order.
func (p *IdAllocator) Used() []uint32 {
	return slices.Clone(p.used)
}

// firstUsable returns the lowest free value, scanning past the contiguous
// run of used values that starts at the pool's lower bound.
func (p *IdAllocator) firstUsable() (uint32, bool) {
	next := p.start
	for _, v := range p.used {
		if v > next {
			break
		}
		if v == ^uint32(0) {
			return 0, false
		}
		next = v + 1
	}
	if next > p.end {
		return 0, false
	}
	return next, true
}

// Allocate reserves an id. A nil request takes the lowest free value; a
// concrete request must lie inside the managed range (types.ErrKindInvalid)
// and be free (types.ErrKindDuplicated). A full pool yields
// types.ErrKindOverflow.
func (p *IdAllocator) Allocate(id *uint32) (uint32, error) {
	var value uint32
	switch {
	case id != nil:
		if *id < p.start || *id > p.end {
			return 0, ErrInvalid
		}
		if _, taken := slices.BinarySearch(p.used, *id); taken {
			return 0, ErrDuplicated
		}
		value = *id
	default:
		v, ok := p.firstUsable()
		if !ok {
			return 0, ErrOverflow
		}
		value = v
	}

	i, _ := slices.BinarySearch(p.used, value)
	p.used = slices.Insert(p.used, i, value)
	return value, nil
}

// Free releases an id. Freeing a value that is not allocated is a no-op.
func (p *IdAllocator) Free(id uint32) {
	if i, ok := slices.BinarySearch(p.used, id); ok {
		p.used = slices.Delete(p.used, i, i+1)
	}
}

// Compile-time interface check.
var _ IDPool = (*IdAllocator)(nil)
