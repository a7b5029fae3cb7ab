package alloc

import (
	"math/bits"
	"sort"

	"github.com/vmkit/vmkit/pkg/types"
)

// DefaultAlignment is the alignment applied when a pool is created without
// an explicit WithAlignment option.
const DefaultAlignment = 4

// Range is an allocated (start, size) pair, half-open [Start, Start+Size).
type Range struct {
	Start types.GuestAddress
	Size  uint64
}

// End returns the inclusive last address of the range.
func (r Range) End() types.GuestAddress {
	return r.Start.UncheckedAdd(r.Size - 1)
}

// AddressAllocator manages one contiguous guest-physical address space and
// hands out non-overlapping aligned byte ranges within it.
//
// The range set is kept sorted by start address. Its last entry is a
// synthetic zero-size marker one past the managed end; the marker bounds
// every scan, is the logical start of free space for first-fit search, and
// is never removed.
type AddressAllocator struct {
	base      types.GuestAddress
	end       types.GuestAddress // inclusive
	alignment uint64
	ranges    []Range
}

// AddressOption configures an AddressAllocator at construction.
type AddressOption func(*AddressAllocator)

// WithAlignment sets the minimum alignment of the pool. The value must be a
// non-zero power of two; NewAddressAllocator rejects anything else.
func WithAlignment(alignment uint64) AddressOption {
	return func(a *AddressAllocator) {
		a.alignment = alignment
	}
}

// NewAddressAllocator creates a pool managing [base, base+size). It fails
// with a types.ErrKindOverflow error when base+size does not fit in the
// address domain, and with types.ErrKindInvalid when size is zero or the
// alignment is zero or not a power of two.
func NewAddressAllocator(base types.GuestAddress, size uint64, opts ...AddressOption) (*AddressAllocator, error) {
	if size == 0 {
		return nil, ErrInvalid
	}

	bound, ok := base.CheckedAdd(size)
	if !ok {
		return nil, ErrOverflow
	}

	a := &AddressAllocator{
		base:      base,
		end:       bound.UncheckedSub(1),
		alignment: DefaultAlignment,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.alignment == 0 || bits.OnesCount64(a.alignment) != 1 {
		return nil, ErrInvalid
	}

	// The end-of-space marker. Zero-size, one past the managed end, never
	// removed; it bounds scans and anchors first-fit search.
	a.ranges = append(a.ranges, Range{Start: bound, Size: 0})

	return a, nil
}

// Base returns the first managed address.
func (a *AddressAllocator) Base() types.GuestAddress { return a.base }

// End returns the last managed address, inclusive.
func (a *AddressAllocator) End() types.GuestAddress { return a.end }

// Alignment returns the pool's minimum alignment.
func (a *AddressAllocator) Alignment() uint64 { return a.alignment }

// Ranges returns a snapshot of the live allocations in ascending order,
// excluding the terminal marker.
func (a *AddressAllocator) Ranges() []Range {
	out := make([]Range, len(a.ranges)-1)
	copy(out, a.ranges[:len(a.ranges)-1])
	return out
}

// alignUp rounds addr up to the pool alignment. Reports failure when the
// adjustment leaves the address domain.
func (a *AddressAllocator) alignUp(addr types.GuestAddress) (types.GuestAddress, bool) {
	rem := addr.Raw() % a.alignment
	if rem == 0 {
		return addr, true
	}
	return addr.CheckedAdd(a.alignment - rem)
}

// availableRange validates an exact-placement request and returns the
// address to insert.
func (a *AddressAllocator) availableRange(req types.GuestAddress, size uint64) (types.GuestAddress, error) {
	aligned, ok := a.alignUp(req)
	if !ok {
		return 0, ErrOverflow
	}
	if aligned != req {
		return 0, ErrUnalignedAddress
	}
	if aligned < a.base || aligned > a.end {
		return 0, ErrOverflow
	}

	prevEnd := a.base
	for _, r := range a.ranges {
		if aligned <= r.Start {
			// Inside the preceding range?
			if prevEnd > aligned {
				return 0, ErrOverlap
			}
			// Enough room before the next range starts?
			if r.Start.OffsetFrom(aligned) < size {
				return 0, ErrOverlap
			}
			return aligned, nil
		}
		prevEnd = r.Start.UncheckedAdd(r.Size)
	}

	// Unreachable while the terminal marker exists.
	return 0, ErrOverflow
}

// firstAvailableRange places a wildcard request. Each new range goes as close
// as possible to the upper boundary of the first gap that can hold it, so
// unconstrained allocations accumulate at the high end of the managed space
// and low addresses stay free for exact-placement requests.
func (a *AddressAllocator) firstAvailableRange(size uint64) (types.GuestAddress, error) {
	alignedSize, ok := a.alignUp(types.GuestAddress(size))
	if !ok {
		return 0, ErrOverflow
	}

	prevEnd := a.base
	for _, r := range a.ranges {
		gapStart, ok := a.alignUp(prevEnd)
		if !ok {
			return 0, ErrOverflow
		}
		prevEnd = r.Start.UncheckedAdd(r.Size)

		if r.Start < gapStart || r.Start.OffsetFrom(gapStart) < alignedSize.Raw() {
			continue
		}

		addr, ok := a.alignUp(r.Start.UncheckedSub(alignedSize.Raw()))
		if !ok {
			return 0, ErrOverflow
		}
		// The terminal marker need not be aligned, so re-check the fit
		// after rounding.
		if addr < gapStart || addr.UncheckedAdd(size) > r.Start {
			continue
		}
		return addr, nil
	}

	return 0, ErrOverflow
}

// Allocate reserves size bytes. A nil addr asks for first-fit placement; a
// concrete addr must be aligned, in bounds, and free. Returns the start of
// the reserved range.
func (a *AddressAllocator) Allocate(addr *types.GuestAddress, size uint64) (types.GuestAddress, error) {
	if size == 0 {
		return 0, ErrNullRequest
	}

	var (
		newAddr types.GuestAddress
		err     error
	)
	if addr != nil {
		newAddr, err = a.availableRange(*addr, size)
	} else {
		newAddr, err = a.firstAvailableRange(size)
	}
	if err != nil {
		return 0, err
	}

	a.insert(Range{Start: newAddr, Size: size})
	return newAddr, nil
}

// Free releases a previously allocated range. The (addr, size) pair must
// match an allocation exactly; any other call is a no-op, so a corrupted or
// partial free can never damage the bookkeeping.
func (a *AddressAllocator) Free(addr types.GuestAddress, size uint64) {
	if size == 0 {
		// The terminal marker is the only zero-size entry; it never leaves.
		return
	}
	i := a.search(addr)
	if i < len(a.ranges) && a.ranges[i].Start == addr && a.ranges[i].Size == size {
		a.ranges = append(a.ranges[:i], a.ranges[i+1:]...)
	}
}

// search returns the index of the first range with start >= addr.
func (a *AddressAllocator) search(addr types.GuestAddress) int {
	return sort.Search(len(a.ranges), func(i int) bool {
		return a.ranges[i].Start >= addr
	})
}

func (a *AddressAllocator) insert(r Range) {
	i := a.search(r.Start)
	a.ranges = append(a.ranges, Range{})
	copy(a.ranges[i+1:], a.ranges[i:])
	a.ranges[i] = r
}

// Compile-time interface check.
var _ AddressPool = (*AddressAllocator)(nil)
