package types

import (
	"fmt"
	"math"
)

// GuestAddress is a guest-physical address. It is totally ordered and
// supports checked, unchecked, and saturating arithmetic; nothing in the
// allocation or dispatch layers depends on its representation beyond that.
type GuestAddress uint64

// MaxGuestAddress is the upper bound of the guest-physical address domain.
const MaxGuestAddress = GuestAddress(math.MaxUint64)

// NewAddr returns a pointer to a GuestAddress. Convenience for building
// exact-placement resource requests, where a nil address means "wildcard".
func NewAddr(a uint64) *GuestAddress {
	addr := GuestAddress(a)
	return &addr
}

// Raw returns the address as a plain uint64.
func (a GuestAddress) Raw() uint64 { return uint64(a) }

// CheckedAdd returns a+n and true, or 0 and false if the sum does not fit in
// the address domain.
func (a GuestAddress) CheckedAdd(n uint64) (GuestAddress, bool) {
	sum := uint64(a) + n
	if sum < uint64(a) {
		return 0, false
	}
	return GuestAddress(sum), true
}

// CheckedSub returns a-n and true, or 0 and false if n is larger than a.
func (a GuestAddress) CheckedSub(n uint64) (GuestAddress, bool) {
	if n > uint64(a) {
		return 0, false
	}
	return GuestAddress(uint64(a) - n), true
}

// UncheckedAdd returns a+n, wrapping on overflow. Callers use it only where
// the bound has already been validated.
func (a GuestAddress) UncheckedAdd(n uint64) GuestAddress {
	return GuestAddress(uint64(a) + n)
}

// UncheckedSub returns a-n, wrapping on underflow. Callers use it only where
// a >= n has already been established.
func (a GuestAddress) UncheckedSub(n uint64) GuestAddress {
	return GuestAddress(uint64(a) - n)
}

// SaturatingAdd returns a+n, clamped to MaxGuestAddress.
func (a GuestAddress) SaturatingAdd(n uint64) GuestAddress {
	if sum, ok := a.CheckedAdd(n); ok {
		return sum
	}
	return MaxGuestAddress
}

// OffsetFrom returns the byte distance a-b. It panics if b > a; use
// CheckedSub when the ordering is not known.
func (a GuestAddress) OffsetFrom(b GuestAddress) uint64 {
	if b > a {
		panic(fmt.Sprintf("types: OffsetFrom underflow: %#x - %#x", uint64(a), uint64(b)))
	}
	return uint64(a - b)
}

// String formats the address in hex.
func (a GuestAddress) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}
