package device

import (
	"fmt"
	"sort"

	"github.com/vmkit/vmkit/pkg/types"
)

// Entry is one dispatch mapping: the half-open range [Start, Start+Size)
// owned by Dev.
type Entry struct {
	Start types.GuestAddress
	Size  uint64
	Dev   Device
}

// Bus is a range-keyed dispatch map for one I/O address space. Entries are
// ordered and compared by range start only; overlap prevention is the
// allocator's job, done before anything reaches a bus, so the bus itself
// only has to reject a same-start collision.
type Bus struct {
	entries []Entry // ascending by Start
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Len returns the number of dispatch entries.
func (b *Bus) Len() int { return len(b.entries) }

// Entries returns a snapshot of the dispatch table in ascending range order.
func (b *Bus) Entries() []Entry {
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// search returns the index of the first entry with Start >= addr.
func (b *Bus) search(addr types.GuestAddress) int {
	return sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].Start >= addr
	})
}

// Insert adds a dispatch entry. An entry with the same range start already
// present fails with a types.ErrKindOverlap error.
func (b *Bus) Insert(start types.GuestAddress, size uint64, dev Device) error {
	i := b.search(start)
	if i < len(b.entries) && b.entries[i].Start == start {
		return fmt.Errorf("bus entry at %s: %w", start, ErrDeviceOverlap)
	}
	b.entries = append(b.entries, Entry{})
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = Entry{Start: start, Size: size, Dev: dev}
	return nil
}

// Remove erases the entry keyed by start. Reports whether one was present.
func (b *Bus) Remove(start types.GuestAddress) bool {
	i := b.search(start)
	if i == len(b.entries) || b.entries[i].Start != start {
		return false
	}
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
	return true
}

// Find resolves addr to the owning device: the entry with the greatest
// start <= addr whose size still covers the address.
func (b *Bus) Find(addr types.GuestAddress) (Device, bool) {
	i := b.search(addr)
	if i < len(b.entries) && b.entries[i].Start == addr {
		return b.entries[i].Dev, true
	}
	if i == 0 {
		return nil, false
	}
	e := b.entries[i-1]
	if addr.OffsetFrom(e.Start) < e.Size {
		return e.Dev, true
	}
	return nil, false
}
