package types

import "fmt"

// IoKind distinguishes the address spaces a range can live in.
type IoKind int

const (
	// Pio is port-mapped I/O, trapped and dispatched on guest access.
	Pio IoKind = iota
	// Mmio is memory-mapped I/O, trapped and dispatched on guest access.
	Mmio
	// PhysicalMmio is a physically backed memory range. It participates in
	// address-space bookkeeping but never causes a VM exit, so it is never
	// registered for dispatch.
	PhysicalMmio
)

func (k IoKind) String() string {
	switch k {
	case Pio:
		return "pio"
	case Mmio:
		return "mmio"
	case PhysicalMmio:
		return "physical-mmio"
	default:
		return fmt.Sprintf("IoKind(%d)", int(k))
	}
}

// InterruptKind selects the flavor of interrupt lines a device asks for.
type InterruptKind int

const (
	InterruptLegacy InterruptKind = iota
	InterruptMSI
	InterruptMSIX
)

func (k InterruptKind) String() string {
	switch k {
	case InterruptLegacy:
		return "legacy"
	case InterruptMSI:
		return "msi"
	case InterruptMSIX:
		return "msi-x"
	default:
		return fmt.Sprintf("InterruptKind(%d)", int(k))
	}
}

// Resource is one entry of a device's resource list: an address range, an
// integer instance id, or a request for interrupt lines. Requests start out
// unresolved (nil address / nil id means the allocator chooses) and come back
// from registration fully resolved.
type Resource interface {
	isResource()
}

// AddressRange is a byte range in one of the I/O address spaces.
//
// Pool optionally names the allocator pool the range is drawn from; when
// empty, the default pool for the IO kind is used. Distinct pools of the same
// kind let a machine carve disjoint windows (for example a 32-bit and a
// 64-bit MMIO hole) that are sized and allocated independently.
type AddressRange struct {
	Addr *GuestAddress // nil requests first-fit placement
	Size uint64
	IO   IoKind
	Pool string
}

func (*AddressRange) isResource() {}

// Resolved reports whether the range has been given a concrete address.
func (r *AddressRange) Resolved() bool { return r.Addr != nil }

func (r *AddressRange) String() string {
	if r.Addr == nil {
		return fmt.Sprintf("%s[wildcard+%#x]", r.IO, r.Size)
	}
	return fmt.Sprintf("%s[%s+%#x]", r.IO, *r.Addr, r.Size)
}

// InstanceID is a unique integer identifier drawn from a named id pool.
type InstanceID struct {
	ID   *uint32 // nil requests the first free id
	Pool string
}

func (*InstanceID) isResource() {}

// Resolved reports whether the id has been assigned.
func (r *InstanceID) Resolved() bool { return r.ID != nil }

// InterruptLines asks for Count interrupt lines of the given kind starting at
// Base. The device manager turns the request into an interrupt source group
// through its InterruptManager capability.
type InterruptLines struct {
	Kind  InterruptKind
	Base  uint32
	Count uint32
}

func (*InterruptLines) isResource() {}

// NewID returns a pointer to a uint32, for exact-value id requests.
func NewID(id uint32) *uint32 { return &id }
