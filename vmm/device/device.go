package device

import "github.com/vmkit/vmkit/pkg/types"

// Device is the contract every managed device implements. Implementations
// must be internally synchronized: the manager forwards reads and writes
// from multiple vCPU threads without holding its own lock.
type Device interface {
	// Name returns the device's unique name, the registry key.
	Name() string

	// Read fills data from the device state backing the given address.
	// The address is the absolute trapped guest address, not an offset.
	Read(addr types.GuestAddress, data []byte, kind types.IoKind) error

	// Write stores data into the device state backing the given address.
	Write(addr types.GuestAddress, data []byte, kind types.IoKind) error

	// AcceptResources hands the fully resolved resource list to the device
	// during registration, so it can cache its assigned ranges for its own
	// read/write logic.
	AcceptResources(resources []types.Resource)
}

// InterruptSourceGroup is an opaque handle for one or more interrupt lines
// bound to a device. Handles are shared: the manager keeps one per
// descriptor and the device typically keeps another.
type InterruptSourceGroup interface {
	// Base returns the first line of the group.
	Base() uint32
	// Count returns the number of lines in the group.
	Count() uint32
	// Trigger injects the interrupt at the given index within the group.
	Trigger(index uint32) error
	// Close releases the group's lines and any kernel resources behind them.
	Close() error
}

// InterruptManager creates interrupt source groups on behalf of the device
// manager. The interrupt controller machinery behind it is out of scope
// here; a failure during registration rolls the registration back exactly
// like a failed address allocation.
type InterruptManager interface {
	CreateGroup(kind types.InterruptKind, base, count uint32) (InterruptSourceGroup, error)
}
