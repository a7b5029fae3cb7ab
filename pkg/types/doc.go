// Package types defines the shared value types of the vmkit core: guest
// physical addresses, I/O kinds, device resource descriptions, and the typed
// error model used across the allocator and device-manager packages.
//
// # Guest Addresses
//
// GuestAddress is an opaque, totally ordered guest-physical address. The
// allocator and dispatch layers never assume anything about the address
// beyond ordering and checked arithmetic:
//
//	next, ok := addr.CheckedAdd(size)
//	if !ok {
//	    // base + size does not fit in the address domain
//	}
//
// # Resources
//
// A resource is either an address range (port I/O, memory-mapped I/O, or a
// physically backed MMIO window), an integer instance id, or a request for a
// group of interrupt lines. Resources are built by the caller in unresolved
// form (nil address / nil id means "allocator's choice") and handed to
// device.Manager.Register, which returns them fully resolved:
//
//	reqs := []types.Resource{
//	    &types.AddressRange{Addr: types.NewAddr(0x3f8), Size: 8, IO: types.Pio},
//	    &types.AddressRange{Size: 0x1000, IO: types.Mmio},
//	    &types.InstanceID{},
//	    &types.InterruptLines{Kind: types.InterruptLegacy, Count: 1},
//	}
//
// PhysicalMmio ranges take part in address-space bookkeeping but are never
// registered for VM-exit dispatch.
//
// # Errors
//
// Error is a typed error carrying an ErrKind so callers can branch on intent
// rather than message text. Sentinel values (ErrOverlap, ErrExist, ...) are
// errors.Is-comparable by kind:
//
//	if errors.Is(err, types.ErrOverlap) {
//	    // the requested range intersects a live allocation
//	}
package types
