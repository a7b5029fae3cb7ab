// Package alloc provides the resource allocators of the vmkit core: aligned
// guest-physical address ranges, unique integer ids, and a named registry
// that manages heterogeneous pools uniformly.
//
// # Overview
//
// A virtual machine hands out three kinds of resources to its devices: byte
// ranges in an I/O address space (port I/O, memory-mapped I/O), unique
// integers (instance ids, interrupt lines), and combinations of both. This
// package implements one allocator per kind plus SystemAllocator, a
// name-keyed registry that lets the device manager treat "allocate one PIO
// range", "allocate one MMIO range", and "allocate one irq line" as the same
// operation against independently sized pools.
//
// # AddressAllocator
//
// AddressAllocator manages one contiguous address space. Requests either name
// a concrete address (which must be aligned, in bounds, and free) or leave
// the placement to the allocator:
//
//	pool, err := alloc.NewAddressAllocator(0x1000, 0x10000, alloc.WithAlignment(0x100))
//	if err != nil {
//	    return err
//	}
//	addr, err := pool.Allocate(nil, 0x1000) // first-fit placement
//
// Unconstrained allocations accumulate toward the high end of the managed
// space, preserving low addresses for future exact-placement requests. Live
// ranges never overlap, and Free releases a range only on an exact
// (address, size) match.
//
// Allocation and free are O(n) in the number of live ranges. Device counts
// per VM are small (tens, not millions), so a linear scan over a sorted
// range set beats any tree here.
//
// # IdAllocator
//
// IdAllocator manages one inclusive integer range and hands out the lowest
// free value on wildcard requests, reusing freed ids:
//
//	ids, _ := alloc.NewIdAllocator(1, 100)
//	a, _ := ids.Allocate(nil)              // 1
//	b, _ := ids.Allocate(types.NewID(3))   // 3
//	c, _ := ids.Allocate(nil)              // 2, the first gap
//
// # SystemAllocator
//
// SystemAllocator keeps two registries, one for address-valued pools and one
// for integer-valued pools. The two are deliberately separate: their
// request and response payloads differ, and collapsing them behind one
// interface would push the distinction onto every caller. Registering the
// same name twice fails with a types.ErrKindExist error.
//
// # Thread Safety
//
// Allocators are not individually synchronized. The device manager guards
// allocate/free/register/unregister as one unit of work per call; standalone
// users must do the same.
package alloc
