// Package device implements the device-routing core of the vmkit VMM: a
// registry of managed devices, transactional resource registration, and the
// range-keyed dispatch that routes a trapped guest access to the owning
// device.
//
// # Registration
//
// A caller builds a list of unresolved resource requests (concrete or
// wildcard addresses, instance ids, interrupt lines) and hands it to
// Manager.Register together with the device:
//
//	err := mgr.Register(uart, nil, []types.Resource{
//	    &types.AddressRange{Addr: types.NewAddr(0x3f8), Size: 8, IO: types.Pio},
//	    &types.InstanceID{},
//	    &types.InterruptLines{Kind: types.InterruptLegacy, Base: 4, Count: 1},
//	})
//
// Registration is atomic: requests are resolved through the system allocator
// in list order, and any failure releases exactly the prefix that succeeded,
// in the same order, before the call returns. A device is never left holding
// a partial resource set. Name uniqueness is validated before anything is
// allocated, so a duplicate name cannot leak resources.
//
// Unregister is the exact mirror: once it returns nil, none of the device's
// resources remain reachable, allocated, or dispatched.
//
// # Dispatch
//
// Each trapped guest access resolves through one of two buses (MMIO, PIO) to
// the entry whose half-open range contains the address, then forwards to the
// device's own Read or Write. PhysicalMmio ranges are bookkeeping-only and
// never appear on a bus. A miss is reported to the caller as a
// types.ErrKindNonExist error; the surrounding VMM decides how to inject the
// fault.
//
// # Locking
//
// One manager-wide mutex guards allocator, registry, and bus state, treating
// each register/unregister/route as a single unit of work. These are
// attach/detach-time operations; coarse locking is fine. Device handles are
// shared and internally synchronized, so concurrent dispatch to different
// devices only contends on the brief bus lookup, never on the manager lock
// during the device's actual read or write.
package device
