package device

import "github.com/vmkit/vmkit/pkg/types"

var (
	// ErrDeviceExist indicates a registration under a name that is taken.
	ErrDeviceExist = &types.Error{Kind: types.ErrKindExist, Msg: "device: name is already registered"}

	// ErrDeviceNonExist indicates an operation on a device the manager does
	// not know.
	ErrDeviceNonExist = &types.Error{Kind: types.ErrKindNonExist, Msg: "device: no such device"}

	// ErrDeviceOverlap indicates a resource that collides with an existing
	// allocation or dispatch entry.
	ErrDeviceOverlap = &types.Error{Kind: types.ErrKindOverlap, Msg: "device: resource overlaps an existing registration"}

	// ErrNonePIORequest indicates a port I/O request without a concrete
	// port. PIO space is small; callers pick their ports explicitly.
	ErrNonePIORequest = &types.Error{Kind: types.ErrKindNonePIORequest, Msg: "device: port I/O request must name a concrete port"}

	// ErrUnmapped indicates a trapped access to an address no device owns.
	// The surrounding VMM handles it per its own fault-injection policy.
	ErrUnmapped = &types.Error{Kind: types.ErrKindNonExist, Msg: "device: access to unmapped address"}

	// ErrInvalidResource indicates a malformed resource list, for example a
	// second interrupt request in one registration or a dispatch on a
	// PhysicalMmio kind.
	ErrInvalidResource = &types.Error{Kind: types.ErrKindInvalid, Msg: "device: invalid resource request"}
)
