package device

import "github.com/vmkit/vmkit/pkg/types"

// Descriptor records one registered device: its handle, its informational
// place in the bus topology, the resources resolved for it, and the
// interrupt source group created on its behalf. Descriptors live from
// successful registration to unregistration; the device handle itself is
// shared and outlives the descriptor.
type Descriptor struct {
	// Name is the registry key, the device's reported name.
	Name string

	// Device is the managed device handle.
	Device Device

	// ParentBus is an optional topology link (e.g. the PCI host bridge a
	// function hangs off). It is informational only and never consulted for
	// dispatch.
	ParentBus Device

	// Resources is the fully resolved resource list, in request order.
	Resources []types.Resource

	// IrqGroup is the interrupt source group allocated during registration,
	// or nil when the device requested no interrupt lines.
	IrqGroup InterruptSourceGroup
}
