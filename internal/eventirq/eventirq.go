// Package eventirq provides the default InterruptManager for the device
// manager. On Linux each interrupt line is backed by an eventfd, so a
// group's lines can be handed to the hypervisor as irqfds; elsewhere, and
// for tests, lines are plain in-memory counters with identical semantics.
package eventirq

import (
	"fmt"

	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/vmm/device"
)

// Manager creates interrupt source groups. The zero value is not usable;
// construct with New.
type Manager struct{}

// New returns an interrupt manager using the platform's line backing.
func New() *Manager {
	return &Manager{}
}

// CreateGroup allocates backing for count interrupt lines starting at base.
func (m *Manager) CreateGroup(kind types.InterruptKind, base, count uint32) (device.InterruptSourceGroup, error) {
	if count == 0 {
		return nil, fmt.Errorf("eventirq: empty %s group", kind)
	}
	return newGroup(kind, base, count)
}

// Compile-time interface check.
var _ device.InterruptManager = (*Manager)(nil)
