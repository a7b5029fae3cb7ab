//go:build !linux

package eventirq

import (
	"fmt"
	"sync"

	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/vmm/device"
)

// group counts pending triggers per line. Same semantics as the eventfd
// backing, minus the file descriptors.
type group struct {
	kind  types.InterruptKind
	base  uint32
	count uint32

	mu      sync.Mutex
	pending []uint64
	closed  bool
}

func newGroup(kind types.InterruptKind, base, count uint32) (device.InterruptSourceGroup, error) {
	return &group{kind: kind, base: base, count: count, pending: make([]uint64, count)}, nil
}

func (g *group) Base() uint32  { return g.base }
func (g *group) Count() uint32 { return g.count }

func (g *group) Trigger(index uint32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("eventirq: group [%d,%d) is closed", g.base, g.base+g.count)
	}
	if index >= g.count {
		return fmt.Errorf("eventirq: line index %d outside group of %d", index, g.count)
	}
	g.pending[index]++
	return nil
}

func (g *group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.pending = nil
	return nil
}
