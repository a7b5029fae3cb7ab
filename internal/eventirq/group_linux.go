//go:build linux

package eventirq

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/vmm/device"
)

// group backs each interrupt line with an eventfd. Triggering a line writes
// a count of one; the surrounding VMM registers the fds as irqfds or polls
// them itself.
type group struct {
	kind  types.InterruptKind
	base  uint32
	count uint32

	mu     sync.Mutex
	fds    []int
	closed bool
}

func newGroup(kind types.InterruptKind, base, count uint32) (device.InterruptSourceGroup, error) {
	fds := make([]int, 0, count)
	for i := uint32(0); i < count; i++ {
		fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
		if err != nil {
			for _, open := range fds {
				unix.Close(open)
			}
			return nil, fmt.Errorf("eventirq: eventfd for line %d: %w", base+i, err)
		}
		fds = append(fds, fd)
	}
	return &group{kind: kind, base: base, count: count, fds: fds}, nil
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

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(g.fds[index], buf[:]); err != nil {
		return fmt.Errorf("eventirq: signaling line %d: %w", g.base+index, err)
	}
	return nil
}

// Eventfd exposes the file descriptor backing a line, for irqfd wiring.
func (g *group) Eventfd(index uint32) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return -1, fmt.Errorf("eventirq: group [%d,%d) is closed", g.base, g.base+g.count)
	}
	if index >= g.count {
		return -1, fmt.Errorf("eventirq: line index %d outside group of %d", index, g.count)
	}
	return g.fds[index], nil
}

func (g *group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	var first error
	for _, fd := range g.fds {
		if err := unix.Close(fd); err != nil && first == nil {
			first = fmt.Errorf("eventirq: closing line fd: %w", err)
		}
	}
	g.fds = nil
	return first
}
