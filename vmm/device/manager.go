package device

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/vmm/alloc"
)

// Manager owns the system allocator, the name-keyed device registry, and the
// two dispatch buses. One mutex guards all of that bookkeeping; each
// register, unregister, or route is a single unit of work under it.
type Manager struct {
	mu      sync.Mutex
	sys     *alloc.SystemAllocator
	irq     InterruptManager
	devices map[string]*Descriptor
	mmio    *Bus
	pio     *Bus
	log     *slog.Logger
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithLogger directs the manager's debug logging. By default all output is
// discarded.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// NewManager creates a device manager over the given allocator registry and
// interrupt manager capability.
func NewManager(sys *alloc.SystemAllocator, irq InterruptManager, opts ...Option) *Manager {
	m := &Manager{
		sys:     sys,
		irq:     irq,
		devices: make(map[string]*Descriptor),
		mmio:    NewBus(),
		pio:     NewBus(),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// defaultPool maps an I/O kind to its well-known allocator pool. Physically
// backed ranges share the MMIO pool: they occupy the same guest address
// space even though they are never dispatched.
func defaultPool(kind types.IoKind) string {
	if kind == types.Pio {
		return alloc.PoolPIO
	}
	return alloc.PoolMMIO
}

// busFor returns the dispatch bus for the given kind, or nil for
// PhysicalMmio, which is never exit-routed.
func (m *Manager) busFor(kind types.IoKind) *Bus {
	switch kind {
	case types.Pio:
		return m.pio
	case types.Mmio:
		return m.mmio
	default:
		return nil
	}
}

// Register attaches a device: resolves its resource requests through the
// system allocator, publishes the resolved PIO/MMIO ranges on the dispatch
// buses, hands the resolved list to the device, and records a descriptor.
//
// The call is atomic. Any failure releases exactly the resources acquired
// so far, in acquisition order, and leaves allocator and bus state as it was
// before the call. The device name is validated first, so a duplicate name
// never allocates anything.
//
// parentBus is an optional topology link recorded on the descriptor.
func (m *Manager) Register(dev Device, parentBus Device, requests []types.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := dev.Name()
	if _, ok := m.devices[name]; ok {
		return fmt.Errorf("registering %q: %w", name, ErrDeviceExist)
	}

	resolved, group, err := m.allocateResources(requests)
	if err != nil {
		return fmt.Errorf("registering %q: %w", name, err)
	}

	if err := m.busRegister(dev, resolved); err != nil {
		m.freeResources(resolved)
		m.closeGroup(name, group)
		return fmt.Errorf("registering %q: %w", name, err)
	}

	dev.AcceptResources(resolved)

	m.devices[name] = &Descriptor{
		Name:      name,
		Device:    dev,
		ParentBus: parentBus,
		Resources: resolved,
		IrqGroup:  group,
	}

	m.log.Debug("device registered", "device", name, "resources", len(resolved))
	return nil
}

// Unregister detaches a device: removes its descriptor, erases its dispatch
// entries, returns every resolved address and id to its pool, and releases
// the interrupt source group. Once it returns nil, none of the device's
// resources remain reachable.
func (m *Manager) Unregister(dev Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := dev.Name()
	desc, ok := m.devices[name]
	if !ok {
		return fmt.Errorf("unregistering %q: %w", name, ErrDeviceNonExist)
	}
	delete(m.devices, name)

	for _, res := range desc.Resources {
		if r, ok := res.(*types.AddressRange); ok {
			if bus := m.busFor(r.IO); bus != nil {
				bus.Remove(*r.Addr)
			}
		}
	}
	m.freeResources(desc.Resources)
	m.closeGroup(name, desc.IrqGroup)

	m.log.Debug("device unregistered", "device", name)
	return nil
}

// Read routes a trapped guest read to the owning device. A miss is reported
// as a types.ErrKindNonExist error; the caller injects the fault.
func (m *Manager) Read(addr types.GuestAddress, data []byte, kind types.IoKind) error {
	dev, err := m.route(addr, kind)
	if err != nil {
		return err
	}
	return dev.Read(addr, data, kind)
}

// Write routes a trapped guest write to the owning device.
func (m *Manager) Write(addr types.GuestAddress, data []byte, kind types.IoKind) error {
	dev, err := m.route(addr, kind)
	if err != nil {
		return err
	}
	return dev.Write(addr, data, kind)
}

// route resolves an access under a brief lock and returns the device, so
// the actual read or write runs in the device's own synchronization domain.
func (m *Manager) route(addr types.GuestAddress, kind types.IoKind) (Device, error) {
	m.mu.Lock()
	bus := m.busFor(kind)
	if bus == nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("routing %s access: %w", kind, ErrInvalidResource)
	}
	dev, ok := bus.Find(addr)
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%s access at %s: %w", kind, addr, ErrUnmapped)
	}
	m.log.Debug("dispatch", "kind", kind.String(), "addr", addr.String(), "device", dev.Name())
	return dev, nil
}

// Devices returns a snapshot of the registered descriptors, sorted by name.
func (m *Manager) Devices() []Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Descriptor, 0, len(m.devices))
	for _, desc := range m.devices {
		out = append(out, *desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DispatchEntries returns a snapshot of one bus's dispatch table, in
// ascending range order. PhysicalMmio has no bus and yields nil.
func (m *Manager) DispatchEntries(kind types.IoKind) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	bus := m.busFor(kind)
	if bus == nil {
		return nil
	}
	return bus.Entries()
}

// allocateResources resolves the request list in caller order. On failure it
// frees the successfully allocated prefix, in the same order, and reports
// the failing entry.
func (m *Manager) allocateResources(requests []types.Resource) ([]types.Resource, InterruptSourceGroup, error) {
	resolved := make([]types.Resource, 0, len(requests))
	var group InterruptSourceGroup

	fail := func(err error) ([]types.Resource, InterruptSourceGroup, error) {
		m.freeResources(resolved)
		m.closeGroup("", group)
		return nil, nil, err
	}

	for _, req := range requests {
		switch r := req.(type) {
		case *types.AddressRange:
			if r.IO == types.Pio && r.Addr == nil {
				return fail(ErrNonePIORequest)
			}
			pool := r.Pool
			if pool == "" {
				pool = defaultPool(r.IO)
			}
			start, err := m.sys.AllocateAddress(pool, r.Addr, r.Size)
			if err != nil {
				return fail(&types.Error{
					Kind: types.ErrKindOverlap,
					Msg:  fmt.Sprintf("device: allocating %s from pool %q", r, pool),
					Err:  err,
				})
			}
			resolved = append(resolved, &types.AddressRange{
				Addr: &start,
				Size: r.Size,
				IO:   r.IO,
				Pool: pool,
			})

		case *types.InstanceID:
			pool := r.Pool
			if pool == "" {
				pool = alloc.PoolInstanceID
			}
			id, err := m.sys.AllocateID(pool, r.ID)
			if err != nil {
				return fail(&types.Error{
					Kind: types.ErrKindOverlap,
					Msg:  fmt.Sprintf("device: allocating id from pool %q", pool),
					Err:  err,
				})
			}
			resolved = append(resolved, &types.InstanceID{ID: &id, Pool: pool})

		case *types.InterruptLines:
			if group != nil {
				return fail(fmt.Errorf("second interrupt request in one registration: %w", ErrInvalidResource))
			}
			g, err := m.irq.CreateGroup(r.Kind, r.Base, r.Count)
			if err != nil {
				return fail(fmt.Errorf("creating %s interrupt group: %w", r.Kind, err))
			}
			group = g
			resolved = append(resolved, &types.InterruptLines{Kind: r.Kind, Base: r.Base, Count: r.Count})

		default:
			return fail(fmt.Errorf("unknown resource request %T: %w", req, ErrInvalidResource))
		}
	}

	return resolved, group, nil
}

// freeResources returns resolved addresses and ids to their pools, in list
// order. Interrupt entries are released through their group, not here.
func (m *Manager) freeResources(resolved []types.Resource) {
	for _, res := range resolved {
		switch r := res.(type) {
		case *types.AddressRange:
			// The pool was resolved during allocation and must still exist;
			// a failure here would mean corrupted bookkeeping.
			if err := m.sys.FreeAddress(r.Pool, *r.Addr, r.Size); err != nil {
				m.log.Warn("freeing address range failed", "range", r.String(), "err", err)
			}
		case *types.InstanceID:
			if err := m.sys.FreeID(r.Pool, *r.ID); err != nil {
				m.log.Warn("freeing instance id failed", "id", *r.ID, "err", err)
			}
		}
	}
}

// busRegister publishes the resolved PIO/MMIO ranges on the dispatch buses.
// PhysicalMmio entries never trap, so they are skipped. A collision removes
// the entries inserted so far and fails the registration.
func (m *Manager) busRegister(dev Device, resolved []types.Resource) error {
	var inserted []*types.AddressRange

	for _, res := range resolved {
		r, ok := res.(*types.AddressRange)
		if !ok {
			continue
		}
		bus := m.busFor(r.IO)
		if bus == nil {
			continue
		}
		if err := bus.Insert(*r.Addr, r.Size, dev); err != nil {
			for _, p := range inserted {
				m.busFor(p.IO).Remove(*p.Addr)
			}
			return err
		}
		inserted = append(inserted, r)
	}

	return nil
}

func (m *Manager) closeGroup(name string, group InterruptSourceGroup) {
	if group == nil {
		return
	}
	if err := group.Close(); err != nil {
		m.log.Warn("closing interrupt group failed", "device", name, "err", err)
	}
}
