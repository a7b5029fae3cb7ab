package device

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/vmm/alloc"
)

// stubDevice is a minimal internally synchronized Device for tests.
type stubDevice struct {
	mu       sync.Mutex
	name     string
	accepted []types.Resource
	readFill byte
	writes   int
	lastAddr types.GuestAddress
}

func (d *stubDevice) Name() string { return d.name }

func (d *stubDevice) Read(addr types.GuestAddress, data []byte, _ types.IoKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastAddr = addr
	for i := range data {
		data[i] = d.readFill
	}
	return nil
}

func (d *stubDevice) Write(addr types.GuestAddress, data []byte, _ types.IoKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastAddr = addr
	d.writes++
	return nil
}

func (d *stubDevice) AcceptResources(resources []types.Resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accepted = resources
}

type stubIrqGroup struct {
	base, count uint32
	closed      bool
	triggered   []uint32
}

func (g *stubIrqGroup) Base() uint32  { return g.base }
func (g *stubIrqGroup) Count() uint32 { return g.count }

func (g *stubIrqGroup) Trigger(index uint32) error {
	if index >= g.count {
		return errors.New("line index out of group")
	}
	g.triggered = append(g.triggered, index)
	return nil
}

func (g *stubIrqGroup) Close() error {
	g.closed = true
	return nil
}

type stubIrqManager struct {
	fail    bool
	created []*stubIrqGroup
}

func (m *stubIrqManager) CreateGroup(_ types.InterruptKind, base, count uint32) (InterruptSourceGroup, error) {
	if m.fail {
		return nil, errors.New("no free vectors")
	}
	g := &stubIrqGroup{base: base, count: count}
	m.created = append(m.created, g)
	return g, nil
}

const (
	mmioBase = types.GuestAddress(0xd000_0000)
	mmioSize = uint64(0x1000_0000)
)

func newTestManager(t *testing.T) (*Manager, *alloc.SystemAllocator, *stubIrqManager) {
	t.Helper()

	sys := alloc.NewSystem()

	pio, err := alloc.NewAddressAllocator(0, 0x10000)
	require.NoError(t, err)
	require.NoError(t, sys.AddAddressPool(alloc.PoolPIO, pio))

	mmio, err := alloc.NewAddressAllocator(mmioBase, mmioSize, alloc.WithAlignment(0x1000))
	require.NoError(t, err)
	require.NoError(t, sys.AddAddressPool(alloc.PoolMMIO, mmio))

	instances, err := alloc.NewIdAllocator(1, 100)
	require.NoError(t, err)
	require.NoError(t, sys.AddIDPool(alloc.PoolInstanceID, instances))

	irq := &stubIrqManager{}
	return NewManager(sys, irq), sys, irq
}

func mmioRanges(t *testing.T, sys *alloc.SystemAllocator) []alloc.Range {
	t.Helper()
	pool, ok := sys.LookupAddressPool(alloc.PoolMMIO)
	require.True(t, ok)
	return pool.(*alloc.AddressAllocator).Ranges()
}

func TestManager_RegisterResolvesResources(t *testing.T) {
	mgr, _, irqMgr := newTestManager(t)

	uart := &stubDevice{name: "com1", readFill: 0x5a}
	err := mgr.Register(uart, nil, []types.Resource{
		&types.AddressRange{Addr: types.NewAddr(0x3f8), Size: 8, IO: types.Pio},
		&types.AddressRange{Size: 0x1000, IO: types.Mmio},
		&types.InstanceID{},
		&types.InterruptLines{Kind: types.InterruptLegacy, Base: 4, Count: 1},
	})
	require.NoError(t, err)

	require.Len(t, uart.accepted, 4, "device received the resolved list")

	port := uart.accepted[0].(*types.AddressRange)
	require.True(t, port.Resolved())
	assert.Equal(t, types.GuestAddress(0x3f8), *port.Addr)

	bar := uart.accepted[1].(*types.AddressRange)
	require.True(t, bar.Resolved())
	assert.GreaterOrEqual(t, *bar.Addr, mmioBase)

	id := uart.accepted[2].(*types.InstanceID)
	require.True(t, id.Resolved())
	assert.Equal(t, uint32(1), *id.ID)

	require.Len(t, irqMgr.created, 1)
	assert.Equal(t, uint32(4), irqMgr.created[0].base)

	descs := mgr.Devices()
	require.Len(t, descs, 1)
	assert.Equal(t, "com1", descs[0].Name)
	assert.NotNil(t, descs[0].IrqGroup)

	// The trapped accesses route to the device.
	buf := make([]byte, 4)
	require.NoError(t, mgr.Read(*bar.Addr, buf, types.Mmio))
	assert.Equal(t, []byte{0x5a, 0x5a, 0x5a, 0x5a}, buf)
	require.NoError(t, mgr.Write(0x3f8, []byte{1}, types.Pio))
	assert.Equal(t, 1, uart.writes)
}

// A failing entry mid-list must release the allocated prefix and leave the
// dispatch maps untouched; a device never holds a partial resource set.
func TestManager_RegisterIsAtomic(t *testing.T) {
	mgr, sys, _ := newTestManager(t)

	// Occupy port 0x60 so the second registration's PIO entry fails.
	kbd := &stubDevice{name: "i8042"}
	require.NoError(t, mgr.Register(kbd, nil, []types.Resource{
		&types.AddressRange{Addr: types.NewAddr(0x60), Size: 1, IO: types.Pio},
	}))

	before := mmioRanges(t, sys)

	victim := &stubDevice{name: "victim"}
	err := mgr.Register(victim, nil, []types.Resource{
		&types.AddressRange{Size: 0x1000, IO: types.Mmio},
		&types.AddressRange{Addr: types.NewAddr(0x60), Size: 1, IO: types.Pio},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrOverlap)

	// The wildcard MMIO grant was rolled back and nothing was dispatched.
	assert.Equal(t, before, mmioRanges(t, sys))
	assert.Empty(t, mgr.DispatchEntries(types.Mmio))
	assert.Nil(t, victim.accepted)
	assert.ErrorIs(t, mgr.Read(0xdfff_f000, make([]byte, 1), types.Mmio), ErrUnmapped)

	descs := mgr.Devices()
	require.Len(t, descs, 1, "only the keyboard stayed registered")
}

func TestManager_WildcardPioRejected(t *testing.T) {
	mgr, sys, _ := newTestManager(t)
	before := mmioRanges(t, sys)

	dev := &stubDevice{name: "floppy"}
	err := mgr.Register(dev, nil, []types.Resource{
		&types.AddressRange{Size: 4, IO: types.Pio},
	})
	assert.ErrorIs(t, err, ErrNonePIORequest)
	assert.Equal(t, before, mmioRanges(t, sys))
	assert.Empty(t, mgr.Devices())
}

// Name uniqueness is checked before anything is allocated, so a duplicate
// name cannot leak addresses or ids.
func TestManager_DuplicateNameAllocatesNothing(t *testing.T) {
	mgr, sys, _ := newTestManager(t)

	first := &stubDevice{name: "rtc"}
	require.NoError(t, mgr.Register(first, nil, []types.Resource{
		&types.AddressRange{Size: 0x1000, IO: types.Mmio},
	}))

	before := mmioRanges(t, sys)

	impostor := &stubDevice{name: "rtc"}
	err := mgr.Register(impostor, nil, []types.Resource{
		&types.AddressRange{Size: 0x1000, IO: types.Mmio},
		&types.InstanceID{},
	})
	assert.ErrorIs(t, err, ErrDeviceExist)
	assert.Equal(t, before, mmioRanges(t, sys))
	assert.Nil(t, impostor.accepted)
}

func TestManager_InterruptFailureRollsBack(t *testing.T) {
	mgr, sys, irqMgr := newTestManager(t)
	irqMgr.fail = true

	dev := &stubDevice{name: "nic"}
	err := mgr.Register(dev, nil, []types.Resource{
		&types.AddressRange{Size: 0x1000, IO: types.Mmio},
		&types.InterruptLines{Kind: types.InterruptMSIX, Count: 2},
	})
	require.Error(t, err)

	assert.Empty(t, mmioRanges(t, sys))
	assert.Empty(t, mgr.DispatchEntries(types.Mmio))
	assert.Empty(t, mgr.Devices())
}

func TestManager_SecondInterruptRequestRejected(t *testing.T) {
	mgr, _, irqMgr := newTestManager(t)

	dev := &stubDevice{name: "nic"}
	err := mgr.Register(dev, nil, []types.Resource{
		&types.InterruptLines{Kind: types.InterruptMSI, Count: 1},
		&types.InterruptLines{Kind: types.InterruptMSI, Count: 1},
	})
	assert.ErrorIs(t, err, ErrInvalidResource)

	// The group created for the first entry was released on rollback.
	require.Len(t, irqMgr.created, 1)
	assert.True(t, irqMgr.created[0].closed)
}

// Register/unregister round-trip: the same request list resolves to the same
// addresses again, proving everything was released.
func TestManager_RoundTripReproducesAddresses(t *testing.T) {
	mgr, sys, _ := newTestManager(t)

	requests := func() []types.Resource {
		return []types.Resource{
			&types.AddressRange{Addr: types.NewAddr(0x70), Size: 2, IO: types.Pio},
			&types.AddressRange{Size: 0x4000, IO: types.Mmio},
			&types.InstanceID{},
			&types.InterruptLines{Kind: types.InterruptLegacy, Base: 8, Count: 1},
		}
	}

	first := &stubDevice{name: "rtc"}
	require.NoError(t, mgr.Register(first, nil, requests()))

	firstBar := *first.accepted[1].(*types.AddressRange).Addr
	firstID := *first.accepted[2].(*types.InstanceID).ID

	require.NoError(t, mgr.Unregister(first))
	assert.Empty(t, mmioRanges(t, sys))
	assert.Empty(t, mgr.DispatchEntries(types.Pio))
	assert.Empty(t, mgr.DispatchEntries(types.Mmio))

	second := &stubDevice{name: "rtc"}
	require.NoError(t, mgr.Register(second, nil, requests()))
	assert.Equal(t, firstBar, *second.accepted[1].(*types.AddressRange).Addr)
	assert.Equal(t, firstID, *second.accepted[2].(*types.InstanceID).ID)
}

func TestManager_UnregisterReleasesEverything(t *testing.T) {
	mgr, _, irqMgr := newTestManager(t)

	dev := &stubDevice{name: "nic"}
	require.NoError(t, mgr.Register(dev, nil, []types.Resource{
		&types.AddressRange{Size: 0x1000, IO: types.Mmio},
		&types.InterruptLines{Kind: types.InterruptMSIX, Count: 4},
	}))
	bar := *dev.accepted[0].(*types.AddressRange).Addr

	require.NoError(t, mgr.Unregister(dev))

	err := mgr.Read(bar, make([]byte, 1), types.Mmio)
	assert.ErrorIs(t, err, ErrUnmapped)
	require.Len(t, irqMgr.created, 1)
	assert.True(t, irqMgr.created[0].closed)

	err = mgr.Unregister(dev)
	assert.ErrorIs(t, err, ErrDeviceNonExist)
}

func TestManager_DispatchBoundaries(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	dev := &stubDevice{name: "fb", readFill: 0xff}
	require.NoError(t, mgr.Register(dev, nil, []types.Resource{
		&types.AddressRange{Addr: types.NewAddr(0xd000_2000), Size: 0x1000, IO: types.Mmio},
	}))

	buf := make([]byte, 1)
	require.NoError(t, mgr.Read(0xd000_2000, buf, types.Mmio), "first byte hits")
	require.NoError(t, mgr.Read(0xd000_2fff, buf, types.Mmio), "last byte hits")

	err := mgr.Read(0xd000_3000, buf, types.Mmio)
	assert.ErrorIs(t, err, ErrUnmapped, "one past the end misses")

	err = mgr.Write(0xd000_1fff, buf, types.Mmio)
	assert.ErrorIs(t, err, ErrUnmapped, "one below the start misses")

	// A PIO probe never sees MMIO ranges.
	err = mgr.Read(0xd000_2000, buf, types.Pio)
	assert.ErrorIs(t, err, ErrUnmapped)
}

// PhysicalMmio ranges occupy address space but never reach a dispatch bus.
func TestManager_PhysicalMmioNotDispatched(t *testing.T) {
	mgr, sys, _ := newTestManager(t)

	dev := &stubDevice{name: "pmem"}
	require.NoError(t, mgr.Register(dev, nil, []types.Resource{
		&types.AddressRange{Addr: types.NewAddr(0xd800_0000), Size: 0x10000, IO: types.PhysicalMmio},
	}))

	require.Len(t, mmioRanges(t, sys), 1, "range is booked in the MMIO pool")
	assert.Empty(t, mgr.DispatchEntries(types.Mmio))

	err := mgr.Read(0xd800_0000, make([]byte, 1), types.Mmio)
	assert.ErrorIs(t, err, ErrUnmapped)

	// PhysicalMmio is not a dispatchable kind either.
	err = mgr.Read(0xd800_0000, make([]byte, 1), types.PhysicalMmio)
	assert.ErrorIs(t, err, ErrInvalidResource)

	require.NoError(t, mgr.Unregister(dev))
	assert.Empty(t, mmioRanges(t, sys), "address bookkeeping released")
}

func TestManager_ParentBusRecorded(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	host := &stubDevice{name: "pci-host"}
	require.NoError(t, mgr.Register(host, nil, []types.Resource{
		&types.AddressRange{Addr: types.NewAddr(0xcf8), Size: 8, IO: types.Pio},
	}))

	fn := &stubDevice{name: "virtio-blk"}
	require.NoError(t, mgr.Register(fn, host, []types.Resource{
		&types.AddressRange{Size: 0x1000, IO: types.Mmio},
	}))

	descs := mgr.Devices()
	require.Len(t, descs, 2)
	assert.Equal(t, "pci-host", descs[0].Name, "snapshot is sorted by name")
	assert.Equal(t, "virtio-blk", descs[1].Name)
	require.NotNil(t, descs[1].ParentBus)
	assert.Equal(t, "pci-host", descs[1].ParentBus.Name())
}

func TestManager_ConcurrentDispatch(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	a := &stubDevice{name: "a", readFill: 0xaa}
	b := &stubDevice{name: "b", readFill: 0xbb}
	require.NoError(t, mgr.Register(a, nil, []types.Resource{
		&types.AddressRange{Addr: types.NewAddr(0xd000_0000), Size: 0x1000, IO: types.Mmio},
	}))
	require.NoError(t, mgr.Register(b, nil, []types.Resource{
		&types.AddressRange{Addr: types.NewAddr(0xd000_1000), Size: 0x1000, IO: types.Mmio},
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		addr, want := types.GuestAddress(0xd000_0000), byte(0xaa)
		if i%2 == 1 {
			addr, want = 0xd000_1000, 0xbb
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, 1)
			for j := 0; j < 100; j++ {
				if err := mgr.Read(addr, buf, types.Mmio); err != nil {
					t.Errorf("read: %v", err)
					return
				}
				if buf[0] != want {
					t.Errorf("read %#x, want %#x", buf[0], want)
					return
				}
			}
		}()
	}
	wg.Wait()
}
