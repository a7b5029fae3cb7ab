package alloc

import (
	"fmt"

	"github.com/vmkit/vmkit/pkg/types"
)

// Well-known pool names. The device manager routes resource requests to
// these by default; callers may register additional pools (for example a
// second, disjoint MMIO window) under any name.
const (
	PoolPIO        = "pio"
	PoolMMIO       = "mmio"
	PoolIRQ        = "irq"
	PoolInstanceID = "instance-id"
)

// AddressPool is the capability an address-valued allocator exposes to the
// system registry. AddressAllocator is the canonical implementation.
type AddressPool interface {
	// Allocate reserves size bytes, at *addr when addr is non-nil.
	Allocate(addr *types.GuestAddress, size uint64) (types.GuestAddress, error)
	// Free releases an exact previously allocated (addr, size) pair.
	Free(addr types.GuestAddress, size uint64)
}

// IDPool is the capability an integer-valued allocator exposes to the system
// registry. IdAllocator is the canonical implementation.
//
// AddressPool and IDPool stay separate on purpose: the two produce different
// value kinds, and collapsing them behind one interface would force every
// caller to re-discover which payload a named pool actually yields.
type IDPool interface {
	// Allocate reserves an id, *id when id is non-nil.
	Allocate(id *uint32) (uint32, error)
	// Free releases a previously allocated id.
	Free(id uint32)
}

// SystemAllocator is a name-keyed registry of resource pools. It lets the
// device manager allocate and free heterogeneous resources (PIO space, MMIO
// space, irq lines, instance ids) uniformly, while the underlying pools stay
// fully independent and separately sized.
type SystemAllocator struct {
	addrPools map[string]AddressPool
	idPools   map[string]IDPool
}

// NewSystem creates an empty registry.
func NewSystem() *SystemAllocator {
	return &SystemAllocator{
		addrPools: make(map[string]AddressPool),
		idPools:   make(map[string]IDPool),
	}
}

// AddAddressPool registers an address-valued pool under name. A name that is
// already registered fails with a types.ErrKindExist error.
func (s *SystemAllocator) AddAddressPool(name string, pool AddressPool) error {
	if _, ok := s.addrPools[name]; ok {
		return fmt.Errorf("address pool %q: %w", name, ErrExist)
	}
	s.addrPools[name] = pool
	return nil
}

// AddIDPool registers an integer-valued pool under name. A name that is
// already registered fails with a types.ErrKindExist error.
func (s *SystemAllocator) AddIDPool(name string, pool IDPool) error {
	if _, ok := s.idPools[name]; ok {
		return fmt.Errorf("id pool %q: %w", name, ErrExist)
	}
	s.idPools[name] = pool
	return nil
}

// AllocateAddress reserves size bytes from the named address pool. An
// unknown name is a caller error, reported as types.ErrKindInvalid.
func (s *SystemAllocator) AllocateAddress(name string, addr *types.GuestAddress, size uint64) (types.GuestAddress, error) {
	pool, ok := s.addrPools[name]
	if !ok {
		return 0, fmt.Errorf("no address pool %q: %w", name, ErrInvalid)
	}
	return pool.Allocate(addr, size)
}

// FreeAddress releases a range back to the named address pool.
func (s *SystemAllocator) FreeAddress(name string, addr types.GuestAddress, size uint64) error {
	pool, ok := s.addrPools[name]
	if !ok {
		return fmt.Errorf("no address pool %q: %w", name, ErrInvalid)
	}
	pool.Free(addr, size)
	return nil
}

// AllocateID reserves an id from the named integer pool. An unknown name is
// a caller error, reported as types.ErrKindInvalid.
func (s *SystemAllocator) AllocateID(name string, id *uint32) (uint32, error) {
	pool, ok := s.idPools[name]
	if !ok {
		return 0, fmt.Errorf("no id pool %q: %w", name, ErrInvalid)
	}
	return pool.Allocate(id)
}

// FreeID releases an id back to the named integer pool.
func (s *SystemAllocator) FreeID(name string, id uint32) error {
	pool, ok := s.idPools[name]
	if !ok {
		return fmt.Errorf("no id pool %q: %w", name, ErrInvalid)
	}
	pool.Free(id)
	return nil
}

// AddressPoolNames returns the registered address pool names, unordered.
func (s *SystemAllocator) AddressPoolNames() []string {
	names := make([]string, 0, len(s.addrPools))
	for name := range s.addrPools {
		names = append(names, name)
	}
	return names
}

// IDPoolNames returns the registered integer pool names, unordered.
func (s *SystemAllocator) IDPoolNames() []string {
	names := make([]string, 0, len(s.idPools))
	for name := range s.idPools {
		names = append(names, name)
	}
	return names
}

// LookupAddressPool returns the named address pool, if registered.
func (s *SystemAllocator) LookupAddressPool(name string) (AddressPool, bool) {
	pool, ok := s.addrPools[name]
	return pool, ok
}

// LookupIDPool returns the named integer pool, if registered.
func (s *SystemAllocator) LookupIDPool(name string) (IDPool, bool) {
	pool, ok := s.idPools[name]
	return pool, ok
}
