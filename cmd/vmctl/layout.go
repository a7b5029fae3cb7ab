package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmkit/vmkit/internal/eventirq"
	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/vmm/alloc"
	"github.com/vmkit/vmkit/vmm/device"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Build a canonical PC resource layout and print it",
	Long: `layout creates the standard pools of a PC-style machine (64 KiB of port
I/O space, a 32-bit MMIO hole, legacy irq lines, instance ids), registers a
sample device set, and prints the resolved topology and dispatch tables.`,
	RunE: runLayout,
}

func init() {
	rootCmd.AddCommand(layoutCmd)
}

type rangeJSON struct {
	Start string `json:"start"`
	Size  uint64 `json:"size"`
	Kind  string `json:"kind,omitempty"`
	Owner string `json:"owner,omitempty"`
}

type deviceJSON struct {
	Name      string   `json:"name"`
	ParentBus string   `json:"parent_bus,omitempty"`
	Resources []string `json:"resources"`
}

type layoutJSON struct {
	Pools    map[string][]rangeJSON `json:"pools"`
	Devices  []deviceJSON           `json:"devices"`
	PIOBus   []rangeJSON            `json:"pio_bus"`
	MMIOBus  []rangeJSON            `json:"mmio_bus"`
	IRQLines []uint32               `json:"irq_lines"`
}

func buildLayout(log *slog.Logger) (*device.Manager, *alloc.SystemAllocator, *alloc.IdAllocator, error) {
	sys := alloc.NewSystem()

	pio, err := alloc.NewAddressAllocator(0, 0x10000)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := sys.AddAddressPool(alloc.PoolPIO, pio); err != nil {
		return nil, nil, nil, err
	}

	mmio, err := alloc.NewAddressAllocator(0x8000_0000, 0x4000_0000, alloc.WithAlignment(0x1000))
	if err != nil {
		return nil, nil, nil, err
	}
	if err := sys.AddAddressPool(alloc.PoolMMIO, mmio); err != nil {
		return nil, nil, nil, err
	}

	irqs, err := alloc.NewIdAllocator(0, 23)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := sys.AddIDPool(alloc.PoolIRQ, irqs); err != nil {
		return nil, nil, nil, err
	}

	instances, err := alloc.NewIdAllocator(1, 100)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := sys.AddIDPool(alloc.PoolInstanceID, instances); err != nil {
		return nil, nil, nil, err
	}

	log.Debug("pools created", "pio", "64KiB", "mmio", "1GiB hole")
	return device.NewManager(sys, eventirq.New(), device.WithLogger(log)), sys, irqs, nil
}

func registerSampleSet(mgr *device.Manager, sys *alloc.SystemAllocator) error {
	host := newSampleDevice("pci-host")
	if err := mgr.Register(host, nil, []types.Resource{
		&types.AddressRange{Addr: types.NewAddr(0xcf8), Size: 8, IO: types.Pio},
	}); err != nil {
		return fmt.Errorf("pci-host: %w", err)
	}

	// Legacy lines are reserved in the irq pool before the group request,
	// the way a VMM pins well-known ISA interrupts.
	legacy := func(line uint32) (*types.InterruptLines, error) {
		got, err := sys.AllocateID(alloc.PoolIRQ, types.NewID(line))
		if err != nil {
			return nil, fmt.Errorf("reserving irq %d: %w", line, err)
		}
		return &types.InterruptLines{Kind: types.InterruptLegacy, Base: got, Count: 1}, nil
	}
	kbdIrq, err := legacy(1)
	if err != nil {
		return err
	}
	comIrq, err := legacy(4)
	if err != nil {
		return err
	}
	rtcIrq, err := legacy(8)
	if err != nil {
		return err
	}

	type spec struct {
		name   string
		parent device.Device
		reqs   []types.Resource
	}
	for _, s := range []spec{
		{"i8042", nil, []types.Resource{
			&types.AddressRange{Addr: types.NewAddr(0x60), Size: 8, IO: types.Pio},
			kbdIrq,
		}},
		{"com1", nil, []types.Resource{
			&types.AddressRange{Addr: types.NewAddr(0x3f8), Size: 8, IO: types.Pio},
			comIrq,
		}},
		{"rtc", nil, []types.Resource{
			&types.AddressRange{Addr: types.NewAddr(0x70), Size: 2, IO: types.Pio},
			rtcIrq,
		}},
		{"virtio-blk", host, []types.Resource{
			&types.AddressRange{Size: 0x1000, IO: types.Mmio},
			&types.InstanceID{},
			&types.InterruptLines{Kind: types.InterruptMSIX, Base: 0, Count: 2},
		}},
		{"virtio-net", host, []types.Resource{
			&types.AddressRange{Size: 0x1000, IO: types.Mmio},
			&types.InstanceID{},
			&types.InterruptLines{Kind: types.InterruptMSIX, Base: 0, Count: 3},
		}},
		{"pmem0", host, []types.Resource{
			&types.AddressRange{Size: 0x100_0000, IO: types.PhysicalMmio},
			&types.InstanceID{},
		}},
	} {
		if err := mgr.Register(newSampleDevice(s.name), s.parent, s.reqs); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func runLayout(cmd *cobra.Command, args []string) error {
	log := logger()

	mgr, sys, irqs, err := buildLayout(log)
	if err != nil {
		return err
	}
	if err := registerSampleSet(mgr, sys); err != nil {
		return err
	}

	if jsonOut {
		return printLayoutJSON(mgr, sys, irqs)
	}
	printLayoutText(mgr, sys, irqs)
	return nil
}

func poolRanges(sys *alloc.SystemAllocator, name string) []rangeJSON {
	pool, ok := sys.LookupAddressPool(name)
	if !ok {
		return nil
	}
	aa, ok := pool.(*alloc.AddressAllocator)
	if !ok {
		return nil
	}
	out := make([]rangeJSON, 0, len(aa.Ranges()))
	for _, r := range aa.Ranges() {
		out = append(out, rangeJSON{Start: r.Start.String(), Size: r.Size})
	}
	return out
}

func busRanges(mgr *device.Manager, kind types.IoKind) []rangeJSON {
	entries := mgr.DispatchEntries(kind)
	out := make([]rangeJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, rangeJSON{
			Start: e.Start.String(),
			Size:  e.Size,
			Kind:  kind.String(),
			Owner: e.Dev.Name(),
		})
	}
	return out
}

func printLayoutJSON(mgr *device.Manager, sys *alloc.SystemAllocator, irqs *alloc.IdAllocator) error {
	doc := layoutJSON{
		Pools: map[string][]rangeJSON{
			alloc.PoolPIO:  poolRanges(sys, alloc.PoolPIO),
			alloc.PoolMMIO: poolRanges(sys, alloc.PoolMMIO),
		},
		PIOBus:   busRanges(mgr, types.Pio),
		MMIOBus:  busRanges(mgr, types.Mmio),
		IRQLines: irqs.Used(),
	}
	for _, desc := range mgr.Devices() {
		d := deviceJSON{Name: desc.Name}
		if desc.ParentBus != nil {
			d.ParentBus = desc.ParentBus.Name()
		}
		for _, res := range desc.Resources {
			switch r := res.(type) {
			case *types.AddressRange:
				d.Resources = append(d.Resources, r.String())
			case *types.InstanceID:
				d.Resources = append(d.Resources, fmt.Sprintf("id[%d]", *r.ID))
			case *types.InterruptLines:
				d.Resources = append(d.Resources, fmt.Sprintf("irq[%s base=%d count=%d]", r.Kind, r.Base, r.Count))
			}
		}
		doc.Devices = append(doc.Devices, d)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func printLayoutText(mgr *device.Manager, sys *alloc.SystemAllocator, irqs *alloc.IdAllocator) {
	fmt.Println("Pools:")
	for _, name := range []string{alloc.PoolPIO, alloc.PoolMMIO} {
		fmt.Printf("  %-12s", name)
		for _, r := range poolRanges(sys, name) {
			fmt.Printf(" %s+%#x", r.Start, r.Size)
		}
		fmt.Println()
	}

	fmt.Println("\nDevices:")
	for _, desc := range mgr.Devices() {
		parent := "-"
		if desc.ParentBus != nil {
			parent = desc.ParentBus.Name()
		}
		fmt.Printf("  %-12s parent=%-10s", desc.Name, parent)
		for _, res := range desc.Resources {
			switch r := res.(type) {
			case *types.AddressRange:
				fmt.Printf(" %s", r)
			case *types.InstanceID:
				fmt.Printf(" id[%d]", *r.ID)
			case *types.InterruptLines:
				fmt.Printf(" irq[%s x%d]", r.Kind, r.Count)
			}
		}
		fmt.Println()
	}

	for _, kind := range []types.IoKind{types.Pio, types.Mmio} {
		fmt.Printf("\nDispatch (%s):\n", kind)
		for _, e := range mgr.DispatchEntries(kind) {
			fmt.Printf("  [%s, %s)  %s\n", e.Start, e.Start.UncheckedAdd(e.Size), e.Dev.Name())
		}
	}
}
