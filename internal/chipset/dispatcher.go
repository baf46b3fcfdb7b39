package chipset

import (
	"fmt"
	"log/slog"
	"sort"
)

// Dispatcher resolves guest physical addresses to emulated devices and
// forwards MMIO accesses to them. It is immutable after Build: lookups
// take no locks, so any number of vCPU threads may dispatch
// concurrently. Devices serialize their own internal state.
type Dispatcher struct {
	// sorted holds descriptors ordered by range base. Ranges never
	// overlap, so at most one descriptor can contain an address.
	sorted []*descriptor
	byName map[string]*descriptor
}

// lookup finds the descriptor owning addr via binary search over the
// sorted range table.
func (d *Dispatcher) lookup(addr GuestPhysAddr) *descriptor {
	// First descriptor with base > addr; the candidate is the one before it.
	i := sort.Search(len(d.sorted), func(i int) bool {
		return d.sorted[i].base > addr
	})
	if i == 0 {
		return nil
	}
	if desc := d.sorted[i-1]; desc.contains(addr) {
		return desc
	}
	return nil
}

// resolve performs the lookup and the end-of-range containment check
// for an access of the given width.
func (d *Dispatcher) resolve(addr GuestPhysAddr, width AccessWidth) (*descriptor, uint64, error) {
	desc := d.lookup(addr)
	if desc == nil {
		slog.Debug("unmapped MMIO access", "addr", fmt.Sprintf("0x%x", uint64(addr)), "width", uint8(width))
		return nil, 0, &UnmappedAddressError{Addr: addr}
	}
	// Subtraction form so an access near the top of the address space
	// cannot wrap.
	if uint64(desc.end())-uint64(addr) < uint64(width) {
		return nil, 0, &OutOfRangeError{Addr: addr, Width: width, Device: desc.rangeDesc()}
	}
	return desc, uint64(addr - desc.base), nil
}

// HandleMMIORead dispatches a guest MMIO read to the owning device.
func (d *Dispatcher) HandleMMIORead(addr GuestPhysAddr, width AccessWidth) (uint64, error) {
	desc, offset, err := d.resolve(addr, width)
	if err != nil {
		return 0, err
	}
	value, err := desc.dev.HandleRead(offset, width)
	if err != nil {
		desc.stats.recordError()
		return 0, &DeviceFault{Addr: addr, Device: desc.name, Err: err}
	}
	desc.stats.recordRead()
	return value, nil
}

// HandleMMIOWrite dispatches a guest MMIO write to the owning device.
func (d *Dispatcher) HandleMMIOWrite(addr GuestPhysAddr, width AccessWidth, value uint64) error {
	desc, offset, err := d.resolve(addr, width)
	if err != nil {
		return err
	}
	if err := desc.dev.HandleWrite(offset, width, value); err != nil {
		desc.stats.recordError()
		return &DeviceFault{Addr: addr, Device: desc.name, Err: err}
	}
	desc.stats.recordWrite()
	return nil
}

// DeviceCount returns the number of registered devices.
func (d *Dispatcher) DeviceCount() int {
	return len(d.sorted)
}

// DeviceNames returns the registered device names sorted alphabetically.
func (d *Dispatcher) DeviceNames() []string {
	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Device returns the device registered under name, or nil.
func (d *Dispatcher) Device(name string) MMIODevice {
	desc, ok := d.byName[name]
	if !ok {
		return nil
	}
	return desc.dev
}

// Stats returns a snapshot of the access counters for the named device.
func (d *Dispatcher) Stats(name string) (StatsSnapshot, bool) {
	desc, ok := d.byName[name]
	if !ok {
		return StatsSnapshot{}, false
	}
	return desc.stats.snapshot(), true
}

// Start activates every device that implements ChangeDeviceState.
func (d *Dispatcher) Start() error {
	return d.eachStateful(func(name string, dev ChangeDeviceState) error {
		if err := dev.Start(); err != nil {
			return fmt.Errorf("chipset: start device %q: %w", name, err)
		}
		return nil
	})
}

// Stop deactivates every device that implements ChangeDeviceState.
func (d *Dispatcher) Stop() error {
	return d.eachStateful(func(name string, dev ChangeDeviceState) error {
		if err := dev.Stop(); err != nil {
			return fmt.Errorf("chipset: stop device %q: %w", name, err)
		}
		return nil
	})
}

// Reset resets every device that implements ChangeDeviceState.
func (d *Dispatcher) Reset() error {
	return d.eachStateful(func(name string, dev ChangeDeviceState) error {
		if err := dev.Reset(); err != nil {
			return fmt.Errorf("chipset: reset device %q: %w", name, err)
		}
		return nil
	})
}

func (d *Dispatcher) eachStateful(f func(name string, dev ChangeDeviceState) error) error {
	for _, name := range d.DeviceNames() {
		if dev, ok := d.byName[name].dev.(ChangeDeviceState); ok {
			if err := f(name, dev); err != nil {
				return err
			}
		}
	}
	return nil
}
