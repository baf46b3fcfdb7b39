// Package ram implements a byte-backed generic MMIO device. Reads
// return exactly what was written, making it suitable for RAM-like
// guest regions and for exercising the dispatch path in tests.
package ram

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/tinyrange/devbus/internal/chipset"
)

// Device is a read/write-symmetric MMIO device backed by a byte slice.
type Device struct {
	mu sync.Mutex

	base GuestPhysAddr
	data []byte
}

type GuestPhysAddr = chipset.GuestPhysAddr

// New creates a generic device covering [base, base+length).
func New(base GuestPhysAddr, length uint64) *Device {
	return &Device{
		base: base,
		data: make([]byte, length),
	}
}

// AddressRange implements chipset.MMIODevice.
func (d *Device) AddressRange() (GuestPhysAddr, uint64) {
	return d.base, uint64(len(d.data))
}

// HandleRead implements chipset.MMIODevice.
func (d *Device) HandleRead(offset uint64, width chipset.AccessWidth) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if offset+uint64(width) > uint64(len(d.data)) {
		return 0, fmt.Errorf("ram: read at 0x%x width %d out of bounds", offset, width)
	}

	switch width {
	case chipset.Width8:
		return uint64(d.data[offset]), nil
	case chipset.Width16:
		return uint64(binary.LittleEndian.Uint16(d.data[offset:])), nil
	case chipset.Width32:
		return uint64(binary.LittleEndian.Uint32(d.data[offset:])), nil
	case chipset.Width64:
		return binary.LittleEndian.Uint64(d.data[offset:]), nil
	default:
		return 0, chipset.ErrUnsupportedWidth
	}
}

// HandleWrite implements chipset.MMIODevice.
func (d *Device) HandleWrite(offset uint64, width chipset.AccessWidth, value uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if offset+uint64(width) > uint64(len(d.data)) {
		return fmt.Errorf("ram: write at 0x%x width %d out of bounds", offset, width)
	}

	switch width {
	case chipset.Width8:
		d.data[offset] = byte(value)
	case chipset.Width16:
		binary.LittleEndian.PutUint16(d.data[offset:], uint16(value))
	case chipset.Width32:
		binary.LittleEndian.PutUint32(d.data[offset:], uint32(value))
	case chipset.Width64:
		binary.LittleEndian.PutUint64(d.data[offset:], value)
	default:
		return chipset.ErrUnsupportedWidth
	}
	return nil
}

// Reset implements chipset.ChangeDeviceState.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.data)
	return nil
}

// Start implements chipset.ChangeDeviceState.
func (d *Device) Start() error { return nil }

// Stop implements chipset.ChangeDeviceState.
func (d *Device) Stop() error { return nil }

var (
	_ chipset.MMIODevice        = (*Device)(nil)
	_ chipset.ChangeDeviceState = (*Device)(nil)
)
