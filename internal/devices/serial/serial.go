// Package serial implements the console device: a small UART-style
// register file bridging guest MMIO accesses to host io.Writer/io.Reader
// streams.
package serial

import (
	"io"
	"sync"

	"github.com/tinyrange/devbus/internal/chipset"
)

// Register offsets. Registers sit on an 8-byte stride so every access
// width lands on a single register.
const (
	RegData      = 0x00 // RW: write transmits a byte, read pops the RX FIFO
	RegStatus    = 0x08 // RO: line status
	RegIntEnable = 0x10 // RW: interrupt enables
)

// Status register bits.
const (
	StatusRxReady = 1 << 0 // At least one byte waiting in the RX FIFO
	StatusTxReady = 1 << 1 // Transmitter can accept a byte (always set)
)

// Interrupt enable bits.
const (
	IntEnableRx = 1 << 0 // Assert the IRQ line while RX data is pending
)

// MMIOSize is the size of the register file the device occupies.
const MMIOSize = 0x1000

// Device is the emulated console.
type Device struct {
	mu sync.Mutex

	base   chipset.GuestPhysAddr
	length uint64

	out io.Writer

	rxFIFO    []byte
	intEnable uint64

	irqLine chipset.LineInterrupt
}

// New creates a console device at base. Transmitted bytes go to out;
// a nil out discards them. Received data is fed in with PushInput.
func New(base chipset.GuestPhysAddr, length uint64, out io.Writer, irqLine chipset.LineInterrupt) *Device {
	if length == 0 {
		length = MMIOSize
	}
	if irqLine == nil {
		irqLine = chipset.LineInterruptDetached()
	}
	return &Device{
		base:    base,
		length:  length,
		out:     out,
		irqLine: irqLine,
	}
}

// AddressRange implements chipset.MMIODevice.
func (d *Device) AddressRange() (chipset.GuestPhysAddr, uint64) {
	return d.base, d.length
}

// PushInput queues host-side input for the guest to read and updates
// the interrupt line.
func (d *Device) PushInput(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rxFIFO = append(d.rxFIFO, data...)
	d.updateInterruptLocked()
}

// HandleRead implements chipset.MMIODevice.
func (d *Device) HandleRead(offset uint64, width chipset.AccessWidth) (uint64, error) {
	if !width.Valid() {
		return 0, chipset.ErrUnsupportedWidth
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch offset &^ 0x7 {
	case RegData:
		if len(d.rxFIFO) == 0 {
			return 0, nil
		}
		b := d.rxFIFO[0]
		d.rxFIFO = d.rxFIFO[1:]
		d.updateInterruptLocked()
		return uint64(b), nil
	case RegStatus:
		status := uint64(StatusTxReady)
		if len(d.rxFIFO) > 0 {
			status |= StatusRxReady
		}
		return status, nil
	case RegIntEnable:
		return d.intEnable, nil
	default:
		return 0, nil
	}
}

// HandleWrite implements chipset.MMIODevice.
func (d *Device) HandleWrite(offset uint64, width chipset.AccessWidth, value uint64) error {
	if !width.Valid() {
		return chipset.ErrUnsupportedWidth
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch offset &^ 0x7 {
	case RegData:
		if d.out != nil {
			if _, err := d.out.Write([]byte{byte(value)}); err != nil {
				return err
			}
		}
	case RegIntEnable:
		d.intEnable = value & IntEnableRx
		d.updateInterruptLocked()
	}
	return nil
}

func (d *Device) updateInterruptLocked() {
	asserted := d.intEnable&IntEnableRx != 0 && len(d.rxFIFO) > 0
	d.irqLine.SetLevel(asserted)
}

// Start implements chipset.ChangeDeviceState.
func (d *Device) Start() error { return nil }

// Stop implements chipset.ChangeDeviceState.
func (d *Device) Stop() error { return nil }

// Reset implements chipset.ChangeDeviceState.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rxFIFO = nil
	d.intEnable = 0
	d.updateInterruptLocked()
	return nil
}

var (
	_ chipset.MMIODevice        = (*Device)(nil)
	_ chipset.ChangeDeviceState = (*Device)(nil)
)
