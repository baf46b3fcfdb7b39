// Package timer implements the emulated timer device: a free-running
// counter with a match register that raises an interrupt line.
package timer

import (
	"sync"
	"time"

	"github.com/tinyrange/devbus/internal/chipset"
)

// Register offsets, on an 8-byte stride.
const (
	RegCount = 0x00 // RO: ticks elapsed since the counter was started
	RegMatch = 0x08 // RW: interrupt fires when count >= match (match != 0)
	RegCtrl  = 0x10 // RW: control bits
	RegClear = 0x18 // WO: writing any value clears a fired interrupt
)

// Control register bits.
const (
	CtrlEnable    = 1 << 0 // Counter advances while set
	CtrlIntEnable = 1 << 1 // Match raises the interrupt line
)

// DefaultFrequency is the counter tick rate when the configuration
// does not specify one.
const DefaultFrequency = 1_000_000 // 1 MHz

// MMIOSize is the size of the register file the device occupies.
const MMIOSize = 0x1000

// Device is the emulated timer.
type Device struct {
	mu sync.Mutex

	base   chipset.GuestPhysAddr
	length uint64
	freq   uint64

	now func() time.Time

	epoch   time.Time // when the counter was last loaded
	match   uint64
	ctrl    uint64
	cleared uint64 // match values already acknowledged via RegClear

	irqLine chipset.LineInterrupt
}

// Option configures a Device.
type Option func(*Device)

// WithClock replaces the time source. Used by tests to drive the
// counter deterministically.
func WithClock(now func() time.Time) Option {
	return func(d *Device) { d.now = now }
}

// New creates a timer device at base ticking at freq Hz. A zero freq
// selects DefaultFrequency.
func New(base chipset.GuestPhysAddr, length uint64, freq uint64, irqLine chipset.LineInterrupt, opts ...Option) *Device {
	if length == 0 {
		length = MMIOSize
	}
	if freq == 0 {
		freq = DefaultFrequency
	}
	if irqLine == nil {
		irqLine = chipset.LineInterruptDetached()
	}
	d := &Device{
		base:    base,
		length:  length,
		freq:    freq,
		now:     time.Now,
		ctrl:    CtrlEnable,
		irqLine: irqLine,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.epoch = d.now()
	return d
}

// AddressRange implements chipset.MMIODevice.
func (d *Device) AddressRange() (chipset.GuestPhysAddr, uint64) {
	return d.base, d.length
}

func (d *Device) countLocked() uint64 {
	if d.ctrl&CtrlEnable == 0 {
		return 0
	}
	elapsed := d.now().Sub(d.epoch)
	return uint64(elapsed) * d.freq / uint64(time.Second)
}

func (d *Device) firedLocked() bool {
	return d.ctrl&CtrlIntEnable != 0 &&
		d.match != 0 &&
		d.match != d.cleared &&
		d.countLocked() >= d.match
}

func (d *Device) updateInterruptLocked() {
	d.irqLine.SetLevel(d.firedLocked())
}

// HandleRead implements chipset.MMIODevice.
func (d *Device) HandleRead(offset uint64, width chipset.AccessWidth) (uint64, error) {
	if !width.Valid() {
		return 0, chipset.ErrUnsupportedWidth
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var value uint64
	switch offset &^ 0x7 {
	case RegCount:
		value = d.countLocked()
	case RegMatch:
		value = d.match
	case RegCtrl:
		value = d.ctrl
	}
	d.updateInterruptLocked()
	return value & width.Mask(), nil
}

// HandleWrite implements chipset.MMIODevice.
func (d *Device) HandleWrite(offset uint64, width chipset.AccessWidth, value uint64) error {
	if !width.Valid() {
		return chipset.ErrUnsupportedWidth
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch offset &^ 0x7 {
	case RegMatch:
		d.match = value & width.Mask()
		d.cleared = 0
	case RegCtrl:
		wasEnabled := d.ctrl&CtrlEnable != 0
		d.ctrl = value & (CtrlEnable | CtrlIntEnable)
		if !wasEnabled && d.ctrl&CtrlEnable != 0 {
			d.epoch = d.now()
		}
	case RegClear:
		d.cleared = d.match
	}
	d.updateInterruptLocked()
	return nil
}

// Sync recomputes the interrupt line from the current time. The VM loop
// calls this between guest entries so a match raises the line even when
// the guest is not touching timer registers.
func (d *Device) Sync() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updateInterruptLocked()
}

// Start implements chipset.ChangeDeviceState.
func (d *Device) Start() error { return nil }

// Stop implements chipset.ChangeDeviceState.
func (d *Device) Stop() error { return nil }

// Reset implements chipset.ChangeDeviceState.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epoch = d.now()
	d.match = 0
	d.cleared = 0
	d.ctrl = CtrlEnable
	d.updateInterruptLocked()
	return nil
}

var (
	_ chipset.MMIODevice        = (*Device)(nil)
	_ chipset.ChangeDeviceState = (*Device)(nil)
)
