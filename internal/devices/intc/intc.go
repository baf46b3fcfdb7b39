// Package intc implements the emulated interrupt controller: a pending
// bitmap shared by all cores plus per-core enable and claim/complete
// register files. At most one instance exists per VM.
package intc

import (
	"sync"

	"github.com/tinyrange/devbus/internal/chipset"
)

// Register layout. The global block sits at the start of the region;
// per-core contexts follow at ContextBase with ContextStride spacing.
const (
	RegPending = 0x00 // RO: bitmap of asserted lines

	ContextBase   = 0x1000
	ContextStride = 0x80

	CtxEnable = 0x00 // RW: per-core line enable bitmap
	CtxClaim  = 0x08 // RO: claim highest-priority pending+enabled line
	// Writing the claimed line number back to CtxClaim completes it.
)

// MaxLines is the number of interrupt lines the controller models.
// Line 0 is reserved; a claim of 0 means no interrupt is pending.
const MaxLines = 64

// RequiredAlignment is the minimum alignment of the controller's base
// address.
const RequiredAlignment = 0x1000

// Size returns the region length needed for the given core count.
func Size(cores uint64) uint64 {
	return ContextBase + cores*ContextStride
}

// Device is the emulated interrupt controller.
type Device struct {
	mu sync.Mutex

	base   chipset.GuestPhysAddr
	length uint64

	pending uint64
	enable  []uint64 // per core
}

// New creates an interrupt controller at base for the given core count.
// Range and alignment validation happen during device-layer
// construction, before New is reached.
func New(base chipset.GuestPhysAddr, length uint64, cores uint64) *Device {
	return &Device{
		base:   base,
		length: length,
		enable: make([]uint64, cores),
	}
}

// AddressRange implements chipset.MMIODevice.
func (d *Device) AddressRange() (chipset.GuestPhysAddr, uint64) {
	return d.base, d.length
}

// SetIRQ implements chipset.InterruptSink: devices assert their lines
// into the controller's pending bitmap.
func (d *Device) SetIRQ(line uint32, level bool) {
	if line == 0 || line >= MaxLines {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if level {
		d.pending |= 1 << line
	} else {
		d.pending &^= 1 << line
	}
}

// Pending reports whether the given line is currently pending.
func (d *Device) Pending(line uint32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending&(1<<line) != 0
}

// claimLocked picks the lowest pending line enabled for the core and
// clears its pending bit. Returns 0 when nothing is claimable.
func (d *Device) claimLocked(core int) uint64 {
	ready := d.pending & d.enable[core]
	for line := uint32(1); line < MaxLines; line++ {
		if ready&(1<<line) != 0 {
			d.pending &^= 1 << line
			return uint64(line)
		}
	}
	return 0
}

// HandleRead implements chipset.MMIODevice.
func (d *Device) HandleRead(offset uint64, width chipset.AccessWidth) (uint64, error) {
	if !width.Valid() {
		return 0, chipset.ErrUnsupportedWidth
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if offset < ContextBase {
		if offset&^0x7 == RegPending {
			return d.pending & width.Mask(), nil
		}
		return 0, nil
	}

	core := int((offset - ContextBase) / ContextStride)
	if core >= len(d.enable) {
		return 0, nil
	}
	switch (offset - ContextBase) % ContextStride &^ 0x7 {
	case CtxEnable:
		return d.enable[core] & width.Mask(), nil
	case CtxClaim:
		return d.claimLocked(core), nil
	}
	return 0, nil
}

// HandleWrite implements chipset.MMIODevice.
func (d *Device) HandleWrite(offset uint64, width chipset.AccessWidth, value uint64) error {
	if !width.Valid() {
		return chipset.ErrUnsupportedWidth
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if offset < ContextBase {
		return nil
	}

	core := int((offset - ContextBase) / ContextStride)
	if core >= len(d.enable) {
		return nil
	}
	switch (offset - ContextBase) % ContextStride &^ 0x7 {
	case CtxEnable:
		d.enable[core] = value & width.Mask()
	case CtxClaim:
		// Completion: nothing to track for level-triggered lines, the
		// source re-asserts if it is still pending.
	}
	return nil
}

// Start implements chipset.ChangeDeviceState.
func (d *Device) Start() error { return nil }

// Stop implements chipset.ChangeDeviceState.
func (d *Device) Stop() error { return nil }

// Reset implements chipset.ChangeDeviceState.
func (d *Device) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = 0
	clear(d.enable)
	return nil
}

var (
	_ chipset.MMIODevice        = (*Device)(nil)
	_ chipset.InterruptSink     = (*Device)(nil)
	_ chipset.ChangeDeviceState = (*Device)(nil)
)
