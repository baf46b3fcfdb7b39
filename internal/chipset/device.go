// Package chipset implements the MMIO dispatch core of the guest device
// layer: descriptor registration, range lookup, and access forwarding to
// emulated devices.
package chipset

// GuestPhysAddr is an address in the guest physical address space.
type GuestPhysAddr uint64

// AccessWidth is the size of a single MMIO access in bytes.
type AccessWidth uint8

const (
	Width8  AccessWidth = 1
	Width16 AccessWidth = 2
	Width32 AccessWidth = 4
	Width64 AccessWidth = 8
)

// Valid reports whether the width is one of the supported access sizes.
func (w AccessWidth) Valid() bool {
	switch w {
	case Width8, Width16, Width32, Width64:
		return true
	}
	return false
}

// Mask returns the value mask for the width, e.g. 0xff for Width8.
func (w AccessWidth) Mask() uint64 {
	if w >= Width64 {
		return ^uint64(0)
	}
	return (uint64(1) << (8 * uint(w))) - 1
}

// DeviceCategory identifies the kind of emulated device a descriptor
// carries. The set is closed: construction dispatches exhaustively over
// these values.
type DeviceCategory string

const (
	CategoryInterruptController DeviceCategory = "interrupt-controller"
	CategoryConsole             DeviceCategory = "console"
	CategoryTimer               DeviceCategory = "timer"
	CategoryGeneric             DeviceCategory = "generic"
)

// MMIODevice is the capability interface every emulated device provides.
// Offsets are relative to the device's base address. Implementations own
// their internal synchronization; the dispatcher may invoke handlers from
// multiple vCPU threads concurrently.
type MMIODevice interface {
	// AddressRange returns the device's guest physical base address and
	// region length in bytes. It must be pure and stable for the
	// device's lifetime.
	AddressRange() (base GuestPhysAddr, length uint64)

	// HandleRead reads a value of the given width at the given offset.
	HandleRead(offset uint64, width AccessWidth) (uint64, error)

	// HandleWrite writes a value of the given width at the given offset.
	// Truncation of value bits beyond the width is the device's concern.
	HandleWrite(offset uint64, width AccessWidth, value uint64) error
}

// ChangeDeviceState exposes optional lifecycle hooks for devices that
// need activation, teardown, or reset behavior. The dispatcher fans
// these out to every registered device that implements the interface.
type ChangeDeviceState interface {
	Start() error
	Stop() error
	Reset() error
}

// InterruptSink receives interrupt assertions for a given line.
type InterruptSink interface {
	SetIRQ(line uint32, level bool)
}

// LineInterrupt models an interrupt line that supports level and edge
// semantics.
type LineInterrupt interface {
	SetLevel(high bool)
	PulseInterrupt()
}

type noopLineInterrupt struct{}

func (noopLineInterrupt) SetLevel(bool)   {}
func (noopLineInterrupt) PulseInterrupt() {}

// LineInterruptDetached returns a LineInterrupt that drops all signals.
func LineInterruptDetached() LineInterrupt {
	return noopLineInterrupt{}
}

// LineInterruptFromFunc adapts a simple level function to LineInterrupt.
func LineInterruptFromFunc(fn func(bool)) LineInterrupt {
	return lineInterruptFunc(fn)
}

type lineInterruptFunc func(bool)

func (f lineInterruptFunc) SetLevel(level bool) {
	if f != nil {
		f(level)
	}
}

func (f lineInterruptFunc) PulseInterrupt() {
	if f != nil {
		f(true)
		f(false)
	}
}
