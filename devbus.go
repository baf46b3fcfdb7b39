// Package devbus implements the emulated-device layer of a virtual
// machine. A Builder collects MMIO devices into a registry of
// non-overlapping guest physical ranges; the resulting Dispatcher
// routes every guest MMIO exit to the owning device. Device models,
// interrupt line plumbing, and a YAML layout loader are included so a
// hypervisor loop only has to forward exits and inject interrupts.
package devbus

import (
	"io"
	"time"

	"github.com/tinyrange/devbus/internal/chipset"
	"github.com/tinyrange/devbus/internal/config"
	"github.com/tinyrange/devbus/internal/devices/factory"
)

// -----------------------------------------------------------------------------
// Type Aliases - These re-export types from internal/chipset
// -----------------------------------------------------------------------------

// GuestPhysAddr is an address in the guest physical address space.
type GuestPhysAddr = chipset.GuestPhysAddr

// AccessWidth is the size of a single MMIO access in bytes.
type AccessWidth = chipset.AccessWidth

// MMIODevice is the capability every emulated device implements.
type MMIODevice = chipset.MMIODevice

// ChangeDeviceState is the optional lifecycle capability of a device.
type ChangeDeviceState = chipset.ChangeDeviceState

// Builder accumulates devices and validates their ranges.
type Builder = chipset.Builder

// Dispatcher routes MMIO accesses to registered devices. It is safe
// for concurrent use by multiple vCPU threads.
type Dispatcher = chipset.Dispatcher

// DeviceCategory classifies a device for construction and singleton
// enforcement.
type DeviceCategory = chipset.DeviceCategory

// RangeDesc identifies a device's claimed range in error messages.
type RangeDesc = chipset.RangeDesc

// StatsSnapshot is a point-in-time copy of one device's access counters.
type StatsSnapshot = chipset.StatsSnapshot

// LineSet tracks interrupt line levels and forwards changes to a sink.
type LineSet = chipset.LineSet

// LineInterrupt is a device's handle on one interrupt line.
type LineInterrupt = chipset.LineInterrupt

// InterruptSink receives interrupt line state changes.
type InterruptSink = chipset.InterruptSink

// InterruptRouter queues pending interrupts per vCPU.
type InterruptRouter = chipset.InterruptRouter

// PendingInterrupt is an interrupt waiting to be injected into a vCPU.
type PendingInterrupt = chipset.PendingInterrupt

// LineRoute describes where assertions of a line should be queued.
type LineRoute = chipset.LineRoute

// Layout is a device layer description, usually loaded from YAML.
type Layout = config.Layout

// DeviceConfig describes one device within a Layout.
type DeviceConfig = config.DeviceConfig

// Access widths.
const (
	Width8  = chipset.Width8
	Width16 = chipset.Width16
	Width32 = chipset.Width32
	Width64 = chipset.Width64
)

// Device categories.
const (
	CategoryInterruptController = chipset.CategoryInterruptController
	CategoryConsole             = chipset.CategoryConsole
	CategoryTimer               = chipset.CategoryTimer
	CategoryGeneric             = chipset.CategoryGeneric
)

// Registration errors. Use errors.As to inspect the failing ranges.
type (
	OverlapError            = chipset.OverlapError
	InvalidRangeError       = chipset.InvalidRangeError
	DuplicateSingletonError = chipset.DuplicateSingletonError
)

// Dispatch errors. Returned per access; the dispatcher itself stays
// usable after any of them.
type (
	UnmappedAddressError = chipset.UnmappedAddressError
	OutOfRangeError      = chipset.OutOfRangeError
	DeviceFault          = chipset.DeviceFault
)

// ErrUnsupportedWidth is returned by devices for access widths their
// registers do not support.
var ErrUnsupportedWidth = chipset.ErrUnsupportedWidth

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

// NewBuilder returns an empty device registry builder.
func NewBuilder() *Builder {
	return chipset.NewBuilder()
}

// NewLineSet returns a line set forwarding to sink. A nil sink
// discards line changes.
func NewLineSet(sink InterruptSink) *LineSet {
	return chipset.NewLineSet(sink)
}

// NewInterruptRouter returns a router with one pending queue per vCPU.
func NewInterruptRouter(cpuCount int) *InterruptRouter {
	return chipset.NewInterruptRouter(cpuCount)
}

// LoadLayout reads a device layout from a YAML file.
func LoadLayout(path string) (Layout, error) {
	return config.Load(path)
}

// ParseLayout decodes a device layout from YAML bytes.
func ParseLayout(data []byte) (Layout, error) {
	return config.Parse(data)
}

// Option configures device construction in New.
type Option = factory.Option

// WithConsoleOutput directs console transmit bytes to w.
func WithConsoleOutput(w io.Writer) Option {
	return factory.WithConsoleOutput(w)
}

// WithInterruptSink receives line changes when the layout has no
// interrupt controller.
func WithInterruptSink(s InterruptSink) Option {
	return factory.WithInterruptSink(s)
}

// WithClock overrides the time source used by timer devices.
func WithClock(now func() time.Time) Option {
	return factory.WithClock(now)
}

// New builds every device in the layout and returns the finished
// dispatcher.
func New(layout Layout, opts ...Option) (*Dispatcher, error) {
	return factory.Build(layout, opts...)
}
