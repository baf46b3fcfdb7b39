// Package factory builds a dispatcher from a device layout.
package factory

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tinyrange/devbus/internal/chipset"
	"github.com/tinyrange/devbus/internal/config"
	"github.com/tinyrange/devbus/internal/devices/intc"
	"github.com/tinyrange/devbus/internal/devices/ram"
	"github.com/tinyrange/devbus/internal/devices/serial"
	"github.com/tinyrange/devbus/internal/devices/timer"
)

type options struct {
	out  io.Writer
	sink chipset.InterruptSink
	now  func() time.Time
}

type Option func(*options)

// WithConsoleOutput directs console device transmit bytes to w. The
// default is os.Stdout.
func WithConsoleOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithInterruptSink receives line state changes when the layout has no
// interrupt controller of its own.
func WithInterruptSink(s chipset.InterruptSink) Option {
	return func(o *options) { o.sink = s }
}

// WithClock overrides the time source used by timer devices. Tests use
// this to drive counters deterministically.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Build constructs every device in the layout, wires interrupt lines,
// and returns the finished dispatcher.
//
// A layout may contain at most one interrupt controller. When present
// it becomes the sink for all device lines; otherwise lines go to the
// sink given via WithInterruptSink, or nowhere.
func Build(layout config.Layout, opts ...Option) (*chipset.Dispatcher, error) {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	b := chipset.NewBuilder()

	// The interrupt controller is constructed first so every other
	// device can route its line into it, regardless of layout order.
	sink := o.sink
	haveIntc := false
	for _, cfg := range layout.Devices {
		if chipset.DeviceCategory(cfg.Category) != chipset.CategoryInterruptController {
			continue
		}
		if haveIntc {
			return nil, &chipset.DuplicateSingletonError{Category: chipset.CategoryInterruptController}
		}
		haveIntc = true
		dev, err := buildInterruptController(cfg)
		if err != nil {
			return nil, err
		}
		if err := b.RegisterDevice(cfg.Name, chipset.CategoryInterruptController, dev); err != nil {
			return nil, err
		}
		sink = dev
	}

	lines := chipset.NewLineSet(sink)

	for _, cfg := range layout.Devices {
		category := chipset.DeviceCategory(cfg.Category)
		base := chipset.GuestPhysAddr(cfg.Base)

		var dev chipset.MMIODevice
		switch category {
		case chipset.CategoryInterruptController:
			continue // already registered
		case chipset.CategoryConsole:
			dev = serial.New(base, cfg.Length, o.out, lines.AllocateLine(cfg.Line))
		case chipset.CategoryTimer:
			var topts []timer.Option
			if o.now != nil {
				topts = append(topts, timer.WithClock(o.now))
			}
			dev = timer.New(base, cfg.Length, cfg.Frequency, lines.AllocateLine(cfg.Line), topts...)
		case chipset.CategoryGeneric:
			dev = ram.New(base, cfg.Length)
		default:
			return nil, fmt.Errorf("device %q: unknown category %q", cfg.Name, cfg.Category)
		}

		if err := b.RegisterDevice(cfg.Name, category, dev); err != nil {
			return nil, err
		}
		slog.Debug("registered device", "name", cfg.Name, "category", cfg.Category, "base", cfg.Base)
	}

	return b.Build()
}

func buildInterruptController(cfg config.DeviceConfig) (*intc.Device, error) {
	cores := uint64(cfg.Cores)
	if cores == 0 {
		cores = 1
	}

	length := cfg.Length
	if length == 0 {
		length = intc.Size(cores)
	}

	desc := chipset.RangeDesc{Name: cfg.Name, Base: chipset.GuestPhysAddr(cfg.Base), Length: length}
	if cfg.Base%intc.RequiredAlignment != 0 {
		return nil, &chipset.InvalidRangeError{
			Range:  desc,
			Reason: fmt.Sprintf("interrupt controller base must be 0x%x aligned", uint64(intc.RequiredAlignment)),
		}
	}
	if length < intc.Size(cores) {
		return nil, &chipset.InvalidRangeError{
			Range:  desc,
			Reason: fmt.Sprintf("length too small for %d cores (need 0x%x)", cores, intc.Size(cores)),
		}
	}

	return intc.New(chipset.GuestPhysAddr(cfg.Base), length, cores), nil
}
