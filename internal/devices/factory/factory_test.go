package factory

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tinyrange/devbus/internal/chipset"
	"github.com/tinyrange/devbus/internal/config"
	"github.com/tinyrange/devbus/internal/devices/intc"
	"github.com/tinyrange/devbus/internal/devices/serial"
)

func baseLayout() config.Layout {
	return config.Layout{Devices: []config.DeviceConfig{
		{Name: "plic", Category: "interrupt-controller", Base: 0x8000000, Cores: 1},
		{Name: "uart0", Category: "console", Base: 0x10000000, Line: 10},
		{Name: "clint", Category: "timer", Base: 0x10001000, Frequency: 1000, Line: 11},
		{Name: "scratch", Category: "generic", Base: 0x20000000, Length: 0x1000},
	}}
}

func TestBuildFullLayout(t *testing.T) {
	var console bytes.Buffer
	d, err := Build(baseLayout(), WithConsoleOutput(&console))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if d.DeviceCount() != 4 {
		t.Fatalf("expected 4 devices, got %d", d.DeviceCount())
	}

	// Console transmit lands on the configured writer.
	if err := d.HandleMMIOWrite(0x10000000+serial.RegData, chipset.Width8, 'h'); err != nil {
		t.Fatalf("console write: %v", err)
	}
	if console.String() != "h" {
		t.Fatalf("console output: %q", console.String())
	}
}

func TestConsoleLineRoutesIntoController(t *testing.T) {
	d, err := Build(baseLayout(), WithConsoleOutput(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	uart, ok := d.Device("uart0").(*serial.Device)
	if !ok {
		t.Fatalf("uart0 is %T", d.Device("uart0"))
	}
	ctl, ok := d.Device("plic").(*intc.Device)
	if !ok {
		t.Fatalf("plic is %T", d.Device("plic"))
	}

	// Enable RX interrupts and push input: the controller must see
	// line 10 go pending.
	if err := d.HandleMMIOWrite(0x10000000+serial.RegIntEnable, chipset.Width32, serial.IntEnableRx); err != nil {
		t.Fatalf("int enable: %v", err)
	}
	uart.PushInput([]byte("x"))
	if !ctl.Pending(10) {
		t.Fatalf("line 10 not pending in controller")
	}
}

func TestRejectsSecondInterruptController(t *testing.T) {
	layout := baseLayout()
	layout.Devices = append(layout.Devices, config.DeviceConfig{
		Name: "plic2", Category: "interrupt-controller", Base: 0x9000000, Cores: 1,
	})

	_, err := Build(layout)
	var dse *chipset.DuplicateSingletonError
	if !errors.As(err, &dse) {
		t.Fatalf("expected DuplicateSingletonError, got %v", err)
	}
}

func TestRejectsMisalignedController(t *testing.T) {
	layout := config.Layout{Devices: []config.DeviceConfig{
		{Name: "plic", Category: "interrupt-controller", Base: 0x8000010, Cores: 1},
	}}
	_, err := Build(layout)
	var ire *chipset.InvalidRangeError
	if !errors.As(err, &ire) {
		t.Fatalf("expected InvalidRangeError, got %v", err)
	}
}

func TestRejectsUndersizedController(t *testing.T) {
	layout := config.Layout{Devices: []config.DeviceConfig{
		{Name: "plic", Category: "interrupt-controller", Base: 0x8000000, Cores: 4, Length: 0x100},
	}}
	_, err := Build(layout)
	var ire *chipset.InvalidRangeError
	if !errors.As(err, &ire) {
		t.Fatalf("expected InvalidRangeError, got %v", err)
	}
}

func TestRejectsUnknownCategory(t *testing.T) {
	layout := config.Layout{Devices: []config.DeviceConfig{
		{Name: "mystery", Category: "flux-capacitor", Base: 0x1000, Length: 0x100},
	}}
	if _, err := Build(layout); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}

func TestLinesFallBackToExternalSink(t *testing.T) {
	router := chipset.NewInterruptRouter(1)
	layout := config.Layout{Devices: []config.DeviceConfig{
		{Name: "uart0", Category: "console", Base: 0x10000000, Line: 10},
	}}

	d, err := Build(layout, WithConsoleOutput(&bytes.Buffer{}), WithInterruptSink(router))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	uart := d.Device("uart0").(*serial.Device)

	if err := d.HandleMMIOWrite(0x10000000+serial.RegIntEnable, chipset.Width32, serial.IntEnableRx); err != nil {
		t.Fatalf("int enable: %v", err)
	}
	uart.PushInput([]byte("x"))

	p, ok := router.PopPending(0)
	if !ok {
		t.Fatalf("no pending interrupt queued")
	}
	if p.Line != 10 {
		t.Fatalf("queued line: got %d want 10", p.Line)
	}
}
