package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleLayout = `
devices:
  - name: plic
    category: interrupt-controller
    base: 0x8000000
    length: 0x1080
  - name: uart0
    category: console
    base: 0x10000000
    line: 10
  - name: clint
    category: timer
    base: 0x10001000
    frequency: 1000000
    line: 11
  - name: scratch
    category: generic
    base: 0x20000000
    length: 0x1000
`

func TestParseLayout(t *testing.T) {
	l, err := Parse([]byte(sampleLayout))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(l.Devices) != 4 {
		t.Fatalf("expected 4 devices, got %d", len(l.Devices))
	}

	plic := l.Devices[0]
	if plic.Name != "plic" || plic.Category != "interrupt-controller" {
		t.Fatalf("plic entry mismatch: %+v", plic)
	}
	if plic.Base != 0x8000000 || plic.Length != 0x1080 {
		t.Fatalf("plic range mismatch: base 0x%x length 0x%x", plic.Base, plic.Length)
	}
	if plic.Cores != 1 {
		t.Fatalf("cores not defaulted: %d", plic.Cores)
	}

	uart := l.Devices[1]
	if uart.Line != 10 {
		t.Fatalf("uart line: got %d want 10", uart.Line)
	}
	if uart.Length != 0 {
		t.Fatalf("uart length should be left for the factory default, got 0x%x", uart.Length)
	}

	clint := l.Devices[2]
	if clint.Frequency != 1000000 {
		t.Fatalf("timer frequency: got %d", clint.Frequency)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("devices: [}")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	l, err := Parse([]byte(sampleLayout))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := Write(path, l); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Devices) != len(l.Devices) {
		t.Fatalf("device count mismatch: got %d want %d", len(got.Devices), len(l.Devices))
	}
	if got.Devices[3].Base != 0x20000000 {
		t.Fatalf("base mismatch after round trip: 0x%x", got.Devices[3].Base)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
