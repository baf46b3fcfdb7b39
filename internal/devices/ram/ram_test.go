package ram

import (
	"errors"
	"testing"

	"github.com/tinyrange/devbus/internal/chipset"
)

func TestRoundTripWidths(t *testing.T) {
	d := New(0x1000_0000, 0x1000)

	cases := []struct {
		width chipset.AccessWidth
		value uint64
	}{
		{chipset.Width8, 0xab},
		{chipset.Width16, 0xbeef},
		{chipset.Width32, 0xdeadbeef},
		{chipset.Width64, 0x0123_4567_89ab_cdef},
	}
	for _, tc := range cases {
		if err := d.HandleWrite(0x40, tc.width, tc.value); err != nil {
			t.Fatalf("write width %d: %v", tc.width, err)
		}
		got, err := d.HandleRead(0x40, tc.width)
		if err != nil {
			t.Fatalf("read width %d: %v", tc.width, err)
		}
		if got != tc.value {
			t.Fatalf("width %d: got 0x%x want 0x%x", tc.width, got, tc.value)
		}
	}
}

func TestLittleEndianLayout(t *testing.T) {
	d := New(0, 0x100)
	if err := d.HandleWrite(0, chipset.Width32, 0xdeadbeef); err != nil {
		t.Fatalf("write: %v", err)
	}
	lo, err := d.HandleRead(0, chipset.Width8)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if lo != 0xef {
		t.Fatalf("byte 0: got 0x%x want 0xef", lo)
	}
}

func TestUnsupportedWidth(t *testing.T) {
	d := New(0, 0x100)
	if _, err := d.HandleRead(0, 3); !errors.Is(err, chipset.ErrUnsupportedWidth) {
		t.Fatalf("expected ErrUnsupportedWidth, got %v", err)
	}
	if err := d.HandleWrite(0, 5, 1); !errors.Is(err, chipset.ErrUnsupportedWidth) {
		t.Fatalf("expected ErrUnsupportedWidth, got %v", err)
	}
}

func TestResetClearsContents(t *testing.T) {
	d := New(0, 0x100)
	if err := d.HandleWrite(0x10, chipset.Width64, ^uint64(0)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := d.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	v, err := d.HandleRead(0x10, chipset.Width64)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected zeroed contents, got 0x%x", v)
	}
}
