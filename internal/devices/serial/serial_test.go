package serial

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tinyrange/devbus/internal/chipset"
)

func TestTransmitWritesToBackend(t *testing.T) {
	var out bytes.Buffer
	d := New(0x3000, 0, &out, nil)

	for _, b := range []byte("ok\n") {
		if err := d.HandleWrite(RegData, chipset.Width8, uint64(b)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if out.String() != "ok\n" {
		t.Fatalf("backend got %q", out.String())
	}
}

func TestReceivePath(t *testing.T) {
	d := New(0x3000, 0, nil, nil)

	status, err := d.HandleRead(RegStatus, chipset.Width32)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status&StatusRxReady != 0 {
		t.Fatalf("rx ready with empty FIFO")
	}
	if status&StatusTxReady == 0 {
		t.Fatalf("tx not ready")
	}

	d.PushInput([]byte{'h', 'i'})

	status, _ = d.HandleRead(RegStatus, chipset.Width32)
	if status&StatusRxReady == 0 {
		t.Fatalf("rx not ready after PushInput")
	}

	for _, want := range []byte{'h', 'i'} {
		got, err := d.HandleRead(RegData, chipset.Width8)
		if err != nil {
			t.Fatalf("data read: %v", err)
		}
		if byte(got) != want {
			t.Fatalf("got %q want %q", byte(got), want)
		}
	}

	// Drained: further reads return 0.
	if got, _ := d.HandleRead(RegData, chipset.Width8); got != 0 {
		t.Fatalf("expected 0 from drained FIFO, got 0x%x", got)
	}
}

func TestRxInterruptFollowsFIFO(t *testing.T) {
	var level bool
	line := chipset.LineInterruptFromFunc(func(high bool) { level = high })
	d := New(0x3000, 0, nil, line)

	if err := d.HandleWrite(RegIntEnable, chipset.Width32, IntEnableRx); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if level {
		t.Fatalf("line high with empty FIFO")
	}

	d.PushInput([]byte{'x'})
	if !level {
		t.Fatalf("line not raised on input")
	}

	if _, err := d.HandleRead(RegData, chipset.Width8); err != nil {
		t.Fatalf("data read: %v", err)
	}
	if level {
		t.Fatalf("line not lowered after FIFO drained")
	}
}

func TestUnsupportedWidth(t *testing.T) {
	d := New(0x3000, 0, nil, nil)
	if _, err := d.HandleRead(RegData, 7); !errors.Is(err, chipset.ErrUnsupportedWidth) {
		t.Fatalf("expected ErrUnsupportedWidth, got %v", err)
	}
}
