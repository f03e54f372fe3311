package imagedev

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemUnwrittenReadsZero(t *testing.T) {
	dev := NewMem(64)
	buf := bytes.Repeat([]byte{0xff}, 64)

	if err := dev.ReadBlock(3, buf); err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if !bytes.Equal(buf, make([]byte, 64)) {
		t.Errorf("Expected zeros from an unwritten block")
	}
}

func TestMemWriteReadRoundTrip(t *testing.T) {
	dev := NewMem(64)
	data := bytes.Repeat([]byte{0xab}, 64)

	if err := dev.WriteBlock(7, data); err != nil {
		t.Fatalf("WriteBlock failed: %v", err)
	}

	// The device must store a copy, not alias the caller's buffer.
	data[0] = 0xcd

	got := make([]byte, 64)
	if err := dev.ReadBlock(7, got); err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}
	if got[0] != 0xab {
		t.Errorf("Device aliased the write buffer")
	}
}

func TestMemRejectsWrongBufferSize(t *testing.T) {
	dev := NewMem(64)
	if err := dev.ReadBlock(0, make([]byte, 32)); !errors.Is(err, ErrBufSize) {
		t.Errorf("Expected ErrBufSize on read, got %v", err)
	}
	if err := dev.WriteBlock(0, make([]byte, 128)); !errors.Is(err, ErrBufSize) {
		t.Errorf("Expected ErrBufSize on write, got %v", err)
	}
}

func TestMemFaultInjection(t *testing.T) {
	dev := NewMem(64)
	boom := errors.New("boom")
	buf := make([]byte, 64)

	dev.FailRead(1, boom)
	dev.FailWrite(2, boom)

	if err := dev.ReadBlock(1, buf); !errors.Is(err, boom) {
		t.Errorf("Expected injected read error, got %v", err)
	}
	if err := dev.WriteBlock(2, buf); !errors.Is(err, boom) {
		t.Errorf("Expected injected write error, got %v", err)
	}
	if err := dev.ReadBlock(3, buf); err != nil {
		t.Errorf("Unrelated block failed: %v", err)
	}

	dev.ClearFaults()
	if err := dev.WriteBlock(2, buf); err != nil {
		t.Errorf("Expected success after ClearFaults, got %v", err)
	}
}

func TestMemDiscard(t *testing.T) {
	dev := NewMem(64)
	buf := make([]byte, 64)

	dev.WriteBlock(5, buf)
	if !dev.Written(5) {
		t.Fatalf("Expected block 5 to be written")
	}
	dev.DiscardBlock(5)
	if dev.Written(5) {
		t.Errorf("Expected block 5 to be discarded")
	}
}
