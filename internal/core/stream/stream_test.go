package stream

import (
	"errors"
	"testing"
)

func TestRoundTripFields(t *testing.T) {
	w := NewVersionedWriter(2)
	w.WriteC(7)
	w.WriteBool(true)
	w.WriteH(0xBEEF)
	w.WriteD(-42)
	w.WriteQ(1 << 40)
	w.WriteF(1.5)
	w.WriteS("héllo")
	w.WriteBytes([]byte{1, 2, 3})

	r, version, err := NewVersionedReader(w.Bytes(), 2)
	if err != nil {
		t.Fatalf("NewVersionedReader: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}
	if v := r.ReadC(); v != 7 {
		t.Errorf("ReadC: got %d", v)
	}
	if !r.ReadBool() {
		t.Errorf("ReadBool: got false")
	}
	if v := r.ReadH(); v != 0xBEEF {
		t.Errorf("ReadH: got %#x", v)
	}
	if v := r.ReadD(); v != -42 {
		t.Errorf("ReadD: got %d", v)
	}
	if v := r.ReadQ(); v != 1<<40 {
		t.Errorf("ReadQ: got %d", v)
	}
	if v := r.ReadF(); v != 1.5 {
		t.Errorf("ReadF: got %v", v)
	}
	if v := r.ReadS(); v != "héllo" {
		t.Errorf("ReadS: got %q", v)
	}
	if b := r.ReadBytes(); len(b) != 3 || b[2] != 3 {
		t.Errorf("ReadBytes: got %v", b)
	}
	if r.Err() != nil || r.Remaining() != 0 {
		t.Errorf("expected clean end, err=%v remaining=%d", r.Err(), r.Remaining())
	}
}

func TestUnknownVersionFails(t *testing.T) {
	w := NewVersionedWriter(3)
	if _, _, err := NewVersionedReader(w.Bytes(), 2); !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("expected ErrUnknownVersion, got %v", err)
	}
	if _, _, err := NewVersionedReader([]byte{1, 2, 3, 4, 1, 0, 0, 0}, 2); !errors.Is(err, ErrBadMagic) {
		t.Errorf("expected ErrBadMagic, got %v", err)
	}
}

func TestShortReadIsSticky(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if v := r.ReadDU(); v != 0 {
		t.Errorf("expected zero on short read, got %d", v)
	}
	if !errors.Is(r.Err(), ErrShortRead) {
		t.Fatalf("expected ErrShortRead, got %v", r.Err())
	}
	if v := r.ReadC(); v != 0 {
		t.Errorf("Reads after an error must return zero, got %d", v)
	}
}
