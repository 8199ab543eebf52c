package micheline

import (
	"errors"
	"testing"
)

func TestStreamReadPeekSkip(t *testing.T) {
	s := NewStream(16)
	s.Refill([]byte{0xAA, 0xBB})

	if b, err := s.PeekByte(); err != nil || b != 0xAA {
		t.Fatalf("peek = %x, %v", b, err)
	}
	if s.Offset() != 0 {
		t.Fatalf("peek moved the offset to %d", s.Offset())
	}
	s.Skip()
	if b, err := s.ReadByte(); err != nil || b != 0xBB {
		t.Fatalf("read = %x, %v", b, err)
	}
	if s.Offset() != 2 {
		t.Fatalf("offset = %d, want 2", s.Offset())
	}
	if _, err := s.ReadByte(); !errors.Is(err, ErrNeedMoreInput) {
		t.Fatalf("read on empty = %v, want ErrNeedMoreInput", err)
	}

	// offsets keep counting across refills
	s.Refill([]byte{0xCC})
	if b, err := s.ReadByte(); err != nil || b != 0xCC {
		t.Fatalf("read after refill = %x, %v", b, err)
	}
	if s.Offset() != 3 {
		t.Fatalf("offset = %d, want 3", s.Offset())
	}
}

func TestStreamWindow(t *testing.T) {
	s := NewStream(3)
	for _, c := range []byte("abc") {
		if err := s.Put(c); err != nil {
			t.Fatalf("put %c: %v", c, err)
		}
	}
	if err := s.Put('d'); !errors.Is(err, ErrWindowFull) {
		t.Fatalf("put on full = %v, want ErrWindowFull", err)
	}
	if s.Pending() != 3 {
		t.Fatalf("pending = %d, want 3", s.Pending())
	}
	if got := s.Flush(); got != "abc" {
		t.Fatalf("flush = %q", got)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending after flush = %d", s.Pending())
	}
	if err := s.Put('d'); err != nil {
		t.Fatalf("put after flush: %v", err)
	}
}

func TestStreamFlushUpTo(t *testing.T) {
	s := NewStream(8)
	for _, c := range []byte("abcdef") {
		if err := s.Put(c); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if got := s.FlushUpTo(4); got != "abcd" {
		t.Fatalf("flush up to 4 = %q", got)
	}
	if got := s.FlushUpTo(4); got != "ef" {
		t.Fatalf("second flush = %q", got)
	}
	if got := s.FlushUpTo(4); got != "" {
		t.Fatalf("empty flush = %q", got)
	}
}

func TestStreamDefaultWindow(t *testing.T) {
	s := NewStream(0)
	for i := 0; i < DEFAULT_WINDOW_SIZE; i++ {
		if err := s.Put('x'); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if err := s.Put('x'); !errors.Is(err, ErrWindowFull) {
		t.Fatalf("expected full window, got %v", err)
	}
}
