package watchdog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewReturnsNilWithoutSocket(t *testing.T) {
	os.Unsetenv("NOTIFY_SOCKET")

	if n := New(); n != nil {
		t.Error("New() should return nil when NOTIFY_SOCKET is not set")
	}
}

func TestNilNotifierMethodsAreNoOps(t *testing.T) {
	var n *Notifier

	if err := n.Ready(); err != nil {
		t.Errorf("Ready() on nil notifier: %v", err)
	}
	if err := n.Stopping(); err != nil {
		t.Errorf("Stopping() on nil notifier: %v", err)
	}
	if err := n.Ping(); err != nil {
		t.Errorf("Ping() on nil notifier: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Errorf("Close() on nil notifier: %v", err)
	}

	stop := n.StartPinger(context.Background())
	if stop == nil {
		t.Fatal("StartPinger() on nil notifier should return a stop function")
	}
	stop()
}

func TestIntervalParsing(t *testing.T) {
	tests := []struct {
		usec     string
		expected time.Duration
	}{
		{"60000000", 30 * time.Second},
		{"30000000", 15 * time.Second},
		{"10000000", 5 * time.Second},
		{"1000000", 500 * time.Millisecond},
		{"0", 0},
		{"", 0},
		{"invalid", 0},
		{"-5", 0},
	}

	for _, tt := range tests {
		os.Setenv("WATCHDOG_USEC", tt.usec)
		if got := Interval(); got != tt.expected {
			t.Errorf("Interval() with WATCHDOG_USEC=%q = %v, want %v", tt.usec, got, tt.expected)
		}
	}

	os.Unsetenv("WATCHDOG_USEC")
}

func TestStartPingerStops(t *testing.T) {
	os.Setenv("WATCHDOG_USEC", "1000000")
	defer os.Unsetenv("WATCHDOG_USEC")

	n := &Notifier{addr: "/nonexistent/socket"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop1 := n.StartPinger(ctx)
	stop2 := n.StartPinger(ctx) // duplicate, no-op

	stop2()
	stop1() // must return, the pinger goroutine has to exit

	if !n.running.CompareAndSwap(false, true) {
		t.Error("pinger still marked running after stop")
	}
	n.running.Store(false)
}

// syncBuffer serializes writes from the capture goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSupervisorRestartsAndCapturesOutput(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("needs /bin/sh")
	}

	out := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(out, nil))

	s := NewSupervisor("/bin/sh", []string{"-c", "echo pass one; exit 3"},
		WithLogger(log),
		WithBackoff(10*time.Millisecond, 20*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() = %v, want deadline exceeded", err)
	}

	text := out.String()
	if !strings.Contains(text, "pass one") {
		t.Error("child stdout not captured")
	}
	if !strings.Contains(text, "child exited") {
		t.Error("exit not logged")
	}
	if strings.Count(text, "child started") < 2 {
		t.Error("child not restarted")
	}
}
