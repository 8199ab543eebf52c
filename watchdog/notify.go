package watchdog

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Notifier speaks the systemd notify protocol. New returns nil outside
// of systemd and every method on a nil Notifier is a no-op, so callers
// run unchanged without a NOTIFY_SOCKET.
type Notifier struct {
	conn    net.Conn
	addr    string
	running atomic.Bool
}

// New creates a Notifier from NOTIFY_SOCKET, nil when unset.
func New() *Notifier {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return nil
	}
	return &Notifier{addr: addr}
}

func (n *Notifier) send(msg string) error {
	if n.conn == nil {
		conn, err := net.Dial("unixgram", n.addr)
		if err != nil {
			return err
		}
		n.conn = conn
	}
	_, err := n.conn.Write([]byte(msg))
	return err
}

// Ready signals that the service finished initializing.
func (n *Notifier) Ready() error {
	if n == nil {
		return nil
	}
	return n.send("READY=1")
}

// Stopping signals the start of a graceful shutdown.
func (n *Notifier) Stopping() error {
	if n == nil {
		return nil
	}
	return n.send("STOPPING=1")
}

// Ping resets the systemd watchdog timer.
func (n *Notifier) Ping() error {
	if n == nil {
		return nil
	}
	return n.send("WATCHDOG=1")
}

// Interval returns the ping interval derived from WATCHDOG_USEC, half
// the configured timeout. Zero means no watchdog.
func Interval() time.Duration {
	usec, err := strconv.ParseInt(os.Getenv("WATCHDOG_USEC"), 10, 64)
	if err != nil || usec <= 0 {
		return 0
	}
	return time.Duration(usec) * time.Microsecond / 2
}

// StartPinger pings at the derived interval until the context ends or
// the returned stop function runs. Only one pinger runs at a time.
func (n *Notifier) StartPinger(ctx context.Context) func() {
	if n == nil {
		return func() {}
	}
	interval := Interval()
	if interval == 0 {
		return func() {}
	}
	if !n.running.CompareAndSwap(false, true) {
		return func() {}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer n.running.Store(false)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = n.Ping()
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stop) })
		<-done
	}
}

// Close releases the notify socket.
func (n *Notifier) Close() error {
	if n == nil || n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
