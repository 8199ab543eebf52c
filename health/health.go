// Package health tracks bridge liveness. The exchange path only
// touches atomics; probes and goroutine counts run from the health
// endpoint, never from an exchange.
package health

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Monitor tracks exchange activity and evaluates registered readiness
// probes on demand.
type Monitor struct {
	lastActivity   atomic.Int64  // unix seconds of the last exchange
	exchanges      atomic.Uint64 // total exchange counter
	goroutineLimit int           // max allowed goroutines, 0 means no limit

	mu     sync.Mutex
	checks []check
}

type check struct {
	name  string
	probe func() error
}

// Status is one health evaluation, shaped for the JSON endpoint.
type Status struct {
	Healthy     bool              `json:"healthy"`
	Goroutines  int               `json:"goroutines"`
	Exchanges   uint64            `json:"exchanges"`
	IdleSeconds int64             `json:"idle_seconds"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// NewMonitor creates a monitor. goroutineLimit caps the number of
// goroutines before the monitor reports unhealthy, 0 disables the cap.
func NewMonitor(goroutineLimit int) *Monitor {
	m := &Monitor{goroutineLimit: goroutineLimit}
	m.lastActivity.Store(time.Now().Unix())
	return m
}

// RecordExchange marks one completed exchange. Hot path, atomics only.
func (m *Monitor) RecordExchange() {
	m.lastActivity.Store(time.Now().Unix())
	m.exchanges.Add(1)
}

// LastActivity returns the time of the last recorded exchange.
func (m *Monitor) LastActivity() time.Time {
	return time.Unix(m.lastActivity.Load(), 0)
}

// Exchanges returns the total number of recorded exchanges.
func (m *Monitor) Exchanges() uint64 {
	return m.exchanges.Load()
}

// Register adds a named readiness probe. Probes run inside Check, so
// they may do I/O.
func (m *Monitor) Register(name string, probe func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, check{name: name, probe: probe})
}

// Check evaluates every probe and the goroutine cap. Not for the
// exchange path.
func (m *Monitor) Check() Status {
	s := Status{
		Healthy:     true,
		Goroutines:  runtime.NumGoroutine(),
		Exchanges:   m.exchanges.Load(),
		IdleSeconds: time.Now().Unix() - m.lastActivity.Load(),
	}
	if m.goroutineLimit > 0 && s.Goroutines > m.goroutineLimit {
		s.Healthy = false
	}

	m.mu.Lock()
	checks := make([]check, len(m.checks))
	copy(checks, m.checks)
	m.mu.Unlock()

	if len(checks) > 0 {
		s.Checks = make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.probe(); err != nil {
				s.Checks[c.name] = err.Error()
				s.Healthy = false
			} else {
				s.Checks[c.name] = "ok"
			}
		}
	}
	return s
}
