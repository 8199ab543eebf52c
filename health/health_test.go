package health

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordExchange(t *testing.T) {
	m := NewMonitor(0)
	before := m.LastActivity()

	m.RecordExchange()
	m.RecordExchange()

	assert.EqualValues(t, 2, m.Exchanges())
	assert.False(t, m.LastActivity().Before(before))

	s := m.Check()
	assert.True(t, s.Healthy)
	assert.EqualValues(t, 2, s.Exchanges)
	assert.Empty(t, s.Checks)
}

func TestProbeFailure(t *testing.T) {
	m := NewMonitor(0)
	m.Register("device", func() error { return nil })
	m.Register("audit", func() error { return errors.New("database is locked") })

	s := m.Check()
	assert.False(t, s.Healthy)
	assert.Equal(t, "ok", s.Checks["device"])
	assert.Equal(t, "database is locked", s.Checks["audit"])
}

func TestGoroutineLimit(t *testing.T) {
	m := NewMonitor(1)
	s := m.Check()
	assert.False(t, s.Healthy)
	assert.Greater(t, s.Goroutines, 1)
}
