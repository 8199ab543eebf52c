// Package watchdog keeps the bridge daemon alive: a Supervisor
// restarts the child command with exponential backoff and forwards its
// output to the log, a Notifier integrates with the systemd watchdog.
package watchdog

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const (
	defaultBackoff    = time.Second
	defaultMaxBackoff = time.Minute

	// a child that survives this long resets the backoff
	healthyAge = 30 * time.Second
)

// Supervisor runs a child command and restarts it whenever it exits,
// until the context ends.
type Supervisor struct {
	log        *slog.Logger
	name       string
	args       []string
	backoff    time.Duration
	maxBackoff time.Duration
}

// SupervisorOption adjusts a Supervisor.
type SupervisorOption func(*Supervisor)

func WithLogger(log *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if log != nil {
			s.log = log
		}
	}
}

// WithBackoff sets the initial and maximum restart delays.
func WithBackoff(initial, max time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if initial > 0 {
			s.backoff = initial
		}
		if max >= s.backoff {
			s.maxBackoff = max
		}
	}
}

// NewSupervisor supervises name with args.
func NewSupervisor(name string, args []string, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		log:        slog.Default(),
		name:       name,
		args:       args,
		backoff:    defaultBackoff,
		maxBackoff: defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "watchdog", "child", name)
	return s
}

// Run starts the child and restarts it on exit, doubling the delay up
// to the cap. A child that stays up long enough resets the delay. Run
// returns the context error once the context ends.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := s.backoff
	for {
		started := time.Now()
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) >= healthyAge {
			backoff = s.backoff
		}

		s.log.Warn("child exited", "err", err, "restart_in", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.name, s.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	s.log.Info("child started", "pid", cmd.Process.Pid)

	var wg sync.WaitGroup
	wg.Add(2)
	go s.capture(&wg, stdout, "stdout")
	go s.capture(&wg, stderr, "stderr")
	wg.Wait()
	return cmd.Wait()
}

// capture forwards one output stream to the log, line by line.
func (s *Supervisor) capture(wg *sync.WaitGroup, r io.Reader, stream string) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		s.log.Info(sc.Text(), "stream", stream)
	}
}
