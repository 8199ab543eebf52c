// Package logging builds slog loggers from the MVSIGN_LOG_* environment.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	EnvLevel      = "MVSIGN_LOG_LEVEL"
	EnvFile       = "MVSIGN_LOG_FILE"
	EnvMaxSizeMB  = "MVSIGN_LOG_MAX_SIZE_MB"
	EnvMaxBackups = "MVSIGN_LOG_MAX_BACKUPS"

	defaultMaxSizeMB  = 20
	defaultMaxBackups = 3
)

type options struct {
	level      slog.Level
	file       string
	maxSizeMB  int
	maxBackups int
	out        io.Writer
}

type Option func(*options)

func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithFile routes log output through a rotating file writer.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

func WithRotation(maxSizeMB, maxBackups int) Option {
	return func(o *options) {
		if maxSizeMB > 0 {
			o.maxSizeMB = maxSizeMB
		}
		if maxBackups >= 0 {
			o.maxBackups = maxBackups
		}
	}
}

// WithWriter overrides the output writer. Mostly for tests.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.out = w
		}
	}
}

// New builds a text slog.Logger writing to stderr unless a file or
// writer option says otherwise.
func New(opts ...Option) *slog.Logger {
	o := &options{
		level:      slog.LevelInfo,
		maxSizeMB:  defaultMaxSizeMB,
		maxBackups: defaultMaxBackups,
	}
	for _, fn := range opts {
		fn(o)
	}

	w := o.out
	if w == nil {
		if o.file != "" {
			w = &lumberjack.Logger{
				Filename:   o.file,
				MaxSize:    o.maxSizeMB,
				MaxBackups: o.maxBackups,
			}
		} else {
			w = os.Stderr
		}
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: o.level})
	return slog.New(h)
}

// NewFromEnv builds a logger from MVSIGN_LOG_* variables. Unset or bad
// values fall back to defaults; the error reports the first bad value
// while the returned logger is still usable.
func NewFromEnv() (*slog.Logger, error) {
	var firstErr error

	opts := []Option{}
	if v := os.Getenv(EnvLevel); v != "" {
		l, err := ParseLevel(v)
		if err != nil {
			firstErr = err
		} else {
			opts = append(opts, WithLevel(l))
		}
	}
	if v := os.Getenv(EnvFile); v != "" {
		opts = append(opts, WithFile(v))
	}

	maxSize, maxBackups := defaultMaxSizeMB, defaultMaxBackups
	if v := os.Getenv(EnvMaxSizeMB); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			if firstErr == nil {
				firstErr = &BadEnvError{Var: EnvMaxSizeMB, Value: v}
			}
		} else {
			maxSize = n
		}
	}
	if v := os.Getenv(EnvMaxBackups); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			if firstErr == nil {
				firstErr = &BadEnvError{Var: EnvMaxBackups, Value: v}
			}
		} else {
			maxBackups = n
		}
	}
	opts = append(opts, WithRotation(maxSize, maxBackups))

	return New(opts...), firstErr
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, &BadEnvError{Var: EnvLevel, Value: s}
	}
}

// BadEnvError reports an environment variable that did not parse.
type BadEnvError struct {
	Var   string
	Value string
}

func (e *BadEnvError) Error() string {
	return "logging: bad " + e.Var + " value " + strconv.Quote(e.Value)
}
