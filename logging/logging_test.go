package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"Info", slog.LevelInfo, true},
		{"WARN", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{" info ", slog.LevelInfo, true},
		{"verbose", slog.LevelInfo, false},
	}

	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if c.ok && err != nil {
			t.Errorf("ParseLevel(%q): unexpected error %v", c.in, err)
		}
		if !c.ok && err == nil {
			t.Errorf("ParseLevel(%q): expected error", c.in)
		}
		if got != c.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(WithWriter(&buf), WithLevel(slog.LevelWarn))

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("below-level records leaked: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvMaxSizeMB, "5")
	t.Setenv(EnvMaxBackups, "1")

	log, err := NewFromEnv()
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	if log == nil {
		t.Fatal("NewFromEnv returned nil logger")
	}
}

func TestNewFromEnvBadValueStillReturnsLogger(t *testing.T) {
	t.Setenv(EnvLevel, "chatty")

	log, err := NewFromEnv()
	if err == nil {
		t.Fatal("expected error for bad level")
	}
	if log == nil {
		t.Fatal("logger must be usable despite env error")
	}

	var bad *BadEnvError
	if !errorsAs(err, &bad) || bad.Var != EnvLevel {
		t.Fatalf("expected BadEnvError for %s, got %v", EnvLevel, err)
	}
}

// small local helper to avoid importing errors just for one assertion
func errorsAs(err error, target **BadEnvError) bool {
	if e, ok := err.(*BadEnvError); ok {
		*target = e
		return true
	}
	return false
}
