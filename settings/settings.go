// Package settings persists the device toggles and serves live
// snapshots of them. The file is plain TOML so an operator can edit it
// while the device runs; a watcher picks the change up.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Device profile names a Snapshot may carry.
const (
	ProfileButton = "button"
	ProfileTouch  = "touch"
)

// ErrUnknownProfile rejects a profile name outside the known set.
var ErrUnknownProfile = errors.New("settings: unknown profile")

// Snapshot is one consistent view of the stored settings.
type Snapshot struct {
	ExpertMode bool   `toml:"expert_mode"`
	Blindsign  bool   `toml:"blindsign"`
	Profile    string `toml:"profile"`
}

// Defaults is the factory state: both toggles off, button profile.
func Defaults() Snapshot {
	return Snapshot{Profile: ProfileButton}
}

func validProfile(name string) bool {
	return name == ProfileButton || name == ProfileTouch
}

// Store owns the settings file. Reads serve the in-memory snapshot,
// writes go through the file so other processes observe them.
type Store struct {
	path string
	log  *slog.Logger

	mu       sync.Mutex
	snap     Snapshot
	onChange []func(Snapshot)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Option adjusts a Store.
type Option func(*Store)

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Open loads the settings file at path, creating it with defaults when
// it does not exist yet.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, log: slog.Default(), snap: Defaults()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "settings")

	snap, err := load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := s.save(); err != nil {
			return nil, err
		}
		s.log.Info("settings created", "path", path)
	case err != nil:
		return nil, err
	default:
		s.snap = snap
	}
	return s, nil
}

func load(path string) (Snapshot, error) {
	snap := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if _, err := toml.Decode(string(data), &snap); err != nil {
		return snap, fmt.Errorf("settings: decode %s: %w", path, err)
	}
	if !validProfile(snap.Profile) {
		return snap, fmt.Errorf("settings: %s: %w: %q", path, ErrUnknownProfile, snap.Profile)
	}
	return snap, nil
}

// save writes the snapshot through a temp file rename. Caller holds mu.
func (s *Store) save() error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s.snap); err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Snapshot returns the current settings.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Store) ExpertMode() bool { return s.Snapshot().ExpertMode }

func (s *Store) Blindsign() bool { return s.Snapshot().Blindsign }

func (s *Store) Profile() string { return s.Snapshot().Profile }

// SetExpertMode stores the expert mode toggle.
func (s *Store) SetExpertMode(on bool) error {
	return s.update(func(snap *Snapshot) { snap.ExpertMode = on })
}

// SetBlindsign stores the blind signing toggle.
func (s *Store) SetBlindsign(on bool) error {
	return s.update(func(snap *Snapshot) { snap.Blindsign = on })
}

// SetProfile stores the default device profile name.
func (s *Store) SetProfile(name string) error {
	if !validProfile(name) {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return s.update(func(snap *Snapshot) { snap.Profile = name })
}

func (s *Store) update(mutate func(*Snapshot)) error {
	s.mu.Lock()
	prev := s.snap
	mutate(&s.snap)
	if s.snap == prev {
		s.mu.Unlock()
		return nil
	}
	if err := s.save(); err != nil {
		s.snap = prev
		s.mu.Unlock()
		return err
	}
	snap := s.snap
	fns := slices.Clone(s.onChange)
	s.mu.Unlock()

	s.log.Info("settings updated",
		"expert_mode", snap.ExpertMode, "blindsign", snap.Blindsign, "profile", snap.Profile)
	for _, fn := range fns {
		fn(snap)
	}
	return nil
}

// OnChange registers fn to run with every new snapshot, whether the
// change came from this process or from the file.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Watch reloads the store when the settings file changes on disk. The
// parent directory is watched so editors and renames are caught.
func (s *Store) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: watch: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("settings: watch %s: %w", filepath.Dir(s.path), err)
	}
	s.watcher = w
	s.done = make(chan struct{})
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != filepath.Base(s.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, func() {
				select {
				case <-s.done:
				default:
					s.reload()
				}
			})

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("settings watch error", "err", err)
		}
	}
}

func (s *Store) reload() {
	snap, err := load(s.path)
	if err != nil {
		s.log.Warn("settings reload failed", "err", err)
		return
	}

	s.mu.Lock()
	if snap == s.snap {
		s.mu.Unlock()
		return
	}
	s.snap = snap
	fns := slices.Clone(s.onChange)
	s.mu.Unlock()

	s.log.Info("settings reloaded",
		"expert_mode", snap.ExpertMode, "blindsign", snap.Blindsign, "profile", snap.Profile)
	for _, fn := range fns {
		fn(snap)
	}
}

// Ping reports whether the file on disk still parses. A corrupt edit
// freezes the store at its last good snapshot and only shows up here
// and in the log. A missing file is healthy, the next write recreates
// it.
func (s *Store) Ping() error {
	if _, err := load(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Close stops the watcher. The store itself stays readable.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}
