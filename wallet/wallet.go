// Package wallet implements the signing device. A Device owns the
// keychain, dispatches the instruction set over the request/response
// wire and runs the review flow for operations that need user consent.
//
// A Device couples two sides. The transport side calls Exchange (or
// HandleAPDU on raw frames) and blocks until the request resolves, the
// same way the physical device keeps the host waiting while screens
// are shown. The renderer side observes Prompt and applies user
// actions with Do. The Renderer option collapses both sides into one
// synchronous loop for headless use and tests.
package wallet

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/common"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/review"
)

// Settings supplies the persisted review toggles at session start and
// stores the changes made mid flow.
type Settings interface {
	review.Settings
	ExpertMode() bool
	Blindsign() bool
}

// Renderer answers prompts synchronously. It runs with the device
// lock held and must not call back into the Device.
type Renderer interface {
	Render(p review.Prompt) review.Action
}

// Record describes one terminal signing outcome for the audit trail.
type Record struct {
	Time     time.Time
	Path     string
	Curve    keychain.Curve
	WithHash bool
	Outcome  review.Outcome
	Hash     []byte
	Screens  int
}

type options struct {
	log      *slog.Logger
	profile  review.Profile
	store    Settings
	render   Renderer
	notify   func()
	recorder func(Record)
}

type Option func(*options)

// WithLogger routes device logs.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithProfile selects the device class presented to the review flow.
func WithProfile(p review.Profile) Option {
	return func(o *options) { o.profile = p }
}

// WithSettings wires the persisted toggle store.
func WithSettings(s Settings) Option {
	return func(o *options) { o.store = s }
}

// WithRenderer installs a synchronous prompt responder.
func WithRenderer(r Renderer) Option {
	return func(o *options) { o.render = r }
}

// WithNotify registers a callback fired on its own goroutine whenever
// the prompt state may have changed.
func WithNotify(fn func()) Option {
	return func(o *options) { o.notify = fn }
}

// WithRecorder taps terminal signing outcomes.
func WithRecorder(fn func(Record)) Option {
	return func(o *options) { o.recorder = fn }
}

// Device is one signing device instance.
type Device struct {
	mu   sync.Mutex
	cond *sync.Cond
	exch sync.Mutex // one request on the wire at a time

	log      *slog.Logger
	keys     *keychain.Keychain
	profile  review.Profile
	store    Settings
	render   Renderer
	notifyFn func()
	recorder func(Record)

	busy bool
	sign *signSession
	key  *keyRequest
}

// New builds a device around the keychain.
func New(keys *keychain.Keychain, opts ...Option) *Device {
	o := &options{log: slog.Default(), profile: review.ProfileButton}
	for _, fn := range opts {
		fn(o)
	}
	d := &Device{
		log:      o.log.With("component", "wallet"),
		keys:     keys,
		profile:  o.profile,
		store:    o.store,
		render:   o.render,
		notifyFn: o.notify,
		recorder: o.recorder,
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// HandleAPDU decodes one raw frame and returns the encoded reply. It
// blocks while the review flow waits on the renderer.
func (d *Device) HandleAPDU(raw []byte) []byte {
	cmd, err := apdu.DecodeCommand(raw)
	if err != nil {
		d.log.Warn("bad frame", "err", err)
		return apdu.Response{Status: apdu.StatusWrongLength}.Encode()
	}
	return d.Exchange(cmd).Encode()
}

// Exchange runs one command against the device.
func (d *Device) Exchange(cmd apdu.Command) apdu.Response {
	d.exch.Lock()
	defer d.exch.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	d.busy = true
	defer func() {
		d.busy = false
		d.wake()
	}()

	rsp := d.dispatch(cmd)
	d.log.Debug("exchange",
		"ins", cmd.Ins, "p1", cmd.P1, "p2", cmd.P2,
		"payload", len(cmd.Payload), "status", rsp.Status)
	return rsp
}

func (d *Device) dispatch(cmd apdu.Command) apdu.Response {
	if cmd.Cla != apdu.ClaDefault {
		return apdu.Response{Status: apdu.StatusInvalidClass}
	}
	if d.sign != nil && cmd.Ins != d.sign.ins {
		if cmd.Ins == apdu.InsSign || cmd.Ins == apdu.InsSignWithHash {
			// switching the hash mode needs a fresh first packet
			if apdu.First(cmd.P1) {
				return d.signSetup(cmd)
			}
			d.reset()
			return apdu.Response{Status: apdu.StatusInvalidIns}
		}
		d.log.Warn("instruction interrupts sign session", "ins", cmd.Ins)
		d.reset()
		return apdu.Response{Status: apdu.StatusUnexpectedState}
	}

	switch cmd.Ins {
	case apdu.InsVersion:
		return apdu.Response{Data: common.Current.Bytes(), Status: apdu.StatusOK}
	case apdu.InsGit:
		return apdu.Response{Data: common.GitBytes(), Status: apdu.StatusOK}
	case apdu.InsGetPublicKey:
		return d.publicKey(cmd, false)
	case apdu.InsPromptPublicKey:
		return d.publicKey(cmd, true)
	case apdu.InsSign, apdu.InsSignWithHash:
		if apdu.First(cmd.P1) {
			return d.signSetup(cmd)
		}
		return d.signData(cmd)
	default:
		return apdu.Response{Status: apdu.StatusInvalidIns}
	}
}

// Prompt returns the screen awaiting a user action, nil when idle.
func (d *Device) Prompt() *review.Prompt {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.promptLocked()
}

func (d *Device) promptLocked() *review.Prompt {
	if d.key != nil {
		return d.key.prompt()
	}
	if d.sign != nil {
		return d.sign.sess.Prompt()
	}
	return nil
}

// Do applies a user action to the pending prompt.
func (d *Device) Do(a review.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.key != nil {
		return d.key.do(d, a)
	}
	if d.sign != nil {
		return d.apply(d.sign, a)
	}
	return review.ErrNoPrompt
}

// reset drops any request state and returns the device to idle.
func (d *Device) reset() {
	d.sign = nil
	d.key = nil
	d.wake()
}

// wake unblocks a parked transport and pokes the notifier.
func (d *Device) wake() {
	d.cond.Broadcast()
	if d.notifyFn != nil {
		go d.notifyFn()
	}
}
