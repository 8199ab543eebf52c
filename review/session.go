package review

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/mavryk-network/mvsign/b58"
	"github.com/mavryk-network/mvsign/micheline"
	"github.com/mavryk-network/mvsign/operation"
)

// phase tracks how far the review advanced. It picks the decline
// mapping and gates the settings toggles.
type phase uint8

const (
	phaseReview  phase = iota + 1 // clear field review
	phaseDrain                    // consuming the rest without display
	phaseTooLong                  // too long warning and risk screens
	phaseError                    // decode failure warning and risk screens
	phaseBlind                    // blind review of the payload hash
	phaseSummary                  // aggregate screens
	phaseConfirm                  // final choice on the clear path
	phaseDone
)

type options struct {
	log       *slog.Logger
	sink      Settings
	expert    bool
	blindsign bool
}

// Option adjusts a session at construction.
type Option func(*options)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithSettings wires the store that makes toggle actions outlive the
// session.
func WithSettings(s Settings) Option {
	return func(o *options) { o.sink = s }
}

// WithExpertMode sets the expert mode flag the session starts from.
func WithExpertMode(on bool) Option {
	return func(o *options) { o.expert = on }
}

// WithBlindsign sets the blind signing flag the session starts from.
func WithBlindsign(on bool) Option {
	return func(o *options) { o.blindsign = on }
}

// Session owns the confirmation flow of one signing request. The
// transport side feeds payload bytes into the decode stream and calls
// Pump; the renderer side reads Prompt and applies actions with Do.
// Once Outcome reports a terminal result the session is spent.
//
// A session never signs anything itself. OutcomeAccepted is the
// caller's authorization to sign exactly the bytes that were streamed
// through the decoder, nothing more.
type Session struct {
	log     *slog.Logger
	profile Profile
	dec     *operation.Decoder
	strm    *micheline.Stream
	sink    Settings

	// session effective flags and the values last handed to the sink
	expert          bool
	blindsign       bool
	storedExpert    bool
	storedBlindsign bool

	phase   phase
	queue   []Prompt
	blocked bool // a prompt awaits the renderer, data must wait
	outcome Outcome
	decErr  error

	screens int  // clear screens shown, counted against the budget
	warned  bool // complex field warning or offer already shown
	skipped bool // drain entered through Skip, not the budget
	last    bool // final payload packet received
	hash    []byte
	tag     byte
}

// NewSession builds the review for one signing request. The decoder
// must be the one reading from strm; the session flushes its screen
// window and consults its field info and totals.
func NewSession(dec *operation.Decoder, strm *micheline.Stream, p Profile, opts ...Option) *Session {
	o := &options{log: slog.Default()}
	for _, fn := range opts {
		fn(o)
	}
	return &Session{
		log:             o.log.With("component", "review", "profile", p.Name),
		profile:         p,
		dec:             dec,
		strm:            strm,
		sink:            o.sink,
		expert:          o.expert,
		blindsign:       o.blindsign,
		storedExpert:    o.expert,
		storedBlindsign: o.blindsign,
		phase:           phaseReview,
		// the opening screen shows while data is still arriving, so it
		// does not block the transport
		queue: []Prompt{{Kind: PromptReview, Title: "Review", Body: "operation"}},
	}
}

// SetPayloadTag records the first payload byte. It names the payload
// on blind review and summary screens.
func (s *Session) SetPayloadTag(tag byte) { s.tag = tag }

// SetHash hands over the payload hash. It must be set before the last
// Pump: summary and blind screens display it.
func (s *Session) SetHash(h []byte) { s.hash = append(s.hash[:0], h...) }

// Prompt returns the screen awaiting an action, or nil while the
// session waits for payload data or has terminated.
func (s *Session) Prompt() *Prompt {
	if s.outcome != OutcomeNone || len(s.queue) == 0 {
		return nil
	}
	p := s.queue[0]
	return &p
}

// Outcome reports the terminal result, OutcomeNone while the review is
// still running.
func (s *Session) Outcome() Outcome { return s.outcome }

// Err returns the decode failure behind a parse error outcome, or nil.
func (s *Session) Err() error { return s.decErr }

// Screens reports how many clear review screens were shown so far.
func (s *Session) Screens() int { return s.screens }

// Pump resumes the flow after payload bytes were handed to the stream.
// last marks the final packet of the request.
//
// A nil return means a prompt is pending or the session terminated;
// the caller checks Prompt and Outcome. micheline.ErrNeedMoreInput
// means everything fed so far was consumed and the next packet may
// come. ErrBusy means data arrived while a prompt was pending, and
// ErrIncomplete that the payload ended mid value. Both of the latter
// are protocol violations for the transport to report.
func (s *Session) Pump(last bool) error {
	if last {
		s.last = true
	}
	if s.outcome != OutcomeNone {
		return nil
	}
	if s.blocked {
		return ErrBusy
	}
	return s.pump()
}

// pump advances the decoder until it blocks, fails or finishes.
func (s *Session) pump() error {
	for {
		err := s.dec.Run()
		if err == nil {
			return s.decodeDone()
		}
		if errors.Is(err, micheline.ErrWindowFull) {
			if s.emitScreen() {
				return nil
			}
			continue
		}
		if errors.Is(err, micheline.ErrNeedMoreInput) {
			if s.last {
				return ErrIncomplete
			}
			return err
		}
		return s.failDecode(err)
	}
}

// emitScreen turns the pending window into the next review step. It
// reports whether pumping must stop, either because a prompt now waits
// on the renderer or because the session terminated.
func (s *Session) emitScreen() bool {
	if s.phase == phaseDrain {
		s.strm.Flush()
		return false
	}
	if s.profile.ScreenBudget > 0 && s.screens >= s.profile.ScreenBudget {
		if !s.blindsign {
			s.decErr = ErrScreenBudget
			s.terminate(OutcomeParseError)
			return true
		}
		s.log.Debug("screen budget reached, summarizing", "screens", s.screens)
		s.phase = phaseDrain
		s.strm.Flush()
		return false
	}
	fi := s.dec.Field()
	if fi.Complex && !s.expert {
		if !s.profile.InlineExpert {
			// the value stays hidden; the only way out is rejection
			s.enqueue(
				Prompt{Kind: PromptExpertRequired, Title: fi.Name, Body: "Needs Expert mode"},
				Prompt{Kind: PromptHome, Title: "Home"},
			)
			return true
		}
		if !s.warned {
			s.warned = true
			s.enqueue(Prompt{Kind: PromptEnableExpert, Title: fi.Name, Body: "complex"})
		}
	} else if fi.Complex && !s.warned {
		s.warned = true
		s.screens++
		s.enqueue(Prompt{Kind: PromptExpertWarn, Title: "Next field requires", Body: "careful review"})
	}
	s.screens++
	s.enqueue(Prompt{Kind: PromptField, Title: fi.Name, Body: s.strm.FlushUpTo(s.profile.PageChars)})
	return true
}

// decodeDone handles the decoder reaching the end of the payload.
func (s *Session) decodeDone() error {
	if s.phase != phaseDrain && s.strm.Pending() > 0 {
		// the last field still has pages to show
		if s.emitScreen() {
			return nil
		}
	}
	if s.phase == phaseDrain {
		s.strm.Flush()
		if !s.last {
			return micheline.ErrNeedMoreInput
		}
		if s.skipped {
			s.enqueueSummary()
		} else {
			s.enqueueTooLong()
		}
		return nil
	}
	s.phase = phaseConfirm
	s.enqueue(Prompt{Kind: PromptConfirm, Title: "Accept", Body: "and send"})
	return nil
}

// failDecode handles a decoder error. The first failure routes to the
// warning screens or terminates; once the risk was acknowledged the
// remaining packets only feed the hash and the sticky decoder error
// lands here again until the last one arrives.
func (s *Session) failDecode(err error) error {
	if s.phase == phaseBlind {
		if !s.last {
			return micheline.ErrNeedMoreInput
		}
		s.enqueueBlind()
		return nil
	}
	if s.decErr == nil {
		s.decErr = err
	}
	s.log.Warn("decode failed", "err", err)
	if !s.blindsign {
		s.terminate(OutcomeParseError)
		return nil
	}
	var kind micheline.ErrorKind
	var de *micheline.DecodeError
	if errors.As(err, &de) {
		kind = de.Kind
	}
	s.phase = phaseError
	s.enqueue(
		Prompt{Kind: PromptWarning, Title: "The transaction", Body: "cannot be trusted."},
		Prompt{Kind: PromptWarning, Title: "This transaction", Body: "could not be decoded correctly."},
		Prompt{Kind: PromptWarning, Title: "It may not be safe", Body: "to sign this transaction."},
		Prompt{Kind: PromptWarning, Title: "Parsing error", Body: kind.Name()},
		Prompt{Kind: PromptWarning, Title: "Learn More:", Body: "bit.ly/ledger-tez"},
		Prompt{Kind: PromptRisk, Title: "Accept risk"},
	)
	return nil
}

func (s *Session) enqueueTooLong() {
	s.phase = phaseTooLong
	s.enqueue(
		Prompt{Kind: PromptWarning, Title: "The transaction", Body: "cannot be trusted."},
		Prompt{Kind: PromptWarning, Title: "Operation too long", Body: "Proceed to blindsign."},
		Prompt{Kind: PromptWarning, Title: "It may not be safe", Body: "to sign this transaction."},
		Prompt{Kind: PromptRisk, Title: "Accept risk"},
	)
}

func (s *Session) enqueueSummary() {
	s.phase = phaseSummary
	s.enqueue(
		Prompt{Kind: PromptSummary, Title: "Number of Tx", Body: strconv.Itoa(s.dec.NumOperations())},
		Prompt{Kind: PromptSummary, Title: "Total amount", Body: operation.FormatAmount(s.dec.TotalAmount())},
		Prompt{Kind: PromptSummary, Title: "Total fee", Body: operation.FormatAmount(s.dec.TotalFee())},
	)
	if s.profile.TypeSummary {
		s.enqueue(Prompt{Kind: PromptSummary, Title: "Type", Body: PayloadKind(s.tag)})
	}
	s.enqueue(paginate(PromptSummary, "Hash", b58.RawEncode(s.hash), s.profile.PageChars)...)
	s.enqueue(Prompt{Kind: PromptConfirm, Title: "Accept", Body: "and send"})
}

func (s *Session) enqueueBlind() {
	s.enqueue(Prompt{Kind: PromptBlind, Title: "Sign Hash", Body: PayloadKind(s.tag)})
	s.enqueue(paginate(PromptBlind, "Hash", b58.RawEncode(s.hash), s.profile.PageChars)...)
	s.enqueue(Prompt{Kind: PromptConfirm, Title: "Accept", Body: "and send"})
}

func (s *Session) enqueue(ps ...Prompt) {
	s.queue = append(s.queue, ps...)
	s.blocked = true
}

func (s *Session) terminate(o Outcome) {
	s.outcome = o
	s.phase = phaseDone
	s.queue = nil
	s.blocked = false
	s.log.Info("review finished", "outcome", o)
}

// Do applies a renderer action to the pending prompt. It returns
// micheline.ErrNeedMoreInput when the action unblocked the decoder and
// the next payload packet is due.
func (s *Session) Do(a Action) error {
	if s.outcome != OutcomeNone {
		return nil
	}
	switch a {
	case ActionToggleExpert:
		s.toggleExpert()
		return nil
	case ActionToggleBlindsign:
		s.toggleBlindsign()
		return nil
	case ActionSkip:
		return s.skip()
	}
	if len(s.queue) == 0 {
		return ErrNoPrompt
	}
	switch p := s.queue[0]; p.Kind {
	case PromptReview, PromptField, PromptWarning, PromptExpertWarn, PromptSummary, PromptBlind:
		switch a {
		case ActionAdvance, ActionConfirm:
			s.queue = s.queue[1:]
			return s.next()
		case ActionReject:
			s.decline()
		}
	case PromptEnableExpert:
		switch a {
		case ActionConfirm:
			s.setExpert(true)
			s.queue = s.queue[1:]
			return s.next()
		case ActionAdvance:
			s.queue = s.queue[1:]
			return s.next()
		case ActionReject:
			s.decline()
		}
	case PromptExpertRequired:
		switch a {
		case ActionAdvance, ActionConfirm:
			s.queue = s.queue[1:]
		case ActionReject:
			s.terminate(OutcomeRejected)
		}
	case PromptHome:
		// the home screen only leads back out of the request
		switch a {
		case ActionConfirm, ActionReject:
			s.terminate(OutcomeRejected)
		}
	case PromptRisk:
		switch a {
		case ActionConfirm:
			return s.acceptRisk()
		case ActionReject:
			s.decline()
		}
	case PromptConfirm:
		switch a {
		case ActionConfirm:
			if !s.last {
				return ErrIncomplete
			}
			s.terminate(OutcomeAccepted)
		case ActionReject:
			s.decline()
		}
	}
	return nil
}

// next resumes decoding once the renderer consumed every queued
// prompt. Only the field review phases pull more work; every other
// phase keeps a choice prompt at the end of its queue.
func (s *Session) next() error {
	if len(s.queue) > 0 || s.outcome != OutcomeNone {
		return nil
	}
	switch s.phase {
	case phaseReview, phaseDrain:
		s.blocked = false
		return s.pump()
	}
	return nil
}

// decline maps a rejection to the outcome of the current phase.
// Refusing a risk warning is a parse error, not a plain rejection:
// the payload was never reviewable in the first place.
func (s *Session) decline() {
	switch s.phase {
	case phaseTooLong, phaseError:
		s.terminate(OutcomeParseError)
	case phaseBlind:
		s.terminate(s.profile.BlindDecline)
	default:
		s.terminate(OutcomeRejected)
	}
}

// acceptRisk moves past the pending risk prompt into the fallback the
// current phase was warning about.
func (s *Session) acceptRisk() error {
	s.queue = s.queue[1:]
	switch s.phase {
	case phaseTooLong:
		s.enqueueSummary()
	case phaseError:
		s.phase = phaseBlind
		if !s.last {
			// remaining packets only feed the hash from here on
			s.blocked = false
			return micheline.ErrNeedMoreInput
		}
		s.enqueueBlind()
	}
	return nil
}

// skip jumps from field review straight to the summary. It is a no-op
// on profiles without the affordance, with blind signing disabled or
// outside field review.
func (s *Session) skip() error {
	if !s.profile.Skip || !s.blindsign || s.phase != phaseReview {
		return nil
	}
	s.log.Debug("field review skipped")
	s.skipped = true
	s.phase = phaseDrain
	s.queue = nil
	s.blocked = false
	s.strm.Flush()
	return s.pump()
}

// Toggles always reach the settings store but change the running
// session only until the summary: past that point the review was
// already decided under the old values.
func (s *Session) toggleExpert() {
	s.storedExpert = !s.storedExpert
	if s.phase != phaseSummary && s.phase != phaseDone {
		s.expert = s.storedExpert
	}
	s.persistExpert(s.storedExpert)
}

func (s *Session) toggleBlindsign() {
	s.storedBlindsign = !s.storedBlindsign
	if s.phase != phaseSummary && s.phase != phaseDone {
		s.blindsign = s.storedBlindsign
	}
	if s.sink == nil {
		return
	}
	if err := s.sink.SetBlindsign(s.storedBlindsign); err != nil {
		s.log.Warn("blind signing setting not stored", "err", err)
	}
}

func (s *Session) setExpert(on bool) {
	s.expert = on
	s.storedExpert = on
	s.persistExpert(on)
}

func (s *Session) persistExpert(on bool) {
	if s.sink == nil {
		return
	}
	if err := s.sink.SetExpertMode(on); err != nil {
		s.log.Warn("expert mode setting not stored", "err", err)
	}
}
