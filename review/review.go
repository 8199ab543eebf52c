// Package review drives the user confirmation flow of one signing
// request.
//
// A Session sits between two callers. The transport side feeds payload
// chunks to the shared decode stream and calls Pump, which advances the
// decoder until it produces a screen, needs more bytes or finishes. The
// renderer side reads Prompt and answers it with Do. At most one of the
// two sides is unblocked at any time, mirroring the lock step exchange
// on the wire: while a prompt is pending the transport must not deliver
// data, and while the decoder is hungry the renderer has nothing to
// show.
//
// The flow follows the decode outcome and the session settings. A
// payload that decodes cleanly within the profile screen budget is
// shown field by field. A payload that exhausts the budget is consumed
// silently and condensed into summary screens behind a risk warning. A
// payload that fails to decode can only be signed blind, again behind a
// risk warning. Both fallbacks require blind signing to be enabled:
// with the setting off the session terminates with OutcomeParseError
// and no signature is produced.
package review

import (
	"errors"

	"github.com/samber/lo"
)

// Action is one renderer input applied to the pending prompt.
type Action uint8

const (
	// ActionAdvance moves past an informational screen.
	ActionAdvance Action = iota + 1
	// ActionConfirm answers the pending prompt affirmatively.
	ActionConfirm
	// ActionReject declines the request.
	ActionReject
	// ActionSkip jumps from field review to the summary screens.
	// Profiles without the Skip affordance ignore it, as does any
	// session with blind signing disabled.
	ActionSkip
	// ActionToggleExpert flips the expert mode setting.
	ActionToggleExpert
	// ActionToggleBlindsign flips the blind signing setting.
	ActionToggleBlindsign
)

// Outcome is the terminal result of a review.
type Outcome uint8

const (
	// OutcomeNone means the review is still running.
	OutcomeNone Outcome = iota
	// OutcomeAccepted authorizes signing the reviewed bytes.
	OutcomeAccepted
	// OutcomeRejected records that the user declined.
	OutcomeRejected
	// OutcomeParseError records a payload that could not be reviewed:
	// undecodable or oversized with no blind signing fallback, or a
	// risk warning the user refused to acknowledge.
	OutcomeParseError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeParseError:
		return "parse error"
	default:
		return "none"
	}
}

// PromptKind tells the renderer what a screen is for and which actions
// make sense on it.
type PromptKind uint8

const (
	// PromptReview opens a flow.
	PromptReview PromptKind = iota + 1
	// PromptField shows one page of a decoded field.
	PromptField
	// PromptWarning is an informational risk screen.
	PromptWarning
	// PromptExpertWarn announces that a complex field follows.
	PromptExpertWarn
	// PromptExpertRequired tells the user the field needs expert mode.
	PromptExpertRequired
	// PromptEnableExpert offers to switch expert mode on in flow.
	PromptEnableExpert
	// PromptHome sends the user back after an expert refusal. The only
	// way out is rejection.
	PromptHome
	// PromptRisk asks for an explicit risk acknowledgment.
	PromptRisk
	// PromptSummary shows one aggregate line of the request.
	PromptSummary
	// PromptBlind shows the payload type or hash before blind signing.
	PromptBlind
	// PromptQR offers an address as a QR code.
	PromptQR
	// PromptConfirm is the final accept or reject choice.
	PromptConfirm
)

// Prompt is one screen awaiting a renderer action.
type Prompt struct {
	Kind  PromptKind
	Title string
	Body  string
}

var (
	// ErrNoPrompt is returned by Do when no prompt is pending.
	ErrNoPrompt = errors.New("review: no prompt pending")

	// ErrBusy is returned by Pump when the session is blocked on a
	// renderer action and cannot take payload data.
	ErrBusy = errors.New("review: awaiting user input")

	// ErrIncomplete is returned when the flow needs payload bytes that
	// were never delivered, or when an accept arrives before the last
	// packet.
	ErrIncomplete = errors.New("review: payload incomplete")

	// ErrScreenBudget marks a clear review that ran out of screens
	// with blind signing unavailable.
	ErrScreenBudget = errors.New("review: screen budget exhausted")
)

// Settings receives toggle changes so they outlive the session.
type Settings interface {
	SetExpertMode(on bool) error
	SetBlindsign(on bool) error
}

// PayloadKind names a signing payload by its leading byte.
func PayloadKind(tag byte) string {
	switch tag {
	case 0x01, 0x11:
		return "Block proposal"
	case 0x02, 0x12, 0x13:
		return "Consensus operation"
	case 0x03:
		return "Manager operation"
	case 0x05:
		return "Micheline expression"
	default:
		return "Unknown type"
	}
}

// paginate cuts body into width sized screens sharing one title. An
// empty body still yields one screen.
func paginate(kind PromptKind, title, body string, width int) []Prompt {
	if width <= 0 {
		return []Prompt{{Kind: kind, Title: title, Body: body}}
	}
	return lo.Map(lo.ChunkString(body, width), func(page string, _ int) Prompt {
		return Prompt{Kind: kind, Title: title, Body: page}
	})
}
