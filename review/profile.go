package review

// Profile fixes how one device class presents the canonical review
// flow. The state machine is shared; a profile only changes pagination
// and which presentation steps exist around it.
type Profile struct {
	// Name tags log lines.
	Name string

	// PageChars is the number of value characters one screen holds.
	PageChars int

	// ScreenBudget caps the number of clear review screens, zero
	// meaning unbounded. Hitting the cap with blind signing enabled
	// escalates the review to the summary flow; with blind signing
	// disabled it ends the session with OutcomeParseError.
	ScreenBudget int

	// Skip allows jumping from field review straight to the summary.
	Skip bool

	// InlineExpert offers enabling expert mode when a complex field
	// comes up instead of turning the request away.
	InlineExpert bool

	// QR adds a QR code screen to address verification.
	QR bool

	// TypeSummary adds the payload type line to the summary screens.
	TypeSummary bool

	// BlindDecline is the outcome of declining inside blind review.
	BlindDecline Outcome
}

// ProfileButton models the two button device class: small paginated
// screens, a finite review budget and no way to opt into expert mode
// mid flow.
var ProfileButton = Profile{
	Name:         "button",
	PageChars:    34,
	ScreenBudget: 12,
	BlindDecline: OutcomeRejected,
}

// ProfileTouch models the touchscreen device class: large pages, no
// screen budget, an explicit skip to summary and in flow expert mode
// enabling. Declining a blind review here restates the risk refusal,
// so it maps to OutcomeParseError.
var ProfileTouch = Profile{
	Name:         "touch",
	PageChars:    200,
	Skip:         true,
	InlineExpert: true,
	QR:           true,
	TypeSummary:  true,
	BlindDecline: OutcomeParseError,
}
