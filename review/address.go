package review

// AddressSession drives the short verification flow behind the public
// key prompt: the address page by page, then a single approve or
// reject choice. Profiles with the QR affordance insert a QR screen
// before the choice. There is no payload to decode, so the renderer is
// the only caller.
type AddressSession struct {
	queue   []Prompt
	outcome Outcome
}

// NewAddressSession builds the verification flow for one address.
func NewAddressSession(address string, p Profile) *AddressSession {
	s := &AddressSession{}
	s.queue = append(s.queue, Prompt{Kind: PromptReview, Title: "Verify", Body: "address"})
	s.queue = append(s.queue, paginate(PromptField, "Address", address, p.PageChars)...)
	if p.QR {
		s.queue = append(s.queue, Prompt{Kind: PromptQR, Title: "Address", Body: address})
	}
	s.queue = append(s.queue, Prompt{Kind: PromptConfirm, Title: "Approve"})
	return s
}

// Prompt returns the screen awaiting an action, or nil once the flow
// terminated.
func (s *AddressSession) Prompt() *Prompt {
	if s.outcome != OutcomeNone || len(s.queue) == 0 {
		return nil
	}
	p := s.queue[0]
	return &p
}

// Outcome reports the terminal result, OutcomeNone while the flow is
// still running.
func (s *AddressSession) Outcome() Outcome { return s.outcome }

// Do applies a renderer action to the pending prompt.
func (s *AddressSession) Do(a Action) error {
	if s.outcome != OutcomeNone {
		return nil
	}
	if len(s.queue) == 0 {
		return ErrNoPrompt
	}
	if s.queue[0].Kind == PromptConfirm {
		switch a {
		case ActionConfirm:
			s.outcome = OutcomeAccepted
			s.queue = nil
		case ActionReject:
			s.outcome = OutcomeRejected
			s.queue = nil
		}
		return nil
	}
	switch a {
	case ActionAdvance, ActionConfirm:
		s.queue = s.queue[1:]
	case ActionReject:
		s.outcome = OutcomeRejected
		s.queue = nil
	}
	return nil
}
