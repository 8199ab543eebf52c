package review

import (
	"strings"
	"testing"
)

func TestAddressSessionButton(t *testing.T) {
	addr := strings.Repeat("m", 40)
	s := NewAddressSession(addr, ProfileButton)

	want := []Prompt{{Kind: PromptReview, Title: "Verify", Body: "address"}}
	want = append(want, paginate(PromptField, "Address", addr, ProfileButton.PageChars)...)
	want = append(want, Prompt{Kind: PromptConfirm, Title: "Approve"})

	var seen []Prompt
	for pr := s.Prompt(); pr != nil; pr = s.Prompt() {
		seen = append(seen, *pr)
		a := ActionAdvance
		if pr.Kind == PromptConfirm {
			a = ActionConfirm
		}
		if err := s.Do(a); err != nil {
			t.Fatalf("action on %q: %v", pr.Title, err)
		}
	}
	if s.Outcome() != OutcomeAccepted {
		t.Fatalf("outcome = %v, want accepted", s.Outcome())
	}
	wantPrompts(t, seen, want)
	if countKind(seen, PromptQR) != 0 {
		t.Fatal("QR screen offered without the affordance")
	}
}

func TestAddressSessionTouchQR(t *testing.T) {
	addr := strings.Repeat("m", 40)
	s := NewAddressSession(addr, ProfileTouch)

	var seen []Prompt
	for pr := s.Prompt(); pr != nil; pr = s.Prompt() {
		seen = append(seen, *pr)
		a := ActionAdvance
		if pr.Kind == PromptConfirm {
			a = ActionConfirm
		}
		if err := s.Do(a); err != nil {
			t.Fatalf("action on %q: %v", pr.Title, err)
		}
	}
	if s.Outcome() != OutcomeAccepted {
		t.Fatalf("outcome = %v, want accepted", s.Outcome())
	}
	wantPrompts(t, seen, []Prompt{
		{Kind: PromptReview, Title: "Verify", Body: "address"},
		{Kind: PromptField, Title: "Address", Body: addr},
		{Kind: PromptQR, Title: "Address", Body: addr},
		{Kind: PromptConfirm, Title: "Approve"},
	})
}

func TestAddressSessionReject(t *testing.T) {
	s := NewAddressSession("mv1fake", ProfileButton)
	if err := s.Do(ActionAdvance); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := s.Do(ActionReject); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if s.Outcome() != OutcomeRejected {
		t.Fatalf("outcome = %v, want rejected", s.Outcome())
	}
	if s.Prompt() != nil {
		t.Fatal("terminal session still offers a prompt")
	}
	if err := s.Do(ActionConfirm); err != nil {
		t.Fatalf("action after the end: %v", err)
	}
	if s.Outcome() != OutcomeRejected {
		t.Fatal("outcome changed after the end")
	}
}
