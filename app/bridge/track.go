package main

import (
	"time"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/wallet"
)

// signTracker rebuilds audit records for a device the bridge cannot
// observe from the inside. It watches the signing packet stream and
// synthesizes one record per terminal status. Screens stay zero, the
// host never sees them.
type signTracker struct {
	record func(wallet.Record)

	live  bool
	ins   apdu.Ins
	path  string
	curve keychain.Curve
}

func newSignTracker(record func(wallet.Record)) *signTracker {
	return &signTracker{record: record}
}

// Observe feeds one completed exchange to the tracker. Calls must be
// serialized in wire order.
func (t *signTracker) Observe(cmd apdu.Command, rsp apdu.Response) {
	if cmd.Ins != apdu.InsSign && cmd.Ins != apdu.InsSignWithHash {
		t.live = false
		return
	}

	if apdu.First(cmd.P1) {
		t.live = false
		if rsp.Status != apdu.StatusOK {
			return
		}
		path, err := keychain.ParsePath(cmd.Payload)
		if err != nil {
			return
		}
		curve, err := keychain.CurveFromCode(cmd.P2)
		if err != nil {
			return
		}
		t.live, t.ins, t.path, t.curve = true, cmd.Ins, path.String(), curve
		return
	}

	if !t.live || cmd.Ins != t.ins {
		t.live = false
		return
	}

	outcome, terminal := terminalOutcome(rsp.Status, apdu.Last(cmd.P1))
	if !terminal {
		return
	}
	t.live = false

	rec := wallet.Record{
		Time:     time.Now().UTC(),
		Path:     t.path,
		Curve:    t.curve,
		WithHash: t.ins == apdu.InsSignWithHash,
		Outcome:  outcome,
	}
	if outcome == review.OutcomeAccepted && rec.WithHash && len(rsp.Data) > 32 {
		rec.Hash = rsp.Data[:32]
	}
	t.record(rec)
}

// terminalOutcome maps a status word on a data packet to a review
// outcome. A rejection or parse error ends the session on any packet,
// plain OK only closes it on the last one.
func terminalOutcome(s apdu.Status, last bool) (review.Outcome, bool) {
	switch s {
	case apdu.StatusOK:
		if !last {
			return review.OutcomeNone, false
		}
		return review.OutcomeAccepted, true
	case apdu.StatusReject:
		return review.OutcomeRejected, true
	case apdu.StatusParseError:
		return review.OutcomeParseError, true
	default:
		return review.OutcomeNone, false
	}
}
