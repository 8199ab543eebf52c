package wallet

import (
	"bytes"
	"errors"
	"hash"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/micheline"
	"github.com/mavryk-network/mvsign/operation"
	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/signer"
)

// signSession is one in-flight signing request. The running hash
// covers the raw payload bytes in arrival order; the path packet is
// not part of it.
type signSession struct {
	ins     apdu.Ins
	curve   keychain.Curve
	path    keychain.Path
	hasher  hash.Hash
	written int
	tag     byte
	digest  []byte

	strm *micheline.Stream
	dec  *operation.Decoder
	sess *review.Session

	// the renderer unblocked the decoder, the parked transport owes
	// the host an OK
	dataDue bool
}

// signSetup opens a session from the first packet: curve in P2, the
// payload is exactly the derivation path. Any stale session is
// dropped.
func (d *Device) signSetup(cmd apdu.Command) apdu.Response {
	d.sign = nil
	d.key = nil

	curve, err := keychain.CurveFromCode(cmd.P2)
	if err != nil {
		return apdu.Response{Status: apdu.StatusWrongParam}
	}
	path, err := keychain.ParsePath(cmd.Payload)
	if err != nil {
		return apdu.Response{Status: apdu.StatusWrongLengthForIns}
	}
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return apdu.Response{Status: apdu.StatusUnknownCxErr}
	}

	strm := micheline.NewStream(micheline.DEFAULT_WINDOW_SIZE)
	dec := operation.NewDecoder(strm)
	opts := []review.Option{review.WithLogger(d.log)}
	if d.store != nil {
		opts = append(opts,
			review.WithSettings(d.store),
			review.WithExpertMode(d.store.ExpertMode()),
			review.WithBlindsign(d.store.Blindsign()),
		)
	}
	d.sign = &signSession{
		ins:    cmd.Ins,
		curve:  curve,
		path:   path,
		hasher: hasher,
		strm:   strm,
		dec:    dec,
		sess:   review.NewSession(dec, strm, d.profile, opts...),
	}
	d.log.Info("sign session opened",
		"curve", curve, "path", path.String(),
		"withHash", cmd.Ins == apdu.InsSignWithHash)
	d.wake()
	return apdu.Response{Status: apdu.StatusOK}
}

// signData feeds one payload packet into the running hash and the
// review flow. The reply is deferred while screens pend.
func (d *Device) signData(cmd apdu.Command) apdu.Response {
	s := d.sign
	if s == nil {
		return apdu.Response{Status: apdu.StatusUnexpectedSignState}
	}
	last := apdu.Last(cmd.P1)

	s.hasher.Write(cmd.Payload)
	s.written += len(cmd.Payload)

	if s.tag == 0 {
		if len(cmd.Payload) == 0 {
			d.reset()
			return apdu.Response{Status: apdu.StatusParseError}
		}
		s.tag = cmd.Payload[0]
		s.sess.SetPayloadTag(s.tag)
	}

	s.strm.Refill(cmd.Payload)
	if last {
		s.dec.SetSize(s.written)
		s.digest = s.hasher.Sum(nil)
		s.sess.SetHash(s.digest)
	}

	err := s.sess.Pump(last)
	switch {
	case err == nil:
		return d.await(s)
	case errors.Is(err, micheline.ErrNeedMoreInput):
		return apdu.Response{Status: apdu.StatusOK}
	default:
		// data while blocked or a payload that ended mid value
		d.reset()
		return apdu.Response{Status: apdu.StatusUnexpectedSignState}
	}
}

// await parks the transport while the renderer pages through the
// queued screens. It returns the deferred reply: OK when the decoder
// wants the next packet, the signature or terminal status otherwise.
func (d *Device) await(s *signSession) apdu.Response {
	for {
		if o := s.sess.Outcome(); o != review.OutcomeNone {
			return d.conclude(s, o)
		}
		if s.dataDue {
			s.dataDue = false
			return apdu.Response{Status: apdu.StatusOK}
		}
		p := s.sess.Prompt()
		if p == nil {
			d.reset()
			return apdu.Response{Status: apdu.StatusUnexpectedState}
		}
		if d.render != nil {
			if err := d.apply(s, d.render.Render(*p)); err != nil {
				d.reset()
				return apdu.Response{Status: apdu.StatusUnexpectedSignState}
			}
			continue
		}
		d.wake()
		d.cond.Wait()
	}
}

// apply forwards one renderer action to the session and translates
// its data requests into the deferred transport reply.
func (d *Device) apply(s *signSession, a review.Action) error {
	err := s.sess.Do(a)
	if errors.Is(err, micheline.ErrNeedMoreInput) {
		s.dataDue = true
		err = nil
	}
	d.wake()
	return err
}

// conclude turns the review outcome into the final reply and returns
// the device to idle.
func (d *Device) conclude(s *signSession, o review.Outcome) apdu.Response {
	defer d.reset()
	d.record(s, o)

	switch o {
	case review.OutcomeAccepted:
		key, err := d.keys.Derive(s.curve, s.path)
		if err != nil {
			d.log.Error("key derivation failed", "curve", s.curve, "err", err)
			return apdu.Response{Status: apdu.StatusUnknownCxErr}
		}
		sig, err := signer.Sign(key, s.digest)
		if err != nil {
			d.log.Error("signing failed", "curve", s.curve, "err", err)
			return apdu.Response{Status: apdu.StatusUnknownCxErr}
		}
		data := sig
		if s.ins == apdu.InsSignWithHash {
			data = append(bytes.Clone(s.digest), sig...)
		}
		d.log.Info("payload signed", "curve", s.curve, "bytes", s.written)
		return apdu.Response{Data: data, Status: apdu.StatusOK}
	case review.OutcomeRejected:
		return apdu.Response{Status: apdu.StatusReject}
	default:
		if err := s.sess.Err(); err != nil {
			d.log.Warn("payload not reviewable", "err", err)
		}
		return apdu.Response{Status: apdu.StatusParseError}
	}
}

func (d *Device) record(s *signSession, o review.Outcome) {
	if d.recorder == nil {
		return
	}
	d.recorder(Record{
		Time:     time.Now(),
		Path:     s.path.String(),
		Curve:    s.curve,
		WithHash: s.ins == apdu.InsSignWithHash,
		Outcome:  o,
		Hash:     s.hasher.Sum(nil),
		Screens:  s.sess.Screens(),
	})
}
