package wallet

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/signer"
)

const (
	zeroBranch    = "0000000000000000000000000000000000000000000000000000000000000000"
	managerSource = "016e8874874d31c3fbd636e924d5a036a43ec8faa7"

	// transaction of 0.24 MVRK with a 0.05 MVRK fee calling do(CAR)
	goldenTransaction = "03" + zeroBranch +
		"6c" + managerSource + "d08603" + "08" + "36" + "2d" + "80d30e" +
		"01000000000000000000000000000000000000000000" +
		"ff" + "02" + "00000002" + "0316"

	goldenDigest = "f6d5fa0e79cac216e25104938ac873ca17ee9d7f06763719293b413cf2ed475c"

	// first operation tag is unknown
	badTagPayload = "03" + zeroBranch + "63" + "000000000000000000000000"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	raw, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex fixture: %v", err)
	}
	return raw
}

type fakeStore struct {
	expert bool
	blind  bool
}

func (f *fakeStore) SetExpertMode(on bool) error { f.expert = on; return nil }
func (f *fakeStore) SetBlindsign(on bool) error  { f.blind = on; return nil }
func (f *fakeStore) ExpertMode() bool            { return f.expert }
func (f *fakeStore) Blindsign() bool             { return f.blind }

// run drives a full signing exchange and returns the last reply.
func run(t *testing.T, d *Device, ins apdu.Ins, curve keychain.Curve, payload []byte) apdu.Response {
	t.Helper()
	cmds := apdu.SignPackets(ins, byte(curve), testPath.Encode(), payload)
	for _, cmd := range cmds[:len(cmds)-1] {
		rsp := d.Exchange(cmd)
		require.Equal(t, apdu.StatusOK, rsp.Status, "intermediate packet")
		require.Empty(t, rsp.Data)
	}
	return d.Exchange(cmds[len(cmds)-1])
}

func TestSignGoldenWithHash(t *testing.T) {
	var records []Record
	r := &script{fn: acceptAll}
	d := testDevice(t,
		WithRenderer(r),
		WithRecorder(func(rec Record) { records = append(records, rec) }),
	)

	rsp := run(t, d, apdu.InsSignWithHash, keychain.CurveEd25519, mustHex(t, goldenTransaction))
	require.Equal(t, apdu.StatusOK, rsp.Status)
	require.Len(t, rsp.Data, 32+64)

	digest, sig := rsp.Data[:32], rsp.Data[32:]
	assert.Equal(t, goldenDigest, hex.EncodeToString(digest))

	key, err := testKeychain().Derive(keychain.CurveEd25519, testPath)
	require.NoError(t, err)
	assert.True(t, signer.Verify(key, digest, sig))

	require.NotEmpty(t, r.seen)
	assert.Equal(t, "Review", r.seen[0].Title)
	assert.Equal(t, review.PromptConfirm, r.seen[len(r.seen)-1].Kind)
	titles := make([]string, 0, len(r.seen))
	for _, p := range r.seen {
		titles = append(titles, p.Title)
	}
	assert.Contains(t, titles, "Amount")
	assert.Contains(t, titles, "Fee")

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, review.OutcomeAccepted, rec.Outcome)
	assert.True(t, rec.WithHash)
	assert.Equal(t, keychain.CurveEd25519, rec.Curve)
	assert.Equal(t, "m/44'/1969'/0'/0'", rec.Path)
	assert.Equal(t, digest, rec.Hash)
	assert.Greater(t, rec.Screens, 0)
}

func TestSignAllCurves(t *testing.T) {
	payload := mustHex(t, goldenTransaction)
	digest := mustHex(t, goldenDigest)
	keys := testKeychain()

	for curve := keychain.CurveEd25519; curve <= keychain.CurveBLS12381; curve++ {
		t.Run(curve.String(), func(t *testing.T) {
			d := New(keys, WithRenderer(&script{fn: acceptAll}))

			rsp := run(t, d, apdu.InsSign, curve, payload)
			require.Equal(t, apdu.StatusOK, rsp.Status)
			require.NotEmpty(t, rsp.Data)

			key, err := keys.Derive(curve, testPath)
			require.NoError(t, err)
			assert.True(t, signer.Verify(key, digest, rsp.Data))
		})
	}
}

func TestSignRejected(t *testing.T) {
	var records []Record
	r := &script{fn: func(p review.Prompt) review.Action {
		if p.Kind == review.PromptConfirm {
			return review.ActionReject
		}
		return acceptAll(p)
	}}
	d := testDevice(t,
		WithRenderer(r),
		WithRecorder(func(rec Record) { records = append(records, rec) }),
	)

	rsp := run(t, d, apdu.InsSign, keychain.CurveEd25519, mustHex(t, goldenTransaction))
	assert.Equal(t, apdu.StatusReject, rsp.Status)
	assert.Empty(t, rsp.Data)

	require.Len(t, records, 1)
	assert.Equal(t, review.OutcomeRejected, records[0].Outcome)
	assert.False(t, records[0].WithHash)
}

func TestSignRejectedOnOpeningScreen(t *testing.T) {
	d := testDevice(t, WithRenderer(&script{fn: rejectAll}))

	rsp := run(t, d, apdu.InsSign, keychain.CurveEd25519, mustHex(t, goldenTransaction))
	assert.Equal(t, apdu.StatusReject, rsp.Status)
}

func TestSignParseErrorWhenBlindDisabled(t *testing.T) {
	var records []Record
	d := testDevice(t,
		WithRenderer(&script{fn: acceptAll}),
		WithSettings(&fakeStore{}),
		WithRecorder(func(rec Record) { records = append(records, rec) }),
	)

	rsp := run(t, d, apdu.InsSign, keychain.CurveEd25519, mustHex(t, badTagPayload))
	assert.Equal(t, apdu.StatusParseError, rsp.Status)

	require.Len(t, records, 1)
	assert.Equal(t, review.OutcomeParseError, records[0].Outcome)
}

func TestBlindSignFallback(t *testing.T) {
	payload := append(mustHex(t, badTagPayload), bytes.Repeat([]byte{0xee}, 400)...)
	r := &script{fn: acceptAll}
	d := testDevice(t, WithRenderer(r), WithSettings(&fakeStore{blind: true}))

	rsp := run(t, d, apdu.InsSignWithHash, keychain.CurveEd25519, payload)
	require.Equal(t, apdu.StatusOK, rsp.Status)
	require.Len(t, rsp.Data, 32+64)

	digest, sig := rsp.Data[:32], rsp.Data[32:]
	key, err := testKeychain().Derive(keychain.CurveEd25519, testPath)
	require.NoError(t, err)
	assert.True(t, signer.Verify(key, digest, sig))

	kinds := make(map[review.PromptKind]int)
	for _, p := range r.seen {
		kinds[p.Kind]++
	}
	assert.Greater(t, kinds[review.PromptRisk], 0)
	assert.Greater(t, kinds[review.PromptBlind], 0)
}

func TestSignStateMachine(t *testing.T) {
	d := testDevice(t, WithRenderer(&script{fn: acceptAll}))

	// data before any session
	rsp := d.Exchange(command(apdu.InsSign, apdu.IndexOther, 0, []byte{0x03}))
	assert.Equal(t, apdu.StatusUnexpectedSignState, rsp.Status)

	// mixing the hash mode mid session
	rsp = d.Exchange(command(apdu.InsSign, apdu.IndexFirst, 0, testPath.Encode()))
	require.Equal(t, apdu.StatusOK, rsp.Status)
	rsp = d.Exchange(command(apdu.InsSignWithHash, apdu.IndexOther, 0, []byte{0x03}))
	assert.Equal(t, apdu.StatusInvalidIns, rsp.Status)
	rsp = d.Exchange(command(apdu.InsSign, apdu.IndexOther, 0, []byte{0x03}))
	assert.Equal(t, apdu.StatusUnexpectedSignState, rsp.Status)

	// a fresh first packet under the other kind is a new session
	rsp = d.Exchange(command(apdu.InsSign, apdu.IndexFirst, 0, testPath.Encode()))
	require.Equal(t, apdu.StatusOK, rsp.Status)
	rsp = d.Exchange(command(apdu.InsSignWithHash, apdu.IndexFirst, 0, testPath.Encode()))
	require.Equal(t, apdu.StatusOK, rsp.Status)
}

func TestSignSetupErrors(t *testing.T) {
	d := testDevice(t, WithRenderer(&script{fn: acceptAll}))

	// path packet must be exactly the path
	rsp := d.Exchange(command(apdu.InsSign, apdu.IndexFirst, 0, append(testPath.Encode(), 0x00)))
	assert.Equal(t, apdu.StatusWrongLengthForIns, rsp.Status)

	// unknown curve code
	rsp = d.Exchange(command(apdu.InsSign, apdu.IndexFirst, 9, testPath.Encode()))
	assert.Equal(t, apdu.StatusWrongParam, rsp.Status)

	// empty first data packet has no payload tag
	rsp = d.Exchange(command(apdu.InsSign, apdu.IndexFirst, 0, testPath.Encode()))
	require.Equal(t, apdu.StatusOK, rsp.Status)
	rsp = d.Exchange(command(apdu.InsSign, apdu.IndexOther, 0, nil))
	assert.Equal(t, apdu.StatusParseError, rsp.Status)
}

func TestSignSessionRestart(t *testing.T) {
	d := testDevice(t, WithRenderer(&script{fn: acceptAll}))

	rsp := d.Exchange(command(apdu.InsSign, apdu.IndexFirst, 0, testPath.Encode()))
	require.Equal(t, apdu.StatusOK, rsp.Status)

	// a new first packet drops the stale session and starts over
	rsp = run(t, d, apdu.InsSign, keychain.CurveEd25519, mustHex(t, goldenTransaction))
	require.Equal(t, apdu.StatusOK, rsp.Status)
	assert.Len(t, rsp.Data, 64)
}
