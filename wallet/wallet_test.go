package wallet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/common"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/review"
)

var (
	testMnemonic = strings.TrimSpace(strings.Repeat("zebra ", 24))
	testPath     = keychain.Path{
		44 | 0x80000000, 1969 | 0x80000000, 0x80000000, 0x80000000,
	}
)

func testKeychain() *keychain.Keychain {
	return keychain.New(testMnemonic, "")
}

func testDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	return New(testKeychain(), opts...)
}

// script renders prompts with fn and keeps what was shown.
type script struct {
	fn   func(review.Prompt) review.Action
	seen []review.Prompt
}

func (s *script) Render(p review.Prompt) review.Action {
	s.seen = append(s.seen, p)
	return s.fn(p)
}

func acceptAll(p review.Prompt) review.Action {
	switch p.Kind {
	case review.PromptRisk, review.PromptConfirm, review.PromptEnableExpert, review.PromptHome:
		return review.ActionConfirm
	default:
		return review.ActionAdvance
	}
}

func rejectAll(review.Prompt) review.Action { return review.ActionReject }

func command(ins apdu.Ins, p1, p2 byte, payload []byte) apdu.Command {
	return apdu.Command{Cla: apdu.ClaDefault, Ins: ins, P1: p1, P2: p2, Payload: payload}
}

func TestVersion(t *testing.T) {
	d := testDevice(t)

	raw := d.HandleAPDU([]byte{0x80, 0x00, 0x00, 0x00, 0x00})
	require.Equal(t, []byte{0x00, 0x03, 0x00, 0x06, 0x90, 0x00}, raw)
}

func TestGit(t *testing.T) {
	d := testDevice(t)

	rsp := d.Exchange(command(apdu.InsGit, 0, 0, nil))
	require.Equal(t, apdu.StatusOK, rsp.Status)
	require.NotEmpty(t, rsp.Data)
	assert.Equal(t, byte(0x00), rsp.Data[len(rsp.Data)-1])
	assert.Equal(t, common.GitCommit, string(rsp.Data[:len(rsp.Data)-1]))
}

func TestBadFrame(t *testing.T) {
	d := testDevice(t)

	raw := d.HandleAPDU([]byte{0x80, 0x00})
	assert.Equal(t, []byte{0x6c, 0x00}, raw)

	rsp := d.Exchange(apdu.Command{Cla: 0xe0, Ins: apdu.InsVersion})
	assert.Equal(t, apdu.StatusInvalidClass, rsp.Status)
}

func TestUnsupportedInstructions(t *testing.T) {
	d := testDevice(t)

	unsupported := []apdu.Ins{
		apdu.InsAuthorizeBaking,
		apdu.InsSignUnsafe,
		apdu.InsReset,
		apdu.InsQueryAuthKey,
		apdu.InsQueryMainHWM,
		apdu.InsSetup,
		apdu.InsQueryAllHWM,
		apdu.InsDeauthorize,
		apdu.InsQueryAuthKeyCurve,
		apdu.InsHMAC,
		apdu.Ins(0x42),
	}
	for _, ins := range unsupported {
		rsp := d.Exchange(command(ins, 0, 0, nil))
		assert.Equal(t, apdu.StatusInvalidIns, rsp.Status, "ins %s", ins)
	}
}

func TestGetPublicKey(t *testing.T) {
	keys := testKeychain()
	d := New(keys)

	for curve := keychain.CurveEd25519; curve <= keychain.CurveBLS12381; curve++ {
		key, err := keys.Derive(curve, testPath)
		require.NoError(t, err)
		want := key.PublicBytes()

		rsp := d.Exchange(command(apdu.InsGetPublicKey, 0, byte(curve), testPath.Encode()))
		require.Equal(t, apdu.StatusOK, rsp.Status, "curve %s", curve)
		require.NotEmpty(t, rsp.Data)
		assert.Equal(t, byte(len(want)), rsp.Data[0], "curve %s", curve)
		assert.Equal(t, want, rsp.Data[1:], "curve %s", curve)
	}
}

func TestGetPublicKeyErrors(t *testing.T) {
	d := testDevice(t)

	rsp := d.Exchange(command(apdu.InsGetPublicKey, 0, 9, testPath.Encode()))
	assert.Equal(t, apdu.StatusWrongParam, rsp.Status)

	trailing := append(testPath.Encode(), 0x00)
	rsp = d.Exchange(command(apdu.InsGetPublicKey, 0, 0, trailing))
	assert.Equal(t, apdu.StatusWrongLengthForIns, rsp.Status)

	deep := make(keychain.Path, 11)
	rsp = d.Exchange(command(apdu.InsGetPublicKey, 0, 0, deep.Encode()))
	assert.Equal(t, apdu.StatusWrongLengthForIns, rsp.Status)

	rsp = d.Exchange(command(apdu.InsGetPublicKey, 0, 0, nil))
	assert.Equal(t, apdu.StatusWrongLengthForIns, rsp.Status)
}

func TestPromptPublicKeyApprove(t *testing.T) {
	keys := testKeychain()
	r := &script{fn: acceptAll}
	d := New(keys, WithRenderer(r))

	key, err := keys.Derive(keychain.CurveEd25519, testPath)
	require.NoError(t, err)

	rsp := d.Exchange(command(apdu.InsPromptPublicKey, 0, 0, testPath.Encode()))
	require.Equal(t, apdu.StatusOK, rsp.Status)
	assert.Equal(t, key.PublicBytes(), rsp.Data[1:])

	require.NotEmpty(t, r.seen)
	assert.Equal(t, "Provide Key", r.seen[0].Title)
	assert.Equal(t, review.PromptConfirm, r.seen[len(r.seen)-1].Kind)

	var addr strings.Builder
	for _, p := range r.seen {
		if p.Title == "Public Key Hash" {
			addr.WriteString(p.Body)
		}
	}
	assert.Equal(t, key.Address(), addr.String())
}

func TestPromptPublicKeyReject(t *testing.T) {
	d := testDevice(t, WithRenderer(&script{fn: rejectAll}))

	rsp := d.Exchange(command(apdu.InsPromptPublicKey, 0, 0, testPath.Encode()))
	assert.Equal(t, apdu.StatusReject, rsp.Status)
	assert.Empty(t, rsp.Data)
}

func TestPromptPublicKeyQR(t *testing.T) {
	keys := testKeychain()
	skipped := false
	r := &script{fn: func(p review.Prompt) review.Action {
		if p.Kind == review.PromptField && !skipped {
			skipped = true
			return review.ActionSkip
		}
		return acceptAll(p)
	}}
	d := New(keys, WithProfile(review.ProfileTouch), WithRenderer(r))

	rsp := d.Exchange(command(apdu.InsPromptPublicKey, 0, 0, testPath.Encode()))
	require.Equal(t, apdu.StatusOK, rsp.Status)

	key, err := keys.Derive(keychain.CurveEd25519, testPath)
	require.NoError(t, err)

	var qr *review.Prompt
	for i := range r.seen {
		if r.seen[i].Kind == review.PromptQR {
			qr = &r.seen[i]
		}
	}
	require.NotNil(t, qr)
	assert.Equal(t, key.Address(), qr.Body)
}

func TestInstructionDuringSignSession(t *testing.T) {
	d := testDevice(t, WithRenderer(&script{fn: acceptAll}))

	rsp := d.Exchange(command(apdu.InsSign, apdu.IndexFirst, 0, testPath.Encode()))
	require.Equal(t, apdu.StatusOK, rsp.Status)

	rsp = d.Exchange(command(apdu.InsVersion, 0, 0, nil))
	assert.Equal(t, apdu.StatusUnexpectedState, rsp.Status)

	// the interruption dropped the session
	rsp = d.Exchange(command(apdu.InsSign, apdu.IndexOther, 0, []byte{0x03}))
	assert.Equal(t, apdu.StatusUnexpectedSignState, rsp.Status)
}
