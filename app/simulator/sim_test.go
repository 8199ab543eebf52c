package main

import (
	"bufio"
	"encoding/hex"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/logging"
	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/settings"
	"github.com/mavryk-network/mvsign/wallet"
)

var (
	testMnemonic = strings.TrimSpace(strings.Repeat("zebra ", 24))
	testPath     = keychain.Path{
		44 | 0x80000000, 1969 | 0x80000000, 0x80000000, 0x80000000,
	}
)

// approveAll stands in for the screen: it pages through every
// informational prompt and accepts the terminal ones.
type approveAll struct{}

func (approveAll) Render(p review.Prompt) review.Action {
	switch p.Kind {
	case review.PromptConfirm, review.PromptRisk, review.PromptEnableExpert, review.PromptHome:
		return review.ActionConfirm
	default:
		return review.ActionAdvance
	}
}

func waitPrompt(t *testing.T, dev *wallet.Device) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for dev.Prompt() == nil {
		if time.Now().After(deadline) {
			t.Fatal("no prompt appeared")
		}
		time.Sleep(time.Millisecond)
	}
}

func testStore(t *testing.T) *settings.Store {
	t.Helper()
	log := logging.New(logging.WithWriter(io.Discard))
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.toml"), settings.WithLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestServeAPDUSignsOverTCP(t *testing.T) {
	log := logging.New(logging.WithWriter(io.Discard))
	dev := wallet.New(keychain.New(testMnemonic, ""),
		wallet.WithLogger(log),
		wallet.WithSettings(testStore(t)),
		wallet.WithRenderer(approveAll{}),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go serveAPDU(ln, dev, log, nil)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	rd := bufio.NewScanner(conn)

	send := func(cmd apdu.Command) apdu.Response {
		t.Helper()
		raw, err := cmd.Encode()
		require.NoError(t, err)
		_, err = conn.Write(append([]byte(hex.EncodeToString(raw)), '\n'))
		require.NoError(t, err)
		require.True(t, rd.Scan(), "no reply line")
		reply, err := hex.DecodeString(rd.Text())
		require.NoError(t, err)
		rsp, err := apdu.DecodeResponse(reply)
		require.NoError(t, err)
		return rsp
	}

	rsp := send(apdu.Command{Cla: apdu.ClaDefault, Ins: apdu.InsVersion})
	require.Equal(t, apdu.StatusOK, rsp.Status)
	assert.Equal(t, []byte{0x00, 0x03, 0x00, 0x06}, rsp.Data)

	// a bare manager watermark decodes to nothing reviewable and blind
	// signing defaults off, so the sign session ends in a parse error
	for _, cmd := range apdu.SignPackets(apdu.InsSign, byte(keychain.CurveEd25519), testPath.Encode(), []byte{0x03}) {
		rsp = send(cmd)
	}
	assert.Equal(t, apdu.StatusParseError, rsp.Status)
}

func TestRunFrameRejectsGarbage(t *testing.T) {
	dev := wallet.New(keychain.New(testMnemonic, ""),
		wallet.WithLogger(logging.New(logging.WithWriter(io.Discard))),
		wallet.WithRenderer(approveAll{}),
	)

	rsp, err := apdu.DecodeResponse(runFrame("zz", dev, nil))
	require.NoError(t, err)
	assert.Equal(t, apdu.StatusWrongLength, rsp.Status)

	rsp, err = apdu.DecodeResponse(runFrame("8000", dev, nil))
	require.NoError(t, err)
	assert.Equal(t, apdu.StatusWrongLength, rsp.Status)
}

func TestModelTogglesIdleDevice(t *testing.T) {
	store := testStore(t)
	dev := wallet.New(keychain.New(testMnemonic, ""),
		wallet.WithLogger(logging.New(logging.WithWriter(io.Discard))),
		wallet.WithSettings(store),
	)

	m := newModel(dev, store, "127.0.0.1:0")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	m = next.(model)
	assert.True(t, store.ExpertMode())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'b'}})
	m = next.(model)
	assert.True(t, store.Blindsign())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'e'}})
	m = next.(model)
	assert.False(t, store.ExpertMode())

	// confirming with nothing pending reports instead of crashing
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	assert.Equal(t, review.ErrNoPrompt.Error(), m.last)
}

func TestModelQuits(t *testing.T) {
	m := newModel(nil, testStore(t), "127.0.0.1:0")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
	assert.Equal(t, "", next.(model).View())
}

func TestModelViewShowsPrompt(t *testing.T) {
	store := testStore(t)
	dev := wallet.New(keychain.New(testMnemonic, ""),
		wallet.WithLogger(logging.New(logging.WithWriter(io.Discard))),
		wallet.WithSettings(store),
	)
	m := newModel(dev, store, "127.0.0.1:7777")

	view := m.View()
	assert.Contains(t, view, "Mavryk")
	assert.Contains(t, view, "127.0.0.1:7777")

	// park a public key prompt, then the screen shows it
	done := make(chan apdu.Response, 1)
	go func() {
		done <- dev.Exchange(apdu.Command{
			Cla: apdu.ClaDefault, Ins: apdu.InsPromptPublicKey,
			P2: byte(keychain.CurveEd25519), Payload: testPath.Encode(),
		})
	}()
	waitPrompt(t, dev)

	view = m.View()
	assert.Contains(t, view, "Provide Key")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	for dev.Prompt() != nil {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m = next.(model)
	}
	rsp := <-done
	assert.Equal(t, apdu.StatusOK, rsp.Status)
}
