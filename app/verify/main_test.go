package main

import (
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavryk-network/mvsign/b58"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/logging"
	"github.com/mavryk-network/mvsign/wallet"
)

var testMnemonic = strings.TrimSpace(strings.Repeat("zebra ", 24))

func TestVerifyCurves(t *testing.T) {
	keys := keychain.New(testMnemonic, "")
	dev := wallet.New(keys,
		wallet.WithLogger(logging.New(logging.WithWriter(io.Discard))),
		wallet.WithRenderer(approveAll{}),
	)

	payload, err := hex.DecodeString(samplePayload)
	require.NoError(t, err)

	checks := []struct {
		curve keychain.Curve
		hash  b58.Prefix
		pub   b58.Prefix
	}{
		{keychain.CurveEd25519, b58.PKHEd25519, b58.PKEd25519},
		{keychain.CurveSecp256k1, b58.PKHSecp256k1, b58.PKSecp256k1},
		{keychain.CurveP256, b58.PKHP256, b58.PKP256},
		{keychain.CurveBip32Ed25519, b58.PKHEd25519, b58.PKEd25519},
		{keychain.CurveBLS12381, b58.PKHBLS, b58.PKBLS},
	}
	for _, c := range checks {
		t.Run(c.curve.String(), func(t *testing.T) {
			assert.NoError(t, verifyCurve(dev, keys, c.curve, c.hash, c.pub, payload))
		})
	}
}

func TestObtainMnemonicFromEnv(t *testing.T) {
	t.Setenv(envMnemonic, "  "+testMnemonic+"  ")

	got, err := obtainMnemonic()
	require.NoError(t, err)
	assert.Equal(t, testMnemonic, got)
}
