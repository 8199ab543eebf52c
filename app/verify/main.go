// The verify tool proves a seed reproduces the whole signing stack
// offline. For every supported curve it derives the standard account,
// round-trips the address and public key strings, then runs a sample
// transaction through the device and checks the signature.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/b58"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/logging"
	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/signer"
	"github.com/mavryk-network/mvsign/wallet"
)

const envMnemonic = "MVSIGN_MNEMONIC"

var accountPath = keychain.Path{
	44 | 0x80000000, 1969 | 0x80000000, 0x80000000, 0x80000000,
}

// sample transaction of 0.24 MVRK with a 0.05 MVRK fee calling do(CAR)
const samplePayload = "03" +
	"0000000000000000000000000000000000000000000000000000000000000000" +
	"6c" + "016e8874874d31c3fbd636e924d5a036a43ec8faa7" +
	"d08603" + "08" + "36" + "2d" + "80d30e" +
	"01000000000000000000000000000000000000000000" +
	"ff" + "02" + "00000002" + "0316"

func main() {
	root := &cli.Command{
		Name:  "mvsign-verify",
		Usage: "prove a seed reproduces the signing stack",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "passphrase", Usage: "optional seed passphrase"},
		},
		Action: runVerify,
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// approveAll drives the review flow without a human.
type approveAll struct{}

func (approveAll) Render(p review.Prompt) review.Action {
	switch p.Kind {
	case review.PromptConfirm, review.PromptRisk, review.PromptEnableExpert, review.PromptHome:
		return review.ActionConfirm
	default:
		return review.ActionAdvance
	}
}

func runVerify(ctx context.Context, cmd *cli.Command) error {
	mnemonic, err := obtainMnemonic()
	if err != nil {
		return err
	}

	keys := keychain.New(mnemonic, cmd.String("passphrase"))
	dev := wallet.New(keys,
		wallet.WithLogger(logging.New(logging.WithWriter(io.Discard))),
		wallet.WithRenderer(approveAll{}),
	)

	payload, err := hex.DecodeString(samplePayload)
	if err != nil {
		return err
	}

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

	failed := 0
	for _, c := range checks {
		if err := verifyCurve(dev, keys, c.curve, c.hash, c.pub, payload); err != nil {
			failed++
			fmt.Printf("%-14s → %v\n", c.curve, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("verify: %d of %d curves failed", failed, len(checks))
	}
	fmt.Println("all curves verified")
	return nil
}

func verifyCurve(dev *wallet.Device, keys *keychain.Keychain, curve keychain.Curve, hashPfx, pubPfx b58.Prefix, payload []byte) error {
	key, err := keys.Derive(curve, accountPath)
	if err != nil {
		return fmt.Errorf("derive: %w", err)
	}

	addr := key.Address()
	if _, err := b58.CheckDecode(hashPfx, addr); err != nil {
		return fmt.Errorf("address %s: %w", addr, err)
	}
	pub := key.PublicKeyB58()
	if _, err := b58.CheckDecode(pubPfx, pub); err != nil {
		return fmt.Errorf("public key %s: %w", pub, err)
	}

	rsp := exchangeAll(dev, apdu.SignPackets(apdu.InsSignWithHash, byte(curve), accountPath.Encode(), payload))
	if rsp.Status != apdu.StatusOK {
		return fmt.Errorf("sign: status %s", rsp.Status)
	}
	if len(rsp.Data) <= 32 {
		return fmt.Errorf("sign: short reply %d", len(rsp.Data))
	}

	digest, sig := rsp.Data[:32], rsp.Data[32:]
	if !signer.Verify(key, digest, sig) {
		return errors.New("signature does not verify")
	}

	plain := exchangeAll(dev, apdu.SignPackets(apdu.InsSign, byte(curve), accountPath.Encode(), payload))
	if plain.Status != apdu.StatusOK {
		return fmt.Errorf("sign without hash: status %s", plain.Status)
	}
	if !signer.Verify(key, digest, plain.Data) {
		return errors.New("plain sign reply does not verify")
	}

	sigStr, err := signer.SignatureB58(curve, sig)
	if err != nil {
		return fmt.Errorf("signature encoding: %w", err)
	}

	fmt.Printf("%-14s %s\n", curve, addr)
	fmt.Printf("%-14s digest=%s\n", "", hex.EncodeToString(digest))
	fmt.Printf("%-14s sig=%s → valid=true\n", "", sigStr)
	return nil
}

func exchangeAll(dev *wallet.Device, cmds []apdu.Command) apdu.Response {
	var rsp apdu.Response
	for _, cmd := range cmds {
		rsp = dev.Exchange(cmd)
		if rsp.Status != apdu.StatusOK {
			return rsp
		}
	}
	return rsp
}

// obtainMnemonic takes the seed phrase from the environment, falling
// back to a hidden terminal prompt.
func obtainMnemonic() (string, error) {
	if v := strings.TrimSpace(os.Getenv(envMnemonic)); v != "" {
		return v, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("verify: set %s or run on a terminal", envMnemonic)
	}

	fmt.Fprint(os.Stderr, "Mnemonic: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(raw))
	if v == "" {
		return "", errors.New("verify: empty mnemonic")
	}
	return v, nil
}
