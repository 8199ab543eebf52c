package main

import (
	"log/slog"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/review"
	"github.com/mavryk-network/mvsign/settings"
	"github.com/mavryk-network/mvsign/wallet"
)

// Transport is one attached signing device. Exchange blocks until the
// device resolves the command, which for signing includes the whole
// review flow. Ping must stay off the exchange path so the health
// endpoint can probe a device whose exchange is parked on a review.
type Transport interface {
	Exchange(cmd apdu.Command) (apdu.Response, error)
	Ping() error
	Close() error
}

// autoRenderer answers review prompts without a human. It pages
// through informational screens and resolves every terminal choice the
// same way, per the approve policy.
type autoRenderer struct {
	approve bool
	log     *slog.Logger
}

func (r autoRenderer) Render(p review.Prompt) review.Action {
	r.log.Debug("prompt", "kind", p.Kind, "title", p.Title, "body", p.Body)
	switch p.Kind {
	case review.PromptConfirm, review.PromptRisk, review.PromptEnableExpert, review.PromptHome:
		if r.approve {
			return review.ActionConfirm
		}
		return review.ActionReject
	default:
		return review.ActionAdvance
	}
}

// loopbackTransport hosts the signing device in process. The device
// records its own audit trail through the recorder hook, so the bridge
// does not track its exchanges.
type loopbackTransport struct {
	dev *wallet.Device
}

func openLoopback(cfg LoopbackConfig, store *settings.Store, record func(wallet.Record), log *slog.Logger) (*loopbackTransport, error) {
	profile := review.ProfileButton
	if store.Profile() == settings.ProfileTouch {
		profile = review.ProfileTouch
	}

	dev := wallet.New(keychain.New(cfg.Mnemonic, cfg.Passphrase),
		wallet.WithLogger(log),
		wallet.WithProfile(profile),
		wallet.WithSettings(store),
		wallet.WithRenderer(autoRenderer{approve: cfg.AutoApprove, log: log}),
		wallet.WithRecorder(record),
	)
	return &loopbackTransport{dev: dev}, nil
}

func (t *loopbackTransport) Exchange(cmd apdu.Command) (apdu.Response, error) {
	return t.dev.Exchange(cmd), nil
}

// Ping always succeeds, an in-process device cannot detach.
func (t *loopbackTransport) Ping() error { return nil }

func (t *loopbackTransport) Close() error { return nil }
