package wallet

import (
	"github.com/samber/lo"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/review"
)

// publicKey serves both key instructions. The payload is exactly the
// derivation path; the reply is the length prefixed public key. With
// prompt set the key only leaves after the user approved it.
func (d *Device) publicKey(cmd apdu.Command, prompt bool) apdu.Response {
	curve, err := keychain.CurveFromCode(cmd.P2)
	if err != nil {
		return apdu.Response{Status: apdu.StatusWrongParam}
	}
	path, err := keychain.ParsePath(cmd.Payload)
	if err != nil {
		return apdu.Response{Status: apdu.StatusWrongLengthForIns}
	}
	key, err := d.keys.Derive(curve, path)
	if err != nil {
		d.log.Error("key derivation failed", "curve", curve, "err", err)
		return apdu.Response{Status: apdu.StatusUnknownCxErr}
	}

	pub := key.PublicBytes()
	reply := apdu.Response{
		Data:   append([]byte{byte(len(pub))}, pub...),
		Status: apdu.StatusOK,
	}
	if !prompt {
		return reply
	}

	req := newKeyRequest(key.Address(), d.profile)
	d.key = req
	defer func() { d.key = nil }()
	d.wake()

	if d.approveKey(req) {
		d.log.Info("public key provided", "curve", curve, "path", path.String())
		return reply
	}
	return apdu.Response{Status: apdu.StatusReject}
}

// keyRequest is the minimal review flow of the prompted key
// instruction: the address pages, then an approve choice, with a QR
// side screen on profiles that draw codes.
type keyRequest struct {
	prompts []review.Prompt
	addr    string
	allowQR bool
	qr      bool
	decided bool
	approve bool
}

func newKeyRequest(addr string, p review.Profile) *keyRequest {
	prompts := []review.Prompt{{Kind: review.PromptReview, Title: "Provide Key"}}
	for _, page := range lo.ChunkString(addr, p.PageChars) {
		prompts = append(prompts, review.Prompt{Kind: review.PromptField, Title: "Public Key Hash", Body: page})
	}
	prompts = append(prompts, review.Prompt{Kind: review.PromptConfirm, Title: "Approve"})
	return &keyRequest{prompts: prompts, addr: addr, allowQR: p.QR}
}

func (k *keyRequest) prompt() *review.Prompt {
	if k.decided || len(k.prompts) == 0 {
		return nil
	}
	if k.qr {
		return &review.Prompt{Kind: review.PromptQR, Title: "Address", Body: k.addr}
	}
	p := k.prompts[0]
	return &p
}

func (k *keyRequest) do(d *Device, a review.Action) error {
	defer d.wake()
	if k.decided || len(k.prompts) == 0 {
		return review.ErrNoPrompt
	}
	if k.qr {
		// any action closes the code view
		k.qr = false
		return nil
	}
	switch a {
	case review.ActionSkip:
		if k.allowQR {
			k.qr = true
		}
	case review.ActionReject:
		k.decided = true
	case review.ActionAdvance, review.ActionConfirm:
		if k.prompts[0].Kind == review.PromptConfirm {
			if a == review.ActionConfirm {
				k.decided = true
				k.approve = true
			}
			return nil
		}
		k.prompts = k.prompts[1:]
	}
	return nil
}

// approveKey parks the transport on the key flow until it is decided.
func (d *Device) approveKey(k *keyRequest) bool {
	for {
		if k.decided {
			return k.approve
		}
		p := k.prompt()
		if p == nil {
			return false
		}
		if d.render != nil {
			_ = k.do(d, d.render.Render(*p))
			continue
		}
		d.wake()
		d.cond.Wait()
	}
}
