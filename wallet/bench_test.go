package wallet

import (
	"encoding/hex"
	"testing"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/keychain"
	"github.com/mavryk-network/mvsign/review"
)

// silent accepts every prompt without keeping prompt history.
type silent struct{}

func (silent) Render(p review.Prompt) review.Action { return acceptAll(p) }

// BenchmarkSignRoundtrip measures complete signing exchanges, review
// walk included, per curve.
func BenchmarkSignRoundtrip(b *testing.B) {
	payload, err := hex.DecodeString(goldenTransaction)
	if err != nil {
		b.Fatalf("bad fixture: %v", err)
	}
	keys := testKeychain()

	for curve := keychain.CurveEd25519; curve <= keychain.CurveBLS12381; curve++ {
		b.Run(curve.String(), func(b *testing.B) {
			d := New(keys, WithRenderer(silent{}))
			cmds := apdu.SignPackets(apdu.InsSign, byte(curve), testPath.Encode(), payload)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				for _, cmd := range cmds {
					if rsp := d.Exchange(cmd); rsp.Status != apdu.StatusOK {
						b.Fatalf("exchange: %v", rsp.Status)
					}
				}
			}
		})
	}
}
