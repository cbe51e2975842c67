package webhook

import (
	"crypto/subtle"

	"github.com/BTreeMap/CatalogRelay/internal/models"
)

// SubscribeMode is the only hub.mode value the handshake accepts.
const SubscribeMode = "subscribe"

// Verify checks the one-time subscription handshake and returns the challenge to echo back.
//
// Missing mode or token yields models.ErrMissingVerifyParams; a wrong mode or token yields
// models.ErrVerificationFailed. An empty configured secret never verifies.
func Verify(mode, token, challenge, secret string) (string, error) {
	if mode == "" || token == "" {
		return "", models.ErrMissingVerifyParams
	}
	if mode != SubscribeMode || secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return "", models.ErrVerificationFailed
	}
	return challenge, nil
}
