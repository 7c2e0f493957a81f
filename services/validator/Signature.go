package validator

import (
	"crypto/ed25519"
	"encoding/hex"
)

// SignatureVerifier checks a hex signature over message against a hex public key.
// Implementations must return false, never panic, on malformed input.
type SignatureVerifier interface {
	Verify(sig string, message []byte, pubKey string) bool
}

type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(sig string, message []byte, pubKey string) bool {
	sigBytes, err := hex.DecodeString(sig)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return false
	}

	pubKeyBytes, err := hex.DecodeString(pubKey)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		return false
	}

	return ed25519.Verify(pubKeyBytes, message, sigBytes)
}

// Sign returns the hex ed25519 signature of message.
func Sign(privateKey ed25519.PrivateKey, message []byte) string {
	return hex.EncodeToString(ed25519.Sign(privateKey, message))
}
