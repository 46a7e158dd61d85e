package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	SignaturePrefix = "sha256="
)

// VerifySignature reports whether signature is "sha256=" followed by the hex
// HMAC-SHA256 of payload keyed with secret. payload must be the raw request
// body exactly as received.
func VerifySignature(payload []byte, signature, secret string) bool {
	receivedMAC, ok := strings.CutPrefix(signature, SignaturePrefix)
	if !ok || receivedMAC == "" {
		return false
	}

	return hmac.Equal([]byte(ComputeSignature(payload, secret)), []byte(SignaturePrefix+receivedMAC))
}

// ComputeSignature returns the header value a sender would attach to payload.
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
