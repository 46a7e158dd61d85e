package server

import (
	"encoding/hex"
	"testing"
)

func TestVerifySignature_Valid(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	secret := "test-secret-at-least-32-chars-long-here"
	signature := ComputeSignature(payload, secret)

	if !VerifySignature(payload, signature, secret) {
		t.Error("Expected valid signature to be accepted")
	}
}

func TestVerifySignature_KnownVectors(t *testing.T) {
	testCases := []struct {
		name      string
		payload   string
		secret    string
		signature string
	}{
		{
			name:      "github documentation example",
			payload:   "Hello, World!",
			secret:    "It's a Secret to Everybody",
			signature: "sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17",
		},
		{
			name:      "push to main",
			payload:   `{"ref":"refs/heads/main"}`,
			secret:    "abc",
			signature: "sha256=55068c0947fa4d87263081a70497db788f84f98ad958a3ee6b094bd77df8d3ad",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeSignature([]byte(tc.payload), tc.secret); got != tc.signature {
				t.Errorf("ComputeSignature() = %s, want %s", got, tc.signature)
			}
			if !VerifySignature([]byte(tc.payload), tc.signature, tc.secret) {
				t.Error("Expected known signature to verify")
			}
		})
	}
}

func TestVerifySignature_Invalid(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	secret := "test-secret-at-least-32-chars-long-here"
	wrongSecret := "wrong-secret-at-least-32-chars-long-x"
	signature := ComputeSignature(payload, wrongSecret)

	if VerifySignature(payload, signature, secret) {
		t.Error("Expected invalid signature to be rejected")
	}
}

func TestVerifySignature_RawBytes(t *testing.T) {
	secret := "abc"
	original := []byte(`{"ref": "refs/heads/main"}`)
	reencoded := []byte(`{"ref":"refs/heads/main"}`)

	if VerifySignature(reencoded, ComputeSignature(original, secret), secret) {
		t.Error("Expected signature over different bytes of equivalent JSON to be rejected")
	}
}

func TestVerifySignature_MissingHeader(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	secret := "test-secret-at-least-32-chars-long-here"

	if VerifySignature(payload, "", secret) {
		t.Error("Expected missing signature to be rejected")
	}
}

func TestVerifySignature_MalformedSignature(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	secret := "test-secret-at-least-32-chars-long-here"
	valid := ComputeSignature(payload, secret)

	testCases := []struct {
		name      string
		signature string
	}{
		{"no prefix", valid[len(SignaturePrefix):]},
		{"wrong prefix", "sha1=" + valid[len(SignaturePrefix):]},
		{"no equals", "sha256" + valid[len(SignaturePrefix):]},
		{"empty after prefix", "sha256="},
		{"uppercase hex", "sha256=" + upperHex(valid[len(SignaturePrefix):])},
		{"truncated", valid[:len(valid)-1]},
		{"trailing data", valid + "00"},
		{"leading space", " " + valid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifySignature(payload, tc.signature, secret) {
				t.Errorf("Expected malformed signature '%s' to be rejected", tc.signature)
			}
		})
	}
}

// Flipping any single bit of a valid header value must make it fail.
func TestVerifySignature_SingleBitMutation(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main","after":"0123456789abcdef"}`)
	secret := "abc"
	valid := []byte(ComputeSignature(payload, secret))

	for i := range valid {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), valid...)
			mutated[i] ^= 1 << bit
			if VerifySignature(payload, string(mutated), secret) {
				t.Fatalf("mutated signature verified (byte %d, bit %d): %q", i, bit, mutated)
			}
		}
	}
}

func TestVerifySignature_PayloadMutation(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	secret := "abc"
	signature := ComputeSignature(payload, secret)

	for i := range payload {
		mutated := append([]byte(nil), payload...)
		mutated[i] ^= 0x01
		if VerifySignature(mutated, signature, secret) {
			t.Fatalf("signature verified for mutated payload at byte %d", i)
		}
	}
}

func TestComputeSignature_Format(t *testing.T) {
	sig := ComputeSignature([]byte("x"), "secret")

	if len(sig) != len(SignaturePrefix)+64 {
		t.Fatalf("unexpected signature length %d", len(sig))
	}
	if _, err := hex.DecodeString(sig[len(SignaturePrefix):]); err != nil {
		t.Errorf("digest is not hex: %v", err)
	}
}

func upperHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
