package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

const (
	// RecommendedSecretLength is the length below which a webhook secret is
	// reported as weak.
	RecommendedSecretLength = 32

	// MinEntropy is the minimum Shannon entropy threshold for secrets.
	MinEntropy = 3.5
)

var placeholderFragments = []string{"replace", "changeme", "topsecret", "password", "secret"}

// CheckSecret reports why a webhook secret is weak, or nil if it looks fine.
// An empty secret is not checked here: it disables verification entirely and
// callers warn about that separately.
func CheckSecret(secret string) error {
	if secret == "" {
		return nil
	}

	if len(secret) < RecommendedSecretLength {
		return fmt.Errorf("secret too short (recommended at least %d characters, got %d)", RecommendedSecretLength, len(secret))
	}

	lower := strings.ToLower(secret)
	for _, fragment := range placeholderFragments {
		if strings.Contains(lower, fragment) {
			return fmt.Errorf("secret appears to be a placeholder value")
		}
	}

	if entropy := calculateEntropy(secret); entropy < MinEntropy {
		return fmt.Errorf("secret has insufficient entropy (%.2f < %.2f)", entropy, MinEntropy)
	}

	return nil
}

// GenerateSecret creates a cryptographically secure random secret.
// Returns a 48-character URL-safe base64 string.
func GenerateSecret() (string, error) {
	bytes := make([]byte, 36)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// calculateEntropy computes the Shannon entropy of a string.
func calculateEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, c := range s {
		freq[c]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}

	return entropy
}
