package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

const fingerprintLength = 12

func HashString(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Fingerprint identifies a secret in logs and API responses without revealing it.
// Empty secrets have an empty fingerprint.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	return HashString(secret)[:fingerprintLength]
}
