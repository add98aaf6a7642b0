package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the SHA-256 hex digest of raw image bytes. The
// digest is a traceability aid only: resubmitting identical bytes still
// produces a brand-new analysis record.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
