package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint digests the four content fields of a posting, joined by
// "|" in a fixed order, so the same content always hashes the same.
// Tags, salary and category are deliberately excluded: edits to those
// alone do not produce an "updated" change record.
func Fingerprint(title, description, location, requirements string) string {
	content := strings.Join([]string{title, description, location, requirements}, "|")
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ContentFingerprint is the Fingerprint of a posting's own fields.
func (p Posting) ContentFingerprint() string {
	return Fingerprint(p.Title, p.Description, p.Location, p.Requirements)
}
