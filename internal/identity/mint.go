// Package identity derives stable content identity for FAQ and KB records
// and content-addressable fingerprints for change detection.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// namespace is the fixed root UUID every minted id is derived from. Identical
// inputs mint identical ids across processes and time because uuid.NewSHA1
// is a pure function of (namespace, name).
var namespace = uuid.MustParse("6f1d5b2e-6e6b-4c7a-9f6f-0c1a2b3c4d5e")

// Mint derives a deterministic UUIDv5-style id from kind and an ordered
// sequence of parts, e.g. Mint("faq", projectID, question).
func Mint(kind string, parts ...string) string {
	name := canonicalize(kind, parts)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

// Fingerprint returns a SHA-256 content fingerprint over an ordered sequence
// of (id, content-hash) pairs, used by IndexVersion.RecordFingerprint to
// detect whether a rebuild would produce identical output.
func Fingerprint(pairs [][2]string) string {
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p[0])
		b.WriteByte(0)
		b.WriteString(p[1])
		b.WriteByte(0x1e) // record separator
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ContentHash returns the SHA-256 hex digest of a single piece of content,
// suitable as one half of a Fingerprint pair.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func canonicalize(kind string, parts []string) string {
	var b strings.Builder
	b.WriteString(kind)
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(p)
	}
	return b.String()
}
