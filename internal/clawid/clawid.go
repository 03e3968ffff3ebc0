// Package clawid derives and validates the deterministic identity
// string ("claw id") for an Ed25519 public key.
package clawid

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base32"
	"errors"
)

// ErrInvalidPublicKey is returned when a public key is not a valid
// Ed25519 key of the expected length.
var ErrInvalidPublicKey = errors.New("clawid: invalid ed25519 public key")

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// FromPublicKey derives the claw id deterministically from a public
// key: lower-case base32 of the SHA-256 digest of the raw key bytes,
// prefixed so ids are visually distinguishable from other identifiers
// in logs and URLs.
func FromPublicKey(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", ErrInvalidPublicKey
	}
	sum := sha256.Sum256(pub)
	return "claw_" + toLower(encoding.EncodeToString(sum[:])), nil
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}
