package auth

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Verifier checks a presented API key against the configured secret.
type Verifier interface {
	Verify(key string) bool
	Name() string
}

// NewVerifier picks bcrypt verification when the secret is a bcrypt hash and
// plain comparison otherwise.
func NewVerifier(secret string) Verifier {
	if _, err := bcrypt.Cost([]byte(secret)); err == nil {
		return &BcryptVerifier{hash: []byte(secret)}
	}
	return NewPlainVerifier(secret)
}

// PlainVerifier compares keys in constant time over their SHA-256 digests,
// so neither content nor length of the secret leaks through timing.
type PlainVerifier struct {
	digest [sha256.Size]byte
}

// NewPlainVerifier creates PlainVerifier for the provided secret.
func NewPlainVerifier(secret string) *PlainVerifier {
	return &PlainVerifier{digest: sha256.Sum256([]byte(secret))}
}

// Verify reports whether key equals the configured secret.
func (v *PlainVerifier) Verify(key string) bool {
	got := sha256.Sum256([]byte(key))
	return subtle.ConstantTimeCompare(got[:], v.digest[:]) == 1
}

func (v *PlainVerifier) Name() string {
	return "plain"
}

// BcryptVerifier validates keys against a bcrypt hash of the secret. Each
// Verify costs a full bcrypt compare even for a wrong key, so it is unsuited
// to high-volume endpoints where PlainVerifier should be used instead.
type BcryptVerifier struct {
	hash []byte
}

// Verify reports whether key matches the stored hash.
func (v *BcryptVerifier) Verify(key string) bool {
	return bcrypt.CompareHashAndPassword(v.hash, []byte(key)) == nil
}

func (v *BcryptVerifier) Name() string {
	return "bcrypt"
}
