package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
)

func TestAPIKeyAuthenticator(t *testing.T) {
	a := NewAPIKeyAuthenticator(NewPlainVerifier("s3cret"))

	tests := []struct {
		name   string
		header string
		ok     bool
	}{
		{name: "valid", header: "Apikey s3cret", ok: true},
		{name: "scheme case insensitive", header: "APIKEY s3cret", ok: true},
		{name: "surrounding spaces", header: "  Apikey   s3cret  ", ok: true},
		{name: "missing", header: "", ok: false},
		{name: "scheme only", header: "Apikey", ok: false},
		{name: "empty key", header: "Apikey   ", ok: false},
		{name: "bearer scheme", header: "Bearer s3cret", ok: false},
		{name: "wrong key", header: "Apikey s3cret2", ok: false},
		{name: "prefix of key", header: "Apikey s3c", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authenticate(tt.header)
			if tt.ok && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tt.ok && !errors.Is(err, domainErrors.ErrUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestNewVerifierSelectsStrategy(t *testing.T) {
	if v := NewVerifier("plain-secret"); v.Name() != "plain" {
		t.Fatalf("expected plain verifier, got %s", v.Name())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	v := NewVerifier(string(hash))
	if v.Name() != "bcrypt" {
		t.Fatalf("expected bcrypt verifier, got %s", v.Name())
	}
	if !v.Verify("hashed-secret") {
		t.Fatal("expected hashed secret to verify")
	}
	if v.Verify("other") {
		t.Fatal("expected other key to be rejected")
	}
	if v.Verify(string(hash)) {
		t.Fatal("hash itself must not be accepted as key")
	}
}

func TestBcryptAuthenticatorEndToEnd(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("k"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	a := NewAPIKeyAuthenticator(NewVerifier(string(hash)))
	if err := a.Authenticate("Apikey k"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := a.Authenticate("Apikey x"); !errors.Is(err, domainErrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
