package auth

import (
	"strings"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
)

const apiKeyScheme = "apikey"

// APIKeyAuthenticator validates "Authorization: Apikey <secret>" headers.
type APIKeyAuthenticator struct {
	verifier Verifier
}

// NewAPIKeyAuthenticator creates authenticator backed by the verifier.
func NewAPIKeyAuthenticator(verifier Verifier) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{verifier: verifier}
}

// Authenticate returns ErrUnauthorized when the header is absent, malformed or carries a wrong key.
func (a *APIKeyAuthenticator) Authenticate(header string) error {
	key, ok := parseAPIKey(header)
	if !ok {
		return domainErrors.ErrUnauthorized
	}
	if !a.verifier.Verify(key) {
		return domainErrors.ErrUnauthorized
	}
	return nil
}

func parseAPIKey(header string) (string, bool) {
	scheme, key, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, apiKeyScheme) {
		return "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}
	return key, true
}
