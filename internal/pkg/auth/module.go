package auth

import (
	"go.uber.org/fx"

	"github.com/polkiloo/storepay/internal/config"
)

// Module provides webhook authentication primitives via fx.
var Module = fx.Options(
	fx.Provide(newVerifier),
	fx.Provide(NewAPIKeyAuthenticator),
)

type verifierParams struct {
	fx.In

	Config *config.Config
}

func newVerifier(p verifierParams) Verifier {
	return NewVerifier(p.Config.WebhookAPIKey)
}
