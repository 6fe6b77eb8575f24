package sepay

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/storepay/internal/config"
)

// Module exposes SePay client implementation to fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(p.Config.SepayAPIURL, p.Config.SepayAPIToken, p.Config.SepayAccountNumber, p.Logger)
}
