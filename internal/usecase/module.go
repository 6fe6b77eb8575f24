package usecase

import "go.uber.org/fx"

// Module provides core reconciliation use cases to the fx container.
var Module = fx.Provide(
	NewOrderMatcher,
	NewReconcileUseCase,
	NewExpiryUseCase,
)
