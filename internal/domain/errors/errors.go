package errors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidTransfer        = errors.New("invalid transfer")
	ErrNoCandidate            = errors.New("no order identifier in transfer content")
	ErrOrderNotFound          = errors.New("order not found")
	ErrAlreadyProcessed       = errors.New("order already processed")
	ErrAmountMismatch         = errors.New("transfer amount does not match order amount")
	ErrDuplicateEvent         = errors.New("transaction already applied")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)
