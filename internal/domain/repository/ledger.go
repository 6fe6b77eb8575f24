package repository

import "context"

// LedgerRepository gives read access to applied external transactions.
type LedgerRepository interface {
	// OrderFor returns the order the transaction was applied to, or ErrNotFound.
	OrderFor(ctx context.Context, transactionID int64) (string, error)
}
