package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
	"github.com/polkiloo/storepay/internal/domain/model"
	"github.com/polkiloo/storepay/internal/domain/repository"
)

// Authenticator validates webhook credentials.
type Authenticator interface {
	Authenticate(header string) error
}

// Notifier is told about every order that left the pending state.
type Notifier interface {
	OrderUpdated(orderID string, status model.OrderStatus)
}

// ReconcileUseCase applies bank-transfer notifications to orders.
//
// All cross-request exclusivity lives in the repository: the ledger insert and
// the pending->terminal update run as conditional writes in one transaction,
// so concurrent deliveries for the same order or transaction serialise there.
type ReconcileUseCase struct {
	auth     Authenticator
	ledger   repository.LedgerRepository
	orders   repository.OrderRepository
	matcher  *OrderMatcher
	notifier Notifier
	logger   *slog.Logger
}

// NewReconcileUseCase constructs ReconcileUseCase.
func NewReconcileUseCase(
	auth Authenticator,
	ledger repository.LedgerRepository,
	orders repository.OrderRepository,
	matcher *OrderMatcher,
	notifier Notifier,
	logger *slog.Logger,
) *ReconcileUseCase {
	return &ReconcileUseCase{
		auth:     auth,
		ledger:   ledger,
		orders:   orders,
		matcher:  matcher,
		notifier: notifier,
		logger:   logger,
	}
}

// Authenticate checks the Authorization header of a webhook delivery.
func (u *ReconcileUseCase) Authenticate(header string) error {
	return u.auth.Authenticate(header)
}

// Apply reconciles an authenticated transfer. Benign outcomes (duplicates,
// unknown orders, mismatches) are reported through the result; an error is
// returned only for invalid input or when persistence is unavailable.
func (u *ReconcileUseCase) Apply(ctx context.Context, t model.Transfer) (model.Reconciliation, error) {
	if err := validateTransfer(t); err != nil {
		return model.Reconciliation{}, err
	}

	log := u.logger.With(
		slog.Int64("transaction_id", t.TransactionID),
		slog.String("transfer_type", string(t.Type)),
		slog.Int64("amount", t.Amount),
	)

	if res, done, err := u.replayed(ctx, t.TransactionID); done || err != nil {
		if err == nil {
			log.Info("transfer already applied", slog.String("order_id", res.OrderID))
		}
		return res, err
	}

	orderID, err := ParseOrderReference(t.Content)
	if errors.Is(err, domainErrors.ErrNoCandidate) {
		log.Info("no order identifier in transfer content", slog.String("content", t.Content))
		return model.Reconciliation{Outcome: model.OutcomeNoCandidate}, nil
	}
	log = log.With(slog.String("order_id", orderID))

	var (
		order *model.Order
		to    model.OrderStatus
	)
	if t.Type == model.TransferOut {
		to = model.OrderStatusFailed
		order, err = u.matcher.Lookup(ctx, orderID)
		if err == nil && order.Status.Terminal() {
			err = domainErrors.ErrAlreadyProcessed
		}
	} else {
		to = model.OrderStatusCompleted
		order, err = u.matcher.Match(ctx, orderID, t.Amount)
	}

	switch {
	case err == nil:
	case errors.Is(err, domainErrors.ErrOrderNotFound):
		log.Warn("transfer references unknown order")
		return model.Reconciliation{Outcome: model.OutcomeNotFound, OrderID: orderID}, nil
	case errors.Is(err, domainErrors.ErrAlreadyProcessed):
		u.logAlreadyProcessed(log, order)
		return resultFor(model.OutcomeAlreadyProcessed, order), nil
	case errors.Is(err, domainErrors.ErrAmountMismatch):
		log.Warn("transfer amount does not match order, order left pending",
			slog.Int64("expected_amount", order.Amount))
		return resultFor(model.OutcomeAmountMismatch, order), nil
	default:
		return model.Reconciliation{}, unavailable(err)
	}

	updated, err := u.orders.Transition(ctx, model.Transition{
		OrderID:       order.ID,
		TransactionID: t.TransactionID,
		Amount:        order.Amount,
		Transferred:   t.Amount,
		To:            to,
	})
	switch {
	case err == nil:
	case errors.Is(err, domainErrors.ErrDuplicateEvent):
		res, done, err := u.replayed(ctx, t.TransactionID)
		if err != nil {
			return model.Reconciliation{}, err
		}
		if !done {
			res = model.Reconciliation{Outcome: model.OutcomeDuplicate}
		}
		log.Info("transfer applied by concurrent delivery")
		return res, nil
	case errors.Is(err, domainErrors.ErrAlreadyProcessed):
		current, err := u.matcher.Lookup(ctx, order.ID)
		if err != nil {
			return model.Reconciliation{}, unavailable(err)
		}
		u.logAlreadyProcessed(log, current)
		return resultFor(model.OutcomeAlreadyProcessed, current), nil
	default:
		return model.Reconciliation{}, unavailable(err)
	}

	u.notifier.OrderUpdated(updated.ID, updated.Status)
	log.Info("order transitioned", slog.String("status", string(updated.Status)))

	outcome := model.OutcomeCompleted
	if updated.Status == model.OrderStatusFailed {
		outcome = model.OutcomeFailed
	}
	return resultFor(outcome, updated), nil
}

// replayed reports a duplicate result when the transaction is already in the ledger.
func (u *ReconcileUseCase) replayed(ctx context.Context, transactionID int64) (model.Reconciliation, bool, error) {
	orderID, err := u.ledger.OrderFor(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			return model.Reconciliation{}, false, nil
		}
		return model.Reconciliation{}, false, unavailable(err)
	}

	order, err := u.matcher.Lookup(ctx, orderID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrOrderNotFound) {
			return model.Reconciliation{Outcome: model.OutcomeDuplicate, OrderID: orderID}, true, nil
		}
		return model.Reconciliation{}, false, unavailable(err)
	}
	return resultFor(model.OutcomeDuplicate, order), true, nil
}

func (u *ReconcileUseCase) logAlreadyProcessed(log *slog.Logger, order *model.Order) {
	if order.Status == model.OrderStatusExpired {
		log.Warn("payment received for expired order, refund required", slog.Int64("order_amount", order.Amount))
		return
	}
	log.Info("order already processed", slog.String("status", string(order.Status)))
}

func resultFor(outcome model.Outcome, order *model.Order) model.Reconciliation {
	return model.Reconciliation{Outcome: outcome, OrderID: order.ID, Status: order.Status}
}

func validateTransfer(t model.Transfer) error {
	if t.TransactionID <= 0 {
		return fmt.Errorf("%w: transaction id must be positive", domainErrors.ErrInvalidTransfer)
	}
	if t.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", domainErrors.ErrInvalidTransfer)
	}
	if t.Type != model.TransferIn && t.Type != model.TransferOut {
		return fmt.Errorf("%w: unknown transfer type %q", domainErrors.ErrInvalidTransfer, t.Type)
	}
	return nil
}

func unavailable(err error) error {
	if errors.Is(err, domainErrors.ErrPersistenceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domainErrors.ErrPersistenceUnavailable, err)
}
