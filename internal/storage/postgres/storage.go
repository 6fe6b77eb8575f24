package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
	"github.com/polkiloo/storepay/internal/domain/model"
	"github.com/polkiloo/storepay/internal/domain/repository"
)

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var newPgxPool = func(ctx context.Context, cfg *pgxpool.Config) (pgxPool, error) {
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Storage acts as repository facade backed by PostgreSQL.
type Storage struct {
	pool   pgxPool
	logger *slog.Logger
}

type orderRepository struct {
	storage *Storage
}

type ledgerRepository struct {
	storage *Storage
}

type outboxRepository struct {
	storage *Storage
}

// New creates storage with schema initialization.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := newPgxPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	storage := &Storage{pool: pool, logger: logger}
	if err := storage.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("database schema ready")

	return storage, nil
}

// Close releases database resources.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
		if s.logger != nil {
			s.logger.Info("database pool closed")
		}
	}
}

// Factory methods for domain repositories.
func (s *Storage) Orders() repository.OrderRepository {
	return &orderRepository{storage: s}
}

func (s *Storage) Ledger() repository.LedgerRepository {
	return &ledgerRepository{storage: s}
}

func (s *Storage) Outbox() repository.OutboxRepository {
	return &outboxRepository{storage: s}
}

func (s *Storage) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
            id UUID PRIMARY KEY,
            amount BIGINT NOT NULL CHECK (amount > 0),
            status TEXT NOT NULL DEFAULT 'pending',
            transaction_id BIGINT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            expires_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS payment_ledger (
            transaction_id BIGINT PRIMARY KEY,
            order_id UUID NOT NULL REFERENCES orders(id),
            amount BIGINT NOT NULL,
            status TEXT NOT NULL,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE TABLE IF NOT EXISTS payment_outbox (
            id BIGSERIAL PRIMARY KEY,
            event_id UUID UNIQUE NOT NULL,
            event_type TEXT NOT NULL,
            payload JSONB NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            attempts INT NOT NULL DEFAULT 0,
            next_retry TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_orders_pending_expiry ON orders(expires_at) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_payment_outbox_due ON payment_outbox(next_retry) WHERE status <> 'sent'`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// --- OrderRepository implementation ---

const orderColumns = `id, amount, status, transaction_id, created_at, expires_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	if err := row.Scan(&o.ID, &o.Amount, &o.Status, &o.TransactionID, &o.CreatedAt, &o.ExpiresAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	order, err := scanOrder(r.storage.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, err
	}
	return order, nil
}

// Transition records the ledger entry, moves the order out of pending and
// enqueues the outbox event in a single transaction. The ledger insert and
// the guarded update are the only arbiters between concurrent deliveries.
func (r *orderRepository) Transition(ctx context.Context, t model.Transition) (*model.Order, error) {
	const insertLedger = `INSERT INTO payment_ledger (transaction_id, order_id, amount, status)
                          VALUES ($1, $2, $3, $4)
                          ON CONFLICT (transaction_id) DO NOTHING`
	const completeOrder = `UPDATE orders SET status=$2, transaction_id=$3, updated_at=NOW()
                           WHERE id=$1 AND status='pending' AND amount=$4
                           RETURNING ` + orderColumns
	const failOrder = `UPDATE orders SET status=$2, transaction_id=$3, updated_at=NOW()
                       WHERE id=$1 AND status='pending'
                       RETURNING ` + orderColumns

	var order *model.Order
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertLedger, t.TransactionID, t.OrderID, t.Transferred, t.To)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domainErrors.ErrDuplicateEvent
		}

		if t.To == model.OrderStatusCompleted {
			order, err = scanOrder(tx.QueryRow(ctx, completeOrder, t.OrderID, t.To, t.TransactionID, t.Amount))
		} else {
			order, err = scanOrder(tx.QueryRow(ctx, failOrder, t.OrderID, t.To, t.TransactionID))
		}
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domainErrors.ErrAlreadyProcessed
			}
			return err
		}

		return r.storage.enqueueTx(ctx, tx, model.PaymentEvent{
			EventID:       uuid.NewString(),
			OrderID:       order.ID,
			Status:        order.Status,
			Amount:        order.Amount,
			TransactionID: t.TransactionID,
		})
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domainErrors.ErrDuplicateEvent
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) ExpireOverdue(ctx context.Context, now time.Time, limit int) ([]model.Order, error) {
	const query = `UPDATE orders SET status='expired', updated_at=NOW()
                   WHERE id IN (
                       SELECT id FROM orders
                       WHERE status='pending' AND expires_at <= $1
                       ORDER BY expires_at
                       LIMIT $2
                       FOR UPDATE SKIP LOCKED
                   ) AND status='pending'
                   RETURNING ` + orderColumns
	rows, err := r.storage.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// --- LedgerRepository implementation ---

func (r *ledgerRepository) OrderFor(ctx context.Context, transactionID int64) (string, error) {
	const query = `SELECT order_id FROM payment_ledger WHERE transaction_id=$1`
	var orderID string
	if err := r.storage.pool.QueryRow(ctx, query, transactionID).Scan(&orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domainErrors.ErrNotFound
		}
		return "", err
	}
	return orderID, nil
}

// --- OutboxRepository implementation ---

func (s *Storage) enqueueTx(ctx context.Context, tx pgx.Tx, event model.PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	const insertOutbox = `INSERT INTO payment_outbox (event_id, event_type, payload) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, insertOutbox, event.EventID, model.EventTypeFor(event.Status), payload); err != nil {
		return err
	}
	return nil
}

// Claim locks due messages and leases them until the lease expires so that
// concurrent dispatchers skip them.
func (r *outboxRepository) Claim(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxMessage, error) {
	const selectQuery = `SELECT id, event_type, payload, attempts
                         FROM payment_outbox
                         WHERE status <> 'sent' AND next_retry <= NOW()
                         ORDER BY id
                         LIMIT $1
                         FOR UPDATE SKIP LOCKED`
	const leaseQuery = `UPDATE payment_outbox
                        SET status='processing', next_retry=$2, updated_at=NOW()
                        WHERE id = ANY($1)`

	var messages []model.OutboxMessage
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectQuery, limit)
		if err != nil {
			return err
		}
		for rows.Next() {
			var m model.OutboxMessage
			if err := rows.Scan(&m.ID, &m.EventType, &m.Payload, &m.Attempts); err != nil {
				rows.Close()
				return err
			}
			messages = append(messages, m)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}

		ids := make([]int64, len(messages))
		for i, m := range messages {
			ids[i] = m.ID
		}
		_, err = tx.Exec(ctx, leaseQuery, ids, time.Now().Add(lease))
		return err
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id int64) error {
	const query = `UPDATE payment_outbox SET status='sent', updated_at=NOW() WHERE id=$1`
	_, err := r.storage.pool.Exec(ctx, query, id)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id int64, nextRetry time.Time) error {
	const query = `UPDATE payment_outbox
                   SET status='pending', attempts=attempts+1, next_retry=$2, updated_at=NOW()
                   WHERE id=$1`
	_, err := r.storage.pool.Exec(ctx, query, id, nextRetry)
	return err
}

// WithinTransaction executes function inside transaction boundary.
func (s *Storage) WithinTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// HealthCheck verifies database connectivity.
func (s *Storage) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
