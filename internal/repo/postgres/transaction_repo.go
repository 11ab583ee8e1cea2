package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrTransactionRefCollision means a freshly generated reference already
	// exists. References are unique for all time; a collision is a
	// configuration/integrity fault, never something to retry.
	ErrTransactionRefCollision = errors.New("transaction ref collision")
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `
	transaction_ref,
	user_id,
	status,
	created_at,
	updated_at
`

func (r *TransactionRepo) CreatePending(ctx context.Context, ref string, userID int64, now time.Time) (model.Transaction, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || userID <= 0 {
		return model.Transaction{}, fmt.Errorf("invalid create transaction payload")
	}
	if r.pool == nil {
		return model.Transaction{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO transactions (transaction_ref, user_id, status, created_at, updated_at)
VALUES ($1, $2, 'pending', $3, $3)
RETURNING `+transactionColumns+`
`, ref, userID, now.UTC())

	tx, err := scanTransactionRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Transaction{}, ErrTransactionRefCollision
		}
		return model.Transaction{}, fmt.Errorf("create pending transaction: %w", err)
	}
	return tx, nil
}

func (r *TransactionRepo) Get(ctx context.Context, ref string) (model.Transaction, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Transaction{}, fmt.Errorf("transaction ref is required")
	}
	if r.pool == nil {
		return model.Transaction{}, ErrTransactionNotFound
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE transaction_ref = $1
LIMIT 1
`, ref)

	tx, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Transaction{}, ErrTransactionNotFound
		}
		return model.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// GetForUpdate locks the transaction row inside tx so a poll and a concurrent
// expiry sweep cannot both settle it.
func (r *TransactionRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, ref string) (model.Transaction, error) {
	if tx == nil {
		return model.Transaction{}, fmt.Errorf("transaction is required")
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Transaction{}, fmt.Errorf("transaction ref is required")
	}

	row := tx.QueryRow(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE transaction_ref = $1
FOR UPDATE
`, ref)

	rec, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Transaction{}, ErrTransactionNotFound
		}
		return model.Transaction{}, fmt.Errorf("lock transaction: %w", err)
	}
	return rec, nil
}

// Settle moves a pending transaction to a terminal status. The WHERE guard
// keeps the state machine monotonic: terminal rows never change again.
func (r *TransactionRepo) Settle(ctx context.Context, tx pgx.Tx, ref string, status enums.TransactionStatus) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}
	if !status.Terminal() {
		return false, fmt.Errorf("settle requires a terminal status, got %s", status)
	}

	result, err := tx.Exec(ctx, `
UPDATE transactions
SET status = $2, updated_at = NOW()
WHERE transaction_ref = $1 AND status = 'pending'
`, strings.TrimSpace(ref), string(status))
	if err != nil {
		return false, fmt.Errorf("settle transaction: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListPendingCreatedBefore returns pending transactions created at or before
// cutoff, oldest first. Used by the reconcile job.
func (r *TransactionRepo) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Transaction, error) {
	if r.pool == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE status = 'pending' AND created_at <= $1
ORDER BY created_at
LIMIT $2
`, cutoff.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		rec, err := scanTransactionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending transactions: %w", err)
	}
	return out, nil
}

func scanTransactionRow(row pgx.Row) (model.Transaction, error) {
	var (
		rec    model.Transaction
		status string
	)
	if err := row.Scan(
		&rec.Ref,
		&rec.UserID,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return model.Transaction{}, err
	}
	rec.Status = enums.TransactionStatus(status)
	return rec, nil
}
