package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyDelivered is an integrity failure: the unique (user_id, item_id)
// pair was hit again. A correct caller never observes this.
var ErrAlreadyDelivered = errors.New("item already delivered to user")

type DeliveryRepo struct {
	pool *pgxpool.Pool
}

func NewDeliveryRepo(pool *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{pool: pool}
}

func (r *DeliveryRepo) Record(ctx context.Context, tx pgx.Tx, userID, itemID int64, now time.Time) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	if userID <= 0 || itemID <= 0 {
		return fmt.Errorf("invalid delivery payload")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO deliveries (user_id, item_id, delivered_at)
VALUES ($1, $2, $3)
`, userID, itemID, now.UTC()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyDelivered
		}
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) HasReceived(ctx context.Context, userID, itemID int64) (bool, error) {
	if userID <= 0 || itemID <= 0 {
		return false, fmt.Errorf("invalid delivery lookup payload")
	}
	if r.pool == nil {
		return false, nil
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM deliveries WHERE user_id = $1 AND item_id = $2
)
`, userID, itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check delivery: %w", err)
	}
	return exists, nil
}

func (r *DeliveryRepo) CountForUser(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return 0, nil
	}

	var count int64
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM deliveries WHERE user_id = $1
`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return count, nil
}
