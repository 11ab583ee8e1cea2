package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
)

var ErrUserNotFound = errors.New("user not found")

// ErrQuotaRace means the conditional quota consume matched no row. With the
// user row locked this cannot happen; seeing it indicates a locking bug.
var ErrQuotaRace = errors.New("quota consume matched no row")

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `
	user_id,
	plan,
	quota_used,
	window_anchor,
	plan_expires_at,
	created_at,
	updated_at
`

// EnsureForUpdate upserts the user row with free-tier defaults and locks it for
// the duration of the transaction. All per-user mutation paths go through this
// lock, which serializes concurrent requests for the same user while leaving
// other users untouched.
func (r *UserRepo) EnsureForUpdate(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (model.User, error) {
	if userID <= 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}
	if tx == nil {
		return model.User{}, fmt.Errorf("transaction is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO users (user_id, plan, quota_used, window_anchor, created_at, updated_at)
VALUES ($1, 'free', 0, $2, $2, $2)
ON CONFLICT (user_id) DO NOTHING
`, userID, now.UTC()); err != nil {
		return model.User{}, fmt.Errorf("ensure user row: %w", err)
	}

	row := tx.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE user_id = $1
FOR UPDATE
`, userID)

	user, err := scanUserRow(row)
	if err != nil {
		return model.User{}, fmt.Errorf("lock user row: %w", err)
	}
	return user, nil
}

func (r *UserRepo) Get(ctx context.Context, userID int64) (model.User, error) {
	if userID <= 0 {
		return model.User{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return model.User{}, ErrUserNotFound
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+userColumns+`
FROM users
WHERE user_id = $1
LIMIT 1
`, userID)

	user, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ResetWindow zeroes usage and re-anchors the quota window. Idempotent within a
// window: the caller only invokes it after WindowElapsed.
func (r *UserRepo) ResetWindow(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}

	if _, err := tx.Exec(ctx, `
UPDATE users
SET quota_used = 0, window_anchor = $2, updated_at = NOW()
WHERE user_id = $1
`, userID, now.UTC()); err != nil {
		return fmt.Errorf("reset quota window: %w", err)
	}
	return nil
}

// ConsumeQuota increments usage only while it is still under the limit. The
// conditional guard backs up the row lock held by the caller.
func (r *UserRepo) ConsumeQuota(ctx context.Context, tx pgx.Tx, userID int64, limit int) (int, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}
	if limit <= 0 {
		return 0, fmt.Errorf("invalid quota limit")
	}

	var used int
	err := tx.QueryRow(ctx, `
UPDATE users
SET quota_used = quota_used + 1, updated_at = NOW()
WHERE user_id = $1 AND quota_used < $2
RETURNING quota_used
`, userID, limit).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrQuotaRace
		}
		return 0, fmt.Errorf("consume quota: %w", err)
	}
	return used, nil
}

// DowngradeExpired moves a paid user whose entitlement period has elapsed back
// to the free tier and zeroes usage. Returns true when a downgrade happened.
func (r *UserRepo) DowngradeExpired(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
UPDATE users
SET plan = 'free', plan_expires_at = NULL, quota_used = 0, window_anchor = $2, updated_at = NOW()
WHERE user_id = $1 AND plan = 'paid' AND plan_expires_at IS NOT NULL AND plan_expires_at <= $2
`, userID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("downgrade expired plan: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ExtendPaid upgrades the user to the paid tier, extending from the current
// expiry when one is still in the future.
func (r *UserRepo) ExtendPaid(ctx context.Context, tx pgx.Tx, userID int64, validity time.Duration, now time.Time) (time.Time, error) {
	if tx == nil {
		return time.Time{}, fmt.Errorf("transaction is required")
	}
	if validity <= 0 {
		return time.Time{}, fmt.Errorf("invalid plan validity")
	}

	var expiresAt time.Time
	err := tx.QueryRow(ctx, `
UPDATE users
SET
	plan = 'paid',
	plan_expires_at = CASE
		WHEN plan_expires_at IS NOT NULL AND plan_expires_at > $2::timestamptz
			THEN plan_expires_at + $3::interval
		ELSE $2::timestamptz + $3::interval
	END,
	updated_at = NOW()
WHERE user_id = $1
RETURNING plan_expires_at
`, userID, now.UTC(), validity).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrUserNotFound
		}
		return time.Time{}, fmt.Errorf("extend paid plan: %w", err)
	}
	return expiresAt, nil
}

func scanUserRow(row pgx.Row) (model.User, error) {
	var (
		user model.User
		plan string
	)
	if err := row.Scan(
		&user.ID,
		&plan,
		&user.QuotaUsed,
		&user.WindowAnchor,
		&user.PlanExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return model.User{}, err
	}
	user.Plan = enums.Plan(plan)
	return user, nil
}
