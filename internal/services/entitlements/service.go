package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
	"github.com/zetalvx/mediagate/internal/domain/rules"
	pgrepo "github.com/zetalvx/mediagate/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

type UserStore interface {
	EnsureForUpdate(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (model.User, error)
	ResetWindow(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) error
	DowngradeExpired(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (bool, error)
	ExtendPaid(ctx context.Context, tx pgx.Tx, userID int64, validity time.Duration, now time.Time) (time.Time, error)
}

type Config struct {
	FreeDailyLimit int
	PaidDailyLimit int
	Window         time.Duration
	PaidValidity   time.Duration
}

// Snapshot is the entitlement view after lazy expiry and window reset have been
// applied. ResetIn is how long until QuotaUsed goes back to zero.
type Snapshot struct {
	UserID        int64
	Plan          enums.Plan
	QuotaUsed     int
	Limit         int
	ResetIn       time.Duration
	PlanExpiresAt *time.Time
}

type Service struct {
	users UserStore
	cfg   Config
	now   func() time.Time
	runTx func(context.Context, func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool  *pgxpool.Pool
	Users UserStore
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.FreeDailyLimit <= 0 {
		cfg.FreeDailyLimit = rules.FreeDailyLimit
	}
	if cfg.PaidDailyLimit <= 0 {
		cfg.PaidDailyLimit = rules.PaidDailyLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = rules.QuotaWindow
	}
	if cfg.PaidValidity <= 0 {
		cfg.PaidValidity = 29 * 24 * time.Hour
	}

	pool := deps.Pool
	return &Service{
		users: deps.Users,
		cfg:   cfg,
		now:   time.Now,
		runTx: func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
			return pgrepo.WithTx(ctx, pool, fn)
		},
	}
}

// Status registers the user on first touch and returns the entitlement
// snapshot. Lazy plan expiry and window reset run first, so the answer is
// correct regardless of whether any sweep has run.
func (s *Service) Status(ctx context.Context, userID int64) (Snapshot, error) {
	if userID <= 0 {
		return Snapshot{}, ErrValidation
	}
	if s.users == nil {
		return Snapshot{}, fmt.Errorf("entitlement dependencies are not configured")
	}

	now := s.now().UTC()

	var snap Snapshot
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		user, err := s.users.EnsureForUpdate(txCtx, tx, userID, now)
		if err != nil {
			return err
		}

		user, err = s.refresh(txCtx, tx, user, now)
		if err != nil {
			return err
		}

		limit := s.cfg.FreeDailyLimit
		if user.Plan == enums.PlanPaid {
			limit = s.cfg.PaidDailyLimit
		}

		snap = Snapshot{
			UserID:        user.ID,
			Plan:          user.Plan,
			QuotaUsed:     user.QuotaUsed,
			Limit:         limit,
			ResetIn:       rules.ResetIn(now, user.WindowAnchor, s.cfg.Window),
			PlanExpiresAt: user.PlanExpiresAt,
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	return snap, nil
}

// Register performs first-touch registration without returning a snapshot.
func (s *Service) Register(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return ErrValidation
	}
	if s.users == nil {
		return fmt.Errorf("entitlement dependencies are not configured")
	}

	now := s.now().UTC()
	return s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		_, err := s.users.EnsureForUpdate(txCtx, tx, userID, now)
		return err
	})
}

// Upgrade moves the user to the paid tier inside the caller's transaction. A
// renewal before expiry extends from the current expiry; an upgrade after
// expiry starts from now. Only the payment workflow calls this, and only for a
// confirmed transaction.
func (s *Service) Upgrade(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (time.Time, error) {
	if userID <= 0 {
		return time.Time{}, ErrValidation
	}
	if s.users == nil {
		return time.Time{}, fmt.Errorf("entitlement dependencies are not configured")
	}
	if now.IsZero() {
		now = s.now().UTC()
	}

	if _, err := s.users.EnsureForUpdate(ctx, tx, userID, now); err != nil {
		return time.Time{}, err
	}
	// Settle a lapsed previous period first so the new one anchors at now.
	if _, err := s.users.DowngradeExpired(ctx, tx, userID, now); err != nil {
		return time.Time{}, err
	}

	return s.users.ExtendPaid(ctx, tx, userID, s.cfg.PaidValidity, now)
}

func (s *Service) refresh(ctx context.Context, tx pgx.Tx, user model.User, now time.Time) (model.User, error) {
	if user.Plan == enums.PlanPaid && user.PlanExpiresAt != nil && !user.PlanExpiresAt.After(now) {
		downgraded, err := s.users.DowngradeExpired(ctx, tx, user.ID, now)
		if err != nil {
			return model.User{}, err
		}
		if downgraded {
			user.Plan = enums.PlanFree
			user.PlanExpiresAt = nil
			user.QuotaUsed = 0
			user.WindowAnchor = now
			return user, nil
		}
	}

	if rules.WindowElapsed(now, user.WindowAnchor, s.cfg.Window) {
		if err := s.users.ResetWindow(ctx, tx, user.ID, now); err != nil {
			return model.User{}, err
		}
		user.QuotaUsed = 0
		user.WindowAnchor = now
	}

	return user, nil
}
