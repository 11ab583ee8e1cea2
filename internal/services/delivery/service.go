package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
	"github.com/zetalvx/mediagate/internal/domain/rules"
	pgrepo "github.com/zetalvx/mediagate/internal/repo/postgres"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotAMember       = errors.New("user is not a channel member")
	ErrNoItemsAvailable = errors.New("no unseen items available")
)

// QuotaExceededError carries enough structure for the transport layer to tell
// the user how long to wait; the engine never formats user-facing text.
type QuotaExceededError struct {
	Limit   int
	ResetIn time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota of %d exhausted, resets in %s", e.Limit, e.ResetIn)
}

type UserStore interface {
	EnsureForUpdate(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (model.User, error)
	ResetWindow(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) error
	DowngradeExpired(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (bool, error)
	ConsumeQuota(ctx context.Context, tx pgx.Tx, userID int64, limit int) (int, error)
}

type CatalogStore interface {
	PickUnseen(ctx context.Context, tx pgx.Tx, userID int64) (model.ContentItem, error)
}

type DeliveryStore interface {
	Record(ctx context.Context, tx pgx.Tx, userID, itemID int64, now time.Time) error
}

type Config struct {
	FreeDailyLimit int
	PaidDailyLimit int
	Window         time.Duration
}

type Result struct {
	Item      model.ContentItem
	QuotaUsed int
	Limit     int
	Plan      enums.Plan
}

type Service struct {
	users    UserStore
	catalog  CatalogStore
	ledger   DeliveryStore
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
	runTx    func(context.Context, func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool    *pgxpool.Pool
	Users   UserStore
	Catalog CatalogStore
	Ledger  DeliveryStore
	Logger  *zap.Logger
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
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := deps.Pool
	return &Service{
		users:   deps.Users,
		catalog: deps.Catalog,
		ledger:  deps.Ledger,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		runTx: func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
			return pgrepo.WithTx(ctx, pool, fn)
		},
	}
}

// Request runs one gated delivery attempt for the user. membershipOK is the
// external oracle's verdict, resolved by the caller before entering the engine.
//
// The whole sequence runs in a single transaction holding the user's row lock,
// so two concurrent requests for the same user cannot both pass the quota check
// or select the same unseen item.
func (s *Service) Request(ctx context.Context, userID int64, membershipOK bool) (Result, error) {
	if userID <= 0 {
		return Result{}, ErrValidation
	}
	if s.users == nil || s.catalog == nil || s.ledger == nil {
		return Result{}, fmt.Errorf("delivery dependencies are not configured")
	}
	if !membershipOK {
		return Result{}, ErrNotAMember
	}

	now := s.now().UTC()

	var out Result
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		user, err := s.users.EnsureForUpdate(txCtx, tx, userID, now)
		if err != nil {
			return err
		}

		user, err = s.refreshEntitlement(txCtx, tx, user, now)
		if err != nil {
			return err
		}

		limit := s.limitFor(user.Plan)
		if user.QuotaUsed >= limit {
			return &QuotaExceededError{
				Limit:   limit,
				ResetIn: rules.ResetIn(now, user.WindowAnchor, s.cfg.Window),
			}
		}

		item, err := s.catalog.PickUnseen(txCtx, tx, userID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrNoItemsAvailable) {
				return ErrNoItemsAvailable
			}
			return err
		}

		if err := s.ledger.Record(txCtx, tx, userID, item.ID, now); err != nil {
			if errors.Is(err, pgrepo.ErrAlreadyDelivered) {
				s.logger.Error("delivery dedup invariant violated",
					zap.Int64("user_id", userID),
					zap.Int64("item_id", item.ID),
				)
			}
			return err
		}

		used, err := s.users.ConsumeQuota(txCtx, tx, userID, limit)
		if err != nil {
			if errors.Is(err, pgrepo.ErrQuotaRace) {
				s.logger.Error("quota consume raced past the row lock",
					zap.Int64("user_id", userID),
				)
			}
			return err
		}

		out = Result{
			Item:      item,
			QuotaUsed: used,
			Limit:     limit,
			Plan:      user.Plan,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return out, nil
}

// refreshEntitlement applies the lazy transitions: paid-plan expiry first, then
// the daily window reset. Both recompute purely from now against stored
// timestamps, so reads stay correct without any background sweep.
func (s *Service) refreshEntitlement(ctx context.Context, tx pgx.Tx, user model.User, now time.Time) (model.User, error) {
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

func (s *Service) limitFor(plan enums.Plan) int {
	if plan == enums.PlanPaid {
		return s.cfg.PaidDailyLimit
	}
	return s.cfg.FreeDailyLimit
}
