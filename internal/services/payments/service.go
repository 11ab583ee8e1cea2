package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
	"github.com/zetalvx/mediagate/internal/pkg/validate"
	pgrepo "github.com/zetalvx/mediagate/internal/repo/postgres"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrPaymentUnknown means the provider could not be reached or gave no
	// verdict. The transaction stays pending and the poll may be repeated.
	// Never conflated with an explicit provider failure.
	ErrPaymentUnknown = errors.New("payment status unknown, retry later")
)

// ProviderStatus is the provider's settlement verdict for one status query.
type ProviderStatus string

const (
	ProviderCaptured ProviderStatus = "captured"
	ProviderFailed   ProviderStatus = "failed"
	ProviderUnknown  ProviderStatus = "unknown"
)

// Provider is the external payment oracle. CheckStatus performs exactly one
// bounded status query; a transport-level failure is returned as an error and
// treated as unknown, not as a failed payment.
type Provider interface {
	CheckStatus(ctx context.Context, ref string) (ProviderStatus, error)
}

type TransactionStore interface {
	CreatePending(ctx context.Context, ref string, userID int64, now time.Time) (model.Transaction, error)
	Get(ctx context.Context, ref string) (model.Transaction, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, ref string) (model.Transaction, error)
	Settle(ctx context.Context, tx pgx.Tx, ref string, status enums.TransactionStatus) (bool, error)
	ListPendingCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Transaction, error)
}

type PlanUpgrader interface {
	Upgrade(ctx context.Context, tx pgx.Tx, userID int64, now time.Time) (time.Time, error)
}

type Config struct {
	PendingTTL time.Duration
}

type PollResult struct {
	Ref           string
	UserID        int64
	Status        enums.TransactionStatus
	PlanExpiresAt *time.Time
}

type Service struct {
	transactions TransactionStore
	plans        PlanUpgrader
	provider     Provider
	cfg          Config
	logger       *zap.Logger
	now          func() time.Time
	newRef       func(userID int64) string
	runTx        func(context.Context, func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool         *pgxpool.Pool
	Transactions TransactionStore
	Plans        PlanUpgrader
	Provider     Provider
	Logger       *zap.Logger
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 30 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool := deps.Pool
	return &Service{
		transactions: deps.Transactions,
		plans:        deps.Plans,
		provider:     deps.Provider,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		newRef:       newTransactionRef,
		runTx: func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
			return pgrepo.WithTx(ctx, pool, fn)
		},
	}
}

// Initiate opens a pending transaction and returns its reference. A reference
// collision is an integrity fault and is surfaced loudly rather than retried.
func (s *Service) Initiate(ctx context.Context, userID int64) (model.Transaction, error) {
	if userID <= 0 {
		return model.Transaction{}, ErrValidation
	}
	if s.transactions == nil {
		return model.Transaction{}, fmt.Errorf("transaction store is nil")
	}

	ref := s.newRef(userID)
	rec, err := s.transactions.CreatePending(ctx, ref, userID, s.now().UTC())
	if err != nil {
		if errors.Is(err, pgrepo.ErrTransactionRefCollision) {
			s.logger.Error("transaction ref collision",
				zap.String("ref", ref),
				zap.Int64("user_id", userID),
			)
		}
		return model.Transaction{}, err
	}
	return rec, nil
}

// Poll queries the provider once and settles the transaction accordingly:
// captured confirms it and upgrades the plan in the same database transaction,
// an explicit provider failure marks it failed, and anything else leaves it
// pending for a later poll. A pending transaction past the TTL expires without
// consulting the provider.
func (s *Service) Poll(ctx context.Context, ref string) (PollResult, error) {
	if !validate.Required(ref) {
		return PollResult{}, ErrValidation
	}
	if s.transactions == nil || s.plans == nil || s.provider == nil {
		return PollResult{}, fmt.Errorf("payment dependencies are not configured")
	}

	now := s.now().UTC()

	current, err := s.transactions.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, pgrepo.ErrTransactionNotFound) {
			return PollResult{}, ErrTransactionNotFound
		}
		return PollResult{}, err
	}
	if current.Status.Terminal() {
		return PollResult{Ref: current.Ref, UserID: current.UserID, Status: current.Status}, nil
	}

	if now.Sub(current.CreatedAt) >= s.cfg.PendingTTL {
		return s.settle(ctx, ref, enums.TransactionExpired, now)
	}

	status, err := s.provider.CheckStatus(ctx, ref)
	if err != nil {
		s.logger.Warn("payment provider unreachable",
			zap.String("ref", ref),
			zap.Error(err),
		)
		return PollResult{}, ErrPaymentUnknown
	}

	switch status {
	case ProviderCaptured:
		return s.settle(ctx, ref, enums.TransactionConfirmed, now)
	case ProviderFailed:
		return s.settle(ctx, ref, enums.TransactionFailed, now)
	default:
		return PollResult{}, ErrPaymentUnknown
	}
}

// ExpireStale expires pending transactions older than the TTL. Returns how many
// were expired. Called from the reconcile job.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	if s.transactions == nil {
		return 0, fmt.Errorf("transaction store is nil")
	}

	now := s.now().UTC()
	stale, err := s.transactions.ListPendingCreatedBefore(ctx, now.Add(-s.cfg.PendingTTL), 100)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, rec := range stale {
		if _, err := s.settle(ctx, rec.Ref, enums.TransactionExpired, now); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// ListPollable returns pending transactions due for a provider poll.
func (s *Service) ListPollable(ctx context.Context, olderThan time.Duration, limit int) ([]model.Transaction, error) {
	if s.transactions == nil {
		return nil, fmt.Errorf("transaction store is nil")
	}
	cutoff := s.now().UTC().Add(-olderThan)
	return s.transactions.ListPendingCreatedBefore(ctx, cutoff, limit)
}

func (s *Service) settle(ctx context.Context, ref string, status enums.TransactionStatus, now time.Time) (PollResult, error) {
	var out PollResult
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := s.transactions.GetForUpdate(txCtx, tx, ref)
		if err != nil {
			if errors.Is(err, pgrepo.ErrTransactionNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}

		// Lost the race to another poll or the sweep; report what stands.
		if rec.Status.Terminal() {
			out = PollResult{Ref: rec.Ref, UserID: rec.UserID, Status: rec.Status}
			return nil
		}

		changed, err := s.transactions.Settle(txCtx, tx, ref, status)
		if err != nil {
			return err
		}
		if !changed {
			out = PollResult{Ref: rec.Ref, UserID: rec.UserID, Status: rec.Status}
			return nil
		}

		out = PollResult{Ref: rec.Ref, UserID: rec.UserID, Status: status}

		if status == enums.TransactionConfirmed {
			expiresAt, err := s.plans.Upgrade(txCtx, tx, rec.UserID, now)
			if err != nil {
				return err
			}
			out.PlanExpiresAt = &expiresAt
		}
		return nil
	})
	if err != nil {
		return PollResult{}, err
	}
	return out, nil
}

func newTransactionRef(userID int64) string {
	return fmt.Sprintf("txn_%d_%s", userID, uuid.NewString())
}
