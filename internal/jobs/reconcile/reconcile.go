package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/domain/model"
	paymentsvc "github.com/zetalvx/mediagate/internal/services/payments"
)

const pollBatchSize = 100

// Payments is the slice of the payment workflow the job drives.
type Payments interface {
	ListPollable(ctx context.Context, olderThan time.Duration, limit int) ([]model.Transaction, error)
	Poll(ctx context.Context, ref string) (paymentsvc.PollResult, error)
}

// Notifier delivers the settlement outcome back to the user. Failures are
// logged and do not block the pass.
type Notifier interface {
	NotifyOutcome(ctx context.Context, res paymentsvc.PollResult) error
}

// Job re-polls pending transactions until they settle or expire, so a user who
// pays and walks away still gets upgraded.
type Job struct {
	payments Payments
	notifier Notifier
	minAge   time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(payments Payments, notifier Notifier, minAge time.Duration, logger *zap.Logger) *Job {
	if minAge <= 0 {
		minAge = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		payments: payments,
		notifier: notifier,
		minAge:   minAge,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one reconcile pass. Poll handles TTL expiry itself, so a stale
// transaction settles as expired on its next visit here.
func (j *Job) Run(ctx context.Context) error {
	if j.payments == nil {
		return errors.New("payments dependency is nil")
	}

	pending, err := j.payments.ListPollable(ctx, j.minAge, pollBatchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	settled := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := j.payments.Poll(ctx, rec.Ref)
		if err != nil {
			if errors.Is(err, paymentsvc.ErrPaymentUnknown) {
				continue
			}
			j.logger.Error("reconcile poll failed",
				zap.String("ref", rec.Ref),
				zap.Error(err),
			)
			continue
		}
		if !res.Status.Terminal() {
			continue
		}

		settled++
		j.logger.Info("transaction settled by reconcile",
			zap.String("ref", res.Ref),
			zap.Int64("user_id", res.UserID),
			zap.String("status", string(res.Status)),
		)

		if j.notifier != nil {
			if err := j.notifier.NotifyOutcome(ctx, res); err != nil {
				j.logger.Warn("settlement notification failed",
					zap.String("ref", res.Ref),
					zap.Error(err),
				)
			}
		}
	}

	if settled > 0 {
		j.logger.Info("reconcile pass finished",
			zap.Int("checked", len(pending)),
			zap.Int("settled", settled),
		)
	}
	return nil
}
