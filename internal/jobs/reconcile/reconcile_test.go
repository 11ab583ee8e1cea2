package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
	paymentsvc "github.com/zetalvx/mediagate/internal/services/payments"
)

type fakePayments struct {
	pending []model.Transaction
	results map[string]paymentsvc.PollResult
	errs    map[string]error
	polled  []string
}

func (f *fakePayments) ListPollable(context.Context, time.Duration, int) ([]model.Transaction, error) {
	return f.pending, nil
}

func (f *fakePayments) Poll(_ context.Context, ref string) (paymentsvc.PollResult, error) {
	f.polled = append(f.polled, ref)
	if err := f.errs[ref]; err != nil {
		return paymentsvc.PollResult{}, err
	}
	return f.results[ref], nil
}

type fakeNotifier struct {
	notified []paymentsvc.PollResult
}

func (f *fakeNotifier) NotifyOutcome(_ context.Context, res paymentsvc.PollResult) error {
	f.notified = append(f.notified, res)
	return nil
}

func pendingTxn(ref string, userID int64) model.Transaction {
	return model.Transaction{Ref: ref, UserID: userID, Status: enums.TransactionPending}
}

func TestRunSettlesAndNotifies(t *testing.T) {
	payments := &fakePayments{
		pending: []model.Transaction{pendingTxn("txn_a", 1), pendingTxn("txn_b", 2)},
		results: map[string]paymentsvc.PollResult{
			"txn_a": {Ref: "txn_a", UserID: 1, Status: enums.TransactionConfirmed},
			"txn_b": {Ref: "txn_b", UserID: 2, Status: enums.TransactionExpired},
		},
		errs: map[string]error{},
	}
	notifier := &fakeNotifier{}
	job := New(payments, notifier, time.Minute, zap.NewNop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payments.polled) != 2 {
		t.Fatalf("polled %d transactions, want 2", len(payments.polled))
	}
	if len(notifier.notified) != 2 {
		t.Fatalf("notified %d outcomes, want 2", len(notifier.notified))
	}
}

func TestRunSkipsUnknownVerdicts(t *testing.T) {
	payments := &fakePayments{
		pending: []model.Transaction{pendingTxn("txn_a", 1)},
		results: map[string]paymentsvc.PollResult{},
		errs:    map[string]error{"txn_a": paymentsvc.ErrPaymentUnknown},
	}
	notifier := &fakeNotifier{}
	job := New(payments, notifier, time.Minute, zap.NewNop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.notified) != 0 {
		t.Fatal("an unknown verdict must not notify the user")
	}
}

func TestRunContinuesPastPollErrors(t *testing.T) {
	payments := &fakePayments{
		pending: []model.Transaction{pendingTxn("txn_a", 1), pendingTxn("txn_b", 2)},
		results: map[string]paymentsvc.PollResult{
			"txn_b": {Ref: "txn_b", UserID: 2, Status: enums.TransactionFailed},
		},
		errs: map[string]error{"txn_a": errors.New("db down")},
	}
	notifier := &fakeNotifier{}
	job := New(payments, notifier, time.Minute, zap.NewNop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.notified) != 1 || notifier.notified[0].Ref != "txn_b" {
		t.Fatalf("notified = %+v, want only txn_b", notifier.notified)
	}
}

func TestRunWithoutNotifier(t *testing.T) {
	payments := &fakePayments{
		pending: []model.Transaction{pendingTxn("txn_a", 1)},
		results: map[string]paymentsvc.PollResult{
			"txn_a": {Ref: "txn_a", UserID: 1, Status: enums.TransactionConfirmed},
		},
		errs: map[string]error{},
	}
	job := New(payments, nil, time.Minute, zap.NewNop())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
