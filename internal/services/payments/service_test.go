package payments

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
	pgrepo "github.com/zetalvx/mediagate/internal/repo/postgres"
)

type fakeTransactionStore struct {
	mu           sync.Mutex
	transactions map[string]*model.Transaction
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{transactions: make(map[string]*model.Transaction)}
}

func (f *fakeTransactionStore) CreatePending(_ context.Context, ref string, userID int64, now time.Time) (model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.transactions[ref]; ok {
		return model.Transaction{}, pgrepo.ErrTransactionRefCollision
	}
	rec := &model.Transaction{
		Ref:       ref,
		UserID:    userID,
		Status:    enums.TransactionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.transactions[ref] = rec
	return *rec, nil
}

func (f *fakeTransactionStore) Get(_ context.Context, ref string) (model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.transactions[ref]
	if !ok {
		return model.Transaction{}, pgrepo.ErrTransactionNotFound
	}
	return *rec, nil
}

func (f *fakeTransactionStore) GetForUpdate(ctx context.Context, _ pgx.Tx, ref string) (model.Transaction, error) {
	return f.Get(ctx, ref)
}

func (f *fakeTransactionStore) Settle(_ context.Context, _ pgx.Tx, ref string, status enums.TransactionStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.transactions[ref]
	if !ok || rec.Status != enums.TransactionPending {
		return false, nil
	}
	rec.Status = status
	return true, nil
}

func (f *fakeTransactionStore) ListPendingCreatedBefore(_ context.Context, cutoff time.Time, limit int) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Transaction
	for _, rec := range f.transactions {
		if rec.Status == enums.TransactionPending && !rec.CreatedAt.After(cutoff) {
			out = append(out, *rec)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeProvider struct {
	status ProviderStatus
	err    error
	calls  int
}

func (f *fakeProvider) CheckStatus(context.Context, string) (ProviderStatus, error) {
	f.calls++
	return f.status, f.err
}

type fakeUpgrader struct {
	calls     int
	expiresAt time.Time
}

func (f *fakeUpgrader) Upgrade(_ context.Context, _ pgx.Tx, _ int64, now time.Time) (time.Time, error) {
	f.calls++
	f.expiresAt = now.Add(29 * 24 * time.Hour)
	return f.expiresAt, nil
}

func newTestService(store *fakeTransactionStore, provider Provider, upgrader *fakeUpgrader, cfg Config) *Service {
	svc := NewService(Dependencies{
		Transactions: store,
		Plans:        upgrader,
		Provider:     provider,
		Logger:       zap.NewNop(),
	}, cfg)
	svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	return svc
}

func TestInitiateCreatesPending(t *testing.T) {
	store := newFakeTransactionStore()
	svc := newTestService(store, &fakeProvider{}, &fakeUpgrader{}, Config{})

	rec, err := svc.Initiate(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(rec.Ref, "txn_7_") {
		t.Fatalf("ref = %q, want txn_7_ prefix", rec.Ref)
	}
	if rec.Status != enums.TransactionPending {
		t.Fatalf("status = %s, want pending", rec.Status)
	}
}

func TestInitiateRefCollision(t *testing.T) {
	store := newFakeTransactionStore()
	svc := newTestService(store, &fakeProvider{}, &fakeUpgrader{}, Config{})
	svc.newRef = func(int64) string { return "txn_fixed" }

	if _, err := svc.Initiate(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Initiate(context.Background(), 7)
	if !errors.Is(err, pgrepo.ErrTransactionRefCollision) {
		t.Fatalf("expected ref collision, got %v", err)
	}
}

func TestPollCapturedConfirmsAndUpgrades(t *testing.T) {
	store := newFakeTransactionStore()
	provider := &fakeProvider{status: ProviderCaptured}
	upgrader := &fakeUpgrader{}
	svc := newTestService(store, provider, upgrader, Config{})

	rec, err := svc.Initiate(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := svc.Poll(context.Background(), rec.Ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != enums.TransactionConfirmed {
		t.Fatalf("status = %s, want confirmed", res.Status)
	}
	if upgrader.calls != 1 {
		t.Fatalf("upgrade calls = %d, want 1", upgrader.calls)
	}
	if res.PlanExpiresAt == nil || !res.PlanExpiresAt.Equal(upgrader.expiresAt) {
		t.Fatalf("plan expires at = %v, want %s", res.PlanExpiresAt, upgrader.expiresAt)
	}
}

func TestPollFailedDoesNotUpgrade(t *testing.T) {
	store := newFakeTransactionStore()
	upgrader := &fakeUpgrader{}
	svc := newTestService(store, &fakeProvider{status: ProviderFailed}, upgrader, Config{})

	rec, _ := svc.Initiate(context.Background(), 7)

	res, err := svc.Poll(context.Background(), rec.Ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != enums.TransactionFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if upgrader.calls != 0 {
		t.Fatal("failed payment must not upgrade the plan")
	}
}

func TestPollUnknownStaysPending(t *testing.T) {
	store := newFakeTransactionStore()
	provider := &fakeProvider{status: ProviderUnknown}
	upgrader := &fakeUpgrader{}
	svc := newTestService(store, provider, upgrader, Config{})

	rec, _ := svc.Initiate(context.Background(), 7)

	if _, err := svc.Poll(context.Background(), rec.Ref); !errors.Is(err, ErrPaymentUnknown) {
		t.Fatalf("expected ErrPaymentUnknown, got %v", err)
	}
	if got, _ := store.Get(context.Background(), rec.Ref); got.Status != enums.TransactionPending {
		t.Fatalf("status = %s, want still pending", got.Status)
	}

	// The verdict arriving later settles the same transaction.
	provider.status = ProviderCaptured
	res, err := svc.Poll(context.Background(), rec.Ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != enums.TransactionConfirmed {
		t.Fatalf("status = %s, want confirmed", res.Status)
	}
}

func TestPollProviderErrorIsUnknownNotFailed(t *testing.T) {
	store := newFakeTransactionStore()
	upgrader := &fakeUpgrader{}
	svc := newTestService(store, &fakeProvider{err: errors.New("connection refused")}, upgrader, Config{})

	rec, _ := svc.Initiate(context.Background(), 7)

	if _, err := svc.Poll(context.Background(), rec.Ref); !errors.Is(err, ErrPaymentUnknown) {
		t.Fatalf("expected ErrPaymentUnknown, got %v", err)
	}
	if got, _ := store.Get(context.Background(), rec.Ref); got.Status != enums.TransactionPending {
		t.Fatalf("status = %s, want pending; a transport error is not a failed payment", got.Status)
	}
}

func TestPollExpiresStaleWithoutProviderCall(t *testing.T) {
	store := newFakeTransactionStore()
	provider := &fakeProvider{status: ProviderCaptured}
	svc := newTestService(store, provider, &fakeUpgrader{}, Config{PendingTTL: 30 * time.Minute})

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }

	rec, _ := svc.Initiate(context.Background(), 7)

	current = current.Add(31 * time.Minute)

	res, err := svc.Poll(context.Background(), rec.Ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != enums.TransactionExpired {
		t.Fatalf("status = %s, want expired", res.Status)
	}
	if provider.calls != 0 {
		t.Fatal("an expired transaction must not be checked with the provider")
	}
}

func TestPollTerminalIsIdempotent(t *testing.T) {
	store := newFakeTransactionStore()
	provider := &fakeProvider{status: ProviderCaptured}
	upgrader := &fakeUpgrader{}
	svc := newTestService(store, provider, upgrader, Config{})

	rec, _ := svc.Initiate(context.Background(), 7)

	if _, err := svc.Poll(context.Background(), rec.Ref); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := svc.Poll(context.Background(), rec.Ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != enums.TransactionConfirmed {
		t.Fatalf("status = %s, want confirmed", res.Status)
	}
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1; terminal polls must not re-check", provider.calls)
	}
	if upgrader.calls != 1 {
		t.Fatalf("upgrade calls = %d, want 1", upgrader.calls)
	}
}

func TestPollNotFound(t *testing.T) {
	svc := newTestService(newFakeTransactionStore(), &fakeProvider{}, &fakeUpgrader{}, Config{})
	if _, err := svc.Poll(context.Background(), "txn_missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestExpireStale(t *testing.T) {
	store := newFakeTransactionStore()
	svc := newTestService(store, &fakeProvider{status: ProviderUnknown}, &fakeUpgrader{}, Config{PendingTTL: 30 * time.Minute})

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }

	old, _ := svc.Initiate(context.Background(), 7)
	current = current.Add(31 * time.Minute)
	fresh, _ := svc.Initiate(context.Background(), 8)

	expired, err := svc.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	if got, _ := store.Get(context.Background(), old.Ref); got.Status != enums.TransactionExpired {
		t.Fatalf("old status = %s, want expired", got.Status)
	}
	if got, _ := store.Get(context.Background(), fresh.Ref); got.Status != enums.TransactionPending {
		t.Fatalf("fresh status = %s, want pending", got.Status)
	}
}
