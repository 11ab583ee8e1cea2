package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/config"
	"github.com/zetalvx/mediagate/internal/infra/upi"
	pgrepo "github.com/zetalvx/mediagate/internal/repo/postgres"
	catalogsvc "github.com/zetalvx/mediagate/internal/services/catalog"
	entsvc "github.com/zetalvx/mediagate/internal/services/entitlements"
	paymentsvc "github.com/zetalvx/mediagate/internal/services/payments"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	userRepo := pgrepo.NewUserRepo(pool)
	catalogRepo := pgrepo.NewCatalogRepo(pool)
	transactionRepo := pgrepo.NewTransactionRepo(pool)

	catalogService := catalogsvc.NewService(catalogRepo, catalogsvc.Config{
		StrictDuplicates: true,
	}, log)

	entitlementService := entsvc.NewService(entsvc.Dependencies{
		Pool:  pool,
		Users: userRepo,
	}, entsvc.Config{
		FreeDailyLimit: cfg.Quota.FreeDailyLimit,
		PaidDailyLimit: cfg.Quota.PaidDailyLimit,
		Window:         cfg.Quota.Window,
		PaidValidity:   cfg.Plan.PaidValidity,
	})

	var provider paymentsvc.Provider
	if c, err := upi.NewClient(upi.Config{
		BaseURL:    cfg.Payment.BaseURL,
		MerchantID: cfg.Payment.MerchantID,
		SaltKey:    cfg.Payment.SaltKey,
		SaltIndex:  cfg.Payment.SaltIndex,
		Timeout:    cfg.Payment.PollTimeout,
	}); err != nil {
		log.Warn("payment provider init failed, continuing in degraded mode", zap.Error(err))
	} else {
		provider = c
	}

	paymentService := paymentsvc.NewService(paymentsvc.Dependencies{
		Pool:         pool,
		Transactions: transactionRepo,
		Plans:        entitlementService,
		Provider:     provider,
		Logger:       log,
	}, paymentsvc.Config{
		PendingTTL: cfg.Payment.PendingTTL,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		CatalogService:     catalogService,
		EntitlementService: entitlementService,
		PaymentService:     paymentService,
		Logger:             log,
		Config:             cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
