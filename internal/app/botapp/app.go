package botapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/config"
	"github.com/zetalvx/mediagate/internal/domain/enums"
	tginfra "github.com/zetalvx/mediagate/internal/infra/telegram"
	"github.com/zetalvx/mediagate/internal/infra/upi"
	"github.com/zetalvx/mediagate/internal/jobs/reconcile"
	pgrepo "github.com/zetalvx/mediagate/internal/repo/postgres"
	redrepo "github.com/zetalvx/mediagate/internal/repo/redis"
	catalogsvc "github.com/zetalvx/mediagate/internal/services/catalog"
	deliverysvc "github.com/zetalvx/mediagate/internal/services/delivery"
	entsvc "github.com/zetalvx/mediagate/internal/services/entitlements"
	membershipsvc "github.com/zetalvx/mediagate/internal/services/membership"
	paymentsvc "github.com/zetalvx/mediagate/internal/services/payments"
)

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	bot      *tginfra.Bot

	catalogService     *catalogsvc.Service
	deliveryService    *deliverysvc.Service
	entitlementService *entsvc.Service
	paymentService     *paymentsvc.Service
	membershipService  *membershipsvc.Service
	reconcileJob       *reconcile.Job
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for bot app: %w", err)
	}

	bot, err := tginfra.NewBot(cfg.Bot.Token)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	userRepo := pgrepo.NewUserRepo(pool)
	catalogRepo := pgrepo.NewCatalogRepo(pool)
	deliveryRepo := pgrepo.NewDeliveryRepo(pool)
	transactionRepo := pgrepo.NewTransactionRepo(pool)
	membershipCache := redrepo.NewMembershipCacheRepo(redisClient)

	catalogService := catalogsvc.NewService(catalogRepo, catalogsvc.Config{
		StrictDuplicates: cfg.Catalog.StrictDuplicates,
	}, logger)

	deliveryService := deliverysvc.NewService(deliverysvc.Dependencies{
		Pool:    pool,
		Users:   userRepo,
		Catalog: catalogRepo,
		Ledger:  deliveryRepo,
		Logger:  logger,
	}, deliverysvc.Config{
		FreeDailyLimit: cfg.Quota.FreeDailyLimit,
		PaidDailyLimit: cfg.Quota.PaidDailyLimit,
		Window:         cfg.Quota.Window,
	})

	entitlementService := entsvc.NewService(entsvc.Dependencies{
		Pool:  pool,
		Users: userRepo,
	}, entsvc.Config{
		FreeDailyLimit: cfg.Quota.FreeDailyLimit,
		PaidDailyLimit: cfg.Quota.PaidDailyLimit,
		Window:         cfg.Quota.Window,
		PaidValidity:   cfg.Plan.PaidValidity,
	})

	provider, err := upi.NewClient(upi.Config{
		BaseURL:    cfg.Payment.BaseURL,
		MerchantID: cfg.Payment.MerchantID,
		SaltKey:    cfg.Payment.SaltKey,
		SaltIndex:  cfg.Payment.SaltIndex,
		Timeout:    cfg.Payment.PollTimeout,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init payment provider client: %w", err)
	}

	paymentService := paymentsvc.NewService(paymentsvc.Dependencies{
		Pool:         pool,
		Transactions: transactionRepo,
		Plans:        entitlementService,
		Provider:     provider,
		Logger:       logger,
	}, paymentsvc.Config{
		PendingTTL: cfg.Payment.PendingTTL,
	})

	membershipService := membershipsvc.NewService(bot, membershipCache, membershipsvc.Config{
		Channel:  cfg.Bot.MembershipChannel,
		CacheTTL: cfg.Bot.MembershipCacheTTL,
	}, logger)

	app := &App{
		cfg:                cfg,
		logger:             logger,
		postgres:           pool,
		redis:              redisClient,
		bot:                bot,
		catalogService:     catalogService,
		deliveryService:    deliveryService,
		entitlementService: entitlementService,
		paymentService:     paymentService,
		membershipService:  membershipService,
	}
	app.reconcileJob = reconcile.New(paymentService, app, cfg.Payment.PollInterval, logger)

	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started")

	errCh := make(chan error, 2)
	go func() {
		errCh <- a.runReconcileLoop(ctx)
	}()
	go func() {
		errCh <- a.bot.Listen(ctx, tginfra.Handlers{
			OnCommand:     a.handleCommand,
			OnText:        a.handleText,
			OnCallback:    a.handleCallback,
			OnChannelPost: a.handleChannelPost,
		})
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

func (a *App) runReconcileLoop(ctx context.Context) error {
	interval := a.cfg.Payment.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.reconcileJob.Run(ctx); err != nil {
				a.logger.Error("payment reconcile pass failed", zap.Error(err))
			}
		}
	}
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// NotifyOutcome tells the user how a reconciled payment settled.
func (a *App) NotifyOutcome(ctx context.Context, res paymentsvc.PollResult) error {
	var text string
	switch res.Status {
	case enums.TransactionConfirmed:
		text = paymentSuccessText
	case enums.TransactionFailed:
		text = paymentFailedText
	case enums.TransactionExpired:
		text = paymentExpiredText
	default:
		return nil
	}
	return a.bot.SendText(ctx, res.UserID, text)
}

// logActivity mirrors user activity to the configured channel. Best effort.
func (a *App) logActivity(ctx context.Context, text string) {
	channel := strings.TrimSpace(a.cfg.Bot.ActivityChannel)
	if channel == "" {
		return
	}
	if err := a.bot.SendTextToChannel(ctx, channel, text); err != nil {
		a.logger.Warn("failed to log user activity", zap.Error(err))
	}
}
