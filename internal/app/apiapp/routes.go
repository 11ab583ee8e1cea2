package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/config"
	catalogsvc "github.com/zetalvx/mediagate/internal/services/catalog"
	entsvc "github.com/zetalvx/mediagate/internal/services/entitlements"
	paymentsvc "github.com/zetalvx/mediagate/internal/services/payments"
	"github.com/zetalvx/mediagate/internal/transport/http/handlers"
)

type Dependencies struct {
	CatalogService     *catalogsvc.Service
	EntitlementService *entsvc.Service
	PaymentService     *paymentsvc.Service
	Logger             *zap.Logger
	Config             config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	catalogHandler := handlers.NewCatalogHandler(deps.CatalogService)
	entitlementHandler := handlers.NewEntitlementHandler(deps.EntitlementService)
	paymentHandler := handlers.NewPaymentHandler(deps.PaymentService, deps.EntitlementService)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/users/{id}/entitlement", entitlementHandler.Get)
		r.Post("/catalog/items", catalogHandler.Add)
		r.Get("/catalog/stats", catalogHandler.Stats)
		r.Post("/payments", paymentHandler.Initiate)
		r.Post("/payments/{ref}/poll", paymentHandler.Poll)
		r.Post("/payments/expire-stale", paymentHandler.ExpireStale)
	})
}
