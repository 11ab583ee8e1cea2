package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	entsvc "github.com/zetalvx/mediagate/internal/services/entitlements"
	paymentsvc "github.com/zetalvx/mediagate/internal/services/payments"
	"github.com/zetalvx/mediagate/internal/transport/http/dto"
	httperrors "github.com/zetalvx/mediagate/internal/transport/http/errors"
)

type PaymentHandler struct {
	service      *paymentsvc.Service
	entitlements *entsvc.Service
}

func NewPaymentHandler(service *paymentsvc.Service, entitlements *entsvc.Service) *PaymentHandler {
	return &PaymentHandler{service: service, entitlements: entitlements}
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	if h.service == nil || h.entitlements == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	var req dto.PaymentInitiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.entitlements.Register(r.Context(), req.UserID); err != nil {
		if errors.Is(err, entsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid payment initiate payload")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to initiate payment")
		return
	}

	rec, err := h.service.Initiate(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, paymentsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid payment initiate payload")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to initiate payment")
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.PaymentInitiateResponse{
		Ref:       rec.Ref,
		UserID:    rec.UserID,
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
	})
}

func (h *PaymentHandler) Poll(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	ref := strings.TrimSpace(chi.URLParam(r, "ref"))
	if ref == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "transaction ref is required")
		return
	}

	res, err := h.service.Poll(r.Context(), ref)
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid transaction ref")
		case errors.Is(err, paymentsvc.ErrTransactionNotFound):
			writeNotFound(w, "TRANSACTION_NOT_FOUND", "transaction not found")
		case errors.Is(err, paymentsvc.ErrPaymentUnknown):
			httperrors.Write(w, http.StatusAccepted, httperrors.APIError{
				Code:    "PAYMENT_PENDING",
				Message: "payment status unknown, poll again later",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to poll payment")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentPollResponse{
		Ref:           res.Ref,
		UserID:        res.UserID,
		Status:        string(res.Status),
		PlanExpiresAt: res.PlanExpiresAt,
	})
}

func (h *PaymentHandler) ExpireStale(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "PAYMENT_SERVICE_UNAVAILABLE", "payment service is unavailable")
		return
	}

	expired, err := h.service.ExpireStale(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to expire stale transactions")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentExpireStaleResponse{Expired: expired})
}
