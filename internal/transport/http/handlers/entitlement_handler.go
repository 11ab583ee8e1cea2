package handlers

import (
	"errors"
	"net/http"

	entsvc "github.com/zetalvx/mediagate/internal/services/entitlements"
	"github.com/zetalvx/mediagate/internal/transport/http/dto"
	httperrors "github.com/zetalvx/mediagate/internal/transport/http/errors"
)

type EntitlementHandler struct {
	service *entsvc.Service
}

func NewEntitlementHandler(service *entsvc.Service) *EntitlementHandler {
	return &EntitlementHandler{service: service}
}

func (h *EntitlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "ENTITLEMENT_SERVICE_UNAVAILABLE", "entitlement service is unavailable")
		return
	}

	userID, ok := userIDFromURL(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	snap, err := h.service.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, entsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load entitlement")
		return
	}

	httperrors.Write(w, http.StatusOK, mapEntitlementSnapshot(snap))
}

func mapEntitlementSnapshot(snap entsvc.Snapshot) dto.EntitlementResponse {
	return dto.EntitlementResponse{
		UserID:        snap.UserID,
		Plan:          string(snap.Plan),
		QuotaUsed:     snap.QuotaUsed,
		Limit:         snap.Limit,
		ResetAt:       nowUTC().Add(snap.ResetIn),
		PlanExpiresAt: snap.PlanExpiresAt,
	}
}
