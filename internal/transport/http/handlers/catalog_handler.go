package handlers

import (
	"errors"
	"net/http"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	catalogsvc "github.com/zetalvx/mediagate/internal/services/catalog"
	"github.com/zetalvx/mediagate/internal/transport/http/dto"
	httperrors "github.com/zetalvx/mediagate/internal/transport/http/errors"
)

type CatalogHandler struct {
	service *catalogsvc.Service
}

func NewCatalogHandler(service *catalogsvc.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

func (h *CatalogHandler) Add(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	var req dto.CatalogAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	item, err := h.service.Add(r.Context(), req.FileRef, enums.ContentKind(req.Kind))
	if err != nil {
		switch {
		case errors.Is(err, catalogsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid catalog item payload")
		case errors.Is(err, catalogsvc.ErrDuplicateItem):
			writeConflict(w, "DUPLICATE_ITEM", "content item already in catalog")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to add catalog item")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.CatalogAddResponse{
		ItemID:    item.ID,
		FileRef:   item.FileRef,
		Kind:      string(item.Kind),
		CreatedAt: item.CreatedAt,
	})
}

func (h *CatalogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	count, err := h.service.Count(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load catalog stats")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CatalogStatsResponse{Items: count})
}
