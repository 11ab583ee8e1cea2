package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
	pgrepo "github.com/zetalvx/mediagate/internal/repo/postgres"
	catalogsvc "github.com/zetalvx/mediagate/internal/services/catalog"
	"github.com/zetalvx/mediagate/internal/transport/http/dto"
)

type stubCatalogStore struct {
	items  map[string]model.ContentItem
	nextID int64
}

func newStubCatalogStore() *stubCatalogStore {
	return &stubCatalogStore{items: make(map[string]model.ContentItem)}
}

func (s *stubCatalogStore) Add(_ context.Context, fileRef string, kind enums.ContentKind) (model.ContentItem, error) {
	if _, ok := s.items[fileRef]; ok {
		return model.ContentItem{}, pgrepo.ErrDuplicateItem
	}
	s.nextID++
	item := model.ContentItem{ID: s.nextID, FileRef: fileRef, Kind: kind}
	s.items[fileRef] = item
	return item, nil
}

func (s *stubCatalogStore) Count(context.Context) (int64, error) {
	return int64(len(s.items)), nil
}

func newCatalogHandler() *CatalogHandler {
	svc := catalogsvc.NewService(newStubCatalogStore(), catalogsvc.Config{StrictDuplicates: true}, zap.NewNop())
	return NewCatalogHandler(svc)
}

func TestCatalogAdd(t *testing.T) {
	handler := newCatalogHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/catalog/items",
		strings.NewReader(`{"file_ref":"abc123","kind":"video"}`))
	rec := httptest.NewRecorder()
	handler.Add(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	var payload dto.CatalogAddResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.FileRef != "abc123" || payload.Kind != "video" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.ItemID == 0 {
		t.Fatal("item id missing")
	}
}

func TestCatalogAddDuplicate(t *testing.T) {
	handler := newCatalogHandler()

	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		req := httptest.NewRequest(http.MethodPost, "/v1/catalog/items",
			strings.NewReader(`{"file_ref":"abc123","kind":"video"}`))
		rec := httptest.NewRecorder()
		handler.Add(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: status = %d, want %d", i, rec.Code, want)
		}
	}
}

func TestCatalogAddValidation(t *testing.T) {
	handler := newCatalogHandler()

	cases := []string{
		`{"file_ref":"","kind":"video"}`,
		`{"file_ref":"abc","kind":"gif"}`,
		`not json`,
		`{"file_ref":"abc","kind":"video","extra":true}`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/catalog/items", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.Add(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestCatalogStats(t *testing.T) {
	handler := newCatalogHandler()

	req := httptest.NewRequest(http.MethodPost, "/v1/catalog/items",
		strings.NewReader(`{"file_ref":"abc123","kind":"photo"}`))
	handler.Add(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	handler.Stats(rec, httptest.NewRequest(http.MethodGet, "/v1/catalog/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload dto.CatalogStatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Items != 1 {
		t.Fatalf("items = %d, want 1", payload.Items)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().Get(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
