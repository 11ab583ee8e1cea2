package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
	"github.com/zetalvx/mediagate/internal/pkg/validate"
	pgrepo "github.com/zetalvx/mediagate/internal/repo/postgres"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrDuplicateItem = errors.New("content item already in catalog")
)

type Store interface {
	Add(ctx context.Context, fileRef string, kind enums.ContentKind) (model.ContentItem, error)
	Count(ctx context.Context) (int64, error)
}

type Config struct {
	// StrictDuplicates controls the Ingest policy for an already-known file
	// ref: reject when true, log-and-skip when false.
	StrictDuplicates bool
}

type Service struct {
	store  Store
	cfg    Config
	logger *zap.Logger
}

func NewService(store Store, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, cfg: cfg, logger: logger}
}

// Add appends an item, rejecting duplicates unconditionally. Used by the ops
// API where the caller wants to know about the conflict.
func (s *Service) Add(ctx context.Context, fileRef string, kind enums.ContentKind) (model.ContentItem, error) {
	if !validate.Required(fileRef) || !kind.Valid() {
		return model.ContentItem{}, ErrValidation
	}
	if s.store == nil {
		return model.ContentItem{}, fmt.Errorf("catalog store is nil")
	}

	item, err := s.store.Add(ctx, fileRef, kind)
	if err != nil {
		if errors.Is(err, pgrepo.ErrDuplicateItem) {
			return model.ContentItem{}, ErrDuplicateItem
		}
		return model.ContentItem{}, err
	}
	return item, nil
}

// Ingest appends an item arriving from the source channel. Duplicate refs are
// skipped quietly unless strict mode is on; channel history replays make them
// routine.
func (s *Service) Ingest(ctx context.Context, fileRef string, kind enums.ContentKind) (model.ContentItem, bool, error) {
	item, err := s.Add(ctx, fileRef, kind)
	if err != nil {
		if errors.Is(err, ErrDuplicateItem) && !s.cfg.StrictDuplicates {
			s.logger.Debug("skipping duplicate catalog item",
				zap.String("file_ref", fileRef),
				zap.String("kind", string(kind)),
			)
			return model.ContentItem{}, false, nil
		}
		return model.ContentItem{}, false, err
	}
	return item, true, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, fmt.Errorf("catalog store is nil")
	}
	return s.store.Count(ctx)
}
