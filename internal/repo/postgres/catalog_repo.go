package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zetalvx/mediagate/internal/domain/enums"
	"github.com/zetalvx/mediagate/internal/domain/model"
)

var (
	ErrDuplicateItem    = errors.New("content item already in catalog")
	ErrNoItemsAvailable = errors.New("no unseen items available")
)

type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

func (r *CatalogRepo) Add(ctx context.Context, fileRef string, kind enums.ContentKind) (model.ContentItem, error) {
	fileRef = strings.TrimSpace(fileRef)
	if fileRef == "" {
		return model.ContentItem{}, fmt.Errorf("file ref is required")
	}
	if !kind.Valid() {
		return model.ContentItem{}, fmt.Errorf("invalid content kind: %s", kind)
	}
	if r.pool == nil {
		return model.ContentItem{}, fmt.Errorf("postgres pool is nil")
	}

	var item model.ContentItem
	var kindRaw string
	err := r.pool.QueryRow(ctx, `
INSERT INTO items (file_ref, kind, created_at)
VALUES ($1, $2, NOW())
RETURNING item_id, file_ref, kind, created_at
`, fileRef, string(kind)).Scan(&item.ID, &item.FileRef, &kindRaw, &item.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.ContentItem{}, ErrDuplicateItem
		}
		return model.ContentItem{}, fmt.Errorf("add catalog item: %w", err)
	}
	item.Kind = enums.ContentKind(kindRaw)
	return item, nil
}

// PickUnseen selects one item the user has never received, uniformly at random
// among eligible items. Runs inside the caller's transaction so the selection
// cannot interleave with another delivery for the same user.
func (r *CatalogRepo) PickUnseen(ctx context.Context, tx pgx.Tx, userID int64) (model.ContentItem, error) {
	if tx == nil {
		return model.ContentItem{}, fmt.Errorf("transaction is required")
	}
	if userID <= 0 {
		return model.ContentItem{}, fmt.Errorf("invalid user id")
	}

	var item model.ContentItem
	var kindRaw string
	err := tx.QueryRow(ctx, `
SELECT i.item_id, i.file_ref, i.kind, i.created_at
FROM items i
LEFT JOIN deliveries d ON d.item_id = i.item_id AND d.user_id = $1
WHERE d.item_id IS NULL
ORDER BY RANDOM()
LIMIT 1
`, userID).Scan(&item.ID, &item.FileRef, &kindRaw, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ContentItem{}, ErrNoItemsAvailable
		}
		return model.ContentItem{}, fmt.Errorf("pick unseen item: %w", err)
	}
	item.Kind = enums.ContentKind(kindRaw)
	return item, nil
}

func (r *CatalogRepo) Count(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, nil
	}

	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count catalog items: %w", err)
	}
	return count, nil
}
