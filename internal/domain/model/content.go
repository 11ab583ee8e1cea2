package model

import (
	"time"

	"github.com/zetalvx/mediagate/internal/domain/enums"
)

// ContentItem is an opaque Telegram file reference. Immutable once stored.
type ContentItem struct {
	ID        int64             `json:"id"`
	FileRef   string            `json:"file_ref"`
	Kind      enums.ContentKind `json:"kind"`
	CreatedAt time.Time         `json:"created_at"`
}

type Delivery struct {
	UserID      int64     `json:"user_id"`
	ItemID      int64     `json:"item_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}
