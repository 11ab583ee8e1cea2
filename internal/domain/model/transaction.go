package model

import (
	"time"

	"github.com/zetalvx/mediagate/internal/domain/enums"
)

// Transaction is an in-flight or settled plan purchase. Status only ever moves
// pending -> confirmed | failed | expired.
type Transaction struct {
	Ref       string                  `json:"ref"`
	UserID    int64                   `json:"user_id"`
	Status    enums.TransactionStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}
