package model

import (
	"time"

	"github.com/zetalvx/mediagate/internal/domain/enums"
)

// User is the entitlement row for a single Telegram identity. QuotaUsed and
// WindowAnchor are owned by the delivery engine; Plan and PlanExpiresAt by the
// plan lifecycle.
type User struct {
	ID            int64      `json:"id"`
	Plan          enums.Plan `json:"plan"`
	QuotaUsed     int        `json:"quota_used"`
	WindowAnchor  time.Time  `json:"window_anchor"`
	PlanExpiresAt *time.Time `json:"plan_expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
