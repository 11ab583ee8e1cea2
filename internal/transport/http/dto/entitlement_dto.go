package dto

import "time"

type EntitlementResponse struct {
	UserID        int64      `json:"user_id"`
	Plan          string     `json:"plan"`
	QuotaUsed     int        `json:"quota_used"`
	Limit         int        `json:"limit"`
	ResetAt       time.Time  `json:"reset_at"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
}
