package dto

import "time"

type PaymentInitiateRequest struct {
	UserID int64 `json:"user_id"`
}

type PaymentInitiateResponse struct {
	Ref       string    `json:"ref"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentPollResponse struct {
	Ref           string     `json:"ref"`
	UserID        int64      `json:"user_id"`
	Status        string     `json:"status"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
}

type PaymentExpireStaleResponse struct {
	Expired int `json:"expired"`
}
