package dto

import "time"

type ChatTokenIssueRequest struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	ProductType string `json:"product_type,omitempty"`
	Days        int    `json:"days,omitempty"`
}

type ChatTokenResponse struct {
	Token       string    `json:"token"`
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email"`
	ProductType string    `json:"product_type,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ChatTokenVerifyResponse struct {
	Valid       bool      `json:"valid"`
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email"`
	ProductType string    `json:"product_type,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}
