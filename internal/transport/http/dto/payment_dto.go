package dto

import "time"

type PaymentCreateRequest struct {
	UserID      int64   `json:"user_id,omitempty"`
	Email       string  `json:"email"`
	Name        string  `json:"name,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	ProductType string  `json:"product_type,omitempty"`
	ReturnURL   string  `json:"return_url,omitempty"`
}

type PaymentCreateResponse struct {
	PaymentID       string `json:"payment_id"`
	PurchaseID      int64  `json:"purchase_id"`
	ConfirmationURL string `json:"confirmation_url"`
	Status          string `json:"status"`
}

type WebhookResponse struct {
	Status string `json:"status"`
}

type PaymentStatusResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Paid      bool   `json:"paid"`
}

type CourseAccessRequest struct {
	Email string `json:"email"`
}

type CourseAccessResponse struct {
	HasActiveCourse bool       `json:"has_active_course"`
	ProductType     string     `json:"product_type,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}
