package dto

import "time"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

type UserDTO struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	FullName         string     `json:"full_name,omitempty"`
	IsAdmin          bool       `json:"is_admin"`
	PurchasedProduct string     `json:"purchased_product,omitempty"`
	ChatExpiresAt    *time.Time `json:"chat_expires_at,omitempty"`
}

type ValidateResponse struct {
	Valid bool    `json:"valid"`
	User  UserDTO `json:"user"`
}
