package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrEmailTaken   = errors.New("email already registered")
)

type AccessClaims struct {
	UserID    int64
	Email     string
	IsAdmin   bool
	ExpiresAt time.Time
}

type User struct {
	ID               int64
	Email            string
	FullName         string
	IsAdmin          bool
	PurchasedProduct string
	ChatExpiresAt    *time.Time
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      User
}
