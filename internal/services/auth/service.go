package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/chattokens"
)

const minPasswordLength = 6

type UserStore interface {
	Create(ctx context.Context, email, passwordHash, fullName, telegramUsername string) (pgrepo.UserRecord, error)
	FindByEmail(ctx context.Context, email string) (pgrepo.UserRecord, error)
	FindByID(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error
}

type ChatTokenVerifier interface {
	Verify(ctx context.Context, token string) (chattokens.Token, error)
}

type Service struct {
	jwt        *JWTManager
	users      UserStore
	chatTokens ChatTokenVerifier
}

type RegisterInput struct {
	Email            string
	Password         string
	FullName         string
	TelegramUsername string
}

func NewService(jwtManager *JWTManager, users UserStore, chatTokens ChatTokenVerifier) *Service {
	return &Service{
		jwt:        jwtManager,
		users:      users,
		chatTokens: chatTokens,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || len(in.Password) < minPasswordLength {
		return AuthResult{}, ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, string(hash), in.FullName, in.TelegramUsername)
	if err != nil {
		if errors.Is(err, pgrepo.ErrEmailTaken) {
			return AuthResult{}, ErrEmailTaken
		}
		return AuthResult{}, err
	}

	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AuthResult{}, ErrInvalidInput
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return AuthResult{}, ErrUnauthorized
	}

	return s.issue(user)
}

// LoginWithChatToken exchanges a valid chat token for a session, so chat
// buyers can sign in from the link in their email without a password.
func (s *Service) LoginWithChatToken(ctx context.Context, rawToken string) (AuthResult, error) {
	if s.chatTokens == nil {
		return AuthResult{}, fmt.Errorf("chat token verifier is not configured")
	}

	token, err := s.chatTokens.Verify(ctx, rawToken)
	if err != nil {
		switch {
		case errors.Is(err, chattokens.ErrValidation):
			return AuthResult{}, ErrInvalidInput
		case errors.Is(err, chattokens.ErrTokenNotFound),
			errors.Is(err, chattokens.ErrTokenExpired),
			errors.Is(err, chattokens.ErrTokenInactive):
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, err
	}

	user, err := s.users.FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return AuthResult{}, ErrUnauthorized
		}
		return AuthResult{}, err
	}

	return s.issue(user)
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if userID <= 0 || len(newPassword) < minPasswordLength {
		return ErrInvalidInput
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return ErrUnauthorized
		}
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return ErrUnauthorized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.users.UpdatePasswordHash(ctx, userID, string(hash))
}

// Validate parses the token and re-reads the user, so a token outlives
// neither the account nor an admin flag change.
func (s *Service) Validate(ctx context.Context, rawToken string) (User, error) {
	claims, err := s.jwt.Parse(rawToken)
	if err != nil {
		return User{}, ErrUnauthorized
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrUserNotFound) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}

	return userFromRecord(user), nil
}

func (s *Service) issue(user pgrepo.UserRecord) (AuthResult, error) {
	token, expiresAt, err := s.jwt.Generate(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      userFromRecord(user),
	}, nil
}

func userFromRecord(record pgrepo.UserRecord) User {
	user := User{
		ID:            record.ID,
		Email:         record.Email,
		FullName:      record.FullName,
		IsAdmin:       record.IsAdmin,
		ChatExpiresAt: record.ChatExpiresAt,
	}
	if record.PurchasedProduct != nil {
		user.PurchasedProduct = *record.PurchasedProduct
	}
	return user
}
