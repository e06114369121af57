package chattokens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/domain/enums"
	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
)

const defaultStandaloneDays = 180

var (
	ErrValidation    = errors.New("validation error")
	ErrTokenNotFound = errors.New("chat token not found")
	ErrTokenExpired  = errors.New("chat token expired")
	ErrTokenInactive = errors.New("chat token deactivated")
)

type TokenStore interface {
	Upsert(ctx context.Context, userID int64, email, token, productType string, expiresAt time.Time) (pgrepo.ChatTokenRecord, error)
	FindByToken(ctx context.Context, token string) (pgrepo.ChatTokenRecord, error)
	TouchLastUsed(ctx context.Context, token string) error
}

type Service struct {
	tokens TokenStore
	now    func() time.Time

	newToken func() string
}

type Token struct {
	Token       string
	UserID      int64
	Email       string
	ProductType enums.ProductType
	ExpiresAt   time.Time
}

type IssueInput struct {
	UserID      int64
	Email       string
	ProductType string
	Days        int
}

func NewService(tokens TokenStore) *Service {
	return &Service{
		tokens:   tokens,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

// Issue mints an opaque token granting chat access. Chat-bearing products get
// the 30-day window that matches their paid access; standalone issuance (for
// example a manual grant) defaults to 180 days.
func (s *Service) Issue(ctx context.Context, in IssueInput) (Token, error) {
	if s.tokens == nil {
		return Token{}, fmt.Errorf("chat token store is nil")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if in.UserID <= 0 || email == "" {
		return Token{}, ErrValidation
	}

	product := enums.ParseProductType(in.ProductType)
	days := in.Days
	if days <= 0 {
		if product.GrantsChatAccess() {
			days = 30
		} else {
			days = defaultStandaloneDays
		}
	}

	expiresAt := s.now().UTC().Add(time.Duration(days) * 24 * time.Hour)

	record, err := s.tokens.Upsert(ctx, in.UserID, email, s.newToken(), string(product), expiresAt)
	if err != nil {
		return Token{}, err
	}

	return tokenFromRecord(record), nil
}

// Verify resolves a token to its grant. A valid lookup stamps last_used_at so
// operators can see which tokens are live.
func (s *Service) Verify(ctx context.Context, rawToken string) (Token, error) {
	if s.tokens == nil {
		return Token{}, fmt.Errorf("chat token store is nil")
	}
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return Token{}, ErrValidation
	}

	record, err := s.tokens.FindByToken(ctx, rawToken)
	if err != nil {
		if errors.Is(err, pgrepo.ErrChatTokenNotFound) {
			return Token{}, ErrTokenNotFound
		}
		return Token{}, err
	}

	if !record.IsActive {
		return Token{}, ErrTokenInactive
	}
	if s.now().UTC().After(record.ExpiresAt) {
		return Token{}, ErrTokenExpired
	}

	if err := s.tokens.TouchLastUsed(ctx, record.Token); err != nil {
		return Token{}, err
	}

	return tokenFromRecord(record), nil
}

func tokenFromRecord(record pgrepo.ChatTokenRecord) Token {
	return Token{
		Token:       record.Token,
		UserID:      record.UserID,
		Email:       record.Email,
		ProductType: enums.ParseProductType(record.ProductType),
		ExpiresAt:   record.ExpiresAt,
	}
}
