package chattokens

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/domain/enums"
	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
)

type tokenStoreStub struct {
	byToken    map[string]pgrepo.ChatTokenRecord
	touchCalls int
}

func newTokenStoreStub() *tokenStoreStub {
	return &tokenStoreStub{byToken: make(map[string]pgrepo.ChatTokenRecord)}
}

func (s *tokenStoreStub) Upsert(_ context.Context, userID int64, email, token, productType string, expiresAt time.Time) (pgrepo.ChatTokenRecord, error) {
	rec, ok := s.byToken[token]
	if !ok {
		rec = pgrepo.ChatTokenRecord{ID: int64(len(s.byToken) + 1), Token: token, CreatedAt: time.Now().UTC()}
	}
	rec.UserID = userID
	rec.Email = email
	rec.ProductType = productType
	rec.ExpiresAt = expiresAt
	rec.IsActive = true
	s.byToken[token] = rec
	return rec, nil
}

func (s *tokenStoreStub) FindByToken(_ context.Context, token string) (pgrepo.ChatTokenRecord, error) {
	rec, ok := s.byToken[token]
	if !ok {
		return pgrepo.ChatTokenRecord{}, pgrepo.ErrChatTokenNotFound
	}
	return rec, nil
}

func (s *tokenStoreStub) TouchLastUsed(_ context.Context, token string) error {
	rec, ok := s.byToken[token]
	if !ok {
		return pgrepo.ErrChatTokenNotFound
	}
	s.touchCalls++
	now := time.Now().UTC()
	rec.LastUsedAt = &now
	s.byToken[token] = rec
	return nil
}

func newTestService(store *tokenStoreStub, now time.Time) *Service {
	svc := NewService(store)
	svc.now = func() time.Time { return now }
	return svc
}

func TestIssueUsesProductWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTokenStoreStub()
	svc := newTestService(store, now)

	token, err := svc.Issue(context.Background(), IssueInput{
		UserID:      7,
		Email:       "Buyer@Example.com",
		ProductType: "combo",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token.Token == "" {
		t.Fatalf("expected a token value")
	}
	if token.Email != "buyer@example.com" {
		t.Fatalf("email not normalized: %q", token.Email)
	}
	if want := now.Add(30 * 24 * time.Hour); !token.ExpiresAt.Equal(want) {
		t.Fatalf("expected 30 day expiry %v, got %v", want, token.ExpiresAt)
	}
}

func TestIssueDefaultsTo180DaysForCourse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(newTokenStoreStub(), now)

	token, err := svc.Issue(context.Background(), IssueInput{
		UserID:      7,
		Email:       "buyer@example.com",
		ProductType: "course",
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if want := now.Add(180 * 24 * time.Hour); !token.ExpiresAt.Equal(want) {
		t.Fatalf("expected 180 day expiry %v, got %v", want, token.ExpiresAt)
	}
}

func TestIssueReusedTokenValueRebinds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTokenStoreStub()
	svc := newTestService(store, now)
	svc.newToken = func() string { return "fixed-token" }

	if _, err := svc.Issue(context.Background(), IssueInput{UserID: 7, Email: "a@example.com", ProductType: "chat"}); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	token, err := svc.Issue(context.Background(), IssueInput{UserID: 8, Email: "b@example.com", ProductType: "chat"})
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if token.UserID != 8 || token.Email != "b@example.com" {
		t.Fatalf("token not rebound: %+v", token)
	}
	if len(store.byToken) != 1 {
		t.Fatalf("expected single token row, got %d", len(store.byToken))
	}
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTokenStoreStub()
	svc := newTestService(store, now)
	svc.newToken = func() string { return "tok-1" }

	if _, err := svc.Issue(context.Background(), IssueInput{UserID: 7, Email: "a@example.com", ProductType: "chat"}); err != nil {
		t.Fatalf("issue: %v", err)
	}

	token, err := svc.Verify(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if token.UserID != 7 || token.ProductType != enums.ProductChat {
		t.Fatalf("unexpected token: %+v", token)
	}
	if store.touchCalls != 1 {
		t.Fatalf("expected last_used_at stamp, got %d calls", store.touchCalls)
	}

	if _, err := svc.Verify(context.Background(), "missing"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestVerifyExpiredAndInactive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newTokenStoreStub()
	store.byToken["expired"] = pgrepo.ChatTokenRecord{
		Token:     "expired",
		UserID:    7,
		IsActive:  true,
		ExpiresAt: now.Add(-time.Hour),
	}
	store.byToken["inactive"] = pgrepo.ChatTokenRecord{
		Token:     "inactive",
		UserID:    7,
		IsActive:  false,
		ExpiresAt: now.Add(time.Hour),
	}

	svc := newTestService(store, now)

	if _, err := svc.Verify(context.Background(), "expired"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := svc.Verify(context.Background(), "inactive"); !errors.Is(err, ErrTokenInactive) {
		t.Fatalf("expected ErrTokenInactive, got %v", err)
	}
	if store.touchCalls != 0 {
		t.Fatalf("invalid tokens must not stamp last_used_at")
	}
}
