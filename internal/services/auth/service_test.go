package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/domain/enums"
	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/chattokens"
)

type userStoreStub struct {
	byEmail map[string]pgrepo.UserRecord
	byID    map[int64]pgrepo.UserRecord
	nextID  int64
}

func newUserStoreStub(users ...pgrepo.UserRecord) *userStoreStub {
	stub := &userStoreStub{
		byEmail: make(map[string]pgrepo.UserRecord),
		byID:    make(map[int64]pgrepo.UserRecord),
		nextID:  10,
	}
	for _, u := range users {
		stub.byEmail[u.Email] = u
		stub.byID[u.ID] = u
	}
	return stub
}

func (s *userStoreStub) Create(_ context.Context, email, passwordHash, fullName, _ string) (pgrepo.UserRecord, error) {
	if _, exists := s.byEmail[email]; exists {
		return pgrepo.UserRecord{}, pgrepo.ErrEmailTaken
	}
	s.nextID++
	user := pgrepo.UserRecord{ID: s.nextID, Email: email, PasswordHash: passwordHash, FullName: fullName}
	s.byEmail[email] = user
	s.byID[user.ID] = user
	return user, nil
}

func (s *userStoreStub) FindByEmail(_ context.Context, email string) (pgrepo.UserRecord, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return user, nil
}

func (s *userStoreStub) FindByID(_ context.Context, userID int64) (pgrepo.UserRecord, error) {
	user, ok := s.byID[userID]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return user, nil
}

func (s *userStoreStub) UpdatePasswordHash(_ context.Context, userID int64, passwordHash string) error {
	user, ok := s.byID[userID]
	if !ok {
		return pgrepo.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	s.byID[userID] = user
	s.byEmail[user.Email] = user
	return nil
}

type chatTokenVerifierStub struct {
	token chattokens.Token
	err   error
}

func (s *chatTokenVerifierStub) Verify(_ context.Context, _ string) (chattokens.Token, error) {
	if s.err != nil {
		return chattokens.Token{}, s.err
	}
	return s.token, nil
}

func newTestService(users *userStoreStub, verifier ChatTokenVerifier) *Service {
	return NewService(NewJWTManager("test-secret", time.Hour), users, verifier)
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hash)
}

func TestRegisterAndLogin(t *testing.T) {
	users := newUserStoreStub()
	svc := newTestService(users, nil)

	result, err := svc.Register(context.Background(), RegisterInput{
		Email:    "Buyer@Example.com",
		Password: "secret1",
		FullName: "Ivan Petrov",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.Token == "" || result.User.Email != "buyer@example.com" {
		t.Fatalf("unexpected register result: %+v", result)
	}

	login, err := svc.Login(context.Background(), "buyer@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != result.User.ID {
		t.Fatalf("login returned different user: %+v", login.User)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newUserStoreStub(pgrepo.UserRecord{ID: 1, Email: "buyer@example.com"})
	svc := newTestService(users, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "buyer@example.com", Password: "secret1"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	users := newUserStoreStub(pgrepo.UserRecord{
		ID:           1,
		Email:        "buyer@example.com",
		PasswordHash: hashOf(t, "secret1"),
	})
	svc := newTestService(users, nil)

	if _, err := svc.Login(context.Background(), "buyer@example.com", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong password, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "secret1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown email, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	users := newUserStoreStub(pgrepo.UserRecord{
		ID:           1,
		Email:        "buyer@example.com",
		PasswordHash: hashOf(t, "old-pass"),
	})
	svc := newTestService(users, nil)

	if err := svc.ChangePassword(context.Background(), 1, "wrong", "new-pass1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong old password, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), 1, "old-pass", "new-pass1"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(context.Background(), "buyer@example.com", "new-pass1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestValidateReflectsCurrentUserState(t *testing.T) {
	users := newUserStoreStub(pgrepo.UserRecord{ID: 1, Email: "buyer@example.com"})
	svc := newTestService(users, nil)

	jwtMgr := NewJWTManager("test-secret", time.Hour)
	token, _, err := jwtMgr.Generate(1, "buyer@example.com", false)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	user, err := svc.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if user.ID != 1 || user.IsAdmin {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.Validate(context.Background(), "garbage"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for bad token, got %v", err)
	}

	delete(users.byID, 1)
	if _, err := svc.Validate(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for deleted user, got %v", err)
	}
}

func TestLoginWithChatToken(t *testing.T) {
	users := newUserStoreStub(pgrepo.UserRecord{ID: 1, Email: "buyer@example.com"})
	verifier := &chatTokenVerifierStub{token: chattokens.Token{
		Token:       "tok-1",
		UserID:      1,
		Email:       "buyer@example.com",
		ProductType: enums.ProductChat,
	}}
	svc := newTestService(users, verifier)

	result, err := svc.LoginWithChatToken(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("chat token login: %v", err)
	}
	if result.User.ID != 1 {
		t.Fatalf("unexpected user: %+v", result.User)
	}

	verifier.err = chattokens.ErrTokenExpired
	if _, err := svc.LoginWithChatToken(context.Background(), "tok-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	token, expiresAt, err := mgr.Generate(7, "admin@example.com", true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("token already expired")
	}

	claims, err := mgr.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 7 || claims.Email != "admin@example.com" || !claims.IsAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	other := NewJWTManager("other-secret", time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong secret, got %v", err)
	}
}
