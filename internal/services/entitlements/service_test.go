package entitlements

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/domain/enums"
	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
)

type purchaseStoreStub struct {
	byPaymentID map[string]pgrepo.PurchaseRecord
}

func newPurchaseStoreStub() *purchaseStoreStub {
	return &purchaseStoreStub{byPaymentID: make(map[string]pgrepo.PurchaseRecord)}
}

func (s *purchaseStoreStub) addPending(userID int64, paymentID, productType string) {
	s.byPaymentID[paymentID] = pgrepo.PurchaseRecord{
		ID:          int64(len(s.byPaymentID) + 1),
		UserID:      userID,
		PaymentID:   paymentID,
		ProductType: productType,
		Status:      string(enums.PaymentPending),
	}
}

func (s *purchaseStoreStub) FindByPaymentID(_ context.Context, paymentID string) (pgrepo.PurchaseRecord, error) {
	rec, ok := s.byPaymentID[paymentID]
	if !ok {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return rec, nil
}

func (s *purchaseStoreStub) LatestCompleted(_ context.Context, userID int64, productType string) (pgrepo.PurchaseRecord, error) {
	var best pgrepo.PurchaseRecord
	found := false
	for _, rec := range s.byPaymentID {
		if rec.UserID != userID || rec.ProductType != productType || rec.Status != string(enums.PaymentCompleted) {
			continue
		}
		if !found || (rec.ExpiresAt != nil && (best.ExpiresAt == nil || rec.ExpiresAt.After(*best.ExpiresAt))) {
			best = rec
			found = true
		}
	}
	if !found {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return best, nil
}

func (s *purchaseStoreStub) Complete(_ context.Context, paymentID string, expiresAt time.Time) (pgrepo.PurchaseRecord, bool, error) {
	rec, ok := s.byPaymentID[paymentID]
	if !ok {
		return pgrepo.PurchaseRecord{}, false, pgrepo.ErrPurchaseNotFound
	}
	if rec.Status != string(enums.PaymentPending) {
		return rec, false, nil
	}
	rec.Status = string(enums.PaymentCompleted)
	rec.ExpiresAt = &expiresAt
	s.byPaymentID[paymentID] = rec
	return rec, true, nil
}

type userStoreStub struct {
	users map[int64]pgrepo.UserRecord

	setProductCalls    int
	setChatAccessCalls int
}

func newUserStoreStub(users ...pgrepo.UserRecord) *userStoreStub {
	stub := &userStoreStub{users: make(map[int64]pgrepo.UserRecord)}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return stub
}

func (s *userStoreStub) FindByID(_ context.Context, userID int64) (pgrepo.UserRecord, error) {
	user, ok := s.users[userID]
	if !ok {
		return pgrepo.UserRecord{}, pgrepo.ErrUserNotFound
	}
	return user, nil
}

func (s *userStoreStub) SetPurchasedProduct(_ context.Context, userID int64, productType string) error {
	user, ok := s.users[userID]
	if !ok {
		return pgrepo.ErrUserNotFound
	}
	s.setProductCalls++
	user.PurchasedProduct = &productType
	s.users[userID] = user
	return nil
}

func (s *userStoreStub) SetChatAccess(_ context.Context, userID int64, chatExpiresAt time.Time, productType string) error {
	user, ok := s.users[userID]
	if !ok {
		return pgrepo.ErrUserNotFound
	}
	s.setChatAccessCalls++
	user.ChatExpiresAt = &chatExpiresAt
	user.PurchasedProduct = &productType
	s.users[userID] = user
	return nil
}

func newTestService(purchases *purchaseStoreStub, users *userStoreStub, now time.Time) *Service {
	svc := NewService(Dependencies{Purchases: purchases, Users: users})
	svc.now = func() time.Time { return now }
	return svc
}

func TestReconcileGrantsFreshCourseAccess(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	purchases := newPurchaseStoreStub()
	purchases.addPending(7, "pay-1", "course")
	users := newUserStoreStub(pgrepo.UserRecord{ID: 7, Email: "buyer@example.com"})

	svc := newTestService(purchases, users, now)

	result, err := svc.Reconcile(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.AlreadyProcessed {
		t.Fatalf("first reconcile must not be idempotent")
	}
	if result.ProductType != enums.ProductCourse {
		t.Fatalf("unexpected product: %s", result.ProductType)
	}
	want := now.Add(90 * 24 * time.Hour)
	if result.ExpiresAt == nil || !result.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, result.ExpiresAt)
	}
	if users.setProductCalls != 1 || users.setChatAccessCalls != 0 {
		t.Fatalf("unexpected user projection calls: product=%d chat=%d", users.setProductCalls, users.setChatAccessCalls)
	}
}

func TestReconcileSecondCallIsNoOp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	purchases := newPurchaseStoreStub()
	purchases.addPending(7, "pay-1", "course")
	users := newUserStoreStub(pgrepo.UserRecord{ID: 7})

	svc := newTestService(purchases, users, now)

	if _, err := svc.Reconcile(context.Background(), "pay-1"); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	second, err := svc.Reconcile(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if !second.AlreadyProcessed {
		t.Fatalf("second reconcile must report already processed")
	}
	if users.setProductCalls != 1 {
		t.Fatalf("user projection ran more than once: %d", users.setProductCalls)
	}
}

func TestReconcileStacksOnUnexpiredGrant(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	priorExpiry := now.Add(10 * 24 * time.Hour)

	purchases := newPurchaseStoreStub()
	purchases.byPaymentID["pay-old"] = pgrepo.PurchaseRecord{
		ID:          1,
		UserID:      7,
		PaymentID:   "pay-old",
		ProductType: "course",
		Status:      string(enums.PaymentCompleted),
		ExpiresAt:   &priorExpiry,
	}
	purchases.addPending(7, "pay-new", "course")
	users := newUserStoreStub(pgrepo.UserRecord{ID: 7})

	svc := newTestService(purchases, users, now)

	result, err := svc.Reconcile(context.Background(), "pay-new")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	want := priorExpiry.Add(90 * 24 * time.Hour)
	if result.ExpiresAt == nil || !result.ExpiresAt.Equal(want) {
		t.Fatalf("expected stacked expiry %v, got %v", want, result.ExpiresAt)
	}
}

func TestReconcileIgnoresExpiredPriorGrant(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	priorExpiry := now.Add(-24 * time.Hour)

	purchases := newPurchaseStoreStub()
	purchases.byPaymentID["pay-old"] = pgrepo.PurchaseRecord{
		ID:          1,
		UserID:      7,
		PaymentID:   "pay-old",
		ProductType: "course",
		Status:      string(enums.PaymentCompleted),
		ExpiresAt:   &priorExpiry,
	}
	purchases.addPending(7, "pay-new", "course")
	users := newUserStoreStub(pgrepo.UserRecord{ID: 7})

	svc := newTestService(purchases, users, now)

	result, err := svc.Reconcile(context.Background(), "pay-new")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	want := now.Add(90 * 24 * time.Hour)
	if result.ExpiresAt == nil || !result.ExpiresAt.Equal(want) {
		t.Fatalf("expected fresh expiry %v, got %v", want, result.ExpiresAt)
	}
}

func TestReconcileComboStacksChatIndependently(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	chatExpiry := now.Add(5 * 24 * time.Hour)

	purchases := newPurchaseStoreStub()
	purchases.addPending(7, "pay-combo", "combo")
	users := newUserStoreStub(pgrepo.UserRecord{ID: 7, ChatExpiresAt: &chatExpiry})

	svc := newTestService(purchases, users, now)

	result, err := svc.Reconcile(context.Background(), "pay-combo")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	wantCourse := now.Add(90 * 24 * time.Hour)
	if result.ExpiresAt == nil || !result.ExpiresAt.Equal(wantCourse) {
		t.Fatalf("expected course expiry %v, got %v", wantCourse, result.ExpiresAt)
	}
	wantChat := chatExpiry.Add(30 * 24 * time.Hour)
	if result.ChatExpiresAt == nil || !result.ChatExpiresAt.Equal(wantChat) {
		t.Fatalf("expected chat expiry %v, got %v", wantChat, result.ChatExpiresAt)
	}
	if users.setChatAccessCalls != 1 {
		t.Fatalf("expected one chat access update, got %d", users.setChatAccessCalls)
	}
}

func TestReconcileChatProductUses30Days(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	purchases := newPurchaseStoreStub()
	purchases.addPending(7, "pay-chat", "chat")
	users := newUserStoreStub(pgrepo.UserRecord{ID: 7})

	svc := newTestService(purchases, users, now)

	result, err := svc.Reconcile(context.Background(), "pay-chat")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	want := now.Add(30 * 24 * time.Hour)
	if result.ExpiresAt == nil || !result.ExpiresAt.Equal(want) {
		t.Fatalf("expected chat product expiry %v, got %v", want, result.ExpiresAt)
	}
	if result.ChatExpiresAt == nil || !result.ChatExpiresAt.Equal(want) {
		t.Fatalf("expected chat window %v, got %v", want, result.ChatExpiresAt)
	}
}

func TestReconcileUnknownPayment(t *testing.T) {
	svc := newTestService(newPurchaseStoreStub(), newUserStoreStub(), time.Now())

	if _, err := svc.Reconcile(context.Background(), "missing"); !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}
	if _, err := svc.Reconcile(context.Background(), "  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
