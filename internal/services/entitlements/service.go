package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/domain/enums"
	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
)

const (
	courseAccessDuration = 90 * 24 * time.Hour
	chatAccessDuration   = 30 * 24 * time.Hour
)

var (
	ErrValidation       = errors.New("validation error")
	ErrPurchaseNotFound = errors.New("purchase not found")
)

type PurchaseStore interface {
	FindByPaymentID(ctx context.Context, paymentID string) (pgrepo.PurchaseRecord, error)
	LatestCompleted(ctx context.Context, userID int64, productType string) (pgrepo.PurchaseRecord, error)
	Complete(ctx context.Context, paymentID string, expiresAt time.Time) (pgrepo.PurchaseRecord, bool, error)
}

type UserStore interface {
	FindByID(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
	SetPurchasedProduct(ctx context.Context, userID int64, productType string) error
	SetChatAccess(ctx context.Context, userID int64, chatExpiresAt time.Time, productType string) error
}

type Service struct {
	purchases PurchaseStore
	users     UserStore
	now       func() time.Time
}

type Dependencies struct {
	Purchases PurchaseStore
	Users     UserStore
}

// Result describes what a reconciliation did. AlreadyProcessed means the
// purchase was completed before this call and no state changed now.
type Result struct {
	PurchaseID       int64
	UserID           int64
	PaymentID        string
	ProductType      enums.ProductType
	ExpiresAt        *time.Time
	ChatExpiresAt    *time.Time
	AlreadyProcessed bool
}

func NewService(deps Dependencies) *Service {
	return &Service{
		purchases: deps.Purchases,
		users:     deps.Users,
		now:       time.Now,
	}
}

// AccessDuration is the grant length purchased by one payment of the product.
func AccessDuration(product enums.ProductType) time.Duration {
	if product == enums.ProductChat {
		return chatAccessDuration
	}
	return courseAccessDuration
}

// Reconcile settles a confirmed payment exactly once. The purchase row is the
// idempotency anchor: the conditional pending-to-completed transition decides
// a single winner among concurrent callers, and only the winner projects the
// grant onto the user row. Repeat calls report AlreadyProcessed and touch
// nothing.
func (s *Service) Reconcile(ctx context.Context, paymentID string) (Result, error) {
	if s.purchases == nil || s.users == nil {
		return Result{}, fmt.Errorf("entitlement dependencies are not configured")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return Result{}, ErrValidation
	}

	purchase, err := s.purchases.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return Result{}, ErrPurchaseNotFound
		}
		return Result{}, err
	}

	product := enums.ParseProductType(purchase.ProductType)
	if strings.EqualFold(purchase.Status, string(enums.PaymentCompleted)) {
		return alreadyProcessed(purchase, product), nil
	}

	now := s.now().UTC()
	expiresAt := s.stackedExpiry(ctx, purchase.UserID, product, now)

	updated, changed, err := s.purchases.Complete(ctx, paymentID, expiresAt)
	if err != nil {
		return Result{}, err
	}
	if !changed {
		if !strings.EqualFold(updated.Status, string(enums.PaymentCompleted)) {
			return Result{}, fmt.Errorf("purchase %s did not transition to completed", paymentID)
		}
		return alreadyProcessed(updated, product), nil
	}

	result := Result{
		PurchaseID:  updated.ID,
		UserID:      updated.UserID,
		PaymentID:   updated.PaymentID,
		ProductType: product,
		ExpiresAt:   updated.ExpiresAt,
	}

	if product.GrantsChatAccess() {
		chatExpiresAt, err := s.stackedChatExpiry(ctx, updated.UserID, now)
		if err != nil {
			return Result{}, err
		}
		if err := s.users.SetChatAccess(ctx, updated.UserID, chatExpiresAt, string(product)); err != nil {
			return Result{}, err
		}
		result.ChatExpiresAt = &chatExpiresAt
	} else {
		if err := s.users.SetPurchasedProduct(ctx, updated.UserID, string(product)); err != nil {
			return Result{}, err
		}
	}

	return result, nil
}

// stackedExpiry extends from the furthest unexpired completed grant of the
// same product, so a repeat buyer keeps remaining time. Lookup failures fall
// back to a fresh grant from now; confirmation must not be blocked by them.
func (s *Service) stackedExpiry(ctx context.Context, userID int64, product enums.ProductType, now time.Time) time.Time {
	extension := AccessDuration(product)

	prior, err := s.purchases.LatestCompleted(ctx, userID, string(product))
	if err == nil && prior.ExpiresAt != nil && prior.ExpiresAt.After(now) {
		return prior.ExpiresAt.Add(extension)
	}

	return now.Add(extension)
}

// stackedChatExpiry extends the user's chat window on its own 30-day cadence.
// A combo purchase stretches course access by 90 days but chat by 30.
func (s *Service) stackedChatExpiry(ctx context.Context, userID int64, now time.Time) (time.Time, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return time.Time{}, err
	}

	if user.ChatExpiresAt != nil && user.ChatExpiresAt.After(now) {
		return user.ChatExpiresAt.Add(chatAccessDuration), nil
	}
	return now.Add(chatAccessDuration), nil
}

func alreadyProcessed(purchase pgrepo.PurchaseRecord, product enums.ProductType) Result {
	return Result{
		PurchaseID:       purchase.ID,
		UserID:           purchase.UserID,
		PaymentID:        purchase.PaymentID,
		ProductType:      product,
		ExpiresAt:        purchase.ExpiresAt,
		AlreadyProcessed: true,
	}
}
