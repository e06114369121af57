package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/domain/enums"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/infra/yookassa"
	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/entitlements"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/notify"
)

const (
	defaultAmount      = 4999
	defaultDescription = "Оплата курса «Банкротство физических лиц»"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrPurchaseNotFound = errors.New("purchase not found")
)

type Gateway interface {
	CreatePayment(ctx context.Context, in yookassa.CreatePaymentInput) (yookassa.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (yookassa.Payment, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, paymentID string) (entitlements.Result, error)
}

type Notifier interface {
	PaymentCompleted(ctx context.Context, in notify.PaymentCompletedInput)
}

type UserStore interface {
	Create(ctx context.Context, email, passwordHash, fullName, telegramUsername string) (pgrepo.UserRecord, error)
	FindByEmail(ctx context.Context, email string) (pgrepo.UserRecord, error)
	FindByID(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
}

type PurchaseStore interface {
	CreatePending(ctx context.Context, userID int64, amount float64, paymentID, productType string, expiresAt time.Time) (pgrepo.PurchaseRecord, error)
	FindActiveCourseByEmail(ctx context.Context, email string) (pgrepo.PurchaseRecord, error)
}

type Service struct {
	gateway    Gateway
	reconciler Reconciler
	notifier   Notifier
	users      UserStore
	purchases  PurchaseStore
	returnURL  string
	now        func() time.Time

	newPassword func() string
}

type Dependencies struct {
	Gateway    Gateway
	Reconciler Reconciler
	Notifier   Notifier
	Users      UserStore
	Purchases  PurchaseStore
	ReturnURL  string
}

type CreateInput struct {
	UserID      int64
	Email       string
	FullName    string
	Amount      float64
	ProductType string
	ReturnURL   string
}

type CreateResult struct {
	PaymentID       string
	PurchaseID      int64
	ConfirmationURL string
	Status          string
}

type WebhookResult struct {
	Status           string
	PaymentID        string
	Ignored          bool
	AlreadyProcessed bool
}

type StatusResult struct {
	PaymentID string
	Status    string
	Paid      bool
}

type CourseAccessResult struct {
	HasActiveCourse bool
	ProductType     string
	ExpiresAt       *time.Time
}

func NewService(deps Dependencies) *Service {
	return &Service{
		gateway:    deps.Gateway,
		reconciler: deps.Reconciler,
		notifier:   deps.Notifier,
		users:      deps.Users,
		purchases:  deps.Purchases,
		returnURL:  deps.ReturnURL,
		now:        time.Now,
		newPassword: func() string {
			return uuid.NewString()[:8]
		},
	}
}

// Create registers a payment intent with the gateway and records a pending
// purchase keyed by the gateway's payment id. The purchase row is written only
// after the gateway accepted the intent, so a gateway failure leaves no trace.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	if s.gateway == nil || s.users == nil || s.purchases == nil {
		return CreateResult{}, fmt.Errorf("payments dependencies are not configured")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return CreateResult{}, ErrValidation
	}
	amount := in.Amount
	if amount <= 0 {
		amount = defaultAmount
	}
	product := enums.ParseProductType(in.ProductType)

	user, err := s.resolveUser(ctx, in.UserID, email, in.FullName)
	if err != nil {
		return CreateResult{}, err
	}

	returnURL := strings.TrimSpace(in.ReturnURL)
	if returnURL == "" {
		returnURL = s.returnURL
	}

	payment, err := s.gateway.CreatePayment(ctx, yookassa.CreatePaymentInput{
		Amount:        amount,
		Currency:      "RUB",
		Description:   defaultDescription,
		ReturnURL:     returnURL,
		CustomerEmail: user.Email,
		Metadata: map[string]string{
			"user_id":      strconv.FormatInt(user.ID, 10),
			"email":        user.Email,
			"product_type": string(product),
		},
	})
	if err != nil {
		return CreateResult{}, err
	}

	// Provisional expiry; the reconciler recomputes it with stacking when the
	// payment actually succeeds.
	expiresAt := s.now().UTC().Add(entitlements.AccessDuration(product))

	purchase, err := s.purchases.CreatePending(ctx, user.ID, amount, payment.ID, string(product), expiresAt)
	if err != nil {
		return CreateResult{}, err
	}

	return CreateResult{
		PaymentID:       payment.ID,
		PurchaseID:      purchase.ID,
		ConfirmationURL: payment.Confirmation.ConfirmationURL,
		Status:          payment.Status,
	}, nil
}

// resolveUser finds the buyer by id or email, registering a new account with a
// placeholder password when needed. The placeholder is never mailed; the
// post-payment fanout rotates it before sending credentials.
func (s *Service) resolveUser(ctx context.Context, userID int64, email, fullName string) (pgrepo.UserRecord, error) {
	if userID > 0 {
		return s.users.FindByID(ctx, userID)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgrepo.ErrUserNotFound) {
		return pgrepo.UserRecord{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.newPassword()), bcrypt.DefaultCost)
	if err != nil {
		return pgrepo.UserRecord{}, fmt.Errorf("hash placeholder password: %w", err)
	}

	user, err = s.users.Create(ctx, email, string(hash), strings.TrimSpace(fullName), "")
	if err == nil {
		return user, nil
	}
	if errors.Is(err, pgrepo.ErrEmailTaken) {
		// Lost a registration race; the existing account is the buyer.
		return s.users.FindByEmail(ctx, email)
	}
	return pgrepo.UserRecord{}, err
}

// HandleWebhook settles gateway notifications. Anything but payment.succeeded
// is acknowledged without touching state, so the gateway stops retrying
// events this service does not act on.
func (s *Service) HandleWebhook(ctx context.Context, event yookassa.WebhookEvent) (WebhookResult, error) {
	if s.reconciler == nil {
		return WebhookResult{}, fmt.Errorf("payments dependencies are not configured")
	}

	if event.Event != yookassa.EventPaymentSucceeded {
		return WebhookResult{Status: "ignored", Ignored: true}, nil
	}

	paymentID := strings.TrimSpace(event.Object.ID)
	userID := strings.TrimSpace(event.Object.Metadata["user_id"])
	if paymentID == "" || userID == "" {
		return WebhookResult{}, ErrValidation
	}

	result, err := s.reconciler.Reconcile(ctx, paymentID)
	if err != nil {
		if errors.Is(err, entitlements.ErrPurchaseNotFound) {
			return WebhookResult{}, ErrPurchaseNotFound
		}
		return WebhookResult{}, err
	}

	if !result.AlreadyProcessed {
		s.dispatchCompleted(ctx, result, parseAmount(event.Object.Amount.Value))
	}

	return WebhookResult{
		Status:           "processed",
		PaymentID:        paymentID,
		AlreadyProcessed: result.AlreadyProcessed,
	}, nil
}

// CheckStatus polls the gateway directly, the fallback for lost webhooks. A
// succeeded payment goes through the same reconciler, which makes the two
// paths converge on identical state.
func (s *Service) CheckStatus(ctx context.Context, paymentID string) (StatusResult, error) {
	if s.gateway == nil || s.reconciler == nil {
		return StatusResult{}, fmt.Errorf("payments dependencies are not configured")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return StatusResult{}, ErrValidation
	}

	payment, err := s.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		return StatusResult{}, err
	}

	if payment.Status == yookassa.StatusSucceeded {
		result, err := s.reconciler.Reconcile(ctx, paymentID)
		if err != nil && !errors.Is(err, entitlements.ErrPurchaseNotFound) {
			return StatusResult{}, err
		}
		if err == nil && !result.AlreadyProcessed {
			s.dispatchCompleted(ctx, result, parseAmount(payment.Amount.Value))
		}
	}

	return StatusResult{
		PaymentID: payment.ID,
		Status:    payment.Status,
		Paid:      payment.Paid,
	}, nil
}

// CheckCourseAccess reports whether the email holds an unexpired completed
// course or combo purchase.
func (s *Service) CheckCourseAccess(ctx context.Context, email string) (CourseAccessResult, error) {
	if s.purchases == nil {
		return CourseAccessResult{}, fmt.Errorf("payments dependencies are not configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return CourseAccessResult{}, ErrValidation
	}

	purchase, err := s.purchases.FindActiveCourseByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return CourseAccessResult{HasActiveCourse: false}, nil
		}
		return CourseAccessResult{}, err
	}

	return CourseAccessResult{
		HasActiveCourse: true,
		ProductType:     purchase.ProductType,
		ExpiresAt:       purchase.ExpiresAt,
	}, nil
}

func (s *Service) dispatchCompleted(ctx context.Context, result entitlements.Result, amount float64) {
	if s.notifier == nil || s.users == nil {
		return
	}

	user, err := s.users.FindByID(ctx, result.UserID)
	if err != nil {
		return
	}

	s.notifier.PaymentCompleted(ctx, notify.PaymentCompletedInput{
		User:          user,
		ProductType:   result.ProductType,
		PaymentID:     result.PaymentID,
		Amount:        amount,
		ExpiresAt:     result.ExpiresAt,
		ChatExpiresAt: result.ChatExpiresAt,
	})
}

func parseAmount(raw string) float64 {
	amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return amount
}
