package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPurchaseNotFound = errors.New("purchase not found")

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

// PurchaseRecord is one payment attempt and its resulting access grant.
// PaymentID is the external gateway identifier and the idempotency key:
// the table enforces exactly one row per payment id.
type PurchaseRecord struct {
	ID          int64
	UserID      int64
	Amount      float64
	PaymentID   string
	ProductType string
	Status      string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) CreatePending(ctx context.Context, userID int64, amount float64, paymentID, productType string, expiresAt time.Time) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || strings.TrimSpace(paymentID) == "" || strings.TrimSpace(productType) == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase create payload")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
INSERT INTO user_purchases (
	user_id,
	amount,
	payment_id,
	product_type,
	payment_status,
	expires_at,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, 'pending', $5, NOW(), NOW())
RETURNING id, user_id, amount, payment_id, product_type, payment_status, expires_at, created_at, updated_at
`, userID, amount, strings.TrimSpace(paymentID), strings.ToLower(strings.TrimSpace(productType)), expiresAt.UTC()))
	if err != nil {
		return PurchaseRecord{}, fmt.Errorf("create pending purchase: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) FindByPaymentID(ctx context.Context, paymentID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return PurchaseRecord{}, fmt.Errorf("payment id is required")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, user_id, amount, payment_id, product_type, payment_status, expires_at, created_at, updated_at
FROM user_purchases
WHERE payment_id = $1
LIMIT 1
`, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by payment id: %w", err)
	}

	return record, nil
}

// LatestCompleted returns the completed purchase with the furthest expiry for
// the same user and product, the anchor for expiry stacking.
func (r *PurchaseRepo) LatestCompleted(ctx context.Context, userID int64, productType string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || strings.TrimSpace(productType) == "" {
		return PurchaseRecord{}, fmt.Errorf("invalid latest completed payload")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT id, user_id, amount, payment_id, product_type, payment_status, expires_at, created_at, updated_at
FROM user_purchases
WHERE user_id = $1
  AND product_type = $2
  AND payment_status = 'completed'
ORDER BY expires_at DESC NULLS LAST
LIMIT 1
`, userID, strings.ToLower(strings.TrimSpace(productType))))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find latest completed purchase: %w", err)
	}

	return record, nil
}

// Complete transitions a purchase to completed with the given expiry. The
// update is conditional on the row still being pending, so of two racing
// reconcilers (webhook vs. status poll) only one observes changed=true; the
// loser gets the already-completed row back untouched.
func (r *PurchaseRepo) Complete(ctx context.Context, paymentID string, expiresAt time.Time) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return PurchaseRecord{}, false, fmt.Errorf("payment id is required")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE user_purchases
SET
	payment_status = 'completed',
	expires_at = $2,
	updated_at = NOW()
WHERE payment_id = $1
  AND payment_status = 'pending'
RETURNING id, user_id, amount, payment_id, product_type, payment_status, expires_at, created_at, updated_at
`, paymentID, expiresAt.UTC()))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, false, fmt.Errorf("complete purchase: %w", err)
	}

	existing, err := r.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

// FindActiveCourseByEmail reports the freshest unexpired completed course or
// combo purchase for the email, if any.
func (r *PurchaseRepo) FindActiveCourseByEmail(ctx context.Context, email string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return PurchaseRecord{}, fmt.Errorf("email is required")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT up.id, up.user_id, up.amount, up.payment_id, up.product_type, up.payment_status, up.expires_at, up.created_at, up.updated_at
FROM users u
JOIN user_purchases up ON up.user_id = u.id
WHERE LOWER(u.email) = $1
  AND up.payment_status = 'completed'
  AND (up.expires_at IS NULL OR up.expires_at > NOW())
  AND up.product_type IN ('course', 'combo')
ORDER BY up.created_at DESC
LIMIT 1
`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find active course by email: %w", err)
	}

	return record, nil
}

// CancelStalePending marks pending purchases older than the cutoff as
// canceled. A pending row that old means the buyer abandoned checkout; the
// gateway will never confirm it.
func (r *PurchaseRepo) CancelStalePending(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE user_purchases
SET payment_status = 'canceled', updated_at = NOW()
WHERE payment_status = 'pending' AND created_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("cancel stale pending purchases: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var record PurchaseRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Amount,
		&record.PaymentID,
		&record.ProductType,
		&record.Status,
		&record.ExpiresAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	return record, nil
}
