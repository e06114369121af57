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

var ErrChatTokenNotFound = errors.New("chat token not found")

type ChatTokenRepo struct {
	pool *pgxpool.Pool
}

type ChatTokenRecord struct {
	ID          int64
	UserID      int64
	Email       string
	Token       string
	ProductType string
	ExpiresAt   time.Time
	IsActive    bool
	LastUsedAt  *time.Time
	CreatedAt   time.Time
}

func NewChatTokenRepo(pool *pgxpool.Pool) *ChatTokenRepo {
	return &ChatTokenRepo{pool: pool}
}

// Upsert inserts the token or, when the token value already exists, rebinds it
// to the given user and expiry. Reissued tokens supersede rather than delete.
func (r *ChatTokenRepo) Upsert(ctx context.Context, userID int64, email, token, productType string, expiresAt time.Time) (ChatTokenRecord, error) {
	if r.pool == nil {
		return ChatTokenRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	token = strings.TrimSpace(token)
	if email == "" || token == "" {
		return ChatTokenRecord{}, fmt.Errorf("invalid chat token payload")
	}

	record, err := scanChatToken(r.pool.QueryRow(ctx, `
INSERT INTO chat_tokens (user_id, email, token, product_type, expires_at, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
ON CONFLICT (token) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	email = EXCLUDED.email,
	product_type = EXCLUDED.product_type,
	expires_at = EXCLUDED.expires_at,
	is_active = TRUE
RETURNING id, user_id, email, token, product_type, expires_at, is_active, last_used_at, created_at
`, userID, email, token, strings.ToLower(strings.TrimSpace(productType)), expiresAt.UTC()))
	if err != nil {
		return ChatTokenRecord{}, fmt.Errorf("upsert chat token: %w", err)
	}

	return record, nil
}

func (r *ChatTokenRepo) FindByToken(ctx context.Context, token string) (ChatTokenRecord, error) {
	if r.pool == nil {
		return ChatTokenRecord{}, fmt.Errorf("postgres pool is nil")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ChatTokenRecord{}, fmt.Errorf("token is required")
	}

	record, err := scanChatToken(r.pool.QueryRow(ctx, `
SELECT id, user_id, email, token, product_type, expires_at, is_active, last_used_at, created_at
FROM chat_tokens
WHERE token = $1
LIMIT 1
`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChatTokenRecord{}, ErrChatTokenNotFound
		}
		return ChatTokenRecord{}, fmt.Errorf("find chat token: %w", err)
	}

	return record, nil
}

func (r *ChatTokenRepo) TouchLastUsed(ctx context.Context, token string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is required")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE chat_tokens
SET last_used_at = NOW()
WHERE token = $1
`, token); err != nil {
		return fmt.Errorf("touch chat token: %w", err)
	}

	return nil
}

// DeactivateExpired flips is_active off for tokens whose expiry passed the
// cutoff, so stale links stop working without losing the audit trail.
func (r *ChatTokenRepo) DeactivateExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE chat_tokens
SET is_active = FALSE
WHERE is_active = TRUE AND expires_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate expired chat tokens: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanChatToken(row pgx.Row) (ChatTokenRecord, error) {
	var record ChatTokenRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Email,
		&record.Token,
		&record.ProductType,
		&record.ExpiresAt,
		&record.IsActive,
		&record.LastUsedAt,
		&record.CreatedAt,
	); err != nil {
		return ChatTokenRecord{}, err
	}
	return record, nil
}
