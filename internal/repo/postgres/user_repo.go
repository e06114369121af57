package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepo struct {
	pool *pgxpool.Pool
}

type UserRecord struct {
	ID               int64
	Email            string
	PasswordHash     string
	FullName         string
	TelegramUsername *string
	IsAdmin          bool
	PurchasedProduct *string
	ChatExpiresAt    *time.Time
	CreatedAt        time.Time
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) Create(ctx context.Context, email, passwordHash, fullName, telegramUsername string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return UserRecord{}, fmt.Errorf("invalid user create payload")
	}

	var tg *string
	if v := strings.TrimSpace(telegramUsername); v != "" {
		tg = &v
	}

	user, err := scanUser(r.pool.QueryRow(ctx, `
INSERT INTO users (email, password_hash, full_name, telegram_username, is_admin, created_at)
VALUES ($1, $2, $3, $4, FALSE, NOW())
RETURNING id, email, password_hash, full_name, telegram_username, is_admin, purchased_product, chat_expires_at, created_at
`, email, passwordHash, strings.TrimSpace(fullName), tg))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return UserRecord{}, ErrEmailTaken
		}
		return UserRecord{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return UserRecord{}, fmt.Errorf("email is required")
	}

	user, err := scanUser(r.pool.QueryRow(ctx, `
SELECT id, email, password_hash, full_name, telegram_username, is_admin, purchased_product, chat_expires_at, created_at
FROM users
WHERE LOWER(email) = $1
LIMIT 1
`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by email: %w", err)
	}

	return user, nil
}

func (r *UserRepo) FindByID(ctx context.Context, userID int64) (UserRecord, error) {
	if r.pool == nil {
		return UserRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return UserRecord{}, fmt.Errorf("invalid user id")
	}

	user, err := scanUser(r.pool.QueryRow(ctx, `
SELECT id, email, password_hash, full_name, telegram_username, is_admin, purchased_product, chat_expires_at, created_at
FROM users
WHERE id = $1
LIMIT 1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("find user by id: %w", err)
	}

	return user, nil
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || passwordHash == "" {
		return fmt.Errorf("invalid password update payload")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE users
SET password_hash = $2
WHERE id = $1
`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepo) SetPurchasedProduct(ctx context.Context, userID int64, productType string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || strings.TrimSpace(productType) == "" {
		return fmt.Errorf("invalid purchased product payload")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET purchased_product = $2
WHERE id = $1
`, userID, strings.ToLower(strings.TrimSpace(productType))); err != nil {
		return fmt.Errorf("set purchased product: %w", err)
	}

	return nil
}

// SetChatAccess updates the chat expiry and purchased product marker in one
// statement; the stacking decision happens in the service against the
// previously read expiry.
func (r *UserRepo) SetChatAccess(ctx context.Context, userID int64, chatExpiresAt time.Time, productType string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || strings.TrimSpace(productType) == "" {
		return fmt.Errorf("invalid chat access payload")
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE users
SET chat_expires_at = $2, purchased_product = $3
WHERE id = $1
`, userID, chatExpiresAt.UTC(), strings.ToLower(strings.TrimSpace(productType))); err != nil {
		return fmt.Errorf("set chat access: %w", err)
	}

	return nil
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var user UserRecord
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.TelegramUsername,
		&user.IsAdmin,
		&user.PurchasedProduct,
		&user.ChatExpiresAt,
		&user.CreatedAt,
	); err != nil {
		return UserRecord{}, err
	}
	return user, nil
}
