package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SupportRepo struct {
	pool *pgxpool.Pool
}

type SupportMessageRecord struct {
	ID          int64
	UserID      int64
	Message     string
	ImageURL    *string
	IsFromAdmin bool
	ReadByAdmin bool
	ReadByUser  bool
	CreatedAt   time.Time
}

// SupportChatRecord is one row of the admin chat overview.
type SupportChatRecord struct {
	UserID        int64
	Email         string
	FullName      string
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
}

func NewSupportRepo(pool *pgxpool.Pool) *SupportRepo {
	return &SupportRepo{pool: pool}
}

func (r *SupportRepo) ListForUser(ctx context.Context, userID int64) ([]SupportMessageRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, message, image_url, is_from_admin, read_by_admin, read_by_user, created_at
FROM support_messages
WHERE user_id = $1
ORDER BY created_at ASC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list support messages: %w", err)
	}
	defer rows.Close()

	return collectSupportMessages(rows)
}

func (r *SupportRepo) Insert(ctx context.Context, userID int64, message, imageURL string, fromAdmin bool) (SupportMessageRecord, error) {
	if r.pool == nil {
		return SupportMessageRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 || (strings.TrimSpace(message) == "" && strings.TrimSpace(imageURL) == "") {
		return SupportMessageRecord{}, fmt.Errorf("invalid support message payload")
	}

	var img *string
	if v := strings.TrimSpace(imageURL); v != "" {
		img = &v
	}

	var record SupportMessageRecord
	err := r.pool.QueryRow(ctx, `
INSERT INTO support_messages (user_id, message, image_url, is_from_admin, read_by_admin, read_by_user, created_at)
VALUES ($1, $2, $3, $4, $4, NOT $4, NOW())
RETURNING id, user_id, message, image_url, is_from_admin, read_by_admin, read_by_user, created_at
`, userID, strings.TrimSpace(message), img, fromAdmin).Scan(
		&record.ID,
		&record.UserID,
		&record.Message,
		&record.ImageURL,
		&record.IsFromAdmin,
		&record.ReadByAdmin,
		&record.ReadByUser,
		&record.CreatedAt,
	)
	if err != nil {
		return SupportMessageRecord{}, fmt.Errorf("insert support message: %w", err)
	}

	return record, nil
}

// MarkRead flags the counterparty's messages as read. fromAdmin=true marks
// client messages read by the admin; false marks admin replies read by the
// client.
func (r *SupportRepo) MarkRead(ctx context.Context, userID int64, fromAdmin bool) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	var err error
	if fromAdmin {
		_, err = r.pool.Exec(ctx, `
UPDATE support_messages
SET read_by_admin = TRUE
WHERE user_id = $1
  AND is_from_admin = FALSE
`, userID)
	} else {
		_, err = r.pool.Exec(ctx, `
UPDATE support_messages
SET read_by_user = TRUE
WHERE user_id = $1
  AND is_from_admin = TRUE
`, userID)
	}
	if err != nil {
		return fmt.Errorf("mark support messages read: %w", err)
	}

	return nil
}

func (r *SupportRepo) ListChats(ctx context.Context) ([]SupportChatRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	u.id,
	u.email,
	u.full_name,
	last_msg.message,
	last_msg.created_at,
	COALESCE(unread.cnt, 0)
FROM users u
JOIN LATERAL (
	SELECT message, created_at
	FROM support_messages
	WHERE user_id = u.id
	ORDER BY created_at DESC
	LIMIT 1
) last_msg ON TRUE
LEFT JOIN LATERAL (
	SELECT COUNT(*) AS cnt
	FROM support_messages
	WHERE user_id = u.id
	  AND is_from_admin = FALSE
	  AND read_by_admin = FALSE
) unread ON TRUE
ORDER BY last_msg.created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list support chats: %w", err)
	}
	defer rows.Close()

	var chats []SupportChatRecord
	for rows.Next() {
		var chat SupportChatRecord
		if err := rows.Scan(
			&chat.UserID,
			&chat.Email,
			&chat.FullName,
			&chat.LastMessage,
			&chat.LastMessageAt,
			&chat.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan support chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate support chats: %w", err)
	}

	return chats, nil
}

func collectSupportMessages(rows pgx.Rows) ([]SupportMessageRecord, error) {
	var messages []SupportMessageRecord
	for rows.Next() {
		var record SupportMessageRecord
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.Message,
			&record.ImageURL,
			&record.IsFromAdmin,
			&record.ReadByAdmin,
			&record.ReadByUser,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan support message: %w", err)
		}
		messages = append(messages, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate support messages: %w", err)
	}

	return messages, nil
}
