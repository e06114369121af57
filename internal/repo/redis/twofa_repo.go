package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const twofaPrefix = "twofa:code:"

var ErrCodeNotFound = errors.New("verification code not found")

// TwoFARepo keeps admin verification codes in redis so every instance of the
// service sees the same code regardless of which one issued it.
type TwoFARepo struct {
	client *goredis.Client
}

func NewTwoFARepo(client *goredis.Client) *TwoFARepo {
	return &TwoFARepo{client: client}
}

func (r *TwoFARepo) StoreCode(ctx context.Context, subject, code string, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	subject = strings.TrimSpace(subject)
	code = strings.TrimSpace(code)
	if subject == "" || code == "" || ttl <= 0 {
		return fmt.Errorf("invalid verification code payload")
	}

	if err := r.client.Set(ctx, twofaKey(subject), code, ttl).Err(); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	return nil
}

// ConsumeCode pops the stored code for the subject. A code can be consumed at
// most once; expiry is handled by the key TTL.
func (r *TwoFARepo) ConsumeCode(ctx context.Context, subject string) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}

	code, err := r.client.GetDel(ctx, twofaKey(subject)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrCodeNotFound
		}
		return "", fmt.Errorf("consume verification code: %w", err)
	}

	return code, nil
}

func twofaKey(subject string) string {
	return twofaPrefix + subject
}
