package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/domain/enums"
	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/chattokens"
)

type UserStore interface {
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error
}

type TokenIssuer interface {
	Issue(ctx context.Context, in chattokens.IssueInput) (chattokens.Token, error)
}

type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Config struct {
	AdminURL     string
	AdminEmail   string
	AdminTimeout time.Duration
	ChatURL      string
	LoginURL     string
}

// Service fans a freshly confirmed payment out to the buyer and the admin.
// Every step is best effort: a failed email or alert is logged and swallowed,
// because the payment is already settled and the gateway must still get an ack.
type Service struct {
	users  UserStore
	tokens TokenIssuer
	mail   MailSender
	http   *http.Client
	cfg    Config
	log    *zap.Logger

	newPassword func() string
}

type PaymentCompletedInput struct {
	User          pgrepo.UserRecord
	ProductType   enums.ProductType
	PaymentID     string
	Amount        float64
	ExpiresAt     *time.Time
	ChatExpiresAt *time.Time
}

func NewService(users UserStore, tokens TokenIssuer, mail MailSender, cfg Config, log *zap.Logger) *Service {
	if cfg.AdminTimeout <= 0 {
		cfg.AdminTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		users:  users,
		tokens: tokens,
		mail:   mail,
		http:   &http.Client{Timeout: cfg.AdminTimeout},
		cfg:    cfg,
		log:    log,
		newPassword: func() string {
			return uuid.NewString()[:8]
		},
	}
}

// PaymentCompleted runs the post-confirmation fanout: alert the admin, rotate
// the buyer's password to a fresh temporary one, mint a chat token for
// chat-bearing products, and mail the credentials.
func (s *Service) PaymentCompleted(ctx context.Context, in PaymentCompletedInput) {
	s.sendAdminAlert(ctx, in)

	password, ok := s.rotatePassword(ctx, in.User)
	if !ok {
		return
	}

	var chatToken *chattokens.Token
	if in.ProductType.GrantsChatAccess() && s.tokens != nil {
		token, err := s.tokens.Issue(ctx, chattokens.IssueInput{
			UserID:      in.User.ID,
			Email:       in.User.Email,
			ProductType: string(in.ProductType),
		})
		if err != nil {
			s.log.Warn("issue chat token after payment",
				zap.Int64("user_id", in.User.ID),
				zap.String("payment_id", in.PaymentID),
				zap.Error(err))
		} else {
			chatToken = &token
		}
	}

	s.sendCredentialsEmail(ctx, in, password, chatToken)
}

// rotatePassword writes a fresh temporary password so the credentials email
// always carries a working login. Returns ok=false when nothing was persisted;
// mailing stale credentials would lock the buyer out.
func (s *Service) rotatePassword(ctx context.Context, user pgrepo.UserRecord) (string, bool) {
	if s.users == nil {
		return "", false
	}

	password := s.newPassword()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error("hash temporary password", zap.Int64("user_id", user.ID), zap.Error(err))
		return "", false
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		s.log.Error("store temporary password", zap.Int64("user_id", user.ID), zap.Error(err))
		return "", false
	}

	return password, true
}

func (s *Service) sendCredentialsEmail(ctx context.Context, in PaymentCompletedInput, password string, chatToken *chattokens.Token) {
	if s.mail == nil || in.User.Email == "" {
		return
	}

	subject, body := s.credentialsMessage(in, password, chatToken)
	if err := s.mail.Send(ctx, in.User.Email, subject, body); err != nil {
		s.log.Warn("send credentials email",
			zap.Int64("user_id", in.User.ID),
			zap.String("payment_id", in.PaymentID),
			zap.Error(err))
		return
	}

	s.log.Info("credentials email sent",
		zap.Int64("user_id", in.User.ID),
		zap.String("product_type", string(in.ProductType)))
}

func (s *Service) credentialsMessage(in PaymentCompletedInput, password string, chatToken *chattokens.Token) (string, string) {
	var subject string
	switch in.ProductType {
	case enums.ProductChat:
		subject = "Доступ к чату поддержки"
	case enums.ProductCombo:
		subject = "Доступ к курсу и чату поддержки"
	default:
		subject = "Доступ к курсу"
	}

	var buf bytes.Buffer
	name := in.User.FullName
	if name == "" {
		name = in.User.Email
	}
	fmt.Fprintf(&buf, "Здравствуйте, %s!\n\nОплата прошла успешно.\n\n", name)
	fmt.Fprintf(&buf, "Логин: %s\nПароль: %s\n", in.User.Email, password)
	if s.cfg.LoginURL != "" {
		fmt.Fprintf(&buf, "Вход: %s\n", s.cfg.LoginURL)
	}
	if in.ExpiresAt != nil {
		fmt.Fprintf(&buf, "Доступ действует до: %s\n", in.ExpiresAt.Format("02.01.2006"))
	}
	if chatToken != nil {
		fmt.Fprintf(&buf, "\nТокен чата поддержки: %s\n", chatToken.Token)
		if s.cfg.ChatURL != "" {
			fmt.Fprintf(&buf, "Чат: %s\n", s.cfg.ChatURL)
		}
		fmt.Fprintf(&buf, "Чат доступен до: %s\n", chatToken.ExpiresAt.Format("02.01.2006"))
	}

	return subject, buf.String()
}

func (s *Service) sendAdminAlert(ctx context.Context, in PaymentCompletedInput) {
	if s.cfg.AdminURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"user_email": in.User.Email,
		"user_name":  in.User.FullName,
		"amount":     in.Amount,
		"payment_id": in.PaymentID,
		"product":    string(in.ProductType),
		"admin":      s.cfg.AdminEmail,
	})
	if err != nil {
		s.log.Warn("marshal admin alert", zap.Error(err))
		return
	}

	alertCtx, cancel := context.WithTimeout(ctx, s.cfg.AdminTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(alertCtx, http.MethodPost, s.cfg.AdminURL, bytes.NewReader(payload))
	if err != nil {
		s.log.Warn("build admin alert request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Warn("send admin alert", zap.String("payment_id", in.PaymentID), zap.Error(err))
		return
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.log.Warn("admin alert rejected",
			zap.String("payment_id", in.PaymentID),
			zap.Int("status", resp.StatusCode))
	}
}
