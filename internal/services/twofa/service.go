package twofa

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	redrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/redis"
)

// codeSubject keys the single admin verification code. The panel has one
// shared admin identity, matching the ADMIN_PANEL_PASSWORD model.
const codeSubject = "admin"

var (
	ErrInvalidPassword = errors.New("invalid admin password")
	ErrCodeNotFound    = errors.New("verification code not found or expired")
	ErrCodeMismatch    = errors.New("verification code mismatch")
	ErrTOTPInvalid     = errors.New("totp code invalid")
	ErrNotConfigured   = errors.New("two-factor auth is not configured")
)

type CodeStore interface {
	StoreCode(ctx context.Context, subject, code string, ttl time.Duration) error
	ConsumeCode(ctx context.Context, subject string) (string, error)
}

type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Config struct {
	AdminPassword string
	AdminEmail    string
	CodeTTL       time.Duration
	TOTPIssuer    string
	TOTPAccount   string
	TOTPSecret    string
}

// Service implements the admin panel's second factor: an emailed one-time
// code kept in a shared store, plus an optional authenticator-app factor.
type Service struct {
	codes CodeStore
	mail  MailSender
	cfg   Config
	now   func() time.Time

	newCode func() (string, error)
}

type Enrollment struct {
	Secret     string
	OTPAuthURL string
	QRDataURL  string
}

func NewService(codes CodeStore, mail MailSender, cfg Config) *Service {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}

	return &Service{
		codes:   codes,
		mail:    mail,
		cfg:     cfg,
		now:     time.Now,
		newCode: randomCode,
	}
}

// SendCode checks the admin password and mails a fresh one-time code. Issuing
// a new code replaces any previous one for the subject.
func (s *Service) SendCode(ctx context.Context, password string) error {
	if s.codes == nil || s.mail == nil {
		return fmt.Errorf("twofa dependencies are not configured")
	}
	if s.cfg.AdminPassword == "" || s.cfg.AdminEmail == "" {
		return ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) != 1 {
		return ErrInvalidPassword
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := s.codes.StoreCode(ctx, codeSubject, code, s.cfg.CodeTTL); err != nil {
		return err
	}

	body := fmt.Sprintf("Код подтверждения входа в админ-панель: %s\n\nКод действует %d минут.",
		code, int(s.cfg.CodeTTL.Minutes()))
	if err := s.mail.Send(ctx, s.cfg.AdminEmail, "Код подтверждения", body); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}

	return nil
}

// VerifyCode consumes the stored code and compares it. Consumption happens
// before comparison, so a code survives at most one attempt regardless of
// outcome.
func (s *Service) VerifyCode(ctx context.Context, code string) error {
	if s.codes == nil {
		return fmt.Errorf("twofa dependencies are not configured")
	}

	stored, err := s.codes.ConsumeCode(ctx, codeSubject)
	if err != nil {
		if errors.Is(err, redrepo.ErrCodeNotFound) {
			return ErrCodeNotFound
		}
		return err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrCodeMismatch
	}

	return nil
}

// VerifyTOTP validates an authenticator-app code against the configured
// secret.
func (s *Service) VerifyTOTP(code string) error {
	if s.cfg.TOTPSecret == "" {
		return ErrNotConfigured
	}
	if !validateTOTP(s.cfg.TOTPSecret, code, s.now()) {
		return ErrTOTPInvalid
	}
	return nil
}

// EnrollTOTP mints a new authenticator secret with a scannable QR code. The
// caller is responsible for persisting the secret into configuration.
func (s *Service) EnrollTOTP() (Enrollment, error) {
	issuer := s.cfg.TOTPIssuer
	if issuer == "" {
		issuer = "bankrot-admin"
	}
	account := s.cfg.TOTPAccount
	if account == "" {
		account = s.cfg.AdminEmail
	}

	secret, otpURL, err := generateTOTPSecret(issuer, account)
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	qrDataURL, err := makeQRCodeDataURL(otpURL, 256)
	if err != nil {
		return Enrollment{}, fmt.Errorf("render totp qr code: %w", err)
	}

	return Enrollment{
		Secret:     secret,
		OTPAuthURL: otpURL,
		QRDataURL:  qrDataURL,
	}, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
