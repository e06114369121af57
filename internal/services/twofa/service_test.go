package twofa

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp/totp"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/redis"
)

type mailSenderStub struct {
	to    string
	body  string
	calls int
	err   error
}

func (s *mailSenderStub) Send(_ context.Context, to, _, body string) error {
	if s.err != nil {
		return s.err
	}
	s.calls++
	s.to = to
	s.body = body
	return nil
}

func newMiniRedisStore(t *testing.T) (*miniredis.Miniredis, *redrepo.TwoFARepo) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, redrepo.NewTwoFARepo(client)
}

func newTestService(t *testing.T, mail *mailSenderStub) (*Service, *miniredis.Miniredis) {
	t.Helper()

	mr, codes := newMiniRedisStore(t)
	svc := NewService(codes, mail, Config{
		AdminPassword: "admin-pass",
		AdminEmail:    "admin@example.com",
		CodeTTL:       5 * time.Minute,
	})
	svc.newCode = func() (string, error) { return "123456", nil }
	return svc, mr
}

func TestSendCodeRequiresAdminPassword(t *testing.T) {
	svc, _ := newTestService(t, &mailSenderStub{})

	if err := svc.SendCode(context.Background(), "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestSendAndVerifyCode(t *testing.T) {
	mail := &mailSenderStub{}
	svc, _ := newTestService(t, mail)

	if err := svc.SendCode(context.Background(), "admin-pass"); err != nil {
		t.Fatalf("send code: %v", err)
	}
	if mail.calls != 1 || mail.to != "admin@example.com" {
		t.Fatalf("expected one code email to admin, got %d to %q", mail.calls, mail.to)
	}
	if !strings.Contains(mail.body, "123456") {
		t.Fatalf("email body missing code: %q", mail.body)
	}

	if err := svc.VerifyCode(context.Background(), "123456"); err != nil {
		t.Fatalf("verify code: %v", err)
	}
}

func TestVerifyCodeIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t, &mailSenderStub{})

	if err := svc.SendCode(context.Background(), "admin-pass"); err != nil {
		t.Fatalf("send code: %v", err)
	}
	if err := svc.VerifyCode(context.Background(), "123456"); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if err := svc.VerifyCode(context.Background(), "123456"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound on reuse, got %v", err)
	}
}

func TestVerifyCodeMismatchConsumesCode(t *testing.T) {
	svc, _ := newTestService(t, &mailSenderStub{})

	if err := svc.SendCode(context.Background(), "admin-pass"); err != nil {
		t.Fatalf("send code: %v", err)
	}
	if err := svc.VerifyCode(context.Background(), "000000"); !errors.Is(err, ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
	// The wrong attempt burned the code; even the right one no longer works.
	if err := svc.VerifyCode(context.Background(), "123456"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound after burned code, got %v", err)
	}
}

func TestVerifyCodeExpires(t *testing.T) {
	svc, mr := newTestService(t, &mailSenderStub{})

	if err := svc.SendCode(context.Background(), "admin-pass"); err != nil {
		t.Fatalf("send code: %v", err)
	}

	mr.FastForward(6 * time.Minute)

	if err := svc.VerifyCode(context.Background(), "123456"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound after expiry, got %v", err)
	}
}

func TestEnrollAndVerifyTOTP(t *testing.T) {
	_, codes := newMiniRedisStore(t)
	svc := NewService(codes, &mailSenderStub{}, Config{
		AdminPassword: "admin-pass",
		AdminEmail:    "admin@example.com",
		TOTPIssuer:    "test-panel",
	})

	enrollment, err := svc.EnrollTOTP()
	if err != nil {
		t.Fatalf("enroll totp: %v", err)
	}
	if enrollment.Secret == "" || !strings.HasPrefix(enrollment.QRDataURL, "data:image/png;base64,") {
		t.Fatalf("unexpected enrollment: %+v", enrollment)
	}

	svc.cfg.TOTPSecret = enrollment.Secret
	now := time.Now()
	svc.now = func() time.Time { return now }

	code, err := totp.GenerateCode(enrollment.Secret, now)
	if err != nil {
		t.Fatalf("generate totp code: %v", err)
	}
	if err := svc.VerifyTOTP(code); err != nil {
		t.Fatalf("verify totp: %v", err)
	}
	if err := svc.VerifyTOTP("000000"); !errors.Is(err, ErrTOTPInvalid) {
		t.Fatalf("expected ErrTOTPInvalid, got %v", err)
	}
}

func TestVerifyTOTPRequiresSecret(t *testing.T) {
	_, codes := newMiniRedisStore(t)
	svc := NewService(codes, &mailSenderStub{}, Config{})

	if err := svc.VerifyTOTP("123456"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
