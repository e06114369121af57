package support

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
)

type messageStoreStub struct {
	messages []pgrepo.SupportMessageRecord
	chats    []pgrepo.SupportChatRecord

	markReadCalls []bool
}

func (s *messageStoreStub) ListForUser(_ context.Context, userID int64) ([]pgrepo.SupportMessageRecord, error) {
	var out []pgrepo.SupportMessageRecord
	for _, m := range s.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *messageStoreStub) Insert(_ context.Context, userID int64, message, imageURL string, fromAdmin bool) (pgrepo.SupportMessageRecord, error) {
	record := pgrepo.SupportMessageRecord{
		ID:          int64(len(s.messages) + 1),
		UserID:      userID,
		Message:     message,
		IsFromAdmin: fromAdmin,
		ReadByAdmin: fromAdmin,
		ReadByUser:  !fromAdmin,
		CreatedAt:   time.Now().UTC(),
	}
	if imageURL != "" {
		record.ImageURL = &imageURL
	}
	s.messages = append(s.messages, record)
	return record, nil
}

func (s *messageStoreStub) MarkRead(_ context.Context, _ int64, fromAdmin bool) error {
	s.markReadCalls = append(s.markReadCalls, fromAdmin)
	return nil
}

func (s *messageStoreStub) ListChats(_ context.Context) ([]pgrepo.SupportChatRecord, error) {
	return s.chats, nil
}

func TestSendAndHistory(t *testing.T) {
	store := &messageStoreStub{}
	svc := NewService(store)

	sent, err := svc.Send(context.Background(), SendInput{UserID: 7, Message: "  Нужна помощь  "})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Message != "Нужна помощь" || sent.IsFromAdmin {
		t.Fatalf("unexpected message: %+v", sent)
	}

	if _, err := svc.Send(context.Background(), SendInput{UserID: 7, Message: "Ответ", FromAdmin: true}); err != nil {
		t.Fatalf("send admin reply: %v", err)
	}

	history, err := svc.History(context.Background(), 7, false)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if len(store.markReadCalls) != 1 || store.markReadCalls[0] != false {
		t.Fatalf("user read must mark admin replies read, calls=%v", store.markReadCalls)
	}

	if _, err := svc.History(context.Background(), 7, true); err != nil {
		t.Fatalf("admin history: %v", err)
	}
	if store.markReadCalls[1] != true {
		t.Fatalf("admin read must mark client messages read, calls=%v", store.markReadCalls)
	}
}

func TestSendValidation(t *testing.T) {
	svc := NewService(&messageStoreStub{})

	if _, err := svc.Send(context.Background(), SendInput{UserID: 7, Message: "   "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for empty message, got %v", err)
	}
	if _, err := svc.Send(context.Background(), SendInput{UserID: 0, Message: "hi"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing user, got %v", err)
	}
	if _, err := svc.Send(context.Background(), SendInput{UserID: 7, Message: strings.Repeat("x", maxMessageLength+1)}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for oversized message, got %v", err)
	}

	// An image-only message is allowed.
	if _, err := svc.Send(context.Background(), SendInput{UserID: 7, ImageURL: "https://cdn.example/shot.png"}); err != nil {
		t.Fatalf("image-only message: %v", err)
	}
}

func TestChats(t *testing.T) {
	store := &messageStoreStub{chats: []pgrepo.SupportChatRecord{
		{UserID: 7, Email: "buyer@example.com", LastMessage: "Нужна помощь", UnreadCount: 2},
	}}
	svc := NewService(store)

	chats, err := svc.Chats(context.Background())
	if err != nil {
		t.Fatalf("chats: %v", err)
	}
	if len(chats) != 1 || chats[0].UnreadCount != 2 {
		t.Fatalf("unexpected chats: %+v", chats)
	}
}
