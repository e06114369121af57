package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
)

const maxMessageLength = 4000

var ErrValidation = errors.New("validation error")

type MessageStore interface {
	ListForUser(ctx context.Context, userID int64) ([]pgrepo.SupportMessageRecord, error)
	Insert(ctx context.Context, userID int64, message, imageURL string, fromAdmin bool) (pgrepo.SupportMessageRecord, error)
	MarkRead(ctx context.Context, userID int64, fromAdmin bool) error
	ListChats(ctx context.Context) ([]pgrepo.SupportChatRecord, error)
}

type Service struct {
	messages MessageStore
}

type Message struct {
	ID          int64
	UserID      int64
	Message     string
	ImageURL    string
	IsFromAdmin bool
	ReadByAdmin bool
	ReadByUser  bool
	CreatedAt   time.Time
}

type ChatOverview struct {
	UserID        int64
	Email         string
	FullName      string
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
}

type SendInput struct {
	UserID    int64
	Message   string
	ImageURL  string
	FromAdmin bool
}

func NewService(messages MessageStore) *Service {
	return &Service{messages: messages}
}

// History returns the full thread for a user. Reading the thread marks the
// other side's messages as read: a user opening the chat has seen the admin
// replies, and vice versa.
func (s *Service) History(ctx context.Context, userID int64, asAdmin bool) ([]Message, error) {
	if s.messages == nil {
		return nil, fmt.Errorf("support message store is nil")
	}
	if userID <= 0 {
		return nil, ErrValidation
	}

	records, err := s.messages.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.messages.MarkRead(ctx, userID, asAdmin); err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, messageFromRecord(record))
	}
	return messages, nil
}

func (s *Service) Send(ctx context.Context, in SendInput) (Message, error) {
	if s.messages == nil {
		return Message{}, fmt.Errorf("support message store is nil")
	}
	text := strings.TrimSpace(in.Message)
	imageURL := strings.TrimSpace(in.ImageURL)
	if in.UserID <= 0 || (text == "" && imageURL == "") {
		return Message{}, ErrValidation
	}
	if len(text) > maxMessageLength {
		return Message{}, ErrValidation
	}

	record, err := s.messages.Insert(ctx, in.UserID, text, imageURL, in.FromAdmin)
	if err != nil {
		return Message{}, err
	}

	return messageFromRecord(record), nil
}

// Chats is the admin overview: one row per user with the latest message and
// how many of theirs the admin has not read yet.
func (s *Service) Chats(ctx context.Context) ([]ChatOverview, error) {
	if s.messages == nil {
		return nil, fmt.Errorf("support message store is nil")
	}

	records, err := s.messages.ListChats(ctx)
	if err != nil {
		return nil, err
	}

	chats := make([]ChatOverview, 0, len(records))
	for _, record := range records {
		chats = append(chats, ChatOverview{
			UserID:        record.UserID,
			Email:         record.Email,
			FullName:      record.FullName,
			LastMessage:   record.LastMessage,
			LastMessageAt: record.LastMessageAt,
			UnreadCount:   record.UnreadCount,
		})
	}
	return chats, nil
}

func messageFromRecord(record pgrepo.SupportMessageRecord) Message {
	message := Message{
		ID:          record.ID,
		UserID:      record.UserID,
		Message:     record.Message,
		IsFromAdmin: record.IsFromAdmin,
		ReadByAdmin: record.ReadByAdmin,
		ReadByUser:  record.ReadByUser,
		CreatedAt:   record.CreatedAt,
	}
	if record.ImageURL != nil {
		message.ImageURL = *record.ImageURL
	}
	return message
}
