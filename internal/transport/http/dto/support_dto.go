package dto

import "time"

type SupportSendRequest struct {
	UserID   int64  `json:"user_id,omitempty"`
	Message  string `json:"message"`
	ImageURL string `json:"image_url,omitempty"`
}

type SupportMessageDTO struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Message     string    `json:"message"`
	ImageURL    string    `json:"image_url,omitempty"`
	IsFromAdmin bool      `json:"is_from_admin"`
	ReadByAdmin bool      `json:"read_by_admin"`
	ReadByUser  bool      `json:"read_by_user"`
	CreatedAt   time.Time `json:"created_at"`
}

type SupportHistoryResponse struct {
	Messages []SupportMessageDTO `json:"messages"`
}

type SupportChatDTO struct {
	UserID        int64     `json:"user_id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
}

type SupportChatsResponse struct {
	Chats []SupportChatDTO `json:"chats"`
}
