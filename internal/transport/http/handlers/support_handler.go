package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	authsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/auth"
	supportsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/support"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/dto"
	httperrors "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/errors"
)

type SupportHandler struct {
	support *supportsvc.Service
}

func NewSupportHandler(support *supportsvc.Service) *SupportHandler {
	return &SupportHandler{support: support}
}

// History returns the caller's own thread.
func (h *SupportHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.support == nil {
		writeInternal(w, "SUPPORT_SERVICE_UNAVAILABLE", "support service is unavailable")
		return
	}

	messages, err := h.support.History(r.Context(), identity.UserID, false)
	if err != nil {
		handleSupportError(w, err, "failed to load support history")
		return
	}

	httperrors.Write(w, http.StatusOK, supportHistoryDTO(messages))
}

func (h *SupportHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.support == nil {
		writeInternal(w, "SUPPORT_SERVICE_UNAVAILABLE", "support service is unavailable")
		return
	}

	var req dto.SupportSendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	message, err := h.support.Send(r.Context(), supportsvc.SendInput{
		UserID:    identity.UserID,
		Message:   req.Message,
		ImageURL:  req.ImageURL,
		FromAdmin: false,
	})
	if err != nil {
		handleSupportError(w, err, "failed to send message")
		return
	}

	httperrors.Write(w, http.StatusCreated, supportMessageDTO(message))
}

// AdminChats lists every user thread with unread counts.
func (h *SupportHandler) AdminChats(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	if h.support == nil {
		writeInternal(w, "SUPPORT_SERVICE_UNAVAILABLE", "support service is unavailable")
		return
	}

	chats, err := h.support.Chats(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load chats")
		return
	}

	resp := dto.SupportChatsResponse{Chats: make([]dto.SupportChatDTO, 0, len(chats))}
	for _, chat := range chats {
		resp.Chats = append(resp.Chats, dto.SupportChatDTO{
			UserID:        chat.UserID,
			Email:         chat.Email,
			FullName:      chat.FullName,
			LastMessage:   chat.LastMessage,
			LastMessageAt: chat.LastMessageAt,
			UnreadCount:   chat.UnreadCount,
		})
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *SupportHandler) AdminHistory(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	if h.support == nil {
		writeInternal(w, "SUPPORT_SERVICE_UNAVAILABLE", "support service is unavailable")
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	messages, err := h.support.History(r.Context(), userID, true)
	if err != nil {
		handleSupportError(w, err, "failed to load support history")
		return
	}

	httperrors.Write(w, http.StatusOK, supportHistoryDTO(messages))
}

func (h *SupportHandler) AdminSend(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	if h.support == nil {
		writeInternal(w, "SUPPORT_SERVICE_UNAVAILABLE", "support service is unavailable")
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid user id")
		return
	}

	var req dto.SupportSendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	message, err := h.support.Send(r.Context(), supportsvc.SendInput{
		UserID:    userID,
		Message:   req.Message,
		ImageURL:  req.ImageURL,
		FromAdmin: true,
	})
	if err != nil {
		handleSupportError(w, err, "failed to send message")
		return
	}

	httperrors.Write(w, http.StatusCreated, supportMessageDTO(message))
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return false
	}
	if !identity.IsAdmin {
		writeForbidden(w, "FORBIDDEN", "admin access required")
		return false
	}
	return true
}

func handleSupportError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, supportsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid support request")
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

func supportHistoryDTO(messages []supportsvc.Message) dto.SupportHistoryResponse {
	resp := dto.SupportHistoryResponse{Messages: make([]dto.SupportMessageDTO, 0, len(messages))}
	for _, message := range messages {
		resp.Messages = append(resp.Messages, supportMessageDTO(message))
	}
	return resp
}

func supportMessageDTO(message supportsvc.Message) dto.SupportMessageDTO {
	return dto.SupportMessageDTO{
		ID:          message.ID,
		UserID:      message.UserID,
		Message:     message.Message,
		ImageURL:    message.ImageURL,
		IsFromAdmin: message.IsFromAdmin,
		ReadByAdmin: message.ReadByAdmin,
		ReadByUser:  message.ReadByUser,
		CreatedAt:   message.CreatedAt,
	}
}
