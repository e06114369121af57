package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	chattokensvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/chattokens"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/dto"
	httperrors "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/errors"
)

type ChatTokenHandler struct {
	tokens *chattokensvc.Service
	apiKey string
}

func NewChatTokenHandler(tokens *chattokensvc.Service, apiKey string) *ChatTokenHandler {
	return &ChatTokenHandler{tokens: tokens, apiKey: apiKey}
}

func (h *ChatTokenHandler) authorized(r *http.Request) bool {
	if h.apiKey == "" {
		return false
	}
	got := r.Header.Get("X-Api-Key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.apiKey)) == 1
}

func (h *ChatTokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeInternal(w, "CHAT_TOKENS_SERVICE_UNAVAILABLE", "chat tokens service is unavailable")
		return
	}
	if !h.authorized(r) {
		writeUnauthorized(w, "UNAUTHORIZED", "invalid api key")
		return
	}

	var req dto.ChatTokenIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	token, err := h.tokens.Issue(r.Context(), chattokensvc.IssueInput{
		UserID:      req.UserID,
		Email:       req.Email,
		ProductType: req.ProductType,
		Days:        req.Days,
	})
	if err != nil {
		switch {
		case errors.Is(err, chattokensvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid token issue payload")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to issue chat token")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, chatTokenDTO(token))
}

func (h *ChatTokenHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeInternal(w, "CHAT_TOKENS_SERVICE_UNAVAILABLE", "chat tokens service is unavailable")
		return
	}
	if !h.authorized(r) {
		writeUnauthorized(w, "UNAUTHORIZED", "invalid api key")
		return
	}

	raw := r.URL.Query().Get("token")
	token, err := h.tokens.Verify(r.Context(), raw)
	if err != nil {
		switch {
		case errors.Is(err, chattokensvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "token query parameter is required")
		case errors.Is(err, chattokensvc.ErrTokenNotFound):
			writeNotFound(w, "TOKEN_NOT_FOUND", "chat token not found")
		case errors.Is(err, chattokensvc.ErrTokenExpired), errors.Is(err, chattokensvc.ErrTokenInactive):
			writeUnauthorized(w, "TOKEN_INVALID", "chat token is no longer valid")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to verify chat token")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ChatTokenVerifyResponse{
		Valid:       true,
		UserID:      token.UserID,
		Email:       token.Email,
		ProductType: string(token.ProductType),
		ExpiresAt:   token.ExpiresAt,
	})
}

func chatTokenDTO(token chattokensvc.Token) dto.ChatTokenResponse {
	return dto.ChatTokenResponse{
		Token:       token.Token,
		UserID:      token.UserID,
		Email:       token.Email,
		ProductType: string(token.ProductType),
		ExpiresAt:   token.ExpiresAt,
	}
}
