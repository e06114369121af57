package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	authsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/auth"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/dto"
	httperrors "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/errors"
)

type AuthHandler struct {
	auth *authsvc.Service
}

func NewAuthHandler(auth *authsvc.Service) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.auth.Register(r.Context(), authsvc.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrInvalidInput):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid registration payload")
		case errors.Is(err, authsvc.ErrEmailTaken):
			httperrors.Write(w, http.StatusConflict, httperrors.APIError{
				Code:    "EMAIL_TAKEN",
				Message: "email is already registered",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to register")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, authResponseDTO(result))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(w, err, "failed to login")
		return
	}

	httperrors.Write(w, http.StatusOK, authResponseDTO(result))
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.auth == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	var req dto.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), identity.UserID, req.OldPassword, req.NewPassword); err != nil {
		handleAuthError(w, err, "failed to change password")
		return
	}

	httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeUnauthorized(w, "UNAUTHORIZED", "missing token")
		return
	}

	user, err := h.auth.Validate(r.Context(), token)
	if err != nil {
		handleAuthError(w, err, "failed to validate token")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ValidateResponse{
		Valid: true,
		User:  userDTO(user),
	})
}

func (h *AuthHandler) LoginWithChatToken(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		writeInternal(w, "AUTH_SERVICE_UNAVAILABLE", "auth service is unavailable")
		return
	}

	token := r.URL.Query().Get("chat_token")
	if token == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "chat_token query parameter is required")
		return
	}

	result, err := h.auth.LoginWithChatToken(r.Context(), token)
	if err != nil {
		handleAuthError(w, err, "failed to login with chat token")
		return
	}

	httperrors.Write(w, http.StatusOK, authResponseDTO(result))
}

func handleAuthError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, authsvc.ErrInvalidInput):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request payload")
	case errors.Is(err, authsvc.ErrUnauthorized):
		writeUnauthorized(w, "UNAUTHORIZED", "invalid credentials")
	default:
		writeInternal(w, "INTERNAL_ERROR", fallback)
	}
}

func authResponseDTO(result authsvc.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      userDTO(result.User),
	}
}

func userDTO(user authsvc.User) dto.UserDTO {
	return dto.UserDTO{
		ID:               user.ID,
		Email:            user.Email,
		FullName:         user.FullName,
		IsAdmin:          user.IsAdmin,
		PurchasedProduct: user.PurchasedProduct,
		ChatExpiresAt:    user.ChatExpiresAt,
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Auth-Token"))
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeForbidden(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusForbidden, httperrors.APIError{Code: code, Message: message})
}

func writeNotFound(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
