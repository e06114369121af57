package handlers

import (
	"errors"
	"net/http"

	twofasvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/twofa"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/dto"
	httperrors "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/errors"
)

type TwoFAHandler struct {
	twofa *twofasvc.Service
}

func NewTwoFAHandler(twofa *twofasvc.Service) *TwoFAHandler {
	return &TwoFAHandler{twofa: twofa}
}

func (h *TwoFAHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	if h.twofa == nil {
		writeInternal(w, "TWOFA_SERVICE_UNAVAILABLE", "2fa service is unavailable")
		return
	}

	var req dto.TwoFASendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.twofa.SendCode(r.Context(), req.Password); err != nil {
		switch {
		case errors.Is(err, twofasvc.ErrInvalidPassword):
			writeUnauthorized(w, "INVALID_PASSWORD", "admin password is incorrect")
		case errors.Is(err, twofasvc.ErrNotConfigured):
			writeInternal(w, "TWOFA_NOT_CONFIGURED", "2fa is not configured")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to send verification code")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TwoFAStatusResponse{OK: true})
}

func (h *TwoFAHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	if h.twofa == nil {
		writeInternal(w, "TWOFA_SERVICE_UNAVAILABLE", "2fa service is unavailable")
		return
	}

	var req dto.TwoFAVerifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.twofa.VerifyCode(r.Context(), req.Code); err != nil {
		switch {
		case errors.Is(err, twofasvc.ErrCodeNotFound):
			writeUnauthorized(w, "CODE_NOT_FOUND", "no active verification code")
		case errors.Is(err, twofasvc.ErrCodeMismatch):
			writeUnauthorized(w, "CODE_MISMATCH", "verification code is incorrect")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to verify code")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TwoFAStatusResponse{OK: true})
}

func (h *TwoFAHandler) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	if h.twofa == nil {
		writeInternal(w, "TWOFA_SERVICE_UNAVAILABLE", "2fa service is unavailable")
		return
	}

	enrollment, err := h.twofa.EnrollTOTP()
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to enroll totp")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TwoFAEnrollResponse{
		Secret:     enrollment.Secret,
		OTPAuthURL: enrollment.OTPAuthURL,
		QRDataURL:  enrollment.QRDataURL,
	})
}

func (h *TwoFAHandler) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	if h.twofa == nil {
		writeInternal(w, "TWOFA_SERVICE_UNAVAILABLE", "2fa service is unavailable")
		return
	}

	var req dto.TwoFAVerifyTOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.twofa.VerifyTOTP(req.Code); err != nil {
		switch {
		case errors.Is(err, twofasvc.ErrNotConfigured):
			writeInternal(w, "TWOFA_NOT_CONFIGURED", "totp is not configured")
		case errors.Is(err, twofasvc.ErrTOTPInvalid):
			writeUnauthorized(w, "TOTP_INVALID", "totp code is incorrect")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to verify totp")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TwoFAStatusResponse{OK: true})
}
