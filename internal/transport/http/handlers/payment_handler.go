package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/infra/yookassa"
	paymentsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/payments"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/dto"
	httperrors "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/errors"
)

type PaymentHandler struct {
	payments *paymentsvc.Service
}

func NewPaymentHandler(payments *paymentsvc.Service) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var req dto.PaymentCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.payments.Create(r.Context(), paymentsvc.CreateInput{
		UserID:      req.UserID,
		Email:       req.Email,
		FullName:    req.Name,
		Amount:      req.Amount,
		ProductType: req.ProductType,
		ReturnURL:   req.ReturnURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid payment create payload")
		default:
			var gatewayErr *yookassa.GatewayError
			if errors.As(err, &gatewayErr) {
				httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
					Code:    "GATEWAY_ERROR",
					Message: "payment gateway rejected the request",
				})
				return
			}
			writeInternal(w, "INTERNAL_ERROR", "failed to create payment")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentCreateResponse{
		PaymentID:       result.PaymentID,
		PurchaseID:      result.PurchaseID,
		ConfirmationURL: result.ConfirmationURL,
		Status:          result.Status,
	})
}

// Webhook accepts gateway notifications. The gateway payload carries fields
// beyond what we read, so unknown fields are allowed here.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var event yookassa.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid webhook body")
		return
	}

	result, err := h.payments.HandleWebhook(r.Context(), event)
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid webhook payload")
		case errors.Is(err, paymentsvc.ErrPurchaseNotFound):
			writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to process webhook")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WebhookResponse{Status: result.Status})
}

func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	paymentID := chi.URLParam(r, "payment_id")
	result, err := h.payments.CheckStatus(r.Context(), paymentID)
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "payment id is required")
		default:
			var gatewayErr *yookassa.GatewayError
			if errors.As(err, &gatewayErr) && gatewayErr.StatusCode == http.StatusNotFound {
				writeNotFound(w, "PAYMENT_NOT_FOUND", "payment not found")
				return
			}
			writeInternal(w, "INTERNAL_ERROR", "failed to check payment status")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentStatusResponse{
		PaymentID: result.PaymentID,
		Status:    result.Status,
		Paid:      result.Paid,
	})
}

func (h *PaymentHandler) CourseAccess(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var req dto.CourseAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.payments.CheckCourseAccess(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "email is required")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to check course access")
		}
		return
	}

	resp := dto.CourseAccessResponse{HasActiveCourse: result.HasActiveCourse}
	if result.HasActiveCourse {
		resp.ProductType = result.ProductType
		resp.ExpiresAt = result.ExpiresAt
	}
	httperrors.Write(w, http.StatusOK, resp)
}
