package handlers

import (
	"net/http"

	httperrors "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/errors"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httperrors.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}
