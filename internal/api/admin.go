package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"ms-payments/internal/auth"
	"ms-payments/internal/models"
	"ms-payments/internal/utils"
)

func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validation().Struct(req); err != nil {
		h.fail(w, r, auth.ErrUnauthorized)
		return
	}

	token, err := h.Tokens.IssueToken(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, token)
}

func (h *Handler) CreateMerchant(w http.ResponseWriter, r *http.Request) {
	var req models.MerchantCreateRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validation().Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	m, err := h.Merchants.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, m)
}

func (h *Handler) WebhookMetrics(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.Metrics.Snapshot())
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Logger.Error("HEALTH", fmt.Sprintf("database ping failed: %v", err))
			h.respond(w, http.StatusServiceUnavailable, utils.ErrorResponse("Service unavailable", "database unreachable"))
			return
		}
	}
	h.respond(w, http.StatusOK, utils.SuccessResponse("ok", map[string]string{"status": "UP"}))
}

// RequireAdminKey guards admin routes with X-Admin-Key when an admin key is configured.
func (h *Handler) RequireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.AdminKey != "" {
			given := r.Header.Get("X-Admin-Key")
			if subtle.ConstantTimeCompare([]byte(given), []byte(h.AdminKey)) != 1 {
				h.Logger.LogSecurity("ADMIN", fmt.Sprintf("rejected %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr))
				h.respond(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing or invalid admin key"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
