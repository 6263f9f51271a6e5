package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ms-payments/internal/auth"
	"ms-payments/internal/models"
	"ms-payments/internal/payment"
)

var minAmount = decimal.RequireFromString("0.01")

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	merchant, ok := auth.MerchantFromContext(r.Context())
	if !ok {
		h.fail(w, r, auth.ErrUnauthorized)
		return
	}

	var req models.PaymentRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validatePayment(&req); err != nil {
		h.fail(w, r, err)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	h.Logger.Debug("API", fmt.Sprintf("CreatePayment: merchant=%d method=%s amount=%s key=%q", merchant.ID, req.Method, req.Amount, idemKey))

	p, err := h.Payments.CreatePayment(r.Context(), merchant, idemKey, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.respond(w, http.StatusCreated, p.ToResponse())
}

// validatePayment normalizes the method and enforces the amount rules the struct tags cannot express.
func (h *Handler) validatePayment(req *models.PaymentRequest) error {
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))

	if err := h.validation().Struct(req); err != nil {
		return err
	}
	if req.Amount.LessThan(minAmount) {
		return fmt.Errorf("%w: amount must be at least %s", errInvalidInput, minAmount)
	}
	if !req.Amount.Equal(req.Amount.Truncate(2)) {
		return fmt.Errorf("%w: amount must have at most 2 decimal places", errInvalidInput)
	}
	return nil
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "paymentId")

	p, err := h.Payments.GetPayment(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, p.ToResponse())
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	merchant, ok := auth.MerchantFromContext(r.Context())
	if !ok {
		h.fail(w, r, auth.ErrUnauthorized)
		return
	}

	var req models.RefundRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validation().Struct(req); err != nil {
		h.fail(w, r, err)
		return
	}

	refund, err := h.Payments.Refund(r.Context(), merchant, req.PaymentID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, refund)
}

// ListDeliveries returns the webhook deliveries recorded for a payment owned by the caller.
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	p, ok := h.ownedPayment(w, r)
	if !ok {
		return
	}

	deliveries, err := h.Deliveries.ListDeliveriesByPayment(r.Context(), p.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if deliveries == nil {
		deliveries = []models.WebhookDelivery{}
	}
	h.respond(w, http.StatusOK, deliveries)
}

// PixQRCode renders the BR Code of a PIX payment owned by the caller as a PNG.
func (h *Handler) PixQRCode(w http.ResponseWriter, r *http.Request) {
	p, ok := h.ownedPayment(w, r)
	if !ok {
		return
	}
	if p.Method != models.MethodPix {
		h.fail(w, r, payment.ErrNotFound)
		return
	}

	png, err := h.QR.GeneratePNG(p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// ownedPayment loads the payment in the URL and hides payments of other merchants behind a 404.
func (h *Handler) ownedPayment(w http.ResponseWriter, r *http.Request) (*models.Payment, bool) {
	merchant, ok := auth.MerchantFromContext(r.Context())
	if !ok {
		h.fail(w, r, auth.ErrUnauthorized)
		return nil, false
	}

	p, err := h.Payments.GetPayment(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	if p.MerchantID != merchant.ID {
		h.fail(w, r, payment.ErrNotFound)
		return nil, false
	}
	return p, true
}
