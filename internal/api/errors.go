package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"ms-payments/internal/antifraud"
	"ms-payments/internal/auth"
	"ms-payments/internal/merchant"
	"ms-payments/internal/payment"
	"ms-payments/internal/utils"
)

var (
	errInvalidBody  = errors.New("invalid request body")
	errInvalidInput = errors.New("invalid request")
)

func writeJSON(w http.ResponseWriter, status int, body any) error {
	return utils.WriteJSON(w, status, body)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) (int, string) {
	var blocked *antifraud.BlockedError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.As(err, &blocked), errors.Is(err, antifraud.ErrBlocked):
		return http.StatusPaymentRequired, "Payment blocked by anti-fraud"
	case errors.Is(err, payment.ErrNotFound):
		return http.StatusNotFound, "Payment not found"
	case errors.Is(err, payment.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, payment.ErrIdempotencyInFlight):
		return http.StatusConflict, "Idempotency conflict"
	case errors.Is(err, merchant.ErrDuplicateName):
		return http.StatusConflict, "Merchant name already exists"
	case errors.As(err, &validationErrs), errors.Is(err, errInvalidBody), errors.Is(err, errInvalidInput):
		return http.StatusBadRequest, "Validation failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
		detail = "unexpected error"
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s %s -> %d: %v", r.Method, r.URL.Path, status, err))
	}
	h.respond(w, status, utils.ErrorResponse(message, detail))
}
