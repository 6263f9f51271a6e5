package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"ms-payments/internal/models"
	"ms-payments/internal/utils"
)

type contextKey string

const merchantKey contextKey = "merchant"

// Middleware rejects requests without a valid bearer token for an ACTIVE merchant.
func Middleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			merchant, err := a.Resolve(r.Context(), rawToken)
			if err != nil {
				if !errors.Is(err, ErrUnauthorized) {
					a.Logger.Error("AUTH", fmt.Sprintf("Token resolution failed: %v", err))
				}
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithMerchant(r.Context(), merchant)))
		})
	}
}

func unauthorized(w http.ResponseWriter, detail string) {
	_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", detail))
}

func WithMerchant(ctx context.Context, m *models.Merchant) context.Context {
	return context.WithValue(ctx, merchantKey, m)
}

// MerchantFromContext returns the merchant stored by Middleware.
func MerchantFromContext(ctx context.Context) (*models.Merchant, bool) {
	m, ok := ctx.Value(merchantKey).(*models.Merchant)
	return m, ok && m != nil
}
