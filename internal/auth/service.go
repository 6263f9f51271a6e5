package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

type MerchantFinder interface {
	GetMerchantByID(ctx context.Context, id int64) (*models.Merchant, error)
	GetMerchantByClientID(ctx context.Context, clientID string) (*models.Merchant, error)
}

type TokenCache interface {
	GetToken(ctx context.Context, clientID string) (*CachedToken, error)
	SetToken(ctx context.Context, clientID string, token CachedToken) error
}

// Authenticator exchanges client credentials for access tokens and resolves
// tokens back to ACTIVE merchants.
type Authenticator struct {
	Merchants MerchantFinder
	Issuer    *Issuer
	Cache     TokenCache
	Logger    *logger.Logger
}

func (a *Authenticator) IssueToken(ctx context.Context, req models.TokenRequest) (*models.TokenResponse, error) {
	merchant, err := a.Merchants.GetMerchantByClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			a.Logger.LogSecurity("TOKEN", fmt.Sprintf("unknown client_id %q", req.ClientID))
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load merchant: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(merchant.ClientSecret), []byte(req.ClientSecret)) != 1 {
		a.Logger.LogSecurity("TOKEN", fmt.Sprintf("bad secret for merchant %d", merchant.ID))
		return nil, ErrUnauthorized
	}
	if !merchant.IsActive() {
		a.Logger.LogSecurity("TOKEN", fmt.Sprintf("merchant %d is %s", merchant.ID, merchant.Status))
		return nil, ErrUnauthorized
	}

	if a.Cache != nil {
		cached, err := a.Cache.GetToken(ctx, req.ClientID)
		if err != nil {
			a.Logger.Warn("AUTH", fmt.Sprintf("Token cache read failed: %v", err))
		} else if cached != nil {
			return tokenResponse(cached.Token, cached.ExpiresAt, a.Issuer.Now()), nil
		}
	}

	token, expiresAt, err := a.Issuer.Issue(merchant.ID)
	if err != nil {
		return nil, err
	}
	if a.Cache != nil {
		if err := a.Cache.SetToken(ctx, req.ClientID, CachedToken{Token: token, ExpiresAt: expiresAt}); err != nil {
			a.Logger.Warn("AUTH", fmt.Sprintf("Token cache write failed: %v", err))
		}
	}
	a.Logger.Info("AUTH", fmt.Sprintf("Issued token for merchant %d", merchant.ID))

	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(a.Issuer.TTL.Seconds()),
	}, nil
}

// Resolve maps a bearer token to its merchant. Unknown or non-ACTIVE merchants are unauthorized.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*models.Merchant, error) {
	merchantID, err := a.Issuer.Parse(token)
	if err != nil {
		return nil, err
	}
	merchant, err := a.Merchants.GetMerchantByID(ctx, merchantID)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load merchant: %w", err)
	}
	if !merchant.IsActive() {
		return nil, ErrUnauthorized
	}
	return merchant, nil
}

func tokenResponse(token string, expiresAt, now time.Time) *models.TokenResponse {
	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(expiresAt.Sub(now).Seconds()),
	}
}
