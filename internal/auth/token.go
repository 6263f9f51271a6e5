package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// ExtractTokenFromRequest extracts the bearer token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// Issuer signs and verifies HS256 merchant access tokens. The subject is the merchant id.
type Issuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{Secret: []byte(secret), TTL: ttl, Now: time.Now}
}

func (i *Issuer) Issue(merchantID int64) (string, time.Time, error) {
	now := i.Now()
	expiresAt := now.Add(i.TTL)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(merchantID, 10),
		Issuer:    "fiadopay",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates tokenString and returns the merchant id from its subject.
func (i *Issuer) Parse(tokenString string) (int64, error) {
	if tokenString == "" {
		return 0, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return i.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.Now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	merchantID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject claim is not a merchant id", ErrUnauthorized)
	}
	return merchantID, nil
}
