package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMerchants struct {
	mock.Mock
}

func (m *MockMerchants) GetMerchantByID(ctx context.Context, id int64) (*models.Merchant, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Merchant), args.Error(1)
}

func (m *MockMerchants) GetMerchantByClientID(ctx context.Context, clientID string) (*models.Merchant, error) {
	args := m.Called(clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Merchant), args.Error(1)
}

func activeMerchant() *models.Merchant {
	return &models.Merchant{ID: 12, Name: "loja", ClientID: "cid", ClientSecret: "csecret", Status: models.MerchantActive}
}

func newAuthenticator(merchants MerchantFinder) *Authenticator {
	return &Authenticator{
		Merchants: merchants,
		Issuer:    NewIssuer("test-secret", time.Hour),
		Logger:    logger.NewLoggerWithWriter(io.Discard),
	}
}

func TestIssuer_RoundTrip(t *testing.T) {
	i := NewIssuer("k", time.Hour)
	token, expiresAt, err := i.Issue(42)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	id, err := i.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestIssuer_Rejects(t *testing.T) {
	i := NewIssuer("k", time.Minute)
	token, _, err := i.Issue(1)
	require.NoError(t, err)

	_, err = NewIssuer("other", time.Minute).Parse(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired := NewIssuer("k", time.Minute)
	expired.Now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = expired.Parse(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = i.Parse("")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = i.Parse("FAKE-1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestExtractTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Basic abc")
	_, err = ExtractTokenFromRequest(r)
	assert.Error(t, err)

	r.Header.Set("Authorization", "Bearer abc")
	token, err := ExtractTokenFromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestIssueToken(t *testing.T) {
	merchants := new(MockMerchants)
	merchants.On("GetMerchantByClientID", "cid").Return(activeMerchant(), nil)
	merchants.On("GetMerchantByClientID", "nobody").Return(nil, models.ErrRecordNotFound)
	a := newAuthenticator(merchants)

	res, err := a.IssueToken(context.Background(), models.TokenRequest{ClientID: "cid", ClientSecret: "csecret"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, 3600, res.ExpiresIn)

	id, err := a.Issuer.Parse(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	_, err = a.IssueToken(context.Background(), models.TokenRequest{ClientID: "cid", ClientSecret: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = a.IssueToken(context.Background(), models.TokenRequest{ClientID: "nobody", ClientSecret: "x"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestIssueToken_BlockedMerchant(t *testing.T) {
	blocked := activeMerchant()
	blocked.Status = models.MerchantBlocked
	merchants := new(MockMerchants)
	merchants.On("GetMerchantByClientID", "cid").Return(blocked, nil)

	_, err := newAuthenticator(merchants).IssueToken(context.Background(), models.TokenRequest{ClientID: "cid", ClientSecret: "csecret"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestIssueToken_ReusesCachedToken(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	merchants := new(MockMerchants)
	merchants.On("GetMerchantByClientID", "cid").Return(activeMerchant(), nil)
	a := newAuthenticator(merchants)
	a.Cache = NewRedisTokenCache(client)

	first, err := a.IssueToken(context.Background(), models.TokenRequest{ClientID: "cid", ClientSecret: "csecret"})
	require.NoError(t, err)
	second, err := a.IssueToken(context.Background(), models.TokenRequest{ClientID: "cid", ClientSecret: "csecret"})
	require.NoError(t, err)
	assert.Equal(t, first.AccessToken, second.AccessToken)

	require.NoError(t, a.Cache.(*RedisTokenCache).Forget(context.Background(), "cid"))
	cached, err := a.Cache.GetToken(context.Background(), "cid")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestCachedToken_IsValid(t *testing.T) {
	now := time.Now()
	assert.False(t, (*CachedToken)(nil).IsValid(now))
	assert.False(t, (&CachedToken{Token: "t", ExpiresAt: now.Add(30 * time.Second)}).IsValid(now))
	assert.True(t, (&CachedToken{Token: "t", ExpiresAt: now.Add(time.Hour)}).IsValid(now))
}

func TestMiddleware(t *testing.T) {
	merchants := new(MockMerchants)
	merchants.On("GetMerchantByID", int64(12)).Return(activeMerchant(), nil)
	merchants.On("GetMerchantByID", int64(13)).Return(&models.Merchant{ID: 13, Status: models.MerchantBlocked}, nil)
	a := newAuthenticator(merchants)

	var seen *models.Merchant
	handler := Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = MerchantFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(header string) int {
		r := httptest.NewRequest(http.MethodGet, "/fiadopay/gateway/payments/x", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	token, _, err := a.Issuer.Issue(12)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, call("Bearer "+token))
	require.NotNil(t, seen)
	assert.Equal(t, int64(12), seen.ID)

	blockedToken, _, err := a.Issuer.Issue(13)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+blockedToken))
	assert.Equal(t, http.StatusUnauthorized, call(""))
	assert.Equal(t, http.StatusUnauthorized, call("Bearer garbage"))
}

func TestMerchantFromContext_Empty(t *testing.T) {
	_, ok := MerchantFromContext(context.Background())
	assert.False(t, ok)
}
