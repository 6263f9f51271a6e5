package merchant_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"ms-payments/internal/logger"
	"ms-payments/internal/merchant"
	"ms-payments/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateMerchant(ctx context.Context, mer *models.Merchant) error {
	args := m.Called(mer)
	if args.Error(0) == nil {
		mer.ID = 1
	}
	return args.Error(0)
}

func (m *MockStore) GetMerchantByName(ctx context.Context, name string) (*models.Merchant, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Merchant), args.Error(1)
}

func TestCreate(t *testing.T) {
	store := new(MockStore)
	store.On("GetMerchantByName", "Loja Teste").Return(nil, models.ErrRecordNotFound)
	store.On("CreateMerchant", mock.AnythingOfType("*models.Merchant")).Return(nil)

	svc := merchant.NewService(store, logger.NewLoggerWithWriter(io.Discard))
	m, err := svc.Create(context.Background(), models.MerchantCreateRequest{Name: " Loja Teste ", WebhookURL: "http://localhost:8081/sink"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.ID)
	assert.Equal(t, "Loja Teste", m.Name)
	assert.Equal(t, models.MerchantActive, m.Status)
	assert.NotEmpty(t, m.ClientID)
	assert.Len(t, m.ClientSecret, 32)
	store.AssertExpectations(t)
}

func TestCreate_DuplicateName(t *testing.T) {
	store := new(MockStore)
	store.On("GetMerchantByName", "Loja").Return(&models.Merchant{ID: 3, Name: "Loja"}, nil)

	_, err := merchant.NewService(store, logger.NewLoggerWithWriter(io.Discard)).
		Create(context.Background(), models.MerchantCreateRequest{Name: "Loja"})
	assert.ErrorIs(t, err, merchant.ErrDuplicateName)
	store.AssertNotCalled(t, "CreateMerchant", mock.Anything)
}

func TestCreate_NameTakenByConcurrentInsert(t *testing.T) {
	store := new(MockStore)
	store.On("GetMerchantByName", "Loja").Return(nil, models.ErrRecordNotFound)
	store.On("CreateMerchant", mock.AnythingOfType("*models.Merchant")).Return(models.ErrDuplicateKey)

	_, err := merchant.NewService(store, logger.NewLoggerWithWriter(io.Discard)).
		Create(context.Background(), models.MerchantCreateRequest{Name: "Loja"})
	assert.ErrorIs(t, err, merchant.ErrDuplicateName)
}

func TestCreate_StoreFailure(t *testing.T) {
	store := new(MockStore)
	store.On("GetMerchantByName", "Loja").Return(nil, errors.New("db down"))

	_, err := merchant.NewService(store, logger.NewLoggerWithWriter(io.Discard)).
		Create(context.Background(), models.MerchantCreateRequest{Name: "Loja"})
	assert.ErrorContains(t, err, "db down")
}
