package merchant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/utils"
)

var ErrDuplicateName = errors.New("merchant name already exists")

type Store interface {
	CreateMerchant(ctx context.Context, m *models.Merchant) error
	GetMerchantByName(ctx context.Context, name string) (*models.Merchant, error)
}

type Service struct {
	Store  Store
	Logger *logger.Logger
}

func NewService(store Store, log *logger.Logger) *Service {
	return &Service{Store: store, Logger: log}
}

// Create registers an ACTIVE merchant with freshly generated client credentials.
func (s *Service) Create(ctx context.Context, req models.MerchantCreateRequest) (*models.Merchant, error) {
	name := strings.TrimSpace(req.Name)

	_, err := s.Store.GetMerchantByName(ctx, name)
	if err == nil {
		return nil, ErrDuplicateName
	}
	if !errors.Is(err, models.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check merchant name: %w", err)
	}

	clientID, clientSecret := utils.GenerateClientCredentials()
	m := &models.Merchant{
		Name:         name,
		WebhookURL:   strings.TrimSpace(req.WebhookURL),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Status:       models.MerchantActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Store.CreateMerchant(ctx, m); err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create merchant: %w", err)
	}

	s.Logger.Info("MERCHANT", fmt.Sprintf("Created merchant %d (%s) webhook=%q", m.ID, m.Name, m.WebhookURL))
	return m, nil
}
