package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/pix"
	"ms-payments/internal/sse"
	"ms-payments/internal/webhook"
)

type PaymentService interface {
	CreatePayment(ctx context.Context, merchant *models.Merchant, idemKey string, req models.PaymentRequest) (*models.Payment, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	Refund(ctx context.Context, merchant *models.Merchant, paymentID string) (*models.RefundResponse, error)
}

type MerchantService interface {
	Create(ctx context.Context, req models.MerchantCreateRequest) (*models.Merchant, error)
}

type TokenIssuer interface {
	IssueToken(ctx context.Context, req models.TokenRequest) (*models.TokenResponse, error)
}

type DeliveryLister interface {
	ListDeliveriesByPayment(ctx context.Context, paymentID string) ([]models.WebhookDelivery, error)
}

type MetricsSource interface {
	Snapshot() webhook.MetricsSnapshot
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the gateway, auth and admin endpoints. Stream and QR are optional.
type Handler struct {
	Payments   PaymentService
	Merchants  MerchantService
	Tokens     TokenIssuer
	Deliveries DeliveryLister
	Metrics    MetricsSource
	Health     Pinger
	Stream     *sse.PaymentEventEmitter
	QR         *pix.QRGenerator
	AdminKey   string
	Logger     *logger.Logger

	validate *validator.Validate
}

func NewHandler(log *logger.Logger) *Handler {
	return &Handler{
		Logger:   log,
		validate: validator.New(),
	}
}

func (h *Handler) validation() *validator.Validate {
	if h.validate == nil {
		h.validate = validator.New()
	}
	return h.validate
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	if err := writeJSON(w, status, body); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}
