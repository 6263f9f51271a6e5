package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusApproved PaymentStatus = "APPROVED"
	StatusDeclined PaymentStatus = "DECLINED"
	StatusRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "CARD"
	MethodPix    PaymentMethod = "PIX"
	MethodDebit  PaymentMethod = "DEBIT"
	MethodBoleto PaymentMethod = "BOLETO"
)

// ParsePaymentMethod normalizes a client supplied method name. ok is false for unknown methods.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	method := PaymentMethod(strings.ToUpper(strings.TrimSpace(raw)))
	switch method {
	case MethodCard, MethodPix, MethodDebit, MethodBoleto:
		return method, true
	}
	return method, false
}

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID                string          `bun:"id,pk" json:"id"`
	MerchantID        int64           `bun:"merchant_id,notnull,unique:payments_merchant_idempotency" json:"merchantId"`
	Method            PaymentMethod   `bun:"method,notnull" json:"method"`
	Amount            decimal.Decimal `bun:"amount,type:decimal(19,2),notnull" json:"amount"`
	Currency          string          `bun:"currency,notnull" json:"currency"`
	Installments      int             `bun:"installments,notnull" json:"installments"`
	MonthlyInterest   *float64        `bun:"monthly_interest" json:"monthlyInterest"`
	TotalWithInterest decimal.Decimal `bun:"total_with_interest,type:decimal(19,2),notnull" json:"totalWithInterest"`
	Status            PaymentStatus   `bun:"status,notnull" json:"status"`
	CreatedAt         time.Time       `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt         time.Time       `bun:"updated_at,notnull" json:"updatedAt"`
	IdempotencyKey    string          `bun:"idempotency_key,nullzero,unique:payments_merchant_idempotency" json:"idempotencyKey,omitempty"`
	MetadataOrderID   string          `bun:"metadata_order_id,nullzero" json:"metadataOrderId,omitempty"`
}

// PaymentRequest is the validated body of a payment creation call.
type PaymentRequest struct {
	Method          string          `json:"method" validate:"required,oneof=CARD PIX DEBIT BOLETO"`
	Currency        string          `json:"currency" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	Installments    *int            `json:"installments,omitempty" validate:"omitempty,min=1,max=12"`
	MetadataOrderID string          `json:"metadataOrderId,omitempty" validate:"max=255"`
}

// InstallmentsOrDefault returns the requested installments, or 1 when absent.
func (r PaymentRequest) InstallmentsOrDefault() int {
	if r.Installments == nil {
		return 1
	}
	return *r.Installments
}

type PaymentResponse struct {
	ID                string        `json:"id"`
	Status            PaymentStatus `json:"status"`
	Method            PaymentMethod `json:"method"`
	Amount            string        `json:"amount"`
	Currency          string        `json:"currency"`
	Installments      int           `json:"installments"`
	MonthlyInterest   *float64      `json:"monthlyInterest"`
	TotalWithInterest string        `json:"totalWithInterest"`
	MetadataOrderID   string        `json:"metadataOrderId,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
}

func (p *Payment) ToResponse() *PaymentResponse {
	return &PaymentResponse{
		ID:                p.ID,
		Status:            p.Status,
		Method:            p.Method,
		Amount:            p.Amount.StringFixed(2),
		Currency:          p.Currency,
		Installments:      p.Installments,
		MonthlyInterest:   p.MonthlyInterest,
		TotalWithInterest: p.TotalWithInterest.StringFixed(2),
		MetadataOrderID:   p.MetadataOrderID,
		CreatedAt:         p.CreatedAt,
	}
}

type RefundRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
}

type RefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
