package models

import (
	"time"

	"github.com/uptrace/bun"
)

const EventPaymentUpdated = "payment.updated"

// WebhookEvent is the envelope posted to merchants. Field order is the wire order.
type WebhookEvent struct {
	ID   string           `json:"id"`
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	PaymentID  string `json:"paymentId"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurredAt"`
}

type WebhookDelivery struct {
	bun.BaseModel `bun:"table:webhook_deliveries"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	EventID       string    `bun:"event_id,notnull" json:"eventId"`
	EventType     string    `bun:"event_type,notnull" json:"eventType"`
	PaymentID     string    `bun:"payment_id,notnull" json:"paymentId"`
	TargetURL     string    `bun:"target_url,notnull" json:"targetUrl"`
	Signature     string    `bun:"signature,notnull" json:"signature"`
	Payload       string    `bun:"payload,type:text,notnull" json:"payload"`
	Attempts      int       `bun:"attempts,notnull,default:0" json:"attempts"`
	Delivered     bool      `bun:"delivered,notnull,default:false" json:"delivered"`
	LastAttemptAt time.Time `bun:"last_attempt_at,nullzero" json:"lastAttemptAt,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// PaymentEvent is published on the payment event stream (Kafka, SSE) for every status change.
type PaymentEvent struct {
	Type       string        `json:"type"`
	PaymentID  string        `json:"paymentId"`
	MerchantID int64         `json:"merchantId"`
	Status     PaymentStatus `json:"status"`
	Amount     string        `json:"amount"`
	Currency   string        `json:"currency"`
	Timestamp  time.Time     `json:"timestamp"`
}

func NewPaymentEvent(p *Payment, at time.Time) PaymentEvent {
	return PaymentEvent{
		Type:       EventPaymentUpdated,
		PaymentID:  p.ID,
		MerchantID: p.MerchantID,
		Status:     p.Status,
		Amount:     p.TotalWithInterest.StringFixed(2),
		Currency:   p.Currency,
		Timestamp:  at,
	}
}
