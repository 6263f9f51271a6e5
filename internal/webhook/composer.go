package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"ms-payments/internal/models"
	"ms-payments/internal/utils"
)

// Envelope is a composed event ready to be stored as a delivery.
type Envelope struct {
	EventID   string
	EventType string
	Payload   []byte
	Signature string
}

type Composer struct {
	Signer *Signer
	Encode func(v any) ([]byte, error)
	NewID  func() string
	Now    func() time.Time
}

func NewComposer(signer *Signer) *Composer {
	return &Composer{
		Signer: signer,
		Encode: json.Marshal,
		NewID:  utils.GenerateEventID,
		Now:    time.Now,
	}
}

// Compose builds the payment.updated envelope for p's current status and signs its bytes.
func (c *Composer) Compose(p *models.Payment) (*Envelope, error) {
	event := models.WebhookEvent{
		ID:   c.NewID(),
		Type: models.EventPaymentUpdated,
		Data: models.WebhookEventData{
			PaymentID:  p.ID,
			Status:     string(p.Status),
			OccurredAt: utils.FormatInstant(c.Now()),
		},
	}

	payload, err := c.Encode(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event for %s: %w", event.Type, p.ID, err)
	}

	return &Envelope{
		EventID:   event.ID,
		EventType: event.Type,
		Payload:   payload,
		Signature: c.Signer.Sign(payload),
	}, nil
}
