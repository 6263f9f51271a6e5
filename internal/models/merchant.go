package models

import (
	"time"

	"github.com/uptrace/bun"
)

type MerchantStatus string

const (
	MerchantActive  MerchantStatus = "ACTIVE"
	MerchantBlocked MerchantStatus = "BLOCKED"
)

type Merchant struct {
	bun.BaseModel `bun:"table:merchants"`

	ID           int64          `bun:"id,pk,autoincrement" json:"id"`
	Name         string         `bun:"name,unique,notnull" json:"name"`
	WebhookURL   string         `bun:"webhook_url,nullzero" json:"webhookUrl,omitempty"`
	ClientID     string         `bun:"client_id,unique,notnull" json:"clientId"`
	ClientSecret string         `bun:"client_secret,notnull" json:"clientSecret"`
	Status       MerchantStatus `bun:"status,notnull" json:"status"`
	CreatedAt    time.Time      `bun:"created_at,notnull" json:"createdAt"`
}

func (m *Merchant) IsActive() bool {
	return m != nil && m.Status == MerchantActive
}

type MerchantCreateRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	WebhookURL string `json:"webhookUrl,omitempty" validate:"omitempty,url"`
}
