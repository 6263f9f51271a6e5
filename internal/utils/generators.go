package utils

import (
	"strings"

	"github.com/google/uuid"
)

// shortID returns the first 8 hex characters of a random UUID.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// GeneratePaymentID returns an id of the form pay_<8-hex>.
func GeneratePaymentID() string {
	return "pay_" + shortID()
}

// GenerateEventID returns an id of the form evt_<8-hex>.
func GenerateEventID() string {
	return "evt_" + shortID()
}

func GenerateRefundID() string {
	return "ref_" + uuid.NewString()
}

// GenerateClientCredentials returns a client id and a dash-free client secret.
func GenerateClientCredentials() (string, string) {
	return uuid.NewString(), strings.ReplaceAll(uuid.NewString(), "-", "")
}
