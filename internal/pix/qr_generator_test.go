package pix

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"ms-payments/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16_CheckValue(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), CRC16("123456789"))
}

func pixPayment() *models.Payment {
	return &models.Payment{
		ID:                "pay_1a2b3c4d",
		Method:            models.MethodPix,
		TotalWithInterest: decimal.RequireFromString("155.32"),
	}
}

func TestPayload_Layout(t *testing.T) {
	q := NewQRGenerator("pix@fiadopay.test", "Fiado Pay Simulações", "Salvador")
	payload := q.Payload(pixPayment())

	assert.True(t, strings.HasPrefix(payload, "000201"))
	assert.Contains(t, payload, "0014br.gov.bcb.pix0117pix@fiadopay.test")
	assert.Contains(t, payload, "5303986")
	assert.Contains(t, payload, "5406155.32")
	assert.Contains(t, payload, "5802BR")
	assert.Contains(t, payload, "5920FIADO PAY SIMULACOES")
	assert.Contains(t, payload, "6008SALVADOR")
	assert.Contains(t, payload, "62150511pay1a2b3c4d")

	body, crc := payload[:len(payload)-4], payload[len(payload)-4:]
	assert.True(t, strings.HasSuffix(body, "6304"))
	assert.Equal(t, fmt.Sprintf("%04X", CRC16(body)), crc)
}

func TestGeneratePNG(t *testing.T) {
	png, err := NewQRGenerator("key", "Loja", "Salvador").GeneratePNG(pixPayment())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestClipAndTxID(t *testing.T) {
	assert.Equal(t, "abc", clip("abcdef", 3))
	assert.Equal(t, "***", txID("---"))
}
