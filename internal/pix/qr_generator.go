package pix

import (
	"fmt"
	"strings"
	"unicode"

	"ms-payments/internal/models"

	"github.com/skip2/go-qrcode"
	"golang.org/x/text/unicode/norm"
)

const gui = "br.gov.bcb.pix"

// QRGenerator renders static PIX BR Codes (EMV merchant-presented QR) for PIX payments.
type QRGenerator struct {
	Key          string
	MerchantName string
	City         string
	Size         int
}

func NewQRGenerator(key, merchantName, city string) *QRGenerator {
	return &QRGenerator{Key: key, MerchantName: merchantName, City: city, Size: 256}
}

// Payload builds the copy-and-paste BR Code string for p, CRC included.
func (q *QRGenerator) Payload(p *models.Payment) string {
	var b strings.Builder
	b.WriteString(field("00", "01"))
	b.WriteString(field("26", field("00", gui)+field("01", q.Key)))
	b.WriteString(field("52", "0000"))
	b.WriteString(field("53", "986"))
	b.WriteString(field("54", p.TotalWithInterest.StringFixed(2)))
	b.WriteString(field("58", "BR"))
	b.WriteString(field("59", clip(sanitize(q.MerchantName), 25)))
	b.WriteString(field("60", clip(sanitize(q.City), 15)))
	b.WriteString(field("62", field("05", txID(p.ID))))
	b.WriteString("6304")

	payload := b.String()
	return payload + fmt.Sprintf("%04X", CRC16(payload))
}

// GeneratePNG encodes the BR Code for p as a PNG image.
func (q *QRGenerator) GeneratePNG(p *models.Payment) ([]byte, error) {
	size := q.Size
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(q.Payload(p), qrcode.Medium, size)
}

// CRC16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), as required by the BR Code layout.
func CRC16(data string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(data); i++ {
		crc ^= uint16(data[i]) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func field(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// txID keeps the alphanumeric part of the payment id; BR Code transaction ids allow nothing else.
func txID(paymentID string) string {
	var b strings.Builder
	for _, r := range paymentID {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "***"
	}
	return clip(b.String(), 25)
}

// sanitize strips accents and anything outside printable ASCII.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		if r >= 0x20 && r < 0x7F {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(strings.TrimSpace(b.String()))
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
