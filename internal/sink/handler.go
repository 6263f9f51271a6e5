package sink

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"ms-payments/internal/logger"
	"ms-payments/internal/webhook"
)

const (
	maxBody = 1 << 20
	// DefaultHistory is how many recent webhooks Received keeps.
	DefaultHistory = 100
)

// Received is one webhook accepted by the sink.
type Received struct {
	EventType string
	Signature string
	Payload   string
}

// Handler is a local webhook receiver for trying the gateway end to end. When a
// Verifier is set, requests whose X-Signature does not match are rejected.
type Handler struct {
	Verifier *webhook.Signer
	Logger   *logger.Logger
	History  int

	mu       sync.Mutex
	received []Received
}

func NewHandler(secret string, log *logger.Logger) *Handler {
	h := &Handler{Logger: log, History: DefaultHistory}
	if secret != "" {
		h.Verifier = webhook.NewSigner(secret)
	}
	return h
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}

	eventType := r.Header.Get("X-Event-Type")
	signature := r.Header.Get("X-Signature")

	if h.Verifier != nil {
		if err := h.Verifier.Verify(body, signature); err != nil {
			h.Logger.LogSecurity("SINK", fmt.Sprintf("rejected %s webhook: %v", eventType, err))
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	h.record(Received{EventType: eventType, Signature: signature, Payload: string(body)})

	h.Logger.Info("SINK", fmt.Sprintf("Received webhook sink: eventType=%s, signature=%s, payload=%s", eventType, signature, body))
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) record(r Received) {
	limit := h.History
	if limit <= 0 {
		limit = DefaultHistory
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, r)
	if over := len(h.received) - limit; over > 0 {
		kept := make([]Received, limit)
		copy(kept, h.received[over:])
		h.received = kept
	}
}

// Received returns the most recent webhooks, oldest first.
func (h *Handler) Received() []Received {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Received, len(h.received))
	copy(out, h.received)
	return out
}
