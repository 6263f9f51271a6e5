package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-payments/internal/auth"
)

// StreamPayments pushes status changes of the caller's payments as server-sent events.
func (h *Handler) StreamPayments(w http.ResponseWriter, r *http.Request) {
	merchant, ok := auth.MerchantFromContext(r.Context())
	if !ok {
		h.fail(w, r, auth.ErrUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	setupSSEHeaders(w)

	ctx := r.Context()
	events := h.Stream.Subscribe(ctx, merchant.ID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"merchantId\":%d}\n\n", merchant.ID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Merchant %d subscribed to payment events", merchant.ID))

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize payment event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Merchant %d disconnected from payment events", merchant.ID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
