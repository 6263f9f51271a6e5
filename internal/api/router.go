package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires every route. requireMerchant resolves bearer tokens; sink may be nil.
func NewRouter(h *Handler, requireMerchant func(http.Handler) http.Handler, sink http.HandlerFunc) chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	r.Get("/health", h.HealthCheck)
	r.Post("/fiadopay/auth/token", h.IssueToken)
	if sink != nil {
		r.Post("/sink", sink)
	}

	r.Route("/fiadopay/admin", func(r chi.Router) {
		r.Use(h.RequireAdminKey)
		r.Post("/merchants", h.CreateMerchant)
		r.Get("/webhooks/metrics", h.WebhookMetrics)
	})

	r.Route("/fiadopay/gateway", func(r chi.Router) {
		r.Use(requireMerchant)
		r.Post("/payments", h.CreatePayment)
		if h.Stream != nil {
			r.Get("/payments/stream", h.StreamPayments)
		}
		r.Get("/payments/{paymentId}", h.GetPayment)
		if h.Deliveries != nil {
			r.Get("/payments/{paymentId}/webhooks", h.ListDeliveries)
		}
		if h.QR != nil {
			r.Get("/payments/{paymentId}/pix-qrcode", h.PixQRCode)
		}
		r.Post("/refunds", h.Refund)
	})

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.Logger.LogAPI(r.Method, r.URL.Path, fmt.Sprint(rec.status), time.Since(start).String())
	})
}
