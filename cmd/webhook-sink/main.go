package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"ms-payments/internal/logger"
	"ms-payments/internal/sink"
)

// A standalone merchant endpoint for watching gateway webhooks locally.
func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}

	addr := os.Getenv("SINK_ADDR")
	if addr == "" {
		addr = ":8081"
	}
	handler := sink.NewHandler(os.Getenv("SINK_WEBHOOK_SECRET"), logger)
	if handler.Verifier == nil {
		logger.Warn("SINK", "SINK_WEBHOOK_SECRET not set, signatures will not be verified")
	}

	r := chi.NewRouter()
	r.Post("/sink", handler.Receive)

	server := &http.Server{Addr: addr, Handler: r}
	go func() {
		logger.Info("HTTP", fmt.Sprintf("Webhook sink listening on %s/sink", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
	logger.Info("SINK", fmt.Sprintf("Received %d webhooks", len(handler.Received())))
}
