package sse

import (
	"context"
	"sync"

	"ms-payments/internal/models"
)

// PaymentEventEmitter fans payment status changes out to SSE clients of the owning merchant.
type PaymentEventEmitter struct {
	clients     map[int64][]chan models.PaymentEvent
	clientMutex sync.RWMutex
}

func NewPaymentEventEmitter() *PaymentEventEmitter {
	return &PaymentEventEmitter{
		clients: make(map[int64][]chan models.PaymentEvent),
	}
}

// Subscribe registers a client for merchantID. The channel is closed once ctx is done.
func (e *PaymentEventEmitter) Subscribe(ctx context.Context, merchantID int64) <-chan models.PaymentEvent {
	clientChan := make(chan models.PaymentEvent, 10)

	e.clientMutex.Lock()
	e.clients[merchantID] = append(e.clients[merchantID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(merchantID, clientChan)
	}()

	return clientChan
}

// PublishPaymentUpdated never blocks: a client with a full buffer misses the event.
func (e *PaymentEventEmitter) PublishPaymentUpdated(_ context.Context, event models.PaymentEvent) error {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for _, clientChan := range e.clients[event.MerchantID] {
		select {
		case clientChan <- event:
		default:
		}
	}
	return nil
}

func (e *PaymentEventEmitter) removeClient(merchantID int64, clientChan chan models.PaymentEvent) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[merchantID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[merchantID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[merchantID]) == 0 {
		delete(e.clients, merchantID)
	}
}

func (e *PaymentEventEmitter) ClientCount(merchantID int64) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[merchantID])
}
