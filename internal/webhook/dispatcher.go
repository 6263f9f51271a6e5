package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"
)

const (
	DefaultMaxAttempts  = 5
	DefaultBackoffUnit  = time.Second
	DefaultRecheckDelay = time.Second
)

type DeliveryStore interface {
	CreateDelivery(ctx context.Context, d *models.WebhookDelivery) error
	UpdateDelivery(ctx context.Context, d *models.WebhookDelivery) error
	GetDeliveryByID(ctx context.Context, id int64) (*models.WebhookDelivery, error)
}

type MerchantLookup interface {
	GetMerchantByID(ctx context.Context, id int64) (*models.Merchant, error)
}

// Submitter runs a task as soon as a worker is free.
type Submitter interface {
	Submit(task func()) error
}

// DelayedScheduler runs a task once delay has elapsed.
type DelayedScheduler interface {
	Schedule(delay time.Duration, task func()) error
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher creates webhook deliveries and drives each one through its attempt loop.
// Attempts for one delivery are strictly sequential: the next one is only scheduled
// once the previous attempt has finished.
type Dispatcher struct {
	Deliveries DeliveryStore
	Merchants  MerchantLookup
	Composer   *Composer
	Breaker    *CircuitBreaker
	Metrics    *Metrics
	Client     HTTPDoer
	Workers    Submitter
	Scheduler  DelayedScheduler
	Logger     *logger.Logger
	Now        func() time.Time

	MaxAttempts  int
	BackoffUnit  time.Duration
	RecheckDelay time.Duration
}

// Notify composes a payment.updated event for p's current status and queues its
// first delivery attempt. Merchants without a webhook URL get nothing.
func (d *Dispatcher) Notify(ctx context.Context, p *models.Payment) {
	merchant, err := d.Merchants.GetMerchantByID(ctx, p.MerchantID)
	if err != nil {
		d.Logger.Warn("WEBHOOK", fmt.Sprintf("Merchant %d not available for %s: %v", p.MerchantID, p.ID, err))
		return
	}
	if merchant.WebhookURL == "" {
		d.Logger.Debug("WEBHOOK", fmt.Sprintf("Merchant %d has no webhook URL, skipping %s", merchant.ID, p.ID))
		return
	}

	envelope, err := d.Composer.Compose(p)
	if err != nil {
		d.Logger.Error("WEBHOOK", fmt.Sprintf("Dropping event for %s: %v", p.ID, err))
		return
	}

	delivery := &models.WebhookDelivery{
		EventID:   envelope.EventID,
		EventType: envelope.EventType,
		PaymentID: p.ID,
		TargetURL: merchant.WebhookURL,
		Signature: envelope.Signature,
		Payload:   string(envelope.Payload),
		CreatedAt: d.now(),
	}
	if err := d.Deliveries.CreateDelivery(ctx, delivery); err != nil {
		d.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to store delivery for %s: %v", p.ID, err))
		return
	}
	d.Logger.LogWebhook("CREATED", delivery.ID, fmt.Sprintf("event=%s payment=%s status=%s target=%s",
		delivery.EventID, p.ID, p.Status, delivery.TargetURL))

	id := delivery.ID
	if err := d.Workers.Submit(func() { d.Attempt(id) }); err != nil {
		// Pool saturated or stopping: hand the first attempt to the scheduler instead.
		d.Logger.Warn("WEBHOOK", fmt.Sprintf("Worker pool rejected delivery %d: %v", id, err))
		d.schedule(id, d.recheckDelay())
	}
}

// Attempt performs one delivery attempt for id and decides whether another follows.
func (d *Dispatcher) Attempt(id int64) {
	ctx := context.Background()

	delivery, err := d.Deliveries.GetDeliveryByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			d.Logger.LogWebhook("GONE", id, "delivery no longer exists")
		} else {
			d.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to load delivery %d: %v", id, err))
		}
		return
	}
	if delivery.Delivered {
		return
	}

	if !d.Breaker.Allow(delivery.TargetURL) {
		wait := d.Breaker.Cooldown(delivery.TargetURL)
		if wait <= 0 {
			wait = d.recheckDelay()
		}
		d.Logger.LogWebhook("BLOCKED", id, fmt.Sprintf("circuit open for %s, rechecking in %s", delivery.TargetURL, wait))
		d.schedule(id, wait)
		return
	}

	d.Metrics.IncAttempt()
	status, sendErr := d.send(ctx, delivery)

	delivery.Attempts++
	delivery.LastAttemptAt = d.now()
	delivery.Delivered = sendErr == nil && status >= 200 && status < 300

	if err := d.Deliveries.UpdateDelivery(ctx, delivery); err != nil {
		d.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to record attempt %d of delivery %d: %v", delivery.Attempts, id, err))
	}

	if delivery.Delivered {
		d.Breaker.RecordSuccess(delivery.TargetURL)
		d.Metrics.IncSuccess()
		d.Logger.LogWebhook("DELIVERED", id, fmt.Sprintf("status=%d attempts=%d", status, delivery.Attempts))
		return
	}

	d.Breaker.RecordFailure(delivery.TargetURL)
	d.Metrics.IncFailure()
	if sendErr != nil {
		d.Logger.LogWebhook("FAILED", id, fmt.Sprintf("attempt=%d error=%v", delivery.Attempts, sendErr))
	} else {
		d.Logger.LogWebhook("FAILED", id, fmt.Sprintf("attempt=%d status=%d", delivery.Attempts, status))
	}

	if delivery.Attempts >= d.maxAttempts() {
		d.Logger.Warn("WEBHOOK", fmt.Sprintf("Delivery %d abandoned after %d attempts", id, delivery.Attempts))
		return
	}
	d.schedule(id, d.Backoff(delivery.Attempts))
}

// Backoff is the wait after the given number of failed attempts: 2^attempts units.
func (d *Dispatcher) Backoff(attempts int) time.Duration {
	unit := d.BackoffUnit
	if unit <= 0 {
		unit = DefaultBackoffUnit
	}
	return unit * time.Duration(int64(1)<<uint(attempts))
}

func (d *Dispatcher) send(ctx context.Context, delivery *models.WebhookDelivery) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.TargetURL, bytes.NewBufferString(delivery.Payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", delivery.EventType)
	req.Header.Set("X-Signature", delivery.Signature)

	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (d *Dispatcher) schedule(id int64, delay time.Duration) {
	if err := d.Scheduler.Schedule(delay, func() { d.Attempt(id) }); err != nil {
		d.Logger.Error("WEBHOOK", fmt.Sprintf("Could not schedule delivery %d: %v", id, err))
	}
}

func (d *Dispatcher) maxAttempts() int {
	if d.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return d.MaxAttempts
}

func (d *Dispatcher) recheckDelay() time.Duration {
	if d.RecheckDelay <= 0 {
		return DefaultRecheckDelay
	}
	return d.RecheckDelay
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}
