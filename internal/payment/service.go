package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"
	"ms-payments/internal/utils"
)

var (
	ErrNotFound            = errors.New("payment not found")
	ErrForbidden           = errors.New("payment belongs to another merchant")
	ErrIdempotencyInFlight = errors.New("a request with this idempotency key is still being processed")
)

type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	UpdatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentByID(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByIdempotencyKey(ctx context.Context, merchantID int64, key string) (*models.Payment, error)
}

type FraudChecker interface {
	Check(req models.PaymentRequest) error
}

type FeeCalculator interface {
	Apply(p *models.Payment, req models.PaymentRequest)
}

// Notifier turns a payment status change into a webhook delivery.
type Notifier interface {
	Notify(ctx context.Context, p *models.Payment)
}

// IdempotencyGuard serializes concurrent creations sharing a (merchant, key) pair.
type IdempotencyGuard interface {
	Acquire(ctx context.Context, merchantID int64, key string) (bool, error)
	Release(ctx context.Context, merchantID int64, key string) error
}

type EventPublisher interface {
	PublishPaymentUpdated(ctx context.Context, event models.PaymentEvent) error
}

type Submitter interface {
	Submit(task func()) error
}

// OutcomeSource draws a number in [0, 1). A payment is approved when the draw
// is above the configured failure rate.
type OutcomeSource interface {
	Float64() float64
}

type randomOutcome struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomOutcome() OutcomeSource {
	return &randomOutcome{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (r *randomOutcome) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}

type PaymentService struct {
	Store     PaymentStore
	AntiFraud FraudChecker
	Fees      FeeCalculator
	Notifier  Notifier
	Workers   Submitter
	Guard     IdempotencyGuard
	Events    []EventPublisher
	Outcomes  OutcomeSource
	Logger    *logger.Logger

	ProcessingDelay time.Duration
	FailureRate     float64
	Now             func() time.Time
	Sleep           func(time.Duration)
}

// CreatePayment registers a new PENDING payment for merchant and queues its processing.
// A repeated idempotency key returns the stored payment untouched.
func (s *PaymentService) CreatePayment(ctx context.Context, merchant *models.Merchant, idemKey string, req models.PaymentRequest) (*models.Payment, error) {
	idemKey = strings.TrimSpace(idemKey)

	if idemKey != "" {
		existing, err := s.findByIdempotencyKey(ctx, merchant.ID, idemKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.Logger.LogPayment("IDEMPOTENT", existing.ID, fmt.Sprintf("key=%s merchant=%d", idemKey, merchant.ID))
			return existing, nil
		}

		if s.Guard != nil {
			acquired, err := s.Guard.Acquire(ctx, merchant.ID, idemKey)
			if err != nil {
				s.Logger.Warn("PAYMENT", fmt.Sprintf("Idempotency guard unavailable, continuing without it: %v", err))
			} else if !acquired {
				winner, err := s.findByIdempotencyKey(ctx, merchant.ID, idemKey)
				if err != nil {
					return nil, err
				}
				if winner != nil {
					return winner, nil
				}
				return nil, ErrIdempotencyInFlight
			} else {
				defer func() {
					if err := s.Guard.Release(context.Background(), merchant.ID, idemKey); err != nil {
						s.Logger.Warn("PAYMENT", fmt.Sprintf("Failed to release idempotency key %s: %v", idemKey, err))
					}
				}()
				// a racer may have finished between the first lookup and the lock
				existing, err := s.findByIdempotencyKey(ctx, merchant.ID, idemKey)
				if err != nil {
					return nil, err
				}
				if existing != nil {
					return existing, nil
				}
			}
		}
	}

	if err := s.AntiFraud.Check(req); err != nil {
		return nil, err
	}

	now := s.now()
	method, _ := models.ParsePaymentMethod(req.Method)
	p := &models.Payment{
		ID:                utils.GeneratePaymentID(),
		MerchantID:        merchant.ID,
		Method:            method,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Installments:      req.InstallmentsOrDefault(),
		TotalWithInterest: req.Amount,
		Status:            models.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
		IdempotencyKey:    idemKey,
		MetadataOrderID:   req.MetadataOrderID,
	}
	s.Fees.Apply(p, req)

	if err := s.Store.CreatePayment(ctx, p); err != nil {
		if idemKey != "" && errors.Is(err, models.ErrDuplicateKey) {
			// lost an unguarded race on the same key; the stored payment wins
			winner, findErr := s.findByIdempotencyKey(ctx, merchant.ID, idemKey)
			if findErr != nil {
				return nil, findErr
			}
			if winner != nil {
				s.Logger.LogPayment("IDEMPOTENT", winner.ID, fmt.Sprintf("key=%s merchant=%d raced", idemKey, merchant.ID))
				return winner, nil
			}
		}
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}
	s.Logger.LogPayment("CREATED", p.ID, fmt.Sprintf("merchant=%d method=%s total=%s", merchant.ID, p.Method, p.TotalWithInterest.StringFixed(2)))
	s.publish(ctx, p)

	id := p.ID
	if err := s.Workers.Submit(func() { s.Process(id) }); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Could not queue processing for %s: %v", id, err))
	}

	return p, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.Store.GetPaymentByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load payment %s: %w", id, err)
	}
	return p, nil
}

// Refund marks the payment REFUNDED regardless of its previous status and notifies the merchant.
func (s *PaymentService) Refund(ctx context.Context, merchant *models.Merchant, paymentID string) (*models.RefundResponse, error) {
	p, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.MerchantID != merchant.ID {
		s.Logger.LogSecurity("REFUND", fmt.Sprintf("merchant %d tried to refund %s", merchant.ID, paymentID))
		return nil, ErrForbidden
	}

	p.Status = models.StatusRefunded
	p.UpdatedAt = s.now()
	if err := s.Store.UpdatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to refund payment %s: %w", paymentID, err)
	}
	s.Logger.LogPayment("REFUNDED", p.ID, fmt.Sprintf("merchant=%d", merchant.ID))

	s.publish(ctx, p)
	s.Notifier.Notify(ctx, p)

	return &models.RefundResponse{ID: utils.GenerateRefundID(), Status: string(models.StatusPending)}, nil
}

// Process simulates the acquirer round trip for a PENDING payment. It runs on a
// worker; errors are logged and never retried.
func (s *PaymentService) Process(paymentID string) {
	s.sleep(s.ProcessingDelay)

	ctx := context.Background()
	p, err := s.Store.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if !errors.Is(err, models.ErrRecordNotFound) {
			s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to load %s for processing: %v", paymentID, err))
		}
		return
	}
	if p.Status != models.StatusPending {
		s.Logger.LogPayment("SKIPPED", p.ID, fmt.Sprintf("status is already %s", p.Status))
		return
	}

	if s.Outcomes.Float64() > s.FailureRate {
		p.Status = models.StatusApproved
	} else {
		p.Status = models.StatusDeclined
	}
	p.UpdatedAt = s.now()

	if err := s.Store.UpdatePayment(ctx, p); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Failed to store outcome for %s: %v", p.ID, err))
		return
	}
	s.Logger.LogPayment("PROCESSED", p.ID, string(p.Status))

	s.publish(ctx, p)
	s.Notifier.Notify(ctx, p)
}

func (s *PaymentService) findByIdempotencyKey(ctx context.Context, merchantID int64, key string) (*models.Payment, error) {
	p, err := s.Store.GetPaymentByIdempotencyKey(ctx, merchantID, key)
	if err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return p, nil
}

func (s *PaymentService) publish(ctx context.Context, p *models.Payment) {
	if len(s.Events) == 0 {
		return
	}
	event := models.NewPaymentEvent(p, p.UpdatedAt)
	for _, publisher := range s.Events {
		if err := publisher.PublishPaymentUpdated(ctx, event); err != nil {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("Failed to publish event for %s: %v", p.ID, err))
		}
	}
}

func (s *PaymentService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now()
}

func (s *PaymentService) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if s.Sleep != nil {
		s.Sleep(d)
		return
	}
	time.Sleep(d)
}
