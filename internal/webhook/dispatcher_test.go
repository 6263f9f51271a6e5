package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryDeliveries struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.WebhookDelivery
}

func newMemoryDeliveries() *memoryDeliveries {
	return &memoryDeliveries{rows: make(map[int64]models.WebhookDelivery)}
}

func (s *memoryDeliveries) CreateDelivery(_ context.Context, d *models.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	d.ID = s.nextID
	s.rows[d.ID] = *d
	return nil
}

func (s *memoryDeliveries) UpdateDelivery(_ context.Context, d *models.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[d.ID] = *d
	return nil
}

func (s *memoryDeliveries) GetDeliveryByID(_ context.Context, id int64) (*models.WebhookDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.rows[id]
	if !ok {
		return nil, models.ErrRecordNotFound
	}
	return &d, nil
}

func (s *memoryDeliveries) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type MockMerchants struct {
	mock.Mock
}

func (m *MockMerchants) GetMerchantByID(ctx context.Context, id int64) (*models.Merchant, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Merchant), args.Error(1)
}

// inlineWorkers runs submitted tasks on the caller's goroutine.
type inlineWorkers struct{ submitted int }

func (w *inlineWorkers) Submit(task func()) error {
	w.submitted++
	task()
	return nil
}

// recordingScheduler keeps delayed tasks until the test runs them.
type recordingScheduler struct {
	delays []time.Duration
	tasks  []func()
}

func (s *recordingScheduler) Schedule(delay time.Duration, task func()) error {
	s.delays = append(s.delays, delay)
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *recordingScheduler) runNext() bool {
	if len(s.tasks) == 0 {
		return false
	}
	task := s.tasks[0]
	s.tasks = s.tasks[1:]
	task()
	return true
}

type fixture struct {
	dispatcher *Dispatcher
	deliveries *memoryDeliveries
	merchants  *MockMerchants
	workers    *inlineWorkers
	scheduler  *recordingScheduler
	clock      *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := newFakeClock()
	f := &fixture{
		deliveries: newMemoryDeliveries(),
		merchants:  new(MockMerchants),
		workers:    &inlineWorkers{},
		scheduler:  &recordingScheduler{},
		clock:      clock,
	}
	breaker := newBreaker(clock)
	f.dispatcher = &Dispatcher{
		Deliveries:   f.deliveries,
		Merchants:    f.merchants,
		Composer:     NewComposer(NewSigner("ucsal-2025")),
		Breaker:      breaker,
		Metrics:      &Metrics{},
		Client:       &http.Client{Timeout: 2 * time.Second},
		Workers:      f.workers,
		Scheduler:    f.scheduler,
		Logger:       logger.NewLoggerWithWriter(io.Discard),
		Now:          clock.Now,
		MaxAttempts:  5,
		BackoffUnit:  time.Second,
		RecheckDelay: time.Second,
	}
	return f
}

func approvedPayment() *models.Payment {
	return &models.Payment{ID: "pay_0000aaaa", MerchantID: 1, Status: models.StatusApproved}
}

func TestNotify_MerchantWithoutWebhookURL(t *testing.T) {
	f := newFixture(t)
	f.merchants.On("GetMerchantByID", int64(1)).Return(&models.Merchant{ID: 1, Status: models.MerchantActive}, nil)

	f.dispatcher.Notify(context.Background(), approvedPayment())

	assert.Equal(t, 0, f.deliveries.count())
	assert.Equal(t, 0, f.workers.submitted)
	assert.Equal(t, uint64(0), f.dispatcher.Metrics.Snapshot().Attempts)
}

func TestNotify_DeliversSignedEvent(t *testing.T) {
	var (
		mu         sync.Mutex
		gotBody    []byte
		gotHeaders http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody, gotHeaders = body, r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture(t)
	f.merchants.On("GetMerchantByID", int64(1)).Return(&models.Merchant{ID: 1, WebhookURL: srv.URL, Status: models.MerchantActive}, nil)

	f.dispatcher.Notify(context.Background(), approvedPayment())

	require.Equal(t, 1, f.deliveries.count())
	d, err := f.deliveries.GetDeliveryByID(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, d.Delivered)
	assert.Equal(t, 1, d.Attempts)
	assert.Equal(t, f.clock.Now(), d.LastAttemptAt)
	assert.Equal(t, srv.URL, d.TargetURL)
	assert.Equal(t, "pay_0000aaaa", d.PaymentID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, d.Payload, string(gotBody))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "payment.updated", gotHeaders.Get("X-Event-Type"))
	assert.NoError(t, NewSigner("ucsal-2025").Verify(gotBody, gotHeaders.Get("X-Signature")))
	assert.Contains(t, string(gotBody), `"id":"`+d.EventID+`"`)

	assert.Empty(t, f.scheduler.delays)
	assert.Equal(t, MetricsSnapshot{Attempts: 1, Successes: 1}, f.dispatcher.Metrics.Snapshot())
}

func TestAttempt_ExponentialBackoffThenAbandon(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture(t)
	f.merchants.On("GetMerchantByID", int64(1)).Return(&models.Merchant{ID: 1, WebhookURL: srv.URL, Status: models.MerchantActive}, nil)

	f.dispatcher.Notify(context.Background(), approvedPayment())
	for f.scheduler.runNext() {
	}

	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, f.scheduler.delays)

	d, err := f.deliveries.GetDeliveryByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Attempts)
	assert.False(t, d.Delivered)
	assert.Equal(t, MetricsSnapshot{Attempts: 5, Failures: 5}, f.dispatcher.Metrics.Snapshot())
}

func TestAttempt_TransportErrorCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := newFixture(t)
	f.merchants.On("GetMerchantByID", int64(1)).Return(&models.Merchant{ID: 1, WebhookURL: url, Status: models.MerchantActive}, nil)

	f.dispatcher.Notify(context.Background(), approvedPayment())

	d, err := f.deliveries.GetDeliveryByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Attempts)
	assert.False(t, d.Delivered)
	assert.Equal(t, []time.Duration{2 * time.Second}, f.scheduler.delays)
	assert.Equal(t, 1, f.dispatcher.Breaker.Failures(url))
}

func TestAttempt_OpenCircuitReschedulesWithoutCounting(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.dispatcher.Breaker.RecordFailure("http://down.test/hook")
	}

	d := &models.WebhookDelivery{TargetURL: "http://down.test/hook", Payload: "{}", EventType: models.EventPaymentUpdated}
	require.NoError(t, f.deliveries.CreateDelivery(context.Background(), d))

	f.dispatcher.Attempt(d.ID)

	stored, err := f.deliveries.GetDeliveryByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Attempts)
	assert.Equal(t, []time.Duration{300 * time.Second}, f.scheduler.delays)
	assert.Equal(t, uint64(0), f.dispatcher.Metrics.Snapshot().Attempts)
}

func TestAttempt_DeliveredIsTerminal(t *testing.T) {
	f := newFixture(t)
	d := &models.WebhookDelivery{TargetURL: "http://unused.test", Attempts: 2, Delivered: true}
	require.NoError(t, f.deliveries.CreateDelivery(context.Background(), d))

	f.dispatcher.Attempt(d.ID)

	stored, _ := f.deliveries.GetDeliveryByID(context.Background(), d.ID)
	assert.Equal(t, 2, stored.Attempts)
	assert.Empty(t, f.scheduler.delays)
}

func TestAttempt_MissingDeliveryStops(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.Attempt(42)

	assert.Empty(t, f.scheduler.delays)
	assert.Equal(t, uint64(0), f.dispatcher.Metrics.Snapshot().Attempts)
}

func TestBackoff(t *testing.T) {
	d := &Dispatcher{}
	assert.Equal(t, 2*time.Second, d.Backoff(1))
	assert.Equal(t, 16*time.Second, d.Backoff(4))

	d.BackoffUnit = 10 * time.Millisecond
	assert.Equal(t, 80*time.Millisecond, d.Backoff(3))
}
