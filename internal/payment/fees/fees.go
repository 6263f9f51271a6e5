package fees

import (
	"fmt"
	"sync"

	"ms-payments/internal/logger"
	"ms-payments/internal/models"

	"github.com/shopspring/decimal"
)

// Strategy adjusts a freshly built payment for its method. Apply may set
// TotalWithInterest and MonthlyInterest; it must not touch any other field.
type Strategy interface {
	Method() models.PaymentMethod
	Apply(p *models.Payment, req models.PaymentRequest)
}

// Registry maps a payment method to its fee strategy.
type Registry struct {
	mu         sync.RWMutex
	strategies map[models.PaymentMethod]Strategy
	logger     *logger.Logger
}

func NewRegistry(log *logger.Logger, strategies ...Strategy) *Registry {
	r := &Registry{
		strategies: make(map[models.PaymentMethod]Strategy),
		logger:     log,
	}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	r.strategies[s.Method()] = s
	r.mu.Unlock()
	r.logger.Info("FEES", fmt.Sprintf("Registered fee strategy for %s", s.Method()))
}

// Lookup returns the strategy for method. CARD falls back to CardInstallments;
// every other unregistered method gets Identity.
func (r *Registry) Lookup(method models.PaymentMethod) Strategy {
	r.mu.RLock()
	s, ok := r.strategies[method]
	r.mu.RUnlock()
	if ok {
		return s
	}
	if method == models.MethodCard {
		return CardInstallments{}
	}
	return Identity{PaymentMethod: method}
}

func (r *Registry) Apply(p *models.Payment, req models.PaymentRequest) {
	r.Lookup(p.Method).Apply(p, req)
}

// CardInstallments prices installment plans with 1% monthly compound interest.
type CardInstallments struct{}

const cardMonthlyInterest = 1.0

var cardMonthlyFactor = decimal.RequireFromString("1.01")

func (CardInstallments) Method() models.PaymentMethod { return models.MethodCard }

func (CardInstallments) Apply(p *models.Payment, req models.PaymentRequest) {
	n := req.InstallmentsOrDefault()
	if n <= 1 {
		p.TotalWithInterest = p.Amount
		p.MonthlyInterest = nil
		return
	}

	factor := decimal.NewFromInt(1)
	for i := 0; i < n; i++ {
		factor = factor.Mul(cardMonthlyFactor)
	}

	interest := cardMonthlyInterest
	p.TotalWithInterest = p.Amount.Mul(factor).Round(2)
	p.MonthlyInterest = &interest
}

// Identity leaves the amount untouched.
type Identity struct {
	PaymentMethod models.PaymentMethod
}

func (i Identity) Method() models.PaymentMethod { return i.PaymentMethod }

func (Identity) Apply(p *models.Payment, _ models.PaymentRequest) {
	p.TotalWithInterest = p.Amount
}
