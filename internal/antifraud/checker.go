package antifraud

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"ms-payments/internal/config"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"

	"github.com/shopspring/decimal"
)

var ErrBlocked = errors.New("payment blocked by anti-fraud")

// BlockedError names the rule that rejected a request.
type BlockedError struct {
	Rule      string
	Amount    decimal.Decimal
	Threshold decimal.Decimal
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("AntiFraud(%s): amount %s exceeds threshold %s", e.Rule, e.Amount.String(), e.Threshold.String())
}

func (e *BlockedError) Unwrap() error {
	return ErrBlocked
}

// Rule blocks any request whose amount is strictly above its threshold.
type Rule interface {
	Name() string
	Threshold() decimal.Decimal
}

type ThresholdRule struct {
	RuleName string
	Limit    decimal.Decimal
}

func (r ThresholdRule) Name() string               { return r.RuleName }
func (r ThresholdRule) Threshold() decimal.Decimal { return r.Limit }

// Checker holds the rule registry. Registering a rule under an existing name replaces it.
type Checker struct {
	mu     sync.RWMutex
	rules  map[string]decimal.Decimal
	logger *logger.Logger
}

func NewChecker(log *logger.Logger, rules ...Rule) *Checker {
	c := &Checker{
		rules:  make(map[string]decimal.Decimal),
		logger: log,
	}
	for _, rule := range rules {
		c.Register(rule)
	}
	return c
}

// RulesFromConfig converts configured name/threshold pairs, skipping unparsable thresholds.
func RulesFromConfig(cfg config.AntiFraudConfig, log *logger.Logger) []Rule {
	var rules []Rule
	for _, r := range cfg.Rules {
		threshold, err := decimal.NewFromString(r.Threshold)
		if err != nil {
			log.Warn("ANTIFRAUD", fmt.Sprintf("Ignoring rule %s: invalid threshold %q", r.Name, r.Threshold))
			continue
		}
		rules = append(rules, ThresholdRule{RuleName: r.Name, Limit: threshold})
	}
	return rules
}

func (c *Checker) Register(rule Rule) {
	c.mu.Lock()
	c.rules[rule.Name()] = rule.Threshold()
	c.mu.Unlock()
	c.logger.Info("ANTIFRAUD", fmt.Sprintf("Registered rule %s -> %s", rule.Name(), rule.Threshold().String()))
}

func (c *Checker) Rules() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(c.rules))
	for name, threshold := range c.rules {
		out[name] = threshold
	}
	return out
}

// Check returns a *BlockedError for the first rule (by name) the amount exceeds.
func (c *Checker) Check(req models.PaymentRequest) error {
	c.mu.RLock()
	names := make([]string, 0, len(c.rules))
	for name := range c.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	rules := make([]ThresholdRule, 0, len(names))
	for _, name := range names {
		rules = append(rules, ThresholdRule{RuleName: name, Limit: c.rules[name]})
	}
	c.mu.RUnlock()

	for _, rule := range rules {
		if req.Amount.GreaterThan(rule.Limit) {
			c.logger.LogSecurity("ANTIFRAUD", fmt.Sprintf("rule=%s amount=%s threshold=%s", rule.RuleName, req.Amount.String(), rule.Limit.String()))
			return &BlockedError{Rule: rule.RuleName, Amount: req.Amount, Threshold: rule.Limit}
		}
	}
	return nil
}
