package antifraud

import (
	"errors"
	"io"
	"testing"

	"ms-payments/internal/config"
	"ms-payments/internal/logger"
	"ms-payments/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(amount string) models.PaymentRequest {
	return models.PaymentRequest{Method: "CARD", Currency: "BRL", Amount: decimal.RequireFromString(amount)}
}

func TestCheck_NoRulesPasses(t *testing.T) {
	c := NewChecker(logger.NewLoggerWithWriter(io.Discard))
	assert.NoError(t, c.Check(request("999999.99")))
}

func TestCheck_BlocksAboveThreshold(t *testing.T) {
	c := NewChecker(logger.NewLoggerWithWriter(io.Discard),
		ThresholdRule{RuleName: "HighAmount", Limit: decimal.NewFromInt(1000)})

	assert.NoError(t, c.Check(request("1000.00")), "amount equal to the threshold passes")

	err := c.Check(request("1000.01"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBlocked))

	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "HighAmount", blocked.Rule)
	assert.Contains(t, err.Error(), "AntiFraud(HighAmount)")
}

func TestCheck_LowestNamedRuleReportedFirst(t *testing.T) {
	c := NewChecker(logger.NewLoggerWithWriter(io.Discard),
		ThresholdRule{RuleName: "Zeta", Limit: decimal.NewFromInt(10)},
		ThresholdRule{RuleName: "Alpha", Limit: decimal.NewFromInt(50)})

	var blocked *BlockedError
	require.ErrorAs(t, c.Check(request("60")), &blocked)
	assert.Equal(t, "Alpha", blocked.Rule)
}

func TestRegister_ReplacesRuleWithSameName(t *testing.T) {
	c := NewChecker(logger.NewLoggerWithWriter(io.Discard),
		ThresholdRule{RuleName: "HighAmount", Limit: decimal.NewFromInt(1000)})
	c.Register(ThresholdRule{RuleName: "HighAmount", Limit: decimal.NewFromInt(5000)})

	assert.NoError(t, c.Check(request("4000")))
	assert.Len(t, c.Rules(), 1)
}

func TestRulesFromConfig(t *testing.T) {
	rules := RulesFromConfig(config.AntiFraudConfig{Rules: []config.AntiFraudRule{
		{Name: "HighAmount", Threshold: "1000"},
		{Name: "Broken", Threshold: "lots"},
	}}, logger.NewLoggerWithWriter(io.Discard))

	require.Len(t, rules, 1)
	assert.Equal(t, "HighAmount", rules[0].Name())
	assert.True(t, decimal.NewFromInt(1000).Equal(rules[0].Threshold()))
}
