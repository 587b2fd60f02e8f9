package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/payments"
)

func TestSandboxCapture(t *testing.T) {
	p := NewSandboxProcessor(NoLimit())

	amount, err := types.NewMoneyFromString("250.00")
	require.NoError(t, err)

	result, err := p.Capture(context.Background(), id.New(), amount, payments.MethodCard)
	require.NoError(t, err)
	assert.False(t, result.Declined)
	assert.Contains(t, result.ProviderRef, "sbx_")
}

func TestSandboxCapture_DeclineAboveLimit(t *testing.T) {
	limit, err := types.NewMoneyFromString("100.00")
	require.NoError(t, err)
	p := NewSandboxProcessor(SandboxConfig{DeclineAbove: limit})

	over, err := types.NewMoneyFromString("100.01")
	require.NoError(t, err)
	result, err := p.Capture(context.Background(), id.New(), over, payments.MethodCard)
	require.NoError(t, err)
	assert.True(t, result.Declined)
	assert.NotEmpty(t, result.DeclineReason)

	at, err := types.NewMoneyFromString("100.00")
	require.NoError(t, err)
	result, err = p.Capture(context.Background(), id.New(), at, payments.MethodCard)
	require.NoError(t, err)
	assert.False(t, result.Declined)
}

func TestSandboxRefund(t *testing.T) {
	p := NewSandboxProcessor(NoLimit())

	amount, err := types.NewMoneyFromString("10.00")
	require.NoError(t, err)

	assert.NoError(t, p.Refund(context.Background(), "sbx_0123456789abcdef0123", amount))
	assert.Error(t, p.Refund(context.Background(), "unknown_ref", amount))
}
