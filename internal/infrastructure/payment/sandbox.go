// Package payment provides payment processor implementations.
package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/payments"
	"stockpilot/pkg/logger"
)

// SandboxConfig configures the sandbox processor.
type SandboxConfig struct {
	// DeclineAbove declines captures exceeding this amount.
	// Zero disables the limit.
	DeclineAbove types.Money
}

// SandboxProcessor simulates a payment provider for development and
// staging environments. Captures succeed unless the amount exceeds the
// configured limit; refunds always succeed.
type SandboxProcessor struct {
	cfg SandboxConfig
}

var _ payments.Processor = (*SandboxProcessor)(nil)

// NewSandboxProcessor creates a sandbox processor.
func NewSandboxProcessor(cfg SandboxConfig) *SandboxProcessor {
	return &SandboxProcessor{cfg: cfg}
}

// Capture implements payments.Processor.
func (p *SandboxProcessor) Capture(ctx context.Context, orderID id.ID, amount types.Money, method payments.Method) (payments.CaptureResult, error) {
	if !p.cfg.DeclineAbove.IsZero() && amount.GreaterThan(p.cfg.DeclineAbove) {
		logger.Info(ctx, "sandbox capture declined",
			"order_id", orderID,
			"amount", amount,
			"limit", p.cfg.DeclineAbove,
		)
		return payments.CaptureResult{
			Declined:      true,
			DeclineReason: "amount exceeds sandbox limit",
		}, nil
	}

	ref := sandboxRef(orderID)
	logger.Debug(ctx, "sandbox capture accepted",
		"order_id", orderID,
		"amount", amount,
		"method", method,
		"provider_ref", ref,
	)
	return payments.CaptureResult{ProviderRef: ref}, nil
}

// Refund implements payments.Processor.
func (p *SandboxProcessor) Refund(ctx context.Context, providerRef string, amount types.Money) error {
	if !strings.HasPrefix(providerRef, "sbx_") {
		return fmt.Errorf("unknown provider reference %q", providerRef)
	}
	logger.Debug(ctx, "sandbox refund accepted",
		"provider_ref", providerRef,
		"amount", amount,
	)
	return nil
}

func sandboxRef(orderID id.ID) string {
	return "sbx_" + strings.ReplaceAll(orderID.String(), "-", "")[:20]
}

// NoLimit returns a config that never declines.
func NoLimit() SandboxConfig {
	return SandboxConfig{DeclineAbove: decimal.Zero}
}
