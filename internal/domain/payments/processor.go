package payments

import (
	"context"

	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// CaptureResult is the processor's answer to a capture request.
type CaptureResult struct {
	// ProviderRef is the processor-side transaction reference
	ProviderRef string

	// Declined is true for business declines (insufficient funds,
	// blocked card). Declines are outcomes, not errors: the Processor
	// returns them with a nil error.
	Declined bool

	// DeclineReason explains a decline
	DeclineReason string
}

// Processor captures and refunds payments against an external provider.
// Implementations return an error only for transport or provider outages;
// a declined capture is a successful call with Declined set.
type Processor interface {
	Capture(ctx context.Context, orderID id.ID, amount types.Money, method Method) (CaptureResult, error)
	Refund(ctx context.Context, providerRef string, amount types.Money) error
}
