package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

func TestCanTransition_EdgeTable(t *testing.T) {
	cases := []struct {
		from  Status
		to    Status
		legal bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusPending, StatusDelivered, false},
		{StatusConfirmed, StatusProcessing, true},
		{StatusConfirmed, StatusShipped, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusPending, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.legal, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusDelivered))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.False(t, IsTerminal(StatusPending))
	assert.False(t, IsTerminal(StatusShipped))
}

func TestOrder_TransitionTo(t *testing.T) {
	order := NewOrder(id.New())
	require.Equal(t, StatusPending, order.Status)

	require.NoError(t, order.TransitionTo(StatusConfirmed))
	assert.Equal(t, StatusConfirmed, order.Status)

	err := order.TransitionTo(StatusPending)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Equal(t, StatusConfirmed, order.Status, "illegal transition must not mutate status")
}

func TestOrder_CancelledFromPendingAndConfirmedOnly(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusConfirmed} {
		assert.True(t, CanTransition(from, StatusCancelled), "from %s", from)
	}
	for _, from := range []Status{StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.False(t, CanTransition(from, StatusCancelled), "from %s", from)
	}
}

func TestOrder_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid order", func(t *testing.T) {
		order := NewOrder(id.New())
		order.AddLine(id.New(), types.NewQuantityFromInt(2), types.MustMoney("19.99"))
		require.NoError(t, order.Validate(ctx))
	})

	t.Run("missing customer", func(t *testing.T) {
		order := NewOrder(id.Nil())
		order.AddLine(id.New(), types.NewQuantityFromInt(1), types.MustMoney("5"))
		require.Error(t, order.Validate(ctx))
	})

	t.Run("empty lines", func(t *testing.T) {
		order := NewOrder(id.New())
		require.Error(t, order.Validate(ctx))
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		order := NewOrder(id.New())
		order.AddLine(id.New(), types.NewQuantityFromInt(0), types.MustMoney("5"))
		require.Error(t, order.Validate(ctx))
	})

	t.Run("negative price", func(t *testing.T) {
		order := NewOrder(id.New())
		order.AddLine(id.New(), types.NewQuantityFromInt(1), types.MustMoney("-1"))
		require.Error(t, order.Validate(ctx))
	})
}

func TestOrder_TotalSnapshotsPrices(t *testing.T) {
	order := NewOrder(id.New())
	order.AddLine(id.New(), types.NewQuantityFromInt(3), types.MustMoney("10.50"))
	order.AddLine(id.New(), types.NewQuantityFromFloat64(0.5), types.MustMoney("4.00"))

	// 3 × 10.50 + 0.5 × 4.00 = 33.50
	assert.True(t, order.TotalAmount.Equal(types.MustMoney("33.50")),
		"got %s", order.TotalAmount)
}

func TestOrder_InventoryCommitted(t *testing.T) {
	order := NewOrder(id.New())
	assert.True(t, order.InventoryCommitted())

	order.Status = StatusConfirmed
	assert.True(t, order.InventoryCommitted())

	order.Status = StatusShipped
	assert.False(t, order.InventoryCommitted())

	order.Status = StatusCancelled
	assert.False(t, order.InventoryCommitted())
}
