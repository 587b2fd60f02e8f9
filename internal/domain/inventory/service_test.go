package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

// nopTxManager runs the callback directly. The in-memory repo below is
// atomic on its own, so transaction boundaries are not needed in tests.
type nopTxManager struct{}

func (nopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type stockKey struct {
	product   id.ID
	warehouse id.ID
}

// memoryRepo is an in-memory ledger store. Balance mutations perform the
// same check-and-set the SQL implementation does, under one mutex, so the
// concurrency properties hold without a database.
type memoryRepo struct {
	mu        sync.Mutex
	balances  map[stockKey]types.Quantity
	movements []entity.StockMovement

	failMovements bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: make(map[stockKey]types.Quantity)}
}

func (r *memoryRepo) ReserveStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := stockKey{productID, warehouseID}
	available := r.balances[key]
	if available < qty {
		return apperror.NewInsufficientStock(productID.String(), qty.Float64(), available.Float64())
	}
	r.balances[key] = available - qty
	return nil
}

func (r *memoryRepo) ReleaseStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[stockKey{productID, warehouseID}] += qty
	return nil
}

func (r *memoryRepo) SetExactStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := stockKey{productID, warehouseID}
	previous := r.balances[key]
	r.balances[key] = qty
	return previous, nil
}

func (r *memoryRepo) GetBalance(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return entity.InventoryRecord{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    r.balances[stockKey{productID, warehouseID}],
	}, nil
}

func (r *memoryRepo) GetBalancesByProduct(ctx context.Context, productID id.ID) ([]entity.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.InventoryRecord
	for key, qty := range r.balances {
		if key.product == productID {
			out = append(out, entity.InventoryRecord{ProductID: key.product, WarehouseID: key.warehouse, Quantity: qty})
		}
	}
	return out, nil
}

func (r *memoryRepo) GetBalancesByWarehouse(ctx context.Context, warehouseID id.ID) ([]entity.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.InventoryRecord
	for key, qty := range r.balances {
		if key.warehouse == warehouseID && !qty.IsZero() {
			out = append(out, entity.InventoryRecord{ProductID: key.product, WarehouseID: key.warehouse, Quantity: qty})
		}
	}
	return out, nil
}

func (r *memoryRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failMovements {
		return apperror.NewStorageUnavailable(nil)
	}
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *memoryRepo) GetMovementHistory(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.StockMovement
	for _, m := range r.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) SumMovements(ctx context.Context, productID, warehouseID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum types.Quantity
	for _, m := range r.movements {
		if m.ProductID == productID && m.WarehouseID == warehouseID {
			sum += m.QuantityDelta
		}
	}
	return sum, nil
}

var _ Repository = (*memoryRepo)(nil)

func testRef() Reference {
	return Reference{Type: "order", ID: id.New(), Actor: "tester"}
}

func TestLedger_ReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nopTxManager{})

	productID := id.New()
	warehouseID := id.New()
	repo.balances[stockKey{productID, warehouseID}] = types.NewQuantityFromInt(10)

	line := ReservationLine{ProductID: productID, WarehouseID: warehouseID, Quantity: types.NewQuantityFromInt(3)}
	require.NoError(t, ledger.Reserve(ctx, line, testRef()))

	balance, err := repo.GetBalance(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(7), balance.Quantity)

	require.NoError(t, ledger.Release(ctx, line, testRef()))
	balance, err = repo.GetBalance(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(10), balance.Quantity)

	// Journal explains every change
	report, err := ledger.Reconcile(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.True(t, report.InBalance())
}

func TestLedger_Reserve_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nopTxManager{})

	productID := id.New()
	warehouseID := id.New()
	repo.balances[stockKey{productID, warehouseID}] = types.NewQuantityFromInt(7)

	line := ReservationLine{ProductID: productID, WarehouseID: warehouseID, Quantity: types.NewQuantityFromInt(8)}
	err := ledger.Reserve(ctx, line, testRef())
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 7.0, appErr.Details["available"])

	// Balance untouched, no movement journaled
	balance, err := repo.GetBalance(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(7), balance.Quantity)
	assert.Empty(t, repo.movements)
}

func TestLedger_Reserve_RejectsNonPositive(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(newMemoryRepo(), nopTxManager{})

	line := ReservationLine{ProductID: id.New(), WarehouseID: id.New(), Quantity: 0}
	err := ledger.Reserve(ctx, line, testRef())
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestLedger_ConcurrentReserves_NeverOversell(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nopTxManager{})

	productID := id.New()
	warehouseID := id.New()
	repo.balances[stockKey{productID, warehouseID}] = types.NewQuantityFromInt(10)

	const workers = 20
	var wg sync.WaitGroup
	var successes int32
	var successMu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			line := ReservationLine{ProductID: productID, WarehouseID: warehouseID, Quantity: types.NewQuantityFromInt(1)}
			if err := ledger.Reserve(ctx, line, testRef()); err == nil {
				successMu.Lock()
				successes++
				successMu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly 10 units existed, so exactly 10 reservations may succeed.
	assert.EqualValues(t, 10, successes)

	balance, err := repo.GetBalance(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.True(t, balance.Quantity.IsZero())

	report, err := ledger.Reconcile(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.True(t, report.InBalance())
}

func TestLedger_ReserveAll_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nopTxManager{})

	productA := id.New()
	productB := id.New()
	warehouseID := id.New()
	repo.balances[stockKey{productA, warehouseID}] = types.NewQuantityFromInt(5)
	repo.balances[stockKey{productB, warehouseID}] = types.NewQuantityFromInt(2)

	lines := []ReservationLine{
		{ProductID: productA, WarehouseID: warehouseID, Quantity: types.NewQuantityFromInt(3)},
		{ProductID: productB, WarehouseID: warehouseID, Quantity: types.NewQuantityFromInt(4)}, // short
	}

	err := ledger.ReserveAll(ctx, lines, testRef())
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// Compensation restored every acquired line.
	balanceA, _ := repo.GetBalance(ctx, productA, warehouseID)
	balanceB, _ := repo.GetBalance(ctx, productB, warehouseID)
	assert.Equal(t, types.NewQuantityFromInt(5), balanceA.Quantity)
	assert.Equal(t, types.NewQuantityFromInt(2), balanceB.Quantity)

	reportA, err := ledger.Reconcile(ctx, productA, warehouseID)
	require.NoError(t, err)
	assert.True(t, reportA.InBalance())
}

func TestLedger_ReserveAll_Succeeds(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nopTxManager{})

	productA := id.New()
	productB := id.New()
	warehouseID := id.New()
	repo.balances[stockKey{productA, warehouseID}] = types.NewQuantityFromInt(5)
	repo.balances[stockKey{productB, warehouseID}] = types.NewQuantityFromInt(5)

	lines := []ReservationLine{
		{ProductID: productA, WarehouseID: warehouseID, Quantity: types.NewQuantityFromInt(2)},
		{ProductID: productB, WarehouseID: warehouseID, Quantity: types.NewQuantityFromInt(3)},
	}
	require.NoError(t, ledger.ReserveAll(ctx, lines, testRef()))

	balanceA, _ := repo.GetBalance(ctx, productA, warehouseID)
	balanceB, _ := repo.GetBalance(ctx, productB, warehouseID)
	assert.Equal(t, types.NewQuantityFromInt(3), balanceA.Quantity)
	assert.Equal(t, types.NewQuantityFromInt(2), balanceB.Quantity)
	assert.Len(t, repo.movements, 2)
}

func TestLedger_SetExact_JournalsDelta(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nopTxManager{})

	productID := id.New()
	warehouseID := id.New()
	repo.balances[stockKey{productID, warehouseID}] = types.NewQuantityFromInt(4)

	require.NoError(t, ledger.SetExact(ctx, productID, warehouseID, types.NewQuantityFromInt(10), testRef()))

	balance, _ := repo.GetBalance(ctx, productID, warehouseID)
	assert.Equal(t, types.NewQuantityFromInt(10), balance.Quantity)

	require.Len(t, repo.movements, 1)
	assert.Equal(t, entity.MovementTypeAdjustment, repo.movements[0].MovementType)
	assert.Equal(t, types.NewQuantityFromInt(6), repo.movements[0].QuantityDelta)

	// Setting the same level again journals nothing
	require.NoError(t, ledger.SetExact(ctx, productID, warehouseID, types.NewQuantityFromInt(10), testRef()))
	assert.Len(t, repo.movements, 1)
}

func TestLedger_SetExact_RejectsNegative(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(newMemoryRepo(), nopTxManager{})

	err := ledger.SetExact(ctx, id.New(), id.New(), types.NewQuantityFromInt(-1), testRef())
	require.Error(t, err)
}

func TestLedger_Transfer(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nopTxManager{})

	productID := id.New()
	from := id.New()
	to := id.New()
	// seed through the ledger so the opening balance has a movement behind it
	require.NoError(t, ledger.SetExact(ctx, productID, from, types.NewQuantityFromInt(8), testRef()))

	require.NoError(t, ledger.Transfer(ctx, productID, from, to, types.NewQuantityFromInt(3), testRef()))

	fromBal, _ := repo.GetBalance(ctx, productID, from)
	toBal, _ := repo.GetBalance(ctx, productID, to)
	assert.Equal(t, types.NewQuantityFromInt(5), fromBal.Quantity)
	assert.Equal(t, types.NewQuantityFromInt(3), toBal.Quantity)

	reportFrom, _ := ledger.Reconcile(ctx, productID, from)
	reportTo, _ := ledger.Reconcile(ctx, productID, to)
	assert.True(t, reportFrom.InBalance())
	assert.True(t, reportTo.InBalance())
}

func TestLedger_Availability_SumsWarehouses(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nopTxManager{})

	productID := id.New()
	repo.balances[stockKey{productID, id.New()}] = types.NewQuantityFromInt(4)
	repo.balances[stockKey{productID, id.New()}] = types.NewQuantityFromInt(6)
	repo.balances[stockKey{id.New(), id.New()}] = types.NewQuantityFromInt(99) // other product

	availability, err := ledger.Availability(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(10), availability.Total)
	assert.Len(t, availability.Warehouses, 2)
}

func TestLedger_Reconcile_DetectsDrift(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	ledger := NewLedger(repo, nopTxManager{})

	productID := id.New()
	warehouseID := id.New()

	line := ReservationLine{ProductID: productID, WarehouseID: warehouseID, Quantity: types.NewQuantityFromInt(2)}
	require.NoError(t, ledger.Release(ctx, line, testRef()))

	// Simulate an out-of-band write that bypassed the journal.
	repo.mu.Lock()
	repo.balances[stockKey{productID, warehouseID}] = types.NewQuantityFromInt(5)
	repo.mu.Unlock()

	report, err := ledger.Reconcile(ctx, productID, warehouseID)
	require.NoError(t, err)
	assert.False(t, report.InBalance())
	assert.Equal(t, types.NewQuantityFromInt(3), report.Drift)
}
