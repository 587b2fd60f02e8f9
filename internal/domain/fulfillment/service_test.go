package fulfillment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/entity"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain"
	"stockpilot/internal/domain/catalogs/product"
	"stockpilot/internal/domain/catalogs/warehouse"
	"stockpilot/internal/domain/events"
	"stockpilot/internal/domain/history"
	"stockpilot/internal/domain/inventory"
	"stockpilot/internal/domain/orders"
	"stockpilot/internal/domain/payments"
	"stockpilot/internal/domain/shipments"
	"stockpilot/pkg/numerator"
)

// --- shared fakes ---

type nopTxManager struct{}

func (nopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// seqQuerier feeds the numerator incrementing sequence values.
type seqQuerier struct {
	mu   sync.Mutex
	vals map[string]int64
}

type seqRow struct{ val int64 }

func (r seqRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.val
	return nil
}

func (q *seqQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.vals == nil {
		q.vals = make(map[string]int64)
	}
	key := args[0].(string)
	inc := int64(1)
	if len(args) > 1 {
		inc = args[1].(int64)
	}
	q.vals[key] += inc
	return seqRow{val: q.vals[key]}
}

type stockKey struct {
	product   id.ID
	warehouse id.ID
}

type stockRepo struct {
	mu        sync.Mutex
	balances  map[stockKey]types.Quantity
	movements []entity.StockMovement
}

func newStockRepo() *stockRepo {
	return &stockRepo{balances: make(map[stockKey]types.Quantity)}
}

func (r *stockRepo) ReserveStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) error {
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

func (r *stockRepo) ReleaseStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[stockKey{productID, warehouseID}] += qty
	return nil
}

func (r *stockRepo) SetExactStock(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := stockKey{productID, warehouseID}
	previous := r.balances[key]
	r.balances[key] = qty
	return previous, nil
}

func (r *stockRepo) GetBalance(ctx context.Context, productID, warehouseID id.ID) (entity.InventoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return entity.InventoryRecord{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    r.balances[stockKey{productID, warehouseID}],
	}, nil
}

func (r *stockRepo) GetBalancesByProduct(ctx context.Context, productID id.ID) ([]entity.InventoryRecord, error) {
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

func (r *stockRepo) GetBalancesByWarehouse(ctx context.Context, warehouseID id.ID) ([]entity.InventoryRecord, error) {
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

func (r *stockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *stockRepo) GetMovementHistory(ctx context.Context, productID id.ID, filter inventory.MovementFilter) ([]entity.StockMovement, error) {
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

func (r *stockRepo) SumMovements(ctx context.Context, productID, warehouseID id.ID) (types.Quantity, error) {
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

func (r *stockRepo) balance(productID, warehouseID id.ID) types.Quantity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[stockKey{productID, warehouseID}]
}

type orderRepo struct {
	mu     sync.Mutex
	orders map[id.ID]*orders.Order
	lines  map[id.ID][]orders.Line
}

func newOrderRepo() *orderRepo {
	return &orderRepo{orders: make(map[id.ID]*orders.Order), lines: make(map[id.ID][]orders.Line)}
}

func (r *orderRepo) Create(ctx context.Context, order *orders.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *orderRepo) SaveLines(ctx context.Context, orderID id.ID, lines []orders.Line) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[orderID] = append([]orders.Line(nil), lines...)
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("order", orderID.String())
	}
	cp := *stored
	cp.Lines = append([]orders.Line(nil), r.lines[orderID]...)
	return &cp, nil
}

func (r *orderRepo) List(ctx context.Context, filter orders.ListFilter) (domain.ListResult[*orders.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*orders.Order
	for _, o := range r.orders {
		cp := *o
		out = append(out, &cp)
	}
	return domain.ListResult[*orders.Order]{Items: out, TotalCount: int64(len(out))}, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, orderID id.ID, from, to orders.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[orderID]
	if !ok || stored.Status != from {
		return apperror.NewConcurrentModification("order", orderID.String())
	}
	stored.Status = to
	return nil
}

func (r *orderRepo) SetPaymentState(ctx context.Context, orderID id.ID, state orders.PaymentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.orders[orderID]
	if !ok {
		return apperror.NewNotFound("order", orderID.String())
	}
	stored.PaymentState = state
	return nil
}

func (r *orderRepo) SetLineShipment(ctx context.Context, lineID, shipmentID id.ID) error {
	return r.setLineRef(lineID, func(l *orders.Line) { l.ShipmentID = &shipmentID })
}

func (r *orderRepo) SetLineWarehouse(ctx context.Context, lineID, warehouseID id.ID) error {
	return r.setLineRef(lineID, func(l *orders.Line) { l.WarehouseID = &warehouseID })
}

func (r *orderRepo) setLineRef(lineID id.ID, set func(*orders.Line)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for orderID := range r.lines {
		for i := range r.lines[orderID] {
			if r.lines[orderID][i].LineID == lineID {
				set(&r.lines[orderID][i])
				return nil
			}
		}
	}
	return apperror.NewNotFound("order line", lineID.String())
}

type shipmentRepo struct {
	mu        sync.Mutex
	shipments map[id.ID]*shipments.Shipment
	updateErr error // one-shot injected UpdateStatus failure
}

func newShipmentRepo() *shipmentRepo {
	return &shipmentRepo{shipments: make(map[id.ID]*shipments.Shipment)}
}

func (r *shipmentRepo) Create(ctx context.Context, shipment *shipments.Shipment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *shipment
	r.shipments[shipment.ID] = &cp
	return nil
}

func (r *shipmentRepo) GetByID(ctx context.Context, shipmentID id.ID) (*shipments.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.shipments[shipmentID]
	if !ok {
		return nil, apperror.NewNotFound("shipment", shipmentID.String())
	}
	cp := *stored
	return &cp, nil
}

func (r *shipmentRepo) GetByOrder(ctx context.Context, orderID id.ID) ([]*shipments.Shipment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shipments.Shipment
	for _, s := range r.shipments {
		if s.OrderID == orderID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackingNumber < out[j].TrackingNumber })
	return out, nil
}

func (r *shipmentRepo) UpdateStatus(ctx context.Context, shipmentID id.ID, from, to shipments.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		err := r.updateErr
		r.updateErr = nil
		return err
	}
	stored, ok := r.shipments[shipmentID]
	if !ok || stored.Status != from {
		return apperror.NewConcurrentModification("shipment", shipmentID.String())
	}
	stored.Status = to
	return nil
}

func (r *shipmentRepo) SetCarrier(ctx context.Context, shipmentID, carrierID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.shipments[shipmentID]
	if !ok {
		return apperror.NewNotFound("shipment", shipmentID.String())
	}
	stored.CarrierID = &carrierID
	return nil
}

type paymentRepo struct {
	mu      sync.Mutex
	records []*payments.Record
}

func (r *paymentRepo) Create(ctx context.Context, record *payments.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.records = append(r.records, &cp)
	return nil
}

func (r *paymentRepo) GetByID(ctx context.Context, recordID id.ID) (*payments.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == recordID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("payment", recordID.String())
}

func (r *paymentRepo) GetByOrder(ctx context.Context, orderID id.ID) ([]*payments.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*payments.Record
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].OrderID == orderID {
			cp := *r.records[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, recordID id.ID, from, to payments.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == recordID && rec.Status == from {
			rec.Status = to
			return nil
		}
	}
	return apperror.NewConcurrentModification("payment", recordID.String())
}

func (r *paymentRepo) SetOutcome(ctx context.Context, recordID id.ID, status payments.Status, providerRef, failureReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == recordID {
			rec.Status = status
			rec.ProviderRef = providerRef
			rec.FailureReason = failureReason
			return nil
		}
	}
	return apperror.NewNotFound("payment", recordID.String())
}

type historyRepo struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (r *historyRepo) Append(ctx context.Context, entry history.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *historyRepo) ListByEntity(ctx context.Context, entityType string, entityID id.ID) ([]history.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []history.Entry
	for _, e := range r.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangedAt.Before(out[j].ChangedAt) })
	return out, nil
}

type catalogStub struct {
	products map[id.ID]*product.Product
}

func (c *catalogStub) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := c.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return p, nil
}

type directoryStub struct {
	warehouses []*warehouse.Warehouse
}

func (d *directoryStub) ListActive(ctx context.Context) ([]*warehouse.Warehouse, error) {
	sorted := append([]*warehouse.Warehouse(nil), d.warehouses...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return sorted, nil
}

type stubProcessor struct {
	declineReason string
	transportErr  error
	captures      int
}

func (p *stubProcessor) Capture(ctx context.Context, orderID id.ID, amount types.Money, method payments.Method) (payments.CaptureResult, error) {
	p.captures++
	if p.transportErr != nil {
		return payments.CaptureResult{}, p.transportErr
	}
	if p.declineReason != "" {
		return payments.CaptureResult{Declined: true, DeclineReason: p.declineReason}, nil
	}
	return payments.CaptureResult{ProviderRef: "prov-1"}, nil
}

func (p *stubProcessor) Refund(ctx context.Context, providerRef string, amount types.Money) error {
	return nil
}

type captureEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *captureEmitter) Emit(ctx context.Context, event events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *captureEmitter) EmitBatch(ctx context.Context, batch []events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, batch...)
	return nil
}

func (e *captureEmitter) ofType(eventType string) []events.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []events.Event
	for _, ev := range e.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// --- fixture ---

type fixture struct {
	svc       *Service
	ledger    *inventory.Ledger
	stock     *stockRepo
	orders    *orderRepo
	orderSvc  *orders.Service
	shipRepo  *shipmentRepo
	payRepo   *paymentRepo
	histRepo  *historyRepo
	processor *stubProcessor
	emitter   *captureEmitter
	catalog   *catalogStub
	directory *directoryStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	txm := nopTxManager{}
	num := numerator.New(&seqQuerier{})

	f := &fixture{
		stock:     newStockRepo(),
		orders:    newOrderRepo(),
		shipRepo:  newShipmentRepo(),
		payRepo:   &paymentRepo{},
		histRepo:  &historyRepo{},
		processor: &stubProcessor{},
		emitter:   &captureEmitter{},
		catalog:   &catalogStub{products: make(map[id.ID]*product.Product)},
		directory: &directoryStub{},
	}
	hist := history.NewService(f.histRepo)

	f.ledger = inventory.NewLedger(f.stock, txm)
	f.orderSvc = orders.NewService(f.orders, hist, num, txm)
	shipSvc := shipments.NewService(f.shipRepo, hist, num, txm)
	paySvc := payments.NewService(f.payRepo, f.processor, txm)

	f.svc = NewService(f.catalog, f.directory, f.ledger, f.orderSvc, shipSvc, paySvc, f.emitter, txm)
	return f
}

func (f *fixture) addProduct(name, price string) *product.Product {
	p := product.NewProduct("PRD-2026-00001", name, types.MustMoney(price))
	p.ID = id.New()
	f.catalog.products[p.ID] = p
	return p
}

func (f *fixture) addWarehouse(name string, priority int) *warehouse.Warehouse {
	w := warehouse.NewWarehouse("WH-2026-00001", name, warehouse.TypeMain)
	w.ID = id.New()
	w.Priority = priority
	f.directory.warehouses = append(f.directory.warehouses, w)
	return w
}

func (f *fixture) addStock(productID, warehouseID id.ID, units int64) {
	f.stock.balances[stockKey{productID, warehouseID}] = types.NewQuantityFromInt(units)
	f.stock.movements = append(f.stock.movements, entity.NewStockMovement(
		productID, warehouseID, entity.MovementTypeIn,
		types.NewQuantityFromInt(units), "seed", id.New(), "test",
	))
}

// --- tests ---

func TestPlaceOrder_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)

	result, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(3)}},
		Actor:      "customer",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	// Order is confirmed with the price snapshot.
	assert.Equal(t, orders.StatusConfirmed, result.Order.Status)
	assert.True(t, result.Order.TotalAmount.Equal(types.MustMoney("75.00")))
	assert.False(t, result.PaymentFailed)
	assert.Empty(t, result.Warnings)

	// Stock went 10 -> 7 and the journal explains it.
	assert.Equal(t, types.NewQuantityFromInt(7), f.stock.balance(prod.ID, wh.ID))
	report, err := f.ledger.Reconcile(ctx, prod.ID, wh.ID)
	require.NoError(t, err)
	assert.True(t, report.InBalance())

	// One pending shipment from the allocated warehouse, backfilled on the line.
	require.Len(t, result.Shipments, 1)
	assert.Equal(t, wh.ID, result.Shipments[0].WarehouseID)
	assert.Equal(t, shipments.StatusPending, result.Shipments[0].Status)
	assert.NotEmpty(t, result.Shipments[0].TrackingNumber)

	stored, err := f.orders.GetByID(ctx, result.Order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	require.NotNil(t, stored.Lines[0].WarehouseID)
	assert.Equal(t, wh.ID, *stored.Lines[0].WarehouseID)
	require.NotNil(t, stored.Lines[0].ShipmentID)
	assert.Equal(t, result.Shipments[0].ID, *stored.Lines[0].ShipmentID)

	// Payment captured; state mirrored on the order.
	require.NotNil(t, result.Payment)
	assert.Equal(t, payments.StatusCompleted, result.Payment.Status)
	assert.Equal(t, orders.PaymentCompleted, stored.PaymentState)

	// Audit trail records creation and confirmation in order.
	entries, err := f.histRepo.ListByEntity(ctx, "order", result.Order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, string(orders.StatusPending), entries[0].NewStatus)
	assert.Equal(t, string(orders.StatusPending), entries[1].OldStatus)
	assert.Equal(t, string(orders.StatusConfirmed), entries[1].NewStatus)

	// Confirmation and inventory events staged.
	assert.Len(t, f.emitter.ofType(events.TypeOrderConfirmed), 1)
	assert.Len(t, f.emitter.ofType(events.TypeInventoryChanged), 1)
	assert.Len(t, f.emitter.ofType(events.TypeShipmentCreated), 1)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 7)

	movementsBefore := len(f.stock.movements)

	result, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(8)}},
		Actor:      "customer",
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperror.IsInsufficientStock(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 7.0, appErr.Details["available"])

	// Nothing changed: no order, no stock delta, no movements, no payment.
	assert.Equal(t, types.NewQuantityFromInt(7), f.stock.balance(prod.ID, wh.ID))
	assert.Len(t, f.stock.movements, movementsBefore)
	assert.Empty(t, f.orders.orders)
	assert.Empty(t, f.payRepo.records)
	assert.Zero(t, f.processor.captures)
}

func TestPlaceOrder_AllocatesByWarehousePriority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	primary := f.addWarehouse("Primary", 1)
	backup := f.addWarehouse("Backup", 2)
	prodA := f.addProduct("Widget A", "10.00")
	prodB := f.addProduct("Widget B", "20.00")

	// A fits in the primary warehouse; B only in the backup.
	f.addStock(prodA.ID, primary.ID, 5)
	f.addStock(prodB.ID, primary.ID, 1)
	f.addStock(prodB.ID, backup.ID, 10)

	result, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines: []RequestLine{
			{ProductID: prodA.ID, Quantity: types.NewQuantityFromInt(2)},
			{ProductID: prodB.ID, Quantity: types.NewQuantityFromInt(4)},
		},
		Actor: "customer",
	})
	require.NoError(t, err)

	// One shipment per source warehouse.
	require.Len(t, result.Shipments, 2)
	sources := map[id.ID]bool{}
	for _, sh := range result.Shipments {
		sources[sh.WarehouseID] = true
	}
	assert.True(t, sources[primary.ID])
	assert.True(t, sources[backup.ID])

	assert.Equal(t, types.NewQuantityFromInt(3), f.stock.balance(prodA.ID, primary.ID))
	assert.Equal(t, types.NewQuantityFromInt(1), f.stock.balance(prodB.ID, primary.ID))
	assert.Equal(t, types.NewQuantityFromInt(6), f.stock.balance(prodB.ID, backup.ID))
}

func TestPlaceOrder_RollsBackAllLinesOnPartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prodA := f.addProduct("Widget A", "10.00")
	prodB := f.addProduct("Widget B", "20.00")
	f.addStock(prodA.ID, wh.ID, 5)
	f.addStock(prodB.ID, wh.ID, 2)

	_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines: []RequestLine{
			{ProductID: prodA.ID, Quantity: types.NewQuantityFromInt(3)},
			{ProductID: prodB.ID, Quantity: types.NewQuantityFromInt(4)},
		},
		Actor: "customer",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// The line that did reserve was compensated.
	assert.Equal(t, types.NewQuantityFromInt(5), f.stock.balance(prodA.ID, wh.ID))
	assert.Equal(t, types.NewQuantityFromInt(2), f.stock.balance(prodB.ID, wh.ID))

	reportA, err := f.ledger.Reconcile(ctx, prodA.ID, wh.ID)
	require.NoError(t, err)
	assert.True(t, reportA.InBalance())

	assert.Empty(t, f.orders.orders)
}

func TestPlaceOrder_PaymentDeclineSurfacedNotSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)
	f.processor.declineReason = "insufficient funds"

	result, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(3)}},
		Actor:      "customer",
	})
	require.NoError(t, err)

	// The placement stands: order confirmed, stock reserved.
	assert.Equal(t, orders.StatusConfirmed, result.Order.Status)
	assert.Equal(t, types.NewQuantityFromInt(7), f.stock.balance(prod.ID, wh.ID))

	// The failure is visible everywhere it must be.
	assert.True(t, result.PaymentFailed)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "insufficient funds")

	require.NotNil(t, result.Payment)
	assert.Equal(t, payments.StatusFailed, result.Payment.Status)
	require.NotNil(t, result.Payment.FailureReason)
	assert.Equal(t, "insufficient funds", *result.Payment.FailureReason)

	stored, err := f.orders.GetByID(ctx, result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentFailed, stored.PaymentState)

	failures := f.emitter.ofType(events.TypePaymentFailed)
	require.Len(t, failures, 1)
	payload := failures[0].Payload.(events.PaymentFailedPayload)
	assert.Equal(t, result.Order.ID, payload.OrderID)
	assert.Equal(t, "insufficient funds", payload.Reason)
}

func TestPlaceOrder_ProviderOutageStillRecordsAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)
	f.processor.transportErr = errors.New("provider timeout")

	result, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(1)}},
		Actor:      "customer",
	})
	require.NoError(t, err)
	assert.True(t, result.PaymentFailed)

	// The attempt is durable even though the provider never answered.
	require.Len(t, f.payRepo.records, 1)
	assert.Equal(t, payments.StatusFailed, f.payRepo.records[0].Status)
}

func TestPlaceOrder_RejectsInactiveProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	prod.IsActive = false
	f.addStock(prod.ID, wh.ID, 10)

	_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(1)}},
		Actor:      "customer",
	})
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
	assert.Equal(t, types.NewQuantityFromInt(10), f.stock.balance(prod.ID, wh.ID))
}

func TestPlaceOrder_ValidatesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  PlaceOrderRequest
	}{
		{"missing customer", PlaceOrderRequest{
			Lines: []RequestLine{{ProductID: id.New(), Quantity: types.NewQuantityFromInt(1)}},
		}},
		{"no lines", PlaceOrderRequest{CustomerID: id.New()}},
		{"zero quantity", PlaceOrderRequest{
			CustomerID: id.New(),
			Lines:      []RequestLine{{ProductID: id.New(), Quantity: 0}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PlaceOrder(ctx, tt.req)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestConfirmFulfillment_ReservesManuallyCreatedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)

	order := orders.NewOrder(id.New())
	order.AddLine(prod.ID, types.NewQuantityFromInt(4), prod.UnitPrice)
	require.NoError(t, f.orderSvc.Create(ctx, order))

	confirmed, err := f.svc.ConfirmFulfillment(ctx, order.ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, confirmed.Status)

	// Confirmation allocated and reserved the unallocated line.
	assert.Equal(t, types.NewQuantityFromInt(6), f.stock.balance(prod.ID, wh.ID))
	stored, err := f.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Lines[0].WarehouseID)
	assert.Equal(t, wh.ID, *stored.Lines[0].WarehouseID)
}

func TestConfirmFulfillment_RejectsNonPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)

	result, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(1)}},
		Actor:      "customer",
	})
	require.NoError(t, err)

	_, err = f.svc.ConfirmFulfillment(ctx, result.Order.ID, "operator")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestConfirmFulfillment_AllocatedLinesKeepTheirReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 5)

	// A pending order whose line was already allocated and reserved.
	order := orders.NewOrder(id.New())
	order.AddLine(prod.ID, types.NewQuantityFromInt(2), prod.UnitPrice)
	whID := wh.ID
	order.Lines[0].WarehouseID = &whID
	require.NoError(t, f.orderSvc.Create(ctx, order))
	require.NoError(t, f.ledger.Reserve(ctx, inventory.ReservationLine{
		ProductID:   prod.ID,
		WarehouseID: wh.ID,
		Quantity:    types.NewQuantityFromInt(2),
	}, inventory.Reference{Type: "order", ID: order.ID, Actor: "customer"}))

	// An admin override drains the remaining free stock. The reserved
	// quantity is already decremented out of the balance, so confirmation
	// must not re-check or re-reserve the allocated line.
	require.NoError(t, f.ledger.SetExact(ctx, prod.ID, wh.ID, types.NewQuantityFromInt(0),
		inventory.Reference{Type: "adjustment", ID: id.New(), Actor: "admin"}))

	updated, err := f.svc.ConfirmFulfillment(ctx, order.ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, updated.Status)

	// No additional stock was taken at confirmation.
	assert.Equal(t, types.Quantity(0), f.stock.balance(prod.ID, wh.ID))

	// No double reservation happened.
	assert.Equal(t, types.NewQuantityFromInt(9), f.stock.balance(prod.ID, wh.ID))
}

func TestMarkShippable_DispatchesOrderAndShipments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)

	placed, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(2)}},
		Actor:      "customer",
	})
	require.NoError(t, err)

	result, err := f.svc.MarkShippable(ctx, placed.Order.ID, "warehouse")
	require.NoError(t, err)

	assert.Equal(t, orders.StatusShipped, result.Order.Status)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Shipments, 1)
	assert.Equal(t, shipments.StatusInTransit, result.Shipments[0].Status)
}

func TestMarkShippable_CreatesFallbackShipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)

	// Confirmed through the manual path, which creates no shipments.
	order := orders.NewOrder(id.New())
	order.AddLine(prod.ID, types.NewQuantityFromInt(2), prod.UnitPrice)
	require.NoError(t, f.orderSvc.Create(ctx, order))
	_, err := f.svc.ConfirmFulfillment(ctx, order.ID, "operator")
	require.NoError(t, err)

	result, err := f.svc.MarkShippable(ctx, order.ID, "warehouse")
	require.NoError(t, err)

	assert.Equal(t, orders.StatusShipped, result.Order.Status)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "fallback shipment")
	require.Len(t, result.Shipments, 1)
	assert.Equal(t, wh.ID, result.Shipments[0].WarehouseID)
	assert.Equal(t, shipments.StatusInTransit, result.Shipments[0].Status)
}

func TestMarkShippable_RejectsPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prod := f.addProduct("Widget", "25.00")
	f.addWarehouse("Main", 1)

	order := orders.NewOrder(id.New())
	order.AddLine(prod.ID, types.NewQuantityFromInt(1), prod.UnitPrice)
	require.NoError(t, f.orderSvc.Create(ctx, order))

	_, err := f.svc.MarkShippable(ctx, order.ID, "warehouse")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
}

// rollbackTxManager restores the order and shipment fakes when the
// transaction function fails, mimicking a database rollback.
type rollbackTxManager struct {
	orders    *orderRepo
	shipments *shipmentRepo
}

type rollbackTxKey struct{}

func (m *rollbackTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(rollbackTxKey{}) != nil {
		return fn(ctx)
	}
	orderSnap, lineSnap := m.orders.snapshot()
	shipSnap := m.shipments.snapshot()
	err := fn(context.WithValue(ctx, rollbackTxKey{}, true))
	if err != nil {
		m.orders.restore(orderSnap, lineSnap)
		m.shipments.restore(shipSnap)
	}
	return err
}

func (r *orderRepo) snapshot() (map[id.ID]*orders.Order, map[id.ID][]orders.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	os := make(map[id.ID]*orders.Order, len(r.orders))
	for k, v := range r.orders {
		cp := *v
		os[k] = &cp
	}
	ls := make(map[id.ID][]orders.Line, len(r.lines))
	for k, v := range r.lines {
		ls[k] = append([]orders.Line(nil), v...)
	}
	return os, ls
}

func (r *orderRepo) restore(os map[id.ID]*orders.Order, ls map[id.ID][]orders.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = os
	r.lines = ls
}

func (r *shipmentRepo) snapshot() map[id.ID]*shipments.Shipment {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := make(map[id.ID]*shipments.Shipment, len(r.shipments))
	for k, v := range r.shipments {
		cp := *v
		snap[k] = &cp
	}
	return snap
}

func (r *shipmentRepo) restore(snap map[id.ID]*shipments.Shipment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shipments = snap
}

func TestMarkShippable_FailedDispatchLeavesOrderConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)

	placed, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(2)}},
		Actor:      "customer",
	})
	require.NoError(t, err)

	// Rebuild the orchestrator on a transaction manager that rolls the
	// fakes back on failure, so a partially applied dispatch is visible.
	txm := &rollbackTxManager{orders: f.orders, shipments: f.shipRepo}
	hist := history.NewService(f.histRepo)
	num := numerator.New(&seqQuerier{})
	orderSvc := orders.NewService(f.orders, hist, num, txm)
	shipSvc := shipments.NewService(f.shipRepo, hist, num, txm)
	paySvc := payments.NewService(f.payRepo, f.processor, txm)
	svc := NewService(f.catalog, f.directory, f.ledger, orderSvc, shipSvc, paySvc, f.emitter, txm)

	f.shipRepo.updateErr = errors.New("storage offline")

	_, err = svc.MarkShippable(ctx, placed.Order.ID, "warehouse")
	require.Error(t, err)

	// The failed dispatch must not leave a shipped order behind.
	stored, err := orderSvc.GetByID(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, stored.Status)
	for _, sh := range placed.Shipments {
		got, err := shipSvc.GetByID(ctx, sh.ID)
		require.NoError(t, err)
		assert.Equal(t, shipments.StatusPending, got.Status)
	}

	// Dispatch succeeds once storage recovers.
	result, err := svc.MarkShippable(ctx, placed.Order.ID, "warehouse")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, result.Order.Status)
	require.Len(t, result.Shipments, 1)
	assert.Equal(t, shipments.StatusInTransit, result.Shipments[0].Status)
}

func TestCancelOrder_ReleasesReservedStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)

	placed, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(3)}},
		Actor:      "customer",
	})
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(7), f.stock.balance(prod.ID, wh.ID))

	cancelled, err := f.svc.CancelOrder(ctx, placed.Order.ID, "customer", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)

	// Stock is back and the journal still reconciles.
	assert.Equal(t, types.NewQuantityFromInt(10), f.stock.balance(prod.ID, wh.ID))
	report, err := f.ledger.Reconcile(ctx, prod.ID, wh.ID)
	require.NoError(t, err)
	assert.True(t, report.InBalance())

	changes := f.emitter.ofType(events.TypeOrderStatusChanged)
	require.Len(t, changes, 1)
	payload := changes[0].Payload.(events.OrderStatusChangedPayload)
	assert.Equal(t, string(orders.StatusCancelled), payload.To)
}

func TestCancelOrder_RejectsAfterDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wh := f.addWarehouse("Main", 1)
	prod := f.addProduct("Widget", "25.00")
	f.addStock(prod.ID, wh.ID, 10)

	placed, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		CustomerID: id.New(),
		Lines:      []RequestLine{{ProductID: prod.ID, Quantity: types.NewQuantityFromInt(2)}},
		Actor:      "customer",
	})
	require.NoError(t, err)

	_, err = f.svc.MarkShippable(ctx, placed.Order.ID, "warehouse")
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, placed.Order.ID, "customer", "")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))

	// Reserved stock stays committed to the shipped order.
	assert.Equal(t, types.NewQuantityFromInt(8), f.stock.balance(prod.ID, wh.ID))
}
