package payments

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/core/apperror"
	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
)

type nopTxManager struct{}

func (nopTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type recordRepo struct {
	mu      sync.Mutex
	records map[id.ID]*Record
	order   []id.ID
}

func newRecordRepo() *recordRepo {
	return &recordRepo{records: make(map[id.ID]*Record)}
}

func (r *recordRepo) Create(ctx context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *record
	r.records[record.ID] = &clone
	r.order = append(r.order, record.ID)
	return nil
}

func (r *recordRepo) GetByID(ctx context.Context, recordID id.ID) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.records[recordID]; ok {
		clone := *record
		return &clone, nil
	}
	return nil, apperror.NewNotFound("payment", recordID.String())
}

func (r *recordRepo) GetByOrder(ctx context.Context, orderID id.ID) ([]*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Record
	// newest first
	for i := len(r.order) - 1; i >= 0; i-- {
		record := r.records[r.order[i]]
		if record.OrderID == orderID {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *recordRepo) UpdateStatus(ctx context.Context, recordID id.ID, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[recordID]
	if !ok {
		return apperror.NewNotFound("payment", recordID.String())
	}
	if record.Status != from {
		return apperror.NewConcurrentModification("payment", recordID.String())
	}
	record.Status = to
	return nil
}

func (r *recordRepo) SetOutcome(ctx context.Context, recordID id.ID, status Status, providerRef, failureReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[recordID]
	if !ok {
		return apperror.NewNotFound("payment", recordID.String())
	}
	record.Status = status
	record.ProviderRef = providerRef
	record.FailureReason = failureReason
	return nil
}

func (r *recordRepo) get(recordID id.ID) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[recordID]
}

type stubProcessor struct {
	result    CaptureResult
	err       error
	refundErr error
	refunds   []string
}

func (p *stubProcessor) Capture(ctx context.Context, orderID id.ID, amount types.Money, method Method) (CaptureResult, error) {
	return p.result, p.err
}

func (p *stubProcessor) Refund(ctx context.Context, providerRef string, amount types.Money) error {
	p.refunds = append(p.refunds, providerRef)
	return p.refundErr
}

func money(t *testing.T, s string) types.Money {
	t.Helper()
	m, err := types.NewMoneyFromString(s)
	require.NoError(t, err)
	return m
}

func TestCapture_Success(t *testing.T) {
	repo := newRecordRepo()
	processor := &stubProcessor{result: CaptureResult{ProviderRef: "prov_123"}}
	svc := NewService(repo, processor, nopTxManager{})

	orderID := id.New()
	record, err := svc.Capture(context.Background(), orderID, money(t, "120.50"), MethodCard)
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.Equal(t, StatusCompleted, record.Status)
	require.NotNil(t, record.ProviderRef)
	assert.Equal(t, "prov_123", *record.ProviderRef)

	stored := repo.get(record.ID)
	require.NotNil(t, stored)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, orderID, stored.OrderID)
}

func TestCapture_Declined(t *testing.T) {
	repo := newRecordRepo()
	processor := &stubProcessor{result: CaptureResult{Declined: true, DeclineReason: "insufficient funds"}}
	svc := NewService(repo, processor, nopTxManager{})

	record, err := svc.Capture(context.Background(), id.New(), money(t, "99.00"), MethodCard)
	require.Error(t, err)
	assert.True(t, apperror.IsPaymentFailed(err))

	// a durable failed record must exist even though the capture failed
	require.NotNil(t, record)
	assert.Equal(t, StatusFailed, record.Status)
	require.NotNil(t, record.FailureReason)
	assert.Equal(t, "insufficient funds", *record.FailureReason)

	stored := repo.get(record.ID)
	require.NotNil(t, stored)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestCapture_ProviderUnreachable(t *testing.T) {
	repo := newRecordRepo()
	processor := &stubProcessor{err: errors.New("connection refused")}
	svc := NewService(repo, processor, nopTxManager{})

	record, err := svc.Capture(context.Background(), id.New(), money(t, "10.00"), MethodTransfer)
	require.Error(t, err)
	assert.True(t, apperror.IsPaymentFailed(err))

	require.NotNil(t, record)
	assert.Equal(t, StatusFailed, record.Status)
	require.NotNil(t, record.FailureReason)
	assert.Contains(t, *record.FailureReason, "connection refused")
}

func TestCapture_RejectsNilOrder(t *testing.T) {
	svc := NewService(newRecordRepo(), &stubProcessor{}, nopTxManager{})

	_, err := svc.Capture(context.Background(), id.Nil(), money(t, "10.00"), MethodCard)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestRefund(t *testing.T) {
	repo := newRecordRepo()
	processor := &stubProcessor{result: CaptureResult{ProviderRef: "prov_777"}}
	svc := NewService(repo, processor, nopTxManager{})

	record, err := svc.Capture(context.Background(), id.New(), money(t, "50.00"), MethodCard)
	require.NoError(t, err)

	require.NoError(t, svc.Refund(context.Background(), record.ID))
	assert.Equal(t, []string{"prov_777"}, processor.refunds)
	assert.Equal(t, StatusRefunded, repo.get(record.ID).Status)

	// a second refund of the same record is an invalid transition
	err = svc.Refund(context.Background(), record.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestRefund_FailedRecord(t *testing.T) {
	repo := newRecordRepo()
	processor := &stubProcessor{result: CaptureResult{Declined: true, DeclineReason: "declined"}}
	svc := NewService(repo, processor, nopTxManager{})

	record, err := svc.Capture(context.Background(), id.New(), money(t, "50.00"), MethodCard)
	require.Error(t, err)

	err = svc.Refund(context.Background(), record.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidTransition(err))
	assert.Empty(t, processor.refunds)
}

func TestRefund_NotFound(t *testing.T) {
	svc := NewService(newRecordRepo(), &stubProcessor{}, nopTxManager{})

	err := svc.Refund(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestLatestForOrder(t *testing.T) {
	repo := newRecordRepo()
	processor := &stubProcessor{err: errors.New("timeout")}
	svc := NewService(repo, processor, nopTxManager{})

	orderID := id.New()

	// first attempt fails, second succeeds
	_, err := svc.Capture(context.Background(), orderID, money(t, "30.00"), MethodCard)
	require.Error(t, err)

	processor.err = nil
	processor.result = CaptureResult{ProviderRef: "prov_2"}
	second, err := svc.Capture(context.Background(), orderID, money(t, "30.00"), MethodCard)
	require.NoError(t, err)

	latest, err := svc.LatestForOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, StatusCompleted, latest.Status)
}

func TestLatestForOrder_NoRecords(t *testing.T) {
	svc := NewService(newRecordRepo(), &stubProcessor{}, nopTxManager{})

	_, err := svc.LatestForOrder(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
