package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/models"
	awspkg "github.com/yashrajoria/equipment-workflow-service/pkg/aws"
	"github.com/yashrajoria/equipment-workflow-service/repository"
	"github.com/yashrajoria/equipment-workflow-service/services"
	"github.com/yashrajoria/equipment-workflow-service/workflow"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type mockBatches struct{ mock.Mock }

func (m *mockBatches) ValidateEquipmentBatch(ctx context.Context, equipmentID string, batchNumber int64) (*models.BatchValidationResult, error) {
	args := m.Called(ctx, equipmentID, batchNumber)
	res, _ := args.Get(0).(*models.BatchValidationResult)
	return res, args.Error(1)
}

func (m *mockBatches) ValidateMaintenanceBatch(ctx context.Context, equipmentID, maintenanceID string, batchNumber int64) (*models.BatchValidationResult, error) {
	args := m.Called(ctx, equipmentID, maintenanceID, batchNumber)
	res, _ := args.Get(0).(*models.BatchValidationResult)
	return res, args.Error(1)
}

func (m *mockBatches) ValidateBatchUniqueness(ctx context.Context, batchNumber int64) error {
	return m.Called(ctx, batchNumber).Error(0)
}

type stubCatalog struct {
	sitesErr error
}

func (s *stubCatalog) Sites(context.Context) ([]models.Site, error) {
	if s.sitesErr != nil {
		return nil, s.sitesErr
	}
	return []models.Site{{ID: "s1", Name: "North"}}, nil
}

func (s *stubCatalog) Warehouses(context.Context, string) ([]models.Warehouse, error) {
	return []models.Warehouse{{ID: "w1", Name: "Main"}}, nil
}

func (s *stubCatalog) WarehouseItems(context.Context, string) ([]models.WarehouseItem, error) {
	return []models.WarehouseItem{{
		ID:         "r1",
		ItemType:   models.ItemType{ID: "oil", Name: "Oil Filter", MeasuringUnit: "pcs"},
		Quantity:   5,
		ItemStatus: models.ItemStatusInWarehouse,
	}}, nil
}

type mockTransactions struct{ mock.Mock }

func (m *mockTransactions) CreateTransaction(ctx context.Context, equipmentID string, payload models.CreatePayload) (*models.TransactionRef, error) {
	args := m.Called(ctx, equipmentID, payload)
	ref, _ := args.Get(0).(*models.TransactionRef)
	return ref, args.Error(1)
}

func (m *mockTransactions) ValidateTransaction(ctx context.Context, equipmentID string, payload models.ValidationPayload) error {
	return m.Called(ctx, equipmentID, payload).Error(0)
}

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, topicArn, eventType string, message []byte) error {
	return m.Called(ctx, topicArn, eventType, message).Error(0)
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[name]++
	return nil
}

func (f *fakeMetrics) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}

// --- Helpers ---

type fixture struct {
	svc     services.WorkflowService
	batches *mockBatches
	catalog *stubCatalog
	tx      *mockTransactions
	sns     *mockSNS
	metrics *fakeMetrics
	mr      *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		batches: &mockBatches{},
		catalog: &stubCatalog{},
		tx:      &mockTransactions{},
		sns:     &mockSNS{},
		metrics: &fakeMetrics{},
		mr:      miniredis.RunT(t),
	}
	client := redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	deps := workflow.Dependencies{
		Batches:      f.batches,
		Catalog:      f.catalog,
		Transactions: f.tx,
		Now:          func() time.Time { return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) },
	}
	f.svc = services.NewWorkflowService(
		deps,
		repository.NewSessionRegistry(10, time.Minute),
		repository.NewIdempotencyRepository(client, time.Hour),
		f.sns,
		"arn:aws:sns:us-east-1:000000000000:workflow",
		f.metrics,
	)
	return f
}

func ptr(s string) *string { return &s }

func (f *fixture) openCreate(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	f.batches.On("ValidateEquipmentBatch", mock.Anything, "eq-1", int64(1001)).
		Return(&models.BatchValidationResult{Scenario: models.ScenarioNotFound}, nil).Once()

	view, err := f.svc.Open(ctx, "user-1", workflow.Options{EquipmentID: "eq-1"})
	require.NoError(t, err)
	_, err = f.svc.ValidateBatch(ctx, "user-1", view.ID, "1001")
	require.NoError(t, err)
	_, err = f.svc.SelectSite(ctx, "user-1", view.ID, "s1")
	require.NoError(t, err)
	_, err = f.svc.SelectWarehouse(ctx, "user-1", view.ID, "w1")
	require.NoError(t, err)
	_, err = f.svc.ChangeItem(ctx, "user-1", view.ID, 0, services.ItemPatch{ItemTypeID: ptr("oil"), Quantity: ptr("2")})
	require.NoError(t, err)
	return view.ID
}

// --- Tests ---

func TestWorkflowService_OpenLoadsSites(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.Open(context.Background(), "user-1", workflow.Options{EquipmentID: "eq-1"})

	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, workflow.StateBatchInput, view.State)
	assert.Len(t, view.Sites, 1)
	assert.Eventually(t, func() bool { return f.metrics.count(awspkg.MetricWorkflowsOpened) == 1 }, time.Second, 10*time.Millisecond)
}

func TestWorkflowService_OpenSurvivesSiteFailure(t *testing.T) {
	f := newFixture(t)
	f.catalog.sitesErr = apperrors.Unknown("ERP request failed", errors.New("timeout"))

	view, err := f.svc.Open(context.Background(), "user-1", workflow.Options{EquipmentID: "eq-1"})

	require.NoError(t, err)
	assert.Empty(t, view.Sites)
	assert.Equal(t, "ERP request failed", view.LastError)
}

func TestWorkflowService_OpenRequiresEquipment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Open(context.Background(), "user-1", workflow.Options{})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestWorkflowService_SessionsAreOwned(t *testing.T) {
	f := newFixture(t)
	view, err := f.svc.Open(context.Background(), "user-1", workflow.Options{EquipmentID: "eq-1"})
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), "user-2", view.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = f.svc.Get(context.Background(), "user-1", "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestWorkflowService_CloseDiscardsSession(t *testing.T) {
	f := newFixture(t)
	view, err := f.svc.Open(context.Background(), "user-1", workflow.Options{EquipmentID: "eq-1"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Close(context.Background(), "user-1", view.ID))
	require.NoError(t, f.svc.Close(context.Background(), "user-1", view.ID))

	_, err = f.svc.Get(context.Background(), "user-1", view.ID)
	assert.Error(t, err)
}

func TestWorkflowService_FailedActionReturnsKeptView(t *testing.T) {
	f := newFixture(t)
	view, err := f.svc.Open(context.Background(), "user-1", workflow.Options{EquipmentID: "eq-1"})
	require.NoError(t, err)

	got, err := f.svc.ValidateBatch(context.Background(), "user-1", view.ID, "")

	assert.EqualError(t, err, workflow.MsgBatchRequired)
	require.NotNil(t, got)
	assert.Equal(t, workflow.StateBatchInput, got.State)
}

func TestWorkflowService_ChangeItemNeedsAField(t *testing.T) {
	f := newFixture(t)
	id := f.openCreate(t)

	_, err := f.svc.ChangeItem(context.Background(), "user-1", id, 0, services.ItemPatch{})
	assert.EqualError(t, err, "Nothing to change")

	opts, err := f.svc.ItemOptions(context.Background(), "user-1", id, 0)
	require.NoError(t, err)
	assert.True(t, opts.QuantityKnown)
	assert.Equal(t, 5, opts.MaxQuantity)
}

func TestWorkflowService_SubmitIsIdempotent(t *testing.T) {
	f := newFixture(t)
	id := f.openCreate(t)
	f.batches.On("ValidateBatchUniqueness", mock.Anything, int64(1001)).Return(nil).Once()
	f.tx.On("CreateTransaction", mock.Anything, "eq-1", mock.AnythingOfType("models.CreatePayload")).
		Return(&models.TransactionRef{ID: "tx-1"}, nil).Once()
	f.sns.On("Publish", mock.Anything, mock.Anything, services.EventTransactionCreated, mock.Anything).Return(nil).Once()

	first, err := f.svc.Submit(context.Background(), "user-1", id, "restock", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", first.TransactionID)
	assert.False(t, first.Replayed)

	second, err := f.svc.Submit(context.Background(), "user-1", id, "restock", "key-1")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, "tx-1", second.TransactionID)

	f.tx.AssertNumberOfCalls(t, "CreateTransaction", 1)
	f.sns.AssertExpectations(t)
	assert.True(t, f.mr.Exists("idem:workflow:submit:user-1:"+id+":key-1"))

	// the session is gone after a successful submission
	_, err = f.svc.Get(context.Background(), "user-1", id)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestWorkflowService_IdempotencyKeyIsPerSession(t *testing.T) {
	f := newFixture(t)
	first := f.openCreate(t)
	second := f.openCreate(t)
	require.NotEqual(t, first, second)
	f.batches.On("ValidateBatchUniqueness", mock.Anything, int64(1001)).Return(nil).Twice()
	f.tx.On("CreateTransaction", mock.Anything, "eq-1", mock.Anything).
		Return(&models.TransactionRef{ID: "tx-A"}, nil).Once()
	f.tx.On("CreateTransaction", mock.Anything, "eq-1", mock.Anything).
		Return(&models.TransactionRef{ID: "tx-B"}, nil).Once()
	f.sns.On("Publish", mock.Anything, mock.Anything, services.EventTransactionCreated, mock.Anything).Return(nil).Twice()

	a, err := f.svc.Submit(context.Background(), "user-1", first, "", "k")
	require.NoError(t, err)
	b, err := f.svc.Submit(context.Background(), "user-1", second, "", "k")
	require.NoError(t, err)

	assert.Equal(t, first, a.SessionID)
	assert.Equal(t, "tx-A", a.TransactionID)
	assert.Equal(t, second, b.SessionID)
	assert.Equal(t, "tx-B", b.TransactionID)
	assert.False(t, b.Replayed)
	f.tx.AssertNumberOfCalls(t, "CreateTransaction", 2)

	_, err = f.svc.Get(context.Background(), "user-1", second)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestWorkflowService_SubmitFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	id := f.openCreate(t)
	f.batches.On("ValidateBatchUniqueness", mock.Anything, int64(1001)).Return(nil).Once()
	f.tx.On("CreateTransaction", mock.Anything, "eq-1", mock.Anything).
		Return(nil, apperrors.Unknown("ERP request failed", errors.New("502"))).Once()

	_, err := f.svc.Submit(context.Background(), "user-1", id, "", "key-2")

	require.Error(t, err)
	view, err := f.svc.Get(context.Background(), "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, workflow.StateScenarioHandling, view.State)
	assert.Equal(t, 2, view.TransactionItems[0].Quantity)
	assert.False(t, f.mr.Exists("idem:workflow:submit:user-1:"+id+":key-2"))
	f.sns.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Eventually(t, func() bool { return f.metrics.count(awspkg.MetricSubmissionsFailed) == 1 }, time.Second, 10*time.Millisecond)
}

func TestWorkflowService_AcceptPublishesEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.batches.On("ValidateEquipmentBatch", mock.Anything, "eq-1", int64(1002)).Return(&models.BatchValidationResult{
		Scenario: models.ScenarioIncomingValidation,
		Transaction: &models.TransactionSnapshot{ID: "tx-9", Items: []models.TransactionItemSnapshot{
			{ID: "ti-1", ItemTypeID: "oil", Quantity: 5},
		}},
	}, nil).Once()

	view, err := f.svc.Open(ctx, "user-1", workflow.Options{EquipmentID: "eq-1"})
	require.NoError(t, err)
	_, err = f.svc.ValidateBatch(ctx, "user-1", view.ID, "1002")
	require.NoError(t, err)
	notReceived := true
	_, err = f.svc.UpdateValidationItem(ctx, "user-1", view.ID, 0, workflow.ValidationItemPatch{ItemNotReceived: &notReceived})
	require.NoError(t, err)

	f.tx.On("ValidateTransaction", mock.Anything, "eq-1", mock.Anything).Return(nil).Once()
	f.sns.On("Publish", mock.Anything, "arn:aws:sns:us-east-1:000000000000:workflow", services.EventTransactionValidated,
		mock.MatchedBy(func(body []byte) bool {
			var evt map[string]interface{}
			return json.Unmarshal(body, &evt) == nil && evt["transactionId"] == "tx-9" && evt["batchNumber"] == "1002"
		})).Return(errors.New("sns down")).Once()

	res, err := f.svc.Accept(ctx, "user-1", view.ID, "")

	require.NoError(t, err, "publish failures are not fatal")
	assert.Equal(t, workflow.ActionValidated, res.Action)
	assert.Equal(t, "tx-9", res.TransactionID)
	f.sns.AssertExpectations(t)
	assert.Eventually(t, func() bool { return f.metrics.count(awspkg.MetricBatchesResolved) == 1 }, time.Second, 10*time.Millisecond)
}

func TestWorkflowService_IdempotencyStoreDownStillSubmits(t *testing.T) {
	f := newFixture(t)
	id := f.openCreate(t)
	f.mr.Close()
	f.batches.On("ValidateBatchUniqueness", mock.Anything, int64(1001)).Return(nil).Once()
	f.tx.On("CreateTransaction", mock.Anything, "eq-1", mock.Anything).Return(&models.TransactionRef{ID: "tx-3"}, nil).Once()
	f.sns.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	res, err := f.svc.Submit(context.Background(), "user-1", id, "", "key-3")

	require.NoError(t, err)
	assert.Equal(t, "tx-3", res.TransactionID)
}
