package clients_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yashrajoria/equipment-workflow-service/auth"
	"github.com/yashrajoria/equipment-workflow-service/clients"
	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   []byte
}

func newServer(t *testing.T, status int, response string, rec *recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec != nil {
			rec.method = r.Method
			rec.path = r.URL.EscapedPath()
			rec.auth = r.Header.Get("Authorization")
			rec.body, _ = io.ReadAll(r.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidateEquipmentBatch_PathAndCallerToken(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusOK, `{"scenario":"not_found","message":"free"}`, rec)
	erp := clients.NewERPClient(srv.URL+"/", time.Second, auth.NewMemoryTokenStore("service-token"))
	batch := clients.NewBatchValidationClient(erp)

	ctx := auth.WithTokenStore(context.Background(), auth.NewMemoryTokenStore("user-token"))
	res, err := batch.ValidateEquipmentBatch(ctx, "eq-1", 1001)

	require.NoError(t, err)
	assert.Equal(t, models.ScenarioNotFound, res.Scenario)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/api/v1/batch-validation/equipment/eq-1/batch/1001", rec.path)
	assert.Equal(t, "Bearer user-token", rec.auth)
}

func TestValidateMaintenanceBatch_ServiceTokenFallback(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusOK, `{"data":{"scenario":"incoming_validation","transaction":{"id":"t1","items":[]}}}`, rec)
	erp := clients.NewERPClient(srv.URL, time.Second, auth.NewMemoryTokenStore("service-token"))

	res, err := clients.NewBatchValidationClient(erp).ValidateMaintenanceBatch(context.Background(), "eq-1", "m-9", 7)

	require.NoError(t, err)
	assert.Equal(t, models.ScenarioIncomingValidation, res.Scenario)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, "t1", res.Transaction.ID)
	assert.Equal(t, "/api/v1/batch-validation/equipment/eq-1/maintenance/m-9/batch/7", rec.path)
	assert.Equal(t, "Bearer service-token", rec.auth)
}

func TestValidateBatchUniqueness_Conflict(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusConflict, `{"message":"Batch number 5 already exists"}`, rec)
	erp := clients.NewERPClient(srv.URL, time.Second, nil)

	err := clients.NewBatchValidationClient(erp).ValidateBatchUniqueness(context.Background(), 5)

	require.Error(t, err)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "Batch number 5 already exists")
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/v1/batch-validation/batch/5/validate-uniqueness", rec.path)
	assert.Equal(t, "", rec.auth)
}

func TestDo_StatusMapping(t *testing.T) {
	cases := map[int]apperrors.Kind{
		http.StatusForbidden:           apperrors.KindPermission,
		http.StatusNotFound:            apperrors.KindNotFound,
		http.StatusInternalServerError: apperrors.KindUnknown,
	}
	for status, kind := range cases {
		srv := newServer(t, status, `{}`, nil)
		erp := clients.NewERPClient(srv.URL, time.Second, nil)
		_, err := clients.NewCatalogClient(erp).Warehouses(context.Background(), "s1")
		assert.Equal(t, kind, apperrors.KindOf(err), "status %d", status)
	}
}

func TestDo_TransportError(t *testing.T) {
	erp := clients.NewERPClient("http://127.0.0.1:1", 200*time.Millisecond, nil)
	_, err := clients.NewCatalogClient(erp).Sites(context.Background())
	assert.Equal(t, apperrors.KindUnknown, apperrors.KindOf(err))
}

func TestWarehouseItems_Decodes(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusOK, `[{"id":"r1","itemType":{"id":"x","name":"Oil Filter","measuringUnit":"pcs","itemCategory":{"name":"Filters"}},"quantity":3,"itemStatus":"IN_WAREHOUSE"}]`, rec)
	erp := clients.NewERPClient(srv.URL, time.Second, nil)

	rows, err := clients.NewCatalogClient(erp).WarehouseItems(context.Background(), "w 1")

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Filters", rows[0].ItemType.ItemCategory.Name)
	assert.Equal(t, "/api/v1/items/warehouse/w%201", rec.path)
}

func TestTransactionClient(t *testing.T) {
	rec := &recorded{}
	srv := newServer(t, http.StatusCreated, `{"id":"tx-9","status":"PENDING"}`, rec)
	erp := clients.NewERPClient(srv.URL, time.Second, nil)
	tc := clients.NewTransactionClient(erp)

	ref, err := tc.CreateTransaction(context.Background(), "eq-1", models.CreatePayload{
		BatchNumber: 1001,
		Items:       []models.CreateItemPayload{{ItemTypeID: "x", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-9", ref.ID)
	assert.Equal(t, "/api/v1/equipment/eq-1/transactions", rec.path)

	var sent models.CreatePayload
	require.NoError(t, json.Unmarshal(rec.body, &sent))
	assert.Equal(t, int64(1001), sent.BatchNumber)

	err = tc.ValidateTransaction(context.Background(), "eq-1", models.ValidationPayload{TransactionID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/equipment/eq-1/transactions/t1/accept", rec.path)
}
