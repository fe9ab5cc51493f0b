package clients

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/yashrajoria/equipment-workflow-service/models"
)

// BatchValidationClient calls the batch-validation endpoints.
type BatchValidationClient struct {
	erp *ERPClient
}

func NewBatchValidationClient(erp *ERPClient) *BatchValidationClient {
	return &BatchValidationClient{erp: erp}
}

// ValidateEquipmentBatch performs the general equipment-batch lookup.
func (b *BatchValidationClient) ValidateEquipmentBatch(ctx context.Context, equipmentID string, batchNumber int64) (*models.BatchValidationResult, error) {
	path := fmt.Sprintf("/api/v1/batch-validation/equipment/%s/batch/%d", segment(equipmentID), batchNumber)

	var result models.BatchValidationResult
	if err := b.erp.Do(ctx, http.MethodGet, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ValidateMaintenanceBatch performs the maintenance-scoped lookup.
func (b *BatchValidationClient) ValidateMaintenanceBatch(ctx context.Context, equipmentID, maintenanceID string, batchNumber int64) (*models.BatchValidationResult, error) {
	path := fmt.Sprintf("/api/v1/batch-validation/equipment/%s/maintenance/%s/batch/%d",
		segment(equipmentID), segment(maintenanceID), batchNumber)

	var result models.BatchValidationResult
	if err := b.erp.Do(ctx, http.MethodGet, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ValidateBatchUniqueness returns a ConflictError when the batch is taken.
func (b *BatchValidationClient) ValidateBatchUniqueness(ctx context.Context, batchNumber int64) error {
	path := "/api/v1/batch-validation/batch/" + strconv.FormatInt(batchNumber, 10) + "/validate-uniqueness"
	return b.erp.Do(ctx, http.MethodPost, path, nil, nil, nil)
}
