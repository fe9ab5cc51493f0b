package workflow

import (
	"context"

	"github.com/yashrajoria/equipment-workflow-service/models"
)

// BatchValidator looks batch numbers up on the ERP backend.
type BatchValidator interface {
	ValidateEquipmentBatch(ctx context.Context, equipmentID string, batchNumber int64) (*models.BatchValidationResult, error)
	ValidateMaintenanceBatch(ctx context.Context, equipmentID, maintenanceID string, batchNumber int64) (*models.BatchValidationResult, error)
	ValidateBatchUniqueness(ctx context.Context, batchNumber int64) error
}

// CatalogReader supplies the site -> warehouse -> stock cascade.
type CatalogReader interface {
	Sites(ctx context.Context) ([]models.Site, error)
	Warehouses(ctx context.Context, siteID string) ([]models.Warehouse, error)
	WarehouseItems(ctx context.Context, warehouseID string) ([]models.WarehouseItem, error)
}

// TransactionHandler persists the outcome of the workflow. The workflow does
// not know how; the default implementation is clients.TransactionClient.
type TransactionHandler interface {
	CreateTransaction(ctx context.Context, equipmentID string, payload models.CreatePayload) (*models.TransactionRef, error)
	ValidateTransaction(ctx context.Context, equipmentID string, payload models.ValidationPayload) error
}
