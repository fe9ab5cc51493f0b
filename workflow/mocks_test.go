package workflow_test

import (
	"context"

	"github.com/yashrajoria/equipment-workflow-service/models"

	"github.com/stretchr/testify/mock"
)

// ---- mock batch validator ----

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

// ---- fake catalog ----

type fakeCatalog struct {
	sites      []models.Site
	warehouses map[string][]models.Warehouse
	items      map[string][]models.WarehouseItem
	err        error
	// gate, when set, blocks WarehouseItems for that warehouse until closed.
	gate    map[string]chan struct{}
	entered chan string
}

func (f *fakeCatalog) Sites(context.Context) ([]models.Site, error) {
	return f.sites, f.err
}

func (f *fakeCatalog) Warehouses(_ context.Context, siteID string) ([]models.Warehouse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.warehouses[siteID], nil
}

func (f *fakeCatalog) WarehouseItems(_ context.Context, warehouseID string) ([]models.WarehouseItem, error) {
	if ch, ok := f.gate[warehouseID]; ok {
		if f.entered != nil {
			f.entered <- warehouseID
		}
		<-ch
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items[warehouseID], nil
}

// ---- mock transaction handler ----

type mockTransactions struct{ mock.Mock }

func (m *mockTransactions) CreateTransaction(ctx context.Context, equipmentID string, payload models.CreatePayload) (*models.TransactionRef, error) {
	args := m.Called(ctx, equipmentID, payload)
	ref, _ := args.Get(0).(*models.TransactionRef)
	return ref, args.Error(1)
}

func (m *mockTransactions) ValidateTransaction(ctx context.Context, equipmentID string, payload models.ValidationPayload) error {
	return m.Called(ctx, equipmentID, payload).Error(0)
}

// ---- fixtures ----

func stockRow(id, typeID, name string, qty int, status string) models.WarehouseItem {
	return models.WarehouseItem{
		ID:         id,
		ItemType:   models.ItemType{ID: typeID, Name: name, MeasuringUnit: "pcs", ItemCategory: &models.ItemCategory{Name: "Consumables"}},
		Quantity:   qty,
		ItemStatus: status,
	}
}

func defaultCatalog() *fakeCatalog {
	return &fakeCatalog{
		sites: []models.Site{{ID: "s1", Name: "North"}, {ID: "s2", Name: "South"}},
		warehouses: map[string][]models.Warehouse{
			"s1": {{ID: "w1", Name: "Main"}},
			"s2": {{ID: "w2", Name: "Annex"}},
		},
		items: map[string][]models.WarehouseItem{
			"w1": {
				stockRow("r1", "oil", "Oil Filter", 3, models.ItemStatusInWarehouse),
				stockRow("r2", "oil", "Oil Filter", 2, models.ItemStatusInWarehouse),
				stockRow("r3", "belt", "Drive Belt", 4, models.ItemStatusInWarehouse),
			},
			"w2": {
				stockRow("r4", "grease", "Grease", 10, models.ItemStatusInWarehouse),
			},
		},
	}
}
