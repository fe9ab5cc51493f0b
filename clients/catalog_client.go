package clients

import (
	"context"
	"net/http"

	"github.com/yashrajoria/equipment-workflow-service/models"
)

// CatalogClient reads sites, warehouses and warehouse stock.
type CatalogClient struct {
	erp *ERPClient
}

func NewCatalogClient(erp *ERPClient) *CatalogClient {
	return &CatalogClient{erp: erp}
}

func (c *CatalogClient) Sites(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site
	if err := c.erp.Do(ctx, http.MethodGet, "/api/v1/site", nil, nil, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

func (c *CatalogClient) Warehouses(ctx context.Context, siteID string) ([]models.Warehouse, error) {
	var warehouses []models.Warehouse
	if err := c.erp.Do(ctx, http.MethodGet, "/api/v1/site/"+segment(siteID)+"/warehouses", nil, nil, &warehouses); err != nil {
		return nil, err
	}
	return warehouses, nil
}

func (c *CatalogClient) WarehouseItems(ctx context.Context, warehouseID string) ([]models.WarehouseItem, error) {
	var items []models.WarehouseItem
	if err := c.erp.Do(ctx, http.MethodGet, "/api/v1/items/warehouse/"+segment(warehouseID), nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
