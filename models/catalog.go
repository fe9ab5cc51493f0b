package models

// ItemStatusInWarehouse marks stock rows that can be drawn from.
const ItemStatusInWarehouse = "IN_WAREHOUSE"

type Site struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Warehouse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ItemCategory struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type ItemType struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	MeasuringUnit string        `json:"measuringUnit"`
	ItemCategory  *ItemCategory `json:"itemCategory,omitempty"`
}

// WarehouseItem is one stock row of GET /api/v1/items/warehouse/{id}.
type WarehouseItem struct {
	ID         string   `json:"id"`
	ItemType   ItemType `json:"itemType"`
	Quantity   int      `json:"quantity"`
	ItemStatus string   `json:"itemStatus"`
}

// AvailableItemType aggregates eligible stock rows of one item type.
type AvailableItemType struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	MeasuringUnit     string `json:"measuringUnit"`
	AvailableQuantity int    `json:"availableQuantity"`
	Category          string `json:"category"`
}
