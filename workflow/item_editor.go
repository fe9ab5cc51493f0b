package workflow

import (
	"strconv"
	"strings"

	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/models"
)

// Editable draft fields.
const (
	FieldItemTypeID = "itemTypeId"
	FieldQuantity   = "quantity"
)

// unknownTypeMaxQuantity is reported for item types missing from the
// catalog. It is not a stock number; callers must check the known flag.
const unknownTypeMaxQuantity = 1

// ItemEditor holds the draft rows of a transaction being created together
// with the stock catalog of the selected warehouse. It is not safe for
// concurrent use; Workflow serialises access.
type ItemEditor struct {
	items   []models.DraftItem
	catalog []models.AvailableItemType
}

func NewItemEditor() *ItemEditor {
	e := &ItemEditor{}
	e.Reset()
	return e
}

// Reset leaves exactly one empty row.
func (e *ItemEditor) Reset() {
	e.items = []models.DraftItem{{}}
}

func (e *ItemEditor) SetCatalog(catalog []models.AvailableItemType) {
	e.catalog = catalog
}

func (e *ItemEditor) Items() []models.DraftItem {
	return append([]models.DraftItem(nil), e.items...)
}

func (e *ItemEditor) Catalog() []models.AvailableItemType {
	return append([]models.AvailableItemType(nil), e.catalog...)
}

func (e *ItemEditor) AddItem() {
	e.items = append(e.items, models.DraftItem{})
}

// RemoveItem drops row i unless it is the last one left.
func (e *ItemEditor) RemoveItem(i int) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	if len(e.items) <= 1 {
		return nil
	}
	e.items = append(e.items[:i], e.items[i+1:]...)
	return nil
}

// ChangeItem updates one field of row i.
func (e *ItemEditor) ChangeItem(i int, field, value string) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	switch field {
	case FieldItemTypeID:
		return e.changeItemType(i, strings.TrimSpace(value))
	case FieldQuantity:
		return e.changeQuantity(i, strings.TrimSpace(value))
	default:
		return apperrors.Validationf("Unknown item field %q", field)
	}
}

func (e *ItemEditor) changeItemType(i int, id string) error {
	if id != "" {
		for j, other := range e.items {
			if j != i && other.ItemType.ID == id {
				return apperrors.Validationf("This item type is already selected in item %d", j+1)
			}
		}
	}
	if e.items[i].ItemType.ID != id {
		e.items[i] = models.DraftItem{ItemType: models.ItemTypeRef{ID: id}}
	}
	return nil
}

func (e *ItemEditor) changeQuantity(i int, value string) error {
	if value == "" {
		e.items[i].Quantity = 0
		return nil
	}
	typeID := e.items[i].ItemType.ID
	if typeID == "" {
		return apperrors.Validationf("Please select an item type for item %d before entering a quantity", i+1)
	}
	max, known := e.MaxQuantityFor(typeID)
	if !known {
		return apperrors.Validationf("Item %d is not available in the selected warehouse", i+1)
	}
	qty, err := strconv.Atoi(value)
	if err != nil || qty <= 0 {
		return apperrors.Validationf("Quantity for item %d must be a positive whole number", i+1)
	}
	if qty > max {
		return apperrors.Validationf("Quantity for item %d exceeds available stock (%d)", i+1, max)
	}
	e.items[i].Quantity = qty
	return nil
}

// AvailableTypesFor returns the catalog minus types chosen in other rows.
func (e *ItemEditor) AvailableTypesFor(i int) ([]models.AvailableItemType, error) {
	if err := e.checkIndex(i); err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(e.items))
	for j, it := range e.items {
		if j != i && it.ItemType.ID != "" {
			taken[it.ItemType.ID] = struct{}{}
		}
	}
	out := make([]models.AvailableItemType, 0, len(e.catalog))
	for _, t := range e.catalog {
		if _, ok := taken[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// MaxQuantityFor reports the available quantity of an item type. Unknown
// types yield (1, false) and must not accept quantity input.
func (e *ItemEditor) MaxQuantityFor(itemTypeID string) (int, bool) {
	for _, t := range e.catalog {
		if t.ID == itemTypeID {
			return t.AvailableQuantity, true
		}
	}
	return unknownTypeMaxQuantity, false
}

// Validate is the pre-submit check of every row.
func (e *ItemEditor) Validate() error {
	if len(e.items) == 0 {
		return apperrors.Validation("Please add at least one item")
	}
	for i, it := range e.items {
		n := i + 1
		if it.ItemType.ID == "" {
			return apperrors.Validationf("Please select an item type for item %d", n)
		}
		if it.Quantity <= 0 {
			return apperrors.Validationf("Please enter a valid quantity for item %d", n)
		}
		max, known := e.MaxQuantityFor(it.ItemType.ID)
		if !known {
			return apperrors.Validationf("Item %d is not available in the selected warehouse", n)
		}
		if it.Quantity > max {
			return apperrors.Validationf("Quantity for item %d exceeds available stock (%d)", n, max)
		}
	}
	return nil
}

func (e *ItemEditor) checkIndex(i int) error {
	if i < 0 || i >= len(e.items) {
		return apperrors.Validationf("Item %d does not exist", i+1)
	}
	return nil
}

// BuildCatalog aggregates eligible stock rows per item type, in the order
// each type first appears.
func BuildCatalog(rows []models.WarehouseItem) []models.AvailableItemType {
	index := make(map[string]int)
	catalog := make([]models.AvailableItemType, 0)
	for _, row := range rows {
		if row.ItemStatus != models.ItemStatusInWarehouse || row.Quantity <= 0 || row.ItemType.ID == "" {
			continue
		}
		if pos, ok := index[row.ItemType.ID]; ok {
			catalog[pos].AvailableQuantity += row.Quantity
			continue
		}
		category := ""
		if row.ItemType.ItemCategory != nil {
			category = row.ItemType.ItemCategory.Name
		}
		index[row.ItemType.ID] = len(catalog)
		catalog = append(catalog, models.AvailableItemType{
			ID:                row.ItemType.ID,
			Name:              row.ItemType.Name,
			MeasuringUnit:     row.ItemType.MeasuringUnit,
			AvailableQuantity: row.Quantity,
			Category:          category,
		})
	}
	return catalog
}
