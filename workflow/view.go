package workflow

import (
	"encoding/json"

	"github.com/yashrajoria/equipment-workflow-service/models"
)

// View is an immutable snapshot of a workflow for rendering.
type View struct {
	EquipmentID              string                        `json:"equipmentId"`
	MaintenanceID            string                        `json:"maintenanceId,omitempty"`
	UseMaintenanceValidation bool                          `json:"useMaintenanceValidation"`
	TransactionPurpose       models.TransactionPurpose     `json:"transactionPurpose"`
	MaintenanceData          json.RawMessage               `json:"maintenanceData,omitempty"`
	State                    State                         `json:"state"`
	SubState                 SubState                      `json:"subState,omitempty"`
	Severity                 Severity                      `json:"severity,omitempty"`
	Message                  string                        `json:"message,omitempty"`
	BatchNumber              string                        `json:"batchNumber"`
	Result                   *models.BatchValidationResult `json:"result,omitempty"`
	ValidationItems          []models.ValidationItem       `json:"validationItems"`
	Sites                    []models.Site                 `json:"sites"`
	SelectedSite             string                        `json:"selectedSite"`
	Warehouses               []models.Warehouse            `json:"warehouses"`
	SelectedWarehouse        string                        `json:"selectedWarehouse"`
	WarehouseItems           []models.WarehouseItem        `json:"warehouseItems"`
	Catalog                  []models.AvailableItemType    `json:"catalog"`
	TransactionItems         []models.DraftItem            `json:"transactionItems"`
	Submitting               bool                          `json:"submitting"`
	LastError                string                        `json:"lastError,omitempty"`
	Outcome                  *Outcome                      `json:"outcome,omitempty"`
}

// View returns a copy of the current state.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	return View{
		EquipmentID:              w.opts.EquipmentID,
		MaintenanceID:            w.opts.MaintenanceID,
		UseMaintenanceValidation: w.opts.UseMaintenanceValidation,
		TransactionPurpose:       w.opts.purpose(),
		MaintenanceData:          w.opts.MaintenanceData,
		State:                    w.state,
		SubState:                 w.routing.SubState,
		Severity:                 w.routing.Severity,
		Message:                  w.routing.Message,
		BatchNumber:              w.batchInput,
		Result:                   w.result,
		ValidationItems:          append([]models.ValidationItem(nil), w.validationItems...),
		Sites:                    append([]models.Site(nil), w.sites...),
		SelectedSite:             w.siteID,
		Warehouses:               append([]models.Warehouse(nil), w.warehouses...),
		SelectedWarehouse:        w.warehouseID,
		WarehouseItems:           append([]models.WarehouseItem(nil), w.warehouseItems...),
		Catalog:                  w.editor.Catalog(),
		TransactionItems:         w.editor.Items(),
		Submitting:               w.submitting,
		LastError:                w.lastError,
		Outcome:                  w.outcome,
	}
}

// State returns the workflow-level state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Options returns the equipment context the workflow was opened with.
func (w *Workflow) Options() Options {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opts
}
