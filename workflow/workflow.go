package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/logger"
	"github.com/yashrajoria/equipment-workflow-service/models"

	"go.uber.org/zap"
)

// State is the workflow-level state.
type State string

const (
	StateBatchInput       State = "batch_input"
	StateScenarioHandling State = "scenario_handling"
	StateClosed           State = "closed"
)

// Options is the equipment context a workflow is opened with.
type Options struct {
	EquipmentID              string                    `json:"equipmentId"`
	MaintenanceID            string                    `json:"maintenanceId,omitempty"`
	UseMaintenanceValidation bool                      `json:"useMaintenanceValidation"`
	TransactionPurpose       models.TransactionPurpose `json:"transactionPurpose,omitempty"`
	MaintenanceData          json.RawMessage           `json:"maintenanceData,omitempty"`
}

func (o Options) purpose() models.TransactionPurpose {
	if o.TransactionPurpose != "" {
		return o.TransactionPurpose
	}
	if o.UseMaintenanceValidation {
		return models.PurposeMaintenance
	}
	return models.PurposeConsumable
}

// Dependencies are the collaborators a workflow talks to.
type Dependencies struct {
	Batches      BatchValidator
	Catalog      CatalogReader
	Transactions TransactionHandler
	Now          func() time.Time
}

// Outcome records how a workflow was closed by a successful submission.
type Outcome struct {
	Action        string `json:"action"`
	TransactionID string `json:"transactionId,omitempty"`
}

const (
	ActionCreated   = "created"
	ActionValidated = "validated"
)

// Workflow is one batch-driven transaction session, the state a modal
// holds between opening and closing. All methods are safe for concurrent
// use; ERP calls run outside the lock and their results are applied only if
// no newer request of the same kind was issued meanwhile.
type Workflow struct {
	mu       sync.Mutex
	opts     Options
	deps     Dependencies
	resolver *BatchResolver

	state           State
	routing         Routing
	batchInput      string
	batchNumber     int64
	result          *models.BatchValidationResult
	validationItems []models.ValidationItem

	editor         *ItemEditor
	sites          []models.Site
	siteID         string
	warehouses     []models.Warehouse
	warehouseID    string
	warehouseItems []models.WarehouseItem

	batchGen     uint64
	siteGen      uint64
	warehouseGen uint64
	submitting   bool

	lastError string
	outcome   *Outcome
}

func New(opts Options, deps Dependencies) *Workflow {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	w := &Workflow{
		opts:     opts,
		deps:     deps,
		resolver: NewBatchResolver(deps.Batches),
		editor:   NewItemEditor(),
	}
	w.resetLocked()
	return w
}

// ResetForm returns the workflow to a fresh batch_input state. Calling it
// repeatedly is the same as calling it once. It is refused while a
// submission is in flight.
func (w *Workflow) ResetForm() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return errSubmitInProgress()
	}
	w.resetLocked()
	return nil
}

func (w *Workflow) resetLocked() {
	w.state = StateBatchInput
	w.routing = Routing{}
	w.batchInput = ""
	w.batchNumber = 0
	w.result = nil
	w.validationItems = nil
	w.siteID = ""
	w.warehouses = nil
	w.warehouseID = ""
	w.warehouseItems = nil
	w.editor.SetCatalog(nil)
	w.editor.Reset()
	w.lastError = ""
	w.outcome = nil
	w.batchGen++
	w.siteGen++
	w.warehouseGen++
}

// LoadSites fetches the site list shown by the create sub-view.
func (w *Workflow) LoadSites(ctx context.Context) error {
	sites, err := w.deps.Catalog.Sites(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		return w.failLocked(err)
	}
	w.sites = sites
	return nil
}

// ValidateBatch resolves the batch number and routes to a sub-view.
func (w *Workflow) ValidateBatch(ctx context.Context, input string) error {
	w.mu.Lock()
	if err := w.requireState(StateBatchInput); err != nil {
		w.mu.Unlock()
		return err
	}
	batchNumber, err := ParseBatchNumber(input)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.batchInput = input
	w.lastError = ""
	w.batchGen++
	gen := w.batchGen
	opts := w.opts
	w.mu.Unlock()

	result, err := w.resolver.Resolve(ctx, opts.EquipmentID, input, ResolveContext{
		UseMaintenanceValidation: opts.UseMaintenanceValidation,
		MaintenanceID:            opts.MaintenanceID,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.batchGen || w.state != StateBatchInput {
		return nil
	}
	if err != nil {
		return w.failLocked(err)
	}

	routing := Route(result)
	w.batchNumber = batchNumber
	w.result = result
	w.routing = routing
	w.state = StateScenarioHandling
	switch routing.SubState {
	case SubStateValidate:
		w.validationItems = ValidationItemsFrom(result.Transaction)
	case SubStateCreate:
		w.editor.Reset()
	}

	logger.Info(ctx, "batch resolved",
		zap.String("equipment_id", opts.EquipmentID),
		zap.Int64("batch_number", batchNumber),
		zap.String("scenario", string(result.Scenario)),
		zap.String("sub_state", string(routing.SubState)),
	)
	return nil
}

// ChangeBatch discards the validation result and returns to batch_input.
func (w *Workflow) ChangeBatch() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateClosed {
		return apperrors.Validation("Workflow is closed")
	}
	if w.submitting {
		return errSubmitInProgress()
	}
	w.state = StateBatchInput
	w.routing = Routing{}
	w.batchInput = ""
	w.batchNumber = 0
	w.result = nil
	w.validationItems = nil
	w.lastError = ""
	w.batchGen++
	return nil
}

// SelectSite clears the warehouse and catalog, then loads the site's warehouses.
func (w *Workflow) SelectSite(ctx context.Context, siteID string) error {
	w.mu.Lock()
	if err := w.requireSubState(SubStateCreate); err != nil {
		w.mu.Unlock()
		return err
	}
	w.siteGen++
	w.warehouseGen++
	gen := w.siteGen
	w.siteID = siteID
	w.warehouses = nil
	w.warehouseID = ""
	w.warehouseItems = nil
	w.editor.SetCatalog(nil)
	w.editor.Reset()
	w.lastError = ""
	w.mu.Unlock()

	if siteID == "" {
		return nil
	}
	warehouses, err := w.deps.Catalog.Warehouses(ctx, siteID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.siteGen {
		logger.Debug(ctx, "dropping stale warehouse list", zap.String("site_id", siteID))
		return nil
	}
	if err != nil {
		return w.failLocked(err)
	}
	w.warehouses = warehouses
	return nil
}

// SelectWarehouse reloads the stock catalog and resets the draft rows.
func (w *Workflow) SelectWarehouse(ctx context.Context, warehouseID string) error {
	w.mu.Lock()
	if err := w.requireSubState(SubStateCreate); err != nil {
		w.mu.Unlock()
		return err
	}
	w.warehouseGen++
	gen := w.warehouseGen
	w.warehouseID = warehouseID
	w.warehouseItems = nil
	w.editor.SetCatalog(nil)
	w.editor.Reset()
	w.lastError = ""
	w.mu.Unlock()

	if warehouseID == "" {
		return nil
	}
	rows, err := w.deps.Catalog.WarehouseItems(ctx, warehouseID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.warehouseGen {
		logger.Debug(ctx, "dropping stale warehouse items", zap.String("warehouse_id", warehouseID))
		return nil
	}
	if err != nil {
		return w.failLocked(err)
	}
	w.warehouseItems = rows
	w.editor.SetCatalog(BuildCatalog(rows))
	return nil
}

func (w *Workflow) AddItem() error {
	return w.edit(func(e *ItemEditor) error {
		e.AddItem()
		return nil
	})
}

func (w *Workflow) RemoveItem(i int) error {
	return w.edit(func(e *ItemEditor) error { return e.RemoveItem(i) })
}

func (w *Workflow) ChangeItem(i int, field, value string) error {
	return w.edit(func(e *ItemEditor) error { return e.ChangeItem(i, field, value) })
}

// ItemOptions is what the UI needs to render the picker of one row.
type ItemOptions struct {
	AvailableTypes []models.AvailableItemType `json:"availableTypes"`
	MaxQuantity    int                        `json:"maxQuantity"`
	QuantityKnown  bool                       `json:"quantityKnown"`
}

func (w *Workflow) ItemOptions(i int) (*ItemOptions, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireSubState(SubStateCreate); err != nil {
		return nil, err
	}
	types, err := w.editor.AvailableTypesFor(i)
	if err != nil {
		return nil, err
	}
	opts := &ItemOptions{AvailableTypes: types}
	if id := w.editor.items[i].ItemType.ID; id != "" {
		opts.MaxQuantity, opts.QuantityKnown = w.editor.MaxQuantityFor(id)
	}
	return opts, nil
}

func (w *Workflow) edit(fn func(e *ItemEditor) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireSubState(SubStateCreate); err != nil {
		return err
	}
	return fn(w.editor)
}

// UpdateValidationItem edits one acceptance row.
func (w *Workflow) UpdateValidationItem(i int, patch ValidationItemPatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireSubState(SubStateValidate); err != nil {
		return err
	}
	if i < 0 || i >= len(w.validationItems) {
		return apperrors.Validationf("Item %d does not exist", i+1)
	}
	patch.apply(&w.validationItems[i])
	return nil
}

// SubmitCreate builds the creation payload and hands it to the transaction
// handler. On failure every entered value is kept.
func (w *Workflow) SubmitCreate(ctx context.Context, description string) (*models.TransactionRef, error) {
	w.mu.Lock()
	if err := w.beginSubmit(SubStateCreate); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.warehouseID == "" {
		w.submitting = false
		w.mu.Unlock()
		return nil, apperrors.Validation("Please select a warehouse")
	}
	if err := w.editor.Validate(); err != nil {
		w.submitting = false
		w.mu.Unlock()
		return nil, err
	}
	payload := w.createPayloadLocked(description)
	equipmentID := w.opts.EquipmentID
	w.mu.Unlock()

	ref, err := w.submitCreate(ctx, equipmentID, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		return nil, w.failLocked(err)
	}
	w.outcome = &Outcome{Action: ActionCreated}
	if ref != nil {
		w.outcome.TransactionID = ref.ID
	}
	w.state = StateClosed
	return ref, nil
}

func (w *Workflow) submitCreate(ctx context.Context, equipmentID string, payload models.CreatePayload) (*models.TransactionRef, error) {
	if err := w.deps.Batches.ValidateBatchUniqueness(ctx, payload.BatchNumber); err != nil {
		if apperrors.Is(err, apperrors.KindConflict) {
			return nil, apperrors.Conflict("Batch number is already in use", err)
		}
		return nil, err
	}
	return w.deps.Transactions.CreateTransaction(ctx, equipmentID, payload)
}

func (w *Workflow) createPayloadLocked(description string) models.CreatePayload {
	items := w.editor.Items()
	lines := make([]models.CreateItemPayload, 0, len(items))
	for _, it := range items {
		lines = append(lines, models.CreateItemPayload{ItemTypeID: it.ItemType.ID, Quantity: it.Quantity})
	}
	return models.CreatePayload{
		BatchNumber:        w.batchNumber,
		SenderType:         models.PartyWarehouse,
		SenderID:           w.warehouseID,
		ReceiverType:       models.PartyEquipment,
		ReceiverID:         w.opts.EquipmentID,
		TransactionDate:    w.deps.Now().Format("2006-01-02"),
		Description:        description,
		TransactionPurpose: w.opts.purpose(),
		Items:              lines,
		MaintenanceData:    w.opts.MaintenanceData,
	}
}

// SubmitValidation builds the acceptance payload and hands it to the
// transaction handler.
func (w *Workflow) SubmitValidation(ctx context.Context) (*models.ValidationPayload, error) {
	w.mu.Lock()
	if err := w.beginSubmit(SubStateValidate); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	payload, err := BuildValidationPayload(w.result.Transaction.ID, w.validationItems, w.opts.MaintenanceData, w.opts.purpose())
	if err != nil {
		w.submitting = false
		w.mu.Unlock()
		return nil, err
	}
	equipmentID := w.opts.EquipmentID
	w.mu.Unlock()

	err = w.deps.Transactions.ValidateTransaction(ctx, equipmentID, *payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		return nil, w.failLocked(err)
	}
	w.outcome = &Outcome{Action: ActionValidated, TransactionID: payload.TransactionID}
	w.state = StateClosed
	return payload, nil
}

// Close ends the workflow without submitting.
func (w *Workflow) Close() {
	w.mu.Lock()
	w.state = StateClosed
	w.mu.Unlock()
}

func (w *Workflow) beginSubmit(sub SubState) error {
	if err := w.requireSubState(sub); err != nil {
		return err
	}
	if w.submitting {
		return errSubmitInProgress()
	}
	w.submitting = true
	w.lastError = ""
	return nil
}

func (w *Workflow) requireState(s State) error {
	if w.state == StateClosed {
		return apperrors.Validation("Workflow is closed")
	}
	if w.state != s {
		return apperrors.Validation("Change the batch number first")
	}
	return nil
}

func (w *Workflow) requireSubState(sub SubState) error {
	if err := w.requireState(StateScenarioHandling); err != nil {
		if w.state == StateBatchInput {
			return apperrors.Validation("Validate a batch number first")
		}
		return err
	}
	if w.routing.SubState != sub {
		return apperrors.Validationf("Action not available while in %s view", w.routing.SubState)
	}
	return nil
}

func errSubmitInProgress() error {
	return apperrors.Validation("A submission is already in progress")
}

func (w *Workflow) failLocked(err error) error {
	w.lastError = apperrors.As(err).Message
	return err
}
