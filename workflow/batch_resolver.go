package workflow

import (
	"context"
	"strconv"
	"strings"

	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/logger"
	"github.com/yashrajoria/equipment-workflow-service/models"

	"go.uber.org/zap"
)

const (
	MsgBatchRequired       = "Please enter a batch number"
	MsgBatchInvalid        = "Batch number must be a positive integer"
	MsgMaintenanceRequired = "A maintenance record is required for maintenance batch validation"
	MsgPermissionDenied    = "You don't have permission to validate batch numbers"
	MsgValidationFailed    = "Failed to validate batch number. Please try again."
)

// ResolveContext selects between the two lookup modes.
type ResolveContext struct {
	UseMaintenanceValidation bool
	MaintenanceID            string
}

// BatchResolver classifies a batch number into a scenario. The server is
// authoritative; the resolver only validates input and routes.
type BatchResolver struct {
	validator BatchValidator
}

func NewBatchResolver(validator BatchValidator) *BatchResolver {
	return &BatchResolver{validator: validator}
}

// ParseBatchNumber accepts only non-empty positive integers.
func ParseBatchNumber(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, apperrors.Validation(MsgBatchRequired)
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil || n <= 0 {
		return 0, apperrors.Validation(MsgBatchInvalid)
	}
	return n, nil
}

// Resolve validates the input and calls exactly one lookup endpoint.
func (r *BatchResolver) Resolve(ctx context.Context, equipmentID, batchNumberInput string, rc ResolveContext) (*models.BatchValidationResult, error) {
	batchNumber, err := ParseBatchNumber(batchNumberInput)
	if err != nil {
		return nil, err
	}
	if rc.UseMaintenanceValidation && strings.TrimSpace(rc.MaintenanceID) == "" {
		return nil, apperrors.Validation(MsgMaintenanceRequired)
	}

	var result *models.BatchValidationResult
	if rc.UseMaintenanceValidation {
		result, err = r.validator.ValidateMaintenanceBatch(ctx, equipmentID, rc.MaintenanceID, batchNumber)
	} else {
		result, err = r.validator.ValidateEquipmentBatch(ctx, equipmentID, batchNumber)
	}
	if err != nil {
		logger.Warn(ctx, "batch validation failed",
			zap.String("equipment_id", equipmentID),
			zap.Int64("batch_number", batchNumber),
			zap.Error(err),
		)
		if apperrors.Is(err, apperrors.KindPermission) {
			return nil, apperrors.Permission(MsgPermissionDenied, err)
		}
		return nil, apperrors.Unknown(MsgValidationFailed, err)
	}
	if result == nil {
		return nil, apperrors.Unknown(MsgValidationFailed, nil)
	}
	return result, nil
}

// SubState is the sub-view shown while handling a scenario.
type SubState string

const (
	SubStateNone     SubState = ""
	SubStateCreate   SubState = "create"
	SubStateValidate SubState = "validate"
	SubStateBlocked  SubState = "blocked"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Routing is what a scenario dictates for the UI.
type Routing struct {
	SubState SubState `json:"subState"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Route maps a result onto a sub-view. Terminal scenarios only allow
// changing the batch; unrecognised ones render as a warning.
func Route(result *models.BatchValidationResult) Routing {
	if result == nil {
		return Routing{SubState: SubStateBlocked, Severity: SeverityWarning}
	}
	switch result.Scenario {
	case models.ScenarioNotFound:
		return Routing{SubState: SubStateCreate, Severity: SeverityInfo, Message: result.Message}
	case models.ScenarioIncomingValidation:
		if result.Transaction == nil {
			return Routing{SubState: SubStateBlocked, Severity: SeverityWarning, Message: result.Message}
		}
		return Routing{SubState: SubStateValidate, Severity: SeverityInfo, Message: result.Message}
	case models.ScenarioAlreadyValidated, models.ScenarioUsedByOtherEntity:
		return Routing{SubState: SubStateBlocked, Severity: SeverityError, Message: result.Message}
	default:
		return Routing{SubState: SubStateBlocked, Severity: SeverityWarning, Message: result.Message}
	}
}

// ValidationItemsFrom seeds the acceptance rows from the expected items.
func ValidationItemsFrom(tx *models.TransactionSnapshot) []models.ValidationItem {
	if tx == nil {
		return nil
	}
	items := make([]models.ValidationItem, 0, len(tx.Items))
	for _, it := range tx.Items {
		items = append(items, models.ValidationItem{
			ID:               it.ID,
			ItemTypeID:       it.ItemTypeID,
			ItemTypeName:     it.ItemTypeName,
			MeasuringUnit:    it.MeasuringUnit,
			ExpectedQuantity: it.Quantity,
			ReceivedQuantity: "",
			ItemNotReceived:  false,
		})
	}
	return items
}
