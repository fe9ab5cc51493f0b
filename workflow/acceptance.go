package workflow

import (
	"encoding/json"
	"strconv"
	"strings"

	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/models"
)

// BuildValidationPayload turns the acceptance rows into the payload for the
// validation collaborator. The first incomplete row aborts with a message
// naming its 1-based position.
func BuildValidationPayload(
	transactionID string,
	items []models.ValidationItem,
	maintenanceData json.RawMessage,
	purpose models.TransactionPurpose,
) (*models.ValidationPayload, error) {
	if transactionID == "" {
		return nil, apperrors.Validation("No transaction to validate")
	}

	out := make([]models.ValidationItemPayload, 0, len(items))
	for i, item := range items {
		if item.ItemNotReceived {
			out = append(out, models.ValidationItemPayload{
				TransactionItemID: item.ID,
				ReceivedQuantity:  0,
				ItemNotReceived:   true,
			})
			continue
		}

		raw := strings.TrimSpace(item.ReceivedQuantity)
		if raw == "" {
			return nil, apperrors.Validationf("Please enter received quantity for item %d or mark it as not received", i+1)
		}
		qty, err := strconv.Atoi(raw)
		if err != nil || qty <= 0 {
			return nil, apperrors.Validationf("Received quantity for item %d must be a positive whole number", i+1)
		}
		out = append(out, models.ValidationItemPayload{
			TransactionItemID: item.ID,
			ReceivedQuantity:  qty,
			ItemNotReceived:   false,
		})
	}

	return &models.ValidationPayload{
		TransactionID:      transactionID,
		ValidationItems:    out,
		MaintenanceData:    maintenanceData,
		TransactionPurpose: purpose,
	}, nil
}

// ValidationItemPatch is a partial edit of one acceptance row.
type ValidationItemPatch struct {
	ReceivedQuantity *string `json:"receivedQuantity"`
	ItemNotReceived  *bool   `json:"itemNotReceived"`
}

func (p ValidationItemPatch) apply(item *models.ValidationItem) {
	if p.ReceivedQuantity != nil {
		item.ReceivedQuantity = *p.ReceivedQuantity
	}
	if p.ItemNotReceived != nil {
		item.ItemNotReceived = *p.ItemNotReceived
	}
}
