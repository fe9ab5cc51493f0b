package clients

import (
	"context"
	"net/http"

	"github.com/yashrajoria/equipment-workflow-service/models"
)

// TransactionClient is the HTTP implementation of the transaction
// create/validate collaborators.
type TransactionClient struct {
	erp *ERPClient
}

func NewTransactionClient(erp *ERPClient) *TransactionClient {
	return &TransactionClient{erp: erp}
}

// CreateTransaction posts a new warehouse-to-equipment transaction.
func (t *TransactionClient) CreateTransaction(ctx context.Context, equipmentID string, payload models.CreatePayload) (*models.TransactionRef, error) {
	var ref models.TransactionRef
	path := "/api/v1/equipment/" + segment(equipmentID) + "/transactions"
	if err := t.erp.Do(ctx, http.MethodPost, path, nil, payload, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// ValidateTransaction accepts (fully or partially) an incoming transaction.
func (t *TransactionClient) ValidateTransaction(ctx context.Context, equipmentID string, payload models.ValidationPayload) error {
	path := "/api/v1/equipment/" + segment(equipmentID) + "/transactions/" + segment(payload.TransactionID) + "/accept"
	return t.erp.Do(ctx, http.MethodPost, path, nil, payload, nil)
}
