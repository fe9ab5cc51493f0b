package models

// Scenario is the server-determined disposition of a batch number.
type Scenario string

const (
	ScenarioNotFound           Scenario = "not_found"
	ScenarioIncomingValidation Scenario = "incoming_validation"
	ScenarioAlreadyValidated   Scenario = "already_validated"
	ScenarioUsedByOtherEntity  Scenario = "used_by_other_entity"
	ScenarioValidationError    Scenario = "validation_error"
)

// BatchValidationResult is returned by the batch-validation endpoints.
type BatchValidationResult struct {
	Scenario    Scenario             `json:"scenario"`
	Message     string               `json:"message"`
	Transaction *TransactionSnapshot `json:"transaction,omitempty"`
}

// TransactionSnapshot is a read-only projection of a server-side transaction.
type TransactionSnapshot struct {
	ID    string                    `json:"id"`
	Items []TransactionItemSnapshot `json:"items"`
}

type TransactionItemSnapshot struct {
	ID            string `json:"id"`
	ItemTypeID    string `json:"itemTypeId"`
	ItemTypeName  string `json:"itemTypeName"`
	MeasuringUnit string `json:"measuringUnit"`
	Quantity      int    `json:"quantity"` // expected
}
