package models

import "encoding/json"

type TransactionPurpose string

const (
	PurposeConsumable  TransactionPurpose = "CONSUMABLE"
	PurposeMaintenance TransactionPurpose = "MAINTENANCE"
)

const (
	PartyWarehouse = "WAREHOUSE"
	PartyEquipment = "EQUIPMENT"
)

// ItemTypeRef is the nested type reference held by a draft row.
type ItemTypeRef struct {
	ID string `json:"id"`
}

// DraftItem is a user-composed request line for a transaction not yet created.
type DraftItem struct {
	ItemType ItemTypeRef `json:"itemType"`
	Quantity int         `json:"quantity"`
}

// ValidationItem is an expected line being reconciled against what arrived.
// ReceivedQuantity keeps the raw user input; it is parsed on submit.
type ValidationItem struct {
	ID               string `json:"id"`
	ItemTypeID       string `json:"itemTypeId"`
	ItemTypeName     string `json:"itemTypeName"`
	MeasuringUnit    string `json:"measuringUnit"`
	ExpectedQuantity int    `json:"expectedQuantity"`
	ReceivedQuantity string `json:"receivedQuantity"`
	ItemNotReceived  bool   `json:"itemNotReceived"`
}

type ValidationItemPayload struct {
	TransactionItemID string `json:"transactionItemId"`
	ReceivedQuantity  int    `json:"receivedQuantity"`
	ItemNotReceived   bool   `json:"itemNotReceived"`
}

// ValidationPayload is handed to the transaction validation collaborator.
type ValidationPayload struct {
	TransactionID      string                  `json:"transactionId"`
	ValidationItems    []ValidationItemPayload `json:"validationItems"`
	MaintenanceData    json.RawMessage         `json:"maintenanceData,omitempty"`
	TransactionPurpose TransactionPurpose      `json:"transactionPurpose"`
}

type CreateItemPayload struct {
	ItemTypeID string `json:"itemTypeId"`
	Quantity   int    `json:"quantity"`
}

// CreatePayload is handed to the transaction creation collaborator.
type CreatePayload struct {
	BatchNumber        int64               `json:"batchNumber"`
	SenderType         string              `json:"senderType"`
	SenderID           string              `json:"senderId"`
	ReceiverType       string              `json:"receiverType"`
	ReceiverID         string              `json:"receiverId"`
	TransactionDate    string              `json:"transactionDate"`
	Description        string              `json:"description,omitempty"`
	TransactionPurpose TransactionPurpose  `json:"transactionPurpose"`
	Items              []CreateItemPayload `json:"items"`
	MaintenanceData    json.RawMessage     `json:"maintenanceData,omitempty"`
}

// TransactionRef identifies a transaction created upstream.
type TransactionRef struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}
