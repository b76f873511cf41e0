package models

import (
	"time"
)

// BridgeExport is the outcome of moving tokens into the bridge pool for an
// external chain payout. The payment instruction travels as a pacs.008
// credit transfer to the settlement side.
type BridgeExport struct {
	OperationID string    `json:"operationId"`
	SenderID    string    `json:"senderId"`
	Beneficiary string    `json:"beneficiary"` // external chain address
	Network     string    `json:"network"`
	Amount      string    `json:"amount"`
	MessageXML  string    `json:"messageXml"`
	CreatedAt   time.Time `json:"createdAt"`
}
