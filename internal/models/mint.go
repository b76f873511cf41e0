package models

import (
	"time"
)

// MintRecord marks one completed (or no-op) mint run. At most one record may
// exist per calendar day; the unique day column is the idempotency anchor
// that prevents double-minting.
type MintRecord struct {
	MintID    string    `json:"mintId" db:"mintid"`
	Day       time.Time `json:"day" db:"day"`
	Ratio     string    `json:"gemsInTokenRatio" db:"ratio"` // tokens per gem, decimal string
	RatioQ    string    `json:"-" db:"ratioq"`
	CreatedAt time.Time `json:"createdAt" db:"createdat"`
}

// MintLogItem records, per consumed gem, which ledger leg paid it out.
type MintLogItem struct {
	GemID         string `db:"gemid"`
	OperationID   string `db:"operationid"`
	TransactionID string `db:"transactionid"`
	TokenAmount   string `db:"tokenamount"`
}

// MintUserResult summarizes one beneficiary's share of a mint run.
type MintUserResult struct {
	UserID string `json:"userId"`
	Gems   string `json:"gems"`
	Tokens string `json:"tokens"`
}
