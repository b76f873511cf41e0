package models

import (
	"time"
)

// Transaction-type vocabulary for ledger entries. The transfer types name
// the logical movement; the action names the leg within it.
const (
	TxTypeTransfer   = "transferSenderToRecipient"
	TxTypeInviterFee = "transferSenderToInviter"
	TxTypePoolFee    = "transferSenderToPoolWallet"
	TxTypePeerFee    = "transferSenderToPeerWallet"
	TxTypeBurnFee    = "transferSenderToBurnWallet"
	TxTypeMint       = "transferMintAccountToRecipient"
	TxTypeBridgeOut  = "transferSenderToBridgePool"

	ActionDeduct     = "DEDUCT"
	ActionCredit     = "CREDIT"
	ActionPoolFee    = "POOL_FEE"
	ActionPeerFee    = "PEER_FEE"
	ActionBurnFee    = "BURN_FEE"
	ActionInviterFee = "INVITER_FEE"
	ActionMint       = "MINT"
	ActionBridge     = "BRIDGE_OUT"
)

// LedgerEntry is one signed leg of a wallet operation. Entries are
// append-only; the ordered sum of an account's entries defines its balance.
type LedgerEntry struct {
	Token       string    `json:"token" db:"token"` // unique leg id
	OperationID string    `json:"operationId" db:"operationid"`
	UserID      string    `json:"userId" db:"userid"` // account the delta applies to
	FromID      string    `json:"fromId" db:"fromid"` // counterparty
	Amount      string    `json:"amount" db:"amount"` // signed decimal string
	AmountQ     string    `json:"-" db:"amountq"`
	Type        string    `json:"type" db:"transactiontype"`
	Action      string    `json:"action" db:"transferaction"`
	Message     string    `json:"message,omitempty" db:"message"`
	CreatedAt   time.Time `json:"createdAt" db:"createdat"`
}

// WalletBalance is the materialized balance cache for one account. It is
// derivable by replaying the account's ledger entries and must always equal
// that replay.
type WalletBalance struct {
	UserID     string    `json:"userId" db:"userid"`
	Liquidity  string    `json:"liquidity" db:"liquidity"` // decimal string
	LiquidityQ string    `json:"-" db:"liquiditq"`
	Version    int       `json:"-" db:"version"` // optimistic locking
	UpdatedAt  time.Time `json:"updatedAt" db:"updatedat"`
}

// TransferReceipt is returned to the caller after a committed transfer.
type TransferReceipt struct {
	OperationID   string    `json:"operationId"`
	SenderID      string    `json:"senderId"`
	RecipientID   string    `json:"recipientId"`
	TokensSent    string    `json:"tokensSent"`
	TokensDebited string    `json:"tokensSubstractedFromWallet"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TransactionFilter narrows ListTransactions results.
type TransactionFilter struct {
	Type      string     // "transfer", "fee" or "mint"
	Direction string     // "credit" or "debit"
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
