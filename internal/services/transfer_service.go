package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/peer-network/peer-backend-sub001/internal/config"
	"github.com/peer-network/peer-backend-sub001/internal/models"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

// feeRates holds the parsed fee policy.
type feeRates struct {
	pool    token.Amount
	peer    token.Amount
	burn    token.Amount
	inviter token.Amount
}

// TransferService moves tokens between user wallets, collecting protocol
// fees into the reserved system wallets. All legs of one transfer share an
// operation id and commit atomically.
type TransferService struct {
	db       *sql.DB
	redis    *redis.Client
	ledger   *WalletLedgerService
	accounts *SystemAccounts
	fees     feeRates
	now      func() time.Time
}

func NewTransferService(db *sql.DB, redisClient *redis.Client, ledger *WalletLedgerService, accounts *SystemAccounts, policy *config.Tokenomics) (*TransferService, error) {
	fees := feeRates{}
	for _, f := range []struct {
		name string
		rate string
		dest *token.Amount
	}{
		{"pool", policy.PoolFee, &fees.pool},
		{"peer", policy.PeerFee, &fees.peer},
		{"burn", policy.BurnFee, &fees.burn},
		{"inviter", policy.InviterFee, &fees.inviter},
	} {
		amount, err := token.FromDecimal(f.rate)
		if err != nil {
			return nil, fmt.Errorf("%s fee rate: %w", f.name, err)
		}
		*f.dest = amount
	}

	return &TransferService{
		db:       db,
		redis:    redisClient,
		ledger:   ledger,
		accounts: accounts,
		fees:     fees,
		now:      time.Now,
	}, nil
}

// Transfer sends amount from sender to recipient, debiting the sender the
// amount plus all applicable fees. A non-empty operationID makes the call
// idempotent: a retry of an already-committed operation returns the original
// receipt without writing anything.
func (s *TransferService) Transfer(senderID, recipientID string, amount token.Amount, message, operationID string) (*models.TransferReceipt, error) {
	if senderID == recipientID {
		return nil, ErrSelfTransfer
	}
	if s.accounts.IsSystemAccount(recipientID) {
		return nil, ErrUnauthorizedRecipient
	}
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	if operationID == "" {
		operationID = uuid.New().String()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, storageErr("transfer begin", err)
	}
	defer tx.Rollback()

	replayed, err := s.ledger.OperationExistsTx(tx, operationID)
	if err != nil {
		return nil, err
	}
	if replayed {
		return s.receiptFor(tx, operationID)
	}

	recipient, err := s.userByID(tx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil || recipient.Status == models.StatusDeleted {
		return nil, ErrUnknownRecipient
	}

	sender, err := s.userByID(tx, senderID)
	if err != nil {
		return nil, err
	}
	if sender == nil || sender.Status == models.StatusDeleted {
		return nil, fmt.Errorf("sender %s: %w", senderID, ErrUnknownRecipient)
	}

	inviterID, err := s.activeInviter(tx, sender)
	if err != nil {
		return nil, err
	}

	legs, required, err := s.buildLegs(senderID, recipientID, inviterID, amount, message)
	if err != nil {
		return nil, err
	}

	// Balance sufficiency is enforced inside ApplyEntriesTx while the
	// sender's wallet row is locked, so no check-then-act race exists.
	if _, err := s.ledger.ApplyEntriesTx(tx, operationID, legs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("transfer commit", err)
	}

	receipt := &models.TransferReceipt{
		OperationID:   operationID,
		SenderID:      senderID,
		RecipientID:   recipientID,
		TokensSent:    amount.String(),
		TokensDebited: required.String(),
		CreatedAt:     s.now(),
	}
	s.queueReceipt(receipt)

	log.Printf("[TRANSFER] %s -> %s: %s sent, %s debited (op %s)",
		senderID, recipientID, receipt.TokensSent, receipt.TokensDebited, operationID)
	return receipt, nil
}

// buildLegs assembles the multi-leg batch for one transfer. Each fee is
// computed independently from its rate, then summed into the sender debit.
func (s *TransferService) buildLegs(senderID, recipientID, inviterID string, amount token.Amount, message string) ([]Leg, token.Amount, error) {
	type feeLeg struct {
		rate    token.Amount
		account string
		txType  string
		action  string
	}
	feePlan := []feeLeg{
		{s.fees.pool, s.accounts.Account(RolePool), models.TxTypePoolFee, models.ActionPoolFee},
		{s.fees.peer, s.accounts.Account(RolePeer), models.TxTypePeerFee, models.ActionPeerFee},
		{s.fees.burn, s.accounts.Account(RoleBurn), models.TxTypeBurnFee, models.ActionBurnFee},
	}
	if inviterID != "" {
		feePlan = append(feePlan, feeLeg{s.fees.inviter, inviterID, models.TxTypeInviterFee, models.ActionInviterFee})
	}

	legs := []Leg{
		{
			AccountID:      recipientID,
			CounterpartyID: senderID,
			Delta:          amount,
			Type:           models.TxTypeTransfer,
			Action:         models.ActionCredit,
			Message:        message,
		},
	}

	required := amount
	for _, f := range feePlan {
		fee, err := amount.MulQ(f.rate)
		if err != nil {
			return nil, token.Amount{}, fmt.Errorf("fee on %s: %w", f.action, err)
		}
		required, err = required.Add(fee)
		if err != nil {
			return nil, token.Amount{}, fmt.Errorf("required amount: %w", err)
		}
		legs = append(legs, Leg{
			AccountID:      f.account,
			CounterpartyID: senderID,
			Delta:          fee,
			Type:           f.txType,
			Action:         f.action,
		})
	}

	// Sender debit first in the batch so the entries read naturally.
	legs = append([]Leg{{
		AccountID:      senderID,
		CounterpartyID: recipientID,
		Delta:          required.Neg(),
		Type:           models.TxTypeTransfer,
		Action:         models.ActionDeduct,
		Message:        message,
	}}, legs...)

	return legs, required, nil
}

// receiptFor rebuilds the receipt of an already-committed operation from its
// ledger entries.
func (s *TransferService) receiptFor(tx *sql.Tx, operationID string) (*models.TransferReceipt, error) {
	rows, err := tx.Query(`
		SELECT userid, fromid, amount::text, transferaction, createdat
		FROM transactions WHERE operationid = $1`, operationID)
	if err != nil {
		return nil, storageErr("receipt read", err)
	}
	defer rows.Close()

	receipt := &models.TransferReceipt{OperationID: operationID}
	for rows.Next() {
		var userID, fromID, amount, action string
		var createdAt time.Time
		if err := rows.Scan(&userID, &fromID, &amount, &action, &createdAt); err != nil {
			return nil, storageErr("receipt scan", err)
		}
		switch action {
		case models.ActionDeduct:
			receipt.SenderID = userID
			receipt.RecipientID = fromID
			receipt.CreatedAt = createdAt
			debited, err := token.FromDecimalSigned(amount)
			if err != nil {
				return nil, fmt.Errorf("operation %s holds corrupt amount: %w", operationID, err)
			}
			receipt.TokensDebited = debited.Abs().String()
		case models.ActionCredit:
			receipt.TokensSent = amount
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("receipt read", err)
	}

	log.Printf("[TRANSFER] Replayed operation %s", operationID)
	return receipt, nil
}

// userByID returns nil without error when no row exists.
func (s *TransferService) userByID(tx *sql.Tx, userID string) (*models.User, error) {
	var u models.User
	err := tx.QueryRow(`
		SELECT uid, username, status, COALESCE(invited, '') FROM users WHERE uid = $1`,
		userID).Scan(&u.UID, &u.Username, &u.Status, &u.Invited)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("user lookup", err)
	}
	return &u, nil
}

// activeInviter resolves the sender's inviter; a missing or deleted inviter
// means no inviter fee applies.
func (s *TransferService) activeInviter(tx *sql.Tx, sender *models.User) (string, error) {
	if sender.Invited == "" {
		return "", nil
	}
	inviter, err := s.userByID(tx, sender.Invited)
	if err != nil {
		return "", err
	}
	if inviter == nil || inviter.Status == models.StatusDeleted {
		return "", nil
	}
	return inviter.UID, nil
}

// queueReceipt pushes the committed receipt onto the notification queue.
// Delivery is best effort; the transfer itself has already committed.
func (s *TransferService) queueReceipt(receipt *models.TransferReceipt) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		log.Printf("[TRANSFER] Failed to marshal receipt %s: %v", receipt.OperationID, err)
		return
	}
	if err := s.redis.RPush(context.Background(), "transfer_receipts", data).Err(); err != nil {
		log.Printf("[TRANSFER] Failed to queue receipt %s: %v", receipt.OperationID, err)
	}
}
