package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peer-network/peer-backend-sub001/internal/models"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

// Leg is one signed delta within a wallet operation.
type Leg struct {
	AccountID      string
	CounterpartyID string
	Delta          token.Amount
	Type           string
	Action         string
	Message        string
}

// WalletLedgerService owns the append-only transactions log and the wallets
// balance cache. All legs of an operation are applied atomically; a leg that
// would drive any balance negative aborts the whole batch.
type WalletLedgerService struct {
	db  *sql.DB
	now func() time.Time
}

func NewWalletLedgerService(db *sql.DB) *WalletLedgerService {
	return &WalletLedgerService{
		db:  db,
		now: time.Now,
	}
}

// ApplyEntries appends all legs under one operation id and updates each
// account's cached balance, in a single database transaction.
func (s *WalletLedgerService) ApplyEntries(operationID string, legs []Leg) ([]models.LedgerEntry, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, storageErr("ledger begin", err)
	}
	defer tx.Rollback()

	entries, err := s.ApplyEntriesTx(tx, operationID, legs)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("ledger commit", err)
	}
	return entries, nil
}

// ApplyEntriesTx is ApplyEntries composed into a caller-owned transaction,
// so the mint engine can batch its legs with the MintRecord insert.
func (s *WalletLedgerService) ApplyEntriesTx(tx *sql.Tx, operationID string, legs []Leg) ([]models.LedgerEntry, error) {
	if len(legs) == 0 {
		return nil, nil
	}

	// Lock wallet rows in consistent order to prevent deadlocks.
	accounts := make([]string, 0, len(legs))
	seen := make(map[string]bool, len(legs))
	for _, leg := range legs {
		if !seen[leg.AccountID] {
			seen[leg.AccountID] = true
			accounts = append(accounts, leg.AccountID)
		}
	}
	sort.Strings(accounts)

	balances := make(map[string]token.Amount, len(accounts))
	versions := make(map[string]int, len(accounts))
	for _, account := range accounts {
		balance, version, err := s.lockWallet(tx, account)
		if err != nil {
			return nil, err
		}
		balances[account] = balance
		versions[account] = version
	}

	createdAt := s.now()
	entries := make([]models.LedgerEntry, 0, len(legs))
	for _, leg := range legs {
		if leg.Delta.IsZero() {
			continue
		}

		newBalance, err := balances[leg.AccountID].Add(leg.Delta)
		if err != nil {
			return nil, fmt.Errorf("apply leg for %s: %w", leg.AccountID, err)
		}
		if newBalance.Sign() < 0 {
			return nil, fmt.Errorf("account %s: %w", leg.AccountID, ErrInsufficientFunds)
		}

		entry := models.LedgerEntry{
			Token:       uuid.New().String(),
			OperationID: operationID,
			UserID:      leg.AccountID,
			FromID:      leg.CounterpartyID,
			Amount:      leg.Delta.String(),
			AmountQ:     leg.Delta.QString(),
			Type:        leg.Type,
			Action:      leg.Action,
			Message:     leg.Message,
			CreatedAt:   createdAt,
		}
		if err := s.insertEntry(tx, &entry); err != nil {
			return nil, err
		}

		balances[leg.AccountID] = newBalance
		entries = append(entries, entry)
	}

	for _, account := range accounts {
		if err := s.updateWallet(tx, account, balances[account], versions[account]); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

// BalanceOf returns the cached balance; unknown accounts read as zero.
func (s *WalletLedgerService) BalanceOf(accountID string) (token.Amount, error) {
	var liquidityQ string
	err := s.db.QueryRow(`
		SELECT liquiditq::text FROM wallets WHERE userid = $1`, accountID).Scan(&liquidityQ)
	if err == sql.ErrNoRows {
		return token.Zero(), nil
	}
	if err != nil {
		return token.Amount{}, storageErr("balance read", err)
	}
	return token.FromQString(liquidityQ)
}

// Reconcile recomputes the balance from the full ledger history. It must
// always equal BalanceOf; used for auditing and tests.
func (s *WalletLedgerService) Reconcile(accountID string) (token.Amount, error) {
	var sumQ string
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(amountq), 0)::text FROM transactions WHERE userid = $1`, accountID).Scan(&sumQ)
	if err != nil {
		return token.Amount{}, storageErr("reconcile", err)
	}
	return token.FromQString(sumQ)
}

// ListTransactions returns an account's ledger entries, newest first,
// narrowed by the filter.
func (s *WalletLedgerService) ListTransactions(accountID string, filter models.TransactionFilter) ([]models.LedgerEntry, error) {
	conditions := []string{"userid = $1"}
	args := []interface{}{accountID}
	argIndex := 2

	switch filter.Type {
	case "":
	case "transfer":
		conditions = append(conditions, fmt.Sprintf("transactiontype = $%d", argIndex))
		args = append(args, models.TxTypeTransfer)
		argIndex++
	case "mint":
		conditions = append(conditions, fmt.Sprintf("transactiontype = $%d", argIndex))
		args = append(args, models.TxTypeMint)
		argIndex++
	case "fee":
		conditions = append(conditions, fmt.Sprintf("transferaction = ANY($%d::text[])", argIndex))
		args = append(args, feeActions())
		argIndex++
	default:
		return nil, fmt.Errorf("unknown transaction type filter %q", filter.Type)
	}

	switch filter.Direction {
	case "":
	case "credit":
		conditions = append(conditions, "amountq > 0")
	case "debit":
		conditions = append(conditions, "amountq < 0")
	default:
		return nil, fmt.Errorf("unknown direction filter %q", filter.Direction)
	}

	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("createdat >= $%d", argIndex))
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("createdat < $%d", argIndex))
		args = append(args, *filter.To)
		argIndex++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT token, operationid, userid, fromid, amount::text, amountq::text,
		       transactiontype, transferaction, COALESCE(message, ''), createdat
		FROM transactions
		WHERE ` + strings.Join(conditions, " AND ") +
		fmt.Sprintf(" ORDER BY createdat DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(
			&e.Token, &e.OperationID, &e.UserID, &e.FromID, &e.Amount, &e.AmountQ,
			&e.Type, &e.Action, &e.Message, &e.CreatedAt,
		); err != nil {
			return nil, storageErr("list transactions scan", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// OperationExistsTx reports whether any leg was already written under the
// operation id. Used to deduplicate retried transfers.
func (s *WalletLedgerService) OperationExistsTx(tx *sql.Tx, operationID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM transactions WHERE operationid = $1)`, operationID).Scan(&exists)
	if err != nil {
		return false, storageErr("operation lookup", err)
	}
	return exists, nil
}

func feeActions() string {
	// Array literal instead of pq.Array so the value stays a plain string
	// through the driver; the ::text[] cast does the decoding server side.
	return fmt.Sprintf("{%s,%s,%s,%s}",
		models.ActionPoolFee, models.ActionPeerFee, models.ActionBurnFee, models.ActionInviterFee)
}

func (s *WalletLedgerService) lockWallet(tx *sql.Tx, accountID string) (token.Amount, int, error) {
	balance, version, err := s.selectWalletForUpdate(tx, accountID)
	if err == nil {
		return balance, version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return token.Amount{}, 0, storageErr("wallet lock", err)
	}

	// First movement for this account: materialize a zero row, then lock it.
	_, err = tx.Exec(`
		INSERT INTO wallets (userid, liquidity, liquiditq, version, updatedat)
		VALUES ($1, 0, 0, 1, $2)
		ON CONFLICT (userid) DO NOTHING`, accountID, s.now())
	if err != nil {
		return token.Amount{}, 0, storageErr("wallet create", err)
	}

	balance, version, err = s.selectWalletForUpdate(tx, accountID)
	if err != nil {
		return token.Amount{}, 0, storageErr("wallet lock", err)
	}
	return balance, version, nil
}

func (s *WalletLedgerService) selectWalletForUpdate(tx *sql.Tx, accountID string) (token.Amount, int, error) {
	var liquidityQ string
	var version int
	err := tx.QueryRow(`
		SELECT liquiditq::text, version FROM wallets WHERE userid = $1 FOR UPDATE`,
		accountID).Scan(&liquidityQ, &version)
	if err != nil {
		return token.Amount{}, 0, err
	}
	balance, err := token.FromQString(liquidityQ)
	if err != nil {
		return token.Amount{}, 0, fmt.Errorf("wallet %s holds corrupt balance: %w", accountID, err)
	}
	return balance, version, nil
}

func (s *WalletLedgerService) insertEntry(tx *sql.Tx, e *models.LedgerEntry) error {
	_, err := tx.Exec(`
		INSERT INTO transactions (token, operationid, userid, fromid, amount, amountq, transactiontype, transferaction, message, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.Token, e.OperationID, e.UserID, e.FromID, e.Amount, e.AmountQ,
		e.Type, e.Action, nullable(e.Message), e.CreatedAt)
	if err != nil {
		return storageErr("ledger insert", err)
	}
	return nil
}

func (s *WalletLedgerService) updateWallet(tx *sql.Tx, accountID string, balance token.Amount, version int) error {
	result, err := tx.Exec(`
		UPDATE wallets
		SET liquidity = $1, liquiditq = $2, version = version + 1, updatedat = $3
		WHERE userid = $4 AND version = $5`,
		balance.String(), balance.QString(), s.now(), accountID, version)
	if err != nil {
		return storageErr("wallet update", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageErr("wallet update", err)
	}
	if rowsAffected == 0 {
		log.Printf("[LEDGER] Optimistic lock failed for wallet %s", accountID)
		return fmt.Errorf("optimistic lock failed for wallet %s", accountID)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
