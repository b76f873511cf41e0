package services

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peer-network/peer-backend-sub001/internal/config"
	"github.com/peer-network/peer-backend-sub001/internal/models"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

// MintService converts one day's uncollected gems into token credits,
// splitting a fixed daily budget proportionally across beneficiaries with a
// positive net gem total. At most one mint per calendar day; the unique day
// column in mints enforces this even under concurrent invocation.
type MintService struct {
	db       *sql.DB
	gems     *GemsService
	ledger   *WalletLedgerService
	accounts *SystemAccounts
	budget   token.Amount
	now      func() time.Time
}

func NewMintService(db *sql.DB, gems *GemsService, ledger *WalletLedgerService, accounts *SystemAccounts, policy *config.Tokenomics) (*MintService, error) {
	budget, err := token.FromDecimal(policy.DailyMintBudget)
	if err != nil {
		return nil, fmt.Errorf("daily mint budget: %w", err)
	}
	return &MintService{
		db:       db,
		gems:     gems,
		ledger:   ledger,
		accounts: accounts,
		budget:   budget,
		now:      time.Now,
	}, nil
}

// RunMint performs the mint for the given day key (D0..D7, resolved against
// a single reference time captured at start). Re-running a day returns
// ErrDuplicateMintForDay and changes nothing.
func (s *MintService) RunMint(day string) (*models.MintRecord, []models.MintUserResult, error) {
	if !strings.HasPrefix(day, "D") {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidMintDay, day)
	}
	from, to, err := windowBounds(day, s.now())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidMintDay, day)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, nil, storageErr("mint begin", err)
	}
	defer tx.Rollback()

	// Reads first: lock the day's gems so a concurrent mint of an adjacent
	// window cannot consume them while we compute shares.
	entries, err := s.gems.uncollectedForUpdate(tx, from, to)
	if err != nil {
		return nil, nil, err
	}

	byUser, order, err := groupGemsByUser(entries)
	if err != nil {
		return nil, nil, err
	}

	// Users with a non-positive net total do not mint.
	totalGems := token.Zero()
	credited := make([]string, 0, len(order))
	for _, userID := range order {
		if byUser[userID].Sign() <= 0 {
			continue
		}
		totalGems, err = totalGems.Add(byUser[userID])
		if err != nil {
			return nil, nil, fmt.Errorf("mint gem total: %w", err)
		}
		credited = append(credited, userID)
	}

	ratio := token.Zero()
	if !totalGems.IsZero() {
		ratio, err = s.budget.DivQ(totalGems)
		if err != nil {
			return nil, nil, fmt.Errorf("mint ratio: %w", err)
		}
	}

	// The mints insert is the first write of the transaction. A duplicate
	// day fails here, before any ledger or gems mutation is attempted.
	record := models.MintRecord{
		MintID:    uuid.New().String(),
		Day:       from,
		Ratio:     ratio.String(),
		RatioQ:    ratio.QString(),
		CreatedAt: s.now(),
	}
	_, err = tx.Exec(`
		INSERT INTO mints (mintid, day, ratio, ratioq, createdat)
		VALUES ($1, $2, $3, $4, $5)`,
		record.MintID, record.Day, record.Ratio, record.RatioQ, record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, nil, fmt.Errorf("day %s: %w", day, ErrDuplicateMintForDay)
		}
		return nil, nil, storageErr("mint insert", err)
	}

	operationID := uuid.New().String()
	mintAccount := s.accounts.Account(RoleMint)

	results := make([]models.MintUserResult, 0, len(credited))
	legs := make([]Leg, 0, len(credited)+1)
	totalMinted := token.Zero()
	for _, userID := range credited {
		tokens, err := byUser[userID].MulQ(ratio)
		if err != nil {
			return nil, nil, fmt.Errorf("mint share for %s: %w", userID, err)
		}
		totalMinted, err = totalMinted.Add(tokens)
		if err != nil {
			return nil, nil, fmt.Errorf("mint total: %w", err)
		}
		legs = append(legs, Leg{
			AccountID:      userID,
			CounterpartyID: mintAccount,
			Delta:          tokens,
			Type:           models.TxTypeMint,
			Action:         models.ActionMint,
			Message:        fmt.Sprintf("Daily mint %s", day),
		})
		results = append(results, models.MintUserResult{
			UserID: userID,
			Gems:   byUser[userID].String(),
			Tokens: tokens.String(),
		})
	}

	var written []models.LedgerEntry
	if len(legs) > 0 {
		// Fund the credits from the mint reserve so the ledger stays
		// zero-sum. The reserve is seeded with the emission supply.
		legs = append(legs, Leg{
			AccountID:      mintAccount,
			CounterpartyID: mintAccount,
			Delta:          totalMinted.Neg(),
			Type:           models.TxTypeMint,
			Action:         models.ActionDeduct,
			Message:        fmt.Sprintf("Daily mint %s", day),
		})
		written, err = s.ledger.ApplyEntriesTx(tx, operationID, legs)
		if err != nil {
			return nil, nil, err
		}
	}

	gemIDs := make([]string, len(entries))
	for i, e := range entries {
		gemIDs[i] = e.GemID
	}
	if err := s.gems.MarkCollectedTx(tx, gemIDs); err != nil {
		return nil, nil, err
	}

	if err := s.insertMintLog(tx, operationID, ratio, entries, written); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, storageErr("mint commit", err)
	}

	log.Printf("[MINT] Day %s: %d gems entries, %d users credited, ratio %s",
		day, len(entries), len(results), record.Ratio)
	return &record, results, nil
}

// insertMintLog writes one audit row per consumed gem entry of a credited
// user, linking the gem to the ledger leg that paid it out.
func (s *MintService) insertMintLog(tx *sql.Tx, operationID string, ratio token.Amount, entries []models.GemEntry, written []models.LedgerEntry) error {
	legByUser := make(map[string]string, len(written))
	for _, e := range written {
		if e.Action == models.ActionMint {
			legByUser[e.UserID] = e.Token
		}
	}

	for _, entry := range entries {
		transactionID, ok := legByUser[entry.UserID]
		if !ok {
			continue
		}
		gems, err := token.FromQString(entry.GemsQ)
		if err != nil {
			return fmt.Errorf("gem %s holds corrupt amount: %w", entry.GemID, err)
		}
		tokens, err := gems.MulQ(ratio)
		if err != nil {
			return fmt.Errorf("mint log for gem %s: %w", entry.GemID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO mint_info (gemid, operationid, transactionid, tokenamount)
			VALUES ($1, $2, $3, $4)`,
			entry.GemID, operationID, transactionID, tokens.String())
		if err != nil {
			return storageErr("mint log insert", err)
		}
	}
	return nil
}

// LatestRecords returns recent mint records, newest first.
func (s *MintService) LatestRecords(limit int) ([]models.MintRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	rows, err := s.db.Query(`
		SELECT mintid, day, ratio::text, ratioq::text, createdat
		FROM mints ORDER BY day DESC LIMIT $1`, limit)
	if err != nil {
		return nil, storageErr("mint records", err)
	}
	defer rows.Close()

	records := []models.MintRecord{}
	for rows.Next() {
		var r models.MintRecord
		if err := rows.Scan(&r.MintID, &r.Day, &r.Ratio, &r.RatioQ, &r.CreatedAt); err != nil {
			return nil, storageErr("mint records scan", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// groupGemsByUser nets each beneficiary's signed gem amounts, preserving
// first-seen order for deterministic payouts.
func groupGemsByUser(entries []models.GemEntry) (map[string]token.Amount, []string, error) {
	byUser := make(map[string]token.Amount, len(entries))
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		amount, err := token.FromQString(entry.GemsQ)
		if err != nil {
			return nil, nil, fmt.Errorf("gem %s holds corrupt amount: %w", entry.GemID, err)
		}
		current, seen := byUser[entry.UserID]
		if !seen {
			current = token.Zero()
			order = append(order, entry.UserID)
		}
		next, err := current.Add(amount)
		if err != nil {
			return nil, nil, fmt.Errorf("gem total for %s: %w", entry.UserID, err)
		}
		byUser[entry.UserID] = next
	}
	return byUser, order, nil
}
