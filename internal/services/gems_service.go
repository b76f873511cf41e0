package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/peer-network/peer-backend-sub001/internal/config"
	"github.com/peer-network/peer-backend-sub001/internal/models"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

// GemsService maintains the append-only gems log. Entries are written once
// per (actor, post, action) and later consumed by the mint engine.
type GemsService struct {
	db     *sql.DB
	policy *config.Tokenomics
	now    func() time.Time
}

func NewGemsService(db *sql.DB, policy *config.Tokenomics) *GemsService {
	return &GemsService{
		db:     db,
		policy: policy,
		now:    time.Now,
	}
}

// Record appends one gem entry for an action. An empty rawAmount falls back
// to the configured per-action gems return. A repeated (actor, post, action)
// triple is a silent no-op and returns nil.
func (s *GemsService) Record(beneficiaryID, actorID, postID string, action models.ActionKind, rawAmount string) (*models.GemEntry, error) {
	if rawAmount == "" {
		rate, ok := s.policy.GemsReturns[action.String()]
		if !ok {
			return nil, fmt.Errorf("no gems return configured for action %s", action)
		}
		rawAmount = rate
	}
	amount, err := token.FromDecimalSigned(rawAmount)
	if err != nil {
		return nil, fmt.Errorf("gems amount for %s: %w", action, err)
	}

	entry := models.GemEntry{
		GemID:     uuid.New().String(),
		UserID:    beneficiaryID,
		FromID:    actorID,
		PostID:    postID,
		Gems:      amount.String(),
		GemsQ:     amount.QString(),
		Whereby:   action,
		Collected: false,
		CreatedAt: s.now(),
	}

	result, err := s.db.Exec(`
		INSERT INTO gems (gemid, userid, fromid, postid, gems, gemsq, whereby, collected, createdat)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
		ON CONFLICT (fromid, postid, whereby) DO NOTHING`,
		entry.GemID, entry.UserID, entry.FromID, entry.PostID,
		entry.Gems, entry.GemsQ, int(entry.Whereby), entry.CreatedAt)
	if err != nil {
		return nil, storageErr("gems insert", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, storageErr("gems insert", err)
	}
	if rowsAffected == 0 {
		log.Printf("[GEMS] Duplicate action ignored: actor=%s post=%s action=%s", actorID, postID, action)
		return nil, nil
	}
	return &entry, nil
}

// UncollectedFor returns all uncollected entries whose created_at falls in
// the named window, evaluated against a single reference time.
func (s *GemsService) UncollectedFor(window string) ([]models.GemEntry, error) {
	from, to, err := windowBounds(window, s.now())
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT gemid, userid, fromid, COALESCE(postid, ''), gems::text, gemsq::text, whereby, collected, createdat
		FROM gems
		WHERE collected = false AND createdat >= $1 AND createdat < $2
		ORDER BY createdat ASC`, from, to)
	if err != nil {
		return nil, storageErr("gems read", err)
	}
	defer rows.Close()

	return scanGemEntries(rows)
}

// uncollectedForUpdate is UncollectedFor with row locks, inside the caller's
// transaction. The mint engine uses it so concurrent mints cannot consume
// the same entries.
func (s *GemsService) uncollectedForUpdate(tx *sql.Tx, from, to time.Time) ([]models.GemEntry, error) {
	rows, err := tx.Query(`
		SELECT gemid, userid, fromid, COALESCE(postid, ''), gems::text, gemsq::text, whereby, collected, createdat
		FROM gems
		WHERE collected = false AND createdat >= $1 AND createdat < $2
		ORDER BY createdat ASC
		FOR UPDATE`, from, to)
	if err != nil {
		return nil, storageErr("gems lock", err)
	}
	defer rows.Close()

	return scanGemEntries(rows)
}

// MarkCollected flips the collected flag for the given ids in one batch.
// Already-collected ids are skipped, not errors.
func (s *GemsService) MarkCollected(gemIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("gems begin", err)
	}
	defer tx.Rollback()

	if err := s.MarkCollectedTx(tx, gemIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("gems commit", err)
	}
	return nil
}

// MarkCollectedTx is MarkCollected composed into a caller-owned transaction.
func (s *GemsService) MarkCollectedTx(tx *sql.Tx, gemIDs []string) error {
	if len(gemIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(`
		UPDATE gems SET collected = true WHERE gemid = ANY($1) AND collected = false`,
		pq.Array(gemIDs))
	if err != nil {
		return storageErr("gems collect", err)
	}
	return nil
}

// Stats counts uncollected entries per window for a beneficiary.
func (s *GemsService) Stats(beneficiaryID string) (*models.GemsStats, error) {
	now := s.now()
	stats := models.GemsStats{}
	windows := []struct {
		name string
		dest *int
	}{
		{"D0", &stats.D0}, {"D1", &stats.D1}, {"D2", &stats.D2}, {"D3", &stats.D3},
		{"D4", &stats.D4}, {"D5", &stats.D5}, {"D6", &stats.D6}, {"D7", &stats.D7},
		{"W0", &stats.W0}, {"M0", &stats.M0}, {"Y0", &stats.Y0},
	}

	for _, w := range windows {
		from, to, err := windowBounds(w.name, now)
		if err != nil {
			return nil, err
		}
		err = s.db.QueryRow(`
			SELECT COUNT(*) FROM gems
			WHERE userid = $1 AND collected = false AND createdat >= $2 AND createdat < $3`,
			beneficiaryID, from, to).Scan(w.dest)
		if err != nil {
			return nil, storageErr("gems stats", err)
		}
	}
	return &stats, nil
}

func scanGemEntries(rows *sql.Rows) ([]models.GemEntry, error) {
	entries := []models.GemEntry{}
	for rows.Next() {
		var e models.GemEntry
		var whereby int
		if err := rows.Scan(
			&e.GemID, &e.UserID, &e.FromID, &e.PostID, &e.Gems, &e.GemsQ,
			&whereby, &e.Collected, &e.CreatedAt,
		); err != nil {
			return nil, storageErr("gems scan", err)
		}
		e.Whereby = models.ActionKind(whereby)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
