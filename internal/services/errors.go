package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Typed error kinds returned across the core boundary. Handlers map these to
// HTTP statuses with errors.Is; none of them leaves partial ledger state.
var (
	ErrSelfTransfer          = errors.New("sender and recipient are the same wallet")
	ErrUnauthorizedRecipient = errors.New("recipient is a system account")
	ErrUnknownRecipient      = errors.New("recipient unknown or deleted")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrDuplicateMintForDay   = errors.New("mint already performed for day")
	ErrInvalidMintDay        = errors.New("invalid mint day key")
	ErrInvalidWindow         = errors.New("invalid time window key")
	ErrStorageUnavailable    = errors.New("storage unavailable")
)

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation, optionally on a specific constraint name.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// storageErr wraps driver failures as ErrStorageUnavailable so callers can
// make retry decisions without parsing driver errors. Row-absence is not a
// storage failure and passes through.
func storageErr(op string, err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}
