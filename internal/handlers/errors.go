package handlers

import (
	"errors"
	"net/http"

	"github.com/peer-network/peer-backend-sub001/internal/services"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

// statusFor maps core error kinds to HTTP statuses. Unrecognized errors are
// internal failures.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrSelfTransfer),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidWindow),
		errors.Is(err, services.ErrInvalidMintDay),
		errors.Is(err, token.ErrMalformedAmount),
		errors.Is(err, token.ErrAmountOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnauthorizedRecipient):
		return http.StatusForbidden
	case errors.Is(err, services.ErrUnknownRecipient):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrDuplicateMintForDay):
		return http.StatusConflict
	case errors.Is(err, services.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
