package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper with the custom
// amount tags registered
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterValidation("amount", validAmount)
	v.RegisterValidation("signedamount", validSignedAmount)
	return &ValidationHelper{
		validator: v,
	}
}

// validAmount accepts non-negative decimal token amounts within the
// representable range
func validAmount(fl validator.FieldLevel) bool {
	_, err := token.FromDecimal(fl.Field().String())
	return err == nil
}

// validSignedAmount additionally allows a leading minus sign, for fields
// that carry ledger deltas
func validSignedAmount(fl validator.FieldLevel) bool {
	_, err := token.FromDecimalSigned(fl.Field().String())
	return err == nil
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		for _, err := range validationErr.(validator.ValidationErrors) {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}
