package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/peer-network/peer-backend-sub001/internal/middleware"
	"github.com/peer-network/peer-backend-sub001/internal/services"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

type PaymentCodeHandler struct {
	service   *services.PaymentCodeService
	validator *services.ValidationHelper
}

func NewPaymentCodeHandler(service *services.PaymentCodeService) *PaymentCodeHandler {
	return &PaymentCodeHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// CreateCode issues a scannable payment request code
// @Summary Create payment code
// @Description Issue a short-lived QR payment code binding the caller and an amount
// @Tags PaymentCodes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=string,message=string} true "Payment code request"
// @Success 200 {object} object{success=bool,code=string,image=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /payment-codes [post]
func (h *PaymentCodeHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Amount  string `json:"amount" validate:"required,amount"`
		Message string `json:"message" validate:"omitempty,max=200"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	amount, err := token.FromDecimal(req.Amount)
	if err != nil {
		services.SendErrorResponse(w, "Malformed amount", http.StatusBadRequest, nil)
		return
	}

	code, image, err := h.service.CreateCode(r.Context(), userID, amount, req.Message)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"code":    code,
		"image":   image,
	})
}

// ResolveCode redeems a scanned payment code
// @Summary Resolve payment code
// @Description Resolve a scanned payment code to its recipient and amount; codes are single use
// @Tags PaymentCodes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{code=string} true "Payment code"
// @Success 200 {object} object{success=bool,request=services.PaymentRequest}
// @Failure 400 {object} services.ErrorResponse
// @Router /payment-codes/resolve [post]
func (h *PaymentCodeHandler) ResolveCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	request, err := h.service.ResolveCode(r.Context(), req.Code)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"request": request,
	})
}
