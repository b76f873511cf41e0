package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/peer-network/peer-backend-sub001/internal/middleware"
	"github.com/peer-network/peer-backend-sub001/internal/models"
	"github.com/peer-network/peer-backend-sub001/internal/services"
	"github.com/peer-network/peer-backend-sub001/internal/token"
)

type WalletHandler struct {
	ledger    *services.WalletLedgerService
	transfers *services.TransferService
	bridge    *services.BridgeService
	validator *services.ValidationHelper
}

func NewWalletHandler(ledger *services.WalletLedgerService, transfers *services.TransferService, bridge *services.BridgeService) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		transfers: transfers,
		bridge:    bridge,
		validator: services.NewValidationHelper(),
	}
}

// Transfer moves tokens to another user's wallet
// @Summary Transfer tokens
// @Description Transfer tokens to a recipient, debiting the sender the amount plus fees
// @Tags Wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{recipientId=string,amount=string,message=string,operationId=string} true "Transfer request"
// @Success 200 {object} object{success=bool,receipt=models.TransferReceipt}
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /transfers [post]
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	senderID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || senderID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		RecipientID string `json:"recipientId" validate:"required,uuid"`
		Amount      string `json:"amount" validate:"required,amount"`
		Message     string `json:"message" validate:"omitempty,max=200"`
		OperationID string `json:"operationId" validate:"omitempty,min=1,max=64"`
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

	receipt, err := h.transfers.Transfer(senderID, req.RecipientID, amount, req.Message, req.OperationID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"receipt": receipt,
	})
}

// Balance returns the cached wallet balance
// @Summary Wallet balance
// @Description Return the cached balance of a wallet
// @Tags Wallets
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account id"
// @Success 200 {object} object{success=bool,accountId=string,balance=string}
// @Failure 503 {object} services.ErrorResponse
// @Router /wallets/{accountId}/balance [get]
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	balance, err := h.ledger.BalanceOf(accountID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"accountId": accountID,
		"balance":   balance.String(),
	})
}

// Reconcile recomputes a wallet balance from its full ledger history
// @Summary Reconcile wallet
// @Description Recompute the balance from the ledger and compare to the cache
// @Tags Wallets
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account id"
// @Success 200 {object} object{success=bool,cached=string,reconciled=string,consistent=bool}
// @Failure 503 {object} services.ErrorResponse
// @Router /wallets/{accountId}/reconcile [get]
func (h *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")

	cached, err := h.ledger.BalanceOf(accountID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}
	reconciled, err := h.ledger.Reconcile(accountID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"accountId":  accountID,
		"cached":     cached.String(),
		"reconciled": reconciled.String(),
		"consistent": cached.Cmp(reconciled) == 0,
	})
}

// Transactions lists a wallet's ledger entries
// @Summary List transactions
// @Description List a wallet's ledger entries, newest first
// @Tags Wallets
// @Produce json
// @Security BearerAuth
// @Param accountId path string true "Account id"
// @Param type query string false "transfer, fee or mint"
// @Param direction query string false "credit or debit"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} object{success=bool,transactions=[]models.LedgerEntry}
// @Failure 400 {object} services.ErrorResponse
// @Router /wallets/{accountId}/transactions [get]
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	q := r.URL.Query()

	filter := models.TransactionFilter{
		Type:      q.Get("type"),
		Direction: q.Get("direction"),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			services.SendErrorResponse(w, "Invalid from timestamp", http.StatusBadRequest, nil)
			return
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			services.SendErrorResponse(w, "Invalid to timestamp", http.StatusBadRequest, nil)
			return
		}
		filter.To = &t
	}

	entries, err := h.ledger.ListTransactions(accountID, filter)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":      true,
		"accountId":    accountID,
		"transactions": entries,
	})
}

// BridgeOut exports tokens to an external chain via the bridge pool
// @Summary Bridge out
// @Description Move tokens into the bridge pool and emit the settlement instruction
// @Tags Wallets
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{beneficiary=string,network=string,amount=string} true "Bridge request"
// @Success 200 {object} object{success=bool,export=models.BridgeExport}
// @Failure 400 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /bridge/out [post]
func (h *WalletHandler) BridgeOut(w http.ResponseWriter, r *http.Request) {
	senderID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || senderID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Beneficiary string `json:"beneficiary" validate:"required,max=128"`
		Network     string `json:"network" validate:"required,max=32"`
		Amount      string `json:"amount" validate:"required,amount"`
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

	export, err := h.bridge.BridgeOut(senderID, req.Beneficiary, req.Network, amount)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"export":  export,
	})
}
