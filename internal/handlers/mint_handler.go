package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/peer-network/peer-backend-sub001/internal/middleware"
	"github.com/peer-network/peer-backend-sub001/internal/services"
)

type MintHandler struct {
	service   *services.MintService
	validator *services.ValidationHelper
}

func NewMintHandler(service *services.MintService) *MintHandler {
	return &MintHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// RunMint converts a day's uncollected gems into token credits
// @Summary Run mint
// @Description Distribute the daily token budget across beneficiaries proportionally to their gems
// @Tags Mint
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{day=string} true "Mint request (day key D0..D7)"
// @Success 200 {object} object{success=bool,record=models.MintRecord,results=[]models.MintUserResult}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /mint [post]
func (h *MintHandler) RunMint(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Day string `json:"day" validate:"required,max=2"`
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

	record, results, err := h.service.RunMint(req.Day)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"record":  record,
		"results": results,
	})
}

// Records lists recent mint records
// @Summary List mint records
// @Description List recent mint records, newest day first
// @Tags Mint
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} object{success=bool,records=[]models.MintRecord}
// @Failure 503 {object} services.ErrorResponse
// @Router /mint/records [get]
func (h *MintHandler) Records(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.service.LatestRecords(limit)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"records": records,
	})
}
