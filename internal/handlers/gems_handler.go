package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/peer-network/peer-backend-sub001/internal/middleware"
	"github.com/peer-network/peer-backend-sub001/internal/models"
	"github.com/peer-network/peer-backend-sub001/internal/services"
)

type GemsHandler struct {
	service   *services.GemsService
	validator *services.ValidationHelper
}

func NewGemsHandler(service *services.GemsService) *GemsHandler {
	return &GemsHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// RecordGem records one point-earning action
// @Summary Record gem
// @Description Record a point-earning action for a content owner
// @Tags Gems
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{beneficiaryId=string,postId=string,actionKind=string,amount=string} true "Gem record request"
// @Success 200 {object} object{success=bool,gem=models.GemEntry}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Router /gems [post]
func (h *GemsHandler) RecordGem(w http.ResponseWriter, r *http.Request) {
	actorID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || actorID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		BeneficiaryID string `json:"beneficiaryId" validate:"required,uuid"`
		PostID        string `json:"postId" validate:"required"`
		ActionKind    string `json:"actionKind" validate:"required"`
		Amount        string `json:"amount" validate:"omitempty,signedamount"`
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

	action, ok := models.ParseActionKind(req.ActionKind)
	if !ok {
		services.SendErrorResponse(w, "Unknown action kind", http.StatusBadRequest, nil)
		return
	}

	entry, err := h.service.Record(req.BeneficiaryID, actorID, req.PostID, action, req.Amount)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"duplicate": entry == nil,
		"gem":       entry,
	})
}

// Uncollected lists uncollected gems in a window
// @Summary List uncollected gems
// @Description List uncollected gem entries whose creation time falls in the named window
// @Tags Gems
// @Produce json
// @Security BearerAuth
// @Param window query string true "Window key (D0..D7, W0, M0, Y0)"
// @Success 200 {object} object{success=bool,gems=[]models.GemEntry}
// @Failure 400 {object} services.ErrorResponse
// @Router /gems/uncollected [get]
func (h *GemsHandler) Uncollected(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("window")
	if window == "" {
		window = "D0"
	}

	entries, err := h.service.UncollectedFor(window)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"gems":    entries,
	})
}

// Stats returns per-window uncollected gem counts for the caller
// @Summary Gems stats
// @Description Count the caller's uncollected gems per calendar window
// @Tags Gems
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,stats=models.GemsStats}
// @Failure 401 {object} services.ErrorResponse
// @Router /gems/stats [get]
func (h *GemsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok || userID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	stats, err := h.service.Stats(userID)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), statusFor(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"stats":   stats,
	})
}
