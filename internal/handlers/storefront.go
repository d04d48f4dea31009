package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/promoshop/promoshop/internal/catalog"
	"github.com/promoshop/promoshop/internal/models"
)

type campaignResponse struct {
	models.Campaign
	Available bool `json:"available"`
}

func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	campaigns := h.campaigns.Campaigns(r.Context())

	out := make([]campaignResponse, 0, len(campaigns))
	for _, campaign := range campaigns {
		out = append(out, campaignResponse{Campaign: campaign, Available: campaign.AvailableAt(now)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": out}, h.loggerFromContext(r.Context()))
}

func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	campaign, err := h.campaigns.CampaignBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, catalog.ErrCampaignNotFound) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		h.respondError(w, r, err, "failed to load campaign")
		return
	}

	writeJSON(w, http.StatusOK, campaignResponse{
		Campaign:  *campaign,
		Available: campaign.AvailableAt(h.now()),
	}, h.loggerFromContext(r.Context()))
}

// PlaceOrder accepts a storefront order. A retry carrying the same
// Idempotency-Key header gets the original order back with 200.
func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var input models.OrderInput
	if err := decodeJSON(w, r, &input); err != nil {
		h.loggerFromContext(r.Context()).Warn("rejected order body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orderService.PlaceOrder(r.Context(), input, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		h.respondError(w, r, err, "failed to place order")
		return
	}

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	writeJSON(w, status, result.Order, h.loggerFromContext(r.Context()))
}
