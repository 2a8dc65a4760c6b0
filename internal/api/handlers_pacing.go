package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pacing-engine/internal/pacing"
	"github.com/pacing-engine/internal/service"
)

// reportRequest is the wire shape of a pacing report request. Dates are
// date-only strings; preset and dates are mutually optional.
type reportRequest struct {
	CampaignID  string   `json:"campaignId"`
	LineItemIDs []string `json:"lineItemIds"`
	StartDate   *string  `json:"startDate,omitempty"`
	EndDate     *string  `json:"endDate,omitempty"`
	Preset      *string  `json:"preset,omitempty"`
}

// parseDate parses a date-only request field
func parseDate(value string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// handlePacingReport handles POST /api/pacing/report
func (s *Server) handlePacingReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", nil)
		return
	}

	input := &service.ReportInput{
		CampaignID:  req.CampaignID,
		LineItemIDs: req.LineItemIDs,
	}

	if req.StartDate != nil {
		t, ok := parseDate(*req.StartDate)
		if !ok {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "startDate must be YYYY-MM-DD", nil)
			return
		}
		input.StartDate = &t
	}
	if req.EndDate != nil {
		t, ok := parseDate(*req.EndDate)
		if !ok {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "endDate must be YYYY-MM-DD", nil)
			return
		}
		input.EndDate = &t
	}
	if req.Preset != nil {
		input.Preset = pacing.WindowPreset(strings.ToUpper(strings.TrimSpace(*req.Preset)))
	}

	result, err := s.pacingService.Report(r.Context(), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handlePortfolio handles GET /api/pacing/portfolio
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.portfolioService.GetSnapshot(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snapshot)
}

// handleDelivery handles GET /api/delivery - raw actuals for a set of line
// items, exposed for operator diagnosis.
func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query().Get("lineItemIds")
	ids := strings.FieldsFunc(idsParam, func(r rune) bool { return r == ',' })
	if len(ids) == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "lineItemIds query parameter is required", nil)
		return
	}

	var window pacing.DateWindow
	if v := r.URL.Query().Get("startDate"); v != "" {
		t, ok := parseDate(v)
		if !ok {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "startDate must be YYYY-MM-DD", nil)
			return
		}
		window.Start = t
	}
	if v := r.URL.Query().Get("endDate"); v != "" {
		t, ok := parseDate(v)
		if !ok {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "endDate must be YYYY-MM-DD", nil)
			return
		}
		window.End = t
	}

	result, err := s.delivery.Fetch(r.Context(), ids, window)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleRefresh handles POST /api/pacing/refresh/{campaignId} - queue a
// cache-warming recompute for a campaign. Repeated triggers coalesce.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["campaignId"]
	if campaignID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "campaignId is required", nil)
		return
	}

	s.refresher.Trigger(campaignID)
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "campaignId": campaignID})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
