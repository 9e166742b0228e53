package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/lifecycle"
	"github.com/roadwatch/roadwatch/internal/ports"
)

// DashboardService is the behavior the dashboard handlers depend on
type DashboardService interface {
	Latest(ctx context.Context) (*ports.DashboardSnapshot, error)
	Refresh(ctx context.Context) (*ports.DashboardSnapshot, error)
	Recap(ctx context.Context) (domain.Recap, error)
}

// DashboardResponse is the manager dashboard: the recap, per item durations
// and fleet averages with their display strings
type DashboardResponse struct {
	Recap        RecapResponse     `json:"recap"`
	Report       *lifecycle.Report `json:"report"`
	AnomalyCount int               `json:"anomaly_count"`
	Stale        bool              `json:"stale"`
}

// RecapResponse adds display strings to the recap
type RecapResponse struct {
	domain.Recap
	TotalSurfaceDisplay string `json:"total_surface_display"`
	TotalBudgetDisplay  string `json:"total_budget_display"`
}

func newRecapResponse(recap domain.Recap) RecapResponse {
	return RecapResponse{
		Recap:               recap,
		TotalSurfaceDisplay: lifecycle.FormatAmount(recap.TotalSurface),
		TotalBudgetDisplay:  lifecycle.FormatAmount(recap.TotalBudget),
	}
}

// DashboardHandler serves the manager dashboard
type DashboardHandler struct {
	service DashboardService
}

func NewDashboardHandler(service DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// RegisterRoutes registers the dashboard routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/dashboard", h.GetDashboard).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/dashboard/refresh", h.RefreshDashboard).Methods(http.MethodPost)
}

// GetDashboard serves the cached dashboard; ?refresh=true recomputes it first
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	refresh := false
	if v := r.URL.Query().Get("refresh"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "refresh must be a boolean")
			return
		}
		refresh = parsed
	}

	var (
		snapshot *ports.DashboardSnapshot
		err      error
	)
	if refresh {
		snapshot, err = h.service.Refresh(r.Context())
	} else {
		snapshot, err = h.service.Latest(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "Dashboard retrieved", newDashboardResponse(snapshot))
}

func (h *DashboardHandler) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "Dashboard refreshed", newDashboardResponse(snapshot))
}

func newDashboardResponse(snapshot *ports.DashboardSnapshot) DashboardResponse {
	resp := DashboardResponse{
		Recap:  newRecapResponse(snapshot.Recap),
		Report: snapshot.Report,
		Stale:  snapshot.Stale,
	}
	if snapshot.Report != nil {
		resp.AnomalyCount = len(snapshot.Report.Anomalies)
	}
	return resp
}
