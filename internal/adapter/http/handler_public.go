package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/usecase"
)

// PublicMapService lists every signalement for the visitor map
type PublicMapService interface {
	PublicMap(ctx context.Context) ([]*usecase.SignalementView, error)
}

// RecapService provides the recap shown to visitors
type RecapService interface {
	Recap(ctx context.Context) (domain.Recap, error)
}

// PublicHandler serves the read-only visitor routes
type PublicHandler struct {
	signalements PublicMapService
	recap        RecapService
}

func NewPublicHandler(signalements PublicMapService, recap RecapService) *PublicHandler {
	return &PublicHandler{signalements: signalements, recap: recap}
}

// RegisterRoutes registers the public routes
func (h *PublicHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/public/signalements", h.ListSignalements).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/public/recap", h.GetRecap).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/public/statuses", h.Statuses).Methods(http.MethodGet)
}

func (h *PublicHandler) ListSignalements(w http.ResponseWriter, r *http.Request) {
	views, err := h.signalements.PublicMap(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if views == nil {
		views = []*usecase.SignalementView{}
	}
	writeSuccessResponse(w, http.StatusOK, "Signalements retrieved", views)
}

func (h *PublicHandler) GetRecap(w http.ResponseWriter, r *http.Request) {
	recap, err := h.recap.Recap(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "Recap retrieved", newRecapResponse(recap))
}

// Statuses serves the map legend
func (h *PublicHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, http.StatusOK, "Statuses retrieved", domain.StatusTable())
}
