package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/lifecycle"
	"github.com/roadwatch/roadwatch/internal/usecase"
)

// SignalementService is the behavior the manager handler depends on
type SignalementService interface {
	CreateSignalement(ctx context.Context, req usecase.CreateSignalementRequest) (*usecase.SignalementDetail, error)
	GetSignalement(ctx context.Context, id string) (*usecase.SignalementDetail, error)
	GetHistory(ctx context.Context, id string) ([]lifecycle.HistoryEntry, error)
	ListSignalements(ctx context.Context, filter domain.SignalementFilter) (*usecase.ListSignalementsResponse, error)
	UpdateSignalement(ctx context.Context, id string, req usecase.UpdateSignalementRequest) (*usecase.SignalementDetail, error)
	ChangeStatus(ctx context.Context, id string, req usecase.ChangeStatusRequest) (*usecase.SignalementDetail, error)
	DeleteSignalement(ctx context.Context, id string) error
	Statuses() []domain.StatusInfo
}

// SignalementHandler serves the manager side of the catalogue
type SignalementHandler struct {
	service SignalementService
}

func NewSignalementHandler(service SignalementService) *SignalementHandler {
	return &SignalementHandler{service: service}
}

// RegisterRoutes registers the manager signalement routes
func (h *SignalementHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/signalements", h.CreateSignalement).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/signalements", h.ListSignalements).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/signalements/{id}", h.GetSignalement).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/signalements/{id}", h.UpdateSignalement).Methods(http.MethodPut)
	router.HandleFunc("/api/v1/signalements/{id}", h.DeleteSignalement).Methods(http.MethodDelete)
	router.HandleFunc("/api/v1/signalements/{id}/status", h.ChangeStatus).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/signalements/{id}/history", h.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/statuses", h.Statuses).Methods(http.MethodGet)
}

func (h *SignalementHandler) CreateSignalement(w http.ResponseWriter, r *http.Request) {
	var req usecase.CreateSignalementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	detail, err := h.service.CreateSignalement(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusCreated, "Signalement created", detail)
}

func (h *SignalementHandler) ListSignalements(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter domain.SignalementFilter

	if entreprise := query.Get("entreprise"); entreprise != "" {
		filter.Entreprise = &entreprise
	}
	if typ := query.Get("type"); typ != "" {
		filter.Type = &typ
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	resp, err := h.service.ListSignalements(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "Signalements retrieved", resp)
}

func (h *SignalementHandler) GetSignalement(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetSignalement(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "Signalement retrieved", detail)
}

func (h *SignalementHandler) UpdateSignalement(w http.ResponseWriter, r *http.Request) {
	var req usecase.UpdateSignalementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	detail, err := h.service.UpdateSignalement(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "Signalement updated", detail)
}

func (h *SignalementHandler) DeleteSignalement(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSignalement(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeStatus appends a status event to the signalement history
func (h *SignalementHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req usecase.ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Status == "" {
		writeErrorResponse(w, http.StatusBadRequest, "BAD_REQUEST", "status is required")
		return
	}

	detail, err := h.service.ChangeStatus(r.Context(), mux.Vars(r)["id"], req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "Status changed", detail)
}

func (h *SignalementHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.GetHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccessResponse(w, http.StatusOK, "History retrieved", history)
}

func (h *SignalementHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, http.StatusOK, "Statuses retrieved", h.service.Statuses())
}
