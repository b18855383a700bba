package http

import (
	"net/http"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

type TrackingHandler struct {
	service interfaces.TrackingService
	logger  logger.Logger
}

func NewTrackingHandler(service interfaces.TrackingService, logger logger.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: service,
		logger:  logger,
	}
}

func (h *TrackingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /queue/summary", h.Summary)
	mux.HandleFunc("GET /queue/board", h.Board)
	mux.HandleFunc("GET /queue/orders/{id}", h.EntryStatus)
	mux.HandleFunc("GET /queue/orders/{id}/history", h.History)
	mux.HandleFunc("GET /baristas/status", h.PreparersStatus)
}

func (h *TrackingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		respondError(w, r, h.logger, "summary", err, nil)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *TrackingHandler) EntryStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(r)
	if !ok {
		respondBadRequest(w, "order id must be a positive integer")
		return
	}

	result, err := h.service.EntryStatus(r.Context(), orderID)
	if err != nil {
		respondError(w, r, h.logger, "entry_status", err, map[string]interface{}{"order_id": orderID})
		return
	}

	resp := map[string]interface{}{
		"order_id":             result.OrderID,
		"status":               result.Status,
		"position":             result.Position,
		"wait_minutes":         result.WaitMinutes,
		"remaining_minutes":    result.RemainingMinutes,
		"estimated_start":      result.EstimatedStart,
		"estimated_completion": result.EstimatedCompletion,
		"assigned_preparer":    result.AssignedPreparer,
		"updated_at":           result.UpdatedAt,
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *TrackingHandler) History(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(r)
	if !ok {
		respondBadRequest(w, "order id must be a positive integer")
		return
	}

	history, err := h.service.History(r.Context(), orderID)
	if err != nil {
		respondError(w, r, h.logger, "history", err, map[string]interface{}{"order_id": orderID})
		return
	}

	resp := make([]map[string]interface{}, len(history))
	for i, log := range history {
		resp[i] = map[string]interface{}{
			"from_status": log.FromStatus,
			"status":      log.ToStatus,
			"changed_by":  log.ChangedBy,
			"note":        log.Note,
			"timestamp":   log.ChangedAt,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *TrackingHandler) Board(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Board(r.Context())
	if err != nil {
		respondError(w, r, h.logger, "board", err, nil)
		return
	}

	waiting := make([]map[string]interface{}, len(board.Waiting))
	for i, e := range board.Waiting {
		waiting[i] = map[string]interface{}{
			"order_id":             e.OrderID,
			"position":             e.Position,
			"coffee_count":         e.CoffeeCount,
			"wait_minutes":         e.WaitMinutes,
			"estimated_start":      e.EstimatedStart,
			"estimated_completion": e.EstimatedCompletion,
		}
	}

	preparing := make([]map[string]interface{}, len(board.Preparing))
	for i, e := range board.Preparing {
		preparing[i] = map[string]interface{}{
			"order_id":          e.OrderID,
			"coffee_count":      e.CoffeeCount,
			"assigned_preparer": e.AssignedPreparer,
			"elapsed_seconds":   e.ElapsedSeconds,
			"remaining_seconds": e.RemainingSeconds,
			"is_time_up":        e.IsTimeUp,
		}
	}

	ready := make([]map[string]interface{}, len(board.Ready))
	for i, e := range board.Ready {
		ready[i] = map[string]interface{}{
			"order_id":        e.OrderID,
			"coffee_count":    e.CoffeeCount,
			"ready_at":        e.ReadyAt,
			"minutes_waiting": e.MinutesWaiting,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"waiting":      waiting,
		"preparing":    preparing,
		"ready":        ready,
		"generated_at": board.GeneratedAt,
	})
}

func (h *TrackingHandler) PreparersStatus(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("request_received", "Baristas status requested", RequestID(r.Context()), nil)

	preparers, err := h.service.PreparersStatus(r.Context())
	if err != nil {
		respondError(w, r, h.logger, "baristas_status", err, nil)
		return
	}

	resp := make([]map[string]interface{}, len(preparers))
	for i, p := range preparers {
		resp[i] = map[string]interface{}{
			"name":            p.Name,
			"status":          p.Status,
			"orders_prepared": p.OrdersPrepared,
			"last_seen":       p.LastSeen,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
