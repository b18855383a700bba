package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
	"github.com/YelzhanWeb/coffeequeue/internal/interfaces"
)

// QueueHandler exposes queue mutations and maintenance operations to staff tools.
type QueueHandler struct {
	service interfaces.QueueService
	logger  logger.Logger
}

func NewQueueHandler(service interfaces.QueueService, logger logger.Logger) *QueueHandler {
	return &QueueHandler{
		service: service,
		logger:  logger,
	}
}

func (h *QueueHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /queue/orders/{id}", h.Enqueue)
	mux.HandleFunc("POST /queue/orders/{id}/start", h.StartPreparation)
	mux.HandleFunc("POST /queue/orders/{id}/ready", h.MarkReady)
	mux.HandleFunc("POST /queue/orders/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /queue/orders/{id}/complete", h.Complete)
	mux.HandleFunc("GET /queue/orders/{id}/wait-time", h.WaitTime)

	mux.HandleFunc("GET /queue/integrity", h.VerifyIntegrity)
	mux.HandleFunc("POST /queue/reconcile", h.Reconcile)
	mux.HandleFunc("POST /queue/recompute", h.Recompute)
	mux.HandleFunc("POST /queue/reorder", h.Reorder)
}

type actionRequest struct {
	Preparer string `json:"preparer"`
	Staff    string `json:"staff"`
	Reason   string `json:"reason"`
}

// decodeAction accepts an empty body.
func decodeAction(r *http.Request) (actionRequest, error) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

type entryAction func(ctx context.Context, orderID int64, req actionRequest) (*domain.QueueEntry, error)

func (h *QueueHandler) handleEntry(action string, status int, do entryAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := orderIDFrom(r)
		if !ok {
			respondBadRequest(w, "order id must be a positive integer")
			return
		}

		req, err := decodeAction(r)
		if err != nil {
			respondBadRequest(w, "invalid request body")
			return
		}

		entry, err := do(r.Context(), orderID, req)
		if err != nil {
			respondError(w, r, h.logger, action, err, map[string]interface{}{"order_id": orderID})
			return
		}
		respondJSON(w, status, toEntryResponse(entry))
	}
}

// Enqueue answers 201 for a new entry and 200 when the order was already queued.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(r)
	if !ok {
		respondBadRequest(w, "order id must be a positive integer")
		return
	}

	entry, created, err := h.service.EnqueueOrder(r.Context(), orderID)
	if err != nil {
		respondError(w, r, h.logger, "enqueue", err, map[string]interface{}{"order_id": orderID})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, toEntryResponse(entry))
}

func (h *QueueHandler) StartPreparation(w http.ResponseWriter, r *http.Request) {
	h.handleEntry("start_preparation", http.StatusOK, func(ctx context.Context, id int64, req actionRequest) (*domain.QueueEntry, error) {
		return h.service.StartPreparation(ctx, id, req.Preparer)
	})(w, r)
}

func (h *QueueHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	h.handleEntry("mark_ready", http.StatusOK, func(ctx context.Context, id int64, req actionRequest) (*domain.QueueEntry, error) {
		return h.service.MarkReady(ctx, id, req.Staff)
	})(w, r)
}

func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.handleEntry("cancel", http.StatusOK, func(ctx context.Context, id int64, req actionRequest) (*domain.QueueEntry, error) {
		return h.service.Cancel(ctx, id, req.Reason)
	})(w, r)
}

func (h *QueueHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.handleEntry("complete", http.StatusOK, func(ctx context.Context, id int64, req actionRequest) (*domain.QueueEntry, error) {
		return h.service.Complete(ctx, id, req.Staff)
	})(w, r)
}

func (h *QueueHandler) WaitTime(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDFrom(r)
	if !ok {
		respondBadRequest(w, "order id must be a positive integer")
		return
	}

	minutes, err := h.service.GetWaitTime(r.Context(), orderID)
	if err != nil {
		respondError(w, r, h.logger, "wait_time", err, map[string]interface{}{"order_id": orderID})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"order_id":     orderID,
		"wait_minutes": minutes,
	})
}

func (h *QueueHandler) VerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.VerifyIntegrity(r.Context())
	if err != nil {
		respondError(w, r, h.logger, "verify_integrity", err, nil)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *QueueHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconcile(r.Context())
	if err != nil {
		respondError(w, r, h.logger, "reconcile", err, nil)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *QueueHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.RecomputeAllTimes(r.Context())
	if err != nil {
		respondError(w, r, h.logger, "recompute", err, nil)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *QueueHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	changed, err := h.service.Reorder(r.Context())
	if err != nil {
		respondError(w, r, h.logger, "reorder", err, nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"reordered": changed})
}
