package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
	"github.com/YelzhanWeb/coffeequeue/internal/domain"
)

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

var statusByKind = map[string]int{
	"not_found":           http.StatusNotFound,
	"invalid_transition":  http.StatusConflict,
	"already_exists":      http.StatusConflict,
	"not_eligible":        http.StatusUnprocessableEntity,
	"transient_store":     http.StatusServiceUnavailable,
	"integrity_violation": http.StatusInternalServerError,
	"config":              http.StatusInternalServerError,
	"internal":            http.StatusInternalServerError,
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, r *http.Request, log logger.Logger, action string, err error, data map[string]interface{}) {
	failure := domain.Describe(err, data)
	status := statusByKind[failure.Kind]

	if status >= http.StatusInternalServerError {
		log.Error(action, "Request failed", RequestID(r.Context()), data, err)
	} else {
		log.Debug(action, failure.Message, RequestID(r.Context()), data)
	}

	respondJSON(w, status, ErrorResponse{Error: failure.Kind, Message: failure.Message, Data: failure.Data})
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: message})
}

func orderIDFrom(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type entryResponse struct {
	OrderID             int64              `json:"order_id"`
	Status              domain.QueueStatus `json:"status"`
	Position            int                `json:"position"`
	CoffeeCount         int                `json:"coffee_count"`
	PreparationMinutes  int                `json:"preparation_minutes"`
	EstimatedStart      *time.Time         `json:"estimated_start,omitempty"`
	EstimatedCompletion *time.Time         `json:"estimated_completion,omitempty"`
	ActualStart         *time.Time         `json:"actual_start,omitempty"`
	ActualCompletion    *time.Time         `json:"actual_completion,omitempty"`
	AssignedPreparer    *string            `json:"assigned_preparer,omitempty"`
	CancelReason        *string            `json:"cancel_reason,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

func toEntryResponse(e *domain.QueueEntry) entryResponse {
	return entryResponse{
		OrderID:             e.OrderID,
		Status:              e.Status,
		Position:            e.Position,
		CoffeeCount:         e.CoffeeCount,
		PreparationMinutes:  e.PreparationMinutes,
		EstimatedStart:      e.EstimatedStart,
		EstimatedCompletion: e.EstimatedCompletion,
		ActualStart:         e.ActualStart,
		ActualCompletion:    e.ActualCompletion,
		AssignedPreparer:    e.AssignedPreparer,
		CancelReason:        e.CancelReason,
		UpdatedAt:           e.UpdatedAt,
	}
}
