package http

import (
	"net/http"

	"github.com/YelzhanWeb/coffeequeue/internal/adapter/logger"
)

func NewRouter(queue *QueueHandler, tracking *TrackingHandler, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	queue.Register(mux)
	tracking.Register(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return Chain(mux, RecoveryMiddleware(log), LoggingMiddleware(log))
}
