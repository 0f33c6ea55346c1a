package runtime

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/drblury/chatflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/chatflow/internal/runtime/logging"
)

// Publisher is the producer side the HTTP shim needs.
type Publisher interface {
	Publish(ctx context.Context, sender, message string) (PublishResult, error)
}

type sendRequest struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

type sendResponse struct {
	Message string        `json:"message"`
	Data    PublishResult `json:"data"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPOptions tunes the HTTP shim.
type HTTPOptions struct {
	// RequestTimeout bounds each request. Zero disables the timeout.
	RequestTimeout time.Duration
	Logger         loggingpkg.ServiceLogger
}

// NewHTTPHandler exposes POST /api/send and GET /healthz.
func NewHTTPHandler(publisher Publisher, opts HTTPOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/send", sendHandler(publisher, logger))
	})
	return r
}

func sendHandler(publisher Publisher, logger loggingpkg.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := jsoncodec.Decode(r.Body, &req); err != nil || req.Sender == "" || req.Message == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Both sender and message are required"}, logger)
			return
		}

		result, err := publisher.Publish(r.Context(), req.Sender, req.Message)
		if err != nil {
			logger.Error("Error sending message", err, loggingpkg.LogFields{
				"request_id": middleware.GetReqID(r.Context()),
				"sender":     req.Sender,
			})
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to send message"}, logger)
			return
		}

		logger.Debug("Message sent", loggingpkg.LogFields{
			"request_id":    middleware.GetReqID(r.Context()),
			"envelope_id":   result.ID,
			"partition_key": result.PartitionKey,
		})
		writeJSON(w, http.StatusOK, sendResponse{Message: "Message sent to stream", Data: result}, logger)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any, logger loggingpkg.ServiceLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := jsoncodec.Encode(w, body); err != nil {
		logger.Error("Failed to encode response", err, nil)
	}
}
