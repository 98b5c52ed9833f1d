package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taehoonk/forecast-push-service/internal/audit"
	"github.com/taehoonk/forecast-push-service/internal/models"
	"github.com/taehoonk/forecast-push-service/internal/profile"
	"github.com/taehoonk/forecast-push-service/internal/topic"
)

// HealthPings holds the reachability checks the health endpoint runs.
// Nil entries are skipped, e.g. LockPing when the in-memory locker is used.
type HealthPings struct {
	StorePing func() error
	LockPing  func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	profiles *profile.Service
	sink     audit.Sink
	pings    HealthPings
	logger   *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(profiles *profile.Service, sink audit.Sink, pings HealthPings, logger *zap.Logger) *Handler {
	return &Handler{
		profiles: profiles,
		sink:     sink,
		pings:    pings,
		logger:   logger,
	}
}

// PostUser handles POST /users?id={id}. It upserts the profile and, when
// the profile names a location, registers it for the forecast crawl.
// Every failure returns 404 with a message body, matching the contract
// the mobile client was built against.
func (h *Handler) PostUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" || !topic.CheckPathName(id) {
		writeError(w, r, http.StatusNotFound, "INVALID_USER_ID", "user id is missing or not a valid key")
		return
	}

	var p models.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, r, http.StatusNotFound, "INVALID_PAYLOAD", "request body is not a valid profile")
		return
	}
	p.ID = id

	if err := h.profiles.Save(r.Context(), p); err != nil {
		h.requestLogger(r).Error("profile save failed",
			zap.String("userID", id),
			zap.Error(err))
		writeError(w, r, http.StatusNotFound, "STORE_FAILURE", "unable to save profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "id": id})
}

// PostAnalyticsEvent handles POST /analytics/{kind} for app-activity and
// sunscreen-scan. The payload is forwarded to the warehouse sink verbatim.
func (h *Handler) PostAnalyticsEvent(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, r, http.StatusNotFound, "INVALID_PAYLOAD", "request body is not valid JSON")
			return
		}

		event := audit.Event{
			Kind:       kind,
			ReceivedAt: time.Now().UTC(),
			Payload:    payload,
		}
		if err := h.sink.RecordEvent(r.Context(), event); err != nil {
			h.requestLogger(r).Error("analytics event rejected",
				zap.String("kind", kind),
				zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "SINK_FAILURE", "unable to record event")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "recorded", "kind": kind})
	}
}

// GetHealth handles GET /health. The service is healthy when every
// configured backend answers its ping.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := make(map[string]string)

	if h.pings.StorePing != nil {
		if err := h.pings.StorePing(); err != nil {
			checks["store"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["store"] = "healthy"
		}
	}
	if h.pings.LockPing != nil {
		if err := h.pings.LockPing(); err != nil {
			checks["lock"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["lock"] = "healthy"
		}
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "forecast-push-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) requestLogger(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return h.logger
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with
// code, message, and requestId (correlation ID) if available in context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
