package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chepyr/calendar-planner/internal/auth"
	"github.com/chepyr/calendar-planner/internal/tasks"
	"github.com/chepyr/calendar-planner/shared"
)

const maxBodyBytes = 1 << 20 // 1MB

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Tasks *tasks.Service
	// nil when auth is disabled; every request then acts as DefaultUserID
	Auth          *auth.Service
	DB            Pinger
	RateLimiter   *RateLimiter
	WSHub         *WSHub
	Log           *slog.Logger
	Timeout       time.Duration
	DefaultUserID string
	// empty allows every origin
	AllowedOrigins []string
}

// Routes registers every endpoint. /api/todos mirrors /api/events for
// older clients.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /api/ping", h.Ping)

	for _, prefix := range []string{"/api/events", "/api/todos"} {
		mux.HandleFunc("GET "+prefix, h.AuthMiddleware(h.ListTasks))
		mux.HandleFunc("POST "+prefix, h.AuthMiddleware(h.CreateTask))
		mux.HandleFunc("GET "+prefix+"/{id}", h.AuthMiddleware(h.GetTask))
		mux.HandleFunc("PUT "+prefix+"/{id}", h.AuthMiddleware(h.ReplaceTask))
		mux.HandleFunc("DELETE "+prefix+"/{id}", h.AuthMiddleware(h.DeleteTask))
		mux.HandleFunc("PATCH "+prefix+"/{id}/complete", h.AuthMiddleware(h.ToggleTask))
		mux.HandleFunc("GET "+prefix+"/date/{date}", h.AuthMiddleware(h.ListTasksByDate))
		mux.HandleFunc("GET "+prefix+"/month/{year}/{month}", h.AuthMiddleware(h.ListTasksByMonth))
		mux.HandleFunc("GET "+prefix+"/calendar.ics", h.AuthMiddleware(h.ExportCalendar))
		mux.HandleFunc("POST "+prefix+"/import", h.AuthMiddleware(h.ImportCalendar))
		mux.HandleFunc("GET "+prefix+"/ws", h.WSAuthMiddleware(h.HandleWebSocket))
	}

	if h.Auth != nil {
		mux.HandleFunc("POST /api/auth/register", h.Register)
		mux.HandleFunc("POST /api/auth/login", h.Login)
		mux.HandleFunc("GET /api/auth/verify", h.Verify)
	}

	return h.AccessLog(mux)
}

func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	shared.SendJSON(w, "API is running", http.StatusOK)
}

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.DB.Ping(ctx); err != nil {
		h.Log.Warn("ping failed", "service", "db", "error", err)
		status, code = "down", http.StatusServiceUnavailable
	}
	shared.SendJSON(w, map[string]any{"services": map[string]string{"db": status}}, code)
}

func (h *Handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if h.Timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.Timeout)
}

// writeError is the only place service errors become status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrConflict):
		shared.SendError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, shared.ErrNotFound):
		shared.SendError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, shared.ErrUnauthorized):
		shared.SendError(w, err.Error(), http.StatusUnauthorized)
	default:
		h.Log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		shared.SendError(w, "internal error", http.StatusInternalServerError)
	}
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
