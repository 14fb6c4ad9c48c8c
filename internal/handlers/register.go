package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/chepyr/calendar-planner/internal/auth"
	"github.com/chepyr/calendar-planner/shared"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allowAttempt(w, r) {
		shared.SendError(w, "Too many register attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input registerRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	session, err := h.Auth.Register(ctx, auth.RegisterInput{
		Username:    input.UserName,
		DisplayName: input.DisplayName,
		Password:    input.Password,
		Email:       input.Email,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.Log.Info("user registered", "username", session.Username)
	shared.SendJSON(w, session, http.StatusOK)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.allowAttempt(w, r) {
		shared.SendError(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input loginRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	session, err := h.Auth.Login(ctx, input.UserName, input.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.Log.Info("user logged in", "username", session.Username)
	shared.SendJSON(w, session, http.StatusOK)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Auth.Verify(r.Context(), bearerToken(r))
	if err != nil {
		shared.SendError(w, "Invalid token", http.StatusUnauthorized)
		return
	}
	shared.SendJSON(w, claims, http.StatusOK)
}

// allowAttempt applies the per-IP limit and sets Retry-After when it refuses.
func (h *Handler) allowAttempt(w http.ResponseWriter, r *http.Request) bool {
	if h.RateLimiter == nil {
		return true
	}
	ip := clientIP(r)
	if h.RateLimiter.Allow(ip) {
		return true
	}
	h.Log.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
	secs := int(math.Ceil(h.RateLimiter.RetryAfter().Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
	return false
}
