package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/chepyr/calendar-planner/shared"
)

type userIDKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the owner resolved by AuthMiddleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}

/*
Resolve the calling user and put its id into the request context.
With auth disabled every request belongs to DefaultUserID.
*/
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return h.authenticate(next, false)
}

// WSAuthMiddleware also accepts ?access_token=, browsers cannot set
// headers on a WebSocket handshake.
func (h *Handler) WSAuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return h.authenticate(next, true)
}

func (h *Handler) authenticate(next http.HandlerFunc, allowQuery bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Auth == nil {
			next(w, r.WithContext(withUserID(r.Context(), h.DefaultUserID)))
			return
		}

		token := bearerToken(r)
		if token == "" && allowQuery {
			token = r.URL.Query().Get("access_token")
		}
		if token == "" {
			shared.SendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := h.Auth.Verify(r.Context(), token)
		if err != nil {
			h.Log.Debug("token rejected", "path", r.URL.Path, "error", err)
			shared.SendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(withUserID(r.Context(), claims.UserID)))
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
