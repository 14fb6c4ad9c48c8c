package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chepyr/calendar-planner/internal/auth"
	"github.com/chepyr/calendar-planner/internal/db"
	"github.com/chepyr/calendar-planner/internal/tasks"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2024, 3, 20, 8, 30, 0, 0, time.UTC)

type testEnv struct {
	handler *Handler
	mux     http.Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupHandler wires the full stack over an in-memory sqlite database.
func setupHandler(t *testing.T, withAuth bool) *testEnv {
	t.Helper()
	return setupHandlerInZone(t, withAuth, time.UTC)
}

func setupHandlerInZone(t *testing.T, withAuth bool, loc *time.Location) *testEnv {
	t.Helper()

	dbx, err := db.Connect(db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = dbx.Close() })
	if err := db.Migrate(context.Background(), dbx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := discardLogger()
	taskRepo := db.NewTaskRepository(dbx)
	h := &Handler{
		Tasks:         tasks.NewService(taskRepo, loc, tasks.WithClock(func() time.Time { return testNow })),
		DB:            taskRepo,
		RateLimiter:   NewRateLimiter(100, time.Minute),
		WSHub:         NewWSHub(log),
		Log:           log,
		Timeout:       5 * time.Second,
		DefaultUserID: "default-user",
	}
	t.Cleanup(h.RateLimiter.Stop)
	t.Cleanup(h.WSHub.Close)

	if withAuth {
		tokens := auth.NewTokenManager(testSecret, "calendar-planner", "calendar-planner-web", time.Hour)
		h.Auth = auth.NewService(db.NewUserRepository(dbx), auth.NewPasswordHasher(bcrypt.MinCost), tokens)
	}

	return &testEnv{handler: h, mux: h.Routes()}
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// register creates a user through the API and returns its token.
func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	body := `{"userName":"` + username + `","displayName":"` + username + `","password":"secret123","email":"` + username + `@example.com"}`
	rec := e.do(t, http.MethodPost, "/api/auth/register", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status=%d body=%s", username, rec.Code, rec.Body.String())
	}
	var session auth.Session
	decodeBody(t, rec, &session)
	return session.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error
}
