package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/chepyr/calendar-planner/internal/calendar"
	"github.com/chepyr/calendar-planner/shared"
)

func (h *Handler) ExportCalendar(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	list, err := h.Tasks.List(ctx, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(calendar.Export(list, time.Now())))
}

func (h *Handler) ImportCalendar(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.SendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		shared.SendError(w, "Cannot read request body", http.StatusBadRequest)
		return
	}
	drafts, err := calendar.Parse(bytes.NewReader(body), h.Tasks.Location())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	created, err := h.Tasks.CreateMany(ctx, userID, drafts)
	for _, task := range created {
		h.WSHub.Broadcast(userID, EventTaskCreated, task.ID)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.SendJSON(w, newTaskListResponse(created, h.Tasks.Location()), http.StatusCreated)
}
