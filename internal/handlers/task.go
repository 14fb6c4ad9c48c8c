package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/chepyr/calendar-planner/internal/tasks"
	"github.com/chepyr/calendar-planner/shared"
)

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	list, err := h.Tasks.List(ctx, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.SendJSON(w, newTaskListResponse(list, h.Tasks.Location()), http.StatusOK)
}

func (h *Handler) ListTasksByDate(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	list, err := h.Tasks.ListByDate(ctx, userID, r.PathValue("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.SendJSON(w, newTaskListResponse(list, h.Tasks.Location()), http.StatusOK)
}

func (h *Handler) ListTasksByMonth(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		shared.SendError(w, "year must be a number", http.StatusBadRequest)
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		shared.SendError(w, "month must be a number", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	list, err := h.Tasks.ListByMonth(ctx, userID, year, month)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.SendJSON(w, newTaskListResponse(list, h.Tasks.Location()), http.StatusOK)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := parseID(r)
	if !ok {
		shared.SendError(w, "id must be a positive integer", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	task, err := h.Tasks.Get(ctx, userID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shared.SendJSON(w, newTaskResponse(task, h.Tasks.Location()), http.StatusOK)
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var input createTaskRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	created, err := optionalTimestamp(input.CreatedDate, h.Tasks.Location())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	in := tasks.CreateInput{Title: input.Title, Description: input.Description}
	if created != nil {
		in.CreatedDate = *created
	}
	task, err := h.Tasks.Create(ctx, userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.WSHub.Broadcast(userID, EventTaskCreated, task.ID)
	w.Header().Set("Location", basePath(r)+"/"+strconv.FormatInt(task.ID, 10))
	shared.SendJSON(w, newTaskResponse(task, h.Tasks.Location()), http.StatusCreated)
}

func (h *Handler) ReplaceTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := parseID(r)
	if !ok {
		shared.SendError(w, "id must be a positive integer", http.StatusBadRequest)
		return
	}

	var input replaceTaskRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.ID != nil && *input.ID != id {
		shared.SendError(w, "id in body does not match id in path", http.StatusBadRequest)
		return
	}
	created, err := optionalTimestamp(input.CreatedDate, h.Tasks.Location())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	task, err := h.Tasks.Replace(ctx, userID, id, tasks.ReplaceInput{
		Title:       input.Title,
		Description: input.Description,
		IsCompleted: input.IsCompleted,
		CreatedDate: created,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.WSHub.Broadcast(userID, EventTaskUpdated, task.ID)
	shared.SendJSON(w, newTaskResponse(task, h.Tasks.Location()), http.StatusOK)
}

func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := parseID(r)
	if !ok {
		shared.SendError(w, "id must be a positive integer", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	task, err := h.Tasks.ToggleComplete(ctx, userID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.WSHub.Broadcast(userID, EventTaskUpdated, task.ID)
	shared.SendJSON(w, newTaskResponse(task, h.Tasks.Location()), http.StatusOK)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := parseID(r)
	if !ok {
		shared.SendError(w, "id must be a positive integer", http.StatusBadRequest)
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	task, err := h.Tasks.Delete(ctx, userID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.WSHub.Broadcast(userID, EventTaskDeleted, task.ID)
	shared.SendJSON(w, newTaskResponse(task, h.Tasks.Location()), http.StatusOK)
}

// basePath is /api/events or /api/todos, whichever the client called.
func basePath(r *http.Request) string {
	if strings.HasPrefix(r.URL.Path, "/api/todos") {
		return "/api/todos"
	}
	return "/api/events"
}
