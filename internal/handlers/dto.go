package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chepyr/calendar-planner/internal/tasks"
	"github.com/chepyr/calendar-planner/shared"
	"github.com/chepyr/calendar-planner/shared/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Title length is checked by the task service after trimming.
type createTaskRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description" validate:"max=1000"`
	CreatedDate *string `json:"createdDate"`
}

// replaceTaskRequest fields left out of the body keep their stored value.
type replaceTaskRequest struct {
	ID          *int64  `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description" validate:"omitnil,max=1000"`
	IsCompleted *bool   `json:"isCompleted"`
	CreatedDate *string `json:"createdDate"`
}

type registerRequest struct {
	UserName    string `json:"userName" validate:"required,max=50"`
	DisplayName string `json:"displayName" validate:"required,max=100"`
	Password    string `json:"password" validate:"required,min=6,max=100"`
	Email       string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	UserName string `json:"userName" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type taskResponse struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	IsCompleted   bool    `json:"isCompleted"`
	CreatedDate   string  `json:"createdDate"`
	CompletedDate *string `json:"completedDate,omitempty"`
}

func newTaskResponse(t *models.Task, loc *time.Location) taskResponse {
	out := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		IsCompleted: t.IsCompleted,
		CreatedDate: t.CreatedDate.In(loc).Format(time.RFC3339),
	}
	if t.CompletedDate != nil {
		completed := t.CompletedDate.In(loc).Format(time.RFC3339)
		out.CompletedDate = &completed
	}
	return out
}

func newTaskListResponse(list []models.Task, loc *time.Location) []taskResponse {
	out := make([]taskResponse, 0, len(list))
	for i := range list {
		out = append(out, newTaskResponse(&list[i], loc))
	}
	return out
}

// decodeJSON reads a capped body into dst and validates it. It writes the
// error response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.SendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		shared.SendError(w, validationMessage(err), http.StatusBadRequest)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "Invalid request"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// optionalTimestamp parses an optional wire timestamp; nil or "" yields nil.
func optionalTimestamp(s *string, loc *time.Location) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := tasks.ParseTimestamp(*s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
