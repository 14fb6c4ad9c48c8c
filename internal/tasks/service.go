package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chepyr/calendar-planner/shared"
	"github.com/chepyr/calendar-planner/shared/models"
)

// Store is the persistence the service needs. Every lookup is scoped by
// user id; a task owned by someone else must come back as shared.ErrNotFound.
type Store interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, userID string, id int64) (*models.Task, error)
	ListByUserID(ctx context.Context, userID string) ([]models.Task, error)
	ListInRange(ctx context.Context, userID string, from, to time.Time) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, userID string, id int64) error
}

type CreateInput struct {
	Title       string
	Description string
	// zero value, or the 0001-01-01 sentinel in any zone, means "now"
	CreatedDate time.Time
}

// ReplaceInput carries the fields of a replace. Nil fields keep the stored value.
type ReplaceInput struct {
	Title       *string
	Description *string
	IsCompleted *bool
	CreatedDate *time.Time
}

type Service struct {
	store    Store
	location *time.Location
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, used for completion and default creation stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the task service. Day and month windows are computed in loc.
func NewService(store Store, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{store: store, location: loc, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location {
	return s.location
}

func (s *Service) List(ctx context.Context, userID string) ([]models.Task, error) {
	return s.store.ListByUserID(ctx, userID)
}

// ListByDate returns the tasks created on the calendar day named by date.
func (s *Service) ListByDate(ctx context.Context, userID, date string) ([]models.Task, error) {
	t, err := ParseTimestamp(date, s.location)
	if err != nil {
		return nil, err
	}
	from := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location)
	return s.store.ListInRange(ctx, userID, from, from.AddDate(0, 0, 1))
}

func (s *Service) ListByMonth(ctx context.Context, userID string, year, month int) ([]models.Task, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", shared.ErrValidation)
	}
	if year < 1 || year > 9999 {
		return nil, fmt.Errorf("%w: year must be between 1 and 9999", shared.ErrValidation)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.location)
	return s.store.ListInRange(ctx, userID, from, from.AddDate(0, 1, 0))
}

func (s *Service) Get(ctx context.Context, userID string, id int64) (*models.Task, error) {
	return s.store.GetByID(ctx, userID, id)
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*models.Task, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := checkDescription(in.Description); err != nil {
		return nil, err
	}

	created := in.CreatedDate
	if unsetDate(created) {
		created = s.now()
	}
	task := &models.Task{
		UserID:      userID,
		Title:       title,
		Description: in.Description,
		CreatedDate: created,
	}
	if err := s.store.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// CreateMany validates every draft before storing any of them.
func (s *Service) CreateMany(ctx context.Context, userID string, in []CreateInput) ([]models.Task, error) {
	for i := range in {
		title, err := normalizeTitle(in[i].Title)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		if err := checkDescription(in[i].Description); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		in[i].Title = title
	}

	created := make([]models.Task, 0, len(in))
	for _, draft := range in {
		task, err := s.Create(ctx, userID, draft)
		if err != nil {
			return created, err
		}
		created = append(created, *task)
	}
	return created, nil
}

func (s *Service) Replace(ctx context.Context, userID string, id int64, in ReplaceInput) (*models.Task, error) {
	task, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title, err := normalizeTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		task.Title = title
	}
	if in.Description != nil {
		if err := checkDescription(*in.Description); err != nil {
			return nil, err
		}
		task.Description = *in.Description
	}
	if in.CreatedDate != nil && !unsetDate(*in.CreatedDate) {
		task.CreatedDate = *in.CreatedDate
	}
	if in.IsCompleted != nil {
		task.SetCompleted(*in.IsCompleted, s.now())
	}

	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) ToggleComplete(ctx context.Context, userID string, id int64) (*models.Task, error) {
	task, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	task.SetCompleted(!task.IsCompleted, s.now())
	if err := s.store.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes the task and returns it as it was before removal.
func (s *Service) Delete(ctx context.Context, userID string, id int64) (*models.Task, error) {
	task, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return nil, err
	}
	return task, nil
}

// unsetDate reports whether t is the 0001-01-01T00:00:00 placeholder clients
// send for "no date", in whatever location it was parsed.
func unsetDate(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	return y == 1 && m == time.January && d == 1 && hh == 0 && mm == 0 && ss == 0 && t.Nanosecond() == 0
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", shared.ErrValidation)
	}
	if utf8.RuneCountInString(title) > models.TitleMaxLength {
		return "", fmt.Errorf("%w: title too long (max %d chars)", shared.ErrValidation, models.TitleMaxLength)
	}
	return title, nil
}

func checkDescription(desc string) error {
	if utf8.RuneCountInString(desc) > models.DescriptionMaxLength {
		return fmt.Errorf("%w: description too long (max %d chars)", shared.ErrValidation, models.DescriptionMaxLength)
	}
	return nil
}
