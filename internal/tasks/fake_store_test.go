package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chepyr/calendar-planner/shared"
	"github.com/chepyr/calendar-planner/shared/models"
)

type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]models.Task

	// when set, every call fails with it
	err error
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, tasks: make(map[int64]models.Task)}
}

func cloneTask(t models.Task) models.Task {
	out := t
	if t.CompletedDate != nil {
		completed := *t.CompletedDate
		out.CompletedDate = &completed
	}
	return out
}

func (f *fakeStore) Create(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	task.ID = f.nextID
	f.nextID++
	f.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, userID string, id int64) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	task, ok := f.tasks[id]
	if !ok || task.UserID != userID {
		return nil, fmt.Errorf("task %d: %w", id, shared.ErrNotFound)
	}
	out := cloneTask(task)
	return &out, nil
}

func (f *fakeStore) ListByUserID(_ context.Context, userID string) ([]models.Task, error) {
	return f.list(userID, func(models.Task) bool { return true })
}

func (f *fakeStore) ListInRange(_ context.Context, userID string, from, to time.Time) ([]models.Task, error) {
	return f.list(userID, func(t models.Task) bool {
		return !t.CreatedDate.Before(from) && t.CreatedDate.Before(to)
	})
}

func (f *fakeStore) list(userID string, keep func(models.Task) bool) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Task{}
	for _, t := range f.tasks {
		if t.UserID == userID && keep(t) {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedDate.Equal(out[j].CreatedDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedDate.Before(out[j].CreatedDate)
	})
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, task *models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cur, ok := f.tasks[task.ID]
	if !ok || cur.UserID != task.UserID {
		return fmt.Errorf("task %d: %w", task.ID, shared.ErrNotFound)
	}
	f.tasks[task.ID] = cloneTask(*task)
	return nil
}

func (f *fakeStore) Delete(_ context.Context, userID string, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cur, ok := f.tasks[id]
	if !ok || cur.UserID != userID {
		return fmt.Errorf("task %d: %w", id, shared.ErrNotFound)
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

var errStoreDown = errors.New("connection refused")
