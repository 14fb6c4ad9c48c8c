package models

import "time"

const (
	TitleMaxLength       = 200
	DescriptionMaxLength = 1000
)

// Task is the single persisted work item. The calendar view calls it an
// event, the list view a todo.
type Task struct {
	ID            int64      `db:"id"`
	UserID        string     `db:"user_id"`
	Title         string     `db:"title"`
	Description   string     `db:"description"`
	IsCompleted   bool       `db:"is_completed"`
	CreatedDate   time.Time  `db:"created_date"`
	CompletedDate *time.Time `db:"completed_date"`
}

// SetCompleted moves the task to the given completion state and keeps
// CompletedDate in step: set to now on false->true, cleared on true->false.
func (t *Task) SetCompleted(completed bool, now time.Time) {
	switch {
	case completed && !t.IsCompleted:
		t.CompletedDate = &now
	case !completed:
		t.CompletedDate = nil
	}
	t.IsCompleted = completed
}
