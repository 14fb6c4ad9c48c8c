package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/chepyr/calendar-planner/shared"
	"github.com/chepyr/calendar-planner/shared/models"
)

type mockUserStore struct {
	users     map[string]*models.User
	createErr error
	getErr    error
	mutex     sync.Mutex
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]*models.User)}
}

func (m *mockUserStore) Create(_ context.Context, user *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Username]; exists {
		return fmt.Errorf("user %q: %w", user.Username, shared.ErrConflict)
	}
	m.users[user.Username] = user
	return nil
}

func (m *mockUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	user, exists := m.users[username]
	if !exists {
		return nil, fmt.Errorf("user %q: %w", username, shared.ErrNotFound)
	}
	return user, nil
}

func (m *mockUserStore) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, exists := m.users[username]
	return exists, m.getErr
}

func (m *mockUserStore) EmailExists(_ context.Context, email string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, m.getErr
		}
	}
	return false, m.getErr
}
