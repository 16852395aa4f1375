package service

import (
	"context"
	"errors"
	"sync"

	"github.com/BhargavRaval15/url-shortner/internal/model"
	"github.com/BhargavRaval15/url-shortner/internal/repository"
	"github.com/google/uuid"
)

// fixedCodes hands out codes in order and then repeats the last one
type fixedCodes struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (f *fixedCodes) Generate() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.codes) {
		i = len(f.codes) - 1
	}
	f.calls++
	return f.codes[i], nil
}

// raceStore reports every code as free but rejects inserts of taken
// codes, the way a unique index behaves when a concurrent insert wins
// between the check and the write.
type raceStore struct {
	repository.LinkStore
	mu    sync.Mutex
	taken map[string]bool
	err   error
}

func (s *raceStore) ExistsByCode(context.Context, string) (bool, error) {
	return false, s.err
}

func (s *raceStore) Create(_ context.Context, link *model.Link) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken[link.ShortCode] {
		return repository.ErrCodeConflict
	}
	s.taken[link.ShortCode] = true
	link.ID = uuid.New()
	return nil
}

// recordedClicks collects events handed to the recorder
type recordedClicks struct {
	mu     sync.Mutex
	events []model.ClickEvent
}

func (r *recordedClicks) Record(event model.ClickEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return true
}

func (r *recordedClicks) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// memoryUsers is an in-memory UserStore
type memoryUsers struct {
	mu      sync.Mutex
	byEmail map[string]*model.User
	fail    error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byEmail: make(map[string]*model.User)}
}

func (m *memoryUsers) Create(_ context.Context, email, hash string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	if _, ok := m.byEmail[email]; ok {
		return nil, repository.ErrEmailTaken
	}
	u := &model.User{ID: uuid.New(), Email: email, PasswordHash: hash}
	m.byEmail[email] = u
	return u, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (m *memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryUsers) remove(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byEmail, email)
}

var errStoreDown = errors.New("connection refused")
