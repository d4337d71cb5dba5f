package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/skill-swap/internal/models"
)

// MemoryStore keeps users and swaps in process memory. It is used by tests
// and by the "memory" driver for local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
	swaps map[string]*models.Swap
	seq   map[string]uint64
	next  uint64
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*models.User),
		swaps: make(map[string]*models.Swap),
		seq:   make(map[string]uint64),
		now:   time.Now,
	}
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.SkillsOffered = append([]string(nil), u.SkillsOffered...)
	cp.SkillsWanted = append([]string(nil), u.SkillsWanted...)
	cp.Ratings = append([]models.Rating(nil), u.Ratings...)
	return &cp
}

func cloneSwap(s *models.Swap) *models.Swap {
	cp := *s
	cp.RequesterSkills = append([]string(nil), s.RequesterSkills...)
	cp.ResponderSkills = append([]string(nil), s.ResponderSkills...)
	return &cp
}

func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return models.ErrDuplicateEmail
		}
	}
	now := m.now()
	u.ID = uuid.NewString()
	u.CreatedAt, u.UpdatedAt = now, now
	m.users[u.ID] = cloneUser(u)
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	return m.listUsers(func(*models.User) bool { return true }), nil
}

func (m *MemoryStore) ListPublicUsers(_ context.Context) ([]models.User, error) {
	return m.listUsers(func(u *models.User) bool { return u.IsPublic }), nil
}

func (m *MemoryStore) listUsers(keep func(*models.User) bool) []models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		if keep(u) {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *MemoryStore) UpdateProfile(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.users[u.ID]
	if !ok {
		return models.ErrNotFound
	}
	cur.Name = u.Name
	cur.Location = u.Location
	cur.ProfilePhoto = u.ProfilePhoto
	cur.SkillsOffered = append([]string(nil), u.SkillsOffered...)
	cur.SkillsWanted = append([]string(nil), u.SkillsWanted...)
	cur.Availability = u.Availability
	cur.IsPublic = u.IsPublic
	cur.UpdatedAt = m.now()
	u.UpdatedAt = cur.UpdatedAt
	return nil
}

func (m *MemoryStore) SetBanned(_ context.Context, id string, banned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return models.ErrNotFound
	}
	if u.IsBanned == banned {
		return models.ErrPreconditionFailed
	}
	u.IsBanned = banned
	u.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) SetProfilePhoto(_ context.Context, id, url string) error {
	return m.updateUser(id, func(u *models.User) { u.ProfilePhoto = url })
}

func (m *MemoryStore) SetRole(_ context.Context, id string, role models.Role) error {
	return m.updateUser(id, func(u *models.User) { u.Role = role })
}

func (m *MemoryStore) updateUser(id string, apply func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return models.ErrNotFound
	}
	apply(u)
	u.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) ReplaceRatings(_ context.Context, id string, ratings []models.Rating, avg float64, expectedCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return models.ErrNotFound
	}
	if len(u.Ratings) != expectedCount {
		return models.ErrPreconditionFailed
	}
	u.Ratings = append([]models.Rating(nil), ratings...)
	u.AvgRating = avg
	u.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MemoryStore) InsertSwap(_ context.Context, s *models.Swap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s.ID = uuid.NewString()
	s.CreatedAt, s.UpdatedAt = now, now
	m.swaps[s.ID] = cloneSwap(s)
	m.next++
	m.seq[s.ID] = m.next
	return nil
}

func (m *MemoryStore) GetSwap(_ context.Context, id string) (*models.Swap, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.swaps[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneSwap(s), nil
}

func (m *MemoryStore) ListSwapsByParticipant(_ context.Context, userID string) ([]models.Swap, error) {
	return m.listSwaps(func(s *models.Swap) bool {
		return s.RequesterID == userID || s.ResponderID == userID
	}), nil
}

func (m *MemoryStore) ListSwaps(_ context.Context) ([]models.Swap, error) {
	return m.listSwaps(func(*models.Swap) bool { return true }), nil
}

// listSwaps returns matching swaps newest first.
func (m *MemoryStore) listSwaps(keep func(*models.Swap) bool) []models.Swap {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Swap, 0)
	for _, s := range m.swaps {
		if keep(s) {
			out = append(out, *cloneSwap(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return m.seq[out[i].ID] > m.seq[out[j].ID]
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryStore) TransitionSwap(_ context.Context, id string, from, to models.SwapStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.swaps[id]
	if !ok {
		return models.ErrNotFound
	}
	if s.Status != from {
		return models.ErrPreconditionFailed
	}
	s.Status = to
	s.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) DeleteSwapIf(_ context.Context, id string, status models.SwapStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.swaps[id]
	if !ok {
		return models.ErrNotFound
	}
	if s.Status != status {
		return models.ErrPreconditionFailed
	}
	delete(m.swaps, id)
	delete(m.seq, id)
	return nil
}

func (m *MemoryStore) DeleteSwapsByParticipant(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, s := range m.swaps {
		if s.RequesterID == userID || s.ResponderID == userID {
			delete(m.swaps, id)
			delete(m.seq, id)
			n++
		}
	}
	return n, nil
}
