package users

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu   sync.RWMutex
	byID map[string]User
}

func NewInMemoryStore() Store { return &memoryStore{byID: map[string]User{}} }

func (m *memoryStore) Get(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *memoryStore) GetByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.byID {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memoryStore) List(_ context.Context, role Role) ([]User, error) {
	m.mu.RLock()
	out := make([]User, 0, len(m.byID))
	for _, u := range m.byID {
		if role == "" || u.Role == role {
			out = append(out, copyUser(u))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *memoryStore) BulkUpsert(_ context.Context, rows []Row) (UpsertResult, error) {
	var res UpsertResult
	m.mu.Lock()
	defer m.mu.Unlock()

	// all or nothing, like the SQL transaction
	next := make(map[string]User, len(m.byID))
	for k, v := range m.byID {
		next[k] = v
	}
	now := time.Now().UTC()
	for _, raw := range rows {
		r, role, hash, err := normalize(raw)
		if err != nil {
			return UpsertResult{}, err
		}
		if cur, ok := findIn(next, r.ID, r.Username); ok {
			if r.ID != "" && r.ID != cur.ID {
				return UpsertResult{}, fmt.Errorf("%w: username %s belongs to %s", ErrInvalid, r.Username, cur.ID)
			}
			cur.Username, cur.Name, cur.Email, cur.Role = r.Username, r.Name, r.Email, role
			if hash != "" {
				cur.PasswordHash = hash
			}
			next[cur.ID] = cur
			res.Updated++
			continue
		}
		if hash == "" {
			return UpsertResult{}, fmt.Errorf("%w: password required for new user %s", ErrInvalid, r.Username)
		}
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		next[id] = User{ID: id, Username: r.Username, Name: r.Name, Email: r.Email, Role: role, PasswordHash: hash, CreatedAt: now}
		res.Inserted++
	}
	m.byID = next
	return res, nil
}

func (m *memoryStore) SetRole(_ context.Context, id string, role Role) error {
	return m.update(id, func(u *User) { u.Role = role })
}

func (m *memoryStore) SetPasswordHash(_ context.Context, id, hash string) error {
	return m.update(id, func(u *User) { u.PasswordHash = hash })
}

func (m *memoryStore) CountByRole(_ context.Context, role Role) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.byID {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) IsStep1Locked(_ context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[userID].Step1Locked(), nil
}

func (m *memoryStore) SetStep1Locked(_ context.Context, userID string, at *time.Time) error {
	return m.update(userID, func(u *User) {
		if at == nil {
			u.Step1LockedAt = nil
			return
		}
		t := *at
		u.Step1LockedAt = &t
	})
}

func (m *memoryStore) update(id string, fn func(u *User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	m.byID[id] = u
	return nil
}

func findIn(all map[string]User, id, username string) (User, bool) {
	if u, ok := all[id]; ok && id != "" {
		return u, true
	}
	for _, u := range all {
		if u.Username == username {
			return u, true
		}
	}
	return User{}, false
}

func copyUser(u User) User {
	if u.Step1LockedAt != nil {
		t := *u.Step1LockedAt
		u.Step1LockedAt = &t
	}
	return u
}
