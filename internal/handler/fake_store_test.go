package handler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/marketplace-backend/internal/model"
	"github.com/iliyamo/marketplace-backend/internal/repository"
	"github.com/iliyamo/marketplace-backend/internal/utils"
)

// fakeStore is an in-memory stand-in for the MySQL repositories. It
// implements the same store interfaces with the same observable
// semantics — single active session, single default role, conditional
// reset consumption — so handler tests can assert the flows end to end.
type fakeStore struct {
	mu       sync.Mutex
	nextID   uint64
	users    map[uint64]*model.User
	byEmail  map[string]uint64
	assigns  map[uint64][]model.RoleAssignment
	sessions []*fakeSession
	changes  []model.PasswordChange
}

type fakeSession struct {
	userID  uint64
	hash    string
	active  bool
	expires time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[uint64]*model.User{},
		byEmail: map[string]uint64{},
		assigns: map[uint64][]model.RoleAssignment{},
	}
}

var (
	_ repository.UserStore      = (*fakeStore)(nil)
	_ repository.RoleStore      = (*fakeStore)(nil)
	_ repository.SessionStore   = (*fakeStore)(nil)
	_ repository.ChangeLogStore = (*fakeStore)(nil)
)

func (f *fakeStore) CreateAccount(_ context.Context, acc repository.NewAccount, issue repository.TokenFunc) (model.User, utils.SignedToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(acc.Email))
	if _, ok := f.byEmail[email]; ok {
		return model.User{}, utils.SignedToken{}, repository.ErrEmailExists
	}
	f.nextID++
	hash := acc.PasswordHash
	u := &model.User{
		ID:           f.nextID,
		Email:        email,
		PasswordHash: &hash,
		FirstName:    acc.FirstName,
		LastName:     acc.LastName,
		DisplayName:  acc.DisplayName,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	f.users[u.ID] = u
	f.byEmail[email] = u.ID
	f.assigns[u.ID] = []model.RoleAssignment{{UserID: u.ID, RoleID: acc.Role, IsDefault: true}}

	tok, err := issue(*u)
	if err != nil {
		return model.User{}, utils.SignedToken{}, err
	}
	f.startSessionLocked(u.ID, tok.Hash, tok.Exp)
	return *u, tok, nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return *f.users[id], nil
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return *u, nil
}

func (f *fakeStore) UpsertOAuth(_ context.Context, p repository.OAuthProfile) (model.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if id, ok := f.byEmail[email]; ok {
		u := f.users[id]
		if u.AvatarURL == nil && p.AvatarURL != nil {
			u.AvatarURL = p.AvatarURL
		}
		return *u, false, nil
	}
	f.nextID++
	u := &model.User{
		ID:            f.nextID,
		Email:         email,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		AvatarURL:     p.AvatarURL,
		EmailVerified: true,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	f.users[u.ID] = u
	f.byEmail[email] = u.ID
	f.assigns[u.ID] = []model.RoleAssignment{{UserID: u.ID, RoleID: model.RoleCustomer, IsDefault: true}}
	return *u, true, nil
}

func (f *fakeStore) SetResetCode(_ context.Context, userID uint64, code string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.ResetCode = &code
	u.ResetCodeExpires = &expires
	return nil
}

func (f *fakeStore) FindByResetCode(_ context.Context, code string, now time.Time) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ResetCode != nil && *u.ResetCode == code &&
			u.ResetCodeExpires != nil && u.ResetCodeExpires.After(now) {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrInvalidResetCode
}

func (f *fakeStore) CompleteReset(_ context.Context, userID uint64, code, oldHash, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrInvalidResetCode
	}
	if u.ResetCode == nil || *u.ResetCode != code ||
		u.ResetCodeExpires == nil || !u.ResetCodeExpires.After(time.Now().UTC()) {
		return repository.ErrInvalidResetCode
	}
	u.PasswordHash = &newHash
	u.ResetCode = nil
	u.ResetCodeExpires = nil
	f.changes = append(f.changes, model.PasswordChange{
		ID: uint64(len(f.changes) + 1), UserID: userID,
		OldHash: oldHash, NewHash: newHash, ChangedAt: time.Now().UTC(),
	})
	for _, s := range f.sessions {
		if s.userID == userID {
			s.active = false
		}
	}
	return nil
}

func (f *fakeStore) ChangePassword(_ context.Context, userID uint64, oldHash, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = &newHash
	f.changes = append(f.changes, model.PasswordChange{
		ID: uint64(len(f.changes) + 1), UserID: userID,
		OldHash: oldHash, NewHash: newHash, ChangedAt: time.Now().UTC(),
	})
	return nil
}

func (f *fakeStore) Catalog(_ context.Context) ([]model.Role, error) {
	return model.Roles(), nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID uint64) ([]model.RoleAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.RoleAssignment, len(f.assigns[userID]))
	copy(out, f.assigns[userID])
	return out, nil
}

func (f *fakeStore) SwitchDefault(_ context.Context, userID uint64, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	assigns := f.assigns[userID]
	idx := -1
	for i, a := range assigns {
		if a.RoleID == role {
			idx = i
		}
	}
	if idx == -1 {
		return repository.ErrRoleNotAssociated
	}
	if assigns[idx].IsDefault {
		return repository.ErrAlreadyDefault
	}
	for i := range assigns {
		assigns[i].IsDefault = false
	}
	assigns[idx].IsDefault = true
	return nil
}

func (f *fakeStore) Start(_ context.Context, userID uint64, tokenHash string, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startSessionLocked(userID, tokenHash, expires)
	return nil
}

func (f *fakeStore) startSessionLocked(userID uint64, tokenHash string, expires time.Time) {
	for _, s := range f.sessions {
		if s.userID == userID {
			s.active = false
		}
	}
	f.sessions = append(f.sessions, &fakeSession{
		userID: userID, hash: tokenHash, active: true, expires: expires,
	})
}

func (f *fakeStore) InvalidateActive(_ context.Context, userID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.sessions {
		if s.userID == userID && s.active {
			s.active = false
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) IsActive(_ context.Context, userID uint64, tokenHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, s := range f.sessions {
		if s.userID == userID && s.hash == tokenHash && s.active && s.expires.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) History(_ context.Context, userID uint64) ([]model.PasswordChange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PasswordChange
	for i := len(f.changes) - 1; i >= 0; i-- {
		if f.changes[i].UserID == userID {
			out = append(out, f.changes[i])
		}
	}
	return out, nil
}

// activeSessions counts live sessions for a user, the invariant most
// tests care about.
func (f *fakeStore) activeSessions(userID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.userID == userID && s.active {
			n++
		}
	}
	return n
}

// defaultRoles returns the user's assignments flagged default.
func (f *fakeStore) defaultRoles(userID uint64) []model.Role {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Role
	for _, a := range f.assigns[userID] {
		if a.IsDefault {
			out = append(out, a.RoleID)
		}
	}
	return out
}

// fakeMailer records dispatched reset codes.
type fakeMailer struct {
	mu    sync.Mutex
	sends []sentMail
}

type sentMail struct {
	to   string
	code string
}

func (m *fakeMailer) SendResetCode(_ context.Context, to, code string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, sentMail{to: to, code: code})
	return nil
}

func (m *fakeMailer) sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMail, len(m.sends))
	copy(out, m.sends)
	return out
}
