package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutri-planner/models"
	"nutri-planner/storage"
)

var emailPattern = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Manager owns the account collection, the single current session and the
// registry of every session a bearer token was issued for.
type Manager struct {
	users    *storage.Collection[models.User]
	session  *storage.Slot[models.Session]
	sessions *storage.Collection[models.Session]
	nav      Navigator
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *models.Session
}

type Option func(*Manager)

func WithNavigator(n Navigator) Option {
	return func(m *Manager) { m.nav = n }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(db *storage.DB, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		users:    storage.NewCollection[models.User](db, storage.Users),
		session:  storage.NewSlot[models.Session](db, storage.CurrentSession),
		sessions: storage.NewCollection[models.Session](db, storage.Sessions),
		nav:      NopNavigator{},
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Register(ctx context.Context, name, email, password string, role models.Role) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, &models.ValidationError{Msg: "name, email and password are required"}
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	if !ValidEmail(email) {
		return nil, &models.ValidationError{Field: "email", Msg: "invalid email"}
	}
	if role == "" {
		role = models.RolePatient
	}
	if !role.Valid() {
		return nil, &models.ValidationError{Field: "role", Msg: "must be patient or nutritionist"}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Password:  hash,
		Role:      role,
		CreatedAt: m.now().UTC(),
		Active:    true,
	}

	err = m.users.Modify(ctx, func(users []models.User) ([]models.User, error) {
		for _, u := range users {
			if u.Email == email {
				return nil, models.ErrDuplicateEmail
			}
		}
		return append(users, user), nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("account registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	public := user.Public()
	return &public, nil
}

func (m *Manager) Login(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &models.ValidationError{Msg: "email and password are required"}
	}
	users, err := m.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	var found *models.User
	for i := range users {
		if users[i].Email == email && CheckPassword(users[i].Password, password) {
			found = &users[i]
			break
		}
	}
	if found == nil {
		return nil, models.ErrInvalidCredentials
	}
	if !found.Active {
		return nil, models.ErrInactiveAccount
	}
	return m.open(ctx, *found)
}

// LoginExternal signs in an identity already verified by an external
// provider, creating a patient account the first time.
func (m *Manager) LoginExternal(ctx context.Context, email, name string) (*models.Session, error) {
	if !ValidEmail(email) {
		return nil, &models.ValidationError{Field: "email", Msg: "invalid email"}
	}
	if strings.TrimSpace(name) == "" {
		name = email
	}

	var user models.User
	err := m.users.Modify(ctx, func(users []models.User) ([]models.User, error) {
		for _, u := range users {
			if u.Email == email {
				user = u
				return users, nil
			}
		}
		hash, err := HashPassword(randomSecret())
		if err != nil {
			return nil, err
		}
		user = models.User{
			ID:        uuid.NewString(),
			Name:      name,
			Email:     email,
			Password:  hash,
			Role:      models.RolePatient,
			CreatedAt: m.now().UTC(),
			Active:    true,
		}
		m.log.Info("account created from external login", zap.String("user_id", user.ID))
		return append(users, user), nil
	})
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, models.ErrInactiveAccount
	}
	return m.open(ctx, user)
}

func (m *Manager) open(ctx context.Context, u models.User) (*models.Session, error) {
	now := m.now().UTC()
	s := models.NewSession(u, now)
	s.ID = uuid.NewString()
	err := m.sessions.Modify(ctx, func(all []models.Session) ([]models.Session, error) {
		live := all[:0]
		for _, other := range all {
			if other.Valid(now) {
				live = append(live, other)
			}
		}
		return append(live, s), nil
	})
	if err != nil {
		return nil, err
	}
	if err := m.session.Save(ctx, s); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()

	m.log.Info("session opened", zap.String("user_id", u.ID), zap.Time("expires_at", s.ExpiresAt))
	out := s
	return &out, nil
}

// Current returns the live session, restoring it from storage when needed.
// An expired session is logged out and reported as ErrNotLoggedIn.
func (m *Manager) Current(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()

	if s == nil {
		loaded, err := m.session.Load(ctx)
		if err != nil {
			return nil, err
		}
		s = loaded
	}
	if s == nil {
		return nil, models.ErrNotLoggedIn
	}
	if !s.Valid(m.now()) {
		m.log.Info("session expired", zap.String("user_id", s.User.ID))
		if err := m.Logout(ctx); err != nil {
			return nil, err
		}
		return nil, models.ErrNotLoggedIn
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	out := *s
	return &out, nil
}

func (m *Manager) CurrentUser(ctx context.Context) (*models.User, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}
	return &s.User, nil
}

func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	cur := m.current
	m.current = nil
	m.mu.Unlock()
	if cur == nil {
		cur, _ = m.session.Load(ctx)
	}
	if cur != nil {
		if err := m.EndSession(ctx, cur.User.ID, cur.ID); err != nil {
			m.log.Error("revoke session on logout", zap.Error(err))
		}
	}
	err := m.session.Clear(ctx)
	m.nav.Navigate(PageLogin)
	return err
}

// SessionActive reports whether sessionID is a live session of userID.
// Tokens of ended or expired sessions fail this check.
func (m *Manager) SessionActive(ctx context.Context, userID, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	all, err := m.sessions.Load(ctx)
	if err != nil {
		return false, err
	}
	now := m.now()
	for _, s := range all {
		if s.ID == sessionID {
			return s.User.ID == userID && s.Valid(now), nil
		}
	}
	return false, nil
}

// EndSession revokes one session of userID. It also clears the current
// session when that is the one being ended.
func (m *Manager) EndSession(ctx context.Context, userID, sessionID string) error {
	return m.endSessions(ctx, func(s models.Session) bool {
		return s.User.ID == userID && s.ID == sessionID
	})
}

// endUserSessions revokes every session of userID.
func (m *Manager) endUserSessions(ctx context.Context, userID string) error {
	return m.endSessions(ctx, func(s models.Session) bool {
		return s.User.ID == userID
	})
}

func (m *Manager) endSessions(ctx context.Context, match func(models.Session) bool) error {
	err := m.sessions.Modify(ctx, func(all []models.Session) ([]models.Session, error) {
		kept := all[:0]
		for _, s := range all {
			if !match(s) {
				kept = append(kept, s)
			}
		}
		return kept, nil
	})
	if err != nil {
		return err
	}

	s, err := m.session.Load(ctx)
	if err != nil {
		return err
	}
	if s == nil || !match(*s) {
		return nil
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return m.session.Clear(ctx)
}

// GuardPage reports whether the current session may see a page restricted
// to required. An empty role admits any logged-in user.
func (m *Manager) GuardPage(ctx context.Context, required models.Role) bool {
	_, err := m.Require(ctx, required)
	switch {
	case err == nil:
		return true
	case errors.Is(err, models.ErrForbidden):
		m.log.Warn("page access denied for role", zap.String("required", string(required)))
		if err := m.Logout(ctx); err != nil {
			m.log.Error("logout after denied access", zap.Error(err))
		}
	default:
		m.nav.Navigate(PageLogin)
	}
	return false
}

// Require returns the current session if its user has the required role.
func (m *Manager) Require(ctx context.Context, required models.Role) (*models.Session, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return nil, err
	}
	if required != "" && s.User.Role != required {
		return nil, models.ErrForbidden
	}
	return s, nil
}

func (m *Manager) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	s, err := m.Current(ctx)
	if err != nil {
		return err
	}
	return m.ChangePasswordFor(ctx, s.User.ID, oldPassword, newPassword)
}

func (m *Manager) ChangePasswordFor(ctx context.Context, userID, oldPassword, newPassword string) error {
	return m.users.Modify(ctx, func(users []models.User) ([]models.User, error) {
		i := indexOfUser(users, userID)
		if i < 0 {
			return nil, models.ErrNotFound
		}
		if !CheckPassword(users[i].Password, oldPassword) {
			return nil, models.ErrWrongPassword
		}
		if err := ValidatePassword(newPassword); err != nil {
			return nil, err
		}
		hash, err := HashPassword(newPassword)
		if err != nil {
			return nil, err
		}
		users[i].Password = hash
		return users, nil
	})
}

// UpdateProfile changes name and/or email. Empty values keep the old ones.
func (m *Manager) UpdateProfile(ctx context.Context, userID, name, email string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if email != "" && !ValidEmail(email) {
		return nil, &models.ValidationError{Field: "email", Msg: "invalid email"}
	}

	var updated models.User
	err := m.users.Modify(ctx, func(users []models.User) ([]models.User, error) {
		i := indexOfUser(users, userID)
		if i < 0 {
			return nil, models.ErrNotFound
		}
		if email != "" && email != users[i].Email {
			for _, u := range users {
				if u.Email == email {
					return nil, models.ErrDuplicateEmail
				}
			}
			users[i].Email = email
		}
		if name != "" {
			users[i].Name = name
		}
		updated = users[i]
		return users, nil
	})
	if err != nil {
		return nil, err
	}

	if err := m.refreshSession(ctx, updated); err != nil {
		return nil, err
	}
	public := updated.Public()
	return &public, nil
}

func (m *Manager) refreshSession(ctx context.Context, u models.User) error {
	s, err := m.session.Load(ctx)
	if err != nil || s == nil || s.User.ID != u.ID {
		return err
	}
	s.User = u.Public()
	if err := m.session.Save(ctx, *s); err != nil {
		return err
	}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}

func (m *Manager) UserByID(ctx context.Context, id string) (*models.User, error) {
	users, err := m.users.Load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOfUser(users, id); i >= 0 {
		u := users[i].Public()
		return &u, nil
	}
	return nil, models.ErrNotFound
}

// SetActive enables or disables an account; accounts are never deleted.
func (m *Manager) SetActive(ctx context.Context, userID string, active bool) error {
	err := m.users.Modify(ctx, func(users []models.User) ([]models.User, error) {
		i := indexOfUser(users, userID)
		if i < 0 {
			return nil, models.ErrNotFound
		}
		users[i].Active = active
		return users, nil
	})
	if err != nil || active {
		return err
	}
	return m.endUserSessions(ctx, userID)
}

func indexOfUser(users []models.User, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}
