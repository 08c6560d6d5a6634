package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"sessiond/cmd/identity/ids"
)

// MemoryDirectory is an in-process Directory for development and tests.
type MemoryDirectory struct {
	mu      sync.RWMutex
	ids     *ids.Generator
	byID    map[string]*User
	byName  map[string]string
	byEmail map[string]string
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		ids:     ids.NewGenerator(),
		byID:    make(map[string]*User),
		byName:  make(map[string]string),
		byEmail: make(map[string]string),
	}
}

func (d *MemoryDirectory) FindByIdentifier(_ context.Context, identifier string) (User, error) {
	const op = "identity.FindByIdentifier"

	key := NormalizeUsername(identifier)
	if key == "" {
		return User{}, invalid(op, "empty identifier")
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	nameID, byName := d.byName[key]
	if !LooksLikeEmail(identifier) {
		if !byName {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return *d.byID[nameID], nil
	}

	emailID, byEmail := d.byEmail[NormalizeEmail(identifier)]
	switch {
	case byName && byEmail && nameID != emailID:
		// Ambiguous: one user's email is another user's username.
		return User{}, NotFoundError{Op: op, Resource: "user"}
	case byEmail:
		return *d.byID[emailID], nil
	case byName:
		return *d.byID[nameID], nil
	default:
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
}

func (d *MemoryDirectory) GetByID(_ context.Context, id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetByID", Resource: "user"}
	}
	return *u, nil
}

func (d *MemoryDirectory) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, invalid(op, "username is required")
	}
	if strings.TrimSpace(in.PasswordHash) == "" {
		return User{}, invalid(op, "password hash is required")
	}
	email := trimPtr(in.Email)

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	nameKey := NormalizeUsername(username)
	if _, dup := d.byName[nameKey]; dup {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	var emailKey string
	if email != nil {
		emailKey = NormalizeEmail(*email)
		if _, dup := d.byEmail[emailKey]; dup {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
	}

	id, err := d.ids.NewULID(now)
	if err != nil {
		return User{}, err
	}

	u := &User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Active:       in.Active,
		CreatedAt:    now,
	}
	d.byID[id] = u
	d.byName[nameKey] = id
	if email != nil {
		d.byEmail[emailKey] = id
	}
	return *u, nil
}

func (d *MemoryDirectory) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return d.update("identity.TouchLastLogin", id, func(u *User) {
		t := at
		u.LastLoginAt = &t
	})
}

func (d *MemoryDirectory) SetPasswordHash(_ context.Context, id, hash string) error {
	if strings.TrimSpace(hash) == "" {
		return invalid("identity.SetPasswordHash", "password hash is required")
	}
	return d.update("identity.SetPasswordHash", id, func(u *User) { u.PasswordHash = hash })
}

func (d *MemoryDirectory) SetActive(_ context.Context, id string, active bool) error {
	return d.update("identity.SetActive", id, func(u *User) { u.Active = active })
}

func (d *MemoryDirectory) Ping(context.Context) error { return nil }

func (d *MemoryDirectory) update(op, id string, fn func(*User)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.byID[id]
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}
	fn(u)
	return nil
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}
