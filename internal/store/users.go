// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

// Package store provides the credential store holding user records:
// identity, role, hashed secret, active flag, and login bookkeeping.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Store errors.
var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailExists is returned when creating a user with an email that
	// is already taken.
	ErrEmailExists = errors.New("email already exists")
)

// Role is a user's authorization level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// User is a stored account. Users are soft-deactivated, never hard
// deleted.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	PasswordHash string     `json:"-"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// PublicUser is the externally visible view of a user. The password hash
// never leaves the store boundary.
type PublicUser struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Public returns the external view of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// NormalizeEmail lowercases and trims an email for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore is the credential store interface.
type UserStore interface {
	// Create adds a user. Returns ErrEmailExists when the normalized
	// email is taken.
	Create(ctx context.Context, user *User) error

	// FindByEmail looks a user up by normalized email.
	FindByEmail(ctx context.Context, email string) (*User, error)

	// FindByID looks a user up by id.
	FindByID(ctx context.Context, id string) (*User, error)

	// List returns all users ordered by creation time.
	List(ctx context.Context) ([]*User, error)

	// Update replaces a stored user. Returns ErrUserNotFound when the
	// id is unknown.
	Update(ctx context.Context, user *User) error

	// SetActive flips the soft-deactivate flag.
	SetActive(ctx context.Context, id string, active bool) error

	// RecordLogin stamps the user's last-login time.
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// HashSecret hashes a plaintext secret with bcrypt.
func HashSecret(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret compares a plaintext secret against a stored hash.
func VerifySecret(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// MemoryUserStore implements UserStore in memory. Suitable for the
// reference deployment; the interface keeps the backend replaceable.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string // normalized email -> id
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

// Create adds a user, enforcing email uniqueness before insertion.
func (s *MemoryUserStore) Create(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(user.Email)
	if _, taken := s.byEmail[email]; taken {
		return ErrEmailExists
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Email = email

	s.byID[user.ID] = copyUser(user)
	s.byEmail[email] = user.ID
	return nil
}

// FindByEmail looks a user up by normalized email.
func (s *MemoryUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(s.byID[id]), nil
}

// FindByID looks a user up by id.
func (s *MemoryUserStore) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

// List returns all users ordered by creation time.
func (s *MemoryUserStore) List(ctx context.Context) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.byID))
	for _, user := range s.byID {
		users = append(users, copyUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// Update replaces a stored user.
func (s *MemoryUserStore) Update(ctx context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[user.ID]
	if !ok {
		return ErrUserNotFound
	}

	email := NormalizeEmail(user.Email)
	if email != current.Email {
		if _, taken := s.byEmail[email]; taken {
			return ErrEmailExists
		}
		delete(s.byEmail, current.Email)
		s.byEmail[email] = user.ID
	}
	user.Email = email

	s.byID[user.ID] = copyUser(user)
	return nil
}

// SetActive flips the soft-deactivate flag.
func (s *MemoryUserStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.IsActive = active
	return nil
}

// RecordLogin stamps the user's last-login time.
func (s *MemoryUserStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	t := at
	user.LastLogin = &t
	return nil
}

func copyUser(user *User) *User {
	copied := *user
	if user.LastLogin != nil {
		t := *user.LastLogin
		copied.LastLogin = &t
	}
	return &copied
}

// SeedAdmin provisions the initial admin account when the store has no
// user with the given email yet. Idempotent across restarts.
func SeedAdmin(ctx context.Context, s UserStore, email, password string) (*User, error) {
	if existing, err := s.FindByEmail(ctx, email); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := HashSecret(password)
	if err != nil {
		return nil, err
	}

	admin := &User{
		Email:        email,
		Name:         "Admin User",
		Role:         RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}
