// Package authpw provides email/password authentication for staff and
// client accounts.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"studioflow/api/internal/rbac"
	"studioflow/api/internal/store"
	"studioflow/api/internal/util"
)

// ErrInvalidCredentials is returned for any sign-in failure so callers
// cannot distinguish an unknown email from a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore defines the storage interface for account management.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUser(ctx context.Context, id string) (store.User, error)
	UpsertUser(ctx context.Context, user store.User) error
	SetUserPassword(ctx context.Context, userID, passwordHash string) error
}

// Service provides email/password account management.
type Service struct {
	store UserStore
}

// NewService creates a new account service.
func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// RegisterRequest contains account creation parameters.
type RegisterRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

// Register creates a new user account. Accounts are provisioned by
// admins, so the requested role is honored after normalization.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" || strings.TrimSpace(req.DisplayName) == "" {
		return store.User{}, errors.New("email, password, and display name are required")
	}
	if len(req.Password) < 8 {
		return store.User{}, errors.New("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:          util.NewID("usr"),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Email:       email,
		Role:        string(rbac.Normalize(req.Role)),
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	if err := s.store.SetUserPassword(ctx, user.ID, string(hash)); err != nil {
		return store.User{}, fmt.Errorf("store password: %w", err)
	}

	user.PasswordHash = string(hash)
	return user, nil
}

// SignIn authenticates a user by email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return store.User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces a user's password after verifying the current one.
// Accounts without a stored password, such as those created through the dev
// token endpoint, may set one without providing the current value.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if next == "" {
		return errors.New("new password is required")
	}
	if len(next) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
			return ErrInvalidCredentials
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.SetUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	return nil
}
