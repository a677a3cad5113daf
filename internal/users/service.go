package users

import (
	"context"
	"strings"
	"time"
)

// UserServiceImpl implements the UserService interface
type UserServiceImpl struct {
	store        UserStore
	queryTimeout time.Duration
}

// NewUserService creates a new user service instance. A zero queryTimeout
// leaves store calls bounded only by the caller's context.
func NewUserService(store UserStore, queryTimeout time.Duration) *UserServiceImpl {
	return &UserServiceImpl{
		store:        store,
		queryTimeout: queryTimeout,
	}
}

func (s *UserServiceImpl) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// CreateUser creates a new user
func (s *UserServiceImpl) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.CreateUser(ctx, req)
}

// GetUser loads a user by id
func (s *UserServiceImpl) GetUser(ctx context.Context, userID int64) (*User, error) {
	if userID < 1 {
		return nil, NewValidationError("id", userID, "id must be a positive integer")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.GetUser(ctx, userID)
}

// UpdateUser applies a partial update
func (s *UserServiceImpl) UpdateUser(ctx context.Context, userID int64, req *UpdateUserRequest) (*User, error) {
	if userID < 1 {
		return nil, NewValidationError("id", userID, "id must be a positive integer")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.UpdateUser(ctx, userID, req)
}

// DeleteUser deletes a user
func (s *UserServiceImpl) DeleteUser(ctx context.Context, userID int64) error {
	if userID < 1 {
		return NewValidationError("id", userID, "id must be a positive integer")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.DeleteUser(ctx, userID)
}

// SearchUsers finds users matching term
func (s *UserServiceImpl) SearchUsers(ctx context.Context, term string) ([]*User, error) {
	if strings.TrimSpace(term) == "" {
		return nil, NewValidationError("q", term, "q is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.SearchUsers(ctx, term)
}

// SortUsers lists all users in the requested order
func (s *UserServiceImpl) SortUsers(ctx context.Context, req *SortRequest) ([]*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.SortUsers(ctx, req)
}

// ListUsers returns one page of users
func (s *UserServiceImpl) ListUsers(ctx context.Context, req *PageRequest) (*Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.ListUsers(ctx, req)
}
