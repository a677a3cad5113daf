package users

import (
	"context"
)

// UserStore defines the interface for user storage operations
type UserStore interface {
	CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error)
	GetUser(ctx context.Context, userID int64) (*User, error)
	UpdateUser(ctx context.Context, userID int64, req *UpdateUserRequest) (*User, error)
	DeleteUser(ctx context.Context, userID int64) error
	SearchUsers(ctx context.Context, term string) ([]*User, error)
	SortUsers(ctx context.Context, req *SortRequest) ([]*User, error)
	ListUsers(ctx context.Context, req *PageRequest) (*Page, error)
}

// UserService defines the interface for user service operations
type UserService interface {
	UserStore
}
