package users

import (
	"context"
	"errors"
	"fmt"
)

// UserError represents errors related to a specific user record
type UserError struct {
	Type    string
	UserID  int64
	Message string
	Cause   error
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("user error [%s] for user %d: %s (caused by: %v)", e.Type, e.UserID, e.Message, e.Cause)
	}
	return fmt.Sprintf("user error [%s] for user %d: %s", e.Type, e.UserID, e.Message)
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

const (
	UserErrorTypeNotFound = "not_found"
)

// NewUserNotFoundError creates an error for when a user is not found
func NewUserNotFoundError(userID int64) *UserError {
	return &UserError{
		Type:    UserErrorTypeNotFound,
		UserID:  userID,
		Message: "user not found",
	}
}

// IsNotFound reports whether err is (or wraps) a user-not-found error
func IsNotFound(err error) bool {
	var userErr *UserError
	return errors.As(err, &userErr) && userErr.Type == UserErrorTypeNotFound
}

// ValidationError represents errors in request validation
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StorageError represents errors related to storage operations
type StorageError struct {
	Type      string
	Operation string
	Resource  string
	Message   string
	Cause     error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("storage error [%s] during %s on %s: %s (caused by: %v)",
			e.Type, e.Operation, e.Resource, e.Message, e.Cause)
	}
	return fmt.Sprintf("storage error [%s] during %s on %s: %s",
		e.Type, e.Operation, e.Resource, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Storage error types
const (
	StorageErrorTypeQueryFailed = "query_failed"
	StorageErrorTypeTimeout     = "timeout"
)

// NewStorageQueryError creates an error for storage query failures
func NewStorageQueryError(operation, resource string, cause error) *StorageError {
	return &StorageError{
		Type:      StorageErrorTypeQueryFailed,
		Operation: operation,
		Resource:  resource,
		Message:   "storage query failed",
		Cause:     cause,
	}
}

// NewStorageTimeoutError creates an error for queries cut off by their deadline
func NewStorageTimeoutError(operation, resource string, cause error) *StorageError {
	return &StorageError{
		Type:      StorageErrorTypeTimeout,
		Operation: operation,
		Resource:  resource,
		Message:   "storage query timed out",
		Cause:     cause,
	}
}

// IsTimeout reports whether err is a storage timeout or a bare deadline error
func IsTimeout(err error) bool {
	var storageErr *StorageError
	if errors.As(err, &storageErr) && storageErr.Type == StorageErrorTypeTimeout {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// storageError classifies a failed query. Drivers do not always wrap the
// context error, so the context itself is consulted too.
func storageError(ctx context.Context, operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewStorageTimeoutError(operation, "users", err)
	}
	return NewStorageQueryError(operation, "users", err)
}
