package users

import (
	"math"
	"strings"
	"time"
)

// User is a directory entry as exposed over the API
type User struct {
	ID          int64     `json:"id"`
	Registered  string    `json:"registered"`
	FirstName   string    `json:"firstName"`
	MiddleName  string    `json:"middleName"`
	LastName    string    `json:"lastName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	Address     string    `json:"address"`
	AdminNotes  string    `json:"adminNotes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateUserRequest represents the request to create a user.
// An id sent by the client has no field to land in and is dropped.
type CreateUserRequest struct {
	Registered  string `json:"registered"`
	FirstName   string `json:"firstName"`
	MiddleName  string `json:"middleName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
	AdminNotes  string `json:"adminNotes"`
}

// Validate validates the create user request
func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return NewValidationError("firstName", r.FirstName, "firstName is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return NewValidationError("lastName", r.LastName, "lastName is required")
	}
	return nil
}

// UpdateUserRequest carries a partial update. Nil fields are left untouched.
type UpdateUserRequest struct {
	Registered  *string `json:"registered,omitempty"`
	FirstName   *string `json:"firstName,omitempty"`
	MiddleName  *string `json:"middleName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	Email       *string `json:"email,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	Address     *string `json:"address,omitempty"`
	AdminNotes  *string `json:"adminNotes,omitempty"`
}

// Validate validates the update user request
func (r *UpdateUserRequest) Validate() error {
	if len(r.assignments()) == 0 {
		return NewValidationError("body", nil, "at least one field must be provided")
	}
	if r.FirstName != nil && strings.TrimSpace(*r.FirstName) == "" {
		return NewValidationError("firstName", *r.FirstName, "firstName cannot be blank")
	}
	if r.LastName != nil && strings.TrimSpace(*r.LastName) == "" {
		return NewValidationError("lastName", *r.LastName, "lastName cannot be blank")
	}
	return nil
}

type assignment struct {
	column string
	value  *string
}

// assignments lists the columns touched by the update, in a fixed order.
func (r *UpdateUserRequest) assignments() []assignment {
	fields := []assignment{
		{"registered", r.Registered},
		{"first_name", r.FirstName},
		{"middle_name", r.MiddleName},
		{"last_name", r.LastName},
		{"email", r.Email},
		{"phone_number", r.PhoneNumber},
		{"address", r.Address},
		{"admin_notes", r.AdminNotes},
	}

	out := fields[:0]
	for _, f := range fields {
		if f.value != nil {
			out = append(out, f)
		}
	}
	return out
}

// SortOrder is the direction of a sort
type SortOrder string

const (
	SortAscending  SortOrder = "ASC"
	SortDescending SortOrder = "DESC"
)

// ParseSortOrder accepts ASC/DESC in any case. An empty value means ASC.
func ParseSortOrder(raw string) (SortOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(SortAscending):
		return SortAscending, nil
	case string(SortDescending):
		return SortDescending, nil
	default:
		return "", NewValidationError("order", raw, "order must be ASC or DESC")
	}
}

// SortRequest represents a request to list every user ordered by one field
type SortRequest struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// Validate validates the sort request
func (r *SortRequest) Validate() error {
	if r.Field == "" {
		return NewValidationError("field", r.Field, "field is required")
	}
	if _, ok := sortColumn(r.Field); !ok {
		return NewValidationError("field", r.Field, "field must be one of: "+strings.Join(SortableFields(), ", "))
	}
	if r.Order != SortAscending && r.Order != SortDescending {
		return NewValidationError("order", r.Order, "order must be ASC or DESC")
	}
	return nil
}

// PageRequest selects one page of users ordered by id
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Validate validates the page request
func (r *PageRequest) Validate() error {
	if r.Page < 1 {
		return NewValidationError("page", r.Page, "page must be a positive integer")
	}
	if r.PageSize < 1 {
		return NewValidationError("pageSize", r.PageSize, "pageSize must be a positive integer")
	}
	// the offset must fit in an int
	if r.Page-1 > math.MaxInt/r.PageSize {
		return NewValidationError("page", r.Page, "page is out of range")
	}
	return nil
}

// Offset is the number of rows skipped before the page starts
func (r *PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// Page is one slice of the directory plus the counters a pager needs
type Page struct {
	Users      []*User
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

func totalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
