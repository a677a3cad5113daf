package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// UserSchema represents the users table schema
type UserSchema struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Registered  *string   `bun:"registered"`
	FirstName   string    `bun:"first_name,notnull"`
	MiddleName  *string   `bun:"middle_name"`
	LastName    string    `bun:"last_name,notnull"`
	Email       *string   `bun:"email"`
	PhoneNumber *string   `bun:"phone_number"`
	Address     *string   `bun:"address"`
	AdminNotes  *string   `bun:"admin_notes"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// UserStoreImpl implements the UserStore interface on top of bun
type UserStoreImpl struct {
	db *bun.DB
}

// NewUserStore creates a new user store instance
func NewUserStore(db *bun.DB) *UserStoreImpl {
	return &UserStoreImpl{
		db: db,
	}
}

// CreateUser inserts a user and returns it with the id assigned by the database
func (s *UserStoreImpl) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	now := time.Now().UTC()
	schema := UserSchema{
		Registered:  nullString(req.Registered),
		FirstName:   strings.TrimSpace(req.FirstName),
		MiddleName:  nullString(req.MiddleName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       nullString(req.Email),
		PhoneNumber: nullString(req.PhoneNumber),
		Address:     nullString(req.Address),
		AdminNotes:  nullString(req.AdminNotes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.NewInsert().
		Model(&schema).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, storageError(ctx, "create_user", err)
	}

	return UserSchemaToUser(schema), nil
}

// GetUser loads a single user by id
func (s *UserStoreImpl) GetUser(ctx context.Context, userID int64) (*User, error) {
	var schema UserSchema
	err := s.db.NewSelect().
		Model(&schema).
		Where("id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewUserNotFoundError(userID)
		}
		return nil, storageError(ctx, "get_user", err)
	}

	return UserSchemaToUser(schema), nil
}

// UpdateUser replaces the provided fields and returns the stored record.
// The update and the re-read share one transaction.
func (s *UserStoreImpl) UpdateUser(ctx context.Context, userID int64, req *UpdateUserRequest) (*User, error) {
	var updated UserSchema

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*UserSchema)(nil)).
			Where("id = ?", userID).
			Set("? = ?", bun.Ident("updated_at"), time.Now().UTC())

		for _, a := range req.assignments() {
			value := nullString(*a.value)
			if a.column == "first_name" || a.column == "last_name" {
				trimmed := strings.TrimSpace(*a.value)
				value = &trimmed
			}
			q = q.Set("? = ?", bun.Ident(a.column), value)
		}

		result, err := q.Exec(ctx)
		if err != nil {
			return storageError(ctx, "update_user", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return storageError(ctx, "update_user", err)
		}
		if rowsAffected == 0 {
			return NewUserNotFoundError(userID)
		}

		if err := tx.NewSelect().Model(&updated).Where("id = ?", userID).Scan(ctx); err != nil {
			return storageError(ctx, "update_user", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return UserSchemaToUser(updated), nil
}

// DeleteUser hard-deletes a user. Deleting an unknown id is not an error.
func (s *UserStoreImpl) DeleteUser(ctx context.Context, userID int64) error {
	_, err := s.db.NewDelete().
		Model((*UserSchema)(nil)).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return storageError(ctx, "delete_user", err)
	}
	return nil
}

// SearchUsers returns users whose id equals term or whose searchable text
// columns contain term, ignoring case.
func (s *UserStoreImpl) SearchUsers(ctx context.Context, term string) ([]*User, error) {
	pattern := containsPattern(term)

	var schemas []UserSchema
	err := s.db.NewSelect().
		Model(&schemas).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			if id, ok := searchID(term); ok {
				q = q.WhereOr("? = ?", bun.Ident("id"), id)
			}
			for _, column := range searchableColumns {
				q = whereContains(q, column, pattern)
			}
			return q
		}).
		OrderExpr("? ASC", bun.Ident("id")).
		Scan(ctx)
	if err != nil {
		return nil, storageError(ctx, "search_users", err)
	}

	return schemasToUsers(schemas), nil
}

// SortUsers returns every user ordered by the requested field
func (s *UserStoreImpl) SortUsers(ctx context.Context, req *SortRequest) ([]*User, error) {
	column, ok := sortColumn(req.Field)
	if !ok {
		return nil, NewValidationError("field", req.Field, "field is not sortable")
	}

	var schemas []UserSchema
	q := s.db.NewSelect().Model(&schemas)
	if err := orderBy(q, column, req.Order).Scan(ctx); err != nil {
		return nil, storageError(ctx, "sort_users", err)
	}

	return schemasToUsers(schemas), nil
}

// ListUsers returns one page of users ordered by id together with the total count
func (s *UserStoreImpl) ListUsers(ctx context.Context, req *PageRequest) (*Page, error) {
	var schemas []UserSchema
	total, err := s.db.NewSelect().
		Model(&schemas).
		OrderExpr("? ASC", bun.Ident("id")).
		Limit(req.PageSize).
		Offset(req.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, storageError(ctx, "list_users", err)
	}

	return &Page{
		Users:      schemasToUsers(schemas),
		Page:       req.Page,
		PageSize:   req.PageSize,
		Total:      total,
		TotalPages: totalPages(total, req.PageSize),
	}, nil
}

// Helper conversion functions
func UserSchemaToUser(schema UserSchema) *User {
	return &User{
		ID:          schema.ID,
		Registered:  derefString(schema.Registered),
		FirstName:   schema.FirstName,
		MiddleName:  derefString(schema.MiddleName),
		LastName:    schema.LastName,
		Email:       derefString(schema.Email),
		PhoneNumber: derefString(schema.PhoneNumber),
		Address:     derefString(schema.Address),
		AdminNotes:  derefString(schema.AdminNotes),
		CreatedAt:   schema.CreatedAt,
		UpdatedAt:   schema.UpdatedAt,
	}
}

func schemasToUsers(schemas []UserSchema) []*User {
	users := make([]*User, len(schemas))
	for i, schema := range schemas {
		users[i] = UserSchemaToUser(schema)
	}
	return users
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
