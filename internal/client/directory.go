package client

import (
	"cmp"
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/userdir/userdir/internal/users"
)

// Directory is the view state of the user list screen. Every mutation goes
// through the API first and the local rows only change once the server has
// answered. On failure the error is logged and the state is left as it was.
//
// A Directory is not safe for concurrent use.
type Directory struct {
	client *Client
	logger *zap.Logger

	users      []users.User
	page       int
	pageSize   int
	totalPages int
	sortField  string
	sortOrder  users.SortOrder
	searchTerm string
}

// NewDirectory creates an empty directory on page 1. Call Refresh to load it.
func NewDirectory(client *Client, logger *zap.Logger, pageSize int) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Directory{
		client:     client,
		logger:     logger,
		users:      []users.User{},
		page:       1,
		pageSize:   pageSize,
		totalPages: 1,
		sortOrder:  users.SortAscending,
	}
}

// Users returns a copy of the rows currently shown
func (d *Directory) Users() []users.User {
	return append([]users.User(nil), d.users...)
}

func (d *Directory) Page() int                  { return d.page }
func (d *Directory) PageSize() int              { return d.pageSize }
func (d *Directory) TotalPages() int            { return d.totalPages }
func (d *Directory) SortField() string          { return d.sortField }
func (d *Directory) SortOrder() users.SortOrder { return d.sortOrder }
func (d *Directory) SearchTerm() string         { return d.searchTerm }

// HasNext reports whether a later page exists
func (d *Directory) HasNext() bool { return d.page < d.totalPages }

// HasPrev reports whether an earlier page exists
func (d *Directory) HasPrev() bool { return d.page > 1 }

// Refresh reloads the rows for the current page, sort and search term.
// With a search term the matches are sorted locally by the sort field; with
// neither set the server paginates by id.
func (d *Directory) Refresh(ctx context.Context) error {
	rows, totalPages, err := d.fetch(ctx, d.page, d.sortField, d.sortOrder, d.searchTerm)
	if err != nil {
		d.logError("refresh", err)
		return err
	}
	d.users = rows
	d.totalPages = totalPages
	return nil
}

// SetPage moves to page and reloads
func (d *Directory) SetPage(ctx context.Context, page int) error {
	if page < 1 {
		err := fmt.Errorf("page must be at least 1, got %d", page)
		d.logError("set_page", err)
		return err
	}

	rows, totalPages, err := d.fetch(ctx, page, d.sortField, d.sortOrder, d.searchTerm)
	if err != nil {
		d.logError("set_page", err)
		return err
	}
	d.page = page
	d.users = rows
	d.totalPages = totalPages
	return nil
}

// NextPage advances one page when there is one
func (d *Directory) NextPage(ctx context.Context) error {
	if !d.HasNext() {
		return nil
	}
	return d.SetPage(ctx, d.page+1)
}

// PrevPage goes back one page when there is one
func (d *Directory) PrevPage(ctx context.Context) error {
	if !d.HasPrev() {
		return nil
	}
	return d.SetPage(ctx, d.page-1)
}

// SetSort orders the rows by field and goes back to page 1. An empty field
// returns to the server's id ordering.
func (d *Directory) SetSort(ctx context.Context, field string, order users.SortOrder) error {
	if order == "" {
		order = users.SortAscending
	}
	if field != "" {
		req := users.SortRequest{Field: field, Order: order}
		if err := req.Validate(); err != nil {
			d.logError("set_sort", err)
			return err
		}
	}

	rows, totalPages, err := d.fetch(ctx, 1, field, order, d.searchTerm)
	if err != nil {
		d.logError("set_sort", err)
		return err
	}
	d.sortField = field
	d.sortOrder = order
	d.page = 1
	d.users = rows
	d.totalPages = totalPages
	return nil
}

// SetSearch filters the rows by term and goes back to page 1. A blank term
// clears the filter.
func (d *Directory) SetSearch(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)

	rows, totalPages, err := d.fetch(ctx, 1, d.sortField, d.sortOrder, term)
	if err != nil {
		d.logError("set_search", err)
		return err
	}
	d.searchTerm = term
	d.page = 1
	d.users = rows
	d.totalPages = totalPages
	return nil
}

// Create adds a user and appends the stored record to the rows
func (d *Directory) Create(ctx context.Context, req *users.CreateUserRequest) (*users.User, error) {
	user, err := d.client.Create(ctx, req)
	if err != nil {
		d.logError("create", err)
		return nil, err
	}
	d.users = append(d.users, *user)
	return user, nil
}

// Edit updates a user and replaces its row with the stored record
func (d *Directory) Edit(ctx context.Context, id int64, req *users.UpdateUserRequest) (*users.User, error) {
	user, err := d.client.Update(ctx, id, req)
	if err != nil {
		d.logError("edit", err, zap.Int64("user_id", id))
		return nil, err
	}
	for i := range d.users {
		if d.users[i].ID == id {
			d.users[i] = *user
		}
	}
	return user, nil
}

// Delete removes a user once the server confirms
func (d *Directory) Delete(ctx context.Context, id int64) error {
	if err := d.client.Delete(ctx, id); err != nil {
		d.logError("delete", err, zap.Int64("user_id", id))
		return err
	}

	kept := make([]users.User, 0, len(d.users))
	for _, u := range d.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	d.users = kept
	return nil
}

func (d *Directory) fetch(ctx context.Context, page int, field string, order users.SortOrder, term string) ([]users.User, int, error) {
	switch {
	case term != "":
		found, err := d.client.Search(ctx, term)
		if err != nil {
			return nil, 0, err
		}
		if field != "" {
			sortUsers(found, field, order)
		}
		rows, totalPages := pageSlice(found, page, d.pageSize)
		return rows, totalPages, nil
	case field != "":
		sorted, err := d.client.Sort(ctx, field, order)
		if err != nil {
			return nil, 0, err
		}
		rows, totalPages := pageSlice(sorted, page, d.pageSize)
		return rows, totalPages, nil
	default:
		result, err := d.client.List(ctx, page, d.pageSize)
		if err != nil {
			return nil, 0, err
		}
		rows := result.Users
		if rows == nil {
			rows = []users.User{}
		}
		return rows, max(result.Pagination.TotalPages, 1), nil
	}
}

func (d *Directory) logError(operation string, err error, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("operation", operation),
		zap.Int("page", d.page),
		zap.String("sort_field", d.sortField),
		zap.String("search_term", d.searchTerm),
		zap.Error(err),
	}, fields...)
	d.logger.Error("Directory request failed", fields...)
}

// pageSlice cuts one page out of a full result set. There is always at least
// one page, even when it is empty.
func pageSlice(all []users.User, page, pageSize int) ([]users.User, int) {
	totalPages := max((len(all)+pageSize-1)/pageSize, 1)

	if page-1 >= totalPages {
		return []users.User{}, totalPages
	}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []users.User{}, totalPages
	}
	end := min(start+pageSize, len(all))
	return append([]users.User(nil), all[start:end]...), totalPages
}

var textSortKeys = map[string]func(users.User) string{
	"registered":  func(u users.User) string { return u.Registered },
	"firstName":   func(u users.User) string { return u.FirstName },
	"middleName":  func(u users.User) string { return u.MiddleName },
	"lastName":    func(u users.User) string { return u.LastName },
	"email":       func(u users.User) string { return u.Email },
	"phoneNumber": func(u users.User) string { return u.PhoneNumber },
	"address":     func(u users.User) string { return u.Address },
	"adminNotes":  func(u users.User) string { return u.AdminNotes },
}

// sortUsers orders search matches the way the sort endpoint would: by field,
// ties by id ascending.
func sortUsers(list []users.User, field string, order users.SortOrder) {
	key, isText := textSortKeys[field]
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]

		var c int
		if isText {
			c = strings.Compare(key(a), key(b))
		} else if field == "id" {
			c = cmp.Compare(a.ID, b.ID)
		}
		if order == users.SortDescending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}
