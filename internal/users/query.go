package users

import (
	"sort"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

// sortableColumns maps API field names to columns. Nothing outside this map
// ever reaches an ORDER BY.
var sortableColumns = map[string]string{
	"id":          "id",
	"registered":  "registered",
	"firstName":   "first_name",
	"middleName":  "middle_name",
	"lastName":    "last_name",
	"email":       "email",
	"phoneNumber": "phone_number",
	"address":     "address",
	"adminNotes":  "admin_notes",
}

// searchableColumns are the text columns matched by a search term
var searchableColumns = []string{
	"registered",
	"first_name",
	"middle_name",
	"last_name",
	"email",
	"phone_number",
	"address",
	"admin_notes",
}

const likeEscape = '!'

func sortColumn(field string) (string, bool) {
	column, ok := sortableColumns[field]
	return column, ok
}

// SortableFields returns the accepted sort field names in stable order
func SortableFields() []string {
	fields := make([]string, 0, len(sortableColumns))
	for f := range sortableColumns {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// containsPattern builds the LIKE pattern for a case-insensitive substring
// match. Wildcards in the term are escaped so they match literally.
func containsPattern(term string) string {
	var b strings.Builder
	b.WriteByte('%')
	for _, r := range strings.ToLower(term) {
		if r == '%' || r == '_' || r == likeEscape {
			b.WriteRune(likeEscape)
		}
		b.WriteRune(r)
	}
	b.WriteByte('%')
	return b.String()
}

// whereContains ORs a case-insensitive contains predicate for column.
func whereContains(q *bun.SelectQuery, column, pattern string) *bun.SelectQuery {
	return q.WhereOr("LOWER(?) LIKE ? ESCAPE '"+string(likeEscape)+"'", bun.Ident(column), pattern)
}

// searchID returns the term as an id when it is an integer.
func searchID(term string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(term), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// orderBy applies the validated sort. Text columns sort NULL as empty so both
// dialects agree; id breaks ties to keep the order stable.
func orderBy(q *bun.SelectQuery, column string, order SortOrder) *bun.SelectQuery {
	direction := "ASC"
	if order == SortDescending {
		direction = "DESC"
	}

	if column == "id" {
		return q.OrderExpr("? "+direction, bun.Ident(column))
	}
	return q.OrderExpr("COALESCE(?, '') "+direction, bun.Ident(column)).OrderExpr("? ASC", bun.Ident("id"))
}
