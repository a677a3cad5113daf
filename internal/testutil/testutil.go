package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/userdir/userdir/internal/database"
)

// OpenInMemoryDB opens a private in-memory SQLite database.
// The database is closed through t.Cleanup.
func OpenInMemoryDB(t *testing.T) *bun.DB {
	t.Helper()

	name := "userdir_" + uuid.NewString()
	db, err := database.Open(context.Background(), database.Options{
		Driver: "sqlite",
		Path:   "file:" + name + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
