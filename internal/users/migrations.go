package users

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// UserIndexes are created after the table; both supported dialects accept them.
var UserIndexes = []string{
	`CREATE INDEX IF NOT EXISTS users_first_name_idx ON users (first_name)`,
	`CREATE INDEX IF NOT EXISTS users_last_name_idx ON users (last_name)`,
	`CREATE INDEX IF NOT EXISTS users_email_idx ON users (email)`,
}

// CreateTables creates the users table if it does not exist yet
func CreateTables(ctx context.Context, db *bun.DB) error {
	models := []interface{}{
		(*UserSchema)(nil),
	}

	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for model %T: %w", model, err)
		}
	}

	return nil
}

// CreateIndexes creates all indexes on the users table
func CreateIndexes(ctx context.Context, db *bun.DB) error {
	for _, indexSQL := range UserIndexes {
		_, err := db.ExecContext(ctx, indexSQL)
		if err != nil {
			return fmt.Errorf("failed to create index with SQL %q: %w", indexSQL, err)
		}
	}

	return nil
}

// Migrate prepares the schema used by the store
func Migrate(ctx context.Context, db *bun.DB) error {
	if err := CreateTables(ctx, db); err != nil {
		return err
	}
	return CreateIndexes(ctx, db)
}
