package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestOpenRequiresConnectionTarget(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "postgres"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Options{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := Open(context.Background(), Options{
		Driver: "sqlite",
		Path:   "file:database_open_test?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	defer db.Close()

	var one int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(context.Background(), &one))
	assert.Equal(t, 1, one)

	assert.NoError(t, NewDatabaseHealthChecker(db).HealthCheck(context.Background()))
}

type stubChecker struct {
	name     string
	critical bool
	err      error
}

func (s stubChecker) HealthCheck(context.Context) error { return s.err }
func (s stubChecker) IsCritical() bool                  { return s.critical }
func (s stubChecker) Name() string                      { return s.name }

func TestHealthManager(t *testing.T) {
	ctx := context.Background()

	t.Run("all healthy", func(t *testing.T) {
		hm := NewHealthManager(zap.NewNop())
		hm.AddChecker(stubChecker{name: "database", critical: true})

		results, err := hm.Check(ctx)
		require.NoError(t, err)
		assert.Contains(t, results, "database")
		assert.NoError(t, results["database"])
	})

	t.Run("non-critical failure is tolerated", func(t *testing.T) {
		hm := NewHealthManager(zap.NewNop())
		hm.AddChecker(stubChecker{name: "database", critical: true})
		hm.AddChecker(stubChecker{name: "mailer", err: errors.New("down")})

		results, err := hm.Check(ctx)
		require.NoError(t, err)
		assert.Error(t, results["mailer"])
	})

	t.Run("critical failure fails the check", func(t *testing.T) {
		hm := NewHealthManager(zap.NewNop())
		hm.AddChecker(stubChecker{name: "database", critical: true, err: errors.New("connection refused")})

		_, err := hm.Check(ctx)
		assert.ErrorContains(t, err, "database")
	})
}

func TestSQLiteLowerFoldsUnicode(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Options{
		Driver: "sqlite",
		Path:   "file:database_lower_test?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	defer db.Close()

	var lowered string
	require.NoError(t, db.NewSelect().ColumnExpr("lower(?)", "ÉMILE Ærø").Scan(ctx, &lowered))
	assert.Equal(t, "émile ærø", lowered)

	var isNull bool
	require.NoError(t, db.NewSelect().ColumnExpr("lower(NULL) IS NULL").Scan(ctx, &isNull))
	assert.True(t, isNull)
}
