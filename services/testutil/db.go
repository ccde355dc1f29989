package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory SQLite database with the given models
// migrated. Each call gets its own database, so subtests and parallel tests
// never share rows. Errors are translated the way the production dialector
// does, which lets services match on gorm.ErrDuplicatedKey.
func NewTestDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err, "open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "unwrap test database")
	// a single connection keeps the shared-cache database alive and
	// serialises writers the way a row lock would.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...), "migrate test database")
	}
	return db
}

// Count returns the number of rows of model matching the optional where
// clause, failing the test on a query error.
func Count(t testing.TB, db *gorm.DB, model any, where ...any) int64 {
	t.Helper()

	q := db.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}

	var n int64
	require.NoError(t, q.Count(&n).Error)
	return n
}
