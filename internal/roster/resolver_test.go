package roster

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dencamenew/vsuet-attendance/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}))

	return db
}

func TestResolveIdentity(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.Student{
		MaxID:      "max-1001",
		ZachNumber: "42",
		FullName:   "Ivanov I. I.",
		GroupName:  "CS-31",
	}).Error)

	resolver, err := NewDBResolver(db)
	require.NoError(t, err)

	zach, err := resolver.ResolveIdentity(context.Background(), "max-1001")
	require.NoError(t, err)
	require.Equal(t, "42", zach)
}

func TestResolveIdentityUnknownCaller(t *testing.T) {
	resolver, err := NewDBResolver(newTestDB(t))
	require.NoError(t, err)

	_, err = resolver.ResolveIdentity(context.Background(), "max-9999")
	require.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestResolveIdentityBlankCaller(t *testing.T) {
	resolver, err := NewDBResolver(newTestDB(t))
	require.NoError(t, err)

	_, err = resolver.ResolveIdentity(context.Background(), "  ")
	require.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestNewDBResolverRequiresDB(t *testing.T) {
	_, err := NewDBResolver(nil)
	require.Error(t, err)
}
