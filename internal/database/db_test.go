package database

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oktamirror/oktamirror/internal/models"
)

func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := Open(Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestMigrateCreatesSchema(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, Migrate(db))

	migrator := db.Migrator()
	for _, model := range []any{
		&models.OktaUser{}, &models.OktaGroup{}, &models.OktaApplication{},
		&models.OktaPolicy{}, &models.OktaDevice{}, &models.UserFactor{},
		&models.UserDevice{}, &models.UserGroupMembership{}, &models.UserAppAssignment{},
		&models.GroupAppAssignment{}, &models.SyncHistory{}, &models.AuthUser{},
		&models.QueryHistory{},
	} {
		require.True(t, migrator.HasTable(model))
	}
	require.True(t, migrator.HasColumn(&models.OktaUser{}, "custom_attributes"))
	require.True(t, migrator.HasIndex(&models.UserFactor{}, "idx_user_factors_authenticator_name"))
}

func TestMigrateIdempotent(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	// Data survives a repeat migration pass.
	row := models.OktaUser{TenantID: "acme", OktaID: "u1", Email: "u1@example.com"}
	require.NoError(t, db.Create(&row).Error)
	require.NoError(t, Migrate(db))

	var count int64
	require.NoError(t, db.Model(&models.OktaUser{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestApplyMigrationsRestoresDroppedColumn(t *testing.T) {
	db := openMemoryDB(t)
	require.NoError(t, Migrate(db))

	// Simulate a database created before the column existed.
	require.NoError(t, db.Exec("ALTER TABLE okta_users DROP COLUMN user_type").Error)
	require.False(t, db.Migrator().HasColumn(&models.OktaUser{}, "user_type"))

	require.NoError(t, ApplyMigrations(db))
	require.True(t, db.Migrator().HasColumn(&models.OktaUser{}, "user_type"))
}

func TestInitIdempotentAndConcurrent(t *testing.T) {
	ResetInit()
	t.Cleanup(ResetInit)

	cfg := Config{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000",
	}

	const callers = 8
	handles := make([]*gorm.DB, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = Init(cfg)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Same(t, handles[0], handles[i])
	}
	require.True(t, handles[0].Migrator().HasTable(&models.SyncHistory{}))
}

func TestDiscoverPath(t *testing.T) {
	dir := t.TempDir()

	configured := filepath.Join(dir, "mirror.sqlite")
	// Nothing exists yet: the configured path comes back unchanged.
	require.Equal(t, configured, DiscoverPath(configured))

	require.NoError(t, os.WriteFile(configured, []byte("x"), 0o600))
	require.Equal(t, configured, DiscoverPath(configured))

	// A directory at the path does not count as a database file.
	sub := filepath.Join(dir, "subdir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Equal(t, sub, DiscoverPath(sub))
}
