package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/recmind-app/recmind-server/internal/app"
	"github.com/recmind-app/recmind-server/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Exec("SELECT 1").Error)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestAutoMigrateCreatesUserTable(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))
	require.True(t, db.Migrator().HasTable(&models.User{}))
	require.True(t, db.Migrator().HasColumn(&models.User{}, "refresh_token"))
	require.True(t, db.Migrator().HasColumn(&models.User{}, "code_expires_at"))
}

func TestFromAppConfigPostgres(t *testing.T) {
	cfg := FromAppConfig(app.DatabaseConfig{
		Driver: "postgres",
		Postgres: app.DBAuthConfig{
			Host:     "db.example.com",
			Port:     6543,
			Database: "recmind",
			Username: "svc",
			Password: "secret",
		},
	})

	require.Equal(t, "postgres", cfg.Driver)
	require.Equal(t, "db.example.com", cfg.Host)
	require.Equal(t, 6543, cfg.Port)
	require.Equal(t, "svc", cfg.User)
	require.Equal(t, "recmind", cfg.Name)
}
