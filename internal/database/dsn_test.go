package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteDSNDefaultsToSharedMemory(t *testing.T) {
	for _, path := range []string{"", ":memory:", "  :MEMORY:  "} {
		dsn, err := sqliteDSN(Config{Path: path})
		require.NoError(t, err)
		require.Equal(t, memoryDSN, dsn)
	}
}

func TestSQLiteDSNCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "recmind.db")

	dsn, err := sqliteDSN(Config{Path: path})
	require.NoError(t, err)
	require.Contains(t, dsn, "_journal_mode=WAL")
	require.DirExists(t, filepath.Dir(path))
}

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "recmind", Name: "recmind"})
	require.NoError(t, err)

	for _, part := range []string{
		"host=localhost", "port=5432", "user=recmind", "dbname=recmind", "sslmode=disable",
	} {
		require.Contains(t, dsn, part)
	}
	require.NotContains(t, dsn, "password=")
}

func TestBuildPostgresDSNOptionsOverrideDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "public",
		},
	})
	require.NoError(t, err)

	for _, part := range []string{
		"host=db.example.com", "port=6543", "user=user", "dbname=db",
		"password=pass", "sslmode=require", "search_path=public",
	} {
		require.Contains(t, dsn, part)
	}
	require.NotContains(t, dsn, "sslmode=disable")
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	_, err := buildPostgresDSN(Config{User: "only-user"})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "pass",
		Name:     "recmind",
		Host:     "mysql.example.com",
		Port:     3307,
	})
	require.NoError(t, err)

	require.Contains(t, dsn, "user:pass@tcp(mysql.example.com:3307)/recmind?")
	require.Contains(t, dsn, "charset=utf8mb4")
	require.Contains(t, dsn, "parseTime=True")
}

func TestBuildMySQLDSNRequiresUserAndName(t *testing.T) {
	_, err := buildMySQLDSN(Config{Name: "only-db"})
	require.Error(t, err)
}
