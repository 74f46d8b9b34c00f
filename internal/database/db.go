package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/recmind-app/recmind-server/internal/app"
)

// Config contains database connection options.
type Config struct {
	Driver   string
	Path     string // SQLite database path when Driver == sqlite
	DSN      string // Optional DSN override
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Options  map[string]string
}

// FromAppConfig maps the application configuration onto connection options.
func FromAppConfig(cfg app.DatabaseConfig) Config {
	out := Config{
		Driver: cfg.Driver,
		Path:   cfg.Path,
		DSN:    cfg.DSN,
	}

	switch strings.ToLower(cfg.Driver) {
	case "postgres":
		out.Host = cfg.Postgres.Host
		out.Port = cfg.Postgres.Port
		out.User = cfg.Postgres.Username
		out.Password = cfg.Postgres.Password
		out.Name = cfg.Postgres.Database
	case "mysql":
		out.Host = cfg.MySQL.Host
		out.Port = cfg.MySQL.Port
		out.User = cfg.MySQL.Username
		out.Password = cfg.MySQL.Password
		out.Name = cfg.MySQL.Database
	}

	return out
}

// Open initialises a gorm.DB using the provided configuration.
func Open(cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		return openSQLite(cfg)
	case "postgres":
		return openPostgres(cfg)
	case "mysql":
		return openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
