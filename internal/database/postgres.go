package database

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

// buildPostgresDSN assembles a keyword/value connection string. Explicit
// option keys win over the built-in defaults, so sslmode can be raised from
// disable without touching anything else.
func buildPostgresDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", errors.New("postgres configuration requires user and database name")
	}

	kv := map[string]string{
		"host":    "localhost",
		"port":    "5432",
		"sslmode": "disable",
		"user":    cfg.User,
		"dbname":  cfg.Name,
	}
	if cfg.Host != "" {
		kv["host"] = cfg.Host
	}
	if cfg.Port != 0 {
		kv["port"] = fmt.Sprintf("%d", cfg.Port)
	}
	if cfg.Password != "" {
		kv["password"] = cfg.Password
	}
	for key, value := range cfg.Options {
		kv[key] = value
	}

	keys := make([]string, 0, len(kv))
	for key := range kv {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+kv[key])
	}
	return strings.Join(pairs, " "), nil
}
