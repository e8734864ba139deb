// Package storage persists ticket records, ticket bans and waitlist entries
// in SQLite or MongoDB.
package storage

import (
	"fmt"

	"go.uber.org/zap"

	"storefront-bot/config"
	"storefront-bot/tickets"
	"storefront-bot/waitlist"
)

type Database interface {
	tickets.Repository
	waitlist.Repository

	Init() error
	Close() error
}

var (
	_ Database = (*SQLiteDB)(nil)
	_ Database = (*MongoDB)(nil)
)

// InitDB opens the backend selected by cfg.Driver.
func InitDB(cfg *config.DatabaseConfig, log *zap.Logger) (Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var db Database
	switch cfg.Driver {
	case "sqlite":
		db = &SQLiteDB{Path: cfg.SQLite.Path, log: log}
	case "mongodb":
		db = &MongoDB{URI: cfg.MongoDB.URI, DBName: cfg.MongoDB.Database, log: log}
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (use \"sqlite\" or \"mongodb\")", cfg.Driver)
	}
	if err := db.Init(); err != nil {
		return nil, err
	}
	return db, nil
}
