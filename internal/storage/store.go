// Package storage persists seen listings so each listing is notified at
// most once.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// Store is the seen-listing store.
type Store interface {
	// Exists reports whether a listing id has been stored.
	Exists(ctx context.Context, id string) (bool, error)
	// Insert stores a listing; it returns false when the id is already present.
	Insert(ctx context.Context, l types.Listing) (bool, error)
	// Touch updates last_checked of a stored listing.
	Touch(ctx context.Context, id string) error
	MarkNotified(ctx context.Context, id string) error
	// Pending returns stored listings not yet notified, newest first.
	Pending(ctx context.Context, limit int) ([]types.Listing, error)
	All(ctx context.Context) ([]types.Listing, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats summarizes the store contents.
type Stats struct {
	Total    int `json:"total"`
	Notified int `json:"notified"`
	Pending  int `json:"pending"`
}

// Config selects the database backend.
type Config struct {
	Driver string `yaml:"driver"` // sqlite3, postgres or mysql
	DSN    string `yaml:"dsn"`
}

// Open connects to the configured backend and creates the schema.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(ctx, cfg.DSN)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, cfg.DSN)
	case "mysql":
		return OpenMySQL(ctx, cfg.DSN)
	default:
		return nil, utils.NewError(utils.ErrCodeConfiguration, fmt.Sprintf("unsupported storage driver %q", cfg.Driver)).Build()
	}
}
