// Package badger stores users and messages in an embedded Badger database.
package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type Connection struct {
	*badger.DB
}

// NewConnection opens the database at path. An empty path opens an in-memory
// instance.
func NewConnection(path string) (*Connection, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}

	return &Connection{DB: db}, nil
}

func (c *Connection) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// Ping reports whether the database accepts transactions.
func (c *Connection) Ping(_ context.Context) error {
	if c.DB == nil || c.DB.IsClosed() {
		return fmt.Errorf("badger is closed")
	}
	return c.DB.View(func(*badger.Txn) error { return nil })
}
