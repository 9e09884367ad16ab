package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dtroode/gophchat-server/database"
	"github.com/dtroode/gophchat-server/internal/model"
)

const uniqueViolation = "23505"

// Connection bundles the pgx pool with a database/sql view over it, which is
// what the migrator and readiness probe consume.
type Connection struct {
	*pgxpool.Pool
	SQL *sql.DB
}

func NewConnection(ctx context.Context, dsn string) (*Connection, error) {
	conf, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection pool: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	if err := database.Migrate(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Connection{
		Pool: pool,
		SQL:  sqlDB,
	}, nil
}

func (s *Connection) Close() error {
	var err error
	if s.SQL != nil {
		err = s.SQL.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
	return err
}

func (s *Connection) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return fmt.Errorf("connection pool is nil")
	}
	return s.Pool.Ping(ctx)
}

func storeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.ErrAlreadyExists
	}
	return fmt.Errorf("%w: %s: %w", model.ErrStoreUnavailable, op, err)
}
