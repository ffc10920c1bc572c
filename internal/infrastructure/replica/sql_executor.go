package replica

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// PoolConfig sizes the replica connection pool.
type PoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// SQLExecutor runs statements on a MySQL replica through database/sql.
type SQLExecutor struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to the replica and verifies it answers a ping.
func Open(ctx context.Context, cfg PoolConfig, logger *zap.Logger) (*SQLExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse replica dsn: %w", err)
	}
	dsn.ParseTime = true
	if dsn.Params == nil {
		dsn.Params = map[string]string{}
	}
	// Reads only.
	dsn.Params["transaction_isolation"] = "'READ-COMMITTED'"

	connector, err := mysql.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("create replica connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping replica %s: %w", dsn.Addr, err)
	}

	logger.Info("Connected to read replica",
		zap.String("addr", dsn.Addr),
		zap.String("database", dsn.DBName),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)
	return NewSQLExecutor(db, logger), nil
}

// NewSQLExecutor wraps an existing pool.
func NewSQLExecutor(db *sql.DB, logger *zap.Logger) *SQLExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLExecutor{db: db, logger: logger.Named("replica")}
}

// Query runs stmt and returns its rows as []map[string]any keyed by column
// name.
func (e *SQLExecutor) Query(ctx context.Context, stmt Statement) (any, error) {
	rows, err := e.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, 1)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Stats exposes pool statistics.
func (e *SQLExecutor) Stats() sql.DBStats {
	return e.db.Stats()
}

// Ping checks the replica is reachable.
func (e *SQLExecutor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close releases the pool.
func (e *SQLExecutor) Close() error {
	return e.db.Close()
}
