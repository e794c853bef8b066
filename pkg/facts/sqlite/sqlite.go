// Package sqlite provides a SQLite-backed fact driver.
//
// Embeddings are stored in sqlite-vec's float32 BLOB format and the schema
// uses sqlite-vec's vec_length to reject malformed vectors at write time.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/facts/sqldriver"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS facts (
		id TEXT PRIMARY KEY,
		question_norm TEXT NOT NULL UNIQUE,
		answer TEXT NOT NULL,
		source TEXT NOT NULL,
		ttl_days INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fact_embeddings (
		fact_id TEXT PRIMARY KEY REFERENCES facts(id) ON DELETE CASCADE,
		vector BLOB NOT NULL CHECK (vec_length(vector) > 0)
	)`,
	`CREATE INDEX IF NOT EXISTS facts_ttl_idx ON facts (ttl_days) WHERE ttl_days IS NOT NULL`,
}

// Driver implements facts.Driver using SQLite.
type Driver struct {
	*sqldriver.Driver
}

// NewDriver opens (or creates) the database at dbPath and migrates it.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string, logger *zap.Logger) (*Driver, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite has one writer, and ":memory:" databases are
	// per-connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	drv, err := sqldriver.New(ctx, db, sqldriver.Dialect{
		Name:         "sqlite",
		Schema:       schema,
		EncodeVector: sqlite_vec.SerializeFloat32,
	}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite fact driver initialized",
		zap.String("db_path", dbPath),
		zap.String("vec_version", vecVersion),
	)

	return &Driver{Driver: drv}, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
}
