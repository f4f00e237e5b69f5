package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Dialect identifies the SQL engine behind a DB
type Dialect string

const (
	// DialectPostgres is used for postgres:// and postgresql:// URLs
	DialectPostgres Dialect = "postgres"
	// DialectSQLite is used for sqlite:// URLs (local development and tests)
	DialectSQLite Dialect = "sqlite"
)

// DB wraps a connection pool together with the dialect it speaks.
// Queries use $n placeholders, which both drivers accept.
type DB struct {
	*sql.DB
	dialect Dialect
}

// New opens a database from a URL. postgres:// and postgresql:// go through
// lib/pq; sqlite://path opens an embedded SQLite file.
func New(databaseURL string) (*DB, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return Open(DialectPostgres, databaseURL)
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(databaseURL, u.Scheme+"://")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if path == "" {
			return nil, fmt.Errorf("sqlite database URL has no path")
		}
		return Open(DialectSQLite, path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

// Open opens a database with an explicit dialect and driver DSN and verifies
// the connection.
func Open(dialect Dialect, dsn string) (*DB, error) {
	var driverName string
	switch dialect {
	case DialectPostgres:
		driverName = "postgres"
	case DialectSQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// Single writer; keeps transactions from tripping SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB, dialect: dialect}, nil
}

// Dialect returns the SQL dialect of the connection
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Migrate creates the tables and indexes if they do not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

// bytewise returns a text column expression that orders and compares
// byte-wise on every dialect.
func (db *DB) bytewise(column string) string {
	if db.dialect == DialectPostgres {
		return column + ` COLLATE "C"`
	}
	return column
}

// readTxOptions returns options for read transactions that pair a data query
// with its count query. Postgres gets a repeatable-read snapshot; SQLite
// transactions are already serializable.
func (db *DB) readTxOptions() *sql.TxOptions {
	if db.dialect == DialectPostgres {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}
