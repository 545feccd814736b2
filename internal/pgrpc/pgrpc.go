// Package pgrpc calls the canopy Postgres functions directly over a database
// connection, bypassing the PostgREST gateway.
package pgrpc

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Caller runs Postgres functions as `SELECT row_to_json(r) FROM fn(...) r`.
type Caller struct {
	db     *sql.DB
	schema string
}

// Open connects to dsn, verifies the connection and returns a Caller.
func Open(ctx context.Context, dsn, schema string, pool PoolConfig) (*Caller, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgrpc: open postgres connection: %w", err)
	}

	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pgrpc: ping postgres: %w", err)
	}

	return NewCaller(db, schema), nil
}

// NewCaller wraps an existing database handle.
func NewCaller(db *sql.DB, schema string) *Caller {
	if schema == "" {
		schema = "public"
	}
	return &Caller{db: db, schema: schema}
}

// Close closes the underlying database.
func (c *Caller) Close() error {
	return c.db.Close()
}

// Call invokes procedure with named arguments and returns each result row as
// a JSON object.
func (c *Caller) Call(ctx context.Context, procedure string, params map[string]any) ([]json.RawMessage, error) {
	query, args, err := BuildQuery(c.schema, procedure, params)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgrpc: call %s: %w", procedure, err)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("pgrpc: scan %s: %w", procedure, err)
		}
		out = append(out, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgrpc: rows %s: %w", procedure, err)
	}
	return out, nil
}

// BuildQuery renders the SQL for a named-argument function call. Argument
// names are sorted so the placeholder order is deterministic.
func BuildQuery(schema, procedure string, params map[string]any) (string, []any, error) {
	if !identRe.MatchString(procedure) {
		return "", nil, fmt.Errorf("pgrpc: invalid procedure name %q", procedure)
	}

	names := make([]string, 0, len(params))
	for name := range params {
		if !identRe.MatchString(name) {
			return "", nil, fmt.Errorf("pgrpc: invalid parameter name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	args := make([]any, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s => $%d", pgx.Identifier{name}.Sanitize(), i+1)
		args[i] = params[name]
	}

	fn := pgx.Identifier{schema, procedure}.Sanitize()
	query := fmt.Sprintf("SELECT row_to_json(r)::text FROM %s(%s) AS r", fn, strings.Join(parts, ", "))
	return query, args, nil
}
