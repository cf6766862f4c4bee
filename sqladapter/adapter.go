// Package sqladapter runs fabricator queries on a database/sql connection.
package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mickamy/fabricator"
	"github.com/mickamy/fabricator/internal/query"
)

var (
	_ fabricator.Adapter                 = (*Adapter)(nil)
	_ fabricator.GeneratedColumnSelector = (*Adapter)(nil)
)

// Adapter executes built SQL on a *sql.DB.
type Adapter struct {
	db      *sql.DB
	dialect Dialect
	logger  zerolog.Logger

	mu        sync.Mutex
	generated map[string]map[string]bool // per table, owned by this adapter
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for executed statements.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithDialect overrides the dialect. The default is MySQL.
func WithDialect(d Dialect) Option {
	return func(a *Adapter) { a.dialect = d }
}

// New wraps an open *sql.DB.
func New(db *sql.DB, opts ...Option) *Adapter {
	a := &Adapter{
		db:        db,
		dialect:   MySQL{},
		logger:    zerolog.Nop(),
		generated: map[string]map[string]bool{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With().Str("component", "sqladapter").Str("dialect", a.dialect.Name()).Logger()
	return a
}

// Open validates cfg and opens a single shared connection.
func Open(cfg Config, opts ...Option) (*Adapter, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("sqladapter: failed to open %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(1)
	return New(db, append([]Option{WithDialect(dialectFor(cfg))}, opts...)...), nil
}

// DB returns the underlying connection.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Create inserts data and returns the inserted id. A caller-supplied id
// column wins over the engine's last insert id, which SQLite reports as the
// rowid even for tables keyed by a non-integer id.
func (a *Adapter) Create(ctx context.Context, table string, data fabricator.Row) ([]any, error) {
	q := query.Insert(table, data)
	res, err := a.exec(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: failed to insert into %s: %w", table, err)
	}
	if id, ok := data["id"]; ok && id != nil {
		return []any{id}, nil
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		return []any{id}, nil
	}
	a.logger.Warn().Str("table", table).Msg("insert returned no id")
	return nil, nil
}

// Remove deletes the rows matching filter.
func (a *Adapter) Remove(ctx context.Context, table string, filter any) error {
	q, err := query.Delete(table, filter)
	if err != nil {
		return err
	}
	if _, err := a.exec(ctx, q); err != nil {
		return fmt.Errorf("sqladapter: failed to delete from %s: %w", table, err)
	}
	return nil
}

// Select returns the rows matching filter.
func (a *Adapter) Select(ctx context.Context, table string, fields []string, filter any) ([]fabricator.Row, error) {
	q, err := query.Select(table, fields, filter)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("sql", q).Msg("query")
	rows, err := a.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: failed to select from %s: %w", table, err)
	}
	ms, err := scanAll(rows)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: failed to scan rows: %w", err)
	}
	return ms, nil
}

// SelectWithGenerated is Select plus the generated columns of table. The
// column lookup is cached per table for the lifetime of the adapter.
func (a *Adapter) SelectWithGenerated(ctx context.Context, table string, fields []string, filter any) ([]fabricator.Row, map[string]bool, error) {
	rows, err := a.Select(ctx, table, fields, filter)
	if err != nil {
		return nil, nil, err
	}
	generated, err := a.generatedColumns(ctx, table)
	if err != nil {
		return nil, nil, err
	}
	return rows, generated, nil
}

// Update sets fields on the rows with the given id(s).
func (a *Adapter) Update(ctx context.Context, table string, fields fabricator.Row, ids any) error {
	if _, err := a.exec(ctx, query.Update(table, fields, ids)); err != nil {
		return fmt.Errorf("sqladapter: failed to update %s: %w", table, err)
	}
	return nil
}

// Disconnect closes the connection.
func (a *Adapter) Disconnect() error {
	return a.db.Close()
}

func (a *Adapter) exec(ctx context.Context, q string) (sql.Result, error) {
	a.logger.Debug().Str("sql", q).Msg("exec")
	return a.db.ExecContext(ctx, q)
}

func (a *Adapter) generatedColumns(ctx context.Context, table string) (map[string]bool, error) {
	a.mu.Lock()
	cached, ok := a.generated[table]
	a.mu.Unlock()
	if ok {
		return cached, nil
	}

	cols, err := a.dialect.GeneratedColumns(ctx, a.db, table)
	if err != nil {
		return nil, fmt.Errorf("sqladapter: failed to look up generated columns of %s: %w", table, err)
	}

	a.mu.Lock()
	a.generated[table] = cols
	a.mu.Unlock()
	return cols, nil
}
