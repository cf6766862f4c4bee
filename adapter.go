package fabricator

import (
	"context"
)

// Row is a single table row keyed by column name.
type Row = map[string]any

// Adapter executes built queries against a live database connection.
//
// Filters follow the grammar of the query builder: a scalar id, a list of
// ids, a filter object or a raw WHERE clause.
type Adapter interface {
	// Create inserts data and returns the generated id(s).
	Create(ctx context.Context, table string, data Row) ([]any, error)
	// Remove deletes the rows matching filter.
	Remove(ctx context.Context, table string, filter any) error
	// Select returns fields (all columns when empty) of the rows matching filter.
	Select(ctx context.Context, table string, fields []string, filter any) ([]Row, error)
	// Update sets fields on the rows whose id is ids (a scalar or a list).
	Update(ctx context.Context, table string, fields Row, ids any) error
	// Disconnect releases the connection.
	Disconnect() error
}

// GeneratedColumnSelector is implemented by adapters that can report which
// columns of a table are generated or virtual and therefore not writable.
type GeneratedColumnSelector interface {
	SelectWithGenerated(ctx context.Context, table string, fields []string, filter any) ([]Row, map[string]bool, error)
}
