package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mickamy/fabricator/internal/ident"
	"github.com/mickamy/fabricator/internal/query"
)

// Querier is the read side of *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Dialect looks up engine-specific schema details.
type Dialect interface {
	Name() string
	// GeneratedColumns returns the generated or virtual columns of table.
	GeneratedColumns(ctx context.Context, q Querier, table string) (map[string]bool, error)
}

// MySQL reads generated columns from information_schema. Database selects
// the schema; the connection's current database is used when empty.
type MySQL struct {
	Database string
}

func (MySQL) Name() string { return DriverMySQL }

func (d MySQL) GeneratedColumns(ctx context.Context, q Querier, table string) (map[string]bool, error) {
	var schema any = query.Raw("DATABASE()")
	if d.Database != "" {
		schema = d.Database
	}
	if parts := ident.SplitQualified(table); len(parts) == 2 {
		schema = parts[0]
	}

	stmt, err := query.Select("`information_schema`.`COLUMNS`", []string{"COLUMN_NAME", "EXTRA"}, query.D{
		{Key: "TABLE_SCHEMA", Value: schema},
		{Key: "TABLE_NAME", Value: ident.BaseTableName(table)},
		{Key: "$or", Value: []query.M{
			{"EXTRA": query.M{"$like": "%GENERATED%"}},
			{"EXTRA": query.M{"$like": "%VIRTUAL%"}},
		}},
	})
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	ms, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ms))
	for _, m := range ms {
		out[fmt.Sprint(m["COLUMN_NAME"])] = true
	}
	return out, nil
}

// SQLite reads generated columns from PRAGMA table_xinfo, where hidden is 2
// for virtual and 3 for stored generated columns.
type SQLite struct{}

func (SQLite) Name() string { return DriverSQLite }

func (SQLite) GeneratedColumns(ctx context.Context, q Querier, table string) (map[string]bool, error) {
	name := strings.ReplaceAll(ident.BaseTableName(table), "'", "''")
	rows, err := q.QueryContext(ctx, "PRAGMA table_xinfo('"+name+"')")
	if err != nil {
		return nil, err
	}
	ms, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool)
	for _, m := range ms {
		switch fmt.Sprint(m["hidden"]) {
		case "2", "3":
			out[fmt.Sprint(m["name"])] = true
		}
	}
	return out, nil
}

func dialectFor(cfg Config) Dialect {
	if cfg.Driver == DriverSQLite {
		return SQLite{}
	}
	return MySQL{Database: cfg.Database}
}
