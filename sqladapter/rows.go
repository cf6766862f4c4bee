package sqladapter

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
)

// scanAll consumes every row of rows into maps keyed by column name.
func scanAll(rows *sql.Rows) ([]map[string]any, error) {
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types := make([]string, len(cols))
	if cts, err := rows.ColumnTypes(); err == nil {
		for i, ct := range cts {
			types[i] = strings.ToUpper(ct.DatabaseTypeName())
		}
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, rowToMap(cols, types, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// rowToMap converts a single row (columns + values) to a map. Drivers that
// return text-protocol bytes get them decoded by the column's database type.
func rowToMap(cols, types []string, vals []any) map[string]any {
	m := make(map[string]any, len(cols))
	for i, c := range cols {
		if b, ok := vals[i].([]byte); ok {
			m[c] = decodeBytes(types[i], b)
			continue
		}
		m[c] = vals[i]
	}
	return m
}

func decodeBytes(dbType string, b []byte) any {
	s := string(b)
	switch {
	case dbType == "JSON":
		var js any
		if json.Unmarshal(b, &js) == nil {
			return js
		}
		return s
	case strings.Contains(dbType, "BLOB"), strings.Contains(dbType, "BINARY"):
		return append([]byte(nil), b...)
	case strings.Contains(dbType, "INT"):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	case dbType == "FLOAT", dbType == "DOUBLE", dbType == "REAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
