package query

import (
	"slices"
	"strings"

	"github.com/mickamy/fabricator/internal/ident"
)

// Insert builds a single-row INSERT. Columns render quoted, in sorted order.
func Insert(table string, data map[string]any) string {
	return "INSERT INTO " + ident.Table(table) + " " + values(data)
}

// Update builds an UPDATE restricted to ids (a scalar or a list) when ids is non-nil.
func Update(table string, data map[string]any, ids any) string {
	q := "UPDATE " + ident.Table(table) + " SET " + assignments(data)
	if ids != nil {
		q += " WHERE `id`" + IDs(ids)
	}
	return q
}

// Select builds a SELECT of fields (all columns when empty) matching filter.
func Select(table string, fields []string, filter any) (string, error) {
	where, err := Where(filter)
	if err != nil {
		return "", err
	}
	return "SELECT " + selectFields(fields) + " FROM " + ident.Table(table) + where, nil
}

// Delete builds a DELETE of the rows matching filter.
func Delete(table string, filter any) (string, error) {
	where, err := Where(filter)
	if err != nil {
		return "", err
	}
	return "DELETE FROM " + ident.Table(table) + where, nil
}

// Columns returns the keys of data in sorted order.
func Columns(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func values(data map[string]any) string {
	cols := Columns(data)
	quoted := make([]string, len(cols))
	vals := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident.Quote(c)
		vals[i] = Format(data[c])
	}
	return "(" + strings.Join(quoted, ", ") + ") VALUES(" + strings.Join(vals, ", ") + ")"
}

func assignments(data map[string]any) string {
	cols := Columns(data)
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = ident.Quote(c) + " = " + Format(data[c])
	}
	return strings.Join(parts, ", ")
}

func selectFields(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = ident.Quote(f)
	}
	return strings.Join(quoted, ",")
}
