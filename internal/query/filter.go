package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mickamy/fabricator/internal/ident"
)

var (
	ErrUnrecognizedPattern = errors.New("query: unrecognized pattern")
	ErrInvalidNesting      = errors.New("query: $json can not nest $or, $and or $json")
)

// Raw is a SQL fragment used verbatim.
type Raw string

// M is a filter object. Keys render in sorted order; use D when order matters.
type M map[string]any

// E is a single key/value pair of an ordered filter.
type E struct {
	Key   string
	Value any
}

// D is a filter object whose keys render in declaration order.
type D []E

// Where renders a filter as a WHERE clause with a leading space, or "" for a
// nil filter. Accepted filters:
//
//	5                          -> WHERE `id` = 5
//	[]int{1, 2, 3}             -> WHERE `id` IN (1,2,3)
//	M{"id": 1, "name": "x"}    -> WHERE `id` = 1 AND `name` = 'x'
//	M{"$or": []M{...}}         -> WHERE ((...) OR (...))
//	Raw("WHERE `id` > 2")      -> used verbatim
func Where(filter any) (string, error) {
	switch f := filter.(type) {
	case nil:
		return "", nil
	case Raw:
		return raw(string(f)), nil
	case string:
		return raw(f), nil
	}

	if _, ok := entries(filter); ok {
		s, err := conditions(filter, "AND")
		if err != nil {
			return "", err
		}
		return " WHERE " + s, nil
	}
	if isNumber(filter) {
		return " WHERE `id` = " + Format(filter), nil
	}
	if _, ok := asList(filter); ok {
		return " WHERE `id`" + IDs(filter), nil
	}
	return "", fmt.Errorf("%w %s", ErrUnrecognizedPattern, describe(filter))
}

func raw(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(s)
	if upper == "WHERE" || strings.HasPrefix(upper, "WHERE ") || strings.HasPrefix(upper, "WHERE\n") {
		return " " + s
	}
	return " WHERE " + s
}

// conditions joins the constraints of a filter object, or of a list of
// filter objects (each parenthesized), with the given operator.
func conditions(filter any, join string) (string, error) {
	es, ok := entries(filter)
	if !ok {
		members, ok := asList(filter)
		if !ok {
			return "", fmt.Errorf("%w %s", ErrUnrecognizedPattern, describe(filter))
		}
		parts := make([]string, 0, len(members))
		for _, m := range members {
			s, err := conditions(m, "AND")
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+s+")")
		}
		return strings.Join(parts, " "+join+" "), nil
	}

	parts := make([]string, 0, len(es))
	for _, e := range es {
		switch e.Key {
		case "$query":
			parts = append(parts, fmt.Sprint(e.Value))
		case "$and":
			s, err := conditions(e.Value, "AND")
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+s+")")
		case "$or":
			s, err := conditions(e.Value, "OR")
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+s+")")
		default:
			rhs, err := Constraint(e.Value, false)
			if err != nil {
				return "", err
			}
			parts = append(parts, ident.Quote(e.Key)+rhs)
		}
	}
	return strings.Join(parts, " "+join+" "), nil
}

// Constraint renders the right-hand side of a single column constraint,
// e.g. M{"$like": "%a%"} -> " like '%a%'". Operators are checked in a fixed
// order and the first present one wins. With noNested set, $json, $or and
// $and are rejected.
func Constraint(v any, noNested bool) (string, error) {
	es, ok := entries(v)
	if !ok {
		if v == nil {
			return "", fmt.Errorf("%w null", ErrUnrecognizedPattern)
		}
		if _, isList := asList(v); isList {
			return "", fmt.Errorf("%w %s", ErrUnrecognizedPattern, describe(v))
		}
		return " = " + Format(v), nil
	}

	if noNested {
		for _, k := range []string{"$json", "$or", "$and"} {
			if _, ok := lookup(es, k); ok {
				return "", ErrInvalidNesting
			}
		}
	}

	if x, ok := lookup(es, "$like"); ok {
		return " like '" + fmt.Sprint(x) + "'", nil
	}
	if x, ok := lookup(es, "$gt"); ok {
		return " > " + Format(x), nil
	}
	if x, ok := lookup(es, "$lt"); ok {
		return " < " + Format(x), nil
	}
	if x, ok := lookup(es, "$gte"); ok {
		return " >= " + Format(x), nil
	}
	if x, ok := lookup(es, "$lte"); ok {
		return " <= " + Format(x), nil
	}
	if x, ok := lookup(es, "$ne"); ok {
		return " <> " + Format(x), nil
	}
	if x, ok := lookup(es, "$in"); ok {
		return IDs(x), nil
	}
	if x, ok := lookup(es, "$json"); ok {
		return jsonPath(x)
	}
	if x, ok := lookup(es, "$exists"); ok {
		switch x {
		case true:
			return " is not null", nil
		case false:
			return " is null", nil
		}
	}
	return "", fmt.Errorf("%w %s", ErrUnrecognizedPattern, describe(v))
}

func jsonPath(v any) (string, error) {
	es, ok := entries(v)
	if !ok {
		return "", fmt.Errorf("%w $json %s", ErrUnrecognizedPattern, describe(v))
	}
	key, hasKey := lookup(es, "key")
	value, hasValue := lookup(es, "value")
	if !hasKey || !hasValue {
		return "", fmt.Errorf("%w $json requires key and value", ErrUnrecognizedPattern)
	}
	rhs, err := Constraint(value, true)
	if err != nil {
		return "", err
	}
	return "->'$." + fmt.Sprint(key) + "'" + rhs, nil
}

// entries returns the key/value pairs of a filter object.
func entries(v any) ([]E, bool) {
	switch x := v.(type) {
	case D:
		return x, true
	case []E:
		return x, true
	case M:
		return sortedEntries(x), true
	case map[string]any:
		return sortedEntries(x), true
	}
	return nil, false
}

func sortedEntries(m map[string]any) []E {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	es := make([]E, len(keys))
	for i, k := range keys {
		es[i] = E{Key: k, Value: m[k]}
	}
	return es
}

func lookup(es []E, key string) (any, bool) {
	for _, e := range es {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func describe(v any) string {
	if es, ok := entries(v); ok {
		m := make(map[string]any, len(es))
		for _, e := range es {
			m[e.Key] = e.Value
		}
		return encodeJSON(m)
	}
	return encodeJSON(v)
}
