package fabricator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// TableNamer provides a custom table name for a model.
type TableNamer interface {
	TableName() string
}

// Generator computes a template field from the plain (non-generated) fields.
type Generator = func(Row) any

// GeneratorFunc is a Generator that may block or fail, e.g. to create a
// parent row first.
type GeneratorFunc = func(context.Context, Row) (any, error)

// Template creates rows of one table from a set of defaults.
type Template struct {
	f        *Fabricator
	table    string
	defaults Row
}

// Template returns a row template for target, which is a table name, a
// TableNamer, or a struct whose snake-cased plural name is the table.
// Default values may be Generator or GeneratorFunc values.
func (f *Fabricator) Template(target any, defaults Row) (*Template, error) {
	table, err := resolveTableName(target)
	if err != nil {
		return nil, err
	}
	return &Template{f: f, table: table, defaults: maps.Clone(defaults)}, nil
}

// Table returns the table rows are created in.
func (t *Template) Table() string {
	return t.table
}

// Create merges overrides onto the defaults, resolves generators against the
// plain fields, and creates the row. It returns the generated id.
func (t *Template) Create(ctx context.Context, overrides Row) (any, error) {
	data := make(Row, len(t.defaults)+len(overrides))
	maps.Copy(data, t.defaults)
	maps.Copy(data, overrides)

	plain := make(Row, len(data))
	var generated []string
	for k, v := range data {
		switch v.(type) {
		case Generator, GeneratorFunc:
			generated = append(generated, k)
		default:
			plain[k] = v
		}
	}
	slices.Sort(generated)

	out := maps.Clone(plain)
	for _, k := range generated {
		switch g := data[k].(type) {
		case Generator:
			out[k] = g(maps.Clone(plain))
		case GeneratorFunc:
			v, err := g(ctx, maps.Clone(plain))
			if err != nil {
				return nil, fmt.Errorf("fabricator: generate %s.%s: %w", t.table, k, err)
			}
			out[k] = v
		}
	}
	return t.f.Create(ctx, t.table, out)
}

var tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()

func resolveTableName(target any) (string, error) {
	switch v := target.(type) {
	case nil:
		return "", errors.New("fabricator: nil table target")
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			return "", errors.New("fabricator: empty table name")
		}
		return name, nil
	}

	val := reflect.ValueOf(target)
	typ := val.Type()

	if typ.Kind() == reflect.Pointer {
		if val.IsNil() {
			return "", fmt.Errorf("fabricator: nil pointer target %T", target)
		}
		if namer, ok := val.Interface().(TableNamer); ok {
			return namerTableName(namer, target)
		}
		typ = typ.Elem()
		val = val.Elem()
	}

	if namer, ok := val.Interface().(TableNamer); ok {
		return namerTableName(namer, target)
	}

	if typ.Kind() == reflect.Struct {
		if reflect.PointerTo(typ).Implements(tableNamerType) {
			if namer, ok := reflect.New(typ).Interface().(TableNamer); ok {
				return namerTableName(namer, target)
			}
		}
		if typ.Name() == "" {
			return "", fmt.Errorf("fabricator: cannot derive table name for anonymous struct of type %v", typ)
		}
		return inflection.Plural(toSnakeCase(typ.Name())), nil
	}

	return "", fmt.Errorf("fabricator: unsupported table target %T", target)
}

func namerTableName(namer TableNamer, target any) (string, error) {
	name := strings.TrimSpace(namer.TableName())
	if name == "" {
		return "", fmt.Errorf("fabricator: TableName returned empty string. %T", target)
	}
	return name, nil
}

func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
