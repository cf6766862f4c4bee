package fabricator

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

type recordKind int

const (
	// recordCreated holds the key of a row created during the session.
	recordCreated recordKind = iota
	// recordUpdated holds the prior state of an updated row.
	recordUpdated
	// recordDeleted holds a deleted row that has to be inserted again.
	recordDeleted
)

func (k recordKind) String() string {
	switch k {
	case recordCreated:
		return "created"
	case recordUpdated:
		return "updated"
	case recordDeleted:
		return "deleted"
	}
	return fmt.Sprintf("recordKind(%d)", int(k))
}

// Deleted is a snapshot of a deleted row. Passed to SaveSessionData it is
// re-created when the session stops.
type Deleted map[string]any

// record is one undo entry of a session.
type record struct {
	kind recordKind
	key  any // created: generated id; updated/deleted: the row id, nil when unknown
	row  Row // updated/deleted: snapshot owned by the record
}

// deletedRow is a Deleted snapshot whose row id was stripped before
// recording; key still identifies the removed row.
type deletedRow struct {
	key any
	row Row
}

var errMissingKey = errors.New("snapshot has no id")

// newRecords classifies session data into undo records. Accepted shapes are a
// created key, a Row snapshot, a Deleted snapshot, or a list of those.
func newRecords(data any) ([]record, error) {
	switch x := data.(type) {
	case nil:
		return nil, nil
	case Deleted:
		return []record{{kind: recordDeleted, key: x["id"], row: cloneRow(x)}}, nil
	case deletedRow:
		return []record{{kind: recordDeleted, key: x.key, row: cloneRow(x.row)}}, nil
	case Row:
		id, ok := x["id"]
		if !ok || id == nil {
			return nil, errMissingKey
		}
		return []record{{kind: recordUpdated, key: id, row: cloneRow(x)}}, nil
	case []byte:
		return []record{{kind: recordCreated, key: string(x)}}, nil
	}

	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		var out []record
		for i := 0; i < rv.Len(); i++ {
			rs, err := newRecords(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out = append(out, rs...)
		}
		return out, nil
	case reflect.Map, reflect.Struct, reflect.Func, reflect.Chan:
		return nil, fmt.Errorf("unsupported session data %T", data)
	}
	return []record{{kind: recordCreated, key: data}}, nil
}

// normalizeKey makes ids of different integer types compare equal.
func normalizeKey(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case nil:
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u)
		}
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return rv.Float()
	case reflect.String:
		return rv.String()
	}
	if !rv.Type().Comparable() {
		return fmt.Sprint(v)
	}
	return v
}

// cloneRow copies a row so the record never aliases caller-owned data.
func cloneRow(r map[string]any) Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...)
	case map[string]any:
		return cloneRow(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	}
	return v
}

// without returns a copy of r minus the given columns.
func without(r Row, drop func(col string) bool) Row {
	out := make(Row, len(r))
	for k, v := range r {
		if drop(k) {
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}
