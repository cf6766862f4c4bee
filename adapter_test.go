package fabricator_test

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/mickamy/fabricator"
)

type call struct {
	op     string
	table  string
	data   fabricator.Row
	filter any
}

// memAdapter is an in-memory Adapter that applies mutations to a set of
// tables and records every call in order.
type memAdapter struct {
	mu       sync.Mutex
	calls    []call
	tables   map[string][]fabricator.Row
	nextID   int64
	failures map[string]error // keyed by op
	hook     func(c call)     // runs before a mutation is applied, outside the lock

	disconnected bool
}

func newMemAdapter() *memAdapter {
	return &memAdapter{tables: map[string][]fabricator.Row{}, nextID: 100}
}

// seed inserts rows directly, bypassing call recording.
func (a *memAdapter) seed(table string, rows ...fabricator.Row) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range rows {
		a.tables[table] = append(a.tables[table], maps.Clone(r))
	}
}

func (a *memAdapter) failOn(op string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failures == nil {
		a.failures = map[string]error{}
	}
	a.failures[op] = err
}

func (a *memAdapter) record(c call) error {
	if a.hook != nil {
		a.hook(c)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, c)
	return a.failures[c.op]
}

func (a *memAdapter) Calls() []call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.calls)
}

func (a *memAdapter) callsOf(op string) []call {
	var out []call
	for _, c := range a.Calls() {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (a *memAdapter) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = nil
}

func (a *memAdapter) rows(table string) []fabricator.Row {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]fabricator.Row, len(a.tables[table]))
	for i, r := range a.tables[table] {
		out[i] = maps.Clone(r)
	}
	return out
}

func (a *memAdapter) Create(_ context.Context, table string, data fabricator.Row) ([]any, error) {
	if err := a.record(call{op: "create", table: table, data: maps.Clone(data)}); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	row := maps.Clone(data)
	id, ok := row["id"]
	if !ok {
		a.nextID++
		id = a.nextID
		row["id"] = id
	}
	a.tables[table] = append(a.tables[table], row)
	return []any{id}, nil
}

func (a *memAdapter) Remove(_ context.Context, table string, filter any) error {
	if err := a.record(call{op: "remove", table: table, filter: filter}); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tables[table] = slices.DeleteFunc(a.tables[table], func(r fabricator.Row) bool {
		return matches(r, filter)
	})
	return nil
}

func (a *memAdapter) Select(_ context.Context, table string, fields []string, filter any) ([]fabricator.Row, error) {
	if err := a.record(call{op: "select", table: table, filter: filter}); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []fabricator.Row
	for _, r := range a.tables[table] {
		if !matches(r, filter) {
			continue
		}
		if len(fields) == 0 {
			out = append(out, maps.Clone(r))
			continue
		}
		picked := fabricator.Row{}
		for _, f := range fields {
			if v, ok := r[f]; ok {
				picked[f] = v
			}
		}
		out = append(out, picked)
	}
	return out, nil
}

func (a *memAdapter) Update(_ context.Context, table string, fields fabricator.Row, ids any) error {
	if err := a.record(call{op: "update", table: table, data: maps.Clone(fields), filter: ids}); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.tables[table] {
		if matches(r, ids) {
			maps.Copy(r, fields)
		}
	}
	return nil
}

func (a *memAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, call{op: "disconnect"})
	a.disconnected = true
	return a.failures["disconnect"]
}

// generatedAdapter additionally reports generated columns.
type generatedAdapter struct {
	*memAdapter
	generated map[string]bool
}

func (a *generatedAdapter) SelectWithGenerated(ctx context.Context, table string, fields []string, filter any) ([]fabricator.Row, map[string]bool, error) {
	rows, err := a.Select(ctx, table, fields, filter)
	return rows, a.generated, err
}

// matches supports the filter shapes used by the tests: nil, a scalar id,
// a list of ids, and an equality map.
func matches(r fabricator.Row, filter any) bool {
	switch f := filter.(type) {
	case nil:
		return true
	case map[string]any:
		for k, v := range f {
			if !same(r[k], v) {
				return false
			}
		}
		return true
	case []any:
		for _, id := range f {
			if same(r["id"], id) {
				return true
			}
		}
		return false
	}
	return same(r["id"], filter)
}

func same(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}
