package sqladapter_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/fabricator"
	"github.com/mickamy/fabricator/sqladapter"
)

const usersDDL = `CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	score INTEGER,
	upper_name TEXT GENERATED ALWAYS AS (upper(name)) VIRTUAL
)`

func openSQLite(t *testing.T) *sqladapter.Adapter {
	t.Helper()

	a, err := sqladapter.Open(sqladapter.Config{
		Driver:   sqladapter.DriverSQLite,
		Database: filepath.Join(t.TempDir(), "fabricator.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Disconnect() })

	ctx := context.Background()
	_, err = a.DB().ExecContext(ctx, usersDDL)
	require.NoError(t, err)
	_, err = a.DB().ExecContext(ctx, "INSERT INTO users (name, score) VALUES ('alice', 1), ('carol', 2)")
	require.NoError(t, err)
	return a
}

func usersByName(t *testing.T, f *fabricator.Fabricator) map[string]fabricator.Row {
	t.Helper()
	rows, err := f.Select(context.Background(), "users", nil, nil)
	require.NoError(t, err)
	out := make(map[string]fabricator.Row, len(rows))
	for _, r := range rows {
		out[r["name"].(string)] = r
	}
	return out
}

func TestSQLite_GeneratedColumns(t *testing.T) {
	t.Parallel()

	a := openSQLite(t)
	_, generated, err := a.SelectWithGenerated(context.Background(), "users", []string{"name"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"upper_name": true}, generated)
}

func TestSQLite_NestedSessionsRestore(t *testing.T) {
	t.Parallel()

	a := openSQLite(t)
	f, err := fabricator.New(a, fabricator.Config{})
	require.NoError(t, err)
	ctx := context.Background()

	f.StartSession()
	bob, err := f.Create(ctx, "users", fabricator.Row{"name": "bob", "score": 5})
	require.NoError(t, err)
	assert.Equal(t, int64(3), bob)
	require.NoError(t, f.Update(ctx, "users", fabricator.Row{"score": 10}, fabricator.Row{"name": "alice"}))

	f.StartSession()
	require.NoError(t, f.Remove(ctx, "users", fabricator.Row{"name": "carol"}))
	_, err = f.Create(ctx, "users", fabricator.Row{"name": "dave"})
	require.NoError(t, err)

	users := usersByName(t, f)
	assert.ElementsMatch(t, []string{"alice", "bob", "dave"}, keys(users))
	assert.Equal(t, int64(10), users["alice"]["score"])
	assert.Equal(t, "DAVE", users["dave"]["upper_name"])

	require.NoError(t, f.StopSession(ctx))
	users = usersByName(t, f)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, keys(users))
	assert.Equal(t, int64(2), users["carol"]["score"])
	assert.Equal(t, "CAROL", users["carol"]["upper_name"])

	require.NoError(t, f.StopSession(ctx))
	users = usersByName(t, f)
	assert.ElementsMatch(t, []string{"alice", "carol"}, keys(users))
	assert.Equal(t, int64(1), users["alice"]["score"])
	assert.Equal(t, int64(1), users["alice"]["id"])
}

func TestSQLite_CloseConnection(t *testing.T) {
	t.Parallel()

	a := openSQLite(t)
	f, err := fabricator.New(a, fabricator.Config{})
	require.NoError(t, err)
	ctx := context.Background()

	f.StartSession()
	_, err = f.Create(ctx, "users", fabricator.Row{"name": "erin"})
	require.NoError(t, err)
	require.NoError(t, f.Remove(ctx, "users", 1))

	db := a.DB()
	require.NoError(t, f.CloseConnection(ctx))
	require.Error(t, db.PingContext(ctx), "the connection is closed")
}

func TestSQLite_TextPrimaryKeyCreateIsRemoved(t *testing.T) {
	t.Parallel()

	a := openSQLite(t)
	ctx := context.Background()
	_, err := a.DB().ExecContext(ctx, "CREATE TABLE tags (id TEXT PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	f, err := fabricator.New(a, fabricator.Config{})
	require.NoError(t, err)

	f.StartSession()
	id, err := f.Create(ctx, "tags", fabricator.Row{"id": "abc", "name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	require.NoError(t, f.StopSession(ctx))
	rows, err := f.Select(ctx, "tags", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLite_ReservedWordColumnRestore(t *testing.T) {
	t.Parallel()

	a := openSQLite(t)
	ctx := context.Background()
	_, err := a.DB().ExecContext(ctx, "CREATE TABLE settings (id INTEGER PRIMARY KEY, `key` TEXT, `order` INTEGER)")
	require.NoError(t, err)
	_, err = a.DB().ExecContext(ctx, "INSERT INTO settings (`key`, `order`) VALUES ('theme', 1)")
	require.NoError(t, err)

	f, err := fabricator.New(a, fabricator.Config{})
	require.NoError(t, err)

	f.StartSession()
	require.NoError(t, f.Remove(ctx, "settings", 1))
	require.NoError(t, f.StopSession(ctx))

	rows, err := f.Select(ctx, "settings", []string{"key", "order"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []fabricator.Row{{"key": "theme", "order": int64(1)}}, rows)
}

func keys(m map[string]fabricator.Row) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
