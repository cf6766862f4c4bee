package fabricator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/fabricator"
)

type UserProfile struct{}

type Person struct{}

type HTTPLog struct{}

type Account struct{}

func (Account) TableName() string { return "billing.accounts" }

type Invoice struct{}

func (*Invoice) TableName() string { return "invoices_v2" }

type blankNamer struct{}

func (blankNamer) TableName() string { return " " }

func TestFabricator_TemplateTable(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name    string
		target  any
		want    string
		wantErr bool
	}{
		{name: "string", target: "users", want: "users"},
		{name: "trimmed string", target: "  users ", want: "users"},
		{name: "struct", target: UserProfile{}, want: "user_profiles"},
		{name: "pointer to struct", target: &UserProfile{}, want: "user_profiles"},
		{name: "irregular plural", target: Person{}, want: "people"},
		{name: "acronym", target: HTTPLog{}, want: "http_logs"},
		{name: "value namer", target: Account{}, want: "billing.accounts"},
		{name: "pointer namer", target: &Invoice{}, want: "invoices_v2"},
		{name: "pointer namer on value", target: Invoice{}, want: "invoices_v2"},
		{name: "empty string", target: "", wantErr: true},
		{name: "nil", target: nil, wantErr: true},
		{name: "nil pointer", target: (*UserProfile)(nil), wantErr: true},
		{name: "anonymous struct", target: struct{}{}, wantErr: true},
		{name: "blank namer", target: blankNamer{}, wantErr: true},
		{name: "unsupported", target: 42, wantErr: true},
	}

	f := newFabricator(t, newMemAdapter(), fabricator.Config{})
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tpl, err := f.Template(tc.target, nil)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, tpl.Table())
		})
	}
}

func TestTemplate_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newMemAdapter()
	f := newFabricator(t, a, fabricator.Config{})

	defaults := fabricator.Row{
		"name":  "alice",
		"role":  "member",
		"email": fabricator.Generator(func(r fabricator.Row) any { return fmt.Sprintf("%s@example.com", r["name"]) }),
	}
	tpl, err := f.Template(UserProfile{}, defaults)
	require.NoError(t, err)

	f.StartSession()
	_, err = tpl.Create(ctx, fabricator.Row{"name": "bob"})
	require.NoError(t, err)

	rows := a.rows("user_profiles")
	require.Len(t, rows, 1)
	assert.Equal(t, "bob", rows[0]["name"])
	assert.Equal(t, "member", rows[0]["role"])
	assert.Equal(t, "bob@example.com", rows[0]["email"])

	_, err = tpl.Create(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", a.rows("user_profiles")[1]["email"])

	require.NoError(t, f.StopSession(ctx))
	assert.Empty(t, a.rows("user_profiles"))
}

func TestTemplate_GeneratorFunc(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newMemAdapter()
	f := newFabricator(t, a, fabricator.Config{})

	orgs, err := f.Template("orgs", fabricator.Row{"name": "acme"})
	require.NoError(t, err)
	users, err := f.Template("users", fabricator.Row{
		"name": "alice",
		"org_id": fabricator.GeneratorFunc(func(ctx context.Context, _ fabricator.Row) (any, error) {
			return orgs.Create(ctx, nil)
		}),
	})
	require.NoError(t, err)

	f.StartSession()
	_, err = users.Create(ctx, nil)
	require.NoError(t, err)

	orgRows := a.rows("orgs")
	require.Len(t, orgRows, 1)
	assert.Equal(t, orgRows[0]["id"], a.rows("users")[0]["org_id"])

	require.NoError(t, f.StopSession(ctx))
	assert.Empty(t, a.rows("orgs"))
	assert.Empty(t, a.rows("users"))
}

func TestTemplate_GeneratorFuncError(t *testing.T) {
	t.Parallel()

	a := newMemAdapter()
	f := newFabricator(t, a, fabricator.Config{})
	boom := errors.New("boom")

	tpl, err := f.Template("users", fabricator.Row{
		"org_id": fabricator.GeneratorFunc(func(context.Context, fabricator.Row) (any, error) { return nil, boom }),
	})
	require.NoError(t, err)

	_, err = tpl.Create(context.Background(), nil)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, a.callsOf("create"))
}

func TestTemplate_DefaultsAreCopied(t *testing.T) {
	t.Parallel()

	a := newMemAdapter()
	f := newFabricator(t, a, fabricator.Config{})

	defaults := fabricator.Row{"name": "alice"}
	tpl, err := f.Template("users", defaults)
	require.NoError(t, err)
	defaults["name"] = "mallory"

	_, err = tpl.Create(context.Background(), fabricator.Row{"role": "admin"})
	require.NoError(t, err)
	_, err = tpl.Create(context.Background(), nil)
	require.NoError(t, err)

	rows := a.rows("users")
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["name"])
	assert.Equal(t, "admin", rows[0]["role"])
	assert.NotContains(t, rows[1], "role")
}
