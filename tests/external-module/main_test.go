// Package integration exercises velox as an external module consumer
// would: only the exported Compile/catalog/dialect surface, never an
// internal package path. Mirrors the teacher's own tests/external-module
// convention of a separate go.mod with a replace directive, so `go test`
// here catches accidental internal-only exports the same way the
// teacher's build matrix does.
package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox"
	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/dialect"
)

const socialFixture = `
types:
  - name: User
    properties:
      - name: name
        type: str
        required: true
    links:
      - name: friends
        target: User
        cardinality: Many
`

func buildSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	fx, err := catalog.ParseFixture([]byte(socialFixture))
	require.NoError(t, err)
	snap, err := fx.Build()
	require.NoError(t, err)
	return snap
}

func TestCompileSimpleSelectLiteral(t *testing.T) {
	snap, err := catalog.NewBuilder().Build()
	require.NoError(t, err)

	plan, err := velox.Compile(snap, "select {1, 2, 3}", dialect.Postgres, velox.CompileOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.SQL)
}

func TestCompilePathOverExternalSnapshot(t *testing.T) {
	snap := buildSnapshot(t)

	plan, err := velox.Compile(snap, "select User.friends.name", dialect.Postgres, velox.CompileOptions{})
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "SELECT")
}

func TestCompileScriptAcrossStatements(t *testing.T) {
	snap := buildSnapshot(t)

	plans, err := velox.CompileScript(snap, `
		select User { name };
		select count(User);
	`, dialect.SQLite, velox.CompileOptions{})
	require.NoError(t, err)
	require.Len(t, plans, 2)
	for _, p := range plans {
		assert.NotEmpty(t, p.SQL)
	}
}

func TestDescribeRoundTrips(t *testing.T) {
	snap := buildSnapshot(t)

	plan, err := velox.Compile(snap, "select User { name }", dialect.Postgres, velox.CompileOptions{})
	require.NoError(t, err)

	desc, err := velox.Describe(snap, plan)
	require.NoError(t, err)
	assert.Equal(t, "User", desc.TypeName)
	assert.NotEmpty(t, desc.Shape)
}
