package velox_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox"
	"github.com/syssam/velox/ast"
	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/dialect"
	"github.com/syssam/velox/parser"
)

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func usingExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	stmt, err := parser.Parse("select " + src)
	require.NoError(t, err)
	return stmt.(*ast.Select).Subject
}

func postSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	b := catalog.NewBuilder()
	require.NoError(t, b.Add(&ast.SDLObjectType{
		Name: ident("Post"),
		Members: []ast.SDLMember{
			&ast.SDLProperty{Name: ident("title"), Type: ident("str"), Required: true},
			&ast.SDLProperty{Name: ident("owner_id"), Type: ident("str"), Required: true},
		},
	}))
	snap, err := b.Build()
	require.NoError(t, err)
	return snap
}

func TestCompileSelectWithAllowPolicyNeedsNoHook(t *testing.T) {
	snap := postSnapshot(t)
	ent, ok := snap.ByName("Post")
	require.True(t, ok)
	ent.(*catalog.ObjectType).Policy = catalog.Policy{
		{Decision: catalog.Allow, Ops: []catalog.Operation{catalog.OpSelect}, Using: usingExpr(t, `.owner_id = <str>$uid`)},
	}

	plan, err := velox.Compile(snap, "select Post", dialect.Postgres, velox.CompileOptions{})
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "WHERE")
}

func TestCompileInsertWithPolicyRequiresHook(t *testing.T) {
	snap := postSnapshot(t)
	ent, ok := snap.ByName("Post")
	require.True(t, ok)
	ent.(*catalog.ObjectType).Policy = catalog.Policy{
		{Decision: catalog.Allow, Ops: []catalog.Operation{catalog.OpInsert}, Using: usingExpr(t, `.owner_id = <str>$uid`)},
	}

	_, err := velox.Compile(snap, `insert Post { title := 'a', owner_id := 'b' }`, dialect.Postgres, velox.CompileOptions{})
	require.Error(t, err, "PolicyHook is nil but the insert policy needs a host decision")

	plan, err := velox.Compile(snap, `insert Post { title := 'a', owner_id := 'b' }`, dialect.Postgres, velox.CompileOptions{
		PolicyHook: func(op catalog.Operation, ot *catalog.ObjectType) (bool, error) {
			assert.Equal(t, catalog.OpInsert, op)
			assert.Equal(t, "Post", ot.Name)
			return true, nil
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.SQL)
}

func TestCompileDeleteWithDenyPolicyRequiresHookAndCanReject(t *testing.T) {
	snap := postSnapshot(t)
	ent, ok := snap.ByName("Post")
	require.True(t, ok)
	ent.(*catalog.ObjectType).Policy = catalog.Policy{
		{Decision: catalog.Deny, Ops: []catalog.Operation{catalog.OpDelete}, Using: usingExpr(t, `.owner_id = <str>$uid`)},
	}

	_, err := velox.Compile(snap, "delete Post", dialect.Postgres, velox.CompileOptions{
		PolicyHook: func(op catalog.Operation, ot *catalog.ObjectType) (bool, error) {
			return false, nil
		},
	})
	require.Error(t, err, "a false PolicyHook result must fail the compile")

	plan, err := velox.Compile(snap, "delete Post", dialect.Postgres, velox.CompileOptions{
		PolicyHook: func(op catalog.Operation, ot *catalog.ObjectType) (bool, error) {
			return true, nil
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.SQL)
}

func TestCompileUpdateWithAllowPolicyNeedsNoHook(t *testing.T) {
	snap := postSnapshot(t)
	ent, ok := snap.ByName("Post")
	require.True(t, ok)
	ent.(*catalog.ObjectType).Policy = catalog.Policy{
		{Decision: catalog.Allow, Ops: []catalog.Operation{catalog.OpUpdateOp}, Using: usingExpr(t, `.owner_id = <str>$uid`)},
	}

	plan, err := velox.Compile(snap, `update Post set { title := 'z' }`, dialect.Postgres, velox.CompileOptions{})
	require.NoError(t, err)
	assert.Contains(t, plan.SQL, "WHERE")
}
