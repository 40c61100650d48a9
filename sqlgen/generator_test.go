package sqlgen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/ast"
	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/dialect"
	"github.com/syssam/velox/ir"
	"github.com/syssam/velox/parser"
	"github.com/syssam/velox/resolve"
	"github.com/syssam/velox/sqlgen"
)

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

// usingExpr parses src as a select subject and hands back the parsed
// expression, a convenient way to build a policy rule's Using clause
// without hand-assembling an ast.Expr tree.
func usingExpr(t *testing.T, src string) ast.Expr {
	t.Helper()
	stmt, err := parser.Parse("select " + src)
	require.NoError(t, err)
	return stmt.(*ast.Select).Subject
}

// postSnapshot builds a single-type catalog (Post, with a title
// property and an owner_id property standing in for an owning link)
// and attaches a one-rule access policy for op to it. There is no SDL
// surface for declaring a policy from source text (catalog.Policy is
// populated at the Go level only), so the rule is set directly on the
// built *catalog.ObjectType.
func postSnapshot(t *testing.T, decision error, op catalog.Operation, using ast.Expr) *catalog.Snapshot {
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

	ent, ok := snap.ByName("Post")
	require.True(t, ok)
	ot := ent.(*catalog.ObjectType)
	ot.Policy = catalog.Policy{
		{Decision: decision, Ops: []catalog.Operation{op}, Using: using},
	}
	return snap
}

func generate(t *testing.T, snap *catalog.Snapshot, src string) *sqlgen.Result {
	t.Helper()
	stmt, err := parser.Parse(src)
	require.NoError(t, err)
	b := ir.NewBuilder(snap, resolve.LegacyFactoring, "default")
	node, err := b.BuildStatement(stmt)
	require.NoError(t, err)
	res, err := sqlgen.New(snap, dialect.Postgres).Generate(node)
	require.NoError(t, err)
	return res
}

func TestSelectLowersAllowPolicyAsWhereConjunct(t *testing.T) {
	snap := postSnapshot(t, catalog.Allow, catalog.OpSelect, usingExpr(t, `.owner_id = <str>$uid`))

	res := generate(t, snap, "select Post")
	assert.Contains(t, res.SQL, "WHERE")
	assert.Contains(t, res.SQL, "owner_id")
	require.Len(t, res.Args, 1)
}

func TestSelectWithoutPolicyHasNoPolicyWhere(t *testing.T) {
	b := catalog.NewBuilder()
	require.NoError(t, b.Add(&ast.SDLObjectType{
		Name: ident("Post"),
		Members: []ast.SDLMember{
			&ast.SDLProperty{Name: ident("title"), Type: ident("str"), Required: true},
		},
	}))
	snap, err := b.Build()
	require.NoError(t, err)

	res := generate(t, snap, "select Post")
	assert.NotContains(t, res.SQL, "WHERE")
}

func TestUpdateLowersAllowPolicyAndKeepsFilterArgs(t *testing.T) {
	snap := postSnapshot(t, catalog.Allow, catalog.OpUpdateOp, usingExpr(t, `.owner_id = <str>$uid`))

	res := generate(t, snap, `update Post filter .title = 'a' set { title := 'b' }`)
	assert.Contains(t, res.SQL, "WHERE")
	assert.Contains(t, res.SQL, "AND")
	// filter's 'a', set's 'b', and the policy's $uid must all survive the
	// scratch-selector predicate lowering (the rawPredicate/Selector.Args
	// path), in the order they were bound.
	require.Len(t, res.Args, 3)
	assert.Equal(t, "b", res.Args[0])
	assert.Equal(t, "a", res.Args[1])
}

func TestDeleteLowersAllowPolicyAndKeepsFilterArgs(t *testing.T) {
	snap := postSnapshot(t, catalog.Allow, catalog.OpDelete, usingExpr(t, `.owner_id = <str>$uid`))

	res := generate(t, snap, `delete Post filter .title = 'a'`)
	assert.Contains(t, res.SQL, "WHERE")
	assert.Contains(t, res.SQL, "AND")
	require.Len(t, res.Args, 2)
	assert.Equal(t, "a", res.Args[0])
}

func TestUpdatePolicyAppliesEvenWithoutOwnFilter(t *testing.T) {
	snap := postSnapshot(t, catalog.Allow, catalog.OpUpdateOp, usingExpr(t, `.owner_id = <str>$uid`))

	res := generate(t, snap, `update Post set { title := 'b' }`)
	assert.Contains(t, res.SQL, "WHERE")
	require.Len(t, res.Args, 2)
	assert.Equal(t, "b", res.Args[0])
}

func TestDeleteMergesSelectPolicyWithOwnPolicy(t *testing.T) {
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

	ent, ok := snap.ByName("Post")
	require.True(t, ok)
	ot := ent.(*catalog.ObjectType)
	ot.Policy = catalog.Policy{
		{Decision: catalog.Allow, Ops: []catalog.Operation{catalog.OpSelect}, Using: usingExpr(t, `.owner_id = <str>$uid`)},
		{Decision: catalog.Allow, Ops: []catalog.Operation{catalog.OpDelete}, Using: usingExpr(t, `.title != <str>$banned`)},
	}

	res := generate(t, snap, `delete Post`)
	// both the select-visibility rule and the delete-specific rule must
	// show up as conjuncts, since a row has to be selectable to be a
	// candidate for deletion at all.
	require.Len(t, res.Args, 2)
}
