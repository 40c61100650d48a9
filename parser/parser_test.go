package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/ast"
	"github.com/syssam/velox/parser"
)

func TestParseSelectSetLiteral(t *testing.T) {
	stmt, err := parser.Parse(`select {1, 2, 3}`)
	require.NoError(t, err)
	sel, ok := stmt.(*ast.Select)
	require.True(t, ok)
	arr, ok := sel.Subject.(*ast.Array)
	require.True(t, ok)
	assert.True(t, arr.Braces)
	assert.Len(t, arr.Elems, 3)
}

func TestParseConcatOfSetLiterals(t *testing.T) {
	stmt, err := parser.Parse(`select {'aaa', 'bbb'} ++ {'ccc', 'ddd'}`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	op, ok := sel.Subject.(*ast.Op)
	require.True(t, ok)
	assert.Equal(t, "++", op.Name)
}

func TestParsePathExpression(t *testing.T) {
	stmt, err := parser.Parse(`select User.friends.name`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	path, ok := sel.Subject.(*ast.Path)
	require.True(t, ok)
	root := path.Root.(*ast.Ident)
	assert.Equal(t, "User", root.Name)
	require.Len(t, path.Steps, 2)
	assert.Equal(t, "friends", path.Steps[0].Name)
	assert.Equal(t, "name", path.Steps[1].Name)
}

func TestParseShapeWithComputedElementAndOrderBy(t *testing.T) {
	stmt, err := parser.Parse(
		`select User { name, friend_count := count(.friends) } order by .name`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	shape := sel.Subject.(*ast.Shape)
	require.Len(t, shape.Elements, 2)
	assert.Equal(t, "name", shape.Elements[0].Name)
	assert.Equal(t, "friend_count", shape.Elements[1].Name)
	require.NotNil(t, shape.Elements[1].Computed)
	call := shape.Elements[1].Computed.(*ast.FunctionCall)
	assert.Equal(t, "count", call.Name)
	require.Len(t, sel.OrderBy, 1)
}

func TestParseForUnionInsert(t *testing.T) {
	stmt, err := parser.Parse(`for n in {'x', 'y', 'z'} union (insert User { name := n })`)
	require.NoError(t, err)
	f := stmt.(*ast.For)
	assert.Equal(t, "n", f.Var.Name)
	assert.True(t, f.Union)
	ins, ok := f.Body.(*ast.Insert)
	require.True(t, ok)
	assert.Equal(t, "User", ins.TypeName.Name)
	require.Len(t, ins.Elements, 1)
	assert.Equal(t, "name", ins.Elements[0].Name)
}

func TestParseTupleOfPaths(t *testing.T) {
	stmt, err := parser.Parse(`select (User.first_name, User.last_name)`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	tup, ok := sel.Subject.(*ast.Tuple)
	require.True(t, ok)
	assert.Len(t, tup.Elems, 2)
}

func TestParseTypeCastAndParameter(t *testing.T) {
	stmt, err := parser.Parse(`select <int64>$x + 1`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	op := sel.Subject.(*ast.Op)
	assert.Equal(t, "+", op.Name)
	param, ok := op.Args[0].(*ast.Parameter)
	require.True(t, ok)
	assert.Equal(t, "x", param.Name)
}

func TestParseOptionalParameter(t *testing.T) {
	stmt, err := parser.Parse(`select <optional str>$name`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	param := sel.Subject.(*ast.Parameter)
	assert.True(t, param.Optional)
}

func TestParseBacklinkWithIntersection(t *testing.T) {
	stmt, err := parser.Parse(`select User.<friends[is Admin]`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	path := sel.Subject.(*ast.Path)
	require.Len(t, path.Steps, 1)
	assert.True(t, path.Steps[0].Backlink)
	assert.Equal(t, "Admin", path.Steps[0].Intersect.Name)
}

func TestParseTypeIntersection(t *testing.T) {
	stmt, err := parser.Parse(`select User[is Admin]`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	ti, ok := sel.Subject.(*ast.TypeIntersection)
	require.True(t, ok)
	assert.Equal(t, "Admin", ti.Type.Name)
}

func TestParseInsertUnlessConflict(t *testing.T) {
	stmt, err := parser.Parse(
		`insert User { name := 'a' } unless conflict on .name else User`)
	require.NoError(t, err)
	ins := stmt.(*ast.Insert)
	require.NotNil(t, ins.Conflict)
	require.NotNil(t, ins.Conflict.On)
	require.NotNil(t, ins.Conflict.Else)
}

func TestParseUpdateSet(t *testing.T) {
	stmt, err := parser.Parse(`update User filter .name = 'a' set { name := 'b' }`)
	require.NoError(t, err)
	u := stmt.(*ast.Update)
	require.NotNil(t, u.Filter)
	require.Len(t, u.Elements, 1)
}

func TestParseGroupBy(t *testing.T) {
	stmt, err := parser.Parse(`group User using a := .name by a`)
	require.NoError(t, err)
	g := stmt.(*ast.Group)
	require.Len(t, g.Using, 1)
	require.Len(t, g.By, 1)
}

func TestParseWithBinding(t *testing.T) {
	stmt, err := parser.Parse(`with x := 1 select x + 1`)
	require.NoError(t, err)
	w := stmt.(*ast.With)
	require.Len(t, w.Bindings, 1)
	assert.Equal(t, "x", w.Bindings[0].Name.Name)
}

func TestParseIfThenElse(t *testing.T) {
	stmt, err := parser.Parse(`select if 1 = 1 then 'a' else 'b'`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	ie, ok := sel.Subject.(*ast.IfElse)
	require.True(t, ok)
	require.NotNil(t, ie.Cond)
}

func TestParseDetached(t *testing.T) {
	stmt, err := parser.Parse(`select detached User`)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	_, ok := sel.Subject.(*ast.Detached)
	require.True(t, ok)
}

func TestUnexpectedTokenIsSyntaxError(t *testing.T) {
	_, err := parser.Parse(`select )`)
	require.Error(t, err)
	var synErr *parser.SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, parser.ParseError, synErr.Kind)
}

func TestParseScriptSemicolonsAreIdempotent(t *testing.T) {
	stmts, err := parser.ParseScript(`;; select 1 ;; select 2 ;`)
	require.NoError(t, err)
	assert.Len(t, stmts, 2)
}

func TestRoundTripPrintReparse(t *testing.T) {
	src := `select User.friends.name`
	stmt, err := parser.Parse(src)
	require.NoError(t, err)
	sel := stmt.(*ast.Select)
	printed := "select " + ast.Print(sel.Subject)
	stmt2, err := parser.Parse(printed)
	require.NoError(t, err)
	assert.Equal(t, ast.Print(stmt.(*ast.Select).Subject), ast.Print(stmt2.(*ast.Select).Subject))
}
