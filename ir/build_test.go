package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/parser"
	"github.com/syssam/velox/resolve"
)

func socialSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	fx, err := catalog.LoadFixture("../catalog/testdata/social.yaml")
	require.NoError(t, err)
	snap, err := fx.Build()
	require.NoError(t, err)
	return snap
}

func buildSource(t *testing.T, snap *catalog.Snapshot, src string) Node {
	t.Helper()
	stmt, err := parser.Parse(src)
	require.NoError(t, err)
	b := NewBuilder(snap, resolve.LegacyFactoring, "default")
	n, err := b.BuildStatement(stmt)
	require.NoError(t, err)
	return n
}

func TestBuildLiteralSetCardinalityMany(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, "select {1, 2, 3}")
	sel := n.(*SelectStmt)
	assert.Equal(t, Many, sel.Subject.Head().Card)
}

func TestBuildBareObjectTypeIsMany(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, "select User")
	sel := n.(*SelectStmt)
	assert.Equal(t, Many, sel.Subject.Head().Card)
}

func TestBuildPathStepProductRule(t *testing.T) {
	snap := socialSnapshot(t)
	// User (MANY) . friends (multi link, MANY) . name (required str, ONE)
	// MANY . MANY = MANY; MANY . ONE = MANY.
	n := buildSource(t, snap, "select User.friends.name")
	sel := n.(*SelectStmt)
	assert.Equal(t, Many, sel.Subject.Head().Card)
	step, ok := sel.Subject.(*PathStep)
	require.True(t, ok)
	inner, ok := step.Source.(*PathStep)
	require.True(t, ok)
	assert.Equal(t, Many, inner.Head().Card)
}

func TestBuildPathStepWeakensThroughOptionalLink(t *testing.T) {
	snap := socialSnapshot(t)
	// best_friend is a non-required single link: User (MANY) . best_friend
	// weakens via AT_MOST_ONE: product(Many, AtMostOne) stays Many (many
	// rows, each optionally having a best friend) per the product rule.
	n := buildSource(t, snap, "select User.best_friend")
	sel := n.(*SelectStmt)
	assert.Equal(t, Many, sel.Subject.Head().Card)
}

func TestBuildShapeElementsBindSubjectType(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, "select User { name, friend_count := count(.friends) } order by .name")
	sel := n.(*SelectStmt)
	shape := sel.Subject.(*Shape)
	require.Len(t, shape.Elements, 2)
	assert.Equal(t, "name", shape.Elements[0].Name)
	assert.Equal(t, "friend_count", shape.Elements[1].Name)

	// count() is a SetOfType-parameter aggregate: its own return
	// cardinality is the signature's ReturnSingletonType, not the
	// cartesian product of its MANY argument.
	fc, ok := shape.Elements[1].Value.(*FuncCall)
	require.True(t, ok)
	assert.Equal(t, One, fc.Head().Card)

	require.NotNil(t, sel.OrderBy)
	assert.Len(t, sel.OrderBy, 1)
}

func TestBuildInsertRequiresNonDefaultedProperties(t *testing.T) {
	snap := socialSnapshot(t)
	stmt, err := parser.Parse(`insert User { bio := 'hi' }`)
	require.NoError(t, err)
	b := NewBuilder(snap, resolve.LegacyFactoring, "default")
	_, err = b.BuildStatement(stmt)
	require.Error(t, err, "name is required and not provided")
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, RequiredNotProvided, typeErr.Kind)
}

func TestBuildInsertSingletonOutput(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, `insert User { name := 'Ann' }`)
	ins := n.(*InsertStmt)
	assert.Equal(t, One, ins.Head().Card)
}

func TestBuildForLoopBindsVariableToIteratedElementType(t *testing.T) {
	snap := socialSnapshot(t)
	// Regression test: the for-loop variable n must resolve to a
	// singleton of the iterated set's element type when referenced
	// bare inside the body (spec.md §8 scenario 5), not fail with an
	// internal "bare-binding lookup" error.
	n := buildSource(t, snap, `for n in {'x', 'y', 'z'} union (insert User { name := n })`)
	forNode := n.(*For)
	ins := forNode.Body.(*InsertStmt)
	require.Len(t, ins.Elements, 1)
	nameVal := ins.Elements[0].Value
	assert.Equal(t, One, nameVal.Head().Card)

	strEnt, ok := snap.ByName("str")
	require.True(t, ok)
	assert.Equal(t, strEnt.Head().ID, nameVal.Head().Type)
}

func TestBuildWithAliasReproducesValueCardinality(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, `with u := User select u.name`)
	wb := n.(*WithBinding)
	assert.Equal(t, Many, wb.Value.Head().Card)
	sel := wb.Body.(*SelectStmt)
	// u.name must resolve against User's actual type (str), not an
	// internal placeholder, and inherit u's MANY cardinality.
	assert.Equal(t, Many, sel.Subject.Head().Card)
}

func TestBuildDetachedMintsFreshBindingKeyWithoutDisturbingOuterFactoring(t *testing.T) {
	snap := socialSnapshot(t)
	// Two plain User occurrences in the same scope factor (same binding
	// key); detached User must not reuse that key, and must not corrupt
	// later plain User occurrences either.
	stmt, err := parser.Parse(`select (User.name, detached User.name, User.name)`)
	require.NoError(t, err)
	b := NewBuilder(snap, resolve.LegacyFactoring, "default")
	node, err := b.BuildStatement(stmt)
	require.NoError(t, err)

	sel := node.(*SelectStmt)
	tuple := sel.Subject.(*TupleCtor)
	require.Len(t, tuple.Elements, 3)

	first := tuple.Elements[0].(*PathStep).Source.Head().Binding
	detached := tuple.Elements[1].(*PathStep).Source.Head().Binding
	third := tuple.Elements[2].(*PathStep).Source.Head().Binding

	assert.NotEqual(t, resolve.BindingKey(0), first)
	assert.NotEqual(t, first, detached, "detached occurrence must not share the outer binding key")
	assert.Equal(t, first, third, "the two plain occurrences must still factor together")
}

func TestBuildBacklinkIsAlwaysMany(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, "select User.<friends")
	sel := n.(*SelectStmt)
	bl, ok := sel.Subject.(*Backlink)
	require.True(t, ok)
	assert.Equal(t, Many, bl.Head().Card)
	assert.NotEmpty(t, bl.Pointers)
}

func TestBuildUUIDCastToObjectTypeYieldsIDLookup(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, `select <User>'6ba7b810-9dad-11d1-80b4-00c04fd430c8'`)
	sel := n.(*SelectStmt)
	lookup, ok := sel.Subject.(*IDLookup)
	require.True(t, ok)
	assert.Equal(t, AtMostOne, lookup.Head().Card)
}

func TestBuildCastRejectsInvalidUUIDLiteral(t *testing.T) {
	snap := socialSnapshot(t)
	stmt, err := parser.Parse(`select <User>'not-a-uuid'`)
	require.NoError(t, err)
	b := NewBuilder(snap, resolve.LegacyFactoring, "default")
	_, err = b.BuildStatement(stmt)
	require.Error(t, err)
	var typeErr *TypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, CastFailed, typeErr.Kind)
}

func TestBuildTypeIntersectionWeakensCardinality(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, "select User[is User]")
	sel := n.(*SelectStmt)
	ti, ok := sel.Subject.(*TypeIntersection)
	require.True(t, ok)
	// User is not a proper subtype of itself here (same type), so
	// cardinality is unchanged from the MANY subject.
	assert.Equal(t, Many, ti.Head().Card)
}

func TestBuildIfElseJoinsBranchCardinality(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, `select (if true then 'a' else 'b')`)
	sel := n.(*SelectStmt)
	ie, ok := sel.Subject.(*IfElse)
	require.True(t, ok)
	assert.Equal(t, One, ie.Head().Card)
}

func TestBuildCoalesceJoinsCardinality(t *testing.T) {
	snap := socialSnapshot(t)
	n := buildSource(t, snap, "select User.best_friend.name ?? 'nobody'")
	sel := n.(*SelectStmt)
	co, ok := sel.Subject.(*Coalesce)
	require.True(t, ok)
	assert.Equal(t, Join(co.Left.Head().Card, co.Right.Head().Card), co.Head().Card)
}

func TestBuildUpdateSetValueSeesImplicitSubject(t *testing.T) {
	snap := socialSnapshot(t)
	// The set value references .name, the row being updated, the same
	// way a shape element's computed expression would.
	n := buildSource(t, snap, `update User filter .name = 'Ann' set { bio := .name }`)
	upd := n.(*UpdateStmt)
	require.Len(t, upd.Sets, 1)
	assert.Equal(t, One, upd.Sets[0].Value.Head().Card)
}

func TestCardinalityLatticeMonotonicity(t *testing.T) {
	// I2: replacing a subexpression with an equal-or-stricter
	// cardinality must not weaken the parent's cardinality under Product.
	assert.Equal(t, Many, Product(Many, One))
	assert.Equal(t, One, Product(One, One))
	assert.Equal(t, AtLeastOne, Product(One, AtLeastOne))
	assert.Equal(t, AtMostOne, Product(AtMostOne, One))
	assert.Equal(t, Many, Product(AtMostOne, AtLeastOne))
	assert.Equal(t, AtLeastOne, Product(AtLeastOne, AtLeastOne))
	assert.Equal(t, Many, Join(One, Many))
	assert.Equal(t, AtLeastOne, Join(One, AtLeastOne))
}
