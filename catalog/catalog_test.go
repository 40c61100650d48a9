package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/ast"
)

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

func TestBuilderBuiltinScalarsAndCasts(t *testing.T) {
	b := NewBuilder()
	snap, err := b.Build()
	require.NoError(t, err)

	strID, ok := snap.ByName("str")
	require.True(t, ok)
	assert.Equal(t, KindScalarType, strID.EntityKind())

	// int16 -> bigint must be allow_implicit per the builtin cast table.
	found := false
	for _, e := range snap.entities {
		c, ok := e.(*Cast)
		if !ok {
			continue
		}
		from := snap.MustLookup(c.From).Head().Name
		to := snap.MustLookup(c.To).Head().Name
		if from == "int16" && to == "bigint" {
			found = true
			assert.True(t, c.AllowImplicit)
		}
		if from == "local_datetime" && to == "datetime" {
			assert.False(t, c.AllowImplicit)
			assert.True(t, c.AllowAssignment)
		}
	}
	assert.True(t, found, "expected an int16->bigint builtin cast")
}

func TestBuilderSingleInheritance(t *testing.T) {
	b := NewBuilder()

	base := &ast.SDLObjectType{
		Name: ident("Named"),
		Members: []ast.SDLMember{
			&ast.SDLProperty{Name: ident("name"), Type: ident("str"), Required: true},
		},
	}
	derived := &ast.SDLObjectType{
		Name:      ident("User"),
		Extending: []*ast.Ident{ident("Named")},
		Members: []ast.SDLMember{
			&ast.SDLProperty{Name: ident("age"), Type: ident("int32")},
		},
	}

	require.NoError(t, b.Add(base))
	require.NoError(t, b.Add(derived))

	snap, err := b.Build()
	require.NoError(t, err)

	userEnt, ok := snap.ByName("User")
	require.True(t, ok)
	user := userEnt.(*ObjectType)

	require.Len(t, user.MRO, 2)
	assert.Equal(t, "User", snap.MustLookup(user.MRO[0]).Head().Name)
	assert.Equal(t, "Named", snap.MustLookup(user.MRO[1]).Head().Name)

	_, hasName := user.Pointers["name"]
	assert.True(t, hasName, "User should inherit Named.name")
	_, hasAge := user.OwnPointer("age")
	assert.True(t, hasAge)
}

func TestBuilderDetectsInheritanceCycle(t *testing.T) {
	b := NewBuilder()
	a := &ast.SDLObjectType{Name: ident("A"), Extending: []*ast.Ident{ident("B")}}
	c := &ast.SDLObjectType{Name: ident("B"), Extending: []*ast.Ident{ident("A")}}

	require.NoError(t, b.Add(a))
	require.NoError(t, b.Add(c))

	_, err := b.Build()
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, Cycle, schemaErr.Kind)
}

func TestBuilderRejectsDuplicateName(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add(&ast.SDLObjectType{Name: ident("User")}))
	err := b.Add(&ast.SDLObjectType{Name: ident("User")})
	require.Error(t, err)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, Duplicate, schemaErr.Kind)
}

func TestBuilderLinkAndLinkProperties(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Add(&ast.SDLObjectType{Name: ident("User")}))
	require.NoError(t, b.Add(&ast.SDLObjectType{
		Name: ident("Post"),
		Members: []ast.SDLMember{
			&ast.SDLLink{
				Name:     ident("author"),
				Target:   ident("User"),
				Required: true,
				Properties: []*ast.SDLProperty{
					{Name: ident("since"), Type: ident("datetime")},
				},
			},
		},
	}))

	snap, err := b.Build()
	require.NoError(t, err)

	post := mustObject(t, snap, "Post")
	authorID, ok := post.OwnPointer("author")
	require.True(t, ok)
	author := snap.MustLookup(authorID).(*Pointer)
	assert.Equal(t, PointerLink, author.Kind)
	require.Contains(t, author.LinkProps, "since")
}

func TestBuilderFunctionOverloadGrouping(t *testing.T) {
	b := NewBuilder()
	fn1 := &ast.DDLCreateFunction{
		Name:       ident("len"),
		Params:     []*ast.FuncParam{{Name: "s", Type: ident("str")}},
		ReturnType: ident("int64"),
	}
	fn2 := &ast.DDLCreateFunction{
		Name:       ident("len"),
		Params:     []*ast.FuncParam{{Name: "a", Type: ident("json")}},
		ReturnType: ident("int64"),
	}
	require.NoError(t, b.Add(fn1))
	require.NoError(t, b.Add(fn2))

	snap, err := b.Build()
	require.NoError(t, err)
	assert.Len(t, snap.Overloads["len"], 2)
}

func TestCollectionTypeInterning(t *testing.T) {
	b := NewBuilder()
	snap, err := b.Build()
	require.NoError(t, err)

	strID, _ := snap.ByName("str")
	a1 := b.intern(CollectionArray, []EntityId{strID.(*ScalarType).ID}, nil)
	a2 := b.intern(CollectionArray, []EntityId{strID.(*ScalarType).ID}, nil)
	assert.Equal(t, a1, a2, "structurally identical array<str> must intern to one entity")
}

func TestPolicyFiltersOnlyAllowRules(t *testing.T) {
	p := Policy{
		{Decision: Allow, Ops: []Operation{OpSelect}, Using: ident("true")},
		{Decision: Deny, Ops: []Operation{OpDelete}, Using: ident("false")},
	}
	filters := p.Filters(OpSelect)
	require.Len(t, filters, 1)
	assert.True(t, p.HasHostDecision(OpDelete))
	assert.False(t, p.HasHostDecision(OpSelect))
}

func mustObject(t *testing.T, snap *Snapshot, name string) *ObjectType {
	t.Helper()
	e, ok := snap.ByName(name)
	require.True(t, ok)
	ot, ok := e.(*ObjectType)
	require.True(t, ok)
	return ot
}
