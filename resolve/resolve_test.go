package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/ast"
	"github.com/syssam/velox/catalog"
)

func testSnapshot(t *testing.T) *catalog.Snapshot {
	t.Helper()
	b := catalog.NewBuilder()
	require.NoError(t, b.Add(&ast.SDLObjectType{Name: &ast.Ident{Name: "User"}}))
	snap, err := b.Build()
	require.NoError(t, err)
	return snap
}

func TestSameSymbolSameScopeFactors(t *testing.T) {
	s := NewStack(LegacyFactoring, "default")
	k1 := s.BindingFor("x", false)
	k2 := s.BindingFor("x", false)
	assert.Equal(t, k1, k2, "two occurrences of the same root in one scope must share a binding key")
}

func TestSiblingScopesDoNotFactor(t *testing.T) {
	s := NewStack(LegacyFactoring, "default")
	s.Push(ScopeShapeElement, "")
	k1 := s.BindingFor("x", false)
	s.Pop()
	s.Push(ScopeShapeElement, "")
	k2 := s.BindingFor("x", false)
	s.Pop()
	assert.NotEqual(t, k1, k2, "sibling subscopes must not factor")
}

func TestNestedScopeInheritsBindingKey(t *testing.T) {
	s := NewStack(LegacyFactoring, "default")
	k1 := s.BindingFor("x", false)
	s.Push(ScopeSubquery, "")
	k2 := s.BindingFor("x", false)
	s.Pop()
	assert.Equal(t, k1, k2, "a nested subscope must inherit the enclosing binding key")
}

func TestDetachedForcesFreshKey(t *testing.T) {
	s := NewStack(LegacyFactoring, "default")
	k1 := s.BindingFor("x", false)
	k2 := s.BindingFor("x", true)
	assert.NotEqual(t, k1, k2, "detached must force a fresh binding key")
}

func TestWithAliasAlwaysFresh(t *testing.T) {
	s := NewStack(LegacyFactoring, "default")
	k1 := s.BindAlias("n")
	k2 := s.BindAlias("n")
	assert.NotEqual(t, k1, k2, "re-binding an alias name must not reuse the old key")
}

func TestResolveRootFindsScopeBindingFirst(t *testing.T) {
	snap := testSnapshot(t)
	r := NewResolver(snap, LegacyFactoring, "default")
	r.Stack.Bind("User", r.Stack.Fresh())

	root, err := r.ResolveRoot(&ast.Ident{Name: "User"})
	require.NoError(t, err)
	assert.Equal(t, RootBinding, root.Kind, "a scope binding must shadow a catalog type of the same name")
}

func TestResolveRootFallsBackToCatalog(t *testing.T) {
	snap := testSnapshot(t)
	r := NewResolver(snap, LegacyFactoring, "default")

	root, err := r.ResolveRoot(&ast.Ident{Name: "User"})
	require.NoError(t, err)
	assert.Equal(t, RootType, root.Kind)
}

func TestResolveRootUnknownNameErrors(t *testing.T) {
	snap := testSnapshot(t)
	r := NewResolver(snap, LegacyFactoring, "default")

	_, err := r.ResolveRoot(&ast.Ident{Name: "Nope"})
	require.Error(t, err)
	var nameErr *NameError
	require.ErrorAs(t, err, &nameErr)
	assert.Equal(t, Unknown, nameErr.Kind)
}

func TestSimpleScopingRestrictsClauseFactoring(t *testing.T) {
	s := NewStack(SimpleScoping, "default")
	assert.True(t, s.FactorsAcrossClause(true))
	assert.False(t, s.FactorsAcrossClause(false))
}
