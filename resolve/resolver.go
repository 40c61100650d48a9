package resolve

import (
	"github.com/syssam/velox/ast"
	"github.com/syssam/velox/catalog"
)

// RootKind discriminates what a resolved path root actually names.
type RootKind int

const (
	RootBinding RootKind = iota // a scope symbol (for-variable, with-alias, implicit subject)
	RootType                    // an ObjectType/ScalarType name used as a set reference
	RootGlobal                  // a catalog Global
	RootFunction                // resolved separately via overload lookup, never via ResolveRoot
)

// ResolvedRoot is what Resolver.ResolveRoot returns for a path's root
// symbol.
type ResolvedRoot struct {
	Kind    RootKind
	Binding BindingKey    // valid when Kind == RootBinding
	Entity  catalog.Entity // valid when Kind == RootType or RootGlobal
}

// Resolver combines a Stack with a catalog Snapshot to implement the
// full short-name lookup order (spec.md §4.4): enclosing scopes, then
// the active module, then the built-in `std` module. Qualified names
// (`module::name`) skip straight to the catalog.
type Resolver struct {
	Stack *Stack
	Snap  *catalog.Snapshot
}

// NewResolver returns a Resolver over snap using the given scoping mode
// and default module.
func NewResolver(snap *catalog.Snapshot, mode Mode, defaultModule string) *Resolver {
	return &Resolver{Stack: NewStack(mode, defaultModule), Snap: snap}
}

// ResolveRoot resolves an *ast.Ident used as a path root or bare set
// reference, following spec.md §4.4's lookup order. A qualified name
// (non-empty Module) is looked up directly in the catalog, skipping
// scope and active-module resolution.
func (r *Resolver) ResolveRoot(id *ast.Ident) (ResolvedRoot, error) {
	if id.Module != "" {
		return r.resolveQualified(id)
	}

	if key, ok := r.Stack.Lookup(id.Name); ok {
		return ResolvedRoot{Kind: RootBinding, Binding: key}, nil
	}

	if e, ok := r.Snap.ByName(r.Stack.ActiveModule() + "::" + id.Name); ok {
		return entityRoot(e), nil
	}
	if e, ok := r.Snap.ByName(id.Name); ok { // unmoduled builtins (scalars)
		return entityRoot(e), nil
	}
	if e, ok := r.Snap.ByName("std::" + id.Name); ok {
		return entityRoot(e), nil
	}

	return ResolvedRoot{}, newError(Unknown, id.Pos(), id.Name, "no visible binding, type, or global named %q", id.Name)
}

func (r *Resolver) resolveQualified(id *ast.Ident) (ResolvedRoot, error) {
	qualified := id.Module + "::" + id.Name
	e, ok := r.Snap.ByName(qualified)
	if !ok {
		return ResolvedRoot{}, newError(Unknown, id.Pos(), qualified, "no entity named %q", qualified)
	}
	return entityRoot(e), nil
}

func entityRoot(e catalog.Entity) ResolvedRoot {
	if _, ok := e.(*catalog.Global); ok {
		return ResolvedRoot{Kind: RootGlobal, Entity: e}
	}
	return ResolvedRoot{Kind: RootType, Entity: e}
}
