package resolve

import "github.com/syssam/velox/ast"

// BindingKey identifies a path-factoring equivalence class (spec.md
// §4.4, §9 "binding keys for path factoring"). Zero is never issued;
// Stack.Fresh reserves it as a sentinel for "no binding yet".
type BindingKey int

// Mode selects between the two scoping algorithms a compilation unit
// may request (spec.md §4.4, §6.4). It is part of the compile cache
// key; CompileOptions.SimpleScoping can set it for a single compile.
type Mode int

const (
	// LegacyFactoring factors any shared-symbol occurrence not in a
	// sibling scope, including across order by/filter.
	LegacyFactoring Mode = iota
	// SimpleScoping factors only inside a shape applied to a subject
	// path, and inside filter/order by attached to a statement whose
	// subject is a path.
	SimpleScoping
)

// ScopeKind names the construct that introduced a Scope (spec.md §3.3
// "Scope path").
type ScopeKind int

const (
	ScopeTopLevel ScopeKind = iota
	ScopeSelectBody
	ScopeShapeElement
	ScopeWithBinding
	ScopeForBody
	ScopeSubquery
	ScopeAggregateArg
)

// Scope is one entry of the resolver's scope stack.
type Scope struct {
	Kind    ScopeKind
	Module  string // active module; inherited from the parent unless overridden
	symbols map[string]BindingKey
	parent  *Scope
}

// Stack is the mutable scope stack threaded through name resolution and
// IR building (spec.md §5 "Path-factoring scope stacks... are
// per-compilation").
type Stack struct {
	Mode        Mode
	DefaultMod  string
	top         *Scope
	nextKey     BindingKey
	sideEffects bool // marks a with-binding body with side effects (DML); nothing sets it, so it is always false
}

// NewStack returns a Stack with a single top-level scope, its active
// module set to defaultModule (spec.md §4.4 "default `default`").
func NewStack(mode Mode, defaultModule string) *Stack {
	s := &Stack{Mode: mode, DefaultMod: defaultModule}
	s.top = &Scope{Kind: ScopeTopLevel, Module: defaultModule, symbols: map[string]BindingKey{}}
	return s
}

// Push opens a new scope of kind, inheriting the current active module
// unless mod is non-empty (a `with module M` override).
func (s *Stack) Push(kind ScopeKind, mod string) {
	if mod == "" {
		mod = s.top.Module
	}
	s.top = &Scope{Kind: kind, Module: mod, symbols: map[string]BindingKey{}, parent: s.top}
}

// Pop closes the current scope, returning to its parent. Popping the
// top-level scope is a programmer error and panics.
func (s *Stack) Pop() {
	if s.top.parent == nil {
		panic("velox/resolve: popped the top-level scope")
	}
	s.top = s.top.parent
}

// Current returns the innermost scope.
func (s *Stack) Current() *Scope { return s.top }

// ActiveModule returns the innermost scope's active module.
func (s *Stack) ActiveModule() string { return s.top.Module }

// Fresh allocates and returns a new BindingKey, never reusing a prior
// value within this Stack's lifetime.
func (s *Stack) Fresh() BindingKey {
	s.nextKey++
	return s.nextKey
}

// Bind records that symbol resolves to key in the current scope —
// used for `with`-aliases (always fresh) and for a path root's first
// occurrence in a scope (spec.md §4.4 "factoring").
func (s *Stack) Bind(symbol string, key BindingKey) {
	s.top.symbols[symbol] = key
}

// Lookup implements the short-name lookup order (spec.md §4.4): nearest
// enclosing scope first, no fallthrough to module/std here — callers
// combine this with a catalog lookup for module-qualified and std
// fallback resolution (Resolver.ResolveRoot).
func (s *Stack) Lookup(symbol string) (BindingKey, bool) {
	for sc := s.top; sc != nil; sc = sc.parent {
		if key, ok := sc.symbols[symbol]; ok {
			return key, true
		}
	}
	return 0, false
}

// LookupLocal reports only the current scope's own bindings, ignoring
// enclosing scopes — used to detect sibling-scope non-factoring (spec.md
// §4.4 "occurrences in sibling subscopes do not factor").
func (s *Stack) LookupLocal(symbol string) (BindingKey, bool) {
	key, ok := s.top.symbols[symbol]
	return key, ok
}

// BindingFor resolves symbol to its factored binding key under the
// active Mode, allocating a fresh key on first occurrence in this scope
// and reusing it for subsequent occurrences within the same scope
// (spec.md §4.4 "Two syntactic occurrences of the same root symbol
// within the same scope share a binding key"). detached forces a fresh
// key regardless of prior occurrences (spec.md §4.4 "A `detached`
// prefix forces a fresh binding key").
func (s *Stack) BindingFor(symbol string, detached bool) BindingKey {
	if detached {
		key := s.Fresh()
		return key
	}
	if key, ok := s.LookupLocal(symbol); ok {
		return key
	}
	if key, ok := s.Lookup(symbol); ok {
		// Nested subscopes inherit the enclosing binding key; record it
		// locally too so a later LookupLocal in this scope short-circuits.
		s.Bind(symbol, key)
		return key
	}
	key := s.Fresh()
	s.Bind(symbol, key)
	return key
}

// BindAlias introduces a with-alias with a fresh binding key, even when
// its body is a bare set reference (spec.md §4.4 "aliases introduced by
// `with` always get fresh binding keys").
func (s *Stack) BindAlias(name string) BindingKey {
	key := s.Fresh()
	s.Bind(name, key)
	return key
}

// FactorsAcrossClause reports whether, under the active Mode, a path
// occurring in clause (e.g. filter/order by attached to stmtSubject)
// should factor against the statement's subject path at all. Legacy
// factoring always says yes; simple scoping restricts factoring to
// shapes/filter/order-by whose statement subject is itself a path
// (spec.md §4.4).
func (s *Stack) FactorsAcrossClause(stmtSubjectIsPath bool) bool {
	if s.Mode == LegacyFactoring {
		return true
	}
	return stmtSubjectIsPath
}

// Span is re-exported purely so callers constructing a NameError don't
// need a separate import just for the type alias.
type Span = ast.Span
