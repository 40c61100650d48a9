package catalog

import "github.com/syssam/velox/ast"

// Alias is a named expression evaluated lazily; its type/cardinality are
// inferred from Expr by the IR builder, not stored here (spec.md §3.2).
type Alias struct {
	Header
	Expr ast.Expr
}

func (a *Alias) EntityKind() Kind { return KindAlias }
func (a *Alias) Head() Header     { return a.Header }

// Global is a named, scope-wide value: a constant (Expr set, Params nil)
// or a parameterized global (Params non-empty).
type Global struct {
	Header
	Type   EntityId
	Expr   ast.Expr
	Params []Param
}

func (g *Global) EntityKind() Kind { return KindGlobal }
func (g *Global) Head() Header     { return g.Header }
