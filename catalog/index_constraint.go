package catalog

import "github.com/syssam/velox/ast"

// Index is an expression index, optionally filtered by Except; indexes
// are inherited and specialized by ObjectType subtypes (spec.md §3.2).
type Index struct {
	Header
	Owner  EntityId
	Exprs  []ast.Expr
	Except ast.Expr
}

func (i *Index) EntityKind() Kind { return KindIndex }
func (i *Index) Head() Header     { return i.Header }

// Constraint is a named check, optionally delegated to a subject
// narrower than its owner (spec.md §3.2).
type Constraint struct {
	Header
	Owner      EntityId
	Args       []ast.Expr
	Subject    ast.Expr
	ErrMessage string
	Delegated  bool
}

func (c *Constraint) EntityKind() Kind { return KindConstraint }
func (c *Constraint) Head() Header     { return c.Header }
