package ir

import (
	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/resolve"
)

// BindingKey re-exports resolve.BindingKey so ir consumers don't need a
// separate import just to read a node's binding.
type BindingKey = resolve.BindingKey

// Header is the shared envelope every IR node carries (spec.md §3.3):
// its catalog type, inferred cardinality, and — for set references —
// the binding key path factoring unifies on. The IR is a DAG built
// bottom-up per compilation and discarded at the end of it (spec.md
// §5), so nodes are plain Go pointers; the no-back-pointer EntityId
// arena discipline is a catalog concern (cyclic schema graphs), not an
// IR one (the IR never cycles).
type Header struct {
	Type    catalog.EntityId
	Card    Cardinality
	Binding BindingKey // 0 if this node is not itself a factorable set reference
}

// Node is implemented by every IR variant (spec.md §3.3 "Core node
// variants").
type Node interface {
	Head() Header
	irNode()
}

type base struct{ Header }

func (base) irNode() {}

// SetRef names an ObjectType/ScalarType/Global/for-variable binding
// directly, with no further path steps.
type SetRef struct {
	base
	Entity catalog.Entity
	// PolicyFilters holds Entity's `select` access-policy Allow rules,
	// each already elaborated to an IR boolean expression against this
	// set's own rows (SPEC_FULL.md §4: "the IR builder threads the
	// owning ObjectType's policy into every SetRef... node it
	// produces, and the SQL generator lowers Allow-only policies to an
	// extra WHERE conjunct"). Empty when Entity is not an ObjectType or
	// declares no select policy.
	PolicyFilters []Node
}

// PathStep is `Source.Pointer`.
type PathStep struct {
	base
	Source  Node
	Pointer catalog.EntityId // a *catalog.Pointer
}

// Backlink is `Source.<Pointer[is T]`: every concrete pointer named
// Pointer whose target is a supertype of Source's type, intersected
// with Intersect (spec.md §4.5).
type Backlink struct {
	base
	Source    Node
	Name      string
	Intersect catalog.EntityId // 0 if no `[is T]`
	Pointers  []catalog.EntityId
}

// FuncCall is a resolved function call: Overload names the exact
// catalog.Function chosen by overload resolution, with any implicit
// casts already inserted into Args.
type FuncCall struct {
	base
	Overload catalog.EntityId
	Args     []Node
}

// OpCall is like FuncCall for operators.
type OpCall struct {
	base
	Overload catalog.EntityId
	Args     []Node
}

// Cast is `<Type>Expr`.
type Cast struct {
	base
	CastEntity catalog.EntityId
	Expr       Node
}

// IDLookup is `<T>uuid_expr` where T is a concrete ObjectType (spec.md
// §4.5: "A UUID may be cast to an object type T, yielding a SetRef
// filtered to .id = <uuid>..."). It is not a Cast because there is no
// catalog.Cast entity between a scalar and an ObjectType; the SQL
// generator lowers it directly to a filtered view select and a missing
// row surfaces as a runtime CardinalityViolationError, not a compile
// error.
type IDLookup struct {
	base
	Expr Node
}

// TypeIntersection is `Expr[is Type]`.
type TypeIntersection struct {
	base
	Expr Node
}

// ShapeElement is one computed or pointer-fetch element of a Shape.
type ShapeElement struct {
	Name  string
	Value Node
}

// Shape is `Subject { elements... }`.
type Shape struct {
	base
	Subject  Node
	Elements []ShapeElement
}

// InsertStmt is `insert T { elements... } [unless conflict ...]`.
type InsertStmt struct {
	base
	Elements     []ShapeElement
	ConflictOn   Node // nil if no `unless conflict` clause
	ConflictElse Node
	// PolicyFilters holds the inserted ObjectType's `insert` access-policy
	// Allow rules, elaborated against the row being inserted
	// (SPEC_FULL.md §4). The SQL generator does not read these; compile.go's
	// checkHostPolicy hands a non-empty list to CompileOptions.PolicyHook,
	// since an insert has no pre-existing row to filter out.
	PolicyFilters []Node
}

// UpdateStmt is `update E filter F set { ... }`.
type UpdateStmt struct {
	base
	Subject Node
	Filter  Node
	Sets    []UpdateSet
	// PolicyFilters holds the updated ObjectType's `update` access-policy
	// Allow rules, elaborated against Subject's rows (SPEC_FULL.md §4).
	PolicyFilters []Node
}

// UpdateSet is one `ptr := / += / -= expr` assignment.
type UpdateSet struct {
	Pointer catalog.EntityId
	Op      string // ":=", "+=", "-="
	Value   Node
}

// DeleteStmt is `delete E filter F order by O offset X limit Y`.
type DeleteStmt struct {
	base
	Subject Node
	Filter  Node
	OrderBy []OrderTerm
	Offset  Node
	Limit   Node
	// PolicyFilters holds the deleted ObjectType's `delete` access-policy
	// Allow rules, elaborated against Subject's rows (SPEC_FULL.md §4).
	PolicyFilters []Node
}

// OrderTerm is one `order by` term.
type OrderTerm struct {
	Expr       Node
	Desc       bool
	EmptyFirst bool
}

// SelectStmt is `select S filter F order by O offset X limit Y`.
type SelectStmt struct {
	base
	Subject Node
	Filter  Node
	OrderBy []OrderTerm
	Offset  Node
	Limit   Node
}

// For is `for x in S [union] B`.
type For struct {
	base
	Iterator Node
	Binding  BindingKey
	Body     Node
}

// GroupKey is one `a := Ea` grouping key of a Group.
type GroupKey struct {
	Name string
	Expr Node
}

// Group is `group E using a := Ea, ... by a, ...`.
type Group struct {
	base
	Subject Node
	Using   []GroupKey
	By      []string
}

// WithBinding is `with n := Ex, ... body`.
type WithBinding struct {
	base
	Alias      string
	Binding    BindingKey
	Value      Node
	Body       Node
	SideEffect bool // marks a Value with side effects (DML); the Builder never sets it, so it is always false
}

// IfElse is `if C then A else B`.
type IfElse struct {
	base
	Cond, Then, Else Node
}

// Coalesce is `A ?? B`.
type Coalesce struct {
	base
	Left, Right Node
}

// Param is a query parameter `<T>$name` / `<optional T>$name`.
type Param struct {
	base
	Name     string
	Optional bool
}

// Literal is a scalar constant.
type Literal struct {
	base
	Value any
}

// TupleCtor is `(a, b, ...)`.
type TupleCtor struct {
	base
	Elements []Node
}

// ArrayCtor is `[a, b, ...]` or `{a, b, ...}`.
type ArrayCtor struct {
	base
	Elements []Node
}

// RangeCtor is `range(lower, upper)`.
type RangeCtor struct {
	base
	Lower, Upper Node
}

// FreeObject is an ad-hoc `{field := expr, ...}` not tied to any
// ObjectType (spec.md glossary "Free object").
type FreeObject struct {
	base
	Fields []ShapeElement
}
