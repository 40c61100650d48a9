// Package ast defines the immutable abstract syntax tree produced by the
// parser (spec.md §3.1). Every node carries a source span; the tree is
// never mutated once built — later phases (catalog, resolve, ir) attach
// their own side tables keyed by node identity or by EntityId instead of
// writing into the AST.
package ast

import "github.com/syssam/velox/lexer"

// Span re-exports the lexer's source-range type so AST consumers don't
// need to import the lexer package just to read node positions.
type Span = lexer.Span

// Node is implemented by every AST node.
type Node interface {
	Pos() Span
	astNode()
}

// Meta is the shared header embedded by every node category. It is
// exported so parser code outside this package can populate Span in a
// composite literal.
type Meta struct {
	Span Span
}

func (m Meta) Pos() Span { return m.Span }
func (Meta) astNode()    {}

// ---- Statements -------------------------------------------------------

// Statement is implemented by every top-level query/DML/DDL/SDL form.
type Statement interface {
	Node
	stmtNode()
}

type StmtMeta struct{ Meta }

func (StmtMeta) stmtNode() {}

// Select is `select Subject filter F order by O offset X limit Y`.
type Select struct {
	StmtMeta
	Subject Expr
	Filter  Expr
	OrderBy []OrderItem
	Offset  Expr
	Limit   Expr
}

// OrderItem is one `order by` term.
type OrderItem struct {
	Expr       Expr
	Desc       bool
	EmptyFirst bool
	EmptyLast  bool
}

// Insert is `insert TypeName { elements... } [unless conflict ...]`.
type Insert struct {
	StmtMeta
	TypeName    *Ident
	Elements    []*ShapeElement
	Conflict    *ConflictClause
}

// ConflictClause models `unless conflict on .ptr else Expr`.
type ConflictClause struct {
	On   Expr // nil means "on any constraint"
	Else Expr // nil means "else fail" (no upsert fallback)
}

// Update is `update Subject filter F set { elements... }`.
type Update struct {
	StmtMeta
	Subject  Expr
	Filter   Expr
	Elements []*ShapeElement
}

// Delete is `delete Subject filter F order by O offset X limit Y`.
type Delete struct {
	StmtMeta
	Subject Expr
	Filter  Expr
	OrderBy []OrderItem
	Offset  Expr
	Limit   Expr
}

// For is `for Var in Iterator [union] Body`.
type For struct {
	StmtMeta
	Var      *Ident
	Iterator Expr
	Union    bool // false only in the future-feature "for ... <stmt>" mode
	Body     Node // Expr or Statement
}

// Group is `group Subject using a := Ea, ... by a, ...`.
type Group struct {
	StmtMeta
	Subject Expr
	Using   []*WithBinding
	By      []Expr
}

// With is `with n := Ex, ... Body`.
type With struct {
	StmtMeta
	Bindings []*WithBinding
	Body     Node
}

// WithBinding is one `n := Expr` (or `n := module M`) binding.
type WithBinding struct {
	Meta
	Name       *Ident
	Expr       Expr
	ModuleName string // set instead of Expr for `with module M`
}

// ConfigureStmt is `configure <scope> set name := value` (SPEC_FULL §4).
type ConfigureStmt struct {
	StmtMeta
	Scope string // "session" | "database" | "instance"
	Name  *Ident
	Value Expr
}

// AnalyzeStmt is `analyze Query`.
type AnalyzeStmt struct {
	StmtMeta
	Query Statement
}

// TransactionStmt is start/commit/rollback transaction.
type TransactionStmt struct {
	StmtMeta
	Kind string // "start" | "commit" | "rollback"
}

// SavepointStmt is declare/release/rollback-to savepoint.
type SavepointStmt struct {
	StmtMeta
	Kind string // "declare" | "release" | "rollback_to"
	Name *Ident
}

// ---- Expressions -------------------------------------------------------

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

type ExprMeta struct{ Meta }

func (ExprMeta) exprNode() {}

// Ident is a plain or backtick-quoted identifier, optionally
// module-qualified (Module != "").
type Ident struct {
	ExprMeta
	Module    string
	Name      string
	Backtick  bool
}

// Literal is a scalar literal (bool/int/float/bigint/decimal/string/bytes).
type Literal struct {
	ExprMeta
	Kind  lexer.Kind
	Value string
}

// Parameter is `<T>$name` or `<optional T>$name`.
type Parameter struct {
	ExprMeta
	Name     string
	Type     Expr // a TypeCast-style type expression
	Optional bool
}

// Path is a chain of steps rooted at Root: `.ptr`, `.<ptr[is T]` backlinks,
// and `@lp` link-property access.
type Path struct {
	ExprMeta
	Root  Expr
	Steps []PathStep
}

// PathStep is one `.name`, `.<name[is T]`, or `@name` segment.
type PathStep struct {
	Name      string
	Backlink  bool
	LinkProp  bool
	Intersect *Ident // `[is T]` attached to a backlink step
	Span      Span
}

// Op is a unary/binary/ternary operator application (spec.md §4.2's
// precedence table drives which operators the parser builds).
type Op struct {
	ExprMeta
	Name string // "+", "-", "or", "like", "in", "is not", "if_else", ...
	Args []Expr
}

// FunctionCall is `name(args...)` with optional named arguments.
type FunctionCall struct {
	ExprMeta
	Module string
	Name   string
	Args   []Expr
	Named  map[string]Expr
}

// TypeCast is `<T>expr`.
type TypeCast struct {
	ExprMeta
	Type Expr
	Expr Expr
}

// TypeIntersection is `expr[is T]`.
type TypeIntersection struct {
	ExprMeta
	Expr Expr
	Type *Ident
}

// Detached is `detached expr` — forces a fresh binding key.
type Detached struct {
	ExprMeta
	Expr Expr
}

// Tuple is `(e0, e1, ...)`, optionally named: `(a := e0, b := e1)`.
type Tuple struct {
	ExprMeta
	Names []string // empty names for unnamed elements
	Elems []Expr
}

// Array is `[e0, e1, ...]`. A bare `{e0, e1, ...}` set constructor reuses
// this node with Braces set, since spec.md §3.1 lists no separate "Set"
// node and the two share an identical element-list grammar.
type Array struct {
	ExprMeta
	Elems  []Expr
	Braces bool
}

// RangeExpr is `e0 .. e1` (half-open range/multirange construction).
type RangeExpr struct {
	ExprMeta
	From, To Expr
}

// Shape is `Subject { elements... }`.
type Shape struct {
	ExprMeta
	Subject  Expr
	Elements []*ShapeElement
}

// ShapeElement is one element of a Shape: a pointer name, a computed
// element (`name := expr`), or a filtered/ordered nested shape.
type ShapeElement struct {
	Meta
	Name       string
	Polymorphic *Ident // set for `[is T].ptr`
	Computed   Expr    // set for `name := expr`
	Nested     *Shape  // set for `ptr: { ... }`
	Filter     Expr
	OrderBy    []OrderItem
	Offset     Expr
	Limit      Expr
}

// FreeObject is an ad-hoc object literal `{field := expr, ...}` not tied
// to any catalog ObjectType (spec.md glossary: "Free object").
type FreeObject struct {
	ExprMeta
	Fields []*ShapeElement
}

// IfElse is `if C then A else B`.
type IfElse struct {
	ExprMeta
	Cond, Then, Else Expr
}

// ---- DDL / SDL ----------------------------------------------------------

// DDLCreateScalar is `create scalar type Name extending Base`.
type DDLCreateScalar struct {
	StmtMeta
	Name      *Ident
	Extending []*Ident
	EnumOf    []string // non-empty for `create scalar type Name extending enum<...>`
}

// SDLObjectType is `[abstract] type Name extending Bases... { members... }`.
type SDLObjectType struct {
	StmtMeta
	Name      *Ident
	Abstract  bool
	Extending []*Ident
	Members   []SDLMember
}

// SDLMember is implemented by property/link/index/constraint declarations
// nested inside an SDLObjectType body.
type SDLMember interface {
	Node
	sdlMemberNode()
}

type SDLMemberMeta struct{ Meta }

func (SDLMemberMeta) sdlMemberNode() {}

// SDLProperty is `[required|optional] [single|multi] property Name -> Type { ... }`.
type SDLProperty struct {
	SDLMemberMeta
	Name       *Ident
	Type       Expr
	Required   bool
	Cardinality string // "One" | "Many"
	Readonly   bool
	Default    Expr
	Computed   Expr
	Constraints []*SDLConstraint
	Annotations map[string]Expr
}

// SDLLink is `[required|optional] [single|multi] link Name -> Type { ... }`.
type SDLLink struct {
	SDLMemberMeta
	Name        *Ident
	Target      *Ident
	Required    bool
	Cardinality string
	Readonly    bool
	OnTargetDelete string // "restrict" | "delete_source" | "allow" | "deferred_restrict"
	OnSourceDelete string
	Properties  []*SDLProperty // link properties
	Default     Expr
	Computed    Expr
	Annotations map[string]Expr
}

// SDLIndex is `index on (expr, ...) [except expr]`.
type SDLIndex struct {
	SDLMemberMeta
	Exprs  []Expr
	Except Expr
}

// SDLConstraint is `constraint name(args) [on (expr)] [{ errmessage := "..." }]`.
type SDLConstraint struct {
	SDLMemberMeta
	Name       string
	Args       []Expr
	Subject    Expr
	ErrMessage string
	Delegated  bool
}

// DDLCreateFunction is `create function Name(params) -> RetMod RetType { using ... }`.
type DDLCreateFunction struct {
	StmtMeta
	Name       *Ident
	Params     []*FuncParam
	ReturnType Expr
	ReturnMod  string // "SetOfType" | "OptionalType" | "SingletonType"
	Volatility string // "Immutable" | "Stable" | "Volatile" | "Modifying"
	Using      string // SQL lowering recipe (function name / operator / template)
}

// FuncParam is one parameter of a function/operator signature.
type FuncParam struct {
	Name     string
	Type     Expr
	Kind     string // "Positional" | "NamedOnly" | "Variadic"
	Modifier string // "Optional" | "Required" | "SetOf"
	Span     Span
}

// DDLCreateCast is `create cast from A to B { using ...; allow implicit/assignment; }`.
type DDLCreateCast struct {
	StmtMeta
	From, To         *Ident
	AllowImplicit    bool
	AllowAssignment  bool
	Using            string
	Volatility       string
}
