package velox

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/velox/ast"
	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/dialect"
	"github.com/syssam/velox/dialect/sql/sqlgraph"
	"github.com/syssam/velox/ir"
	"github.com/syssam/velox/parser"
	"github.com/syssam/velox/resolve"
	"github.com/syssam/velox/sqlgen"
)

// OutputFormat selects how a Plan's result rows are framed for the
// client (spec.md §6.1).
type OutputFormat int

const (
	// Binary returns one row per result with typed columns.
	Binary OutputFormat = iota
	// Json wraps the entire result set as a single JSON array value.
	Json
	// JsonElements returns one row per result, each a JSON-encoded
	// element, rather than one aggregate array.
	JsonElements
	// None suppresses result rows entirely (DDL/SDL, fire-and-forget
	// mutations).
	None
)

func (f OutputFormat) String() string {
	switch f {
	case Json:
		return "json"
	case JsonElements:
		return "json_elements"
	case None:
		return "none"
	default:
		return "binary"
	}
}

// CompileOptions mirrors the per-request knobs a compile host exposes
// to its protocol layer (spec.md §6.1). It is msgpack-encodable so it
// can be folded directly into a compile-plan cache key.
type CompileOptions struct {
	JSONMode        bool
	OutputFormat    OutputFormat
	ExpectOne       bool
	ImplicitLimit   int
	InlineTypeIDs   bool
	InlineTypeNames bool
	InlineObjectIDs bool
	DefaultModule   string
	ModuleAliases   map[string]string

	// SimpleScoping overrides the schema's `simple_scoping` future for
	// this compile only (spec.md §6.4). Nil defers to the snapshot.
	SimpleScoping *bool

	// WarnOldScoping is carried into the cache key but not read by
	// Compile: no diagnostic is produced when a query would factor
	// differently under SimpleScoping, and Plan has no warnings field.
	WarnOldScoping bool

	// PolicyHook is consulted whenever a statement's target ObjectType
	// carries an access policy the SQL generator cannot settle by itself
	// (spec.md §4/catalog.Policy): a deny/skip rule for the statement's
	// Operation, or any insert-time Allow rule (an INSERT has no
	// pre-existing row for a WHERE conjunct to filter, so its policy can
	// only be checked host-side against the values being inserted). Nil
	// means the host issues no such checks; Compile then returns an
	// error rather than silently skip enforcement.
	PolicyHook func(op catalog.Operation, ot *catalog.ObjectType) (bool, error) `msgpack:"-"`
}

// resolveScopingMode implements spec.md §6.4's resolution table: the
// per-query setting wins when present; otherwise the snapshot's
// `simple_scoping` future decides.
func (o CompileOptions) resolveScopingMode(snap *catalog.Snapshot) resolve.Mode {
	simple := o.SimpleScoping
	if simple == nil {
		on := snap.Features["simple_scoping"]
		simple = &on
	}
	if *simple {
		return resolve.SimpleScoping
	}
	return resolve.LegacyFactoring
}

// PlanKind distinguishes a query/DML Plan, which carries generated SQL,
// from the session-control statements SPEC_FULL.md's design note routes
// around IR/SQL generation entirely.
type PlanKind int

const (
	PlanQuery PlanKind = iota
	PlanConfigure
	PlanAnalyze
	PlanTransaction
	PlanSavepoint
)

func (k PlanKind) String() string {
	switch k {
	case PlanConfigure:
		return "configure"
	case PlanAnalyze:
		return "analyze"
	case PlanTransaction:
		return "transaction"
	case PlanSavepoint:
		return "savepoint"
	default:
		return "query"
	}
}

// Plan is the output of Compile: everything a caller needs to execute
// one statement against a specific dialect driver and interpret its
// result shape.
type Plan struct {
	Kind    PlanKind
	SQL     string
	Args    []any
	Columns []string

	// JSONShape is true when Columns collapses to a single JSON value
	// per row (spec.md §4.6, driven by CompileOptions.OutputFormat).
	JSONShape bool

	// ConfigureScope/ConfigureName/AnalyzeTarget are populated only for
	// the matching PlanKind; a host executes these directly rather than
	// through the SQL driver.
	ConfigureScope string
	ConfigureName  string
	AnalyzeTarget  string
	TransactionOp  string
	SavepointOp    string
	SavepointName  string

	node ir.Node // retained for Describe; nil for non-query Plan kinds
}

// Compile parses source against snap, resolves and type-checks it, and
// (for query/DML statements) lowers it to dialect SQL. configure and
// transaction/savepoint statements bypass IR and SQL generation: they
// carry no backend-agnostic set-expression semantics, so Plan.SQL is
// left empty and the host interprets Plan.Kind directly. analyze
// compiles its inner query normally and returns that query's Plan,
// SQL included, with Kind set to PlanAnalyze.
func Compile(snap *catalog.Snapshot, source string, d string, opts CompileOptions) (*Plan, error) {
	stmt, err := parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("velox: parse: %w", err)
	}
	return compileParsedStatement(snap, stmt, d, opts)
}

// compileStatement runs the resolve/IR/sqlgen pipeline over one
// query/DML statement, shared by Compile's top-level dispatch and its
// `analyze` bypass (which compiles the analyzed query normally and
// only relabels the resulting Plan).
func compileStatement(snap *catalog.Snapshot, stmt ast.Statement, d string, opts CompileOptions) (*Plan, error) {
	mode := opts.resolveScopingMode(snap)
	defaultModule := opts.DefaultModule
	if defaultModule == "" {
		defaultModule = "default"
	}
	b := ir.NewBuilder(snap, mode, defaultModule)
	node, err := b.BuildStatement(stmt)
	if err != nil {
		return nil, fmt.Errorf("velox: build ir: %w", err)
	}

	if opts.ExpectOne {
		if c := node.Head().Card; c != ir.AtMostOne && c != ir.One {
			return nil, fmt.Errorf("velox: expect_one set but result cardinality is %v", c)
		}
	}

	if err := checkHostPolicy(snap, node, opts); err != nil {
		return nil, err
	}

	g := sqlgen.New(snap, d)
	res, err := g.Generate(node)
	if err != nil {
		return nil, fmt.Errorf("velox: generate sql: %w", err)
	}

	plan := &Plan{
		Kind:      PlanQuery,
		SQL:       res.SQL,
		Args:      res.Args,
		Columns:   res.Columns,
		JSONShape: res.JSONShape || opts.OutputFormat == Json || opts.OutputFormat == JsonElements,
		node:      node,
	}
	return plan, nil
}

// checkHostPolicy enforces the part of a statement's target ObjectType
// access policy the SQL generator cannot settle on its own: any
// deny/skip rule for the statement's Operation, and an insert's
// Allow rules (which have no pre-existing row for a WHERE conjunct to
// filter against, unlike select/update/delete). Select/update/delete
// Allow rules are instead lowered straight into generated SQL by
// sqlgen and need no host round-trip.
func checkHostPolicy(snap *catalog.Snapshot, node ir.Node, opts CompileOptions) error {
	var op catalog.Operation
	var ot *catalog.ObjectType
	var needsHostCheck bool

	switch n := node.(type) {
	case *ir.InsertStmt:
		op = catalog.OpInsert
		if o, ok := snap.Lookup(n.Head().Type).(*catalog.ObjectType); ok {
			ot = o
			needsHostCheck = len(n.PolicyFilters) > 0 || o.Policy.HasHostDecision(op)
		}
	case *ir.UpdateStmt:
		op = catalog.OpUpdateOp
		if o, ok := snap.Lookup(n.Subject.Head().Type).(*catalog.ObjectType); ok {
			ot = o
			needsHostCheck = o.Policy.HasHostDecision(op)
		}
	case *ir.DeleteStmt:
		op = catalog.OpDelete
		if o, ok := snap.Lookup(n.Subject.Head().Type).(*catalog.ObjectType); ok {
			ot = o
			needsHostCheck = o.Policy.HasHostDecision(op)
		}
	case *ir.SelectStmt:
		op = catalog.OpSelect
		if o := selectSubjectObjectType(snap, n.Subject); o != nil {
			ot = o
			needsHostCheck = o.Policy.HasHostDecision(op)
		}
	default:
		return nil
	}
	if !needsHostCheck {
		return nil
	}
	if opts.PolicyHook == nil {
		return fmt.Errorf("velox: %q's access policy needs a host decision for this operation but CompileOptions.PolicyHook is nil", ot.Name)
	}
	ok, err := opts.PolicyHook(op, ot)
	if err != nil {
		return fmt.Errorf("velox: policy hook: %w", err)
	}
	if !ok {
		return fmt.Errorf("velox: access policy denies this operation on %q", ot.Name)
	}
	return nil
}

// selectSubjectObjectType recovers the ObjectType a select's subject
// names, looking through the Shape wrapper a `select T { ... }`
// subject usually builds as.
func selectSubjectObjectType(snap *catalog.Snapshot, n ir.Node) *catalog.ObjectType {
	switch s := n.(type) {
	case *ir.Shape:
		return selectSubjectObjectType(snap, s.Subject)
	case *ir.SetRef:
		if ot, ok := snap.Lookup(s.Head().Type).(*catalog.ObjectType); ok {
			return ot
		}
	}
	return nil
}

// CompileScript splits source into its top-level statements and
// compiles each independently and concurrently, returning Plans in
// source order. This is safe because a Snapshot never mutates once
// Build returns (spec.md §5: "Snapshots... may be shared freely across
// concurrent compiles"), so sibling statements share no mutable state
// besides the read-only catalog.
func CompileScript(snap *catalog.Snapshot, source string, d string, opts CompileOptions) ([]*Plan, error) {
	stmts, err := parser.ParseScript(source)
	if err != nil {
		return nil, fmt.Errorf("velox: parse: %w", err)
	}

	plans := make([]*Plan, len(stmts))
	var g errgroup.Group
	for i, stmt := range stmts {
		i, stmt := i, stmt
		g.Go(func() error {
			p, err := compileParsedStatement(snap, stmt, d, opts)
			if err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
			plans[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

// compileParsedStatement is Compile's statement-dispatch body, factored
// out so CompileScript can reuse it on an already-parsed statement
// instead of re-parsing each one found by ParseScript.
func compileParsedStatement(snap *catalog.Snapshot, stmt ast.Statement, d string, opts CompileOptions) (*Plan, error) {
	switch s := stmt.(type) {
	case *ast.ConfigureStmt:
		name := ""
		if s.Name != nil {
			name = s.Name.Name
		}
		return &Plan{Kind: PlanConfigure, ConfigureScope: s.Scope, ConfigureName: name}, nil
	case *ast.AnalyzeStmt:
		inner, err := compileStatement(snap, s.Query, d, opts)
		if err != nil {
			return nil, err
		}
		inner.Kind = PlanAnalyze
		inner.AnalyzeTarget = inner.SQL
		return inner, nil
	case *ast.TransactionStmt:
		return &Plan{Kind: PlanTransaction, TransactionOp: s.Kind}, nil
	case *ast.SavepointStmt:
		name := ""
		if s.Name != nil {
			name = s.Name.Name
		}
		return &Plan{Kind: PlanSavepoint, SavepointOp: s.Kind, SavepointName: name}, nil
	}
	return compileStatement(snap, stmt, d, opts)
}

// TypeDescriptor describes a Plan's result shape (spec.md §6.1's
// `describe`): what catalog type each query returns and at what
// cardinality, so a client can decode result rows without re-running
// inference itself.
type TypeDescriptor struct {
	TypeName    string
	Cardinality ir.Cardinality
	// Shape is non-empty when the Plan's subject is a shape expression;
	// each entry names one shape field's own descriptor.
	Shape []ShapeFieldDescriptor
}

// ShapeFieldDescriptor is one named field of a TypeDescriptor.Shape.
type ShapeFieldDescriptor struct {
	Name string
	TypeDescriptor
}

// Describe derives a TypeDescriptor from a compiled Plan. It returns
// an error for session-control Plan kinds, which carry no result type.
func Describe(snap *catalog.Snapshot, plan *Plan) (*TypeDescriptor, error) {
	if plan.Kind != PlanQuery {
		return nil, fmt.Errorf("velox: describe: %s plans have no result type", plan.Kind)
	}
	return describeNode(snap, plan.node), nil
}

func describeNode(snap *catalog.Snapshot, n ir.Node) *TypeDescriptor {
	h := n.Head()
	desc := &TypeDescriptor{TypeName: typeName(snap, h.Type), Cardinality: h.Card}
	shape, ok := n.(*ir.Shape)
	if !ok {
		if sel, ok := n.(*ir.SelectStmt); ok {
			return describeNode(snap, sel.Subject)
		}
		return desc
	}
	desc.Shape = make([]ShapeFieldDescriptor, len(shape.Elements))
	for i, el := range shape.Elements {
		desc.Shape[i] = ShapeFieldDescriptor{Name: el.Name, TypeDescriptor: *describeNode(snap, el.Value)}
	}
	return desc
}

func typeName(snap *catalog.Snapshot, id catalog.EntityId) string {
	ent := snap.Lookup(id)
	if ent == nil {
		return ""
	}
	return ent.Head().Name
}

// InterpretBackendError turns a raw backend driver error into the
// velox runtime error a caller should see, grounded in the same
// SQLSTATE/driver-code sniffing dialect/sql/sqlgraph uses to classify
// constraint violations (spec.md §6.1 "interpret_backend_error maps a
// raw protocol error back to a language-level error").
func InterpretBackendError(d string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case sqlgraph.IsUniqueConstraintError(err):
		return NewConstraintError("unique constraint violated", err)
	case sqlgraph.IsForeignKeyConstraintError(err):
		return NewConstraintError("foreign key constraint violated", err)
	case sqlgraph.IsCheckConstraintError(err):
		return NewConstraintError("check constraint violated", err)
	default:
		return err
	}
}

// dialects a Compile caller may pass as d; re-exported so callers don't
// need a separate import of package dialect for the common case.
const (
	Postgres = dialect.Postgres
	MySQL    = dialect.MySQL
	SQLite   = dialect.SQLite
)
