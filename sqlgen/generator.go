package sqlgen

import (
	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/dialect/sql"
	"github.com/syssam/velox/dialect/sql/sqlgraph"
	"github.com/syssam/velox/ir"
)

// Result is one compiled statement's SQL text and bound arguments, the
// payload the root package's Plan wraps (spec.md §6.1). Columns names
// the top-level projection in source order, for callers building a
// row scanner without re-parsing the SQL text.
type Result struct {
	SQL     string
	Args    []any
	Columns []string
	// JSONShape is true when the statement's result is a single JSON
	// column (object or array) rather than a flat column list (spec.md
	// §4.6 "Shape serialization: each shape is emitted as a JSON object
	// constructor").
	JSONShape bool
}

// Generator walks IR nodes and renders SQL, holding the per-statement
// state the walk accumulates: the active dialect, a join-alias
// counter, and the binding-key hoist table used for path factoring
// (spec.md §4.6 "hoisting factored set references into a WITH clause
// ... keyed by their binding key").
type Generator struct {
	Snap    *catalog.Snapshot
	Dialect string

	aliases  sqlgraph.AliasCounter
	hoisted  map[ir.BindingKey]string // binding key -> CTE/alias name, materialized at most once
	ctes     []namedCTE
}

type namedCTE struct {
	name  string
	query sql.Querier
}

// New returns a Generator bound to dialect (dialect.Postgres/MySQL/SQLite).
func New(snap *catalog.Snapshot, dialectName string) *Generator {
	return &Generator{Snap: snap, Dialect: dialectName, hoisted: map[ir.BindingKey]string{}}
}

// Generate lowers one top-level IR statement to SQL (spec.md §4.6).
// configure/analyze/transaction statements are not modeled as ir.Node
// variants (they carry no set semantics, spec.md §4 SUPPLEMENTED
// FEATURES note); callers route those directly to the backend and
// never reach Generate for them.
func (g *Generator) Generate(n ir.Node) (*Result, error) {
	switch stmt := n.(type) {
	case *ir.SelectStmt:
		return g.generateSelect(stmt)
	case *ir.InsertStmt:
		return g.generateInsert(stmt)
	case *ir.UpdateStmt:
		return g.generateUpdate(stmt)
	case *ir.DeleteStmt:
		return g.generateDelete(stmt)
	default:
		return nil, newICE("unsupported top-level statement %T", n)
	}
}

func (g *Generator) table(id catalog.EntityId) (*catalog.ObjectType, *sql.Table, error) {
	ent := g.Snap.Lookup(id)
	ot, ok := ent.(*catalog.ObjectType)
	if !ok {
		return nil, nil, newICE("entity %d is not an ObjectType", id)
	}
	name := ot.StorageKey
	if name == "" {
		name = ot.Name
	}
	return ot, sql.TableOf(name), nil
}

func (g *Generator) sel() *sql.Selector { return sql.Dialect(g.Dialect).Select() }

// generateSelect lowers `select Subject filter F order by O offset X
// limit Y` (spec.md §4.5, §4.6). Subject is expected to be a SetRef,
// PathStep, or Shape rooted at one of those; anything else (a bare
// scalar expression select) is projected as a single computed column.
func (g *Generator) generateSelect(stmt *ir.SelectStmt) (*Result, error) {
	sel, cols, jsonShape, err := g.lowerSubject(stmt.Subject)
	if err != nil {
		return nil, err
	}
	if stmt.Filter != nil {
		p, err := g.lowerBoolExpr(sel, stmt.Filter)
		if err != nil {
			return nil, err
		}
		sel.Where(p)
	}
	for _, pf := range subjectPolicyFilters(stmt.Subject) {
		p, err := g.lowerBoolExpr(sel, pf)
		if err != nil {
			return nil, err
		}
		sel.Where(p)
	}
	for _, ot := range stmt.OrderBy {
		col, err := g.lowerScalarColumn(sel, ot.Expr)
		if err != nil {
			return nil, err
		}
		dir := sql.OrderAsc
		if ot.Desc {
			dir = sql.OrderDesc
		}
		sel.OrderBy(col, dir)
	}
	if stmt.Offset != nil {
		n, err := literalInt(stmt.Offset)
		if err != nil {
			return nil, err
		}
		sel.Offset(n)
	}
	if stmt.Limit != nil {
		n, err := literalInt(stmt.Limit)
		if err != nil {
			return nil, err
		}
		sel.Limit(n)
	}
	g.wrapCTEs(sel)
	query, args := sel.Query()
	return &Result{SQL: query, Args: args, Columns: cols, JSONShape: jsonShape}, nil
}

// subjectPolicyFilters recovers the select access-policy filters the IR
// builder attached to a bare object-type SetRef, looking through the
// Shape wrapper a `select T { ... }` subject is usually built as. A
// path-rooted subject (`select T.link`) carries no filters here: the IR
// builder only threads policy onto the SetRef that names an ObjectType
// directly, not onto the pointer it's reached through (SPEC_FULL.md §4).
func subjectPolicyFilters(n ir.Node) []ir.Node {
	switch s := n.(type) {
	case *ir.Shape:
		return subjectPolicyFilters(s.Subject)
	case *ir.SetRef:
		return s.PolicyFilters
	default:
		return nil
	}
}

// mergePolicyFilters concatenates a statement's subject's select-policy
// filters with its own operation-specific ones (update/delete/insert),
// since a row must be visible under `select` to be a candidate for any
// other operation on it (SPEC_FULL.md §4). Copies rather than appending
// onto subj's backing array, which subjectPolicyFilters hands back by
// reference.
func mergePolicyFilters(subj, own []ir.Node) []ir.Node {
	if len(subj) == 0 {
		return own
	}
	out := make([]ir.Node, 0, len(subj)+len(own))
	out = append(out, subj...)
	out = append(out, own...)
	return out
}

func (g *Generator) wrapCTEs(sel *sql.Selector) {
	for _, c := range g.ctes {
		sel.With(c.name, c.query)
	}
}

// lowerSubject renders the statement's subject set into a FROM clause
// plus the projected columns (or a single JSON shape column).
func (g *Generator) lowerSubject(n ir.Node) (*sql.Selector, []string, bool, error) {
	switch sub := n.(type) {
	case *ir.Shape:
		return g.lowerShapeSubject(sub)
	case *ir.SetRef:
		_, tbl, err := g.table(sub.Head().Type)
		if err != nil {
			return nil, nil, false, err
		}
		sel := g.sel().From(tbl)
		return sel, []string{"*"}, false, nil
	case *ir.PathStep:
		sel, tbl, err := g.lowerPathChain(sub)
		if err != nil {
			return nil, nil, false, err
		}
		_ = tbl
		return sel, []string{"*"}, false, nil
	case *ir.IDLookup:
		_, tbl, err := g.table(sub.Head().Type)
		if err != nil {
			return nil, nil, false, err
		}
		sel := g.sel().From(tbl)
		idVal, err := g.lowerScalarColumn(sel, sub.Expr)
		if err != nil {
			return nil, nil, false, err
		}
		sel.Where(sql.Raw(tbl.C("id") + " = " + idVal))
		return sel, []string{"*"}, false, nil
	default:
		sel := g.sel()
		col, err := g.lowerScalarColumn(sel, n)
		if err != nil {
			return nil, nil, false, err
		}
		sel.Columns(col)
		return sel, []string{"value"}, false, nil
	}
}

// lowerPathChain walks a chain of PathStep nodes back to its SetRef
// root, emitting one join per hop (spec.md §4.6). Only to-one hops are
// supported on a bare (non-shape) path subject; a multi-cardinality
// hop there would change row cardinality with no shape to re-aggregate
// into, which earlier phases are expected to have already rejected
// (the generator does not type-check, spec.md §4.6, but also does not
// invent a join strategy the IR never asked for).
func (g *Generator) lowerPathChain(step *ir.PathStep) (*sql.Selector, *sql.Table, error) {
	root, chain := flattenPath(step)
	ref, ok := root.(*ir.SetRef)
	if !ok {
		return nil, nil, newICE("path root %T is not a SetRef", root)
	}
	ownerOT, ownerTbl, err := g.table(ref.Head().Type)
	if err != nil {
		return nil, nil, err
	}
	sel := g.sel().From(ownerTbl)
	cur := ownerTbl
	curOT := ownerOT
	for _, s := range chain {
		ptrEnt := g.Snap.Lookup(s.Pointer)
		ptr, ok := ptrEnt.(*catalog.Pointer)
		if !ok {
			return nil, nil, newICE("path step references non-pointer entity %d", s.Pointer)
		}
		targetOT, targetTbl, err := g.table(ptr.Target)
		if err != nil {
			return nil, nil, err
		}
		st := pointerStep(curOT, cur, targetTbl, ptr)
		st.Walk(sel)
		cur, curOT = targetTbl, targetOT
	}
	return sel, cur, nil
}

// flattenPath unwinds a right-leaning PathStep chain into its root
// node and an ordered slice of steps from root to tip.
func flattenPath(n ir.Node) (ir.Node, []*ir.PathStep) {
	var chain []*ir.PathStep
	cur := n
	for {
		step, ok := cur.(*ir.PathStep)
		if !ok {
			reverse(chain)
			return cur, chain
		}
		chain = append(chain, step)
		cur = step.Source
	}
}

func reverse(s []*ir.PathStep) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// pointerStep derives the sqlgraph.Step for one catalog.Pointer hop: a
// multi pointer becomes a link-table join, any other pointer a
// foreign-key column `<name>_id`. The IR builder emits PathSteps for
// properties as well; lowerPropertyColumn and lowerShapeElement render
// those as columns without calling pointerStep.
func pointerStep(ownerOT *catalog.ObjectType, ownerTbl *sql.Table, targetTbl *sql.Table, ptr *catalog.Pointer) *sqlgraph.Step {
	if ptr.Cardinality == catalog.CardinalityMany {
		linkTable := sql.TableOf(ownerOT.Name + "_" + ptr.Name)
		return &sqlgraph.Step{
			Rel: sqlgraph.M2M, From: ownerTbl, To: targetTbl,
			FromColumn: "id", ToColumn: "id",
			Link:           linkTable,
			LinkFromColumn: ownerOT.Name + "_id",
			LinkToColumn:   ptr.Name + "_id",
		}
	}
	return &sqlgraph.Step{
		Rel: sqlgraph.M2O, From: ownerTbl, To: targetTbl,
		FromColumn: ptr.Name + "_id", ToColumn: "id",
	}
}

// literalInt extracts the constant integer an offset/limit clause's IR
// must reduce to. Only an integer literal is accepted; a parameter or
// any other expression is reported as an internal error.
func literalInt(n ir.Node) (int, error) {
	switch v := n.(type) {
	case *ir.Literal:
		switch x := v.Value.(type) {
		case int64:
			return int(x), nil
		case int:
			return x, nil
		}
		return 0, newICE("offset/limit literal is not an integer: %v", v.Value)
	default:
		return 0, newICE("offset/limit expression %T is not a literal", n)
	}
}

// ICEf is exported for other sqlgen files in this package to raise a
// uniformly formatted internal error.
func ICEf(format string, args ...any) error { return newICE(format, args...) }
