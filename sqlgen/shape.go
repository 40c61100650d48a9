package sqlgen

import (
	"strings"

	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/dialect/sql"
	"github.com/syssam/velox/dialect/sql/sqlgraph"
	"github.com/syssam/velox/ir"
)

// lowerShapeSubject renders `Subject { elements... }` as the top-level
// statement subject (spec.md §4.6 "each shape is emitted as a JSON
// object constructor"). The returned Selector projects one JSON object
// column per source row.
func (g *Generator) lowerShapeSubject(shape *ir.Shape) (*sql.Selector, []string, bool, error) {
	root, ok := shape.Subject.(*ir.SetRef)
	if !ok {
		return nil, nil, false, newICE("shape subject %T is not a SetRef", shape.Subject)
	}
	ot, tbl, err := g.table(root.Head().Type)
	if err != nil {
		return nil, nil, false, err
	}
	sel := g.sel().From(tbl)
	obj, err := g.objectExpr(sel, ot, tbl, shape.Elements)
	if err != nil {
		return nil, nil, false, err
	}
	sel.Columns(obj)
	return sel, []string{"shape"}, true, nil
}

// objectExpr renders elements into a single JSON object constructor
// call against sel, registering every bound value (key placeholders,
// nested-subquery args) in textual left-to-right order.
func (g *Generator) objectExpr(sel *sql.Selector, ot *catalog.ObjectType, tbl *sql.Table, elements []ir.ShapeElement) (string, error) {
	pairs := make([]string, 0, len(elements)*2)
	for _, el := range elements {
		// The key placeholder must be registered before the element's
		// own expression is lowered: colArgs accumulates in textual
		// left-to-right order, and the key precedes its value inside
		// the JSON object constructor.
		key := sel.Arg(el.Name)
		expr, err := g.lowerShapeElement(sel, ot, tbl, el)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, key, expr)
	}
	return g.jsonBuildObject(pairs), nil
}

// lowerShapeElement renders one shape element: a property column, a
// bare (un-nested) link's target id, a nested shape's correlated
// subquery, or a computed expression.
func (g *Generator) lowerShapeElement(sel *sql.Selector, ownerOT *catalog.ObjectType, ownerTbl *sql.Table, el ir.ShapeElement) (string, error) {
	switch v := el.Value.(type) {
	case *ir.PathStep:
		ptrEnt := g.Snap.Lookup(v.Pointer)
		ptr, ok := ptrEnt.(*catalog.Pointer)
		if !ok {
			return "", newICE("shape element %q references non-pointer entity %d", el.Name, v.Pointer)
		}
		if ptr.Kind == catalog.PointerProperty {
			return sel.C(ptr.Name), nil
		}
		return g.lowerLinkElement(sel, ownerOT, ownerTbl, ptr, nil)
	case *ir.Shape:
		step, ok := v.Subject.(*ir.PathStep)
		if !ok {
			return "", newICE("nested shape element %q has non-path subject %T", el.Name, v.Subject)
		}
		ptrEnt := g.Snap.Lookup(step.Pointer)
		ptr, ok := ptrEnt.(*catalog.Pointer)
		if !ok {
			return "", newICE("nested shape element %q references non-pointer entity %d", el.Name, step.Pointer)
		}
		return g.lowerLinkElement(sel, ownerOT, ownerTbl, ptr, v.Elements)
	default:
		return g.lowerScalarColumn(sel, el.Value)
	}
}

// lowerLinkElement renders a link pointer's target as a correlated
// subquery. With no nested elements, it projects the target row's id
// (the simplest projection a bare, un-shaped link can take); with
// nested elements, it projects a JSON object (single link) or a JSON
// array of objects (multi link, via LATERAL-style aggregation, spec.md
// §4.6 "nested shapes as subqueries returning a JSON array").
func (g *Generator) lowerLinkElement(sel *sql.Selector, ownerOT *catalog.ObjectType, ownerTbl *sql.Table, ptr *catalog.Pointer, nested []ir.ShapeElement) (string, error) {
	targetOT, _, err := g.table(ptr.Target)
	if err != nil {
		return "", err
	}
	alias := g.aliases.Next()
	name := targetOT.StorageKey
	if name == "" {
		name = targetOT.Name
	}
	aliasedTarget := sql.TableOf(name).As(alias)

	st := pointerStep(ownerOT, ownerTbl, aliasedTarget, ptr)
	inner := g.sel().From(aliasedTarget)
	switch st.Rel {
	case sqlgraph.M2O:
		inner.Where(sql.ColumnsEQ(ownerTbl.C(ptr.Name+"_id"), aliasedTarget.C("id")))
	case sqlgraph.M2M:
		inner.Join(st.Link)
		inner.Where(sql.ColumnsEQ(st.Link.C(st.LinkToColumn), aliasedTarget.C("id")))
		inner.Where(sql.ColumnsEQ(st.Link.C(st.LinkFromColumn), ownerTbl.C("id")))
	}

	var projection string
	if nested == nil {
		projection = aliasedTarget.C("id")
	} else {
		obj, err := g.objectExpr(inner, targetOT, aliasedTarget, nested)
		if err != nil {
			return "", err
		}
		projection = obj
	}
	if st.Rel == sqlgraph.M2M {
		projection = g.jsonAgg(projection)
	}
	inner.Columns(projection)

	q, args := inner.Query()
	sel.AppendArgs(args)
	return "(" + q + ")", nil
}

// jsonBuildObject renders name/value pairs (alternating placeholder
// key, value expression) into the active dialect's JSON object
// constructor.
func (g *Generator) jsonBuildObject(pairs []string) string {
	fn := "json_build_object"
	if g.Dialect == "mysql" {
		fn = "JSON_OBJECT"
	} else if g.Dialect == "sqlite" {
		fn = "json_object"
	}
	return fn + "(" + strings.Join(pairs, ", ") + ")"
}

// jsonAgg wraps expr in the active dialect's aggregate-to-JSON-array
// function, used for multi-link shape elements (spec.md §4.6).
func (g *Generator) jsonAgg(expr string) string {
	switch g.Dialect {
	case "mysql":
		return "JSON_ARRAYAGG(" + expr + ")"
	case "sqlite":
		return "json_group_array(" + expr + ")"
	default:
		return "coalesce(json_agg(" + expr + "), '[]')"
	}
}
