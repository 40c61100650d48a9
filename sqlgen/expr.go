package sqlgen

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/dialect"
	"github.com/syssam/velox/dialect/sql"
	"github.com/syssam/velox/ir"
)

// foldCaser lowercases literal `ilike` patterns for backends with no
// native case-insensitive LIKE (spec.md §4.2 `like`/`ilike`; SQLite and
// MySQL's default collation have no ILIKE, unlike Postgres).
var foldCaser = cases.Fold()

// lowerBoolExpr lowers an expression used in a filter/having position
// to a sql.Querier, registering any bound arguments against sel so
// they land in the right slot of the final argument list.
func (g *Generator) lowerBoolExpr(sel *sql.Selector, n ir.Node) (sql.Querier, error) {
	switch e := n.(type) {
	case *ir.OpCall:
		return g.lowerBoolOp(sel, e)
	case *ir.FuncCall:
		text, err := g.lowerCallText(sel, e.Overload, e.Args)
		if err != nil {
			return nil, err
		}
		return sql.Raw(text), nil
	case *ir.Literal:
		if b, ok := e.Value.(bool); ok {
			if b {
				return sql.Raw("TRUE"), nil
			}
			return sql.Raw("FALSE"), nil
		}
		return nil, newICE("non-boolean literal used as filter: %v", e.Value)
	default:
		text, err := g.lowerScalarColumn(sel, n)
		if err != nil {
			return nil, err
		}
		return sql.Raw(text), nil
	}
}

// lowerBoolOp dispatches an OpCall to the matching sql predicate
// helper when its operator is one of the well-known comparison/boolean
// connectives, falling back to its declared SQL operator/template
// otherwise (spec.md §4.6 "Functions with a declared SQL function name
// or SQL operator are emitted directly").
func (g *Generator) lowerBoolOp(sel *sql.Selector, op *ir.OpCall) (sql.Querier, error) {
	ent := g.Snap.Lookup(op.Overload)
	operator, ok := ent.(*catalog.Operator)
	if !ok {
		return nil, newICE("OpCall overload %d is not an Operator", op.Overload)
	}
	if len(op.Args) == 2 {
		left, err := g.lowerScalarColumn(sel, op.Args[0])
		if err != nil {
			return nil, err
		}
		rightNode := op.Args[1]
		if operator.SQL.SQLOperator == "ILIKE" && g.Dialect != dialect.Postgres {
			return g.lowerFoldedLike(sel, left, op.Args[0], rightNode)
		}
		switch operator.SQL.SQLOperator {
		case "AND":
			l, err := g.lowerBoolExpr(sel, op.Args[0])
			if err != nil {
				return nil, err
			}
			r, err := g.lowerBoolExpr(sel, rightNode)
			if err != nil {
				return nil, err
			}
			return sql.And(l, r), nil
		case "OR":
			l, err := g.lowerBoolExpr(sel, op.Args[0])
			if err != nil {
				return nil, err
			}
			r, err := g.lowerBoolExpr(sel, rightNode)
			if err != nil {
				return nil, err
			}
			return sql.Or(l, r), nil
		case "":
			// no declared infix operator text; fall through to the
			// function/template lowering below.
		default:
			rightText, err := g.lowerScalarColumn(sel, rightNode)
			if err != nil {
				return nil, err
			}
			return sql.Raw("(" + left + " " + operator.SQL.SQLOperator + " " + rightText + ")"), nil
		}
	}
	if len(op.Args) == 1 && operator.SQL.SQLOperator == "NOT" {
		inner, err := g.lowerBoolExpr(sel, op.Args[0])
		if err != nil {
			return nil, err
		}
		return sql.Not(inner), nil
	}
	text, err := g.lowerCallText(sel, op.Overload, op.Args)
	if err != nil {
		return nil, err
	}
	return sql.Raw(text), nil
}

// lowerFoldedLike emulates Postgres's ILIKE on a backend with no native
// case-insensitive LIKE by folding both sides to the same case. A
// literal pattern is folded once in Go (sel.Arg binds the folded
// value directly); a computed pattern is folded at the SQL level with
// LOWER(), matching the teacher's dialect-branch style in
// sqlgen/shape.go's LIMIT/OFFSET handling.
func (g *Generator) lowerFoldedLike(sel *sql.Selector, leftText string, leftNode, rightNode ir.Node) (sql.Querier, error) {
	_ = leftNode
	var rightText string
	if lit, ok := rightNode.(*ir.Literal); ok {
		if s, ok := lit.Value.(string); ok {
			rightText = sel.Arg(foldCaser.String(s))
		}
	}
	if rightText == "" {
		t, err := g.lowerScalarColumn(sel, rightNode)
		if err != nil {
			return nil, err
		}
		rightText = "LOWER(" + t + ")"
	}
	return sql.Raw("LOWER(" + leftText + ") LIKE " + rightText), nil
}

// lowerScalarColumn renders n to a single SQL value expression
// (literal, parameter placeholder, property column reference, or
// function/operator call), registering any bound values against sel.
func (g *Generator) lowerScalarColumn(sel *sql.Selector, n ir.Node) (string, error) {
	switch e := n.(type) {
	case *ir.Literal:
		return sel.Arg(e.Value), nil
	case *ir.Param:
		return sel.Arg(paramPlaceholder(e.Name)), nil
	case *ir.PathStep:
		return g.lowerPropertyColumn(sel, e)
	case *ir.FuncCall:
		return g.lowerCallText(sel, e.Overload, e.Args)
	case *ir.OpCall:
		return g.lowerOpText(sel, e)
	case *ir.Cast:
		inner, err := g.lowerScalarColumn(sel, e.Expr)
		if err != nil {
			return "", err
		}
		castEnt := g.Snap.Lookup(e.CastEntity)
		cast, ok := castEnt.(*catalog.Cast)
		if !ok {
			return "", newICE("cast entity %d is not a Cast", e.CastEntity)
		}
		if cast.SQL.Template != "" {
			return substituteTemplate(cast.SQL.Template, []string{inner}), nil
		}
		return "CAST(" + inner + " AS " + targetSQLTypeName(g.Snap, cast.To) + ")", nil
	case *ir.TupleCtor:
		parts := make([]string, len(e.Elements))
		for i, el := range e.Elements {
			p, err := g.lowerScalarColumn(sel, el)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	case *ir.ArrayCtor:
		parts := make([]string, len(e.Elements))
		for i, el := range e.Elements {
			p, err := g.lowerScalarColumn(sel, el)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return "ARRAY[" + strings.Join(parts, ", ") + "]", nil
	case *ir.IfElse:
		cond, err := g.lowerBoolExpr(sel, e.Cond)
		if err != nil {
			return "", err
		}
		condText, _ := cond.Query()
		thenText, err := g.lowerScalarColumn(sel, e.Then)
		if err != nil {
			return "", err
		}
		elseText, err := g.lowerScalarColumn(sel, e.Else)
		if err != nil {
			return "", err
		}
		return "CASE WHEN " + condText + " THEN " + thenText + " ELSE " + elseText + " END", nil
	case *ir.Coalesce:
		left, err := g.lowerScalarColumn(sel, e.Left)
		if err != nil {
			return "", err
		}
		right, err := g.lowerScalarColumn(sel, e.Right)
		if err != nil {
			return "", err
		}
		return "COALESCE(" + left + ", " + right + ")", nil
	default:
		return "", newICE("unsupported scalar expression %T", n)
	}
}

// lowerOpText renders a non-boolean OpCall (arithmetic, concatenation,
// …) as a column expression rather than a WHERE predicate.
func (g *Generator) lowerOpText(sel *sql.Selector, op *ir.OpCall) (string, error) {
	ent := g.Snap.Lookup(op.Overload)
	operator, ok := ent.(*catalog.Operator)
	if !ok {
		return "", newICE("OpCall overload %d is not an Operator", op.Overload)
	}
	if operator.SQL.SQLOperator != "" && len(op.Args) == 2 {
		left, err := g.lowerScalarColumn(sel, op.Args[0])
		if err != nil {
			return "", err
		}
		right, err := g.lowerScalarColumn(sel, op.Args[1])
		if err != nil {
			return "", err
		}
		return "(" + left + " " + operator.SQL.SQLOperator + " " + right + ")", nil
	}
	return g.lowerCallText(sel, op.Overload, op.Args)
}

// lowerCallText renders a Function/Operator overload call via its
// declared SQLName or Template (spec.md §4.6).
func (g *Generator) lowerCallText(sel *sql.Selector, overload catalog.EntityId, args []ir.Node) (string, error) {
	ent := g.Snap.Lookup(overload)
	var lowering catalog.Lowering
	switch fn := ent.(type) {
	case *catalog.Function:
		lowering = fn.SQL
	case *catalog.Operator:
		lowering = fn.SQL
	default:
		return "", newICE("call overload %d is neither Function nor Operator", overload)
	}
	argTexts := make([]string, len(args))
	for i, a := range args {
		t, err := g.lowerScalarColumn(sel, a)
		if err != nil {
			return "", err
		}
		argTexts[i] = t
	}
	if lowering.Template != "" {
		return substituteTemplate(lowering.Template, argTexts), nil
	}
	name := lowering.SQLName
	if name == "" {
		name = lowering.SQLOperator
	}
	if name == "" {
		return "", newICE("call overload %d has no SQL lowering recipe", overload)
	}
	return name + "(" + strings.Join(argTexts, ", ") + ")", nil
}

// substituteTemplate replaces "$1".."$N" in tmpl with the corresponding
// rendered argument text (spec.md §4.6 "template-lowered functions
// substitute their arguments into an SQL snippet").
func substituteTemplate(tmpl string, args []string) string {
	out := tmpl
	for i := len(args); i >= 1; i-- {
		out = strings.ReplaceAll(out, "$"+strconv.Itoa(i), args[i-1])
	}
	return out
}

// lowerPropertyColumn renders a PathStep whose pointer is a scalar
// property as a qualified column reference. Link pointers reaching
// here (a path used directly as a scalar value) are an internal error:
// earlier phases only permit that inside a shape, which routes through
// lowerShapeSubject/lowerNestedLink instead.
func (g *Generator) lowerPropertyColumn(sel *sql.Selector, step *ir.PathStep) (string, error) {
	ptrEnt := g.Snap.Lookup(step.Pointer)
	ptr, ok := ptrEnt.(*catalog.Pointer)
	if !ok {
		return "", newICE("PathStep references non-pointer entity %d", step.Pointer)
	}
	if ptr.Kind != catalog.PointerProperty {
		return "", newICE("PathStep for link pointer %q used as a scalar value", ptr.Name)
	}
	return sel.C(ptr.Name), nil
}

// targetSQLTypeName maps a scalar EntityId to the SQL type name a CAST
// target should use, falling back to its catalog name verbatim for
// scalars the generator doesn't special-case (enums, user-derived
// scalars that passed through storage unchanged).
func targetSQLTypeName(snap *catalog.Snapshot, id catalog.EntityId) string {
	ent := snap.Lookup(id)
	st, ok := ent.(*catalog.ScalarType)
	if !ok {
		return "text"
	}
	switch st.Name {
	case "int16":
		return "smallint"
	case "int32":
		return "integer"
	case "int64", "bigint":
		return "bigint"
	case "float32":
		return "real"
	case "float64":
		return "double precision"
	case "decimal":
		return "numeric"
	case "bool":
		return "boolean"
	case "str":
		return "text"
	case "bytes":
		return "bytea"
	case "uuid":
		return "uuid"
	case "datetime", "local_datetime":
		return "timestamp"
	case "local_date":
		return "date"
	case "local_time":
		return "time"
	case "duration":
		return "interval"
	case "json":
		return "jsonb"
	default:
		return st.Name
	}
}

// paramPlaceholder is the bound value Arg() stores for a `<T>$name`
// reference; the host driver substitutes the actual value at execute
// time (spec.md §6.2), so sqlgen only needs to carry the parameter's
// name through to the argument list in source order.
type paramPlaceholder string
