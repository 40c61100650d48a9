package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders n back to Language source text. It exists to support
// spec.md invariant I1 (`parse(print(ast)) == ast` up to trivia): printing
// a parsed tree and re-parsing it must reproduce an equal tree. The
// combinator style (each node renders itself, parent nodes join children
// with the operator text) follows the teacher's querylanguage predicate
// String() methods, generalized from boolean predicates to the full
// expression/statement grammar.
func Print(n Node) string {
	var b strings.Builder
	print1(&b, n)
	return b.String()
}

func print1(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case *Ident:
		printIdent(b, v)
	case *Literal:
		printLiteral(b, v)
	case *Parameter:
		b.WriteString("<")
		if v.Optional {
			b.WriteString("optional ")
		}
		print1(b, v.Type)
		b.WriteString(">$")
		b.WriteString(v.Name)
	case *Path:
		if v.Root != nil {
			print1(b, v.Root)
		}
		for _, s := range v.Steps {
			printStep(b, s)
		}
	case *Op:
		printOp(b, v)
	case *FunctionCall:
		printCall(b, v)
	case *TypeCast:
		b.WriteString("<")
		print1(b, v.Type)
		b.WriteString(">")
		printParen(b, v.Expr, true)
	case *TypeIntersection:
		printParen(b, v.Expr, true)
		b.WriteString("[is ")
		print1(b, v.Type)
		b.WriteString("]")
	case *Detached:
		b.WriteString("detached ")
		print1(b, v.Expr)
	case *Tuple:
		b.WriteString("(")
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			if i < len(v.Names) && v.Names[i] != "" {
				b.WriteString(v.Names[i])
				b.WriteString(" := ")
			}
			print1(b, e)
		}
		b.WriteString(")")
	case *Array:
		open, close := "[", "]"
		if v.Braces {
			open, close = "{", "}"
		}
		b.WriteString(open)
		for i, e := range v.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			print1(b, e)
		}
		b.WriteString(close)
	case *RangeExpr:
		print1(b, v.From)
		b.WriteString(" .. ")
		print1(b, v.To)
	case *Shape:
		print1(b, v.Subject)
		b.WriteString(" ")
		printShapeBody(b, v.Elements)
	case *FreeObject:
		printShapeBody(b, v.Fields)
	case *IfElse:
		b.WriteString("if ")
		print1(b, v.Cond)
		b.WriteString(" then ")
		print1(b, v.Then)
		b.WriteString(" else ")
		print1(b, v.Else)
	case *Select:
		printSelect(b, v)
	case *Insert:
		printInsert(b, v)
	case *Update:
		printUpdate(b, v)
	case *Delete:
		printDelete(b, v)
	case *For:
		printFor(b, v)
	case *With:
		printWith(b, v)
	case *Group:
		printGroup(b, v)
	case *ConfigureStmt:
		printConfigure(b, v)
	case *AnalyzeStmt:
		b.WriteString("analyze ")
		print1(b, v.Query)
	case *TransactionStmt:
		printTransaction(b, v)
	case *SavepointStmt:
		printSavepoint(b, v)
	case *DDLCreateScalar:
		printDDLCreateScalar(b, v)
	case *SDLObjectType:
		printSDLObjectType(b, v)
	case *SDLProperty:
		printSDLProperty(b, v)
	case *SDLLink:
		printSDLLink(b, v)
	case *SDLIndex:
		printSDLIndex(b, v)
	case *SDLConstraint:
		printSDLConstraint(b, v)
	case *DDLCreateFunction:
		printDDLCreateFunction(b, v)
	case *DDLCreateCast:
		printDDLCreateCast(b, v)
	default:
		fmt.Fprintf(b, "<?%T?>", n)
	}
}

func printIdent(b *strings.Builder, id *Ident) {
	if id.Module != "" {
		b.WriteString(id.Module)
		b.WriteString("::")
	}
	if id.Backtick {
		b.WriteString("`")
		b.WriteString(strings.ReplaceAll(id.Name, "`", "``"))
		b.WriteString("`")
		return
	}
	b.WriteString(id.Name)
}

func printLiteral(b *strings.Builder, lit *Literal) {
	switch lit.Value {
	case "true", "false":
		b.WriteString(lit.Value)
	default:
		b.WriteString(lit.Value)
	}
}

func printStep(b *strings.Builder, s PathStep) {
	if s.LinkProp {
		b.WriteString("@")
		b.WriteString(s.Name)
		return
	}
	if s.Backlink {
		b.WriteString(".<")
		b.WriteString(s.Name)
		if s.Intersect != nil {
			b.WriteString("[is ")
			print1(b, s.Intersect)
			b.WriteString("]")
		}
		return
	}
	b.WriteString(".")
	b.WriteString(s.Name)
}

// opPrec maps an Op.Name to its precedence, following spec.md §4.2's table (low to high).
var opPrec = map[string]int{
	"union": 0, "if_else": 1, "or": 2, "and": 3, "not": 4,
	"=": 5, "!=": 5, "?=": 5, "?!=": 5,
	"<": 6, ">": 6, "<=": 6, ">=": 6,
	"like": 7, "ilike": 7, "in": 7, "not in": 7, "is": 7, "is not": 7,
	"+": 8, "-": 8, "++": 8,
	"*": 9, "/": 9, "//": 9, "%": 9,
	"??": 10, "distinct": 11, "unary-": 11, "^": 12,
}

func printOp(b *strings.Builder, op *Op) {
	switch len(op.Args) {
	case 1:
		b.WriteString(op.Name)
		b.WriteString(" ")
		printParen(b, op.Args[0], true)
	case 2:
		printParen(b, op.Args[0], true)
		b.WriteString(" ")
		b.WriteString(op.Name)
		b.WriteString(" ")
		printParen(b, op.Args[1], true)
	default:
		b.WriteString(op.Name)
		b.WriteString("(")
		for i, a := range op.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			print1(b, a)
		}
		b.WriteString(")")
	}
}

// printParen prints e, in parentheses when paren is set and e is an
// operator or if/else expression, so the re-parsed tree keeps its grouping.
func printParen(b *strings.Builder, e Expr, paren bool) {
	switch e.(type) {
	case *Op, *IfElse:
		if paren {
			b.WriteString("(")
			print1(b, e)
			b.WriteString(")")
			return
		}
	}
	print1(b, e)
}

func printCall(b *strings.Builder, c *FunctionCall) {
	if c.Module != "" {
		b.WriteString(c.Module)
		b.WriteString("::")
	}
	b.WriteString(c.Name)
	b.WriteString("(")
	i := 0
	for _, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		print1(b, a)
		i++
	}
	for name, a := range c.Named {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteString(" := ")
		print1(b, a)
		i++
	}
	b.WriteString(")")
}

func printShapeBody(b *strings.Builder, elems []*ShapeElement) {
	b.WriteString("{ ")
	for i, el := range elems {
		if i > 0 {
			b.WriteString(", ")
		}
		printShapeElement(b, el)
	}
	b.WriteString(" }")
}

func printShapeElement(b *strings.Builder, el *ShapeElement) {
	if el.Computed != nil {
		b.WriteString(el.Name)
		b.WriteString(" := ")
		print1(b, el.Computed)
		return
	}
	if el.Polymorphic != nil {
		b.WriteString("[is ")
		print1(b, el.Polymorphic)
		b.WriteString("].")
	}
	b.WriteString(el.Name)
	if el.Nested != nil {
		b.WriteString(": ")
		printShapeBody(b, el.Nested.Elements)
	}
	if el.Filter != nil {
		b.WriteString(" filter ")
		print1(b, el.Filter)
	}
	if len(el.OrderBy) > 0 {
		b.WriteString(" order by ")
		printOrderBy(b, el.OrderBy)
	}
	if el.Offset != nil {
		b.WriteString(" offset ")
		print1(b, el.Offset)
	}
	if el.Limit != nil {
		b.WriteString(" limit ")
		print1(b, el.Limit)
	}
}

func printOrderBy(b *strings.Builder, items []OrderItem) {
	for i, it := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		print1(b, it.Expr)
		if it.Desc {
			b.WriteString(" desc")
		}
		if it.EmptyFirst {
			b.WriteString(" empty first")
		}
		if it.EmptyLast {
			b.WriteString(" empty last")
		}
	}
}

func printSelect(b *strings.Builder, s *Select) {
	b.WriteString("select ")
	print1(b, s.Subject)
	printTail(b, s.Filter, s.OrderBy, s.Offset, s.Limit)
}

func printDelete(b *strings.Builder, s *Delete) {
	b.WriteString("delete ")
	print1(b, s.Subject)
	printTail(b, s.Filter, s.OrderBy, s.Offset, s.Limit)
}

func printTail(b *strings.Builder, filter Expr, order []OrderItem, offset, limit Expr) {
	if filter != nil {
		b.WriteString(" filter ")
		print1(b, filter)
	}
	if len(order) > 0 {
		b.WriteString(" order by ")
		printOrderBy(b, order)
	}
	if offset != nil {
		b.WriteString(" offset ")
		print1(b, offset)
	}
	if limit != nil {
		b.WriteString(" limit ")
		print1(b, limit)
	}
}

func printInsert(b *strings.Builder, s *Insert) {
	b.WriteString("insert ")
	print1(b, s.TypeName)
	b.WriteString(" ")
	printShapeBody(b, s.Elements)
	if s.Conflict != nil {
		b.WriteString(" unless conflict")
		if s.Conflict.On != nil {
			b.WriteString(" on ")
			print1(b, s.Conflict.On)
		}
		if s.Conflict.Else != nil {
			b.WriteString(" else ")
			print1(b, s.Conflict.Else)
		}
	}
}

func printUpdate(b *strings.Builder, s *Update) {
	b.WriteString("update ")
	print1(b, s.Subject)
	if s.Filter != nil {
		b.WriteString(" filter ")
		print1(b, s.Filter)
	}
	b.WriteString(" set ")
	printShapeBody(b, s.Elements)
}

func printFor(b *strings.Builder, s *For) {
	b.WriteString("for ")
	print1(b, s.Var)
	b.WriteString(" in ")
	print1(b, s.Iterator)
	if s.Union {
		b.WriteString(" union ")
	} else {
		b.WriteString(" ")
	}
	print1(b, s.Body)
}

func printWith(b *strings.Builder, s *With) {
	b.WriteString("with ")
	for i, bind := range s.Bindings {
		if i > 0 {
			b.WriteString(", ")
		}
		if bind.ModuleName != "" {
			b.WriteString("module ")
			b.WriteString(bind.ModuleName)
			continue
		}
		print1(b, bind.Name)
		b.WriteString(" := ")
		print1(b, bind.Expr)
	}
	b.WriteString(" ")
	print1(b, s.Body)
}

func printGroup(b *strings.Builder, s *Group) {
	b.WriteString("group ")
	print1(b, s.Subject)
	if len(s.Using) > 0 {
		b.WriteString(" using ")
		for i, u := range s.Using {
			if i > 0 {
				b.WriteString(", ")
			}
			print1(b, u.Name)
			b.WriteString(" := ")
			print1(b, u.Expr)
		}
	}
	b.WriteString(" by ")
	for i, e := range s.By {
		if i > 0 {
			b.WriteString(", ")
		}
		print1(b, e)
	}
}

// QuoteString renders s as a Language string literal, escaping the
// characters the lexer treats specially (spec.md §4.1).
func QuoteString(s string) string {
	return strconv.Quote(s)
}

func printConfigure(b *strings.Builder, s *ConfigureStmt) {
	b.WriteString("configure ")
	b.WriteString(s.Scope)
	b.WriteString(" set ")
	print1(b, s.Name)
	b.WriteString(" := ")
	print1(b, s.Value)
}

func printTransaction(b *strings.Builder, s *TransactionStmt) {
	b.WriteString(s.Kind)
	b.WriteString(" transaction")
}

func printSavepoint(b *strings.Builder, s *SavepointStmt) {
	switch s.Kind {
	case "declare":
		b.WriteString("declare savepoint ")
		print1(b, s.Name)
	case "release":
		b.WriteString("release savepoint ")
		print1(b, s.Name)
	case "rollback_to":
		b.WriteString("rollback to savepoint ")
		print1(b, s.Name)
	}
}

// ---- DDL / SDL ----------------------------------------------------------

func printDDLCreateScalar(b *strings.Builder, s *DDLCreateScalar) {
	b.WriteString("create scalar type ")
	print1(b, s.Name)
	if len(s.EnumOf) > 0 {
		b.WriteString(" extending enum<")
		for i, v := range s.EnumOf {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(QuoteString(v))
		}
		b.WriteString(">")
		return
	}
	if len(s.Extending) > 0 {
		b.WriteString(" extending ")
		print1(b, s.Extending[0])
	}
}

func printSDLObjectType(b *strings.Builder, t *SDLObjectType) {
	if t.Abstract {
		b.WriteString("abstract ")
	}
	b.WriteString("type ")
	print1(b, t.Name)
	if len(t.Extending) > 0 {
		b.WriteString(" extending ")
		for i, e := range t.Extending {
			if i > 0 {
				b.WriteString(", ")
			}
			print1(b, e)
		}
	}
	b.WriteString(" {")
	for _, m := range t.Members {
		b.WriteString(" ")
		print1(b, m)
		b.WriteString(";")
	}
	b.WriteString(" }")
}

func printPointerModifiers(b *strings.Builder, required bool, cardinality string) {
	if required {
		b.WriteString("required ")
	} else {
		b.WriteString("optional ")
	}
	if cardinality == "Many" {
		b.WriteString("multi ")
	} else {
		b.WriteString("single ")
	}
}

func printSDLProperty(b *strings.Builder, p *SDLProperty) {
	printPointerModifiers(b, p.Required, p.Cardinality)
	b.WriteString("property ")
	print1(b, p.Name)
	b.WriteString(" -> ")
	print1(b, p.Type)
	body := pointerBodyLines(p.Readonly, p.Default, p.Computed, p.Constraints, p.Annotations, "", "", nil)
	if body != "" {
		b.WriteString(" {")
		b.WriteString(body)
		b.WriteString(" }")
	}
}

func printSDLLink(b *strings.Builder, l *SDLLink) {
	printPointerModifiers(b, l.Required, l.Cardinality)
	b.WriteString("link ")
	print1(b, l.Name)
	b.WriteString(" -> ")
	print1(b, l.Target)
	body := pointerBodyLines(l.Readonly, l.Default, l.Computed, nil, l.Annotations, l.OnTargetDelete, l.OnSourceDelete, l.Properties)
	if body != "" {
		b.WriteString(" {")
		b.WriteString(body)
		b.WriteString(" }")
	}
}

// pointerBodyLines renders the shared property/link body items in the
// fixed order parsePointerBody accepts them in.
func pointerBodyLines(readonly bool, def, computed Expr, constraints []*SDLConstraint, annotations map[string]Expr, onTarget, onSource string, linkProps []*SDLProperty) string {
	var b strings.Builder
	if def != nil {
		b.WriteString(" default := ")
		print1(&b, def)
		b.WriteString(";")
	}
	if computed != nil {
		b.WriteString(" computed := ")
		print1(&b, computed)
		b.WriteString(";")
	}
	if readonly {
		b.WriteString(" readonly := true;")
	}
	if onTarget != "" {
		b.WriteString(" on target delete ")
		b.WriteString(printDeleteAction(onTarget))
		b.WriteString(";")
	}
	if onSource != "" {
		b.WriteString(" on source delete ")
		b.WriteString(printDeleteAction(onSource))
		b.WriteString(";")
	}
	for _, c := range constraints {
		b.WriteString(" ")
		printSDLConstraint(&b, c)
		b.WriteString(";")
	}
	for _, lp := range linkProps {
		b.WriteString(" ")
		printSDLProperty(&b, lp)
		b.WriteString(";")
	}
	for name, e := range annotations {
		b.WriteString(" annotation ")
		b.WriteString(name)
		b.WriteString(" := ")
		print1(&b, e)
		b.WriteString(";")
	}
	return b.String()
}

func printDeleteAction(a string) string {
	switch a {
	case "delete_source":
		return "delete source"
	case "deferred_restrict":
		return "deferred restrict"
	default:
		return a
	}
}

func printSDLIndex(b *strings.Builder, idx *SDLIndex) {
	b.WriteString("index on (")
	for i, e := range idx.Exprs {
		if i > 0 {
			b.WriteString(", ")
		}
		print1(b, e)
	}
	b.WriteString(")")
	if idx.Except != nil {
		b.WriteString(" except (")
		print1(b, idx.Except)
		b.WriteString(")")
	}
}

func printSDLConstraint(b *strings.Builder, c *SDLConstraint) {
	if c.Delegated {
		b.WriteString("delegated ")
	}
	b.WriteString("constraint ")
	b.WriteString(c.Name)
	if len(c.Args) > 0 {
		b.WriteString("(")
		for i, a := range c.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			print1(b, a)
		}
		b.WriteString(")")
	}
	if c.Subject != nil {
		b.WriteString(" on (")
		print1(b, c.Subject)
		b.WriteString(")")
	}
	if c.ErrMessage != "" {
		b.WriteString(" { errmessage := ")
		b.WriteString(QuoteString(c.ErrMessage))
		b.WriteString("; }")
	}
}

func printDDLCreateFunction(b *strings.Builder, f *DDLCreateFunction) {
	b.WriteString("create function ")
	print1(b, f.Name)
	b.WriteString("(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		printFuncParam(b, p)
	}
	b.WriteString(") -> ")
	switch f.ReturnMod {
	case "OptionalType":
		b.WriteString("optional ")
	case "SetOfType":
		b.WriteString("set of ")
	}
	print1(b, f.ReturnType)
	b.WriteString(" { using ")
	b.WriteString(QuoteString(f.Using))
	b.WriteString(";")
	if f.Volatility != "Immutable" {
		b.WriteString(" volatility := ")
		b.WriteString(QuoteString(f.Volatility))
		b.WriteString(";")
	}
	b.WriteString(" }")
}

func printFuncParam(b *strings.Builder, p *FuncParam) {
	switch p.Kind {
	case "Variadic":
		b.WriteString("variadic ")
	case "NamedOnly":
		b.WriteString("named only ")
	}
	b.WriteString(p.Name)
	b.WriteString(": ")
	switch p.Modifier {
	case "Optional":
		b.WriteString("optional ")
	case "SetOf":
		b.WriteString("set of ")
	}
	print1(b, p.Type)
}

func printDDLCreateCast(b *strings.Builder, c *DDLCreateCast) {
	b.WriteString("create cast from ")
	print1(b, c.From)
	b.WriteString(" to ")
	print1(b, c.To)
	b.WriteString(" { using ")
	b.WriteString(QuoteString(c.Using))
	b.WriteString(";")
	if c.AllowImplicit {
		b.WriteString(" allow implicit;")
	}
	if c.AllowAssignment {
		b.WriteString(" allow assignment;")
	}
	if c.Volatility != "Immutable" {
		b.WriteString(" volatility := ")
		b.WriteString(QuoteString(c.Volatility))
		b.WriteString(";")
	}
	b.WriteString(" }")
}
