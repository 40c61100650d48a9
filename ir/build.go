package ir

import (
	"math/big"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syssam/velox/ast"
	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/lexer"
	"github.com/syssam/velox/resolve"
)

// Builder walks an AST, consulting a resolve.Resolver for scoping and a
// catalog.Snapshot for types, to produce IR (spec.md §4.5). Name
// resolution and IR building share one mutable scope stack rather than
// running as separate passes (spec.md §2.4).
type Builder struct {
	Snap *catalog.Snapshot
	Res  *resolve.Resolver

	// bindings records the type and cardinality a binding key's rows
	// range over, for every binding key minted as something other than
	// a real SetRef/PathStep carrying its own Header: the implicit
	// subject (bindImplicitSubject), a for-loop variable (buildFor), and
	// a with-alias (buildWith). resolve.Stack itself tracks only
	// name->key, never a key's type, so every place that re-exposes a
	// bare binding reference (buildIdent's RootBinding case, buildPath's
	// implicit-root branch, buildDetached) looks the type/cardinality up
	// here instead.
	bindings map[resolve.BindingKey]bindingMeta
}

// bindingMeta is the type/cardinality pair a bare binding reference
// re-exposes (see Builder.bindings).
type bindingMeta struct {
	Type catalog.EntityId
	Card Cardinality
}

// NewBuilder returns a Builder over snap with the given scoping mode
// and default module.
func NewBuilder(snap *catalog.Snapshot, mode resolve.Mode, defaultModule string) *Builder {
	return &Builder{
		Snap:     snap,
		Res:      resolve.NewResolver(snap, mode, defaultModule),
		bindings: map[resolve.BindingKey]bindingMeta{},
	}
}

func header(typ catalog.EntityId, card Cardinality) Header {
	return Header{Type: typ, Card: card}
}

// bindImplicitSubject opens a scope in which "." resolves to a row of
// typ, used by every construct that lets a nested expression reference
// its own row via a bare `.field` path (spec.md §4.5's shape elements,
// filter/order-by clauses, and SPEC_FULL.md §4's policy `using`
// clauses). subjectBinding is the real subject's own binding key when
// it has one (preserving spec.md §4.4 path factoring); 0 (a bare type
// name, or no real subject at all) mints a fresh key instead, since
// there's no existing path occurrence to factor against. Callers must
// pair this with a deferred b.Res.Stack.Pop().
func (b *Builder) bindImplicitSubject(kind resolve.ScopeKind, subjectBinding resolve.BindingKey, typ catalog.EntityId) {
	key := subjectBinding
	if key == 0 {
		key = b.Res.Stack.Fresh()
	}
	b.Res.Stack.Push(kind, "")
	b.Res.Stack.Bind(implicitSubjectSymbol, key)
	// A bare `.` reference names the current row, a singleton.
	b.bindings[key] = bindingMeta{Type: typ, Card: One}
}

// buildPolicyFilters elaborates ot's Allow-rule `using` expressions for
// op into IR, each scoped so its implicit-subject references resolve
// against the row the surrounding SetRef/InsertStmt/UpdateStmt/DeleteStmt
// represents (SPEC_FULL.md §4). ot may be nil (bare scalar/global
// subjects carry no policy).
func (b *Builder) buildPolicyFilters(ot *catalog.ObjectType, op catalog.Operation) ([]Node, error) {
	if ot == nil {
		return nil, nil
	}
	exprs := ot.Policy.Filters(op)
	if len(exprs) == 0 {
		return nil, nil
	}
	b.bindImplicitSubject(resolve.ScopeSelectBody, 0, ot.ID)
	defer b.Res.Stack.Pop()

	filters := make([]Node, 0, len(exprs))
	for _, e := range exprs {
		n, err := b.BuildExpr(e)
		if err != nil {
			return nil, err
		}
		filters = append(filters, n)
	}
	return filters, nil
}

// BuildStatement builds the IR for one top-level statement.
func (b *Builder) BuildStatement(stmt ast.Statement) (Node, error) {
	switch s := stmt.(type) {
	case *ast.Select:
		return b.buildSelect(s)
	case *ast.Insert:
		return b.buildInsert(s)
	case *ast.Update:
		return b.buildUpdate(s)
	case *ast.Delete:
		return b.buildDelete(s)
	case *ast.For:
		return b.buildFor(s)
	case *ast.Group:
		return b.buildGroup(s)
	case *ast.With:
		return b.buildWith(s)
	default:
		return nil, newTypeError(BadShapeElement, stmt.Pos(), "unsupported top-level statement %T", stmt)
	}
}

// BuildExpr builds the IR for an expression in the current scope.
func (b *Builder) BuildExpr(e ast.Expr) (Node, error) {
	switch expr := e.(type) {
	case *ast.Literal:
		return b.buildLiteral(expr)
	case *ast.Parameter:
		return b.buildParameter(expr)
	case *ast.Ident:
		return b.buildIdent(expr)
	case *ast.Path:
		return b.buildPath(expr)
	case *ast.Op:
		return b.buildOp(expr)
	case *ast.FunctionCall:
		return b.buildFuncCall(expr)
	case *ast.TypeCast:
		return b.buildCast(expr)
	case *ast.TypeIntersection:
		return b.buildIntersection(expr)
	case *ast.Detached:
		return b.buildDetached(expr)
	case *ast.Tuple:
		return b.buildTuple(expr)
	case *ast.Array:
		return b.buildArray(expr)
	case *ast.RangeExpr:
		return b.buildRange(expr)
	case *ast.Shape:
		return b.buildShape(expr)
	case *ast.FreeObject:
		return b.buildFreeObject(expr)
	case *ast.IfElse:
		return b.buildIfElse(expr)
	default:
		return nil, newTypeError(BadShapeElement, e.Pos(), "unsupported expression %T", e)
	}
}

func (b *Builder) buildLiteral(l *ast.Literal) (Node, error) {
	var typeName string
	var value any
	switch l.Kind {
	case lexer.INT:
		n, _ := strconv.ParseInt(l.Value, 10, 64)
		typeName, value = "int64", n
	case lexer.FLOAT:
		f, _ := strconv.ParseFloat(l.Value, 64)
		typeName, value = "float64", f
	case lexer.BIGINT:
		n := new(big.Int)
		n.SetString(l.Value, 10)
		typeName, value = "bigint", n
	case lexer.DECIMAL:
		d, err := decimal.NewFromString(l.Value)
		if err != nil {
			return nil, newTypeError(BadShapeElement, l.Pos(), "invalid decimal literal %q: %v", l.Value, err)
		}
		typeName, value = "decimal", d
	case lexer.STRING:
		typeName, value = "str", l.Value
	case lexer.BYTES:
		typeName, value = "bytes", []byte(l.Value)
	case lexer.KEYWORD: // true / false
		typeName, value = "bool", l.Value == "true"
	default:
		return nil, newTypeError(BadShapeElement, l.Pos(), "unsupported literal kind %v", l.Kind)
	}
	ent, ok := b.Snap.ByName(typeName)
	if !ok {
		return nil, newTypeError(NoOverload, l.Pos(), "builtin scalar %q missing from catalog", typeName)
	}
	return &Literal{base: base{header(ent.Head().ID, One)}, Value: value}, nil
}

func (b *Builder) buildParameter(p *ast.Parameter) (Node, error) {
	typeEnt, err := b.resolveTypeExpr(p.Type)
	if err != nil {
		return nil, err
	}
	card := One
	if p.Optional {
		card = AtMostOne
	}
	return &Param{base: base{header(typeEnt, card)}, Name: p.Name, Optional: p.Optional}, nil
}

func (b *Builder) resolveTypeExpr(e ast.Expr) (catalog.EntityId, error) {
	id, ok := e.(*ast.Ident)
	if !ok {
		return 0, newTypeError(CastFailed, e.Pos(), "unsupported type expression %T", e)
	}
	ent, err := b.Res.ResolveRoot(id)
	if err != nil {
		return 0, err
	}
	return ent.Entity.Head().ID, nil
}

// buildIdent builds a bare identifier: a scope binding (for-variable,
// with-alias), a Global, or a bare ObjectType/ScalarType set reference
// (spec.md §4.5 "Set reference: type is the referent's declared type;
// cardinality is MANY for object types, else as declared").
func (b *Builder) buildIdent(id *ast.Ident) (Node, error) {
	root, err := b.Res.ResolveRoot(id)
	if err != nil {
		return nil, err
	}
	switch root.Kind {
	case resolve.RootBinding:
		// Re-expose whatever introduced this binding (implicit subject,
		// for-variable, with-alias) as a SetRef over its recorded
		// type/cardinality, carrying the same binding key so later
		// occurrences of this symbol in a nested scope still factor
		// against it (spec.md §4.4).
		info, ok := b.bindings[root.Binding]
		if !ok {
			return nil, newTypeError(NoOverload, id.Pos(), "internal: unresolved binding type for %q", id.Name)
		}
		return &SetRef{base: base{Header{Type: info.Type, Card: info.Card, Binding: root.Binding}}}, nil
	case resolve.RootGlobal:
		g := root.Entity.(*catalog.Global)
		card := One
		if g.Expr == nil {
			card = AtMostOne
		}
		return &SetRef{base: base{header(g.Type, card)}, Entity: g}, nil
	default:
		card := Many
		if _, ok := root.Entity.(*catalog.ScalarType); ok {
			card = One
		}
		ref := &SetRef{base: base{header(root.Entity.Head().ID, card)}, Entity: root.Entity}
		if ot, ok := root.Entity.(*catalog.ObjectType); ok {
			filters, err := b.buildPolicyFilters(ot, catalog.OpSelect)
			if err != nil {
				return nil, err
			}
			ref.PolicyFilters = filters
		}
		return ref, nil
	}
}

// buildPath builds `Root.step1.step2...`, applying the product rule at
// each step and dispatching backlinks (spec.md §4.5).
func (b *Builder) buildPath(p *ast.Path) (Node, error) {
	var cur Node
	var err error
	if p.Root != nil {
		cur, err = b.BuildExpr(p.Root)
		if err != nil {
			return nil, err
		}
	} else {
		// Implicit-subject path: resolved against the enclosing
		// construct's subject binding, tracked in Stack via the sentinel
		// symbol "." bound by bindImplicitSubject.
		key, ok := b.Res.Stack.Lookup(implicitSubjectSymbol)
		if !ok {
			return nil, newTypeError(BadShapeElement, p.Pos(), "implicit path with no enclosing subject")
		}
		info := b.bindings[key]
		cur = &SetRef{base: base{Header{Type: info.Type, Card: info.Card, Binding: key}}}
	}

	for _, step := range p.Steps {
		if step.Backlink {
			cur, err = b.buildBacklink(cur, step)
			if err != nil {
				return nil, err
			}
			continue
		}
		cur, err = b.buildStep(cur, step)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (b *Builder) buildStep(src Node, step ast.PathStep) (Node, error) {
	ownerID := src.Head().Type
	owner, ok := b.Snap.Lookup(ownerID).(*catalog.ObjectType)
	if !ok {
		return nil, newTypeError(BadShapeElement, step.Span, "%q is not a pointer on a non-object type", step.Name)
	}
	ptrID, ok := owner.Pointers[step.Name]
	if !ok {
		return nil, newTypeError(BadShapeElement, step.Span, "no pointer %q on type %q", step.Name, owner.Name)
	}
	ptr := b.Snap.MustLookup(ptrID).(*catalog.Pointer)
	ptrCard := One
	if ptr.Cardinality == catalog.CardinalityMany {
		ptrCard = Many
	} else if !ptr.Required {
		ptrCard = AtMostOne
	}
	card := Product(src.Head().Card, ptrCard)
	return &PathStep{base: base{header(ptr.Target, card)}, Source: src, Pointer: ptrID}, nil
}

// buildBacklink enumerates every pointer named step.Name whose target
// is a supertype of src's type (spec.md §4.5). Resulting cardinality is
// always MANY.
func (b *Builder) buildBacklink(src Node, step ast.PathStep) (Node, error) {
	srcTypeID := src.Head().Type
	var matches []catalog.EntityId
	for _, ot := range b.Snap.ObjectTypes() {
		ptrID, ok := ot.Pointers[step.Name]
		if !ok {
			continue
		}
		ptr := b.Snap.MustLookup(ptrID).(*catalog.Pointer)
		if ptr.Kind != catalog.PointerLink {
			continue
		}
		if isSupertypeOf(b.Snap, ptr.Target, srcTypeID) {
			matches = append(matches, ptrID)
		}
	}
	resultType := srcTypeID
	var intersect catalog.EntityId
	if step.Intersect != nil {
		t, err := b.Res.ResolveRoot(&ast.Ident{Name: step.Intersect.Name})
		if err != nil {
			return nil, err
		}
		resultType = t.Entity.Head().ID
		intersect = resultType
	}
	return &Backlink{
		base:      base{header(resultType, Many)},
		Source:    src,
		Name:      step.Name,
		Intersect: intersect,
		Pointers:  matches,
	}, nil
}

// isSupertypeOf reports whether of's MRO contains target (target is `of`
// or a supertype of it).
func isSupertypeOf(snap *catalog.Snapshot, target, of catalog.EntityId) bool {
	ot, ok := snap.Lookup(of).(*catalog.ObjectType)
	if !ok {
		return target == of
	}
	for _, id := range ot.MRO {
		if id == target {
			return true
		}
	}
	return false
}

const implicitSubjectSymbol = "."

// buildShape builds `Subject { elements... }` (spec.md §4.5): the
// subject's type is preserved; each element opens a sub-scope bound to
// the subject.
func (b *Builder) buildShape(s *ast.Shape) (Node, error) {
	subject, err := b.BuildExpr(s.Subject)
	if err != nil {
		return nil, err
	}
	b.bindImplicitSubject(resolve.ScopeShapeElement, subject.Head().Binding, subject.Head().Type)
	defer b.Res.Stack.Pop()

	elements := make([]ShapeElement, 0, len(s.Elements))
	for _, el := range s.Elements {
		n, err := b.buildShapeElement(subject, el)
		if err != nil {
			return nil, err
		}
		elements = append(elements, n)
	}
	return &Shape{base: base{header(subject.Head().Type, subject.Head().Card)}, Subject: subject, Elements: elements}, nil
}

func (b *Builder) buildShapeElement(subject Node, el *ast.ShapeElement) (ShapeElement, error) {
	if el.Computed != nil {
		v, err := b.BuildExpr(el.Computed)
		if err != nil {
			return ShapeElement{}, err
		}
		return ShapeElement{Name: el.Name, Value: v}, nil
	}
	if el.Nested != nil {
		v, err := b.buildShape(el.Nested)
		if err != nil {
			return ShapeElement{}, err
		}
		return ShapeElement{Name: el.Name, Value: v}, nil
	}
	step, err := b.buildStep(subject, ast.PathStep{Name: el.Name, Span: el.Pos()})
	if err != nil {
		return ShapeElement{}, err
	}
	return ShapeElement{Name: el.Name, Value: step}, nil
}

func (b *Builder) buildFreeObject(f *ast.FreeObject) (Node, error) {
	fields := make([]ShapeElement, 0, len(f.Fields))
	for _, el := range f.Fields {
		v, err := b.BuildExpr(el.Computed)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ShapeElement{Name: el.Name, Value: v})
	}
	return &FreeObject{base: base{Header{Card: One}}, Fields: fields}, nil
}

func (b *Builder) buildSelect(s *ast.Select) (Node, error) {
	subject, err := b.BuildExpr(s.Subject)
	if err != nil {
		return nil, err
	}
	filter, orderBy, offset, limit, err := b.buildTail(subject.Head().Binding, subject.Head().Type, s.Filter, s.OrderBy, s.Offset, s.Limit)
	if err != nil {
		return nil, err
	}
	return &SelectStmt{
		base: base{header(subject.Head().Type, subject.Head().Card)},
		Subject: subject, Filter: filter, OrderBy: orderBy, Offset: offset, Limit: limit,
	}, nil
}

// buildTail builds the filter/order-by/offset/limit clauses shared by
// select and delete. filter and order-by see subjectType's rows via the
// implicit-subject binding; offset/limit are evaluated in the outer
// scope, since they cannot reference the row (spec.md §4.5).
func (b *Builder) buildTail(subjectBinding resolve.BindingKey, subjectType catalog.EntityId, filterE ast.Expr, orderE []ast.OrderItem, offsetE, limitE ast.Expr) (filter Node, orderBy []OrderTerm, offset, limit Node, err error) {
	if filterE != nil || len(orderE) > 0 {
		b.bindImplicitSubject(resolve.ScopeSelectBody, subjectBinding, subjectType)
		if filterE != nil {
			filter, err = b.BuildExpr(filterE)
			if err != nil {
				b.Res.Stack.Pop()
				return
			}
		}
		for _, o := range orderE {
			v, e := b.BuildExpr(o.Expr)
			if e != nil {
				err = e
				b.Res.Stack.Pop()
				return
			}
			orderBy = append(orderBy, OrderTerm{Expr: v, Desc: o.Desc, EmptyFirst: o.EmptyFirst})
		}
		b.Res.Stack.Pop()
	}
	if offsetE != nil {
		offset, err = b.BuildExpr(offsetE)
		if err != nil {
			return
		}
	}
	if limitE != nil {
		limit, err = b.BuildExpr(limitE)
	}
	return
}

// buildInsert builds `insert T { ... } [unless conflict ...]` (spec.md
// §4.5): T must be concrete; required non-defaulted properties must be
// present; output is a singleton of T.
func (b *Builder) buildInsert(s *ast.Insert) (Node, error) {
	typEnt, err := b.Res.ResolveRoot(s.TypeName)
	if err != nil {
		return nil, err
	}
	ot, ok := typEnt.Entity.(*catalog.ObjectType)
	if !ok {
		return nil, newTypeError(BadShapeElement, s.Pos(), "%q is not an object type", s.TypeName.Name)
	}
	if ot.Abstract {
		return nil, newTypeError(BadShapeElement, s.Pos(), "cannot insert abstract type %q", ot.Name)
	}

	provided := make(map[string]bool, len(s.Elements))
	elements := make([]ShapeElement, 0, len(s.Elements))
	placeholder := &SetRef{base: base{header(ot.ID, One)}, Entity: ot}
	for _, el := range s.Elements {
		n, err := b.buildShapeElement(placeholder, el)
		if err != nil {
			return nil, err
		}
		provided[el.Name] = true
		elements = append(elements, n)
	}
	for name, ptrID := range ot.Pointers {
		ptr := b.Snap.MustLookup(ptrID).(*catalog.Pointer)
		if ptr.Required && ptr.Default == nil && ptr.Computed == nil && !provided[name] {
			return nil, newTypeError(RequiredNotProvided, s.Pos(), "required pointer %q not provided", name)
		}
	}

	policyFilters, err := b.buildPolicyFilters(ot, catalog.OpInsert)
	if err != nil {
		return nil, err
	}
	stmt := &InsertStmt{base: base{header(ot.ID, One)}, Elements: elements, PolicyFilters: policyFilters}
	if s.Conflict != nil {
		if s.Conflict.On != nil {
			onNode, err := b.buildConflictOn(placeholder, s.Conflict.On)
			if err != nil {
				return nil, err
			}
			stmt.ConflictOn = onNode
		}
		if s.Conflict.Else != nil {
			elseNode, err := b.BuildExpr(s.Conflict.Else)
			if err != nil {
				return nil, err
			}
			stmt.ConflictElse = elseNode
		}
	}
	return stmt, nil
}

func (b *Builder) buildConflictOn(subject Node, e ast.Expr) (Node, error) {
	if path, ok := e.(*ast.Path); ok && path.Root == nil {
		return b.buildStep(subject, path.Steps[0])
	}
	return b.BuildExpr(e)
}

// buildUpdate builds `update E filter F set { ... }` (spec.md §4.5).
func (b *Builder) buildUpdate(s *ast.Update) (Node, error) {
	subject, err := b.BuildExpr(s.Subject)
	if err != nil {
		return nil, err
	}
	filter, _, _, _, err := b.buildTail(subject.Head().Binding, subject.Head().Type, s.Filter, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	ot, ok := b.Snap.Lookup(subject.Head().Type).(*catalog.ObjectType)
	if !ok {
		return nil, newTypeError(BadShapeElement, s.Pos(), "update subject is not an object set")
	}
	// A set value may itself reference the row being updated, e.g.
	// `set { bio := .bio ++ '!' }`, so it sees the same implicit-subject
	// binding a shape element's computed expression does.
	b.bindImplicitSubject(resolve.ScopeShapeElement, subject.Head().Binding, subject.Head().Type)
	defer b.Res.Stack.Pop()
	sets := make([]UpdateSet, 0, len(s.Elements))
	for _, el := range s.Elements {
		ptrID, ok := ot.Pointers[el.Name]
		if !ok {
			return nil, newTypeError(BadShapeElement, el.Pos(), "no pointer %q on type %q", el.Name, ot.Name)
		}
		op := ":="
		var valExpr ast.Expr = el.Computed
		if valExpr == nil && el.Nested != nil {
			valExpr = el.Nested.Subject
		}
		v, err := b.BuildExpr(valExpr)
		if err != nil {
			return nil, err
		}
		sets = append(sets, UpdateSet{Pointer: ptrID, Op: op, Value: v})
	}
	policyFilters, err := b.buildPolicyFilters(ot, catalog.OpUpdateOp)
	if err != nil {
		return nil, err
	}
	return &UpdateStmt{base: base{header(subject.Head().Type, subject.Head().Card)}, Subject: subject, Filter: filter, Sets: sets, PolicyFilters: policyFilters}, nil
}

func (b *Builder) buildDelete(s *ast.Delete) (Node, error) {
	subject, err := b.BuildExpr(s.Subject)
	if err != nil {
		return nil, err
	}
	filter, orderBy, offset, limit, err := b.buildTail(subject.Head().Binding, subject.Head().Type, s.Filter, s.OrderBy, s.Offset, s.Limit)
	if err != nil {
		return nil, err
	}
	var policyFilters []Node
	if ot, ok := b.Snap.Lookup(subject.Head().Type).(*catalog.ObjectType); ok {
		policyFilters, err = b.buildPolicyFilters(ot, catalog.OpDelete)
		if err != nil {
			return nil, err
		}
	}
	return &DeleteStmt{
		base: base{header(subject.Head().Type, subject.Head().Card)},
		Subject: subject, Filter: filter, OrderBy: orderBy, Offset: offset, Limit: limit,
		PolicyFilters: policyFilters,
	}, nil
}

// buildFor builds `for x in S [union] B` (spec.md §4.5): a fresh
// binding key for x bound to a singleton of S's element type; B
// evaluates in a nested scope.
func (b *Builder) buildFor(s *ast.For) (Node, error) {
	iter, err := b.BuildExpr(s.Iterator)
	if err != nil {
		return nil, err
	}
	b.Res.Stack.Push(resolve.ScopeForBody, "")
	key := b.Res.Stack.BindAlias(s.Var.Name)
	// x is bound to a singleton of S's element type (spec.md §4.5).
	b.bindings[key] = bindingMeta{Type: iter.Head().Type, Card: One}
	defer b.Res.Stack.Pop()

	var body Node
	switch bd := s.Body.(type) {
	case ast.Statement:
		body, err = b.BuildStatement(bd)
	case ast.Expr:
		body, err = b.BuildExpr(bd)
	default:
		return nil, newTypeError(BadShapeElement, s.Pos(), "unsupported for-body %T", s.Body)
	}
	if err != nil {
		return nil, err
	}
	return &For{base: base{header(body.Head().Type, Many)}, Iterator: iter, Binding: key, Body: body}, nil
}

// buildGroup builds `group E using a := Ea, ... by a, ...` (spec.md
// §4.5): produces a set of free objects {key, grouping, elements}.
func (b *Builder) buildGroup(s *ast.Group) (Node, error) {
	subject, err := b.BuildExpr(s.Subject)
	if err != nil {
		return nil, err
	}
	b.Res.Stack.Push(resolve.ScopeAggregateArg, "")
	defer b.Res.Stack.Pop()

	using := make([]GroupKey, 0, len(s.Using))
	for _, u := range s.Using {
		v, err := b.BuildExpr(u.Expr)
		if err != nil {
			return nil, err
		}
		using = append(using, GroupKey{Name: u.Name.Name, Expr: v})
	}
	by := make([]string, 0, len(s.By))
	for _, e := range s.By {
		if id, ok := e.(*ast.Ident); ok {
			by = append(by, id.Name)
		}
	}
	return &Group{base: base{Header{Card: Many}}, Subject: subject, Using: using, By: by}, nil
}

// buildWith builds `with n := Ex, ... body` (spec.md §4.5): each n is
// an alias with a fresh binding key.
func (b *Builder) buildWith(w *ast.With) (Node, error) {
	var head Node
	var tailBuild func() (Node, error)
	tailBuild = func() (Node, error) {
		switch bd := w.Body.(type) {
		case ast.Statement:
			return b.BuildStatement(bd)
		case ast.Expr:
			return b.BuildExpr(bd)
		default:
			return nil, newTypeError(BadShapeElement, w.Pos(), "unsupported with-body %T", w.Body)
		}
	}

	var wrap func(i int) (Node, error)
	wrap = func(i int) (Node, error) {
		if i == len(w.Bindings) {
			return tailBuild()
		}
		binding := w.Bindings[i]
		if binding.ModuleName != "" {
			b.Res.Stack.Push(resolve.ScopeWithBinding, binding.ModuleName)
			defer b.Res.Stack.Pop()
			return wrap(i + 1)
		}
		val, err := b.BuildExpr(binding.Expr)
		if err != nil {
			return nil, err
		}
		key := b.Res.Stack.BindAlias(binding.Name.Name)
		// Referencing the alias reproduces the bound expression's own
		// type/cardinality (spec.md §4.5 "with... lazy... the alias is
		// inlined only where referenced").
		b.bindings[key] = bindingMeta{Type: val.Head().Type, Card: val.Head().Card}
		body, err := wrap(i + 1)
		if err != nil {
			return nil, err
		}
		return &WithBinding{base: base{header(body.Head().Type, body.Head().Card)}, Alias: binding.Name.Name, Binding: key, Value: val, Body: body}, nil
	}
	head, err := wrap(0)
	return head, err
}

func (b *Builder) buildIfElse(e *ast.IfElse) (Node, error) {
	cond, err := b.BuildExpr(e.Cond)
	if err != nil {
		return nil, err
	}
	then, err := b.BuildExpr(e.Then)
	if err != nil {
		return nil, err
	}
	els, err := b.BuildExpr(e.Else)
	if err != nil {
		return nil, err
	}
	return &IfElse{base: base{header(then.Head().Type, Join(then.Head().Card, els.Head().Card))}, Cond: cond, Then: then, Else: els}, nil
}

// buildDetached builds `detached Expr` (spec.md §4.4: "A `detached`
// prefix forces a fresh binding key regardless of symbol identity").
// It cannot simply call BuildExpr on the inner path: that would resolve
// the root symbol through the ordinary Stack.Lookup route and reuse
// whatever key earlier occurrences of the same symbol already share in
// this scope. Instead it resolves the root itself, mints a fresh key
// that is never registered back into the scope's symbol table (so
// later, non-detached occurrences of the same symbol keep factoring
// with each other, untouched by this one), and replays the remaining
// path steps through the ordinary buildStep/buildBacklink machinery.
func (b *Builder) buildDetached(d *ast.Detached) (Node, error) {
	path, ok := d.Expr.(*ast.Path)
	if !ok || path.Root == nil {
		return b.BuildExpr(d.Expr)
	}
	id, ok := path.Root.(*ast.Ident)
	if !ok {
		return b.BuildExpr(d.Expr)
	}
	root, err := b.Res.ResolveRoot(id)
	if err != nil {
		return nil, err
	}
	fresh := b.Res.Stack.Fresh()

	var cur Node
	switch root.Kind {
	case resolve.RootBinding:
		info, ok := b.bindings[root.Binding]
		if !ok {
			return nil, newTypeError(NoOverload, id.Pos(), "internal: unresolved binding type for %q", id.Name)
		}
		cur = &SetRef{base: base{Header{Type: info.Type, Card: info.Card, Binding: fresh}}}
	case resolve.RootGlobal:
		g := root.Entity.(*catalog.Global)
		card := One
		if g.Expr == nil {
			card = AtMostOne
		}
		cur = &SetRef{base: base{Header{Type: g.Type, Card: card, Binding: fresh}}, Entity: g}
	default:
		card := Many
		if _, ok := root.Entity.(*catalog.ScalarType); ok {
			card = One
		}
		ref := &SetRef{base: base{Header{Type: root.Entity.Head().ID, Card: card, Binding: fresh}}, Entity: root.Entity}
		if ot, ok := root.Entity.(*catalog.ObjectType); ok {
			filters, err := b.buildPolicyFilters(ot, catalog.OpSelect)
			if err != nil {
				return nil, err
			}
			ref.PolicyFilters = filters
		}
		cur = ref
	}

	for _, step := range path.Steps {
		if step.Backlink {
			cur, err = b.buildBacklink(cur, step)
		} else {
			cur, err = b.buildStep(cur, step)
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func (b *Builder) buildTuple(t *ast.Tuple) (Node, error) {
	elems := make([]Node, 0, len(t.Elems))
	for _, e := range t.Elems {
		n, err := b.BuildExpr(e)
		if err != nil {
			return nil, err
		}
		elems = append(elems, n)
	}
	return &TupleCtor{base: base{Header{Card: One}}, Elements: elems}, nil
}

func (b *Builder) buildArray(a *ast.Array) (Node, error) {
	elems := make([]Node, 0, len(a.Elems))
	for _, e := range a.Elems {
		n, err := b.BuildExpr(e)
		if err != nil {
			return nil, err
		}
		elems = append(elems, n)
	}
	card := One
	if a.Braces {
		card = Many
	}
	var typ catalog.EntityId
	if len(elems) > 0 {
		typ = elems[0].Head().Type
	}
	return &ArrayCtor{base: base{header(typ, card)}, Elements: elems}, nil
}

func (b *Builder) buildRange(r *ast.RangeExpr) (Node, error) {
	lower, err := b.BuildExpr(r.From)
	if err != nil {
		return nil, err
	}
	upper, err := b.BuildExpr(r.To)
	if err != nil {
		return nil, err
	}
	return &RangeCtor{base: base{header(lower.Head().Type, One)}, Lower: lower, Upper: upper}, nil
}

// buildCast builds `<T>expr` (spec.md §4.5): valid only if a cast
// entity (source_type, T) exists in the catalog, except for the
// UUID->ObjectType special case below.
func (b *Builder) buildCast(c *ast.TypeCast) (Node, error) {
	expr, err := b.BuildExpr(c.Expr)
	if err != nil {
		return nil, err
	}
	targetID, err := b.resolveTypeExpr(c.Type)
	if err != nil {
		return nil, err
	}
	if ot, ok := b.Snap.Lookup(targetID).(*catalog.ObjectType); ok {
		if !ot.Abstract && isUUIDType(b.Snap, expr.Head().Type) {
			if lit, ok := expr.(*Literal); ok {
				if s, ok := lit.Value.(string); ok {
					if _, err := uuid.Parse(s); err != nil {
						return nil, newTypeError(CastFailed, c.Pos(), "invalid uuid literal %q: %v", s, err)
					}
				}
			}
			return &IDLookup{base: base{header(targetID, AtMostOne)}, Expr: expr}, nil
		}
		return nil, newTypeError(CastFailed, c.Pos(), "no cast from type %d to object type %d", expr.Head().Type, targetID)
	}
	if s, ok := expr.(*Literal); ok && isUUIDType(b.Snap, targetID) {
		if str, ok := s.Value.(string); ok {
			if _, err := uuid.Parse(str); err != nil {
				return nil, newTypeError(CastFailed, c.Pos(), "invalid uuid literal %q: %v", str, err)
			}
		}
	}
	castID, ok := b.findCast(expr.Head().Type, targetID)
	if !ok {
		return nil, newTypeError(CastFailed, c.Pos(), "no cast from type %d to %d", expr.Head().Type, targetID)
	}
	return &Cast{base: base{header(targetID, expr.Head().Card)}, CastEntity: castID, Expr: expr}, nil
}

// isUUIDType reports whether id names the builtin uuid scalar.
func isUUIDType(snap *catalog.Snapshot, id catalog.EntityId) bool {
	ent := snap.Lookup(id)
	st, ok := ent.(*catalog.ScalarType)
	return ok && st.Name == "uuid"
}

func (b *Builder) findCast(from, to catalog.EntityId) (catalog.EntityId, bool) {
	for id := catalog.EntityId(1); int(id) <= b.Snap.Len(); id++ {
		c, ok := b.Snap.Lookup(id).(*catalog.Cast)
		if ok && c.From == from && c.To == to {
			return id, true
		}
	}
	return 0, false
}

// buildIntersection builds `expr[is T]` (spec.md §4.5): cardinality
// weakens to AtMostOne times expr's cardinality when T is a proper
// subtype.
func (b *Builder) buildIntersection(ti *ast.TypeIntersection) (Node, error) {
	expr, err := b.BuildExpr(ti.Expr)
	if err != nil {
		return nil, err
	}
	targetRoot, err := b.Res.ResolveRoot(ti.Type)
	if err != nil {
		return nil, err
	}
	targetID := targetRoot.Entity.Head().ID
	card := expr.Head().Card
	if targetID != expr.Head().Type {
		card = Product(AtMostOne, card)
	}
	return &TypeIntersection{base: base{header(targetID, card)}, Expr: expr}, nil
}

// buildOp builds a unary/binary/ternary operator application by
// overload lookup in the catalog (spec.md §4.5): the most specific
// matching overload by argument count is chosen; ties are an Ambiguous
// error, absence a NoOverload error.
func (b *Builder) buildOp(op *ast.Op) (Node, error) {
	args := make([]Node, 0, len(op.Args))
	for _, a := range op.Args {
		n, err := b.BuildExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	// `A ?? B` has no fixed catalog return type (spec.md §4.5: "result
	// type is the common type of A/B"), so it gets a dedicated IR node
	// instead of an OpCall against a catalog.Operator.
	if op.Name == "??" && len(args) == 2 {
		return &Coalesce{base: base{header(args[0].Head().Type, Join(args[0].Head().Card, args[1].Head().Card))}, Left: args[0], Right: args[1]}, nil
	}
	overload, retType, err := b.resolveOperatorOverload(op.Name, len(args), op.Pos())
	if err != nil {
		return nil, err
	}
	card := One
	for _, a := range args {
		card = Product(card, a.Head().Card)
	}
	return &OpCall{base: base{header(retType, card)}, Overload: overload, Args: args}, nil
}

func (b *Builder) resolveOperatorOverload(name string, arity int, span ast.Span) (catalog.EntityId, catalog.EntityId, error) {
	ids := b.Snap.Overloads[name]
	var match catalog.EntityId
	found := 0
	for _, id := range ids {
		if o, ok := b.Snap.Lookup(id).(*catalog.Operator); ok && len(o.Params) == arity {
			match = id
			found++
		}
	}
	if found == 0 {
		return 0, 0, newTypeError(NoOverload, span, "no operator %q of arity %d", name, arity)
	}
	if found > 1 {
		return 0, 0, newTypeError(Ambiguous, span, "ambiguous operator %q of arity %d", name, arity)
	}
	o := b.Snap.Lookup(match).(*catalog.Operator)
	return match, o.Return, nil
}

// buildFuncCall builds `name(args...)` by overload lookup, following
// the same most-specific-by-arity rule as buildOp; SetOfType and
// OptionalType parameter modifiers are honored by never short-circuiting
// an empty/SetOf argument into a narrower cardinality than the
// signature's ReturnMod declares (spec.md §4.5 bullets 2-3).
func (b *Builder) buildFuncCall(fc *ast.FunctionCall) (Node, error) {
	args := make([]Node, 0, len(fc.Args))
	for _, a := range fc.Args {
		n, err := b.BuildExpr(a)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	overload, fn, err := b.resolveFunctionOverload(fc.Name, len(args), fc.Pos())
	if err != nil {
		return nil, err
	}

	card := One
	switch fn.ReturnMod {
	case catalog.ReturnSetOfType:
		card = Many
	case catalog.ReturnOptionalType:
		card = AtMostOne
	default:
		for i, a := range args {
			if i < len(fn.Params) && fn.Params[i].Modifier == catalog.ModifierSetOfType {
				continue
			}
			if i < len(fn.Params) && fn.Params[i].PreservesOptional {
				card = Product(card, a.Head().Card)
				continue
			}
			card = Product(card, a.Head().Card)
		}
	}
	return &FuncCall{base: base{header(fn.Return, card)}, Overload: overload, Args: args}, nil
}

func (b *Builder) resolveFunctionOverload(name string, arity int, span ast.Span) (catalog.EntityId, *catalog.Function, error) {
	ids := b.Snap.Overloads[name]
	var match catalog.EntityId
	var matchFn *catalog.Function
	found := 0
	for _, id := range ids {
		if fn, ok := b.Snap.Lookup(id).(*catalog.Function); ok && compatibleArity(fn.Params, arity) {
			match, matchFn = id, fn
			found++
		}
	}
	if found == 0 {
		return 0, nil, newTypeError(NoOverload, span, "no function %q accepting %d arguments", name, arity)
	}
	if found > 1 {
		return 0, nil, newTypeError(Ambiguous, span, "ambiguous function %q for %d arguments", name, arity)
	}
	return match, matchFn, nil
}

func compatibleArity(params []catalog.Param, arity int) bool {
	required := 0
	variadic := false
	for _, p := range params {
		if p.Kind == catalog.ParamVariadic {
			variadic = true
			continue
		}
		required++
	}
	if variadic {
		return arity >= required
	}
	return arity == required
}
