package catalog

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/velox/ast"
)

// Builder accumulates DDL/SDL facts and produces an immutable Snapshot
// (spec.md §4.3). It follows the teacher's two-pass load shape
// (compiler/load/schema.go: gather declarations, then resolve
// references) rather than its reflection-based field discovery, since
// here the facts already arrive as parsed AST rather than Go structs.
type Builder struct {
	snap *Snapshot

	// pending holds SDLObjectType/DDLCreateScalar/... facts in
	// declaration order, deferred until every name is known (pass 1
	// registers headers, pass 2 resolves cross-references).
	pending []ast.Statement

	// names guards against a name being declared twice across any
	// entity kind, independent of Snapshot.byName which is only
	// populated once an entity is fully built.
	names map[string]ast.Span
}

// NewBuilder returns a Builder seeded with the builtin scalar set
// (spec.md §3.2) and no user-declared entities.
func NewBuilder() *Builder {
	b := &Builder{snap: newSnapshot(), names: make(map[string]ast.Span)}
	for _, name := range builtinScalars {
		b.defineScalar(name, 0, nil)
	}
	for _, c := range builtinCasts {
		b.defineBuiltinCast(c)
	}
	b.defineBuiltinOperatorsAndFunctions()
	return b
}

func (b *Builder) defineBuiltinCast(c implicitCast) {
	from, okFrom := b.snap.byName[c.from]
	to, okTo := b.snap.byName[c.to]
	if !okFrom || !okTo {
		return
	}
	id := EntityId(len(b.snap.entities))
	b.snap.entities = append(b.snap.entities, &Cast{
		Header:          Header{ID: id, Name: c.from + "->" + c.to},
		From:            from,
		To:              to,
		AllowImplicit:   c.allowImplicit,
		AllowAssignment: c.allowAssignment,
		Volatility:      Immutable,
	})
}

func (b *Builder) defineScalar(name string, extends EntityId, enumOf []string) EntityId {
	id := EntityId(len(b.snap.entities))
	st := &ScalarType{Header: Header{ID: id, Name: name}, Extends: extends, EnumOf: enumOf}
	b.snap.entities = append(b.snap.entities, st)
	b.snap.byName[name] = id
	return id
}

// EnableFuture turns on a schema future (spec.md §6.4) for the snapshot
// this Builder is accumulating, e.g. "simple_scoping".
func (b *Builder) EnableFuture(name string) {
	b.snap.Features[name] = true
}

// Add queues one DDL/SDL fact for inclusion in the next Build.
func (b *Builder) Add(stmt ast.Statement) error {
	name, span, err := factName(stmt)
	if err != nil {
		return err
	}
	if name != "" {
		if prev, dup := b.names[name]; dup {
			return newError(Duplicate, name, "already declared at %v", prev)
		}
		b.names[name] = span
	}
	b.pending = append(b.pending, stmt)
	return nil
}

func factName(stmt ast.Statement) (name string, span ast.Span, err error) {
	switch s := stmt.(type) {
	case *ast.DDLCreateScalar:
		return s.Name.Name, s.Pos(), nil
	case *ast.SDLObjectType:
		return s.Name.Name, s.Pos(), nil
	case *ast.DDLCreateFunction:
		// Functions/operators overload by name, so two facts may share
		// Name legitimately; factName returns "" to skip the
		// duplicate-name guard and lets Build's overload grouping
		// validate parameter-list uniqueness instead.
		return "", stmt.Pos(), nil
	case *ast.DDLCreateCast:
		return "", stmt.Pos(), nil
	default:
		return "", stmt.Pos(), newError(UnresolvedReference, "", "unsupported schema fact %T", stmt)
	}
}

// Build resolves every queued fact into the Snapshot, in three passes:
// register headers (so forward references between object types
// resolve), link Bases/Target/Extends by name, then linearize MRO and
// validate constraints (spec.md §4.3 responsibilities list).
func (b *Builder) Build() (*Snapshot, error) {
	objects := make(map[string]*ast.SDLObjectType)
	scalars := make(map[string]*ast.DDLCreateScalar)

	// Pass 1: register a header (and a zero-value placeholder payload)
	// for every object type and user scalar so name lookups in pass 2
	// always succeed regardless of declaration order.
	for _, stmt := range b.pending {
		switch s := stmt.(type) {
		case *ast.SDLObjectType:
			objects[s.Name.Name] = s
			id := EntityId(len(b.snap.entities))
			b.snap.entities = append(b.snap.entities, &ObjectType{
				Header:   Header{ID: id, Name: s.Name.Name},
				Abstract: s.Abstract,
				Pointers: make(map[string]EntityId),
			})
			b.snap.byName[s.Name.Name] = id
		case *ast.DDLCreateScalar:
			scalars[s.Name.Name] = s
			id := EntityId(len(b.snap.entities))
			b.snap.entities = append(b.snap.entities, &ScalarType{
				Header: Header{ID: id, Name: s.Name.Name},
				EnumOf: s.EnumOf,
			})
			b.snap.byName[s.Name.Name] = id
		}
	}

	// Pass 2: resolve Extending references now that every header exists.
	for name, s := range scalars {
		id := b.snap.byName[name]
		st := b.snap.entities[id].(*ScalarType)
		if len(s.Extending) > 0 {
			baseID, ok := b.snap.byName[s.Extending[0].Name]
			if !ok {
				return nil, newError(UnresolvedReference, name, "extends unknown scalar %q", s.Extending[0].Name)
			}
			st.Extends = baseID
		}
	}
	for name, s := range objects {
		id := b.snap.byName[name]
		ot := b.snap.entities[id].(*ObjectType)
		for _, base := range s.Extending {
			baseID, ok := b.snap.byName[base.Name]
			if !ok {
				return nil, newError(UnresolvedReference, name, "extends unknown type %q", base.Name)
			}
			ot.Bases = append(ot.Bases, baseID)
		}
	}

	// Pass 3: linearize MRO (spec.md §3.2 "a C3-linearized multiple
	// inheritance model") and populate pointers now that every base's
	// own Pointers map is reachable.
	visiting := make(map[EntityId]bool)
	for name := range objects {
		id := b.snap.byName[name]
		if _, err := b.linearize(id, visiting); err != nil {
			return nil, err
		}
	}
	// Walking each MRO from its far end builds every base before the
	// types that inherit from it.
	built := make(map[EntityId]bool)
	for name := range objects {
		mro := b.snap.entities[b.snap.byName[name]].(*ObjectType).MRO
		for i := len(mro) - 1; i >= 0; i-- {
			ot := b.snap.entities[mro[i]].(*ObjectType)
			s, ok := objects[ot.Name]
			if !ok || built[ot.ID] {
				continue
			}
			built[ot.ID] = true
			if err := b.buildPointers(ot, s); err != nil {
				return nil, err
			}
			ot.StorageKey = storageKey(ot.Name)
		}
	}

	// Functions and casts have no forward-reference problem among
	// themselves (spec.md §3.2 names them leaf entities), so they build
	// in a single pass over the remaining pending facts.
	for _, stmt := range b.pending {
		switch s := stmt.(type) {
		case *ast.DDLCreateFunction:
			if err := b.buildFunction(s); err != nil {
				return nil, err
			}
		case *ast.DDLCreateCast:
			if err := b.buildCast(s); err != nil {
				return nil, err
			}
		}
	}

	return b.snap, nil
}

func (b *Builder) buildFunction(s *ast.DDLCreateFunction) error {
	ret, err := b.resolveTypeExpr(s.ReturnType)
	if err != nil {
		return err
	}
	params := make([]Param, len(s.Params))
	for i, p := range s.Params {
		typ, err := b.resolveTypeExpr(p.Type)
		if err != nil {
			return err
		}
		params[i] = Param{Name: p.Name, Type: typ, Kind: paramKindOf(p.Kind), Modifier: paramModifierOf(p.Modifier)}
	}
	id := EntityId(len(b.snap.entities))
	fn := &Function{
		Header:     Header{ID: id, Name: s.Name.Name},
		Params:     params,
		Return:     ret,
		ReturnMod:  returnModOf(s.ReturnMod),
		Volatility: volatilityOf(s.Volatility),
		SQL:        Lowering{Template: s.Using},
	}
	b.snap.entities = append(b.snap.entities, fn)
	b.snap.Overloads[s.Name.Name] = append(b.snap.Overloads[s.Name.Name], id)
	return nil
}

func (b *Builder) buildCast(s *ast.DDLCreateCast) error {
	from, ok := b.snap.byName[s.From.Name]
	if !ok {
		return newError(UnresolvedReference, s.From.Name, "cast from unknown type %q", s.From.Name)
	}
	to, ok := b.snap.byName[s.To.Name]
	if !ok {
		return newError(UnresolvedReference, s.To.Name, "cast to unknown type %q", s.To.Name)
	}
	id := EntityId(len(b.snap.entities))
	b.snap.entities = append(b.snap.entities, &Cast{
		Header:          Header{ID: id, Name: s.From.Name + "->" + s.To.Name},
		From:            from,
		To:              to,
		AllowImplicit:   s.AllowImplicit,
		AllowAssignment: s.AllowAssignment,
		Volatility:      volatilityOf(s.Volatility),
		SQL:             Lowering{Template: s.Using},
	})
	return nil
}

func paramKindOf(k string) ParamKind {
	switch k {
	case "NamedOnly":
		return ParamNamedOnly
	case "Variadic":
		return ParamVariadic
	default:
		return ParamPositional
	}
}

func paramModifierOf(m string) ParamModifier {
	switch m {
	case "Optional":
		return ModifierOptionalType
	case "SetOf":
		return ModifierSetOfType
	default:
		return ModifierSingletonType
	}
}

func returnModOf(m string) ReturnMod {
	switch m {
	case "OptionalType":
		return ReturnOptionalType
	case "SetOfType":
		return ReturnSetOfType
	default:
		return ReturnSingletonType
	}
}

func volatilityOf(v string) Volatility {
	switch v {
	case "Stable":
		return Stable
	case "Volatile":
		return VolatileKind
	case "Modifying":
		return Modifying
	default:
		return Immutable
	}
}

// linearize computes the C3 merge of id's Bases' own MROs plus the
// Bases list itself, memoizing into ObjectType.MRO. visiting detects
// inheritance cycles (spec.md §4.3 "reject... inheritance cycles").
func (b *Builder) linearize(id EntityId, visiting map[EntityId]bool) ([]EntityId, error) {
	ot := b.snap.entities[id].(*ObjectType)
	if len(ot.MRO) > 0 {
		return ot.MRO, nil
	}
	if visiting[id] {
		return nil, newError(Cycle, ot.Name, "inheritance cycle through %q", ot.Name)
	}
	visiting[id] = true
	defer delete(visiting, id)

	var sequences [][]EntityId
	for _, baseID := range ot.Bases {
		baseMRO, err := b.linearize(baseID, visiting)
		if err != nil {
			return nil, err
		}
		sequences = append(sequences, append([]EntityId{}, baseMRO...))
	}
	sequences = append(sequences, append([]EntityId{}, ot.Bases...))

	merged, err := c3Merge(sequences)
	if err != nil {
		return nil, newError(InvalidOverride, ot.Name, "%v", err)
	}
	ot.MRO = append([]EntityId{id}, merged...)
	return ot.MRO, nil
}

// c3Merge implements the standard C3 linearization merge step: repeatedly
// take the head of some sequence that appears nowhere else's tail.
func c3Merge(sequences [][]EntityId) ([]EntityId, error) {
	var result []EntityId
	for {
		sequences = removeEmpty(sequences)
		if len(sequences) == 0 {
			return result, nil
		}
		var candidate EntityId
		found := false
	candidateLoop:
		for _, seq := range sequences {
			head := seq[0]
			for _, other := range sequences {
				if inTail(other, head) {
					continue candidateLoop
				}
			}
			candidate = head
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("inconsistent base ordering")
		}
		result = append(result, candidate)
		for i := range sequences {
			sequences[i] = removeHead(sequences[i], candidate)
		}
	}
}

func removeEmpty(seqs [][]EntityId) [][]EntityId {
	out := seqs[:0]
	for _, s := range seqs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func inTail(seq []EntityId, id EntityId) bool {
	for i := 1; i < len(seq); i++ {
		if seq[i] == id {
			return true
		}
	}
	return false
}

func removeHead(seq []EntityId, id EntityId) []EntityId {
	if len(seq) > 0 && seq[0] == id {
		return seq[1:]
	}
	return seq
}

// buildPointers materializes ot.Pointers from every base's pointers
// (nearest-base-wins, matching the MRO order) plus its own SDL members,
// which replace an inherited entry of the same name. It does not fill
// Pointer.Inherited and does not check an override for compatibility
// with the pointer it replaces.
func (b *Builder) buildPointers(ot *ObjectType, decl *ast.SDLObjectType) error {
	for _, baseID := range ot.MRO[1:] {
		base := b.snap.entities[baseID].(*ObjectType)
		for name, ptrID := range base.Pointers {
			if _, own := ot.Pointers[name]; !own {
				ot.Pointers[name] = ptrID
			}
		}
	}

	for _, m := range decl.Members {
		switch member := m.(type) {
		case *ast.SDLProperty:
			id, err := b.buildProperty(ot, member)
			if err != nil {
				return err
			}
			ot.Pointers[member.Name.Name] = id
		case *ast.SDLLink:
			id, err := b.buildLink(ot, member)
			if err != nil {
				return err
			}
			ot.Pointers[member.Name.Name] = id
		case *ast.SDLIndex:
			id := EntityId(len(b.snap.entities))
			b.snap.entities = append(b.snap.entities, &Index{
				Header: Header{ID: id}, Owner: ot.ID, Exprs: member.Exprs, Except: member.Except,
			})
			ot.Indexes = append(ot.Indexes, id)
		case *ast.SDLConstraint:
			id := EntityId(len(b.snap.entities))
			b.snap.entities = append(b.snap.entities, &Constraint{
				Header: Header{ID: id, Name: member.Name}, Owner: ot.ID,
				Args: member.Args, Subject: member.Subject,
				ErrMessage: member.ErrMessage, Delegated: member.Delegated,
			})
			ot.Constraints = append(ot.Constraints, id)
		}
	}
	return nil
}

func (b *Builder) buildProperty(ot *ObjectType, m *ast.SDLProperty) (EntityId, error) {
	target, err := b.resolveTypeExpr(m.Type)
	if err != nil {
		return 0, err
	}
	id := EntityId(len(b.snap.entities))
	b.snap.entities = append(b.snap.entities, &Pointer{
		Header:      Header{ID: id, Name: m.Name.Name},
		Kind:        PointerProperty,
		Owner:       ot.ID,
		Target:      target,
		Cardinality: cardinalityOf(m.Cardinality),
		Required:    m.Required,
		Readonly:    m.Readonly,
		Default:     m.Default,
		Computed:    m.Computed,
	})
	return id, nil
}

func (b *Builder) buildLink(ot *ObjectType, m *ast.SDLLink) (EntityId, error) {
	target, ok := b.snap.byName[m.Target.Name]
	if !ok {
		return 0, newError(UnresolvedReference, m.Name.Name, "link target %q is not a known type", m.Target.Name)
	}
	id := EntityId(len(b.snap.entities))
	p := &Pointer{
		Header:         Header{ID: id, Name: m.Name.Name},
		Kind:           PointerLink,
		Owner:          ot.ID,
		Target:         target,
		Cardinality:    cardinalityOf(m.Cardinality),
		Required:       m.Required,
		Readonly:       m.Readonly,
		Default:        m.Default,
		Computed:       m.Computed,
		OnTargetDelete: deleteActionOf(m.OnTargetDelete),
		OnSourceDelete: deleteActionOf(m.OnSourceDelete),
	}
	if len(m.Properties) > 0 {
		p.LinkProps = make(map[string]*Pointer, len(m.Properties))
		for _, lp := range m.Properties {
			lpTarget, err := b.resolveTypeExpr(lp.Type)
			if err != nil {
				return 0, err
			}
			p.LinkProps[lp.Name.Name] = &Pointer{
				Header:      Header{Name: lp.Name.Name},
				Kind:        PointerProperty,
				Owner:       ot.ID,
				Target:      lpTarget,
				Cardinality: cardinalityOf(lp.Cardinality),
				Required:    lp.Required,
			}
		}
	}
	b.snap.entities = append(b.snap.entities, p)
	return id, nil
}

// resolveTypeExpr resolves a scalar/object type name, interning a
// CollectionType if the expression names a collection constructor
// (array<...>, tuple<...>, etc). Only the plain-identifier case is
// wired today; collection-type SDL syntax resolves through the same
// intern path once the parser's DDL grammar grows constructor support.
func (b *Builder) resolveTypeExpr(e ast.Expr) (EntityId, error) {
	ident, ok := e.(*ast.Ident)
	if !ok {
		return 0, newError(UnresolvedReference, "", "unsupported type expression %T", e)
	}
	id, ok := b.snap.byName[ident.Name]
	if !ok {
		return 0, newError(UnresolvedReference, ident.Name, "unknown type %q", ident.Name)
	}
	return id, nil
}

// intern returns the EntityId of the CollectionType with the given
// structure, creating and registering a new one on first use (spec.md
// §3.2 invariant 4: structural identity).
func (b *Builder) intern(kind CollectionKind, elems []EntityId, names []string) EntityId {
	key := structuralKey(kind, elems, names)
	if id, ok := b.snap.collections[key]; ok {
		return id
	}
	id := EntityId(len(b.snap.entities))
	b.snap.entities = append(b.snap.entities, &CollectionType{
		Header: Header{ID: id}, Kind: kind, Elems: elems, ElemNames: names,
	})
	b.snap.collections[key] = id
	return id
}

func cardinalityOf(c string) Cardinality {
	if c == "Many" {
		return CardinalityMany
	}
	return CardinalityOne
}

func deleteActionOf(s string) DeleteAction {
	switch s {
	case "delete_source":
		return DeleteSource
	case "allow":
		return AllowDelete
	case "deferred_restrict":
		return DeferredRestrict
	default:
		return Restrict
	}
}

// storageKey derives the backend view/table name for an ObjectType: the
// snake-cased, pluralized type name (spec.md §4.6 "Every ObjectType is
// materialized as a backend view"). Pluralization follows the teacher's
// generated-table-name convention (compiler/gen uses inflect the same
// way for entity table names).
func storageKey(typeName string) string {
	snake := inflect.Underscore(typeName)
	return inflect.Pluralize(snake)
}
