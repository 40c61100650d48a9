package catalog

// Builtin std-module operators and functions (spec.md §3.2, §4.2). The
// overload resolver in package ir groups by (name, arity) only, so each
// entry below is the sole definition for its arity — the one exception
// spec.md's invariant 5 ("no two overloads have the same parameter-type
// signature") allows for: there is exactly one signature per arity, so
// nothing to disambiguate. Argument types are not enforced here; type
// compatibility for mixed-type call sites is the IR builder's implicit
// cast table (spec.md §4.5, I6), not the operator table's job.

type builtinOperator struct {
	name       string
	kind       OperatorKind
	arity      int
	paramType  string // same type used for every parameter
	ret        string
	volatility Volatility
	sqlOp      string
	sqlName    string
}

// builtinOperators is grounded in spec.md §4.2's precedence table, low
// to high: `or`, `and`, `not`, comparison, ordering, `like`/`ilike`,
// `in`, `is`, additive, multiplicative, `distinct`/unary `-`, `^`.
// `if...else`, `??`, and `union` are elaborated by dedicated IR nodes
// (IfElse, Coalesce, union-over-SelectStmt) rather than routed through
// this table.
var builtinOperators = []builtinOperator{
	{"or", OpInfix, 2, "bool", "bool", Immutable, "OR", ""},
	{"and", OpInfix, 2, "bool", "bool", Immutable, "AND", ""},
	{"not", OpPrefix, 1, "bool", "bool", Immutable, "NOT", ""},
	{"=", OpInfix, 2, "anytype", "bool", Immutable, "=", ""},
	{"!=", OpInfix, 2, "anytype", "bool", Immutable, "<>", ""},
	{"?=", OpInfix, 2, "anytype", "bool", Immutable, "IS NOT DISTINCT FROM", ""},
	{"?!=", OpInfix, 2, "anytype", "bool", Immutable, "IS DISTINCT FROM", ""},
	{"<", OpInfix, 2, "anytype", "bool", Immutable, "<", ""},
	{">", OpInfix, 2, "anytype", "bool", Immutable, ">", ""},
	{"<=", OpInfix, 2, "anytype", "bool", Immutable, "<=", ""},
	{">=", OpInfix, 2, "anytype", "bool", Immutable, ">=", ""},
	{"like", OpInfix, 2, "str", "bool", Immutable, "LIKE", ""},
	{"ilike", OpInfix, 2, "str", "bool", Immutable, "ILIKE", ""},
	{"in", OpInfix, 2, "anytype", "bool", Immutable, "IN", ""},
	{"not in", OpInfix, 2, "anytype", "bool", Immutable, "NOT IN", ""},
	{"is", OpInfix, 2, "anytype", "bool", Immutable, "IS", ""},
	{"is not", OpInfix, 2, "anytype", "bool", Immutable, "IS NOT", ""},
	{"+", OpInfix, 2, "anytype", "anytype", Immutable, "+", ""},
	{"-", OpInfix, 2, "anytype", "anytype", Immutable, "-", ""},
	{"-", OpPrefix, 1, "anytype", "anytype", Immutable, "-", ""},
	{"++", OpInfix, 2, "str", "str", Immutable, "||", ""},
	{"*", OpInfix, 2, "anytype", "anytype", Immutable, "*", ""},
	{"/", OpInfix, 2, "anytype", "float64", Immutable, "/", ""},
	{"//", OpInfix, 2, "anytype", "int64", Immutable, "", "velox_floordiv"},
	{"%", OpInfix, 2, "anytype", "anytype", Immutable, "%", ""},
	{"^", OpInfix, 2, "float64", "float64", Immutable, "", "power"},
	{"distinct", OpPrefix, 1, "anytype", "anytype", Immutable, "DISTINCT", ""},
}

type builtinFunction struct {
	name       string
	paramType  string
	paramMod   ParamModifier
	ret        string
	returnMod  ReturnMod
	volatility Volatility
	sqlName    string
}

// builtinFunctions covers the aggregate/scalar surface the spec's
// end-to-end scenarios exercise directly (§8 scenario 4's `count(.friends)`)
// plus the json-unpack helpers §6.2 names for complex parameter payloads.
var builtinFunctions = []builtinFunction{
	{"count", "anytype", ModifierSetOfType, "int64", ReturnSingletonType, Immutable, "COUNT"},
	{"len", "anytype", ModifierSingletonType, "int64", ReturnSingletonType, Immutable, "LENGTH"},
	{"sum", "anytype", ModifierSetOfType, "float64", ReturnSingletonType, Immutable, "SUM"},
	{"min", "anytype", ModifierSetOfType, "anytype", ReturnOptionalType, Immutable, "MIN"},
	{"max", "anytype", ModifierSetOfType, "anytype", ReturnOptionalType, Immutable, "MAX"},
	{"array_agg", "anytype", ModifierSetOfType, "anytype", ReturnSingletonType, Immutable, "array_agg"},
	{"exists", "anytype", ModifierSetOfType, "bool", ReturnSingletonType, Immutable, "velox_exists"},
	{"json_array_unpack", "json", ModifierSingletonType, "anytype", ReturnSetOfType, Immutable, "jsonb_array_elements"},
	{"json_object_unpack", "json", ModifierSingletonType, "anytype", ReturnSetOfType, Immutable, "jsonb_each"},
	{"random", "anytype", ModifierSingletonType, "float64", ReturnSingletonType, VolatileKind, "random"},
}

// defineBuiltinOperatorsAndFunctions seeds the std module's operator and
// function overload tables once the builtin scalar set exists. "anytype"
// falls back to "json" so a Param always carries a resolvable EntityId;
// the resolver never consults Param.Type for dispatch (only arity), so
// this placeholder is never observed by a query.
func (b *Builder) defineBuiltinOperatorsAndFunctions() {
	anytype := b.snap.byName["json"]
	typeOf := func(name string) EntityId {
		if name == "anytype" {
			return anytype
		}
		return b.snap.byName[name]
	}
	for _, op := range builtinOperators {
		id := EntityId(len(b.snap.entities))
		params := make([]Param, op.arity)
		for i := range params {
			params[i] = Param{Name: paramName(i), Type: typeOf(op.paramType), Kind: ParamPositional}
		}
		b.snap.entities = append(b.snap.entities, &Operator{
			Header:     Header{ID: id, Name: op.name},
			Kind:       op.kind,
			Params:     params,
			Return:     typeOf(op.ret),
			Volatility: op.volatility,
			SQL:        Lowering{SQLOperator: op.sqlOp, SQLName: op.sqlName},
		})
		b.snap.Overloads[op.name] = append(b.snap.Overloads[op.name], id)
	}
	for _, fn := range builtinFunctions {
		id := EntityId(len(b.snap.entities))
		b.snap.entities = append(b.snap.entities, &Function{
			Header:     Header{ID: id, Name: fn.name},
			Params:     []Param{{Name: "arg", Type: typeOf(fn.paramType), Kind: ParamPositional, Modifier: fn.paramMod}},
			Return:     typeOf(fn.ret),
			ReturnMod:  fn.returnMod,
			Volatility: fn.volatility,
			SQL:        Lowering{SQLName: fn.sqlName},
		})
		b.snap.Overloads[fn.name] = append(b.snap.Overloads[fn.name], id)
	}
}

func paramName(i int) string {
	names := [...]string{"a", "b", "c"}
	if i < len(names) {
		return names[i]
	}
	return "arg"
}
