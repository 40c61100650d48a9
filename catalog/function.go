package catalog

// ParamKind discriminates positional, named-only, and variadic
// parameters (spec.md §3.2).
type ParamKind int

const (
	ParamPositional ParamKind = iota
	ParamNamedOnly
	ParamVariadic
)

// ParamModifier is a parameter's type-modifier — the IR builder
// dispatches overload resolution on this rather than on an ambient flag
// (spec.md §9).
type ParamModifier int

const (
	ModifierSingletonType ParamModifier = iota
	ModifierOptionalType
	ModifierSetOfType
)

// Param is one parameter of a Function/Operator signature.
type Param struct {
	Name              string
	Type              EntityId
	Kind              ParamKind
	Modifier          ParamModifier
	PreservesOptional bool // spec.md §4.5 "preserves_optionality"
}

// Volatility governs whether an expression may be hoisted/reordered by
// the SQL generator (spec.md §3.2, §4.6).
type Volatility int

const (
	Immutable Volatility = iota
	Stable
	VolatileKind
	Modifying
)

// ReturnMod is a function/operator's return-type modifier.
type ReturnMod int

const (
	ReturnSingletonType ReturnMod = iota
	ReturnOptionalType
	ReturnSetOfType
)

// Lowering is a function/operator's recipe for emitting SQL (spec.md
// §4.6): either a plain SQL function/operator name, or a template with
// `$1`, `$2`, ... placeholders for positional arguments.
type Lowering struct {
	SQLName     string
	SQLOperator string
	Template    string
}

// Function is a polymorphic-by-name, overload-resolved callable (spec.md
// §3.2). Multiple Functions may share Header.Name; they are grouped into
// an overload set by Snapshot.Overloads.
type Function struct {
	Header
	Params     []Param
	Return     EntityId
	ReturnMod  ReturnMod
	Volatility Volatility
	SQL        Lowering
}

func (f *Function) EntityKind() Kind { return KindFunction }
func (f *Function) Head() Header     { return f.Header }

// OperatorKind is an Operator's fixity.
type OperatorKind int

const (
	OpPrefix OperatorKind = iota
	OpInfix
	OpPostfix
	OpTernary
)

// Operator is like Function, with a fixity and precedence class
// matching the parser's operator table (spec.md §3.2, §4.2).
type Operator struct {
	Header
	Kind       OperatorKind
	Params     []Param
	Return     EntityId
	Volatility Volatility
	Precedence int
	SQL        Lowering
}

func (o *Operator) EntityKind() Kind { return KindOperator }
func (o *Operator) Head() Header     { return o.Header }

// Cast is an ordered (From, To) conversion (spec.md §3.2).
type Cast struct {
	Header
	From            EntityId
	To              EntityId
	AllowImplicit   bool
	AllowAssignment bool
	Volatility      Volatility
	SQL             Lowering
}

func (c *Cast) EntityKind() Kind { return KindCast }
func (c *Cast) Head() Header     { return c.Header }
