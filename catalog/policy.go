package catalog

import (
	"errors"
	"fmt"

	"github.com/syssam/velox/ast"
)

// Decision sentinel errors for access-policy rule evaluation, mirroring
// the teacher's privacy.Allow/Deny/Skip sentinels (privacy/privacy.go)
// but evaluated at compile time against an IR-bound Operation rather
// than at runtime against a live query/mutation.
var (
	Allow = errors.New("velox/catalog: allow rule")
	Deny  = errors.New("velox/catalog: deny rule")
	Skip  = errors.New("velox/catalog: skip rule")
)

// Allowf, Denyf and Skipf wrap a formatted message around the matching
// decision sentinel so errors.Is still matches it.
func Allowf(format string, a ...any) error { return fmt.Errorf(format+": %w", append(a, Allow)...) }
func Denyf(format string, a ...any) error  { return fmt.Errorf(format+": %w", append(a, Deny)...) }
func Skipf(format string, a ...any) error  { return fmt.Errorf(format+": %w", append(a, Skip)...) }

// Operation names the kind of access an access-policy rule guards.
type Operation int

const (
	OpSelect Operation = iota
	OpInsert
	OpUpdateOp
	OpDelete
)

// Rule is one access-policy clause: `allow/deny <ops> using (expr)`. The
// SQL generator lowers an Allow-only policy to an extra WHERE conjunct
// (SPEC_FULL §4); Deny/Skip rules require a host-side check exposed via
// CompileOptions.PolicyHook, since deciding them needs runtime context
// the pure compiler does not have.
type Rule struct {
	Decision error // Allow, Deny, or Skip
	Ops      []Operation
	Using    ast.Expr
}

// Applies reports whether the rule names op.
func (r Rule) Applies(op Operation) bool {
	for _, o := range r.Ops {
		if o == op {
			return true
		}
	}
	return false
}

// Policy is an ordered list of Rules evaluated per Operation, following
// the teacher's QueryPolicy/MutationPolicy ordered-chain idiom
// (privacy/privacy.go).
type Policy []Rule

// Filters returns every rule's Using expression that applies to op and
// decides Allow — the conjuncts the SQL generator ANDs into the view's
// WHERE clause.
func (p Policy) Filters(op Operation) []ast.Expr {
	var out []ast.Expr
	for _, r := range p {
		if r.Decision == Allow && r.Applies(op) && r.Using != nil {
			out = append(out, r.Using)
		}
	}
	return out
}

// HasHostDecision reports whether op has any Deny/Skip rule that must be
// evaluated by CompileOptions.PolicyHook instead of by static SQL.
func (p Policy) HasHostDecision(op Operation) bool {
	for _, r := range p {
		if r.Applies(op) && (r.Decision == Deny || r.Decision == Skip) {
			return true
		}
	}
	return false
}

// TriggerTiming is Before or After the triggering event.
type TriggerTiming int

const (
	Before TriggerTiming = iota
	After
)

// TriggerEvent is the DML operation a Trigger fires on.
type TriggerEvent int

const (
	TriggerInsert TriggerEvent = iota
	TriggerUpdate
	TriggerDelete
)

// TriggerScope is Each (per-row) or All (per-statement).
type TriggerScope int

const (
	Each TriggerScope = iota
	All
)

// Trigger is recorded and validated by the catalog but not lowered to
// SQL (spec.md §1 excludes implementing the relational engine itself;
// SPEC_FULL §4) — grounded in the teacher's hook-slice pattern
// (compiler/load/schema.go's Hooks []*Position).
type Trigger struct {
	Name   string
	Timing TriggerTiming
	Event  TriggerEvent
	Scope  TriggerScope
	Body   ast.Expr
}
