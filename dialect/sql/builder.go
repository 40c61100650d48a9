package sql

import (
	"strconv"
	"strings"

	"github.com/syssam/velox/dialect"
)

// Querier wraps the basic Query method that's implemented by the builder
// types below. It returns the query string and its bound arguments, the
// same shape sqlgen's generator (spec.md §4.6) hands to dialect.Driver.Query.
type Querier interface {
	Query() (string, []any)
}

// Builder is the low-level SQL string builder every other builder type
// embeds. It owns identifier quoting and dialect-specific placeholder
// rendering ($1 for Postgres, ? for MySQL/SQLite) so sqlgen never hand
// writes SQL text itself.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
	total   int
}

// Dialect returns a DialectBuilder bound to d (one of
// dialect.Postgres/MySQL/SQLite).
func Dialect(d string) *DialectBuilder {
	return &DialectBuilder{dialect: d}
}

// DialectBuilder is the entry point for constructing a builder bound to
// one SQL dialect; it mirrors dialect.Driver.Dialect so callers don't
// juggle the string constant themselves.
type DialectBuilder struct{ dialect string }

func (d *DialectBuilder) Select(columns ...string) *Selector {
	return Select(columns...).SetDialect(d.dialect)
}

func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return Insert(table).SetDialect(d.dialect)
}

func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return Update(table).SetDialect(d.dialect)
}

func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return Delete(table).SetDialect(d.dialect)
}

func (b *Builder) SetDialect(dl string) *Builder {
	b.dialect = dl
	return b
}

func (b *Builder) postgres() bool { return b.dialect == dialect.Postgres }

// Quote quotes an SQL identifier.
func (b *Builder) Quote(ident string) string {
	if b.postgres() {
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (b *Builder) writeByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

func (b *Builder) writeString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

func (b *Builder) writePad() *Builder {
	if n := b.sb.Len(); n > 0 && b.sb.String()[n-1] != ' ' {
		b.sb.WriteByte(' ')
	}
	return b
}

// arg records a bound argument and returns its placeholder. Fragments
// (Predicate, Table reference, …) are each rendered with their own
// *Builder, so a fragment can't know its position in the final
// statement; every placeholder is emitted as "?" here and the
// top-level Query() methods renumber to "$1", "$2", … for Postgres in
// one pass once the whole statement is assembled.
func (b *Builder) arg(a any) string {
	b.args = append(b.args, a)
	b.total++
	return "?"
}

// renumberPostgres rewrites sequential "?" placeholders into "$1",
// "$2", … Safe because every placeholder this package emits comes from
// arg() above; user literals never reach the query text unparameterized.
func renumberPostgres(query string) string {
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (b *Builder) finish() string {
	s := b.String()
	if b.postgres() {
		return renumberPostgres(s)
	}
	return s
}

func (b *Builder) String() string { return strings.TrimSpace(b.sb.String()) }

func (b *Builder) Args() []any { return b.args }

func (b *Builder) join(qs []Querier, sep string) *Builder {
	for i, q := range qs {
		if i > 0 {
			b.writeString(sep)
		}
		qs2, args := q.Query()
		b.writePad().writeString(qs2)
		b.args = append(b.args, args...)
	}
	return b
}

// Table represents a table/view reference with an optional alias, the
// unit sqlgen hoists a factored binding key onto (spec.md §4.6: "Path
// factoring is realised by hoisting factored set references ... keyed by
// their binding key").
type Table struct {
	name, schema, alias string
}

func TableOf(name string) *Table { return &Table{name: name} }

func (t *Table) Schema(s string) *Table { t.schema = s; return t }

func (t *Table) As(alias string) *Table { t.alias = alias; return t }

func (t *Table) ref() string {
	n := t.name
	if t.schema != "" {
		n = t.schema + "." + n
	}
	return n
}

func (t *Table) C(column string) string {
	if t.alias != "" {
		return t.alias + "." + column
	}
	return t.ref() + "." + column
}

// Predicate is a boolean SQL expression fragment (`col = $1`, `a AND b`,
// …). Selector.Where/And/Or compose Predicates without the caller ever
// concatenating SQL text by hand.
type Predicate struct {
	fns []func(*Builder)
}

func (p *Predicate) Query() (string, []any) {
	b := &Builder{}
	for _, fn := range p.fns {
		fn(b)
	}
	return b.String(), b.args
}

func (p *Predicate) append(fn func(*Builder)) *Predicate {
	p.fns = append(p.fns, fn)
	return p
}

func binaryPredicate(col, op string, v any) *Predicate {
	return (&Predicate{}).append(func(b *Builder) {
		b.writeString(col).writeString(" " + op + " ").writeString(b.arg(v))
	})
}

// ColumnsEQ compares two columns directly, with no bound argument —
// the join-condition and correlated-subquery shape a PathStep across
// a pointer needs (spec.md §4.6), as opposed to EQ's column-to-literal
// comparison.
func ColumnsEQ(left, right string) *Predicate {
	return (&Predicate{}).append(func(b *Builder) {
		b.writeString(left + " = " + right)
	})
}

func EQ(col string, v any) *Predicate  { return binaryPredicate(col, "=", v) }
func NEQ(col string, v any) *Predicate { return binaryPredicate(col, "<>", v) }
func GT(col string, v any) *Predicate  { return binaryPredicate(col, ">", v) }
func GTE(col string, v any) *Predicate { return binaryPredicate(col, ">=", v) }
func LT(col string, v any) *Predicate  { return binaryPredicate(col, "<", v) }
func LTE(col string, v any) *Predicate { return binaryPredicate(col, "<=", v) }

func Like(col, pattern string) *Predicate {
	return (&Predicate{}).append(func(b *Builder) {
		b.writeString(col).writeString(" LIKE ").writeString(b.arg(pattern))
	})
}

func ILike(col, pattern string) *Predicate {
	return (&Predicate{}).append(func(b *Builder) {
		if b.postgres() {
			b.writeString(col).writeString(" ILIKE ").writeString(b.arg(pattern))
			return
		}
		b.writeString("LOWER(" + col + ")").writeString(" LIKE LOWER(").writeString(b.arg(pattern)).writeByte(')')
	})
}

func Contains(col, sub string) *Predicate   { return Like(col, "%"+escapeLike(sub)+"%") }
func HasPrefix(col, sub string) *Predicate  { return Like(col, escapeLike(sub)+"%") }
func HasSuffix(col, sub string) *Predicate  { return Like(col, "%"+escapeLike(sub)) }
func ContainsFold(col, sub string) *Predicate { return ILike(col, "%"+escapeLike(sub)+"%") }
func EqualFold(col, sub string) *Predicate    { return ILike(col, escapeLike(sub)) }

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}

func IsNull(col string) *Predicate {
	return (&Predicate{}).append(func(b *Builder) { b.writeString(col + " IS NULL") })
}

func NotNull(col string) *Predicate {
	return (&Predicate{}).append(func(b *Builder) { b.writeString(col + " IS NOT NULL") })
}

func In(col string, vs ...any) *Predicate {
	return (&Predicate{}).append(func(b *Builder) {
		if len(vs) == 0 {
			b.writeString("FALSE")
			return
		}
		b.writeString(col + " IN (")
		for i, v := range vs {
			if i > 0 {
				b.writeString(", ")
			}
			b.writeString(b.arg(v))
		}
		b.writeByte(')')
	})
}

func NotIn(col string, vs ...any) *Predicate {
	return (&Predicate{}).append(func(b *Builder) {
		if len(vs) == 0 {
			b.writeString("TRUE")
			return
		}
		b.writeString(col + " NOT IN (")
		for i, v := range vs {
			if i > 0 {
				b.writeString(", ")
			}
			b.writeString(b.arg(v))
		}
		b.writeByte(')')
	})
}

func compound(op string, qs []Querier) *Predicate {
	return (&Predicate{}).append(func(b *Builder) {
		b.writeByte('(')
		for i, q := range qs {
			if i > 0 {
				b.writeString(" " + op + " ")
			}
			qt, args := q.Query()
			b.writeString(qt)
			b.args = append(b.args, args...)
		}
		b.writeByte(')')
	})
}

// And/Or accept any Querier, not just *Predicate, so sqlgen can fold a
// precomputed (text, args) fragment — e.g. a lowered function-call
// template — directly into a WHERE tree without reconstructing it as a
// Predicate first.
func And(qs ...Querier) *Predicate { return compound("AND", qs) }
func Or(qs ...Querier) *Predicate  { return compound("OR", qs) }

func Not(q Querier) *Predicate {
	return (&Predicate{}).append(func(b *Builder) {
		qt, args := q.Query()
		b.writeString("NOT (" + qt + ")")
		b.args = append(b.args, args...)
	})
}

// Field* helpers adapt the comparison funcs above to the (name string,
// value) shape the generic *Field[P] predicate methods in predicate.go
// call through `P(FieldEQ(...))`.
func fieldPredicate(name string, v any, pred func(string, any) *Predicate) func(*Selector) {
	return func(s *Selector) { s.Where(pred(s.C(name), v)) }
}

func FieldEQ(name string, v any) func(*Selector)  { return fieldPredicate(name, v, EQ) }
func FieldNEQ(name string, v any) func(*Selector) { return fieldPredicate(name, v, NEQ) }
func FieldGT(name string, v any) func(*Selector)  { return fieldPredicate(name, v, GT) }
func FieldGTE(name string, v any) func(*Selector) { return fieldPredicate(name, v, GTE) }
func FieldLT(name string, v any) func(*Selector)  { return fieldPredicate(name, v, LT) }
func FieldLTE(name string, v any) func(*Selector) { return fieldPredicate(name, v, LTE) }

func FieldIn[T any](name string, vs ...T) func(*Selector) {
	return func(s *Selector) {
		v := make([]any, len(vs))
		for i := range vs {
			v[i] = vs[i]
		}
		s.Where(In(s.C(name), v...))
	}
}

func FieldNotIn[T any](name string, vs ...T) func(*Selector) {
	return func(s *Selector) {
		v := make([]any, len(vs))
		for i := range vs {
			v[i] = vs[i]
		}
		s.Where(NotIn(s.C(name), v...))
	}
}

func FieldContains(name, sub string) func(*Selector) {
	return func(s *Selector) { s.Where(Contains(s.C(name), sub)) }
}

func FieldContainsFold(name, sub string) func(*Selector) {
	return func(s *Selector) { s.Where(ContainsFold(s.C(name), sub)) }
}

func FieldHasPrefix(name, sub string) func(*Selector) {
	return func(s *Selector) { s.Where(HasPrefix(s.C(name), sub)) }
}

func FieldHasSuffix(name, sub string) func(*Selector) {
	return func(s *Selector) { s.Where(HasSuffix(s.C(name), sub)) }
}

func FieldEqualFold(name, sub string) func(*Selector) {
	return func(s *Selector) { s.Where(EqualFold(s.C(name), sub)) }
}

func FieldIsNull(name string) func(*Selector) {
	return func(s *Selector) { s.Where(IsNull(s.C(name))) }
}

func FieldNotNull(name string) func(*Selector) {
	return func(s *Selector) { s.Where(NotNull(s.C(name))) }
}

// OrderTerm direction.
const (
	OrderAsc  = ""
	OrderDesc = " DESC"
)

// joinClause is one JOIN ... ON ... fragment.
type joinClause struct {
	kind, table, onLeft, onRight string
}

// Selector builds a SELECT statement (spec.md §4.6: "Every ObjectType is
// materialized as a backend view ... The view exposes one column per
// owned property and one correlated sub-select per link").
type Selector struct {
	Builder
	ctes     []cte
	columns  []string
	colArgs  []any // bound arguments referenced by placeholders inside columns, in SELECT-list order
	from     *Table
	joins    []joinClause
	where    Querier
	group    []string
	having   Querier
	order    []string
	offset   int
	limit    int
	forUpd   bool
	distinct bool
}

type cte struct {
	name  string
	query Querier
}

func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

func (s *Selector) SetDialect(d string) *Selector {
	s.dialect = d
	return s
}

func (s *Selector) Distinct() *Selector { s.distinct = true; return s }

// Columns replaces the selector's projected column list, letting
// sqlgen build a Selector from a Table first and fill in the shape
// projection once it's known.
func (s *Selector) Columns(columns ...string) *Selector {
	s.columns = columns
	return s
}

// Arg records a bound value referenced by a "?" placeholder the caller
// is about to embed into a computed column expression (sqlgen's
// literal/parameter lowering), returning the placeholder text.
func (s *Selector) Arg(v any) string {
	s.colArgs = append(s.colArgs, v)
	return "?"
}

// Args returns the bound values accumulated via Arg/AppendArgs so far,
// in call order. sqlgen uses a Selector as scratch space to lower a
// predicate destined for an UPDATE/DELETE (which have no column list of
// their own to carry colArgs), then pulls them back out with this to
// attach to the predicate it actually uses.
func (s *Selector) Args() []any { return s.colArgs }

// AppendArgs records args bound by a correlated subquery sqlgen has
// already rendered to text and is now splicing into this selector's
// column list, so they land in the right slot of the final argument
// list (SELECT-list order, same as Arg).
func (s *Selector) AppendArgs(args []any) {
	s.colArgs = append(s.colArgs, args...)
}

// With adds a named derived table; sqlgen uses this to hoist a factored
// binding key (spec.md §4.5 invariant 4, §4.6) so it materializes once
// per lexical scope.
func (s *Selector) With(name string, q Querier) *Selector {
	s.ctes = append(s.ctes, cte{name: name, query: q})
	return s
}

func (s *Selector) From(t *Table) *Selector {
	s.from = t
	return s
}

func (s *Selector) Join(t *Table) *Selector {
	s.joins = append(s.joins, joinClause{kind: "JOIN", table: tableRef(t)})
	return s
}

func (s *Selector) LeftJoin(t *Table) *Selector {
	s.joins = append(s.joins, joinClause{kind: "LEFT JOIN", table: tableRef(t)})
	return s
}

func tableRef(t *Table) string {
	if t.alias != "" {
		return t.ref() + " AS " + t.alias
	}
	return t.ref()
}

// On sets the join condition of the most recently added join clause.
func (s *Selector) On(left, right string) *Selector {
	if n := len(s.joins); n > 0 {
		s.joins[n-1].onLeft, s.joins[n-1].onRight = left, right
	}
	return s
}

// C qualifies column with the selector's base table, so
// field-predicate helpers always reference an unambiguous column even
// after joins.
func (s *Selector) C(column string) string {
	if s.from != nil {
		return s.from.C(column)
	}
	return column
}

func (s *Selector) Where(p Querier) *Selector {
	if s.where == nil {
		s.where = p
		return s
	}
	s.where = And(s.where, p)
	return s
}

// WhereP accepts one or more predicate functions operating directly on
// the selector, mirroring the teacher's generated `WhereP` escape hatch
// for predicates not covered by a typed helper.
func (s *Selector) WhereP(preds ...func(*Selector)) *Selector {
	for _, p := range preds {
		p(s)
	}
	return s
}

func (s *Selector) GroupBy(columns ...string) *Selector {
	s.group = append(s.group, columns...)
	return s
}

func (s *Selector) Having(p Querier) *Selector {
	s.having = p
	return s
}

func (s *Selector) OrderBy(column string, dir ...string) *Selector {
	d := OrderAsc
	if len(dir) > 0 {
		d = dir[0]
	}
	s.order = append(s.order, column+d)
	return s
}

func (s *Selector) Offset(n int) *Selector {
	s.offset = n
	return s
}

func (s *Selector) Limit(n int) *Selector {
	s.limit = n
	return s
}

func (s *Selector) ForUpdate() *Selector {
	s.forUpd = true
	return s
}

// Query renders the SELECT statement and its bound argument list.
func (s *Selector) Query() (string, []any) {
	b := &Builder{dialect: s.dialect}
	if len(s.ctes) > 0 {
		b.writeString("WITH ")
		for i, c := range s.ctes {
			if i > 0 {
				b.writeString(", ")
			}
			qs, args := c.query.Query()
			b.writeString(c.name + " AS (" + qs + ")")
			b.args = append(b.args, args...)
		}
		b.writeByte(' ')
	}
	b.writeString("SELECT ")
	if s.distinct {
		b.writeString("DISTINCT ")
	}
	cols := s.columns
	if len(cols) == 0 {
		cols = []string{"*"}
	}
	b.writeString(strings.Join(cols, ", "))
	b.args = append(b.args, s.colArgs...)
	if s.from != nil {
		b.writeString(" FROM " + tableRef(s.from))
	}
	for _, j := range s.joins {
		b.writeString(" " + j.kind + " " + j.table)
		if j.onLeft != "" {
			b.writeString(" ON " + j.onLeft + " = " + j.onRight)
		}
	}
	if s.where != nil {
		qs, args := s.where.Query()
		b.writeString(" WHERE " + qs)
		b.args = append(b.args, args...)
	}
	if len(s.group) > 0 {
		b.writeString(" GROUP BY " + strings.Join(s.group, ", "))
	}
	if s.having != nil {
		qs, args := s.having.Query()
		b.writeString(" HAVING " + qs)
		b.args = append(b.args, args...)
	}
	if len(s.order) > 0 {
		b.writeString(" ORDER BY " + strings.Join(s.order, ", "))
	}
	if s.limit > 0 {
		b.writeString(" LIMIT " + strconv.Itoa(s.limit))
	}
	if s.offset > 0 {
		b.writeString(" OFFSET " + strconv.Itoa(s.offset))
	}
	if s.forUpd {
		b.writeString(" FOR UPDATE")
	}
	return b.finish(), b.args
}

// InsertBuilder builds an INSERT statement. The SQL generator emits one
// of these per `insert T {...}` IR node (spec.md §4.5).
type InsertBuilder struct {
	Builder
	table       string
	columns     []string
	values      [][]any
	returning   []string
	conflict    []string
	conflictSet map[string]any
}

func Insert(table string) *InsertBuilder { return &InsertBuilder{table: table} }

func (i *InsertBuilder) SetDialect(d string) *InsertBuilder {
	i.dialect = d
	return i
}

func (i *InsertBuilder) Columns(cols ...string) *InsertBuilder {
	i.columns = cols
	return i
}

func (i *InsertBuilder) Values(vs ...any) *InsertBuilder {
	i.values = append(i.values, vs)
	return i
}

func (i *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	i.returning = cols
	return i
}

// OnConflict models `unless conflict on .ptr else expr` (spec.md §4.5):
// on a unique violation of conflictCols, set is applied instead of
// failing the statement.
func (i *InsertBuilder) OnConflict(set map[string]any, conflictCols ...string) *InsertBuilder {
	i.conflict = conflictCols
	i.conflictSet = set
	return i
}

func (i *InsertBuilder) Query() (string, []any) {
	b := &Builder{dialect: i.dialect}
	b.writeString("INSERT INTO " + i.table + " (" + strings.Join(i.columns, ", ") + ") VALUES ")
	for vi, row := range i.values {
		if vi > 0 {
			b.writeString(", ")
		}
		b.writeByte('(')
		for ci, v := range row {
			if ci > 0 {
				b.writeString(", ")
			}
			b.writeString(b.arg(v))
		}
		b.writeByte(')')
	}
	if len(i.conflict) > 0 {
		b.writeString(" ON CONFLICT (" + strings.Join(i.conflict, ", ") + ") DO ")
		if len(i.conflictSet) == 0 {
			b.writeString("NOTHING")
		} else {
			b.writeString("UPDATE SET ")
			first := true
			for col, v := range i.conflictSet {
				if !first {
					b.writeString(", ")
				}
				first = false
				b.writeString(col + " = " + b.arg(v))
			}
		}
	}
	if len(i.returning) > 0 {
		b.writeString(" RETURNING " + strings.Join(i.returning, ", "))
	}
	return b.finish(), b.args
}

// UpdateBuilder builds an UPDATE statement for `update E filter F set
// {...}` (spec.md §4.5).
type UpdateBuilder struct {
	Builder
	table     string
	sets      []string
	setArgs   []any
	where     Querier
	returning []string
}

func Update(table string) *UpdateBuilder { return &UpdateBuilder{table: table} }

func (u *UpdateBuilder) SetDialect(d string) *UpdateBuilder {
	u.dialect = d
	return u
}

func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.sets = append(u.sets, column)
	u.setArgs = append(u.setArgs, v)
	return u
}

func (u *UpdateBuilder) Where(p Querier) *UpdateBuilder {
	if u.where == nil {
		u.where = p
		return u
	}
	u.where = And(u.where, p)
	return u
}

func (u *UpdateBuilder) Returning(cols ...string) *UpdateBuilder {
	u.returning = cols
	return u
}

func (u *UpdateBuilder) Query() (string, []any) {
	b := &Builder{dialect: u.dialect}
	b.writeString("UPDATE " + u.table + " SET ")
	for i, col := range u.sets {
		if i > 0 {
			b.writeString(", ")
		}
		b.writeString(col + " = " + b.arg(u.setArgs[i]))
	}
	if u.where != nil {
		qs, args := u.where.Query()
		b.writeString(" WHERE " + qs)
		b.args = append(b.args, args...)
	}
	if len(u.returning) > 0 {
		b.writeString(" RETURNING " + strings.Join(u.returning, ", "))
	}
	return b.finish(), b.args
}

// DeleteBuilder builds a DELETE statement for `delete E filter F ...`
// (spec.md §4.5).
type DeleteBuilder struct {
	Builder
	table string
	where Querier
}

func Delete(table string) *DeleteBuilder { return &DeleteBuilder{table: table} }

func (d *DeleteBuilder) SetDialect(dl string) *DeleteBuilder {
	d.dialect = dl
	return d
}

func (d *DeleteBuilder) Where(p Querier) *DeleteBuilder {
	if d.where == nil {
		d.where = p
		return d
	}
	d.where = And(d.where, p)
	return d
}

func (d *DeleteBuilder) Query() (string, []any) {
	b := &Builder{dialect: d.dialect}
	b.writeString("DELETE FROM " + d.table)
	if d.where != nil {
		qs, args := d.where.Query()
		b.writeString(" WHERE " + qs)
		b.args = append(b.args, args...)
	}
	return b.finish(), b.args
}

// Raw wraps a pre-built SQL fragment (used by sqlgen for SQL-template-
// lowered functions; spec.md §4.6 "template-lowered functions substitute
// their arguments into an SQL snippet").
func Raw(query string, args ...any) Querier {
	return rawQuerier{query: query, args: args}
}

type rawQuerier struct {
	query string
	args  []any
}

func (r rawQuerier) Query() (string, []any) { return r.query, r.args }
