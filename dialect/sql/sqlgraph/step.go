// Package sqlgraph renders catalog pointer traversals into SQL joins.
// A single-cardinality link is an ordinary join against the owner's
// foreign key (or the target's, for an inverse link). A multi-link
// pointer is read back through a LATERAL join (spec.md §4.6:
// "Multi-cardinality pointers are read via LATERAL joins that
// aggregate the link's rows per source, rather than one row per
// link"), so the generator never emits a Cartesian fan-out for a
// `.friends` style path step.
package sqlgraph

import (
	"strconv"

	"github.com/syssam/velox/dialect/sql"
)

// Rel names how a Step's join condition is wired: on the owning side's
// row (an owned foreign key) or on the target side's row (an inverse
// foreign key), or through a link table for many-to-many pointers.
type Rel int

const (
	// M2O is a step across a pointer whose foreign key lives on the
	// source table (the common case for a required single link).
	M2O Rel = iota
	// O2M is a step across the inverse of an M2O pointer: the foreign
	// key lives on the target table.
	O2M
	// M2M is a step across a pointer backed by a separate link table,
	// used for multi types on both sides.
	M2M
)

// Step describes one pointer hop from a source table to a target
// table, the unit the IR builder's PathStep/Backlink nodes compile
// down to once the sqlgen phase walks the IR (spec.md §4.6).
type Step struct {
	Rel Rel

	// From is the source table/alias the step starts at.
	From *sql.Table
	// To is the target table/alias the step arrives at.
	To *sql.Table

	// FromColumn/ToColumn name the columns the join condition equates
	// for M2O/O2M steps. For M2M steps they instead name the owning
	// side's and target side's id columns, joined through Link.
	FromColumn, ToColumn string

	// Link is the join-table reference for M2M steps (nil otherwise).
	Link *sql.Table
	// LinkFromColumn/LinkToColumn name Link's two foreign-key columns.
	LinkFromColumn, LinkToColumn string
}

// joinOn adds the ON condition left.leftCol = right.rightCol to sel's
// latest join; the join itself ("JOIN" or "LEFT JOIN" via
// sel.Join/sel.LeftJoin) is added by the caller beforehand.
func (st *Step) joinOn(sel *sql.Selector, left, right *sql.Table, leftCol, rightCol string) {
	sel.On(left.C(leftCol), right.C(rightCol))
}

// Walk appends the joins needed to traverse st onto sel and returns
// the selector positioned at st.To, so callers can chain further
// steps or attach a WHERE/shape projection.
func (st *Step) Walk(sel *sql.Selector) *sql.Selector {
	switch st.Rel {
	case M2O:
		sel.Join(st.To)
		st.joinOn(sel, st.From, st.To, st.FromColumn, st.ToColumn)
	case O2M:
		sel.Join(st.To)
		st.joinOn(sel, st.From, st.To, st.FromColumn, st.ToColumn)
	case M2M:
		sel.Join(st.Link)
		st.joinOn(sel, st.From, st.Link, st.FromColumn, st.LinkFromColumn)
		sel.Join(st.To)
		st.joinOn(sel, st.Link, st.To, st.LinkToColumn, st.ToColumn)
	}
	return sel
}

// LateralAgg builds the correlated subquery a multi-cardinality
// PathStep compiles to when it appears inside a Shape element: one row
// per source, with project applied to the inner selector before it is
// wrapped, so the caller controls what's aggregated (a JSON array via
// a json_agg-style func, a count, …).
//
// The returned Selector is meant to be used as a column expression
// (`(subquery) AS alias`), not as a top-level statement; sqlgen joins
// it with "LATERAL" textually since the builder has no first-class
// LATERAL keyword of its own.
func (st *Step) LateralAgg(outerAlias string, project func(*sql.Selector)) *sql.Selector {
	inner := sql.Select().From(st.To)
	switch st.Rel {
	case O2M:
		inner.Where(sql.ColumnsEQ(st.To.C(st.ToColumn), outerAlias+"."+st.FromColumn))
	case M2M:
		inner.Join(st.Link)
		inner.Where(sql.ColumnsEQ(st.Link.C(st.LinkToColumn), st.To.C(st.ToColumn)))
		inner.Where(sql.ColumnsEQ(st.Link.C(st.LinkFromColumn), outerAlias+"."+st.FromColumn))
	}
	if project != nil {
		project(inner)
	}
	return inner
}

// AliasCounter hands out deterministic join-table aliases ("t1", "t2",
// …) within one statement, mirroring the teacher's generated alias
// sequence for repeated self-joins.
type AliasCounter struct{ n int }

func (a *AliasCounter) Next() string {
	a.n++
	return "t" + strconv.Itoa(a.n)
}
