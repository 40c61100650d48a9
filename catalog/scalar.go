package catalog

// ScalarType is a base scalar, an `enum<...>`, a user-derived scalar, or a
// sequence (spec.md §3.2). The builtin scalar table and the implicit-cast
// table below are adapted from the teacher's `schema/field` type-info
// table (field.TypeInfo / field.Type), which enumerates the same closed
// set of storage-level scalar kinds and their widening relationships.
type ScalarType struct {
	Header
	Extends  EntityId // 0 for a builtin base scalar
	EnumOf   []string // non-empty for `enum<...>`
	Sequence bool
}

func (s *ScalarType) EntityKind() Kind { return KindScalarType }
func (s *ScalarType) Head() Header     { return s.Header }

// builtinScalars is the fixed set spec.md §3.2 names: base scalars plus
// calendar variants. Every Snapshot is bootstrapped with these before any
// user DDL is applied.
var builtinScalars = []string{
	"str", "bool", "bytes", "json",
	"int16", "int32", "int64",
	"float32", "float64",
	"bigint", "decimal",
	"uuid",
	"datetime", "duration",
	"local_datetime", "local_date", "local_time",
	"relative_duration", "date_duration",
}

// implicitCast records one (from, to) pair of the builtin scalar cast
// table, following the teacher's numeric-widening comments in
// `schema/field/numeric_test.go`.
type implicitCast struct {
	from, to        string
	allowImplicit   bool
	allowAssignment bool
}

// builtinCasts is the seed cast table for scalar-to-scalar conversions.
// Numeric widenings are `allow_implicit` (an integer-to-float widening
// can round large values); everything else requires an explicit `<T>` cast or is, at most,
// `allow_assignment` (spec.md §4.5, I6).
var builtinCasts = []implicitCast{
	{"int16", "int32", true, true},
	{"int16", "int64", true, true},
	{"int16", "float32", true, true},
	{"int16", "float64", true, true},
	{"int16", "bigint", true, true},
	{"int16", "decimal", true, true},
	{"int32", "int64", true, true},
	{"int32", "float64", true, true},
	{"int32", "bigint", true, true},
	{"int32", "decimal", true, true},
	{"int64", "float64", true, true},
	{"int64", "bigint", true, true},
	{"int64", "decimal", true, true},
	{"float32", "float64", true, true},
	{"bigint", "decimal", true, true},
	// Temporal: spec.md §9 Open Question — this snapshot picks
	// allow_assignment only (never implicit) between a local (zone-less)
	// datetime and an absolute one, since an implicit widening would
	// silently assume a session time zone.
	{"local_datetime", "datetime", false, true},
	{"datetime", "local_datetime", false, true},
	{"local_date", "local_datetime", true, true},
}
