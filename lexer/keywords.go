package lexer

// Reserved keywords cannot be used as a plain identifier; unreserved
// keywords can. Matching is case-insensitive (spec.md §4.1).
var reserved = map[string]bool{
	"select": true, "insert": true, "update": true, "delete": true,
	"for": true, "union": true, "group": true, "with": true,
	"filter": true, "order": true, "by": true, "offset": true, "limit": true,
	"set": true, "unless": true, "conflict": true, "on": true, "else": true,
	"and": true, "or": true, "not": true, "in": true, "is": true,
	"like": true, "ilike": true, "distinct": true, "detached": true,
	"true": true, "false": true, "if": true, "then": true,
	"type": true, "required": true, "optional": true, "multi": true, "single": true,
	"property": true, "link": true, "index": true, "constraint": true,
	"abstract": true, "extending": true, "module": true,
	"configure": true, "analyze": true, "start": true, "commit": true, "rollback": true,
	"transaction": true, "savepoint": true, "declare": true, "release": true, "to": true,
	"create": true,
}

var unreserved = map[string]bool{
	"asc": true, "desc": true, "empty": true, "first": true, "last": true,
	"as": true, "using": true, "global": true, "alias": true, "function": true,
	"cast": true, "from": true, "scalar": true, "enum": true, "sequence": true,
	"default": true, "readonly": true, "deferred": true, "annotation": true,
	"policy": true, "allow": true, "deny": true, "rewrite": true,
	"session": true, "database": true, "instance": true,
	"except": true, "target": true, "source": true, "restrict": true, "of": true,
	"variadic": true, "named": true, "only": true, "implicit": true, "assignment": true,
	"volatility": true, "computed": true, "delegated": true, "errmessage": true,
}

// IsKeyword reports whether the lower-cased text is a reserved or
// unreserved keyword.
func IsKeyword(lower string) bool {
	return reserved[lower] || unreserved[lower]
}

// IsReserved reports whether the lower-cased text is a reserved keyword
// (may never be used as a plain identifier).
func IsReserved(lower string) bool {
	return reserved[lower]
}
