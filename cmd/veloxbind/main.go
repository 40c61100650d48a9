// Command veloxbind generates typed field-name and predicate-binding
// constants for a compiled catalog.Snapshot.
//
// The teacher's compiler/gen statically generates one CRUD-builder
// package per schema because ent's queries are Go method chains over a
// fixed, compile-time schema (see compiler/gen/sql). This compiler's
// queries are Language source text compiled per-request against a
// catalog snapshot (spec.md §5), so there is no fixed per-entity Go API
// to generate. veloxbind narrows the teacher's generator scaffold to
// the part a host Go program still needs: typed constants for pointer
// names and parameter placeholders, so callers build `$parameter`
// bindings and embed query text without stringly-typed field names.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"
	"golang.org/x/tools/imports"

	"github.com/syssam/velox/ast"
	"github.com/syssam/velox/catalog"
	"github.com/syssam/velox/parser"
)

func main() {
	var (
		pkg = flag.String("package", "schema", "Go package name for the generated file")
		out = flag.String("out", "bind_gen.go", "output file path")
	)
	flag.Parse()

	snap, err := bootstrapFromArgs(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "veloxbind:", err)
		os.Exit(1)
	}

	f, err := Generate(*pkg, snap)
	if err != nil {
		fmt.Fprintln(os.Stderr, "veloxbind:", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil && filepath.Dir(*out) != "." {
		fmt.Fprintln(os.Stderr, "veloxbind:", err)
		os.Exit(1)
	}
	if err := saveFormatted(f, *out); err != nil {
		fmt.Fprintln(os.Stderr, "veloxbind:", err)
		os.Exit(1)
	}
}

// saveFormatted renders f and runs it through goimports before writing
// it out, the teacher's generator idiom (compiler/gen's Writer) for
// cleaning up and pruning the import block of a generated file.
func saveFormatted(f *jen.File, path string) error {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return err
	}
	formatted, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		return err
	}
	return os.WriteFile(path, formatted, 0o644)
}

// bootstrapFromArgs loads SDL facts from the given source files and
// builds a Snapshot, the same two-step the test harness uses
// (catalog.NewBuilder + Add + Build), except facts here come from
// parsed files on disk rather than constructed inline.
func bootstrapFromArgs(paths []string) (*catalog.Snapshot, error) {
	b := catalog.NewBuilder()
	for _, p := range paths {
		stmts, err := parseSDLFile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		for _, s := range stmts {
			if err := b.Add(s); err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
		}
	}
	return b.Build()
}

// parseSDLFile reads one schema file and parses it as a `;`-separated
// script of SDL/DDL statements.
var parseSDLFile = func(path string) ([]ast.Statement, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parser.ParseScript(string(src))
}

// Generate emits one Go file declaring, per ObjectType in snap, a
// struct of string constants named after each of the type's own and
// inherited Pointers (the field-name half) and a predicate-builder
// function per pointer (the `$parameter`-safe-binding half), in the
// teacher's generated package.go/predicate.go naming convention
// (compiler/gen/sql's Columns/FieldID style, narrowed to names instead
// of full query builders — see SPEC_FULL.md §5).
func Generate(pkgName string, snap *catalog.Snapshot) (*jen.File, error) {
	f := jen.NewFile(pkgName)
	f.HeaderComment("Code generated by veloxbind. DO NOT EDIT.")

	for _, ot := range snap.ObjectTypes() {
		if ot.Abstract {
			continue
		}
		genFieldsConst(f, ot)
		genPredicateHelpers(f, snap, ot)
	}
	return f, nil
}

// genFieldsConst emits a `<Type>Fields` struct literal of string
// constants, one per pointer name reachable on ot (own + inherited via
// MRO), so host code writing shape elements refers to
// schema.UserFields.Name instead of the literal "name".
func genFieldsConst(f *jen.File, ot *catalog.ObjectType) {
	names := sortedPointerNames(ot)

	f.Commentf("%sFields holds the typed pointer names declared on %s.", ot.Name, ot.Name)
	f.Var().Id(ot.Name + "Fields").Op("=").Struct(
		fieldDecls(names)...,
	).Values(fieldValues(names)...)
}

func fieldDecls(names []string) []jen.Code {
	decls := make([]jen.Code, len(names))
	for i, n := range names {
		decls[i] = jen.Id(exportedFieldName(n)).String()
	}
	return decls
}

func fieldValues(names []string) jen.Dict {
	d := jen.Dict{}
	for _, n := range names {
		d[jen.Id(exportedFieldName(n))] = jen.Lit(n)
	}
	return d
}

// genPredicateHelpers emits one `<Type>By<Ptr>` function per scalar
// property on ot; each returns the `.ptr = <param>` fragment as a
// single string, mirroring the teacher's generated predicate
// functions (compiler/gen/sql/predicate.go) but returning a fragment
// for embedding into Language source text rather than a SQL predicate
// object, since this compiler's predicates are compiled from source,
// not built as Go values.
func genPredicateHelpers(f *jen.File, snap *catalog.Snapshot, ot *catalog.ObjectType) {
	for _, name := range sortedPointerNames(ot) {
		ptrID := ot.Pointers[name]
		ent := snap.Lookup(ptrID)
		ptr, ok := ent.(*catalog.Pointer)
		if !ok || ptr.Kind != catalog.PointerProperty {
			continue
		}
		fnName := ot.Name + "By" + exportedFieldName(name)
		f.Commentf("%s returns a `.%s = <param>` filter fragment bound to param.", fnName, name)
		f.Func().Id(fnName).Params(jen.Id("param").String()).String().Block(
			jen.Return(jen.Lit(".").Op("+").Lit(name).Op("+").Lit(" = <").Op("+").Id("param").Op("+").Lit(">")),
		)
	}
}

func sortedPointerNames(ot *catalog.ObjectType) []string {
	names := make([]string, 0, len(ot.Pointers))
	for name := range ot.Pointers {
		names = append(names, name)
	}
	// Deterministic output matters for generated-file diffing; the
	// teacher's generator sorts fields the same way (compiler/gen's
	// Type.Fields is built in declaration order then sorted for
	// generated struct tags).
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}

func exportedFieldName(name string) string {
	if name == "" {
		return name
	}
	r := []rune(name)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - 'a' + 'A'
	}
	return string(r)
}
