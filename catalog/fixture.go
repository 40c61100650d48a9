package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/velox/ast"
)

// Fixture is a compact on-disk schema format for tests: a YAML
// document naming object types and their pointers, translated into the
// same ast.Statement facts a DDL/SDL parse would produce and fed to a
// Builder. Grounded in the teacher's config-file-driven schema loading
// idiom (gopkg.in/yaml.v3 unmarshaling a declarative struct) rather
// than hand-authoring AST nodes in every test, the way
// catalog/testdata/*.yaml fixtures do for catalog_test.go-style table
// tests.
type Fixture struct {
	Scalars []FixtureScalar `yaml:"scalars"`
	Types   []FixtureType   `yaml:"types"`
}

// FixtureScalar declares a user-derived scalar or enum.
type FixtureScalar struct {
	Name      string   `yaml:"name"`
	Extending string   `yaml:"extending"`
	EnumOf    []string `yaml:"enum_of"`
}

// FixtureType declares one ObjectType and its own pointers.
type FixtureType struct {
	Name      string            `yaml:"name"`
	Abstract  bool              `yaml:"abstract"`
	Extending []string          `yaml:"extending"`
	Properties []FixtureProperty `yaml:"properties"`
	Links      []FixtureLink     `yaml:"links"`
}

// FixtureProperty declares one scalar-valued pointer.
type FixtureProperty struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Cardinality string `yaml:"cardinality"` // "One" | "Many", defaults to "One"
	Readonly    bool   `yaml:"readonly"`
}

// FixtureLink declares one object-valued pointer.
type FixtureLink struct {
	Name           string `yaml:"name"`
	Target         string `yaml:"target"`
	Required       bool   `yaml:"required"`
	Cardinality    string `yaml:"cardinality"`
	OnTargetDelete string `yaml:"on_target_delete"`
	OnSourceDelete string `yaml:"on_source_delete"`
}

// LoadFixture reads and parses a YAML fixture file from path.
func LoadFixture(path string) (*Fixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("velox/catalog: read fixture %s: %w", path, err)
	}
	return ParseFixture(b)
}

// ParseFixture parses a YAML fixture document from raw bytes.
func ParseFixture(b []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(b, &fx); err != nil {
		return nil, fmt.Errorf("velox/catalog: parse fixture: %w", err)
	}
	return &fx, nil
}

// Build translates the fixture into ast.Statement facts, queues them
// on a fresh Builder, and returns the resulting Snapshot — the
// equivalent of parsing an SDL schema file, skipped here because the
// fixture already names entities structurally.
func (fx *Fixture) Build() (*Snapshot, error) {
	b := NewBuilder()
	for _, s := range fx.Scalars {
		stmt := &ast.DDLCreateScalar{Name: &ast.Ident{Name: s.Name}, EnumOf: s.EnumOf}
		if s.Extending != "" {
			stmt.Extending = []*ast.Ident{{Name: s.Extending}}
		}
		if err := b.Add(stmt); err != nil {
			return nil, err
		}
	}
	for _, t := range fx.Types {
		stmt := &ast.SDLObjectType{
			Name:     &ast.Ident{Name: t.Name},
			Abstract: t.Abstract,
		}
		for _, base := range t.Extending {
			stmt.Extending = append(stmt.Extending, &ast.Ident{Name: base})
		}
		for _, p := range t.Properties {
			card := p.Cardinality
			if card == "" {
				card = "One"
			}
			stmt.Members = append(stmt.Members, &ast.SDLProperty{
				Name:        &ast.Ident{Name: p.Name},
				Type:        &ast.Ident{Name: p.Type},
				Required:    p.Required,
				Cardinality: card,
				Readonly:    p.Readonly,
			})
		}
		for _, l := range t.Links {
			card := l.Cardinality
			if card == "" {
				card = "One"
			}
			stmt.Members = append(stmt.Members, &ast.SDLLink{
				Name:           &ast.Ident{Name: l.Name},
				Target:         &ast.Ident{Name: l.Target},
				Required:       l.Required,
				Cardinality:    card,
				OnTargetDelete: l.OnTargetDelete,
				OnSourceDelete: l.OnSourceDelete,
			})
		}
		if err := b.Add(stmt); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// BuildSnapshotFromFixture is a convenience wrapper for tests:
// LoadFixture(path).Build() in one call.
func BuildSnapshotFromFixture(path string) (*Snapshot, error) {
	fx, err := LoadFixture(path)
	if err != nil {
		return nil, err
	}
	return fx.Build()
}
