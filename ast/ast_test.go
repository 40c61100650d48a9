package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/velox/ast"
)

func TestPrintPath(t *testing.T) {
	n := &ast.Path{
		Root: &ast.Ident{Name: "User"},
		Steps: []ast.PathStep{
			{Name: "friends"},
			{Name: "name"},
		},
	}
	assert.Equal(t, "User.friends.name", ast.Print(n))
}

func TestPrintBacklinkWithIntersection(t *testing.T) {
	n := &ast.Path{
		Root: &ast.Ident{Name: "User"},
		Steps: []ast.PathStep{
			{Name: "friends", Backlink: true, Intersect: &ast.Ident{Name: "Admin"}},
		},
	}
	assert.Equal(t, "User.<friends[is Admin]", ast.Print(n))
}

func TestPrintSelectShape(t *testing.T) {
	n := &ast.Select{
		Subject: &ast.Shape{
			Subject: &ast.Ident{Name: "User"},
			Elements: []*ast.ShapeElement{
				{Name: "name"},
				{Name: "friend_count", Computed: &ast.FunctionCall{
					Name: "count",
					Args: []ast.Expr{&ast.Path{Root: &ast.Ident{Name: "."}, Steps: []ast.PathStep{{Name: "friends"}}}},
				}},
			},
		},
		OrderBy: []ast.OrderItem{{Expr: &ast.Ident{Name: "name"}}},
	}
	got := ast.Print(n)
	assert.Contains(t, got, "select User { name, friend_count := count(")
	assert.Contains(t, got, "order by name")
}

func TestPrintBacktickIdentRoundTripsEscape(t *testing.T) {
	id := &ast.Ident{Name: "weird`name", Backtick: true}
	assert.Equal(t, "`weird``name`", ast.Print(id))
}
