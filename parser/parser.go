// Package parser builds the AST (spec.md §4.2) from a token stream
// produced by the lexer. It is a recursive-descent parser for statement
// forms and a precedence-climbing parser for expressions, following the
// operator table in spec.md §4.2.
package parser

import (
	"github.com/syssam/velox/ast"
	"github.com/syssam/velox/lexer"
)

// Parser holds the token buffer and cursor for one compilation unit. Not
// safe for concurrent use — callers construct one Parser per compilation
// (spec.md §5).
type Parser struct {
	toks []lexer.Token
	pos  int
}

// Parse parses a single statement from src.
func Parse(src string) (ast.Statement, error) {
	toks, err := lexer.All(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.skip(lexer.SEMICOLON)
	if !p.atEnd() {
		return nil, newError(p.cur().Span, "unexpected trailing input %q", p.cur().Lit)
	}
	return stmt, nil
}

// ParseScript parses a `;`-separated sequence of statements. Semicolons
// are idempotent: empty statements between/around `;` are skipped
// (spec.md §4.1).
func ParseScript(src string) ([]ast.Statement, error) {
	toks, err := lexer.All(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks}
	var out []ast.Statement
	for {
		for p.at(lexer.SEMICOLON) {
			p.advance()
		}
		if p.atEnd() {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
		for p.at(lexer.SEMICOLON) {
			p.advance()
		}
	}
	return out, nil
}

// ---- token cursor helpers ----------------------------------------------

func (p *Parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *Parser) cur() lexer.Token {
	if p.atEnd() {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekN(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos+n]
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) at(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) atKeyword(kw string) bool {
	t := p.cur()
	return t.Kind == lexer.KEYWORD && t.Lit == kw
}

func (p *Parser) skip(k lexer.Kind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) skipKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k lexer.Kind) (lexer.Token, error) {
	if !p.at(k) {
		return lexer.Token{}, newError(p.cur().Span, "expected %s, got %q", k, p.cur().Lit)
	}
	return p.advance(), nil
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return newError(p.cur().Span, "expected keyword %q, got %q", kw, p.cur().Lit)
	}
	p.advance()
	return nil
}

// ---- statements ---------------------------------------------------------

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.atKeyword("select"):
		return p.parseSelect()
	case p.atKeyword("insert"):
		return p.parseInsert()
	case p.atKeyword("update"):
		return p.parseUpdate()
	case p.atKeyword("delete"):
		return p.parseDelete()
	case p.atKeyword("for"):
		return p.parseFor()
	case p.atKeyword("group"):
		return p.parseGroup()
	case p.atKeyword("with"):
		return p.parseWith()
	case p.atKeyword("configure"):
		return p.parseConfigure()
	case p.atKeyword("analyze"):
		return p.parseAnalyze()
	case p.atKeyword("start"), p.atKeyword("commit"), p.atKeyword("rollback") && p.peekN(1).Lit != "to":
		return p.parseTransaction()
	case p.atKeyword("declare"), p.atKeyword("release"):
		return p.parseSavepoint()
	case p.atKeyword("rollback"):
		return p.parseSavepoint()
	case p.atKeyword("create"):
		return p.parseDDL()
	case p.atKeyword("abstract"), p.atKeyword("type"):
		return p.parseSDLObjectType()
	default:
		return nil, newError(p.cur().Span, "unexpected token %q at statement start", p.cur().Lit)
	}
}

// ---- DDL / SDL -----------------------------------------------------------

// parseDDL handles every `create ...` form spec.md §4.2 names: scalar
// types, functions, casts, and `create type` as an alternate spelling of
// a bare SDL type declaration.
func (p *Parser) parseDDL() (ast.Statement, error) {
	p.advance() // create
	switch {
	case p.atKeyword("scalar"):
		return p.parseDDLCreateScalar()
	case p.atKeyword("function"):
		return p.parseDDLCreateFunction()
	case p.atKeyword("cast"):
		return p.parseDDLCreateCast()
	case p.atKeyword("type"), p.atKeyword("abstract"):
		return p.parseSDLObjectType()
	}
	return nil, newError(p.cur().Span, "unexpected token %q after 'create'", p.cur().Lit)
}

// parseDDLCreateScalar handles `create scalar type Name [extending Base]`
// and `create scalar type Name extending enum<'a', 'b', ...>`.
func (p *Parser) parseDDLCreateScalar() (*ast.DDLCreateScalar, error) {
	start := p.cur().Span
	p.advance() // scalar
	if err := p.expectKeyword("type"); err != nil {
		return nil, err
	}
	name, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	stmt := &ast.DDLCreateScalar{StmtMeta: ast.StmtMeta{Meta: ast.Meta{Span: start}}, Name: name}
	if p.skipKeyword("extending") {
		if p.skipKeyword("enum") {
			if _, err := p.expect(lexer.LT); err != nil {
				return nil, err
			}
			for {
				tok, err := p.expect(lexer.STRING)
				if err != nil {
					return nil, err
				}
				stmt.EnumOf = append(stmt.EnumOf, tok.Lit)
				if !p.skip(lexer.COMMA) {
					break
				}
			}
			if _, err := p.expect(lexer.GT); err != nil {
				return nil, err
			}
		} else {
			base, err := p.parseIdentOnly()
			if err != nil {
				return nil, err
			}
			stmt.Extending = append(stmt.Extending, base)
		}
	}
	return stmt, nil
}

// parseDDLCreateFunction handles `create function Name(params) -> RetMod
// RetType { using ...; volatility := '...'; }`.
func (p *Parser) parseDDLCreateFunction() (*ast.DDLCreateFunction, error) {
	start := p.cur().Span
	p.advance() // function
	name, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	var params []*ast.FuncParam
	for !p.at(lexer.RPAREN) {
		param, err := p.parseFuncParam()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.ARROW); err != nil {
		return nil, err
	}
	retMod := "SingletonType"
	if p.skipKeyword("optional") {
		retMod = "OptionalType"
	} else if p.atKeyword("set") && p.peekN(1).Lit == "of" {
		p.advance()
		p.advance()
		retMod = "SetOfType"
	}
	retType, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	fn := &ast.DDLCreateFunction{
		StmtMeta: ast.StmtMeta{Meta: ast.Meta{Span: start}},
		Name:     name, Params: params, ReturnType: retType, ReturnMod: retMod,
		Volatility: "Immutable",
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	for !p.at(lexer.RBRACE) {
		switch {
		case p.skipKeyword("using"):
			tok, err := p.expect(lexer.STRING)
			if err != nil {
				return nil, err
			}
			fn.Using = tok.Lit
		case p.skipKeyword("volatility"):
			if err := p.expectAssign(); err != nil {
				return nil, err
			}
			tok, err := p.expect(lexer.STRING)
			if err != nil {
				return nil, err
			}
			fn.Volatility = tok.Lit
		default:
			return nil, newError(p.cur().Span, "unexpected token %q in function body", p.cur().Lit)
		}
		p.skip(lexer.SEMICOLON)
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return fn, nil
}

// parseFuncParam parses one `[variadic|named only]? name: [optional|set
// of]? Type` signature element.
func (p *Parser) parseFuncParam() (*ast.FuncParam, error) {
	start := p.cur().Span
	kind := "Positional"
	switch {
	case p.skipKeyword("variadic"):
		kind = "Variadic"
	case p.skipKeyword("named"):
		if err := p.expectKeyword("only"); err != nil {
			return nil, err
		}
		kind = "NamedOnly"
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.COLON); err != nil {
		return nil, err
	}
	modifier := "Required"
	if p.skipKeyword("optional") {
		modifier = "Optional"
	} else if p.atKeyword("set") && p.peekN(1).Lit == "of" {
		p.advance()
		p.advance()
		modifier = "SetOf"
	}
	typ, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	return &ast.FuncParam{Name: name.Lit, Type: typ, Kind: kind, Modifier: modifier, Span: start}, nil
}

// parseDDLCreateCast handles `create cast from A to B { using ...; allow
// implicit|assignment; volatility := '...'; }`.
func (p *Parser) parseDDLCreateCast() (*ast.DDLCreateCast, error) {
	start := p.cur().Span
	p.advance() // cast
	if err := p.expectKeyword("from"); err != nil {
		return nil, err
	}
	from, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("to"); err != nil {
		return nil, err
	}
	to, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	cst := &ast.DDLCreateCast{
		StmtMeta:   ast.StmtMeta{Meta: ast.Meta{Span: start}},
		From:       from, To: to, Volatility: "Immutable",
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	for !p.at(lexer.RBRACE) {
		switch {
		case p.skipKeyword("using"):
			tok, err := p.expect(lexer.STRING)
			if err != nil {
				return nil, err
			}
			cst.Using = tok.Lit
		case p.skipKeyword("allow"):
			switch {
			case p.skipKeyword("implicit"):
				cst.AllowImplicit = true
			case p.skipKeyword("assignment"):
				cst.AllowAssignment = true
			default:
				return nil, newError(p.cur().Span, "expected 'implicit' or 'assignment' after 'allow', got %q", p.cur().Lit)
			}
		case p.skipKeyword("volatility"):
			if err := p.expectAssign(); err != nil {
				return nil, err
			}
			tok, err := p.expect(lexer.STRING)
			if err != nil {
				return nil, err
			}
			cst.Volatility = tok.Lit
		default:
			return nil, newError(p.cur().Span, "unexpected token %q in cast body", p.cur().Lit)
		}
		p.skip(lexer.SEMICOLON)
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return cst, nil
}

// parseSDLObjectType handles `[abstract] type Name [extending Bases...]
// { members... }`, both as a bare top-level SDL statement and as the
// target of `create type ...`.
func (p *Parser) parseSDLObjectType() (*ast.SDLObjectType, error) {
	start := p.cur().Span
	abstract := p.skipKeyword("abstract")
	if err := p.expectKeyword("type"); err != nil {
		return nil, err
	}
	name, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	ot := &ast.SDLObjectType{StmtMeta: ast.StmtMeta{Meta: ast.Meta{Span: start}}, Name: name, Abstract: abstract}
	if p.skipKeyword("extending") {
		for {
			base, err := p.parseIdentOnly()
			if err != nil {
				return nil, err
			}
			ot.Extending = append(ot.Extending, base)
			if !p.skip(lexer.COMMA) {
				break
			}
		}
	}
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	for !p.at(lexer.RBRACE) {
		member, err := p.parseSDLMember()
		if err != nil {
			return nil, err
		}
		ot.Members = append(ot.Members, member)
		p.skip(lexer.SEMICOLON)
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return ot, nil
}

// parseSDLMember dispatches one property/link/index/constraint
// declaration nested inside a type body (spec.md §4.2).
func (p *Parser) parseSDLMember() (ast.SDLMember, error) {
	required := p.skipKeyword("required")
	if !required {
		p.skipKeyword("optional")
	}
	cardinality := "One"
	if p.skipKeyword("multi") {
		cardinality = "Many"
	} else {
		p.skipKeyword("single")
	}
	delegated := p.skipKeyword("delegated")
	switch {
	case p.atKeyword("property"):
		return p.parseSDLProperty(required, cardinality)
	case p.atKeyword("link"):
		return p.parseSDLLink(required, cardinality)
	case p.atKeyword("index"):
		return p.parseSDLIndex()
	case p.atKeyword("constraint"):
		return p.parseSDLConstraint(delegated)
	}
	return nil, newError(p.cur().Span, "unexpected token %q in type body", p.cur().Lit)
}

// pointerBody holds the body items shared by property and link
// declarations (spec.md §3.2's Pointer fields), parsed once and
// distributed into the concrete SDLProperty/SDLLink by the caller.
type pointerBody struct {
	Readonly                      bool
	Default, Computed              ast.Expr
	Constraints                    []*ast.SDLConstraint
	Annotations                    map[string]ast.Expr
	OnTargetDelete, OnSourceDelete string
	Properties                     []*ast.SDLProperty
}

func (p *Parser) parsePointerBody() (*pointerBody, error) {
	pb := &pointerBody{}
	if !p.at(lexer.LBRACE) {
		return pb, nil
	}
	p.advance()
	for !p.at(lexer.RBRACE) {
		switch {
		case p.skipKeyword("default"):
			if err := p.expectAssign(); err != nil {
				return nil, err
			}
			e, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			pb.Default = e
		case p.skipKeyword("computed"):
			if err := p.expectAssign(); err != nil {
				return nil, err
			}
			e, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			pb.Computed = e
		case p.skipKeyword("readonly"):
			if err := p.expectAssign(); err != nil {
				return nil, err
			}
			switch {
			case p.skipKeyword("true"):
				pb.Readonly = true
			case p.skipKeyword("false"):
				pb.Readonly = false
			default:
				return nil, newError(p.cur().Span, "expected true/false after 'readonly :=', got %q", p.cur().Lit)
			}
		case p.atKeyword("on") && p.peekN(1).Lit == "target":
			p.advance()
			p.advance()
			if err := p.expectKeyword("delete"); err != nil {
				return nil, err
			}
			action, err := p.parseDeleteAction()
			if err != nil {
				return nil, err
			}
			pb.OnTargetDelete = action
		case p.atKeyword("on") && p.peekN(1).Lit == "source":
			p.advance()
			p.advance()
			if err := p.expectKeyword("delete"); err != nil {
				return nil, err
			}
			action, err := p.parseDeleteAction()
			if err != nil {
				return nil, err
			}
			pb.OnSourceDelete = action
		case p.atKeyword("constraint"):
			c, err := p.parseSDLConstraint(false)
			if err != nil {
				return nil, err
			}
			pb.Constraints = append(pb.Constraints, c)
		case p.atKeyword("delegated") && p.peekN(1).Lit == "constraint":
			p.advance()
			c, err := p.parseSDLConstraint(true)
			if err != nil {
				return nil, err
			}
			pb.Constraints = append(pb.Constraints, c)
		case p.atKeyword("property"):
			lp, err := p.parseSDLProperty(false, "One")
			if err != nil {
				return nil, err
			}
			pb.Properties = append(pb.Properties, lp)
		case p.skipKeyword("annotation"):
			name, err := p.parseIdentOnly()
			if err != nil {
				return nil, err
			}
			if err := p.expectAssign(); err != nil {
				return nil, err
			}
			e, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if pb.Annotations == nil {
				pb.Annotations = map[string]ast.Expr{}
			}
			pb.Annotations[name.Name] = e
		default:
			return nil, newError(p.cur().Span, "unexpected token %q in pointer body", p.cur().Lit)
		}
		p.skip(lexer.SEMICOLON)
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return pb, nil
}

// parseDeleteAction parses the action after `on target|source delete`
// (spec.md §3.2's Pointer on-delete policy enum).
func (p *Parser) parseDeleteAction() (string, error) {
	switch {
	case p.skipKeyword("restrict"):
		return "restrict", nil
	case p.skipKeyword("allow"):
		return "allow", nil
	case p.skipKeyword("deferred"):
		if err := p.expectKeyword("restrict"); err != nil {
			return "", err
		}
		return "deferred_restrict", nil
	case p.skipKeyword("delete"):
		if err := p.expectKeyword("source"); err != nil {
			return "", err
		}
		return "delete_source", nil
	}
	return "", newError(p.cur().Span, "expected a delete action, got %q", p.cur().Lit)
}

func (p *Parser) parseSDLProperty(required bool, cardinality string) (*ast.SDLProperty, error) {
	p.advance() // property
	name, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.ARROW); err != nil {
		return nil, err
	}
	typ, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	pb, err := p.parsePointerBody()
	if err != nil {
		return nil, err
	}
	return &ast.SDLProperty{
		Name: name, Type: typ, Required: required, Cardinality: cardinality,
		Readonly: pb.Readonly, Default: pb.Default, Computed: pb.Computed,
		Constraints: pb.Constraints, Annotations: pb.Annotations,
	}, nil
}

func (p *Parser) parseSDLLink(required bool, cardinality string) (*ast.SDLLink, error) {
	p.advance() // link
	name, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.ARROW); err != nil {
		return nil, err
	}
	target, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	pb, err := p.parsePointerBody()
	if err != nil {
		return nil, err
	}
	return &ast.SDLLink{
		Name: name, Target: target, Required: required, Cardinality: cardinality,
		Readonly: pb.Readonly, OnTargetDelete: pb.OnTargetDelete, OnSourceDelete: pb.OnSourceDelete,
		Properties: pb.Properties, Default: pb.Default, Computed: pb.Computed, Annotations: pb.Annotations,
	}, nil
}

func (p *Parser) parseSDLIndex() (*ast.SDLIndex, error) {
	p.advance() // index
	if err := p.expectKeyword("on"); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	idx := &ast.SDLIndex{}
	for !p.at(lexer.RPAREN) {
		e, err := p.parseExpr(1)
		if err != nil {
			return nil, err
		}
		idx.Exprs = append(idx.Exprs, e)
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	if p.skipKeyword("except") {
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		e, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		idx.Except = e
	}
	return idx, nil
}

// parseSDLConstraint parses `constraint name(args...) [on (Expr)] [{
// errmessage := '...'; }]`; delegated is true when the caller already
// consumed a leading `delegated` keyword.
func (p *Parser) parseSDLConstraint(delegated bool) (*ast.SDLConstraint, error) {
	p.advance() // constraint
	nameTok, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	c := &ast.SDLConstraint{Name: nameTok.Lit, Delegated: delegated}
	if p.at(lexer.LPAREN) {
		p.advance()
		for !p.at(lexer.RPAREN) {
			e, err := p.parseExpr(1)
			if err != nil {
				return nil, err
			}
			c.Args = append(c.Args, e)
			if !p.skip(lexer.COMMA) {
				break
			}
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
	}
	if p.skipKeyword("on") {
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		subj, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		c.Subject = subj
	}
	if p.at(lexer.LBRACE) {
		p.advance()
		for !p.at(lexer.RBRACE) {
			switch {
			case p.skipKeyword("errmessage"):
				if err := p.expectAssign(); err != nil {
					return nil, err
				}
				tok, err := p.expect(lexer.STRING)
				if err != nil {
					return nil, err
				}
				c.ErrMessage = tok.Lit
			default:
				return nil, newError(p.cur().Span, "unexpected token %q in constraint body", p.cur().Lit)
			}
			p.skip(lexer.SEMICOLON)
		}
		if _, err := p.expect(lexer.RBRACE); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (p *Parser) parseSelect() (*ast.Select, error) {
	start := p.cur().Span
	p.advance() // select
	subj, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	filter, order, offset, limit, err := p.parseTail()
	if err != nil {
		return nil, err
	}
	return &ast.Select{
		StmtMeta: ast.StmtMeta{Meta: ast.Meta{Span: start}},
		Subject:  subj, Filter: filter, OrderBy: order, Offset: offset, Limit: limit,
	}, nil
}

func (p *Parser) parseTail() (filter ast.Expr, order []ast.OrderItem, offset, limit ast.Expr, err error) {
	if p.skipKeyword("filter") {
		filter, err = p.parseExpr(0)
		if err != nil {
			return
		}
	}
	if p.skipKeyword("order") {
		if err = p.expectKeyword("by"); err != nil {
			return
		}
		order, err = p.parseOrderByList()
		if err != nil {
			return
		}
	}
	if p.skipKeyword("offset") {
		offset, err = p.parseExpr(8)
		if err != nil {
			return
		}
	}
	if p.skipKeyword("limit") {
		limit, err = p.parseExpr(8)
		if err != nil {
			return
		}
	}
	return
}

func (p *Parser) parseOrderByList() ([]ast.OrderItem, error) {
	var items []ast.OrderItem
	for {
		e, err := p.parseExpr(6)
		if err != nil {
			return nil, err
		}
		it := ast.OrderItem{Expr: e}
		if p.skipKeyword("desc") {
			it.Desc = true
		} else {
			p.skipKeyword("asc")
		}
		if p.atKeyword("empty") {
			p.advance()
			if p.skipKeyword("first") {
				it.EmptyFirst = true
			} else if p.skipKeyword("last") {
				it.EmptyLast = true
			}
		}
		items = append(items, it)
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	return items, nil
}

func (p *Parser) parseInsert() (*ast.Insert, error) {
	p.advance() // insert
	name, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	elems, err := p.parseShapeBody()
	if err != nil {
		return nil, err
	}
	ins := &ast.Insert{TypeName: name, Elements: elems}
	if p.skipKeyword("unless") {
		if err := p.expectKeyword("conflict"); err != nil {
			return nil, err
		}
		cc := &ast.ConflictClause{}
		if p.skipKeyword("on") {
			cc.On, err = p.parseExpr(8)
			if err != nil {
				return nil, err
			}
		}
		if p.skipKeyword("else") {
			cc.Else, err = p.parseExpr(0)
			if err != nil {
				return nil, err
			}
		}
		ins.Conflict = cc
	}
	return ins, nil
}

func (p *Parser) parseUpdate() (*ast.Update, error) {
	p.advance() // update
	subj, err := p.parseExpr(7)
	if err != nil {
		return nil, err
	}
	u := &ast.Update{Subject: subj}
	if p.skipKeyword("filter") {
		u.Filter, err = p.parseExpr(0)
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("set"); err != nil {
		return nil, err
	}
	u.Elements, err = p.parseShapeBody()
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (p *Parser) parseDelete() (*ast.Delete, error) {
	p.advance() // delete
	subj, err := p.parseExpr(7)
	if err != nil {
		return nil, err
	}
	filter, order, offset, limit, err := p.parseTail()
	if err != nil {
		return nil, err
	}
	return &ast.Delete{Subject: subj, Filter: filter, OrderBy: order, Offset: offset, Limit: limit}, nil
}

func (p *Parser) parseFor() (*ast.For, error) {
	p.advance() // for
	v, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr(1)
	if err != nil {
		return nil, err
	}
	union := p.skipKeyword("union")
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ast.For{Var: v, Iterator: iter, Union: union, Body: body}, nil
}

var statementStartKeywords = []string{"select", "insert", "update", "delete", "for", "group", "with"}

func (p *Parser) atStatementStart() bool {
	return p.peekAtStatementStart(0)
}

func (p *Parser) peekAtStatementStart(n int) bool {
	t := p.peekN(n)
	if t.Kind != lexer.KEYWORD {
		return false
	}
	for _, kw := range statementStartKeywords {
		if t.Lit == kw {
			return true
		}
	}
	return false
}

// parseBody parses a for/with body, which may be a bare expression, a
// bare statement (`insert ...`), or a statement wrapped in parens
// (`(insert ...)`) — the parenthesized form disambiguates a statement
// body from a parenthesized expression/tuple.
func (p *Parser) parseBody() (ast.Node, error) {
	if p.at(lexer.LPAREN) && p.peekAtStatementStart(1) {
		p.advance() // '('
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return stmt, nil
	}
	if p.atStatementStart() {
		return p.parseStatement()
	}
	return p.parseExpr(0)
}

func (p *Parser) parseGroup() (*ast.Group, error) {
	p.advance() // group
	subj, err := p.parseExpr(1)
	if err != nil {
		return nil, err
	}
	g := &ast.Group{Subject: subj}
	if p.skipKeyword("using") {
		for {
			name, err := p.parseIdentOnly()
			if err != nil {
				return nil, err
			}
			if err := p.expectAssign(); err != nil {
				return nil, err
			}
			e, err := p.parseExpr(8)
			if err != nil {
				return nil, err
			}
			g.Using = append(g.Using, &ast.WithBinding{Name: name, Expr: e})
			if !p.skip(lexer.COMMA) {
				break
			}
		}
	}
	if err := p.expectKeyword("by"); err != nil {
		return nil, err
	}
	for {
		e, err := p.parseExpr(8)
		if err != nil {
			return nil, err
		}
		g.By = append(g.By, e)
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	return g, nil
}

func (p *Parser) expectAssign() error {
	if !p.at(lexer.ASSIGN) {
		return newError(p.cur().Span, "expected ':=', got %q", p.cur().Lit)
	}
	p.advance()
	return nil
}

func (p *Parser) parseWith() (*ast.With, error) {
	p.advance() // with
	var binds []*ast.WithBinding
	for {
		if p.skipKeyword("module") {
			tok, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			binds = append(binds, &ast.WithBinding{ModuleName: tok.Lit})
		} else {
			name, err := p.parseIdentOnly()
			if err != nil {
				return nil, err
			}
			if err := p.expectAssign(); err != nil {
				return nil, err
			}
			e, err := p.parseExpr(1)
			if err != nil {
				return nil, err
			}
			binds = append(binds, &ast.WithBinding{Name: name, Expr: e})
		}
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ast.With{Bindings: binds, Body: body}, nil
}

func (p *Parser) parseConfigure() (*ast.ConfigureStmt, error) {
	p.advance() // configure
	scope := "session"
	for _, s := range []string{"session", "database", "instance"} {
		if p.skipKeyword(s) {
			scope = s
			break
		}
	}
	if err := p.expectKeyword("set"); err != nil {
		// "configure <scope> insert ..." is out of scope for this subset;
		// only the `set name := value` form is supported.
		return nil, err
	}
	name, err := p.parseIdentOnly()
	if err != nil {
		return nil, err
	}
	if err := p.expectAssign(); err != nil {
		return nil, err
	}
	val, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.ConfigureStmt{Scope: scope, Name: name, Value: val}, nil
}

func (p *Parser) parseAnalyze() (*ast.AnalyzeStmt, error) {
	p.advance() // analyze
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ast.AnalyzeStmt{Query: stmt}, nil
}

func (p *Parser) parseTransaction() (*ast.TransactionStmt, error) {
	kind := p.advance().Lit // start | commit | rollback
	if kind == "start" {
		if err := p.expectKeyword("transaction"); err != nil {
			return nil, err
		}
	} else {
		p.skipKeyword("transaction")
	}
	return &ast.TransactionStmt{Kind: kind}, nil
}

func (p *Parser) parseSavepoint() (*ast.SavepointStmt, error) {
	kw := p.advance().Lit
	switch kw {
	case "declare":
		if err := p.expectKeyword("savepoint"); err != nil {
			return nil, err
		}
		name, err := p.parseIdentOnly()
		if err != nil {
			return nil, err
		}
		return &ast.SavepointStmt{Kind: "declare", Name: name}, nil
	case "release":
		if err := p.expectKeyword("savepoint"); err != nil {
			return nil, err
		}
		name, err := p.parseIdentOnly()
		if err != nil {
			return nil, err
		}
		return &ast.SavepointStmt{Kind: "release", Name: name}, nil
	case "rollback":
		if err := p.expectKeyword("to"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("savepoint"); err != nil {
			return nil, err
		}
		name, err := p.parseIdentOnly()
		if err != nil {
			return nil, err
		}
		return &ast.SavepointStmt{Kind: "rollback_to", Name: name}, nil
	}
	return nil, newError(p.cur().Span, "unreachable savepoint form")
}

// ---- shapes -------------------------------------------------------------

func (p *Parser) parseShapeBody() ([]*ast.ShapeElement, error) {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	var elems []*ast.ShapeElement
	for !p.at(lexer.RBRACE) {
		el, err := p.parseShapeElement()
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return elems, nil
}

func (p *Parser) parseShapeElement() (*ast.ShapeElement, error) {
	el := &ast.ShapeElement{}
	if p.at(lexer.LBRACKET) {
		p.advance()
		if err := p.expectKeyword("is"); err != nil {
			return nil, err
		}
		tid, err := p.parseIdentOnly()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RBRACKET); err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.DOT); err != nil {
			return nil, err
		}
		el.Polymorphic = tid
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	el.Name = name.Lit
	if p.at(lexer.ASSIGN) {
		p.advance()
		el.Computed, err = p.parseExpr(1)
		if err != nil {
			return nil, err
		}
		return el, nil
	}
	if p.at(lexer.COLON) {
		p.advance()
		body, err := p.parseShapeBody()
		if err != nil {
			return nil, err
		}
		el.Nested = &ast.Shape{Elements: body}
		filter, order, offset, limit, err := p.parseTail()
		if err != nil {
			return nil, err
		}
		el.Filter, el.OrderBy, el.Offset, el.Limit = filter, order, offset, limit
	}
	return el, nil
}

// ---- expressions: precedence climbing -----------------------------------

// precedence mirrors spec.md §4.2, low to high. union binds loosest; union
// and ^ are right-associative, every other binary operator is
// left-associative.
const (
	precUnion = iota
	precIfElse
	precOr
	precAnd
	precNot
	precCompare
	precOrder
	precLikeInIs
	precAdditive
	precMultiplicative
	precCoalesce
	precUnaryDistinct
	precExponent
)

func (p *Parser) parseExpr(minPrec int) (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return p.parseBinaryRHS(minPrec, lhs)
}

func (p *Parser) parseBinaryRHS(minPrec int, lhs ast.Expr) (ast.Expr, error) {
	for {
		name, prec, rightAssoc, ok := p.peekBinaryOp()
		if !ok || prec < minPrec {
			return lhs, nil
		}
		p.consumeBinaryOp(name)
		nextMin := prec + 1
		if rightAssoc {
			nextMin = prec
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		rhs, err = p.parseBinaryRHS(nextMin, rhs)
		if err != nil {
			return nil, err
		}
		lhs = &ast.Op{Name: name, Args: []ast.Expr{lhs, rhs}}
	}
}

// peekBinaryOp returns the operator spelling, its precedence, whether it
// is right-associative, and whether the cursor is at a binary operator at
// all (without consuming it).
func (p *Parser) peekBinaryOp() (string, int, bool, bool) {
	t := p.cur()
	switch t.Kind {
	case lexer.EQ:
		return "=", precCompare, false, true
	case lexer.NEQ:
		return "!=", precCompare, false, true
	case lexer.DISTINCTFROM:
		return "?=", precCompare, false, true
	case lexer.NOTDISTINCTFROM:
		return "?!=", precCompare, false, true
	case lexer.LT:
		return "<", precOrder, false, true
	case lexer.GT:
		return ">", precOrder, false, true
	case lexer.LTE:
		return "<=", precOrder, false, true
	case lexer.GTE:
		return ">=", precOrder, false, true
	case lexer.PLUS:
		return "+", precAdditive, false, true
	case lexer.MINUS:
		return "-", precAdditive, false, true
	case lexer.PLUSPLUS:
		return "++", precAdditive, false, true
	case lexer.STAR:
		return "*", precMultiplicative, false, true
	case lexer.SLASH:
		return "/", precMultiplicative, false, true
	case lexer.DBLSLASH:
		return "//", precMultiplicative, false, true
	case lexer.PERCENT:
		return "%", precMultiplicative, false, true
	case lexer.COALESCE:
		return "??", precCoalesce, false, true
	case lexer.CARET:
		return "^", precExponent, true, true
	case lexer.KEYWORD:
		switch t.Lit {
		case "union":
			return "union", precUnion, true, true
		case "or":
			return "or", precOr, false, true
		case "and":
			return "and", precAnd, false, true
		case "like":
			return "like", precLikeInIs, false, true
		case "ilike":
			return "ilike", precLikeInIs, false, true
		case "in":
			return "in", precLikeInIs, false, true
		case "not":
			if p.peekN(1).Lit == "in" {
				return "not in", precLikeInIs, false, true
			}
		case "is":
			if p.peekN(1).Lit == "not" {
				return "is not", precLikeInIs, false, true
			}
			return "is", precLikeInIs, false, true
		}
	}
	return "", 0, false, false
}

func (p *Parser) consumeBinaryOp(name string) {
	switch name {
	case "not in":
		p.advance()
		p.advance()
	case "is not":
		p.advance()
		p.advance()
	default:
		p.advance()
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch {
	case p.atKeyword("not"):
		p.advance()
		e, err := p.parseExpr(precNot)
		if err != nil {
			return nil, err
		}
		return &ast.Op{Name: "not", Args: []ast.Expr{e}}, nil
	case p.at(lexer.MINUS):
		p.advance()
		e, err := p.parseExpr(precUnaryDistinct)
		if err != nil {
			return nil, err
		}
		return &ast.Op{Name: "-", Args: []ast.Expr{e}}, nil
	case p.atKeyword("distinct"):
		p.advance()
		e, err := p.parseExpr(precUnaryDistinct)
		if err != nil {
			return nil, err
		}
		return &ast.Op{Name: "distinct", Args: []ast.Expr{e}}, nil
	case p.atKeyword("detached"):
		p.advance()
		e, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return &ast.Detached{Expr: e}, nil
	case p.atKeyword("if"):
		return p.parseIfThenElse()
	}
	return p.parsePostfix()
}

// parseIfThenElse handles `if C then A else B`, recognised by its leading
// keyword. The infix `A if C else B` form is not parsed.
func (p *Parser) parseIfThenElse() (ast.Expr, error) {
	p.advance() // if
	cond, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	then, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("else"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	return &ast.IfElse{Cond: cond, Then: then, Else: els}, nil
}

// parsePostfix parses a primary expression followed by any number of
// `.ptr`, `.<ptr[is T]`, `@lp`, `[is T]` and `{ shape }` postfixes.
// Indexing/slicing (`[idx]`) and `::T` postfixes are not parsed; a `[`
// not followed by `is` ends the expression.
func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(lexer.DOT):
			p.advance()
			backlink := false
			if p.at(lexer.LT) {
				p.advance()
				backlink = true
			}
			name, err := p.expectNameLike()
			if err != nil {
				return nil, err
			}
			step := ast.PathStep{Name: name, Backlink: backlink}
			if backlink && p.at(lexer.LBRACKET) {
				p.advance()
				if err := p.expectKeyword("is"); err != nil {
					return nil, err
				}
				tid, err := p.parseIdentOnly()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(lexer.RBRACKET); err != nil {
					return nil, err
				}
				step.Intersect = tid
			}
			e = appendPathStep(e, step)
		case p.at(lexer.AT):
			p.advance()
			name, err := p.expectNameLike()
			if err != nil {
				return nil, err
			}
			e = appendPathStep(e, ast.PathStep{Name: name, LinkProp: true})
		case p.at(lexer.LBRACKET):
			// `[is T]` type intersection, since plain indexing/slicing is a
			// collection-only operator not modeled on the core object path.
			save := p.pos
			p.advance()
			if p.skipKeyword("is") {
				tid, err := p.parseIdentOnly()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(lexer.RBRACKET); err != nil {
					return nil, err
				}
				e = &ast.TypeIntersection{Expr: e, Type: tid}
				continue
			}
			p.pos = save
			return e, nil
		case p.at(lexer.LBRACE):
			body, err := p.parseShapeBody()
			if err != nil {
				return nil, err
			}
			e = &ast.Shape{Subject: e, Elements: body}
		default:
			return e, nil
		}
	}
}

func appendPathStep(e ast.Expr, step ast.PathStep) ast.Expr {
	if path, ok := e.(*ast.Path); ok {
		path.Steps = append(path.Steps, step)
		return path
	}
	return &ast.Path{Root: e, Steps: []ast.PathStep{step}}
}

func (p *Parser) expectNameLike() (string, error) {
	if p.at(lexer.IDENT) || p.at(lexer.BQIDENT) {
		return p.advance().Lit, nil
	}
	return "", newError(p.cur().Span, "expected identifier, got %q", p.cur().Lit)
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.Kind {
	case lexer.INT, lexer.FLOAT, lexer.BIGINT, lexer.DECIMAL, lexer.STRING, lexer.BYTES:
		p.advance()
		return &ast.Literal{Kind: t.Kind, Value: t.Lit}, nil
	case lexer.KEYWORD:
		switch t.Lit {
		case "true", "false":
			p.advance()
			return &ast.Literal{Kind: lexer.KEYWORD, Value: t.Lit}, nil
		}
	case lexer.LT:
		return p.parseCastOrParam()
	case lexer.DOLLAR:
		return p.parseBareParam()
	case lexer.LPAREN:
		return p.parseParenOrTuple()
	case lexer.LBRACKET:
		return p.parseArray()
	case lexer.LBRACE:
		return p.parseSetLiteral()
	case lexer.IDENT, lexer.BQIDENT:
		return p.parseIdentPrimary()
	case lexer.DOT:
		return p.parseImplicitPath()
	}
	return nil, newError(t.Span, "unexpected token %q in expression", t.Lit)
}

// parseImplicitPath handles a leading `.ptr` or `.<ptr[is T]` path step
// with no explicit root, referring to the subject implicit in its
// surrounding shape/filter/order-by context (spec.md §3.1 Path).
func (p *Parser) parseImplicitPath() (ast.Expr, error) {
	p.advance() // '.'
	backlink := false
	if p.at(lexer.LT) {
		p.advance()
		backlink = true
	}
	name, err := p.expectNameLike()
	if err != nil {
		return nil, err
	}
	step := ast.PathStep{Name: name, Backlink: backlink}
	if backlink && p.at(lexer.LBRACKET) {
		p.advance()
		if err := p.expectKeyword("is"); err != nil {
			return nil, err
		}
		tid, err := p.parseIdentOnly()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RBRACKET); err != nil {
			return nil, err
		}
		step.Intersect = tid
	}
	return &ast.Path{Root: nil, Steps: []ast.PathStep{step}}, nil
}

// parseCastOrParam handles `<T>expr` and `<T>$name` / `<optional T>$name`.
func (p *Parser) parseCastOrParam() (ast.Expr, error) {
	p.advance() // '<'
	optional := p.skipKeyword("optional")
	typ, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.GT) {
		return nil, newError(p.cur().Span, "expected '>' to close type cast, got %q", p.cur().Lit)
	}
	p.advance()
	if p.at(lexer.DOLLAR) {
		p.advance()
		name, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		return &ast.Parameter{Name: name.Lit, Type: typ, Optional: optional}, nil
	}
	inner, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &ast.TypeCast{Type: typ, Expr: inner}, nil
}

// parseBareParam supports a plain `$name` reference to an already-typed
// parameter (e.g. inside a `with` body after the parameter's type was
// established at its first, typed occurrence).
func (p *Parser) parseBareParam() (ast.Expr, error) {
	p.advance() // '$'
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.Parameter{Name: name.Lit}, nil
}

func (p *Parser) parseTypeExpr() (ast.Expr, error) {
	return p.parseIdentOnly()
}

func (p *Parser) parseParenOrTuple() (ast.Expr, error) {
	p.advance() // '('
	if p.at(lexer.RPAREN) {
		p.advance()
		return &ast.Tuple{}, nil
	}
	var names []string
	var elems []ast.Expr
	for {
		name := ""
		if p.at(lexer.IDENT) && p.peekN(1).Kind == lexer.ASSIGN {
			name = p.advance().Lit
			p.advance() // ':='
		}
		e, err := p.parseExpr(1)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		elems = append(elems, e)
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	if len(elems) == 1 && names[0] == "" {
		// A single parenthesized expression is grouping, not a 1-tuple.
		return elems[0], nil
	}
	return &ast.Tuple{Names: names, Elems: elems}, nil
}

func (p *Parser) parseArray() (ast.Expr, error) {
	p.advance() // '['
	var elems []ast.Expr
	for !p.at(lexer.RBRACKET) {
		e, err := p.parseExpr(1)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.Array{Elems: elems}, nil
}

// parseSetLiteral handles a bare `{e0, e1, ...}` set constructor, reusing
// ast.Array (marked Braces) since it shares Array's element-list grammar
// (spec.md §3.1 lists no separate "Set" node).
func (p *Parser) parseSetLiteral() (ast.Expr, error) {
	p.advance() // '{'
	var elems []ast.Expr
	for !p.at(lexer.RBRACE) {
		e, err := p.parseExpr(1)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return &ast.Array{Elems: elems, Braces: true}, nil
}

func (p *Parser) parseIdentOnly() (*ast.Ident, error) {
	e, err := p.parseIdentPrimary()
	if err != nil {
		return nil, err
	}
	id, ok := e.(*ast.Ident)
	if !ok {
		return nil, newError(e.Pos(), "expected identifier")
	}
	return id, nil
}

func (p *Parser) parseIdentPrimary() (ast.Expr, error) {
	tok, err := p.nameToken()
	if err != nil {
		return nil, err
	}
	module := ""
	name := tok.Lit
	backtick := tok.Kind == lexer.BQIDENT
	if p.at(lexer.DOUBLECOLON) {
		p.advance()
		tok2, err := p.nameToken()
		if err != nil {
			return nil, err
		}
		module = name
		name = tok2.Lit
		backtick = tok2.Kind == lexer.BQIDENT
	}
	if p.at(lexer.LPAREN) {
		return p.finishCall(module, name)
	}
	return &ast.Ident{Module: module, Name: name, Backtick: backtick}, nil
}

func (p *Parser) nameToken() (lexer.Token, error) {
	if p.at(lexer.IDENT) || p.at(lexer.BQIDENT) {
		return p.advance(), nil
	}
	return lexer.Token{}, newError(p.cur().Span, "expected identifier, got %q", p.cur().Lit)
}

func (p *Parser) finishCall(module, name string) (ast.Expr, error) {
	p.advance() // '('
	call := &ast.FunctionCall{Module: module, Name: name, Named: map[string]ast.Expr{}}
	for !p.at(lexer.RPAREN) {
		if p.at(lexer.IDENT) && p.peekN(1).Kind == lexer.ASSIGN {
			argName := p.advance().Lit
			p.advance() // ':='
			e, err := p.parseExpr(1)
			if err != nil {
				return nil, err
			}
			call.Named[argName] = e
		} else {
			e, err := p.parseExpr(1)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, e)
		}
		if !p.skip(lexer.COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	if len(call.Named) == 0 {
		call.Named = nil
	}
	if p.at(lexer.LBRACE) {
		// A shape immediately following a call/ident primary, e.g.
		// `User { name }`, attaches to the call/ident as its subject.
		body, err := p.parseShapeBody()
		if err != nil {
			return nil, err
		}
		return &ast.Shape{Subject: call, Elements: body}, nil
	}
	return call, nil
}
