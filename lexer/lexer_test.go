package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velox/lexer"
)

func kinds(t *testing.T, src string) []lexer.Kind {
	t.Helper()
	toks, err := lexer.All(src)
	require.NoError(t, err)
	out := make([]lexer.Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestIdentifiersAndKeywords(t *testing.T) {
	toks, err := lexer.All("select Foo.bar")
	require.NoError(t, err)
	require.Len(t, toks, 4)
	assert.Equal(t, lexer.KEYWORD, toks[0].Kind)
	assert.Equal(t, "select", toks[0].Lit)
	assert.Equal(t, lexer.IDENT, toks[1].Kind)
	assert.Equal(t, "Foo", toks[1].Lit)
	assert.Equal(t, lexer.DOT, toks[2].Kind)
	assert.Equal(t, lexer.IDENT, toks[3].Kind)
}

func TestBacktickIdentifier(t *testing.T) {
	toks, err := lexer.All("select `my col``with backtick`")
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, lexer.BQIDENT, toks[1].Kind)
	assert.Equal(t, "my col`with backtick", toks[1].Lit)
}

func TestBacktickRejectsAtPrefixAndScope(t *testing.T) {
	_, err := lexer.All("select `@oops`")
	require.Error(t, err)
	_, err = lexer.All("select `a::b`")
	require.Error(t, err)
}

func TestNumericLiterals(t *testing.T) {
	toks, err := lexer.All("1 1.5 1e10 1n 1.5n")
	require.NoError(t, err)
	require.Len(t, toks, 5)
	assert.Equal(t, lexer.INT, toks[0].Kind)
	assert.Equal(t, lexer.FLOAT, toks[1].Kind)
	assert.Equal(t, lexer.FLOAT, toks[2].Kind)
	assert.Equal(t, lexer.BIGINT, toks[3].Kind)
	assert.Equal(t, lexer.DECIMAL, toks[4].Kind)
}

func TestStringEscapes(t *testing.T) {
	toks, err := lexer.All(`'a\nb\t\x41A'`)
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, "a\nb\tAA", toks[0].Lit)
}

func TestRawStringDisablesEscapes(t *testing.T) {
	toks, err := lexer.All(`r'a\nb'`)
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, `a\nb`, toks[0].Lit)
}

func TestByteLiteralRejectsNonASCII(t *testing.T) {
	_, err := lexer.All(`b'héllo'`)
	require.Error(t, err)
}

func TestRawByteLiteral(t *testing.T) {
	for _, src := range []string{`rb'a\nb'`, `br'a\nb'`} {
		toks, err := lexer.All(src)
		require.NoError(t, err)
		require.Len(t, toks, 1)
		assert.Equal(t, lexer.BYTES, toks[0].Kind)
		assert.Equal(t, `a\nb`, toks[0].Lit)
	}
}

func TestDollarQuotedString(t *testing.T) {
	toks, err := lexer.All("$tag$hello 'world'$tag$")
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, lexer.STRING, toks[0].Kind)
	assert.Equal(t, "hello 'world'", toks[0].Lit)
}

func TestDollarQuotedStringEmptyTag(t *testing.T) {
	toks, err := lexer.All("$$hi$$")
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, "hi", toks[0].Lit)
}

func TestUnterminatedStringIsLexicalError(t *testing.T) {
	_, err := lexer.All("'abc")
	require.Error(t, err)
	var synErr *lexer.SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, lexer.LexicalError, synErr.Kind)
}

func TestOperatorPunctuation(t *testing.T) {
	got := kinds(t, ":: .. -> := ?!= ?= ?? ++ // != <= >=")
	want := []lexer.Kind{
		lexer.DOUBLECOLON, lexer.DOTDOT, lexer.ARROW, lexer.ASSIGN,
		lexer.NOTDISTINCTFROM, lexer.DISTINCTFROM, lexer.COALESCE,
		lexer.PLUSPLUS, lexer.DBLSLASH, lexer.NEQ, lexer.LTE, lexer.GTE,
	}
	assert.Equal(t, want, got)
}

func TestCommentsAreDiscarded(t *testing.T) {
	toks, err := lexer.All("select 1 # a trailing comment\n, 2")
	require.NoError(t, err)
	require.Len(t, toks, 4)
}

func TestCaseInsensitiveKeywordCaseSensitiveIdent(t *testing.T) {
	toks, err := lexer.All("SeLeCt Foo FOO")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, lexer.KEYWORD, toks[0].Kind)
	assert.Equal(t, "select", toks[0].Lit)
	assert.Equal(t, "Foo", toks[1].Lit)
	assert.Equal(t, "FOO", toks[2].Lit)
	assert.NotEqual(t, toks[1].Lit, toks[2].Lit)
}
