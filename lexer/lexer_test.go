package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/subc/token"
)

func TestSimpleTokens(t *testing.T) {
	src := []byte(`int main() { return 1 + 2; }`)
	toks, err := Lex(src)
	require.NoError(t, err)

	var tags []token.Tag
	for _, tok := range toks {
		tags = append(tags, tok.Tag)
	}

	assert.Equal(t, []token.Tag{
		token.IDENT, token.IDENT, token.LPAREN, token.RPAREN, token.LBRACE,
		token.RETURN, token.INT, token.PLUS, token.INT, token.SEMI, token.RBRACE,
	}, tags)
}

func TestSpanSoundness(t *testing.T) {
	src := []byte(`int a = 123;`)
	toks, err := Lex(src)
	require.NoError(t, err)

	for _, tok := range toks {
		require.GreaterOrEqual(t, tok.Start, 0)
		require.LessOrEqual(t, tok.End, len(src))
		require.LessOrEqual(t, tok.Start, tok.End)
	}

	// the literal "123" is the fourth token
	require.Equal(t, "123", toks[3].Text(src))
}

func TestCompoundOperators(t *testing.T) {
	src := []byte(`a == b != c <= d >= e && f || g`)
	toks, err := Lex(src)
	require.NoError(t, err)

	var tags []token.Tag
	for _, tok := range toks {
		tags = append(tags, tok.Tag)
	}
	assert.Equal(t, []token.Tag{
		token.IDENT, token.EQ, token.IDENT, token.NEQ, token.IDENT, token.LE,
		token.IDENT, token.GE, token.IDENT, token.AND_AND, token.IDENT,
		token.OR_OR, token.IDENT,
	}, tags)
}

func TestLoneBangIsFatal(t *testing.T) {
	_, err := Lex([]byte(`a ! b`))
	require.Error(t, err)
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 1, lerr.Line)
}

func TestLoneBarIsFatal(t *testing.T) {
	_, err := Lex([]byte(`a | b`))
	require.Error(t, err)
}

func TestLoneAmpersandIsItsOwnToken(t *testing.T) {
	toks, err := Lex([]byte(`a & b`))
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, token.AMP, toks[1].Tag)
}

func TestLineComment(t *testing.T) {
	src := []byte("int a; // trailing comment\nint b;")
	toks, err := Lex(src)
	require.NoError(t, err)
	require.Len(t, toks, 6)
	assert.Equal(t, 2, toks[3].Line)
}

func TestBlockComment(t *testing.T) {
	src := []byte("int /* skip\nme */ a;")
	toks, err := Lex(src)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, 2, toks[1].Line)
}

func TestUnterminatedBlockComment(t *testing.T) {
	_, err := Lex([]byte("int a; /* never closed"))
	require.Error(t, err)
}

func TestUnterminatedString(t *testing.T) {
	_, err := Lex([]byte(`"never closed`))
	require.Error(t, err)
}

func TestUnterminatedCharLiteral(t *testing.T) {
	_, err := Lex([]byte(`'a`))
	require.Error(t, err)
}

func TestStringEscape(t *testing.T) {
	src := []byte(`"a\"b"`)
	toks, err := Lex(src)
	require.NoError(t, err)
	require.Len(t, toks, 1)
	assert.Equal(t, token.STR, toks[0].Tag)
}

func TestDefineSubstitution(t *testing.T) {
	src := []byte("#define K 3\nint main(){printf(\"%d\\n\",K);return 0;}")
	toks, err := Lex(src)
	require.NoError(t, err)

	// The K occurrence should now be an INT token whose text is "3",
	// the original digits from the #define line.
	var sawInt3 bool
	for _, tok := range toks {
		if tok.Tag == token.INT && tok.Text(src) == "3" {
			sawInt3 = true
		}
	}
	assert.True(t, sawInt3)
}

func TestDefineBeforeDefinitionIsNotSubstituted(t *testing.T) {
	// K used before it is #define'd must remain an ordinary identifier.
	src := []byte("int main(){int x = K;}\n#define K 3")
	toks, err := Lex(src)
	require.NoError(t, err)

	var sawIdentK bool
	for _, tok := range toks {
		if tok.Tag == token.IDENT && tok.Text(src) == "K" {
			sawIdentK = true
		}
	}
	assert.True(t, sawIdentK)
}

func TestKeywordReclassification(t *testing.T) {
	src := []byte(`return if else while struct other`)
	toks, err := Lex(src)
	require.NoError(t, err)

	want := []token.Tag{token.RETURN, token.IF, token.ELSE, token.WHILE, token.STRUCT, token.IDENT}
	var got []token.Tag
	for _, tok := range toks {
		got = append(got, tok.Tag)
	}
	assert.Equal(t, want, got)
}
