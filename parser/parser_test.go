package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skx/subc/ast"
	"github.com/skx/subc/lexer"
)

func parse(t *testing.T, src string) []*ast.FunctionDecl {
	t.Helper()
	b := []byte(src)
	toks, err := lexer.Lex(b)
	require.NoError(t, err)
	decls, err := Parse(toks, b)
	require.NoError(t, err)
	return decls
}

func TestEmptyProgram(t *testing.T) {
	decls := parse(t, "")
	assert.Empty(t, decls)
}

func TestSimpleFunction(t *testing.T) {
	decls := parse(t, `int main() { return 0; }`)
	require.Len(t, decls, 1)
	assert.Equal(t, "main", decls[0].Name)
	assert.Equal(t, "int", decls[0].ReturnType)
	require.Len(t, decls[0].Body, 1)
	ret, ok := decls[0].Body[0].(*ast.Return)
	require.True(t, ok)
	lit, ok := ret.Value.(*ast.IntegerLiteral)
	require.True(t, ok)
	assert.Equal(t, int64(0), lit.Value)
}

func TestParamsAndCall(t *testing.T) {
	decls := parse(t, `int add(int a, int b) { return a + b; }`)
	require.Len(t, decls, 1)
	require.Len(t, decls[0].Params, 2)
	assert.Equal(t, "a", decls[0].Params[0].Name)
	assert.Equal(t, "b", decls[0].Params[1].Name)
}

func TestVarDeclVsAssignVsExprStmt(t *testing.T) {
	decls := parse(t, `int main() {
		int a = 1;
		a = 2;
		printf("%d\n", a);
		return 0;
	}`)
	body := decls[0].Body
	require.Len(t, body, 4)

	_, isDecl := body[0].(*ast.VarDecl)
	assert.True(t, isDecl)

	_, isAssign := body[1].(*ast.Assignment)
	assert.True(t, isAssign)

	exprStmt, isExpr := body[2].(*ast.ExprStmt)
	require.True(t, isExpr)
	_, isCall := exprStmt.Value.(*ast.Call)
	assert.True(t, isCall)

	_, isReturn := body[3].(*ast.Return)
	assert.True(t, isReturn)
}

func TestIfElseIfChain(t *testing.T) {
	decls := parse(t, `int main() {
		if (a == b) {
			return 1;
		} else if (a != b) {
			return 2;
		} else {
			return 3;
		}
	}`)
	ifStmt, ok := decls[0].Body[0].(*ast.If)
	require.True(t, ok)
	require.Len(t, ifStmt.Else, 1)
	elseIf, ok := ifStmt.Else[0].(*ast.If)
	require.True(t, ok)
	require.NotEmpty(t, elseIf.Else)
}

func TestWhile(t *testing.T) {
	decls := parse(t, `int main() { while (i != 3) { i = i + 1; } return 0; }`)
	whileStmt, ok := decls[0].Body[0].(*ast.While)
	require.True(t, ok)
	require.Len(t, whileStmt.Body, 1)
}

func TestLeftAssociativePrecedence(t *testing.T) {
	decls := parse(t, `int main() { return a + b * 2; }`)
	ret := decls[0].Body[0].(*ast.Return)
	top, ok := ret.Value.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "+", top.Op)
	_, leftIsIdent := top.Left.(*ast.Identifier)
	assert.True(t, leftIsIdent)
	mul, ok := top.Right.(*ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)
}

func TestStringArgument(t *testing.T) {
	decls := parse(t, `int main() { printf("hi\n"); return 0; }`)
	exprStmt := decls[0].Body[0].(*ast.ExprStmt)
	call := exprStmt.Value.(*ast.Call)
	str := call.Args[0].(*ast.StringLiteral)
	assert.Equal(t, `hi\n`, str.Value)
}

func TestUnterminatedBlockIsFatal(t *testing.T) {
	b := []byte(`int main() { return 0;`)
	toks, err := lexer.Lex(b)
	require.NoError(t, err)
	_, err = Parse(toks, b)
	require.Error(t, err)
}

func TestMissingSemicolonIsFatal(t *testing.T) {
	b := []byte(`int main() { return 0 }`)
	toks, err := lexer.Lex(b)
	require.NoError(t, err)
	_, err = Parse(toks, b)
	require.Error(t, err)
}

func TestDisallowedComparatorIsParseError(t *testing.T) {
	b := []byte(`int main() { return a < b; }`)
	toks, err := lexer.Lex(b)
	require.NoError(t, err)
	_, err = Parse(toks, b)
	require.Error(t, err)
}
