// Package debug formats subc's intermediate compilation stages -
// tokens, the parsed AST, and the resolved symbol tables - for the
// CLI's --print-tokens, --print-ast, and --print-sema flags.
package debug

import (
	"fmt"
	"io"

	"github.com/skx/subc/ast"
	"github.com/skx/subc/symbols"
	"github.com/skx/subc/token"
)

// Tokens writes one line per token: its tag, source line, and literal
// text.
func Tokens(w io.Writer, toks []token.Token, src []byte) {
	for _, t := range toks {
		fmt.Fprintf(w, "%4d  %-10s %q\n", t.Line, t.Tag, t.Text(src))
	}
}

// AST writes an indented tree, one function per top-level entry.
func AST(w io.Writer, program []*ast.FunctionDecl) {
	for _, fn := range program {
		fmt.Fprintf(w, "func %s %s(", fn.ReturnType, fn.Name)
		for i, p := range fn.Params {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "%s %s", p.Type, p.Name)
		}
		fmt.Fprintf(w, ")\n")
		printStmts(w, fn.Body, 1)
	}
}

func printStmts(w io.Writer, body []ast.Stmt, depth int) {
	for _, stmt := range body {
		printStmt(w, stmt, depth)
	}
}

func indent(w io.Writer, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(w, "  ")
	}
}

func printStmt(w io.Writer, stmt ast.Stmt, depth int) {
	indent(w, depth)
	switch s := stmt.(type) {
	case *ast.VarDecl:
		fmt.Fprintf(w, "VarDecl %s %s = %s\n", s.Type, s.Name, exprString(s.Init))

	case *ast.Assignment:
		fmt.Fprintf(w, "Assignment %s = %s\n", s.Target.Name, exprString(s.Value))

	case *ast.Return:
		fmt.Fprintf(w, "Return %s\n", exprString(s.Value))

	case *ast.If:
		fmt.Fprintf(w, "If %s\n", exprString(s.Cond))
		printStmts(w, s.Then, depth+1)
		if s.Else != nil {
			indent(w, depth)
			fmt.Fprintf(w, "Else\n")
			printStmts(w, s.Else, depth+1)
		}

	case *ast.While:
		fmt.Fprintf(w, "While %s\n", exprString(s.Cond))
		printStmts(w, s.Body, depth+1)

	case *ast.ExprStmt:
		fmt.Fprintf(w, "ExprStmt %s\n", exprString(s.Value))

	default:
		fmt.Fprintf(w, "<unknown statement %T>\n", stmt)
	}
}

func exprString(e ast.Expr) string {
	if e == nil {
		return "<nil>"
	}
	switch v := e.(type) {
	case *ast.IntegerLiteral:
		return fmt.Sprintf("%d", v.Value)
	case *ast.StringLiteral:
		return fmt.Sprintf("%q", v.Value)
	case *ast.Identifier:
		return v.Name
	case *ast.BinaryOp:
		return fmt.Sprintf("(%s %s %s)", exprString(v.Left), v.Op, exprString(v.Right))
	case *ast.Call:
		s := v.Name + "("
		for i, a := range v.Args {
			if i > 0 {
				s += ", "
			}
			s += exprString(a)
		}
		return s + ")"
	case *ast.Assignment:
		return fmt.Sprintf("(%s = %s)", v.Target.Name, exprString(v.Value))
	}
	return fmt.Sprintf("<unknown expr %T>", e)
}

// Sema writes each function's computed frame size and the stack offset
// assigned to every parameter and local it owns.
func Sema(w io.Writer, global *symbols.Table) {
	for _, fn := range global.Functions() {
		fmt.Fprintf(w, "func %s frame=%d\n", fn.Name, fn.FrameSize)
		for _, local := range fn.Locals.Names() {
			fmt.Fprintf(w, "  %s offset=%d\n", local.Name, local.Offset)
		}
	}
}
