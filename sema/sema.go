// Package sema performs subc's single semantic-analysis pass: it builds
// the global and per-function symbol tables, assigns every local and
// parameter a stack offset, computes each function's frame size, and
// annotates the AST in place with the offsets the code generator needs.
//
// No type checking is performed beyond name resolution; the type name
// carried on declarations is kept only for diagnostic purposes.
package sema

import (
	"fmt"

	"github.com/skx/subc/ast"
	"github.com/skx/subc/symbols"
)

// Error reports a fatal semantic error, with a source line when one is
// available (global errors such as a missing main have none).
type Error struct {
	Line int // 0 when no specific line applies
	Msg  string
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("Error: %s", e.Msg)
	}
	return fmt.Sprintf("Line %d: Error: %s", e.Line, e.Msg)
}

const slotSize = 8

// builtins names callable functions that are always accepted even
// without a matching declaration.
var builtins = map[string]bool{
	"printf": true,
}

// Analyze walks the program once, building scopes, resolving every
// identifier and call, and annotating declarations/identifiers with the
// offsets and frame sizes the code generator consumes. It returns the
// populated global symbol table.
func Analyze(program []*ast.FunctionDecl) (*symbols.Table, error) {
	global := symbols.NewTable(nil)

	var sawMain bool
	for _, fn := range program {
		if fn.Name == "main" {
			sawMain = true
		}
		if _, exists := global.LookupLocal(fn.Name); exists {
			return nil, &Error{Msg: fmt.Sprintf("function %q redeclared", fn.Name)}
		}

		var paramTypes []string
		for _, p := range fn.Params {
			paramTypes = append(paramTypes, p.Type)
		}

		global.Define(&symbols.Symbol{
			Kind:       symbols.FunctionKind,
			Name:       fn.Name,
			ReturnType: fn.ReturnType,
			ParamTypes: paramTypes,
		})
	}
	if !sawMain {
		return nil, &Error{Msg: "no 'main' function defined"}
	}

	for _, fn := range program {
		if err := analyzeFunction(fn, global); err != nil {
			return nil, err
		}
	}

	return global, nil
}

// analyzer carries the per-function mutable state sema needs: the local
// scope and the next stack offset to hand out.
type analyzer struct {
	global     *symbols.Table
	locals     *symbols.Table
	nextOffset int // the offset to assign to the next allocation
	minOffset  int // the most-negative offset handed out so far
}

func analyzeFunction(fn *ast.FunctionDecl, global *symbols.Table) error {
	locals := symbols.NewTable(global)
	a := &analyzer{global: global, locals: locals}

	for i := range fn.Params {
		p := &fn.Params[i]
		if _, exists := locals.LookupLocal(p.Name); exists {
			return &Error{Msg: fmt.Sprintf("parameter %q redeclared in function %q", p.Name, fn.Name)}
		}
		offset := a.allocate()
		p.Offset = offset
		locals.Define(&symbols.Symbol{
			Kind:   symbols.VariableKind,
			Name:   p.Name,
			Type:   p.Type,
			Offset: offset,
			Size:   slotSize,
		})
	}

	for _, stmt := range fn.Body {
		if err := a.analyzeStmt(stmt); err != nil {
			return err
		}
	}

	frameSize := symbols.Align16(-a.minOffset)
	fn.FrameSize = frameSize

	fnSym, _ := global.LookupLocal(fn.Name)
	fnSym.FrameSize = frameSize
	fnSym.Locals = locals

	return nil
}

// allocate hands out the next 8-byte-aligned negative stack slot.
func (a *analyzer) allocate() int {
	a.nextOffset -= slotSize
	if a.nextOffset < a.minOffset {
		a.minOffset = a.nextOffset
	}
	return a.nextOffset
}

func (a *analyzer) analyzeStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		if _, exists := a.locals.LookupLocal(s.Name); exists {
			return &Error{Line: s.Line, Msg: fmt.Sprintf("variable %q redeclared", s.Name)}
		}
		if s.Init != nil {
			if err := a.analyzeExpr(s.Init); err != nil {
				return err
			}
		}
		offset := a.allocate()
		s.Offset = offset
		a.locals.Define(&symbols.Symbol{
			Kind:   symbols.VariableKind,
			Name:   s.Name,
			Type:   s.Type,
			Offset: offset,
			Size:   slotSize,
		})
		return nil

	case *ast.Assignment:
		sym, ok := a.locals.Lookup(s.Target.Name)
		if !ok || sym.Kind != symbols.VariableKind {
			return &Error{Line: s.Line, Msg: fmt.Sprintf("undefined variable %q", s.Target.Name)}
		}
		s.Target.Offset = sym.Offset
		return a.analyzeExpr(s.Value)

	case *ast.Return:
		return a.analyzeExpr(s.Value)

	case *ast.If:
		if err := a.analyzeExpr(s.Cond); err != nil {
			return err
		}
		for _, st := range s.Then {
			if err := a.analyzeStmt(st); err != nil {
				return err
			}
		}
		for _, st := range s.Else {
			if err := a.analyzeStmt(st); err != nil {
				return err
			}
		}
		return nil

	case *ast.While:
		if err := a.analyzeExpr(s.Cond); err != nil {
			return err
		}
		for _, st := range s.Body {
			if err := a.analyzeStmt(st); err != nil {
				return err
			}
		}
		return nil

	case *ast.ExprStmt:
		return a.analyzeExpr(s.Value)
	}

	return fmt.Errorf("sema: unhandled statement type %T", stmt)
}

func (a *analyzer) analyzeExpr(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.IntegerLiteral, *ast.StringLiteral:
		return nil

	case *ast.Identifier:
		sym, ok := a.locals.Lookup(e.Name)
		if !ok || sym.Kind != symbols.VariableKind {
			return &Error{Line: e.Line, Msg: fmt.Sprintf("undefined identifier %q", e.Name)}
		}
		e.Offset = sym.Offset
		return nil

	case *ast.BinaryOp:
		if err := a.analyzeExpr(e.Left); err != nil {
			return err
		}
		return a.analyzeExpr(e.Right)

	case *ast.Call:
		if !builtins[e.Name] {
			sym, ok := a.global.LookupLocal(e.Name)
			if !ok || sym.Kind != symbols.FunctionKind {
				return &Error{Line: e.Line, Msg: fmt.Sprintf("call to undefined function %q", e.Name)}
			}
		}
		for _, arg := range e.Args {
			if err := a.analyzeExpr(arg); err != nil {
				return err
			}
		}
		return nil

	case *ast.Assignment:
		sym, ok := a.locals.Lookup(e.Target.Name)
		if !ok || sym.Kind != symbols.VariableKind {
			return &Error{Line: e.Line, Msg: fmt.Sprintf("undefined variable %q", e.Target.Name)}
		}
		e.Target.Offset = sym.Offset
		return a.analyzeExpr(e.Value)
	}

	return fmt.Errorf("sema: unhandled expression type %T", expr)
}
