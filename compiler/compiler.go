// Package compiler wires together the lexer, parser, semantic analyzer,
// code generator and printer into the single-pass pipeline that turns a
// subc source file into AT&T assembly text.
package compiler

import (
	"github.com/skx/subc/ast"
	"github.com/skx/subc/asmir"
	"github.com/skx/subc/codegen"
	"github.com/skx/subc/lexer"
	"github.com/skx/subc/parser"
	"github.com/skx/subc/printer"
	"github.com/skx/subc/sema"
	"github.com/skx/subc/symbols"
	"github.com/skx/subc/token"
)

// Compiler holds our object-state.
type Compiler struct {

	// source holds the program we're compiling.
	source []byte

	// debug holds a flag to decide if a breakpoint (int3) is inserted
	// at the start of main.
	debug bool

	// tokens, program, and globals hold the intermediate results of
	// each pipeline stage, retained so a caller can inspect them after
	// Compile returns.
	tokens  []token.Token
	program []*ast.FunctionDecl
	globals *symbols.Table
	asm     *asmir.Assembly
}

// New creates a new compiler, given the source bytes to compile.
func New(source []byte) *Compiler {
	return &Compiler{source: source}
}

// SetDebug changes the debug-flag.
func (c *Compiler) SetDebug(val bool) {
	c.debug = val
}

// Compile runs the full pipeline - lex, parse, analyze, generate,
// print - and returns the resulting assembly text. It stops and
// reports the first error encountered at any stage.
func (c *Compiler) Compile() (string, error) {
	toks, err := lexer.Lex(c.source)
	if err != nil {
		return "", err
	}
	c.tokens = toks

	program, err := parser.Parse(toks, c.source)
	if err != nil {
		return "", err
	}
	c.program = program

	globals, err := sema.Analyze(program)
	if err != nil {
		return "", err
	}
	c.globals = globals

	asm, err := codegen.Generate(program, globals, c.debug)
	if err != nil {
		return "", err
	}
	c.asm = asm

	return printer.Print(asm), nil
}

// Tokens returns the token stream produced by the most recent Compile
// call, or nil if Compile has not yet run successfully past the lexer.
func (c *Compiler) Tokens() []token.Token {
	return c.tokens
}

// Program returns the parsed AST produced by the most recent Compile
// call, or nil if Compile has not yet run successfully past the parser.
func (c *Compiler) Program() []*ast.FunctionDecl {
	return c.program
}

// Globals returns the global symbol table produced by the most recent
// Compile call, or nil if Compile has not yet run successfully past
// semantic analysis.
func (c *Compiler) Globals() *symbols.Table {
	return c.globals
}
