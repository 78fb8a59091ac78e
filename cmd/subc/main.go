// This is the main-driver for our compiler.
package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/skx/subc/compiler"
	"github.com/skx/subc/debug"
	"github.com/skx/subc/lexer"
	"github.com/skx/subc/parser"
	"github.com/skx/subc/sema"
)

var (
	debugFlag       bool
	compileFlag     bool
	runFlag         bool
	outputFlag      string
	printTokensFlag bool
	printASTFlag    bool
	printSemaFlag   bool
)

func main() {
	root := &cobra.Command{
		Use:   "subc [flags] file.sc",
		Short: "subc compiles a small C-like language to AMD64 assembly.",
		Args:  cobra.ExactArgs(1),
		// A compile failure should print exactly the one "Line %d:
		// Error: %s" diagnostic our own errors already format, not
		// cobra's usage dump on top of it.
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			n := 0
			for _, set := range []bool{printTokensFlag, printASTFlag, printSemaFlag} {
				if set {
					n++
				}
			}
			if n > 1 {
				return fmt.Errorf("--print-tokens, --print-ast and --print-sema are mutually exclusive")
			}
			return nil
		},
		RunE: run,
	}

	root.Flags().BoolVar(&debugFlag, "debug", false, "Insert a breakpoint in the generated output.")
	root.Flags().BoolVar(&compileFlag, "compile", false, "Compile the program, via invoking gcc.")
	root.Flags().BoolVar(&runFlag, "run", false, "Run the binary, post-compile.")
	root.Flags().StringVar(&outputFlag, "filename", "a.out", "The binary to write, when --compile is given.")
	root.Flags().BoolVar(&printTokensFlag, "print-tokens", false, "Print the token stream and exit.")
	root.Flags().BoolVar(&printASTFlag, "print-ast", false, "Print the parsed syntax tree and exit.")
	root.Flags().BoolVar(&printSemaFlag, "print-sema", false, "Print resolved offsets and frame sizes, and exit.")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("error reading %s: %w", args[0], err)
	}

	if runFlag {
		compileFlag = true
	}

	switch {
	case printTokensFlag:
		toks, err := lexer.Lex(source)
		if err != nil {
			return err
		}
		debug.Tokens(os.Stdout, toks, source)
		return nil

	case printASTFlag:
		toks, err := lexer.Lex(source)
		if err != nil {
			return err
		}
		program, err := parser.Parse(toks, source)
		if err != nil {
			return err
		}
		debug.AST(os.Stdout, program)
		return nil

	case printSemaFlag:
		toks, err := lexer.Lex(source)
		if err != nil {
			return err
		}
		program, err := parser.Parse(toks, source)
		if err != nil {
			return err
		}
		global, err := sema.Analyze(program)
		if err != nil {
			return err
		}
		debug.Sema(os.Stdout, global)
		return nil
	}

	comp := compiler.New(source)
	comp.SetDebug(debugFlag)

	out, err := comp.Compile()
	if err != nil {
		return err
	}

	if !compileFlag {
		fmt.Print(out)
		return nil
	}

	gcc := exec.Command("gcc", "-static", "-o", outputFlag, "-x", "assembler", "-")
	gcc.Stdout = os.Stdout
	gcc.Stderr = os.Stderr

	var b bytes.Buffer
	b.WriteString(out)
	gcc.Stdin = &b

	if err := gcc.Run(); err != nil {
		return fmt.Errorf("error launching gcc: %w", err)
	}

	if runFlag {
		exe := exec.Command(outputFlag)
		exe.Stdout = os.Stdout
		exe.Stderr = os.Stderr
		if err := exe.Run(); err != nil {
			return fmt.Errorf("error launching %s: %w", outputFlag, err)
		}
	}

	return nil
}
