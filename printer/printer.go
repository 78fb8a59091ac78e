// Package printer serializes an asmir.Assembly into AT&T-syntax x86-64
// assembly text suitable for feeding to gas/gcc.
package printer

import (
	"fmt"
	"strings"

	"github.com/skx/subc/asmir"
)

// mnemonics maps each Opcode to its AT&T mnemonic. Arithmetic and data
// movement default to the 64-bit "q" suffix, since every value this
// compiler manipulates is a single 8-byte slot.
var mnemonics = map[asmir.Opcode]string{
	asmir.MOV:    "movq",
	asmir.ADD:    "addq",
	asmir.SUB:    "subq",
	asmir.MUL:    "imulq",
	asmir.DIV:    "idivq",
	asmir.PUSH:   "pushq",
	asmir.POP:    "popq",
	asmir.CALL:   "call",
	asmir.RET:    "ret",
	asmir.LEA:    "leaq",
	asmir.CMP:    "cmpq",
	asmir.SET_EQ: "sete",
	asmir.SET_NE: "setne",
	asmir.MOVZX:  "movzbq",
	asmir.JE:     "je",
	asmir.JMP:    "jmp",
	asmir.INT3:   "int3",
}

// Print renders asm as a complete .s file.
func Print(asm *asmir.Assembly) string {
	var b strings.Builder

	for _, e := range asm.Externs {
		fmt.Fprintf(&b, ".extern %s\n", e)
	}
	if len(asm.Externs) > 0 {
		b.WriteByte('\n')
	}

	if len(asm.Strings) > 0 {
		b.WriteString(".section .data\n")
		for _, s := range asm.Strings {
			fmt.Fprintf(&b, "%s:\n\t.string \"%s\"\n", s.Label, escape(s.Value))
		}
		b.WriteByte('\n')
	}

	b.WriteString(".section .text\n")
	b.WriteString(".globl main\n\n")

	for _, sec := range asm.Sections {
		for _, ins := range sec.Instructions {
			printInstruction(&b, ins)
		}
	}

	return b.String()
}

func printInstruction(b *strings.Builder, ins asmir.Instruction) {
	if ins.Op == asmir.LABEL {
		fmt.Fprintf(b, "%s:\n", ins.Dest.Label)
		return
	}

	mnemonic := mnemonics[ins.Op]

	switch ins.Op {
	case asmir.RET, asmir.INT3:
		fmt.Fprintf(b, "\t%s\n", mnemonic)

	case asmir.CALL, asmir.JMP, asmir.JE:
		fmt.Fprintf(b, "\t%s %s\n", mnemonic, ins.Dest.Label)

	case asmir.PUSH, asmir.POP, asmir.DIV:
		fmt.Fprintf(b, "\t%s %s\n", mnemonic, operand(ins.Dest))

	case asmir.SET_EQ, asmir.SET_NE:
		fmt.Fprintf(b, "\t%s %s\n", mnemonic, operand(ins.Dest))

	default:
		// Two-operand instructions print AT&T's source, then
		// destination.
		fmt.Fprintf(b, "\t%s %s, %s\n", mnemonic, operand(ins.Src), operand(ins.Dest))
	}
}

// operand renders a single operand in AT&T syntax.
func operand(op asmir.Operand) string {
	switch op.Kind {
	case asmir.OperandRegister:
		return "%" + op.Reg.String()
	case asmir.OperandImmediate:
		return fmt.Sprintf("$%d", op.Immediate)
	case asmir.OperandMemory:
		if op.Offset == 0 {
			return fmt.Sprintf("(%%%s)", op.BaseReg.String())
		}
		return fmt.Sprintf("%d(%%%s)", op.Offset, op.BaseReg.String())
	case asmir.OperandLabel:
		return op.Label
	case asmir.OperandRIPLabel:
		return fmt.Sprintf("%s(%%rip)", op.Label)
	}
	return ""
}

// escape prepares a string literal's value for a .string directive. A
// StringLiteral's Value already carries its backslash-escapes exactly as
// the source wrote them (parser.parsePrimary strips only the surrounding
// quotes), so a backslash here always begins a pair gas itself knows how
// to interpret and must be copied through untouched rather than escaped
// again. Only a bare double-quote - which can't survive lexing inside a
// literal, but could reach Intern some other way - is escaped directly.
func escape(s string) string {
	var b strings.Builder
	bytes := []byte(s)
	for i := 0; i < len(bytes); i++ {
		c := bytes[i]
		if c == '\\' && i+1 < len(bytes) {
			b.WriteByte(c)
			b.WriteByte(bytes[i+1])
			i++
			continue
		}
		if c == '"' {
			b.WriteString(`\"`)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
