package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"stackc/pkg/vm"
)

var zeroOperandOps = map[string]vm.Opcode{
	"HLT":  vm.OpHLT,
	"RET":  vm.OpRET,
	"IN":   vm.OpIN,
	"OUT":  vm.OpOUT,
	"ADD":  vm.OpADD,
	"SUB":  vm.OpSUB,
	"MUL":  vm.OpMUL,
	"DIV":  vm.OpDIV,
	"SQRT": vm.OpSQRT,
	"POW":  vm.OpPOW,
}

var registerOps = map[string]vm.Opcode{
	"PUSHR": vm.OpPUSHR,
	"POPR":  vm.OpPOPR,
}

var memoryOps = map[string]vm.Opcode{
	"PUSHM": vm.OpPUSHM,
	"POPM":  vm.OpPOPM,
}

var labelOps = map[string]vm.Opcode{
	"JMP":  vm.OpJMP,
	"JA":   vm.OpJA,
	"JAE":  vm.OpJAE,
	"JB":   vm.OpJB,
	"JBE":  vm.OpJBE,
	"JE":   vm.OpJE,
	"JNE":  vm.OpJNE,
	"CALL": vm.OpCALL,
}

// Assembler turns assembly text into vm instructions in two passes: the
// first records label positions, the second decodes operands.
type Assembler struct {
	labels map[string]int
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]int),
	}
}

// Assemble returns the program plus a map from instruction index to the
// 1-based source line it came from.
func Assemble(code string) ([]vm.Instruction, map[int]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]vm.Instruction, map[int]int, error) {
	lines := strings.Split(code, "\n")

	parsed := make([]parsedLine, 0, len(lines))
	for i, raw := range lines {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return nil, nil, err
		}
		parsed = append(parsed, p)
	}

	if err := a.pass1(parsed); err != nil {
		return nil, nil, err
	}
	return a.pass2(parsed)
}

func (a *Assembler) pass1(lines []parsedLine) error {
	index := 0
	for _, p := range lines {
		for _, lbl := range p.labels {
			if _, exists := a.labels[lbl]; exists {
				return fmt.Errorf("duplicate label ':%s' on line %d", lbl, p.lineNo)
			}
			a.labels[lbl] = index
		}
		if p.mnemonic == "" {
			continue
		}
		if _, ok := vm.OpcodeByName(p.mnemonic); !ok {
			return fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, p.mnemonic)
		}
		index++
	}
	return nil
}

func (a *Assembler) pass2(lines []parsedLine) ([]vm.Instruction, map[int]int, error) {
	program := make([]vm.Instruction, 0, len(lines))
	sourceMap := make(map[int]int)

	for _, p := range lines {
		if p.mnemonic == "" {
			continue
		}
		in, err := a.decode(p)
		if err != nil {
			return nil, nil, err
		}
		sourceMap[len(program)] = p.lineNo
		program = append(program, in)
	}

	return program, sourceMap, nil
}

func (a *Assembler) decode(p parsedLine) (vm.Instruction, error) {
	mnemonic, ops, lineNo := p.mnemonic, p.operands, p.lineNo
	in := vm.Instruction{Line: lineNo}

	if op, ok := zeroOperandOps[mnemonic]; ok {
		if len(ops) != 0 {
			return in, fmt.Errorf("%s expects 0 operands on line %d", mnemonic, lineNo)
		}
		in.Op = op
		return in, nil
	}

	if len(ops) != 1 {
		return in, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
	}

	if mnemonic == "PUSH" {
		v, err := strconv.ParseFloat(ops[0], 64)
		if err != nil {
			return in, fmt.Errorf("invalid number '%s' on line %d", ops[0], lineNo)
		}
		in.Op, in.Value = vm.OpPUSH, v
		return in, nil
	}

	if op, ok := registerOps[mnemonic]; ok {
		reg, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return in, err
		}
		in.Op, in.Reg = op, reg
		return in, nil
	}

	if op, ok := memoryOps[mnemonic]; ok {
		if !strings.HasPrefix(ops[0], "[") || !strings.HasSuffix(ops[0], "]") {
			return in, fmt.Errorf("%s expects a [register] operand on line %d", mnemonic, lineNo)
		}
		reg, err := parseRegister(ops[0][1:len(ops[0])-1], lineNo)
		if err != nil {
			return in, err
		}
		in.Op, in.Reg = op, reg
		return in, nil
	}

	if op, ok := labelOps[mnemonic]; ok {
		target, name, err := a.parseTarget(ops[0], lineNo)
		if err != nil {
			return in, err
		}
		in.Op, in.Target, in.Label = op, target, name
		return in, nil
	}

	return in, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
}

// parseLine splits a line into its label definitions and instruction. A label
// is written ":name" on a line of its own, optionally followed by an
// instruction.
func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	for strings.HasPrefix(line, ":") {
		end := strings.IndexFunc(line, unicode.IsSpace)
		if end < 0 {
			end = len(line)
		}
		name := line[1:end]
		if !isLabel(name) {
			return p, fmt.Errorf("invalid label '%s' on line %d", line[:end], lineNo)
		}
		p.labels = append(p.labels, name)
		line = strings.TrimSpace(line[end:])
	}
	if line == "" {
		return p, nil
	}

	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}
	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func parseRegister(token string, lineNo int) (uint8, error) {
	if reg, ok := vm.RegisterByName(strings.ToLower(token)); ok {
		return reg, nil
	}
	return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
}

func (a *Assembler) parseTarget(token string, lineNo int) (int, string, error) {
	name, ok := strings.CutPrefix(token, ":")
	if !ok || !isLabel(name) {
		return 0, "", fmt.Errorf("invalid label reference '%s' on line %d", token, lineNo)
	}
	target, ok := a.labels[name]
	if !ok {
		return 0, "", fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}
	return target, name, nil
}

// isLabel accepts identifiers plus the dotted names the compiler uses for
// control flow.
func isLabel(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '.' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
