package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

type Opcode uint8

const (
	OpHLT Opcode = iota
	OpPUSH
	OpPUSHR
	OpPOPR
	OpPUSHM
	OpPOPM
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpSQRT
	OpPOW
	OpIN
	OpOUT
	OpJMP
	OpJA
	OpJAE
	OpJB
	OpJBE
	OpJE
	OpJNE
	OpCALL
	OpRET
)

var opcodeNames = [...]string{
	OpHLT:   "HLT",
	OpPUSH:  "PUSH",
	OpPUSHR: "PUSHR",
	OpPOPR:  "POPR",
	OpPUSHM: "PUSHM",
	OpPOPM:  "POPM",
	OpADD:   "ADD",
	OpSUB:   "SUB",
	OpMUL:   "MUL",
	OpDIV:   "DIV",
	OpSQRT:  "SQRT",
	OpPOW:   "POW",
	OpIN:    "IN",
	OpOUT:   "OUT",
	OpJMP:   "JMP",
	OpJA:    "JA",
	OpJAE:   "JAE",
	OpJB:    "JB",
	OpJBE:   "JBE",
	OpJE:    "JE",
	OpJNE:   "JNE",
	OpCALL:  "CALL",
	OpRET:   "RET",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// OpcodeByName resolves an upper-case mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	for i, n := range opcodeNames {
		if n == name {
			return Opcode(i), true
		}
	}
	return 0, false
}

const (
	RegAX uint8 = 0
	RegBX uint8 = 1
	RegCX uint8 = 2
	RegDX uint8 = 3
)

var regNames = [...]string{"ax", "bx", "cx", "dx"}

// RegisterByName resolves a lower-case register name.
func RegisterByName(name string) (uint8, bool) {
	for i, n := range regNames {
		if n == name {
			return uint8(i), true
		}
	}
	return 0, false
}

// Instruction is one decoded program step. Value is the PUSH immediate,
// Target the instruction index a jump or call lands on and Label its name.
type Instruction struct {
	Op     Opcode
	Reg    uint8
	Value  float64
	Target int
	Label  string
	Line   int
}

func (in Instruction) String() string {
	switch in.Op {
	case OpPUSH:
		return fmt.Sprintf("PUSH %s", strconv.FormatFloat(in.Value, 'g', -1, 64))
	case OpPUSHR, OpPOPR:
		return fmt.Sprintf("%s %s", in.Op, regNames[in.Reg&3])
	case OpPUSHM, OpPOPM:
		return fmt.Sprintf("%s [%s]", in.Op, regNames[in.Reg&3])
	case OpJMP, OpJA, OpJAE, OpJB, OpJBE, OpJE, OpJNE, OpCALL:
		if in.Label != "" {
			return fmt.Sprintf("%s :%s", in.Op, in.Label)
		}
		return fmt.Sprintf("%s @%d", in.Op, in.Target)
	}
	return in.Op.String()
}

var (
	ErrStackUnderflow  = errors.New("operand stack underflow")
	ErrStackOverflow   = errors.New("operand stack overflow")
	ErrBadAddress      = errors.New("memory address out of range")
	ErrBadJump         = errors.New("jump target out of range")
	ErrBadInstruction  = errors.New("unknown instruction")
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrNoInput         = errors.New("input exhausted")
	ErrProgramOverflow = errors.New("program counter ran past the last instruction")
)

// DivEpsilon is how close to zero a divisor may get before DIV yields 0.
const DivEpsilon = 1e-12

// Default machine sizes.
const (
	DefaultMemorySize = 65536
	DefaultStackLimit = 4096
)

// Config sizes a Machine. Zero fields take the defaults; MaxSteps of 0 means
// no limit.
type Config struct {
	MemorySize int
	StackLimit int
	MaxSteps   int
}

// Machine executes a program of Instructions against an operand stack, a
// separate call stack and flat float64 memory.
type Machine struct {
	Regs   [4]float64
	PC     int
	Stack  []float64
	Calls  []int
	Memory []float64

	Program []Instruction

	Halted bool
	// Waiting is set when IN finds no queued value and no Input reader; the
	// instruction is retried once PushInput supplies one.
	Waiting bool

	// Input feeds IN when the queue is empty. Whitespace separates values.
	Input io.Reader
	// Output receives one line per OUT. If nil, os.Stdout is used.
	Output io.Writer

	Steps int

	queue      []float64
	scanner    *bufio.Scanner
	stackLimit int
	maxSteps   int
}

func New(program []Instruction, cfg Config) *Machine {
	if cfg.MemorySize <= 0 {
		cfg.MemorySize = DefaultMemorySize
	}
	if cfg.StackLimit <= 0 {
		cfg.StackLimit = DefaultStackLimit
	}
	return &Machine{
		Program:    program,
		Memory:     make([]float64, cfg.MemorySize),
		stackLimit: cfg.StackLimit,
		maxSteps:   cfg.MaxSteps,
	}
}

func (m *Machine) outputSink() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return os.Stdout
}

// PushInput queues a value for IN and wakes a waiting machine.
func (m *Machine) PushInput(v float64) {
	m.queue = append(m.queue, v)
	m.Waiting = false
}

func (m *Machine) push(v float64) error {
	if len(m.Stack) >= m.stackLimit {
		return ErrStackOverflow
	}
	m.Stack = append(m.Stack, v)
	return nil
}

func (m *Machine) pop() (float64, error) {
	if len(m.Stack) == 0 {
		return 0, ErrStackUnderflow
	}
	v := m.Stack[len(m.Stack)-1]
	m.Stack = m.Stack[:len(m.Stack)-1]
	return v, nil
}

// pop2 returns the second-from-top and top values, in that order.
func (m *Machine) pop2() (float64, float64, error) {
	r, err := m.pop()
	if err != nil {
		return 0, 0, err
	}
	l, err := m.pop()
	if err != nil {
		return 0, 0, err
	}
	return l, r, nil
}

func (m *Machine) address(reg uint8) (int, error) {
	v := m.Regs[reg&3]
	addr := int(v)
	if v != math.Trunc(v) || addr < 0 || addr >= len(m.Memory) {
		return 0, fmt.Errorf("%w: %s=%v", ErrBadAddress, regNames[reg&3], v)
	}
	return addr, nil
}

func (m *Machine) readInput() (float64, bool, error) {
	if len(m.queue) > 0 {
		v := m.queue[0]
		m.queue = m.queue[1:]
		return v, true, nil
	}
	if m.Input == nil {
		return 0, false, nil
	}
	if m.scanner == nil {
		m.scanner = bufio.NewScanner(m.Input)
		m.scanner.Split(bufio.ScanWords)
	}
	if !m.scanner.Scan() {
		if err := m.scanner.Err(); err != nil {
			return 0, false, err
		}
		return 0, false, ErrNoInput
	}
	v, err := strconv.ParseFloat(m.scanner.Text(), 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q is not a number", ErrNoInput, m.scanner.Text())
	}
	return v, true, nil
}

func compare(op Opcode, l, r float64) bool {
	switch op {
	case OpJA:
		return l > r
	case OpJAE:
		return l >= r
	case OpJB:
		return l < r
	case OpJBE:
		return l <= r
	case OpJE:
		return l == r
	case OpJNE:
		return l != r
	}
	return false
}

func (m *Machine) jump(target int) error {
	if target < 0 || target > len(m.Program) {
		return fmt.Errorf("%w: %d", ErrBadJump, target)
	}
	m.PC = target
	return nil
}

// Step executes one instruction. A runtime error halts the machine and is
// returned with the failing instruction's position.
func (m *Machine) Step() error {
	if m.Halted {
		return nil
	}
	if m.maxSteps > 0 && m.Steps >= m.maxSteps {
		m.Halted = true
		return ErrStepLimit
	}
	if m.PC >= len(m.Program) {
		m.Halted = true
		return ErrProgramOverflow
	}
	in := m.Program[m.PC]
	if err := m.exec(in); err != nil {
		m.Halted = true
		return fmt.Errorf("pc %d (line %d, %s): %w", m.PC, in.Line, in, err)
	}
	return nil
}

func (m *Machine) exec(in Instruction) error {
	next := m.PC + 1

	switch in.Op {
	case OpHLT:
		m.Halted = true

	case OpPUSH:
		if err := m.push(in.Value); err != nil {
			return err
		}

	case OpPUSHR:
		if err := m.push(m.Regs[in.Reg&3]); err != nil {
			return err
		}

	case OpPOPR:
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.Regs[in.Reg&3] = v

	case OpPUSHM:
		addr, err := m.address(in.Reg)
		if err != nil {
			return err
		}
		if err := m.push(m.Memory[addr]); err != nil {
			return err
		}

	case OpPOPM:
		addr, err := m.address(in.Reg)
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.Memory[addr] = v

	case OpADD, OpSUB, OpMUL, OpDIV, OpPOW:
		l, r, err := m.pop2()
		if err != nil {
			return err
		}
		var v float64
		switch in.Op {
		case OpADD:
			v = l + r
		case OpSUB:
			v = l - r
		case OpMUL:
			v = l * r
		case OpDIV:
			// Matches the constant folder: a divisor within DivEpsilon of
			// zero gives zero.
			if math.Abs(r) >= DivEpsilon {
				v = l / r
			}
		case OpPOW:
			v = math.Pow(l, r)
		}
		m.Stack = append(m.Stack, v)

	case OpSQRT:
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.Stack = append(m.Stack, math.Sqrt(v))

	case OpIN:
		v, ok, err := m.readInput()
		if err != nil {
			return err
		}
		if !ok {
			m.Waiting = true
			return nil
		}
		if err := m.push(v); err != nil {
			return err
		}

	case OpOUT:
		v, err := m.pop()
		if err != nil {
			return err
		}
		fmt.Fprintln(m.outputSink(), strconv.FormatFloat(v, 'f', -1, 64))

	case OpJMP:
		m.Steps++
		return m.jump(in.Target)

	case OpJA, OpJAE, OpJB, OpJBE, OpJE, OpJNE:
		l, r, err := m.pop2()
		if err != nil {
			return err
		}
		m.Steps++
		if compare(in.Op, l, r) {
			return m.jump(in.Target)
		}
		m.PC = next
		return nil

	case OpCALL:
		if len(m.Calls) >= m.stackLimit {
			return ErrStackOverflow
		}
		m.Calls = append(m.Calls, next)
		m.Steps++
		return m.jump(in.Target)

	case OpRET:
		m.Steps++
		if len(m.Calls) == 0 {
			m.Halted = true
			return nil
		}
		m.PC = m.Calls[len(m.Calls)-1]
		m.Calls = m.Calls[:len(m.Calls)-1]
		return nil

	default:
		return fmt.Errorf("%w: %d", ErrBadInstruction, in.Op)
	}

	m.Steps++
	if !m.Halted {
		m.PC = next
	}
	return nil
}

// Run executes until the machine halts or fails. A machine that waits for
// input with nothing to feed it fails with ErrNoInput.
func (m *Machine) Run() error {
	for !m.Halted {
		if err := m.Step(); err != nil {
			return err
		}
		if m.Waiting {
			m.Halted = true
			return ErrNoInput
		}
	}
	return nil
}

// RunUntilDone executes until the machine halts, fails or starts waiting for
// input.
func (m *Machine) RunUntilDone() error {
	for !m.Halted && !m.Waiting {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Top returns the value on top of the operand stack, if any.
func (m *Machine) Top() (float64, bool) {
	if len(m.Stack) == 0 {
		return 0, false
	}
	return m.Stack[len(m.Stack)-1], true
}
