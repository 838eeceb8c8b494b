package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("fool.vm")

// DefaultMemSize is the number of memory cells used when Config.MemSize
// is zero.
const DefaultMemSize = 10000

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

var (
	ErrStackOverflow  = errors.New("stack overflow: stack and heap collide")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrHeapExhausted  = errors.New("heap exhausted: heap and stack collide")
	ErrInvalidOpcode  = errors.New("invalid opcode")
	ErrInvalidAddress = errors.New("invalid memory address")
	ErrInvalidJump    = errors.New("jump outside of code")
	ErrDivisionByZero = errors.New("division by zero")
)

// RuntimeError is a fatal error raised while executing a program. It
// records the code address of the failing instruction and the assembly
// line it came from.
type RuntimeError struct {
	Addr  int
	Line  int
	Instr string
	Err   error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("runtime error at %d (asm line %d: %s): %v", e.Addr, e.Line, e.Instr, e.Err)
	}
	return fmt.Sprintf("runtime error at %d: %v", e.Addr, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// VM
// ---------------------------------------------------------------------------

// Config configures a VM.
type Config struct {
	// MemSize is the number of memory cells shared by stack and heap.
	MemSize int
	// Trace logs every executed instruction at debug level.
	Trace bool
	// Output receives the values printed by the program. Defaults to
	// os.Stdout.
	Output io.Writer
}

// VM is the stack virtual machine. The stack starts at the top of memory
// and grows downward; the heap starts at address 0 and grows upward.
type VM struct {
	memory []int
	out    io.Writer
	trace  bool

	code []int
	ip   int // instruction pointer
	sp   int // stack pointer, addresses the top of the stack
	fp   int // frame pointer
	ra   int // return address
	tm   int // scratch register
	hp   int // heap pointer, first free heap cell

	prog  *Program
	fault int // address of the instruction being executed
}

// New creates a VM with cfg.
func New(cfg Config) *VM {
	size := cfg.MemSize
	if size <= 0 {
		size = DefaultMemSize
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &VM{
		memory: make([]int, size),
		out:    out,
		trace:  cfg.Trace,
	}
}

// MemSize returns the number of memory cells.
func (v *VM) MemSize() int {
	return len(v.memory)
}

// Registers is a snapshot of the register file.
type Registers struct {
	IP, SP, FP, RA, TM, HP int
}

// Registers returns the current register values.
func (v *VM) Registers() Registers {
	return Registers{IP: v.ip, SP: v.sp, FP: v.fp, RA: v.ra, TM: v.tm, HP: v.hp}
}

// Load returns the content of memory cell addr.
func (v *VM) Load(addr int) (int, error) {
	if addr < 0 || addr >= len(v.memory) {
		return 0, ErrInvalidAddress
	}
	return v.memory[addr], nil
}

func (v *VM) reset(prog *Program) {
	for i := range v.memory {
		v.memory[i] = 0
	}
	v.prog = prog
	v.code = prog.Code
	v.ip = 0
	v.sp = len(v.memory)
	v.fp = len(v.memory)
	v.ra = 0
	v.tm = 0
	v.hp = 0
}

// Run executes prog from address 0 until halt. Memory and registers are
// reset first. A fatal condition stops execution with a *RuntimeError.
func (v *VM) Run(prog *Program) error {
	v.reset(prog)
	log.Debugf("running %d cells with %d memory cells", len(v.code), len(v.memory))

	for {
		if v.ip < 0 || v.ip >= len(v.code) {
			return v.fail(ErrInvalidJump)
		}
		v.fault = v.ip
		if v.trace {
			v.traceInstruction()
		}

		op := Opcode(v.code[v.ip])
		v.ip++

		var err error
		switch op {
		case OpPush:
			err = v.push(v.operand())

		case OpPop:
			_, err = v.pop()

		case OpAdd, OpSub, OpMult, OpDiv:
			err = v.arithmetic(op)

		case OpStoreWord:
			var addr, value int
			if addr, err = v.pop(); err == nil {
				if value, err = v.pop(); err == nil {
					err = v.store(addr, value)
				}
			}

		case OpLoadWord:
			var addr, value int
			if addr, err = v.pop(); err == nil {
				if value, err = v.Load(addr); err == nil {
					err = v.push(value)
				}
			}

		case OpBranch:
			v.ip = v.operand()

		case OpBranchEqual, OpBranchLessEqual:
			target := v.operand()
			var v1, v2 int
			if v1, err = v.pop(); err == nil {
				if v2, err = v.pop(); err == nil {
					if (op == OpBranchEqual && v2 == v1) || (op == OpBranchLessEqual && v2 <= v1) {
						v.ip = target
					}
				}
			}

		case OpJumpSubroutine:
			var addr int
			if addr, err = v.pop(); err == nil {
				v.ra = v.ip
				v.ip = addr
			}

		case OpLoadRA:
			err = v.push(v.ra)
		case OpStoreRA:
			v.ra, err = v.pop()
		case OpLoadTM:
			err = v.push(v.tm)
		case OpStoreTM:
			v.tm, err = v.pop()
		case OpLoadFP:
			err = v.push(v.fp)
		case OpStoreFP:
			v.fp, err = v.pop()
		case OpCopyFP:
			v.fp = v.sp
		case OpLoadHP:
			err = v.push(v.hp)
		case OpStoreHP:
			var hp int
			if hp, err = v.pop(); err == nil {
				err = v.setHeapPointer(hp)
			}

		case OpPrint:
			if v.sp >= len(v.memory) {
				err = ErrStackUnderflow
			} else {
				_, err = fmt.Fprintln(v.out, v.memory[v.sp])
			}

		case OpHalt:
			log.Debugf("halt: sp=%d hp=%d", v.sp, v.hp)
			return nil

		default:
			err = ErrInvalidOpcode
		}

		if err != nil {
			return v.fail(err)
		}
	}
}

// operand reads the operand cell following the current opcode.
func (v *VM) operand() int {
	if v.ip >= len(v.code) {
		return -1
	}
	n := v.code[v.ip]
	v.ip++
	return n
}

func (v *VM) fail(err error) error {
	rerr := &RuntimeError{Addr: v.fault, Err: err}
	if v.prog != nil {
		rerr.Line = v.prog.Line(v.fault)
		rerr.Instr = v.prog.InstructionAt(v.fault)
	}
	log.Errorf("%v", rerr)
	return rerr
}

func (v *VM) push(value int) error {
	if v.sp-1 < v.hp {
		return ErrStackOverflow
	}
	v.sp--
	v.memory[v.sp] = value
	return nil
}

func (v *VM) pop() (int, error) {
	if v.sp >= len(v.memory) {
		return 0, ErrStackUnderflow
	}
	value := v.memory[v.sp]
	v.sp++
	return value, nil
}

func (v *VM) store(addr, value int) error {
	if addr < 0 || addr >= len(v.memory) {
		return ErrInvalidAddress
	}
	v.memory[addr] = value
	return nil
}

// setHeapPointer moves the heap pointer. The heap may never reach into the
// stack.
func (v *VM) setHeapPointer(hp int) error {
	if hp < 0 {
		return ErrInvalidAddress
	}
	if hp > v.sp {
		return ErrHeapExhausted
	}
	v.hp = hp
	return nil
}

func (v *VM) arithmetic(op Opcode) error {
	v1, err := v.pop()
	if err != nil {
		return err
	}
	v2, err := v.pop()
	if err != nil {
		return err
	}
	var result int
	switch op {
	case OpAdd:
		result = v2 + v1
	case OpSub:
		result = v2 - v1
	case OpMult:
		result = v2 * v1
	case OpDiv:
		if v1 == 0 {
			return ErrDivisionByZero
		}
		result = v2 / v1
	}
	return v.push(result)
}

func (v *VM) traceInstruction() {
	top := "-"
	if v.sp < len(v.memory) {
		top = fmt.Sprint(v.memory[v.sp])
	}
	log.Debugf("%5d  %-16s %+d  sp=%d fp=%d hp=%d ra=%d tm=%d top=%s",
		v.ip, v.prog.InstructionAt(v.ip), Opcode(v.code[v.ip]).Info().StackEffect,
		v.sp, v.fp, v.hp, v.ra, v.tm, top)
}
