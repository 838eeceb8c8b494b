package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single SVM instruction. In the code array an opcode
// is followed by its operand, if it has one.
type Opcode int

// Stack and arithmetic
const (
	OpPush Opcode = iota + 1 // push n|label
	OpPop                    // discard top of stack
	OpAdd                    // v1=pop, v2=pop, push v2+v1
	OpSub                    // push v2-v1
	OpMult                   // push v2*v1
	OpDiv                    // push v2/v1
)

// Memory
const (
	OpStoreWord Opcode = iota + 0x10 // sw: address=pop, memory[address]=pop
	OpLoadWord                       // lw: address=pop, push memory[address]
)

// Control flow
const (
	OpBranch          Opcode = iota + 0x20 // b label
	OpBranchEqual                          // beq label: v1=pop, v2=pop, branch if v2==v1
	OpBranchLessEqual                      // bleq label: branch if v2<=v1
	OpJumpSubroutine                       // js: address=pop, ra=ip, ip=address
)

// Registers
const (
	OpLoadRA  Opcode = iota + 0x30 // lra: push ra
	OpStoreRA                      // sra: ra=pop
	OpLoadTM                       // ltm: push tm
	OpStoreTM                      // stm: tm=pop
	OpLoadFP                       // lfp: push fp
	OpStoreFP                      // sfp: fp=pop
	OpCopyFP                       // cfp: fp=sp
	OpLoadHP                       // lhp: push hp
	OpStoreHP                      // shp: hp=pop
)

// Miscellaneous
const (
	OpPrint Opcode = iota + 0x40 // print top of stack without popping
	OpHalt                       // stop execution
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string // assembly mnemonic
	HasOperand  bool   // followed by one operand cell
	StackEffect int    // net effect on stack
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpPush: {"push", true, 1},
	OpPop:  {"pop", false, -1},
	OpAdd:  {"add", false, -1},
	OpSub:  {"sub", false, -1},
	OpMult: {"mult", false, -1},
	OpDiv:  {"div", false, -1},

	OpStoreWord: {"sw", false, -2},
	OpLoadWord:  {"lw", false, 0},

	OpBranch:          {"b", true, 0},
	OpBranchEqual:     {"beq", true, -2},
	OpBranchLessEqual: {"bleq", true, -2},
	OpJumpSubroutine:  {"js", false, -1},

	OpLoadRA:  {"lra", false, 1},
	OpStoreRA: {"sra", false, -1},
	OpLoadTM:  {"ltm", false, 1},
	OpStoreTM: {"stm", false, -1},
	OpLoadFP:  {"lfp", false, 1},
	OpStoreFP: {"sfp", false, -1},
	OpCopyFP:  {"cfp", false, 0},
	OpLoadHP:  {"lhp", false, 1},
	OpStoreHP: {"shp", false, -1},

	OpPrint: {"print", false, 0},
	OpHalt:  {"halt", false, 0},
}

// mnemonics maps assembly mnemonics back to opcodes.
var mnemonics = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.Name] = op
	}
	return m
}()

// LookupOpcode returns the opcode for an assembly mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := mnemonics[name]
	return op, ok
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", int(op))}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the assembly mnemonic of an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// HasOperand reports whether the opcode is followed by an operand cell.
func (op Opcode) HasOperand() bool {
	return op.Info().HasOperand
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// Program: assembled code
// ---------------------------------------------------------------------------

// Program is an assembled SVM program: the code array plus the assembly
// lines it came from, for diagnostics.
type Program struct {
	// Code holds opcodes and their operands.
	Code []int
	// SourceMap maps each code address to the 1-based assembly line of the
	// instruction occupying it.
	SourceMap []int
	// Lines are the assembly source lines.
	Lines []string
	// Labels maps label names to code addresses.
	Labels map[string]int
}

// Line returns the 1-based assembly line for a code address, or 0.
func (p *Program) Line(addr int) int {
	if addr < 0 || addr >= len(p.SourceMap) {
		return 0
	}
	return p.SourceMap[addr]
}

// Text returns the assembly source of the program.
func (p *Program) Text() string {
	if len(p.Lines) == 0 {
		return ""
	}
	return strings.Join(p.Lines, "\n") + "\n"
}

// InstructionAt decodes the instruction starting at addr.
func (p *Program) InstructionAt(addr int) string {
	if addr < 0 || addr >= len(p.Code) {
		return "<out of code>"
	}
	op := Opcode(p.Code[addr])
	if !op.Valid() {
		return op.Name()
	}
	if op.HasOperand() && addr+1 < len(p.Code) {
		return op.Name() + " " + strconv.Itoa(p.Code[addr+1])
	}
	return op.Name()
}

// Disassemble returns a listing of the code, one instruction per line,
// prefixed with its address.
func (p *Program) Disassemble() string {
	var b strings.Builder
	for addr := 0; addr < len(p.Code); {
		fmt.Fprintf(&b, "%4d  %s\n", addr, p.InstructionAt(addr))
		op := Opcode(p.Code[addr])
		addr++
		if op.HasOperand() {
			addr++
		}
	}
	return b.String()
}
