package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Assembler: SVM text to code array
// ---------------------------------------------------------------------------

// AssembleError reports a malformed assembly line.
type AssembleError struct {
	Line int
	Msg  string
}

func (e *AssembleError) Error() string {
	return fmt.Sprintf("asm line %d: %s", e.Line, e.Msg)
}

// Assemble translates assembly text, one instruction or label per line,
// into a Program. Labels may be used before they are defined.
func Assemble(text string) (*Program, error) {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if text == "" {
		lines = nil
	}
	prog := &Program{
		Lines:  lines,
		Labels: make(map[string]int),
	}

	type fixup struct {
		addr  int
		label string
		line  int
	}
	var fixups []fixup

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") {
			label := strings.TrimSuffix(line, ":")
			if label == "" || strings.ContainsAny(label, " \t") {
				return nil, &AssembleError{Line: lineNo, Msg: fmt.Sprintf("invalid label %q", line)}
			}
			if _, dup := prog.Labels[label]; dup {
				return nil, &AssembleError{Line: lineNo, Msg: fmt.Sprintf("label %s already defined", label)}
			}
			prog.Labels[label] = len(prog.Code)
			continue
		}

		fields := strings.Fields(line)
		op, ok := LookupOpcode(fields[0])
		if !ok {
			return nil, &AssembleError{Line: lineNo, Msg: fmt.Sprintf("unknown instruction %q", fields[0])}
		}
		prog.Code = append(prog.Code, int(op))
		prog.SourceMap = append(prog.SourceMap, lineNo)

		if !op.HasOperand() {
			if len(fields) != 1 {
				return nil, &AssembleError{Line: lineNo, Msg: fmt.Sprintf("%s takes no operand", op)}
			}
			continue
		}
		if len(fields) != 2 {
			return nil, &AssembleError{Line: lineNo, Msg: fmt.Sprintf("%s takes one operand", op)}
		}

		arg := fields[1]
		if n, err := strconv.Atoi(arg); err == nil {
			if op != OpPush {
				return nil, &AssembleError{Line: lineNo, Msg: fmt.Sprintf("%s needs a label, got %s", op, arg)}
			}
			prog.Code = append(prog.Code, n)
		} else {
			fixups = append(fixups, fixup{addr: len(prog.Code), label: arg, line: lineNo})
			prog.Code = append(prog.Code, 0)
		}
		prog.SourceMap = append(prog.SourceMap, lineNo)
	}

	for _, f := range fixups {
		addr, ok := prog.Labels[f.label]
		if !ok {
			return nil, &AssembleError{Line: f.line, Msg: fmt.Sprintf("undefined label %s", f.label)}
		}
		prog.Code[f.addr] = addr
	}

	log.Debugf("assembled %d lines into %d cells", len(lines), len(prog.Code))
	return prog, nil
}
