package bytecode

import (
	"fmt"
	"strings"
)

// Segment is one decoded piece of compiled text: either a run of literal
// bytes or a single command opcode.
type Segment struct {
	Offset int    // Byte offset in the code
	Op     Opcode // Command opcode, zero for text runs
	Text   []byte // Literal bytes, nil for commands
}

// IsCommand reports whether the segment is a command.
func (s Segment) IsCommand() bool {
	return s.Op.IsCommand()
}

// Segments splits bytecode into text runs and commands in code order.
func Segments(code []byte) []Segment {
	var segs []Segment
	start := 0
	flush := func(end int) {
		if end > start {
			segs = append(segs, Segment{Offset: start, Text: code[start:end]})
		}
	}
	for i, b := range code {
		op := Opcode(b)
		if !op.IsCommand() {
			continue
		}
		flush(i)
		segs = append(segs, Segment{Offset: i, Op: op})
		start = i + 1
	}
	flush(len(code))
	return segs
}

// Disassemble returns a human-readable listing of compiled text.
func Disassemble(code []byte) string {
	return DisassembleWithName(code, "")
}

// DisassembleWithName returns a listing with a name header.
func DisassembleWithName(code []byte, name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; %d bytes\n", len(code)))

	for _, seg := range Segments(code) {
		if seg.IsCommand() {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", seg.Offset, seg.Op))
			continue
		}
		sb.WriteString(fmt.Sprintf("%04X  TEXT %q\n", seg.Offset, seg.Text))
	}

	return sb.String()
}
