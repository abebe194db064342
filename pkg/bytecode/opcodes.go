package bytecode

import "fmt"

// Opcode is a single-byte command embedded in compiled expansion text.
// Every byte of compiled text that is not an opcode is literal UTF-8 to be
// typed by the firmware.
type Opcode byte

const (
	// ========================================================================
	// OS commands (0x01-0x03)
	// ========================================================================

	OpCmdWin   Opcode = 0x01 // Switch the typing driver to Windows conventions
	OpCmdMac   Opcode = 0x02 // Switch the typing driver to macOS conventions
	OpCmdLinux Opcode = 0x03 // Switch the typing driver to Linux conventions
)

// Source syntax recognised by the compiler.
const (
	LiteralOpen  = "{{{"
	LiteralClose = "}}}"
	EscapeBrace  = `\{`
	UnicodeOpen  = "{{u:"
	UnicodeClose = "}}"
)

// OpcodeInfo provides metadata about each opcode for listings and the
// compiler's token matcher.
type OpcodeInfo struct {
	Name  string // Human-readable name
	Token string // Source token that compiles to this opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpCmdWin:   {"CMD_WIN", "{{cmd:win}}"},
	OpCmdMac:   {"CMD_MAC", "{{cmd:mac}}"},
	OpCmdLinux: {"CMD_LINUX", "{{cmd:linux}}"},
}

// commandOrder fixes the order in which command tokens are tried.
var commandOrder = []Opcode{OpCmdWin, OpCmdMac, OpCmdLinux}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an "UNKNOWN" info for bytes that are not opcodes.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// String returns the opcode name.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsCommand reports whether op is one of the OS command opcodes.
func (op Opcode) IsCommand() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// Commands returns the command opcodes in matching order.
func Commands() []Opcode {
	return append([]Opcode(nil), commandOrder...)
}
