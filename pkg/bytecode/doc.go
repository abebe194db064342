// Package bytecode compiles text-expander expansion strings into the byte
// format interpreted by the keyboard firmware.
//
// Compiled text is plain UTF-8 interleaved with single-byte command opcodes.
// The firmware types literal bytes as keystrokes and executes commands as
// side effects. A program has no header and no terminator; the string pool
// zero-terminates each program when the trie is serialized.
//
// # Source syntax
//
// The compiler scans the text once, left to right, trying these rules in
// order at every position:
//
//   - Literal block: "{{{" ... "}}}" is copied verbatim. Nothing inside is
//     interpreted. A missing "}}}" makes the rest of the text literal.
//
//   - Escape: `\{` types a single "{".
//
//   - Commands: "{{cmd:win}}", "{{cmd:mac}}" and "{{cmd:linux}}" compile to
//     OpCmdWin, OpCmdMac and OpCmdLinux.
//
//   - Unicode: "{{u:HEX}}" types the code point HEX. A malformed or unclosed
//     tag is not an error: only its "{" is taken literally and scanning
//     resumes at the next character, so the body is typed as ordinary text.
//
//   - Anything else is typed as is.
//
// # Logical length
//
// Every program carries the number of characters it types. The firmware uses
// it to undo an expansion with backspaces, so commands count zero and a
// decoded code point counts one however many bytes it encodes to.
package bytecode
