package bytecode

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Program is the compiled form of one expansion text.
type Program struct {
	// Code is the bytecode without a trailing terminator; the pool writer
	// appends one.
	Code []byte

	// LogicalLen counts the characters the expansion types. Commands add
	// nothing, a decoded code point adds one regardless of its encoded width.
	LogicalLen int
}

// WarningKind classifies recoverable problems found while compiling.
type WarningKind uint8

const (
	// WarnUnclosedLiteral: "{{{" without a matching "}}}". The remainder of
	// the text was copied literally.
	WarnUnclosedLiteral WarningKind = iota + 1

	// WarnInvalidUnicode: "{{u:...}}" whose body is not a hex code point
	// that can be typed. Only the opening brace was consumed.
	WarnInvalidUnicode

	// WarnUnclosedUnicode: "{{u:" without a closing "}}". Only the opening
	// brace was consumed.
	WarnUnclosedUnicode

	// WarnEmbeddedNUL: a NUL character in the text. It was dropped because
	// the string pool is zero-terminated.
	WarnEmbeddedNUL
)

// String returns a short name for the warning kind.
func (k WarningKind) String() string {
	switch k {
	case WarnUnclosedLiteral:
		return "unclosed-literal"
	case WarnInvalidUnicode:
		return "invalid-unicode"
	case WarnUnclosedUnicode:
		return "unclosed-unicode"
	case WarnEmbeddedNUL:
		return "embedded-nul"
	default:
		return fmt.Sprintf("WarningKind(%d)", k)
	}
}

// Warning describes a recoverable problem at a byte offset of the source text.
type Warning struct {
	Kind   WarningKind
	Offset int    // Byte offset of the construct in the source text
	Detail string // Offending tag body, if any
}

// String returns a human-readable description of the warning.
func (w Warning) String() string {
	switch w.Kind {
	case WarnUnclosedLiteral:
		return fmt.Sprintf("unclosed literal block %q at byte %d, treating remainder as literal", LiteralOpen, w.Offset)
	case WarnInvalidUnicode:
		return fmt.Sprintf("invalid code point %q in %s...%s at byte %d, treating as literal", w.Detail, UnicodeOpen, UnicodeClose, w.Offset)
	case WarnUnclosedUnicode:
		return fmt.Sprintf("unclosed %s tag at byte %d", UnicodeOpen, w.Offset)
	case WarnEmbeddedNUL:
		return fmt.Sprintf("NUL character at byte %d dropped", w.Offset)
	default:
		return fmt.Sprintf("%s at byte %d", w.Kind, w.Offset)
	}
}

// Compiler turns expansion text into bytecode in a single left-to-right pass.
type Compiler struct {
	src string
	pos int

	code       []byte
	logicalLen int

	// Warning collection
	warnings []Warning
}

// Compile compiles one expansion text. An empty text yields an empty
// program. Compilation never fails; malformed constructs degrade to literal
// text and are reported as warnings.
func Compile(text string) (*Program, []Warning) {
	c := &Compiler{
		src:  text,
		code: make([]byte, 0, len(text)),
	}
	c.run()
	return &Program{Code: c.code, LogicalLen: c.logicalLen}, c.warnings
}

func (c *Compiler) run() {
	for c.pos < len(c.src) {
		if c.literalBlock() {
			continue
		}
		if c.escape() {
			continue
		}
		if c.command() {
			continue
		}
		if c.unicode() {
			continue
		}
		c.char()
	}
}

// literalBlock copies everything between "{{{" and "}}}" without
// interpretation. An unclosed block swallows the rest of the text.
func (c *Compiler) literalBlock() bool {
	if !strings.HasPrefix(c.src[c.pos:], LiteralOpen) {
		return false
	}
	start := c.pos + len(LiteralOpen)
	end := strings.Index(c.src[start:], LiteralClose)
	if end < 0 {
		c.warn(WarnUnclosedLiteral, c.pos, "")
		c.literal(c.src[start:], start)
		c.pos = len(c.src)
		return true
	}
	c.literal(c.src[start:start+end], start)
	c.pos = start + end + len(LiteralClose)
	return true
}

func (c *Compiler) escape() bool {
	if !strings.HasPrefix(c.src[c.pos:], EscapeBrace) {
		return false
	}
	c.code = append(c.code, '{')
	c.logicalLen++
	c.pos += len(EscapeBrace)
	return true
}

func (c *Compiler) command() bool {
	rest := c.src[c.pos:]
	for _, op := range commandOrder {
		tok := opcodeInfoTable[op].Token
		if strings.HasPrefix(rest, tok) {
			c.code = append(c.code, byte(op))
			c.pos += len(tok)
			return true
		}
	}
	return false
}

// unicode decodes "{{u:HEX}}". When the tag is malformed it only records a
// warning and returns false, so the caller consumes the opening brace as a
// plain character and the tag body is scanned again as ordinary text.
func (c *Compiler) unicode() bool {
	if !strings.HasPrefix(c.src[c.pos:], UnicodeOpen) {
		return false
	}
	start := c.pos + len(UnicodeOpen)
	end := strings.Index(c.src[start:], UnicodeClose)
	if end < 0 {
		c.warn(WarnUnclosedUnicode, c.pos, "")
		return false
	}
	hex := c.src[start : start+end]
	r, ok := parseCodePoint(hex)
	if !ok {
		c.warn(WarnInvalidUnicode, c.pos, hex)
		return false
	}
	c.code = utf8.AppendRune(c.code, r)
	c.logicalLen++
	c.pos = start + end + len(UnicodeClose)
	return true
}

func (c *Compiler) char() {
	r, size := utf8.DecodeRuneInString(c.src[c.pos:])
	if r == 0 {
		c.warn(WarnEmbeddedNUL, c.pos, "")
		c.pos += size
		return
	}
	c.code = append(c.code, c.src[c.pos:c.pos+size]...)
	c.logicalLen++
	c.pos += size
}

// literal appends verbatim text, one logical character per rune. NULs are
// dropped as in char.
func (c *Compiler) literal(s string, offset int) {
	for i, r := range s {
		if r == 0 {
			c.warn(WarnEmbeddedNUL, offset+i, "")
			continue
		}
		c.logicalLen++
	}
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	c.code = append(c.code, s...)
}

func (c *Compiler) warn(kind WarningKind, offset int, detail string) {
	c.warnings = append(c.warnings, Warning{Kind: kind, Offset: offset, Detail: detail})
}

// parseCodePoint accepts plain hexadecimal digits naming a typeable Unicode
// scalar value. NUL, surrogates and values past U+10FFFF are rejected.
func parseCodePoint(hex string) (rune, bool) {
	if hex == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, false
	}
	r := rune(v)
	if r == 0 || !utf8.ValidRune(r) {
		return 0, false
	}
	return r, true
}
