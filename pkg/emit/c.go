// Package emit renders a serialized trie as C source for firmware builds.
//
// The generated source defines the arrays declared by the firmware's trie
// header, all named after a common prefix:
//
//	const uint16_t <prefix>_trie_num_nodes;
//	const char <prefix>_string_pool[];
//	const struct trie_node <prefix>_trie_nodes[];
//	const struct trie_hash_table <prefix>_hash_tables[];
//	const uint16_t <prefix>_hash_buckets[];
//	const struct trie_hash_entry <prefix>_hash_entries[];
//	const char *<prefix>_get_string(uint16_t offset);
//
// The companion header defines <PREFIX>_GENERATED_MAX_SHORT_LEN.
package emit

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chazu/textexpander/pkg/trie"
)

// DefaultPrefix is the symbol prefix used by the firmware.
const DefaultPrefix = "zmk_text_expander"

// DefaultInclude is the header that declares the trie structs.
const DefaultInclude = "zmk/trie.h"

// ErrKeyNotRepresentable is returned when a table cannot be expressed with
// the firmware's C types: entry keys are a plain char and bucket counts are
// a uint8_t.
var ErrKeyNotRepresentable = errors.New("emit: value not representable in C table")

// maxCBuckets is the largest num_buckets a uint8_t field holds.
const maxCBuckets = 0xFF

// Options controls the generated symbol names.
type Options struct {
	// Prefix names every generated symbol. Empty means DefaultPrefix.
	Prefix string
	// Include is the trie header pulled in by the source. Empty means
	// DefaultInclude.
	Include string
}

func (o Options) prefix() string {
	if o.Prefix == "" {
		return DefaultPrefix
	}
	return o.Prefix
}

func (o Options) include() string {
	if o.Include == "" {
		return DefaultInclude
	}
	return o.Include
}

// Check reports whether tbl can be rendered as C. It is called by WriteSource
// before anything is written.
func Check(tbl *trie.Table) error {
	for i, e := range tbl.Entries {
		if e.Key < 0 || e.Key > 0x7F {
			return fmt.Errorf("%w: entry %d key %q is not ASCII", ErrKeyNotRepresentable, i, e.Key)
		}
	}
	for i, ht := range tbl.HashTables {
		if ht.NumBuckets > maxCBuckets {
			return fmt.Errorf("%w: hash table %d has %d buckets (max %d)", ErrKeyNotRepresentable, i, ht.NumBuckets, maxCBuckets)
		}
	}
	return nil
}

// WriteSource writes the C definitions of tbl to w.
func WriteSource(w io.Writer, tbl *trie.Table, opts Options) error {
	if err := Check(tbl); err != nil {
		return err
	}
	p := opts.prefix()
	sum := trie.Fingerprint(tbl)

	var sb strings.Builder
	fmt.Fprintf(&sb, "// Automatically generated file. Do not edit.\n")
	fmt.Fprintf(&sb, "// Trie fingerprint: %x\n\n", sum)
	fmt.Fprintf(&sb, "#include <%s>\n#include <stddef.h> // For NULL\n\n", opts.include())

	fmt.Fprintf(&sb, "const uint16_t %s_trie_num_nodes = %d;\n\n", p, tbl.NumNodes())
	fmt.Fprintf(&sb, "const char %s_string_pool[] = \"%s\";\n\n", p, EscapeString(tbl.StringPool))

	fmt.Fprintf(&sb, "const struct trie_node %s_trie_nodes[] = {\n", p)
	for _, n := range tbl.Nodes {
		fmt.Fprintf(&sb, "    { .hash_table_index = %d, .expanded_text_offset = %d, .expanded_len_chars = %d, .is_terminal = %d, .preserve_trigger = %d },\n",
			n.HashTableIndex, n.ExpandedTextOffset, n.ExpandedLenChars, boolInt(n.IsTerminal), boolInt(n.PreserveTrigger))
	}
	sb.WriteString("};\n\n")

	fmt.Fprintf(&sb, "const struct trie_hash_table %s_hash_tables[] = {\n", p)
	for _, ht := range tbl.HashTables {
		fmt.Fprintf(&sb, "    { .buckets_start_index = %d, .num_buckets = %d },\n", ht.BucketsStartIndex, ht.NumBuckets)
	}
	sb.WriteString("};\n\n")

	fmt.Fprintf(&sb, "const uint16_t %s_hash_buckets[] = {\n", p)
	if len(tbl.Buckets) > 0 {
		parts := make([]string, len(tbl.Buckets))
		for i, b := range tbl.Buckets {
			parts[i] = fmt.Sprint(b)
		}
		fmt.Fprintf(&sb, "    %s\n", strings.Join(parts, ", "))
	}
	sb.WriteString("};\n\n")

	fmt.Fprintf(&sb, "const struct trie_hash_entry %s_hash_entries[] = {\n", p)
	for _, e := range tbl.Entries {
		fmt.Fprintf(&sb, "    { .key = %s, .child_node_index = %d, .next_entry_index = %d },\n",
			CharLiteral(byte(e.Key)), e.ChildNodeIndex, e.NextEntryIndex)
	}
	sb.WriteString("};\n\n")

	fmt.Fprintf(&sb, "const char *%s_get_string(uint16_t offset) {\n", p)
	fmt.Fprintf(&sb, "    if (offset >= sizeof(%s_string_pool)) return NULL;\n", p)
	fmt.Fprintf(&sb, "    return &%s_string_pool[offset];\n}\n", p)

	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteHeader writes the generated header carrying the longest short code
// length, which the firmware uses to size its key buffer.
func WriteHeader(w io.Writer, tbl *trie.Table, opts Options) error {
	maxLen := 0
	if tbl != nil {
		maxLen = tbl.MaxShortCodeLen
	}
	_, err := fmt.Fprintf(w, "#pragma once\n// Automatically generated file. Do not edit.\n#define %s_GENERATED_MAX_SHORT_LEN %d\n",
		strings.ToUpper(opts.prefix()), maxLen)
	return err
}

// WriteEmptySource writes a source file with zero nodes. Builds that have no
// definitions still link against these symbols.
func WriteEmptySource(w io.Writer, opts Options) error {
	p := opts.prefix()
	var sb strings.Builder
	fmt.Fprintf(&sb, "// Automatically generated file. Do not edit.\n\n")
	fmt.Fprintf(&sb, "#include <%s>\n#include <stddef.h>\n\n", opts.include())
	fmt.Fprintf(&sb, "const uint16_t %s_trie_num_nodes = 0;\n", p)
	fmt.Fprintf(&sb, "const struct trie_node %s_trie_nodes[] = {};\n", p)
	fmt.Fprintf(&sb, "const struct trie_hash_table %s_hash_tables[] = {};\n", p)
	fmt.Fprintf(&sb, "const struct trie_hash_entry %s_hash_entries[] = {};\n", p)
	fmt.Fprintf(&sb, "const uint16_t %s_hash_buckets[] = {};\n", p)
	fmt.Fprintf(&sb, "const char %s_string_pool[] = \"\";\n", p)
	fmt.Fprintf(&sb, "const char *%s_get_string(uint16_t offset) { return NULL; }\n", p)
	_, err := io.WriteString(w, sb.String())
	return err
}

// EscapeString renders b as the body of a C string literal. Printable ASCII
// passes through, quotes and backslashes are escaped, and everything else
// (including the NUL terminators between pool strings) becomes a
// three-digit octal escape so a following digit cannot extend it.
func EscapeString(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c >= 0x20 && c <= 0x7E:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, `\%03o`, c)
		}
	}
	return sb.String()
}

// CharLiteral renders c as a C character literal.
func CharLiteral(c byte) string {
	switch {
	case c == '\'':
		return `'\''`
	case c == '\\':
		return `'\\'`
	case c >= 0x20 && c <= 0x7E:
		return "'" + string(rune(c)) + "'"
	default:
		return fmt.Sprintf(`'\%03o'`, c)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
