package trie

import (
	"fmt"
	"strings"

	"github.com/chazu/textexpander/pkg/bytecode"
)

// Disassemble returns a human-readable listing of the table: every node with
// its outgoing edges in chain order, followed by the compiled text of each
// terminal node.
func (t *Table) Disassemble() string {
	var sb strings.Builder

	sum := Fingerprint(t)
	sb.WriteString(fmt.Sprintf("; Text expander trie, fingerprint %x\n", sum[:8]))
	sb.WriteString(fmt.Sprintf("; Nodes: %d  Tables: %d  Buckets: %d  Entries: %d  Pool: %d bytes  Max short code: %d\n",
		len(t.Nodes), len(t.HashTables), len(t.Buckets), len(t.Entries), len(t.StringPool), t.MaxShortCodeLen))
	sb.WriteString("\n")

	for i, n := range t.Nodes {
		sb.WriteString(fmt.Sprintf("node %04X", i))
		if n.IsTerminal {
			sb.WriteString(fmt.Sprintf("  TERMINAL text@%04X len=%d", n.ExpandedTextOffset, n.ExpandedLenChars))
			if n.PreserveTrigger {
				sb.WriteString(" [PRESERVE]")
			}
		}
		sb.WriteString("\n")

		if n.HashTableIndex == NullIndex || int(n.HashTableIndex) >= len(t.HashTables) {
			continue
		}
		ht := t.HashTables[n.HashTableIndex]
		for b := 0; b < int(ht.NumBuckets); b++ {
			slot := int(ht.BucketsStartIndex) + b
			if slot >= len(t.Buckets) {
				sb.WriteString(fmt.Sprintf("  bucket %d: <out of range>\n", b))
				break
			}
			head := t.Buckets[slot]
			if head == NullIndex {
				continue
			}
			sb.WriteString(fmt.Sprintf("  bucket %d:", b))
			for e, hops := head, 0; e != NullIndex; e, hops = t.Entries[e].NextEntryIndex, hops+1 {
				if int(e) >= len(t.Entries) || hops >= len(t.Entries) {
					sb.WriteString(" <bad chain>")
					break
				}
				sb.WriteString(fmt.Sprintf(" %q->%04X", t.Entries[e].Key, t.Entries[e].ChildNodeIndex))
			}
			sb.WriteString("\n")
		}
	}

	for i, n := range t.Nodes {
		if !n.IsTerminal {
			continue
		}
		code, ok := t.String(n.ExpandedTextOffset)
		if !ok {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(bytecode.DisassembleWithName(code, fmt.Sprintf("node %04X", i)))
	}

	return sb.String()
}
