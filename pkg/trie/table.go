package trie

import (
	"bytes"
	"errors"
	"fmt"
)

// NullIndex marks an absent hash table, text offset or chain link.
const NullIndex uint16 = 0xFFFF

// MaxPoolSize is the largest string pool whose offsets fit in a uint16.
const MaxPoolSize = 0xFFFF

// ErrCorrupt reports a decoded table whose indices do not describe a trie.
var ErrCorrupt = errors.New("trie: corrupt table")

// Node is the serialized form of one trie node.
type Node struct {
	HashTableIndex     uint16 `cbor:"1,keyasint"` // NullIndex if the node has no children
	ExpandedTextOffset uint16 `cbor:"2,keyasint"` // NullIndex if the node is not terminal
	ExpandedLenChars   uint16 `cbor:"3,keyasint"`
	IsTerminal         bool   `cbor:"4,keyasint"`
	PreserveTrigger    bool   `cbor:"5,keyasint"`
}

// HashTable describes the buckets of one node's children.
type HashTable struct {
	BucketsStartIndex uint16 `cbor:"1,keyasint"`
	NumBuckets        uint16 `cbor:"2,keyasint"` // Power of two, at least 1
}

// HashEntry is one parent-to-child edge. Entries sharing a bucket are
// chained through NextEntryIndex.
type HashEntry struct {
	Key            rune   `cbor:"1,keyasint"`
	ChildNodeIndex uint16 `cbor:"2,keyasint"`
	NextEntryIndex uint16 `cbor:"3,keyasint"` // NullIndex ends the chain
}

// Table is the flat, index-addressed layout of a serialized trie. Node 0 is
// the root.
type Table struct {
	Nodes      []Node      `cbor:"1,keyasint"`
	HashTables []HashTable `cbor:"2,keyasint"`
	Buckets    []uint16    `cbor:"3,keyasint"` // Chain heads, one run per table
	Entries    []HashEntry `cbor:"4,keyasint"`
	StringPool []byte      `cbor:"5,keyasint"` // Zero-terminated bytecode

	// MaxShortCodeLen is the longest short code in characters.
	MaxShortCodeLen int `cbor:"6,keyasint"`
}

// NumNodes returns the node count.
func (t *Table) NumNodes() int {
	return len(t.Nodes)
}

// Child follows the edge labelled key out of node the way the firmware does:
// hash to a bucket, walk its chain, take the first entry with a matching key.
func (t *Table) Child(node uint16, key rune) (uint16, bool) {
	if int(node) >= len(t.Nodes) {
		return 0, false
	}
	htIdx := t.Nodes[node].HashTableIndex
	if htIdx == NullIndex || int(htIdx) >= len(t.HashTables) {
		return 0, false
	}
	ht := t.HashTables[htIdx]
	if ht.NumBuckets == 0 {
		return 0, false
	}
	bucket := int(ht.BucketsStartIndex) + int(uint32(key)%uint32(ht.NumBuckets))
	if bucket >= len(t.Buckets) {
		return 0, false
	}
	// A well-formed chain visits each entry at most once.
	for e, hops := t.Buckets[bucket], 0; e != NullIndex && hops < len(t.Entries); hops++ {
		if int(e) >= len(t.Entries) {
			return 0, false
		}
		entry := t.Entries[e]
		if entry.Key == key {
			return entry.ChildNodeIndex, true
		}
		e = entry.NextEntryIndex
	}
	return 0, false
}

// Validate checks that every index in the table is in range and that bucket
// chains end. Tables built by Serialize always pass; decoded tables are
// checked before use.
func (t *Table) Validate() error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("%w: no root node", ErrCorrupt)
	}
	for i, n := range t.Nodes {
		if n.HashTableIndex != NullIndex && int(n.HashTableIndex) >= len(t.HashTables) {
			return fmt.Errorf("%w: node %d hash table %d out of range", ErrCorrupt, i, n.HashTableIndex)
		}
		if n.IsTerminal && int(n.ExpandedTextOffset) >= len(t.StringPool) {
			return fmt.Errorf("%w: node %d text offset %d out of range", ErrCorrupt, i, n.ExpandedTextOffset)
		}
	}
	for i, ht := range t.HashTables {
		start, end := int(ht.BucketsStartIndex), int(ht.BucketsStartIndex)+int(ht.NumBuckets)
		if ht.NumBuckets == 0 || end > len(t.Buckets) {
			return fmt.Errorf("%w: hash table %d buckets [%d,%d) out of range", ErrCorrupt, i, start, end)
		}
		for b := start; b < end; b++ {
			hops := 0
			for e := t.Buckets[b]; e != NullIndex; e = t.Entries[e].NextEntryIndex {
				if int(e) >= len(t.Entries) {
					return fmt.Errorf("%w: bucket %d entry %d out of range", ErrCorrupt, b, e)
				}
				if hops++; hops > len(t.Entries) {
					return fmt.Errorf("%w: bucket %d chain does not end", ErrCorrupt, b)
				}
				if int(t.Entries[e].ChildNodeIndex) >= len(t.Nodes) {
					return fmt.Errorf("%w: entry %d child %d out of range", ErrCorrupt, e, t.Entries[e].ChildNodeIndex)
				}
			}
		}
	}
	return nil
}

// NodeForKey walks key from the root and returns the node it ends on,
// terminal or not.
func (t *Table) NodeForKey(key string) (uint16, bool) {
	if len(t.Nodes) == 0 {
		return 0, false
	}
	var cur uint16
	for _, r := range key {
		next, ok := t.Child(cur, r)
		if !ok {
			return 0, false
		}
		cur = next
	}
	return cur, true
}

// Search returns the node for key if key is a declared short code.
func (t *Table) Search(key string) (Node, bool) {
	idx, ok := t.NodeForKey(key)
	if !ok || !t.Nodes[idx].IsTerminal {
		return Node{}, false
	}
	return t.Nodes[idx], true
}

// String returns the bytecode stored at offset in the pool, without its
// terminator. It reports false when offset is outside the pool.
func (t *Table) String(offset uint16) ([]byte, bool) {
	if int(offset) >= len(t.StringPool) {
		return nil, false
	}
	s := t.StringPool[offset:]
	if end := bytes.IndexByte(s, 0); end >= 0 {
		s = s[:end]
	}
	return s, true
}

// Expansion looks up key and returns its bytecode and node.
func (t *Table) Expansion(key string) ([]byte, Node, bool) {
	n, ok := t.Search(key)
	if !ok {
		return nil, Node{}, false
	}
	code, ok := t.String(n.ExpandedTextOffset)
	if !ok {
		return nil, Node{}, false
	}
	return code, n, true
}
