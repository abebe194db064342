package trie

import (
	"errors"
	"fmt"
	"slices"
)

// Limits of the 16-bit index spaces. NullIndex itself is never a valid
// index, so every count stays strictly below it.
var (
	ErrTooManyNodes       = errors.New("trie: node count exceeds 16-bit index space")
	ErrTooManyEntries     = errors.New("trie: hash entry count exceeds 16-bit index space")
	ErrTooManyBuckets     = errors.New("trie: hash bucket count exceeds 16-bit index space")
	ErrStringPoolOverflow = errors.New("trie: string pool exceeds 64KB limit")
)

// Compile builds a trie from defs and serializes it.
func Compile(defs []Definition) (*Table, error) {
	return Build(defs).Serialize()
}

// Serialize lays the trie out as flat arrays. Indices are assigned
// breadth-first from the root with children in ascending character order,
// so the same definitions always produce the same table.
func (t *Trie) Serialize() (*Table, error) {
	order := t.bfsOrder()
	if len(order) >= int(NullIndex) {
		return nil, fmt.Errorf("%w: %d nodes", ErrTooManyNodes, len(order))
	}

	index := make([]uint16, len(t.nodes))
	for i, id := range order {
		index[id] = uint16(i)
	}

	tbl := &Table{
		Nodes:           make([]Node, len(order)),
		MaxShortCodeLen: t.maxShortLen,
	}

	for i, id := range order {
		n := &t.nodes[id]
		out := Node{
			HashTableIndex:     NullIndex,
			ExpandedTextOffset: NullIndex,
			PreserveTrigger:    true,
		}

		if len(n.children) > 0 {
			htIdx, err := tbl.addHashTable(n, index)
			if err != nil {
				return nil, err
			}
			out.HashTableIndex = htIdx
		}

		if n.terminal {
			offset, err := tbl.addString(n.code)
			if err != nil {
				return nil, err
			}
			out.IsTerminal = true
			out.ExpandedTextOffset = offset
			out.ExpandedLenChars = uint16(n.logicalLen)
			out.PreserveTrigger = n.preserveTrigger
		}

		tbl.Nodes[i] = out
	}

	log.Debugf("serialized %d nodes, %d hash tables, %d entries, %d pool bytes",
		len(tbl.Nodes), len(tbl.HashTables), len(tbl.Entries), len(tbl.StringPool))
	return tbl, nil
}

// bfsOrder returns arena ids in breadth-first order from the root.
func (t *Trie) bfsOrder() []nodeID {
	order := make([]nodeID, 0, len(t.nodes))
	order = append(order, rootID)
	for head := 0; head < len(order); head++ {
		n := &t.nodes[order[head]]
		for _, r := range sortedKeys(n.children) {
			order = append(order, n.children[r])
		}
	}
	return order
}

// addHashTable appends a table, its buckets and one entry per child of n.
// Each new entry becomes the head of its bucket's chain.
func (tbl *Table) addHashTable(n *node, index []uint16) (uint16, error) {
	numBuckets := nextPowerOfTwo(len(n.children))
	start := len(tbl.Buckets)
	if start+numBuckets >= int(NullIndex) {
		return 0, fmt.Errorf("%w: %d buckets", ErrTooManyBuckets, start+numBuckets)
	}

	htIdx := uint16(len(tbl.HashTables))
	tbl.HashTables = append(tbl.HashTables, HashTable{
		BucketsStartIndex: uint16(start),
		NumBuckets:        uint16(numBuckets),
	})

	for range numBuckets {
		tbl.Buckets = append(tbl.Buckets, NullIndex)
	}
	buckets := tbl.Buckets[start:]

	for _, r := range sortedKeys(n.children) {
		entryIdx := len(tbl.Entries)
		if entryIdx+1 >= int(NullIndex) {
			return 0, fmt.Errorf("%w: %d entries", ErrTooManyEntries, entryIdx+1)
		}
		b := int(uint32(r) % uint32(numBuckets))
		tbl.Entries = append(tbl.Entries, HashEntry{
			Key:            r,
			ChildNodeIndex: index[n.children[r]],
			NextEntryIndex: buckets[b],
		})
		buckets[b] = uint16(entryIdx)
	}
	return htIdx, nil
}

// addString appends code and its terminator to the pool.
func (tbl *Table) addString(code []byte) (uint16, error) {
	offset := len(tbl.StringPool)
	if offset+len(code)+1 > MaxPoolSize {
		return 0, fmt.Errorf("%w: %d bytes needed", ErrStringPoolOverflow, offset+len(code)+1)
	}
	tbl.StringPool = append(tbl.StringPool, code...)
	tbl.StringPool = append(tbl.StringPool, 0)
	return uint16(offset), nil
}

func sortedKeys(m map[rune]nodeID) []rune {
	keys := make([]rune, 0, len(m))
	for r := range m {
		keys = append(keys, r)
	}
	slices.Sort(keys)
	return keys
}

// nextPowerOfTwo returns the smallest power of two >= n, and 1 for n <= 1.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
