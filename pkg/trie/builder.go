package trie

import (
	"fmt"
	"unicode/utf8"

	"github.com/tliron/commonlog"

	"github.com/chazu/textexpander/pkg/bytecode"
)

var log = commonlog.GetLogger("expandc.trie")

// Definition is one short code and what it expands to, as supplied by the
// manifest loader. Short codes are expected to be normalised and free of
// whitespace already.
type Definition struct {
	ShortCode       string
	Text            string
	PreserveTrigger bool
}

// Diagnostic is a compiler warning attributed to the short code whose text
// produced it.
type Diagnostic struct {
	ShortCode string
	Warning   bytecode.Warning
}

// String returns a human-readable description of the diagnostic.
func (d Diagnostic) String() string {
	return fmt.Sprintf("short code %q: %s", d.ShortCode, d.Warning)
}

// nodeID is the arena index of a node. It is not the serialized index; those
// are assigned breadth-first by Serialize.
type nodeID int

const rootID nodeID = 0

type node struct {
	children map[rune]nodeID

	terminal        bool
	code            []byte
	logicalLen      int
	preserveTrigger bool
}

// Trie is the in-memory prefix tree built from definitions. Nodes live in a
// single arena and refer to their children by arena index.
type Trie struct {
	nodes       []node
	maxShortLen int
	diagnostics []Diagnostic
}

// New returns a trie holding only the root, which stands for the empty
// prefix.
func New() *Trie {
	return &Trie{nodes: []node{{}}}
}

// Build inserts every definition in order. Later definitions of the same
// short code replace earlier ones.
func Build(defs []Definition) *Trie {
	t := New()
	for _, def := range defs {
		t.Insert(def)
	}
	return t
}

// Insert walks or creates the path for def.ShortCode, marks its last node
// terminal and stores the compiled text there. Compiler warnings are logged
// and returned.
func (t *Trie) Insert(def Definition) []bytecode.Warning {
	id := rootID
	for _, r := range def.ShortCode {
		id = t.child(id, r)
	}

	prog, warns := bytecode.Compile(def.Text)
	n := &t.nodes[id]
	if n.terminal {
		log.Debugf("short code %q redefined, keeping the last definition", def.ShortCode)
	}
	n.terminal = true
	n.code = prog.Code
	n.logicalLen = prog.LogicalLen
	n.preserveTrigger = def.PreserveTrigger

	if l := utf8.RuneCountInString(def.ShortCode); l > t.maxShortLen {
		t.maxShortLen = l
	}

	for _, w := range warns {
		d := Diagnostic{ShortCode: def.ShortCode, Warning: w}
		log.Warningf("%s", d)
		t.diagnostics = append(t.diagnostics, d)
	}
	return warns
}

// child returns the child of parent for r, creating it if needed.
func (t *Trie) child(parent nodeID, r rune) nodeID {
	if id, ok := t.nodes[parent].children[r]; ok {
		return id
	}
	id := nodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{})
	p := &t.nodes[parent]
	if p.children == nil {
		p.children = make(map[rune]nodeID)
	}
	p.children[r] = id
	return id
}

// NodeCount returns the number of nodes including the root.
func (t *Trie) NodeCount() int {
	return len(t.nodes)
}

// MaxShortCodeLen returns the length in characters of the longest short code
// inserted so far, or 0 if none.
func (t *Trie) MaxShortCodeLen() int {
	return t.maxShortLen
}

// Diagnostics returns the compiler warnings collected while inserting.
func (t *Trie) Diagnostics() []Diagnostic {
	return t.diagnostics
}
