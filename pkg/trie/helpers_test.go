package trie

import "github.com/chazu/textexpander/pkg/bytecode"

// compileText returns the code and logical length the compiler produces for
// text, for comparison against serialized nodes.
func compileText(text string) ([]byte, int) {
	prog, _ := bytecode.Compile(text)
	return prog.Code, prog.LogicalLen
}
