package manifest

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tliron/commonlog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chazu/textexpander/pkg/trie"
)

var log = commonlog.GetLogger("expandc.manifest")

// Definitions flattens every expander into the ordered definition list the
// trie compiler consumes.
//
// Short codes are lower-cased unless the expander is case sensitive.
// Entries missing a short code or text, and short codes containing
// whitespace, are skipped with a warning. A later definition of the same
// short code replaces the earlier one but keeps its position.
//
// The trigger policy per entry: preserve-trigger wins, then
// disable-preserve-trigger, then the expander default (preserve unless the
// expander sets disable-preserve-trigger).
func (m *Manifest) Definitions() []trie.Definition {
	var defs []trie.Definition
	index := make(map[string]int)
	lower := cases.Lower(language.Und)

	for gi, exp := range m.Expanders {
		group := exp.Name
		if group == "" {
			group = fmt.Sprintf("expander %d", gi)
		}

		for ei, e := range exp.Expansions {
			if e.ShortCode == nil || e.ExpandedText == nil {
				log.Warningf("%s: expansion %d needs both short-code and expanded-text, skipping", group, ei)
				continue
			}

			code := *e.ShortCode
			if !exp.CaseSensitive {
				code = lower.String(code)
			}
			if strings.ContainsFunc(code, unicode.IsSpace) {
				log.Warningf("%s: short code %q contains whitespace, skipping", group, code)
				continue
			}

			def := trie.Definition{
				ShortCode:       code,
				Text:            *e.ExpandedText,
				PreserveTrigger: triggerPolicy(exp, e),
			}
			if i, ok := index[code]; ok {
				log.Debugf("%s: short code %q redefined", group, code)
				defs[i] = def
				continue
			}
			index[code] = len(defs)
			defs = append(defs, def)
		}
	}
	return defs
}

func triggerPolicy(exp Expander, e Expansion) bool {
	switch {
	case e.PreserveTrigger:
		return true
	case e.DisablePreserveTrigger:
		return false
	default:
		return !exp.DisablePreserveTrigger
	}
}
