package trust

import (
	"sort"

	"appsweep/internal/winpath"
)

// minTokenLen is the shortest alphanumeric run kept as a match token.
const minTokenLen = 3

// tokenDenylist filters out runs that would match half the machine.
// Vendor-neutral OS and installer vocabulary only; never app names.
var tokenDenylist = map[string]bool{
	"microsoft":    true,
	"windows":      true,
	"setup":        true,
	"installer":    true,
	"install":      true,
	"uninstall":    true,
	"program":      true,
	"programs":     true,
	"files":        true,
	"file":         true,
	"common":       true,
	"application":  true,
	"applications": true,
	"app":          true,
	"apps":         true,
	"data":         true,
	"appdata":      true,
	"local":        true,
	"locallow":     true,
	"roaming":      true,
	"packages":     true,
	"package":      true,
	"cache":        true,
	"temp":         true,
	"update":       true,
	"updates":      true,
	"service":      true,
	"services":     true,
	"system":       true,
	"system32":     true,
	"users":        true,
	"user":         true,
	"the":          true,
	"inc":          true,
	"llc":          true,
	"ltd":          true,
	"corp":         true,
	"x86":          true,
	"x64":          true,
	"bin":          true,
	"lib":          true,
}

// Tokens derives the match-token set from the anchor directory names and
// their immediate parents: lowercase alphanumeric runs of at least three
// characters, denylist-filtered, deduplicated, sorted. An empty anchor set
// yields no tokens, which disables heuristic scanning entirely.
func (s *Set) Tokens() []string {
	seen := make(map[string]bool)
	for _, a := range s.Anchors() {
		names := []string{winpath.Base(a.Path), winpath.Base(winpath.Dir(a.Path))}
		for _, name := range names {
			for _, tok := range winpath.Tokens(name, minTokenLen) {
				if tokenDenylist[tok] {
					continue
				}
				seen[tok] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
