// Package winpath provides Windows path normalization and comparison helpers.
//
// The engine manipulates Windows-style paths (drive letters, backslash
// separators, case-insensitive comparison) regardless of the host platform,
// so all path work here is done with explicit string handling rather than
// path/filepath, whose separator depends on GOOS.
package winpath

import (
	"strings"
	"unicode"
)

const sep = `\`

// Normalize cleans a Windows path: forward slashes become backslashes,
// repeated separators collapse, "." and ".." segments resolve, and any
// trailing separator is dropped (except for a bare drive root like "C:\").
// The original character case is preserved; comparisons are done
// case-insensitively by the other helpers in this package.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "/", sep)

	// Preserve a UNC prefix before collapsing separators.
	unc := strings.HasPrefix(p, sep+sep)

	parts := strings.Split(p, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(out) > 1 || (len(out) == 1 && !isDriveSegment(out[0])) {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, part)
		}
	}

	joined := strings.Join(out, sep)
	if unc {
		return sep + sep + joined
	}
	if len(out) == 1 && isDriveSegment(out[0]) {
		// Bare drive keeps its root separator: "C:" -> "C:\"
		return out[0] + sep
	}
	return joined
}

// Dir returns the parent directory of a normalized path. The drive root is
// its own parent.
func Dir(p string) string {
	p = Normalize(p)
	idx := strings.LastIndex(p, sep)
	if idx < 0 {
		return p
	}
	parent := p[:idx]
	if isDriveSegment(parent) {
		return parent + sep
	}
	if parent == "" || parent == sep {
		return p
	}
	return parent
}

// Base returns the last segment of a normalized path.
func Base(p string) string {
	p = Normalize(p)
	p = strings.TrimSuffix(p, sep)
	idx := strings.LastIndex(p, sep)
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

// Join joins path segments with backslashes and normalizes the result.
func Join(parts ...string) string {
	return Normalize(strings.Join(parts, sep))
}

// IsAbs reports whether the path is absolute: a drive-letter path
// ("C:\...") or a UNC path ("\\server\share").
func IsAbs(p string) bool {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, `\\`) {
		return true
	}
	return len(p) >= 3 && isDriveSegment(p[:2]) && (p[2] == '\\' || p[2] == '/')
}

// IsPathLike reports whether a hint string looks like a path rather than a
// bare name: it contains a separator or a drive prefix.
func IsPathLike(s string) bool {
	return strings.ContainsAny(s, `\/`) || (len(s) >= 2 && isDriveSegment(s[:2]))
}

// Equal reports whether two paths are the same after normalization,
// ignoring case.
func Equal(a, b string) bool {
	return strings.EqualFold(Normalize(a), Normalize(b))
}

// HasPrefix reports whether path is equal to prefix or lives below it,
// comparing case-insensitively on whole segments. "C:\Program" is not a
// prefix of "C:\Program Files".
func HasPrefix(path, prefix string) bool {
	p := strings.ToLower(Normalize(path))
	pre := strings.ToLower(Normalize(prefix))
	if pre == "" {
		return false
	}
	if p == pre {
		return true
	}
	if !strings.HasSuffix(pre, sep) {
		pre += sep
	}
	return strings.HasPrefix(p, pre)
}

// Depth returns the number of segments below root that path sits at.
// Depth(root, root) is 0; a direct child is 1. Returns -1 when path is not
// under root.
func Depth(path, root string) int {
	if !HasPrefix(path, root) {
		return -1
	}
	p := strings.ToLower(Normalize(path))
	r := strings.ToLower(Normalize(root))
	if p == r {
		return 0
	}
	rest := strings.TrimPrefix(p, r)
	rest = strings.Trim(rest, sep)
	if rest == "" {
		return 0
	}
	return strings.Count(rest, sep) + 1
}

// Tokens splits a name into lowercase alphanumeric runs of at least
// minLen characters. Shorter runs and non-alphanumeric characters are
// discarded.
func Tokens(name string, minLen int) []string {
	var tokens []string
	var run strings.Builder
	flush := func() {
		if run.Len() >= minLen {
			tokens = append(tokens, strings.ToLower(run.String()))
		}
		run.Reset()
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			run.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isDriveSegment(s string) bool {
	return len(s) == 2 && s[1] == ':' &&
		((s[0] >= 'a' && s[0] <= 'z') || (s[0] >= 'A' && s[0] <= 'Z'))
}
