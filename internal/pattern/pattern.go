// Package pattern implements the single operation spec §4.1 asks for:
// a case-insensitive, anchored match of a `*`/`?` wildcard against one
// path component. It never sees a full path — callers apply it to a
// basename or a single ancestor directory name.
package pattern

import "strings"

// Matches reports whether name matches pattern. Both are case-folded
// before comparing. '*' matches any run of characters, including
// none; '?' matches exactly one character. The match is anchored at
// both ends — this is a full-string match, not a substring search.
// There is no escaping and no character classes.
func Matches(pattern, name string) bool {
	p := strings.ToLower(pattern)
	n := strings.ToLower(name)
	return matchFold(p, n)
}

// matchFold is a standard two-pointer glob matcher with backtracking
// on '*', operating on already-folded strings.
func matchFold(p, n string) bool {
	var pi, ni int
	var starIdx = -1
	var match int

	for ni < len(n) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]):
			pi++
			ni++
		case pi < len(p) && p[pi] == '*':
			starIdx = pi
			match = ni
			pi++
		case starIdx != -1:
			pi = starIdx + 1
			match++
			ni = match
		default:
			return false
		}
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// MatchesAny reports whether name matches any pattern in patterns.
func MatchesAny(patterns []string, name string) (bool, string) {
	for _, p := range patterns {
		if Matches(p, name) {
			return true, p
		}
	}
	return false, ""
}
