package pattern

import "testing"

func TestMatches(t *testing.T) {
	cases := []struct {
		pattern, name string
		want          bool
	}{
		{"*.log", "a.log", true},
		{"*.log", "A.LOG", true}, // case-folded
		{"*.log", "a.log.txt", false},
		{"*.log", "log", false},
		{"file?.txt", "file1.txt", true},
		{"file?.txt", "file12.txt", false},
		{"*", "", true},          // '*' matches empty basename
		{"*", "anything", true},
		{"?", "", false},         // '?' never matches nothing
		{"?", "a", true},
		{"?", "ab", false},
		{"a*b*c", "abc", true},
		{"a*b*c", "axxbxxc", true},
		{"a*b*c", "acb", false},
		{"*.LOG", "a.log", true},
		{"data.bin", "data.bin", true}, // exact match
	}
	for _, c := range cases {
		got := Matches(c.pattern, c.name)
		if got != c.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", c.pattern, c.name, got, c.want)
		}
	}
}

func TestMatchesAny(t *testing.T) {
	ok, p := MatchesAny([]string{"*.tmp", "*.log"}, "x.log")
	if !ok || p != "*.log" {
		t.Fatalf("expected match on *.log, got ok=%v p=%q", ok, p)
	}
	ok, _ = MatchesAny([]string{"*.tmp"}, "x.log")
	if ok {
		t.Fatalf("expected no match")
	}
}
