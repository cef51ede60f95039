package linker

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matcher rewrites literal alias occurrences into wikilinks in one pass.
//
// At every position the longest alias that matches wins. Wikilinks,
// markdown links, inline code, fenced code blocks and bare URLs are copied
// verbatim, so text that is already linked is never wrapped again.
type Matcher struct {
	names   map[string]string
	byFirst map[byte][]string
}

// NewMatcher indexes the table for rewriting.
func NewMatcher(t *Table) *Matcher {
	m := &Matcher{
		names:   make(map[string]string, t.Len()),
		byFirst: make(map[byte][]string),
	}
	for _, p := range t.Pairs() {
		m.names[p.Alias] = p.Name
		m.byFirst[p.Alias[0]] = append(m.byFirst[p.Alias[0]], p.Alias)
	}
	for _, list := range m.byFirst {
		sort.Slice(list, func(i, j int) bool {
			if len(list[i]) != len(list[j]) {
				return len(list[i]) > len(list[j])
			}
			return list[i] < list[j]
		})
	}
	return m
}

// Result describes one rewritten body.
type Result struct {
	Text string
	// Links is the number of link constructs inserted.
	Links int
	// Pairs is the number of distinct alias pairs that produced a link.
	Pairs int
}

// Changed reports whether any link was inserted.
func (r Result) Changed() bool { return r.Links > 0 }

// Rewrite links every alias occurrence in body. Aliases whose canonical name
// is self are skipped unless linkSelf is set.
func (m *Matcher) Rewrite(body, self string, linkSelf bool) Result {
	rw := rewriter{m: m, self: self, linkSelf: linkSelf, used: make(map[string]struct{})}
	rw.out.Grow(len(body))

	fence := ""
	for _, line := range strings.SplitAfter(body, "\n") {
		if marker := fenceMarker(line); marker != "" && (fence == "" || marker == fence) {
			if fence == "" {
				fence = marker
			} else {
				fence = ""
			}
			rw.out.WriteString(line)
			continue
		}
		if fence != "" {
			rw.out.WriteString(line)
			continue
		}
		rw.line(line)
	}
	return Result{Text: rw.out.String(), Links: rw.links, Pairs: len(rw.used)}
}

type rewriter struct {
	m        *Matcher
	self     string
	linkSelf bool
	out      strings.Builder
	links    int
	used     map[string]struct{}
}

func (rw *rewriter) line(line string) {
	i := 0
	for i < len(line) {
		if n := protectedSpan(line, i); n > 0 {
			rw.out.WriteString(line[i : i+n])
			i += n
			continue
		}
		if alias, ok := rw.match(line, i); ok {
			rw.out.WriteString(formatLink(rw.m.names[alias], alias))
			rw.links++
			rw.used[alias] = struct{}{}
			i += len(alias)
			continue
		}
		_, size := utf8.DecodeRuneInString(line[i:])
		rw.out.WriteString(line[i : i+size])
		i += size
	}
}

// match returns the longest eligible alias starting at line[i].
func (rw *rewriter) match(line string, i int) (string, bool) {
	for _, alias := range rw.m.byFirst[line[i]] {
		if !strings.HasPrefix(line[i:], alias) {
			continue
		}
		if !rw.linkSelf && rw.m.names[alias] == rw.self {
			continue
		}
		if !boundaryBefore(line, i, alias) || !boundaryAfter(line, i+len(alias), alias) {
			continue
		}
		return alias, true
	}
	return "", false
}

// protectedSpan returns the length of a span starting at line[i] that must be
// copied verbatim, or 0.
func protectedSpan(line string, i int) int {
	rest := line[i:]
	switch {
	case strings.HasPrefix(rest, "[["):
		if end := strings.Index(rest[2:], "]]"); end >= 0 {
			return end + 4
		}
	case rest[0] == '`':
		return codeSpan(rest)
	case rest[0] == '[':
		mid := strings.Index(rest, "](")
		if mid < 0 || strings.Contains(rest[1:mid], "[") {
			return 0
		}
		if end := strings.IndexByte(rest[mid+2:], ')'); end >= 0 {
			return mid + 2 + end + 1
		}
	case strings.HasPrefix(rest, "http://") || strings.HasPrefix(rest, "https://"):
		if i > 0 && isWordRune(lastRune(line[:i])) {
			return 0
		}
		if end := strings.IndexFunc(rest, unicode.IsSpace); end >= 0 {
			return end
		}
		return len(rest)
	}
	return 0
}

// fenceMarker returns "```" or "~~~" when line opens or closes a fenced
// code block. A fence is closed only by the marker that opened it.
func fenceMarker(line string) string {
	trimmed := strings.TrimSpace(line)
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(trimmed, m) {
			return m
		}
	}
	return ""
}

// codeSpan returns the length of the inline code span opening rest. The span
// ends at the next backtick run of the same length; without one the rest of
// the line is treated as code.
func codeSpan(rest string) int {
	n := len(rest) - len(strings.TrimLeft(rest, "`"))
	for i := n; i < len(rest); {
		j := strings.IndexByte(rest[i:], '`')
		if j < 0 {
			break
		}
		start := i + j
		end := start
		for end < len(rest) && rest[end] == '`' {
			end++
		}
		if end-start == n {
			return end
		}
		i = end
	}
	return len(rest)
}

func boundaryBefore(line string, i int, alias string) bool {
	if i == 0 {
		return true
	}
	prev := lastRune(line[:i])
	if isLinkRune(prev) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(alias)
	return !(isWordRune(first) && isWordRune(prev))
}

func boundaryAfter(line string, j int, alias string) bool {
	if j >= len(line) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(line[j:])
	if isLinkRune(next) {
		return false
	}
	last := lastRune(alias)
	return !(isWordRune(last) && isWordRune(next))
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func isLinkRune(r rune) bool {
	return r == '[' || r == ']' || r == '|'
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// formatLink renders [[name]] or [[name|alias]].
func formatLink(name, alias string) string {
	if alias == name {
		return "[[" + name + "]]"
	}
	return "[[" + name + "|" + alias + "]]"
}
