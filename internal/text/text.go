// Package text provides narrative-text helpers: CJK-aware word counting,
// passage splitting for quoting offending spans, and excerpting for bounded
// collaborator prompts.
package text

import (
	"strings"
	"unicode"
)

// CountWords counts han characters plus latin words, the convention for
// mixed Chinese/English prose where each CJK character is one word.
func CountWords(s string) int {
	count := 0
	inWord := false
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Han, r):
			count++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				count++
				inWord = true
			}
		default:
			inWord = false
		}
	}
	return count
}

// Passage is one paragraph-level section of a chapter.
type Passage struct {
	Text      string
	StartLine int
	EndLine   int
}

// Passages splits chapter text on blank lines and heading lines. Used to
// quote the offending span of a rule finding.
func Passages(s string) []Passage {
	lines := strings.Split(s, "\n")
	var passages []Passage
	var current []string
	startLine := 1

	flush := func(endLine int) {
		if len(current) == 0 {
			return
		}
		t := strings.TrimSpace(strings.Join(current, "\n"))
		if t != "" {
			passages = append(passages, Passage{Text: t, StartLine: startLine, EndLine: endLine})
		}
		current = nil
		startLine = endLine + 1
	}

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") && len(current) > 0 {
			flush(lineNum - 1)
		}
		if trimmed == "" {
			flush(lineNum - 1)
			startLine = lineNum + 1
			continue
		}
		current = append(current, line)
	}
	flush(len(lines))

	return passages
}

// PassageContaining returns the first passage containing the substring,
// with its line range, and false when absent.
func PassageContaining(s, substr string) (Passage, bool) {
	for _, p := range Passages(s) {
		if strings.Contains(p.Text, substr) {
			return p, true
		}
	}
	return Passage{}, false
}

// Excerpt returns at most max runes of s, appending an ellipsis when
// truncated. A non-positive max returns s unchanged.
func Excerpt(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
