package social

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	hashtagPattern = regexp.MustCompile(`#(\w+)`)
	mentionPattern = regexp.MustCompile(`@(\w+)`)
)

// Sanitize trims free text and strips control characters. Pure, no I/O.
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// ExtractHashtags returns the normalized (lower-cased, de-duplicated)
// hashtags found in text, without the '#'.
func ExtractHashtags(text string) []string {
	return extract(hashtagPattern, text)
}

// ExtractMentions returns the normalized mentions found in text, without
// the '@'.
func ExtractMentions(text string) []string {
	return extract(mentionPattern, text)
}

func extract(pattern *regexp.Regexp, text string) []string {
	matches := pattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	seen := make(map[string]bool)
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
