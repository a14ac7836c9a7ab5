// Package title turns a free-form model completion into a single clean title.
package title

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	reTitle = regexp.MustCompile(`(?is)<title>(.*?)</title>`)
	reOpen  = regexp.MustCompile(`(?i)<(think|thinking|reasoning)>`)
	// reStrayClose matches a closing marker with no opening marker in view.
	reStrayClose = regexp.MustCompile(`(?i)</(think|thinking|reasoning)>`)

	closers = map[string]*regexp.Regexp{
		"think":     regexp.MustCompile(`(?i)</think>`),
		"thinking":  regexp.MustCompile(`(?i)</thinking>`),
		"reasoning": regexp.MustCompile(`(?i)</reasoning>`),
	}
)

// Extract returns the title wrapped in <title>...</title> in the last
// candidate line of raw, after reasoning blocks are removed.
//
// found is false when no wrapper exists. A wrapper with nothing inside
// yields ("", true); callers must treat that as no usable title.
func Extract(raw string) (title string, found bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}

	lines := Candidates(raw)
	for i := len(lines) - 1; i >= 0; i-- {
		if m := reTitle.FindStringSubmatch(lines[i]); m != nil {
			return clean(m[1]), true
		}
	}

	// A wrapper may span lines; take the last one in the filtered text.
	joined := strings.Join(lines, "\n")
	if all := reTitle.FindAllStringSubmatch(joined, -1); len(all) > 0 {
		inner := all[len(all)-1][1]
		return clean(strings.Join(strings.Fields(inner), " ")), true
	}
	return "", false
}

// Candidates returns the trimmed, non-empty lines of raw with reasoning
// blocks and their markers removed.
func Candidates(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	out := make([]string, 0, 8)

	var inside *regexp.Regexp
	for _, line := range strings.Split(raw, "\n") {
		var kept strings.Builder
		rest := line
		for rest != "" {
			if inside != nil {
				loc := inside.FindStringIndex(rest)
				if loc == nil {
					rest = ""
					break
				}
				rest = rest[loc[1]:]
				inside = nil
				continue
			}
			m := reOpen.FindStringSubmatchIndex(rest)
			if m == nil {
				kept.WriteString(rest)
				break
			}
			kept.WriteString(rest[:m[0]])
			inside = closers[strings.ToLower(rest[m[2]:m[3]])]
			rest = rest[m[1]:]
		}

		s := strings.TrimSpace(reStrayClose.ReplaceAllString(kept.String(), ""))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clean(s string) string {
	s = strings.TrimSpace(html.UnescapeString(s))
	s = strings.Trim(s, "\"“”")
	s = strings.Trim(s, "'‘’")
	s = strings.Trim(s, "-")
	return strings.TrimSpace(s)
}
