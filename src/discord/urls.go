package discord

import (
	"fmt"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds.
// URLs that are already wrapped are left alone.
func WrapURLsNoEmbed(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && text[start-1] == '<' {
			continue
		}
		url := strings.TrimRight(text[start:end], ".,;:!?")
		b.WriteString(text[last:start])
		b.WriteString("<" + url + ">")
		last = start + len(url)
	}
	b.WriteString(text[last:])
	return b.String()
}

// ProofLinks renders proof URLs as numbered markdown links, one per line.
func ProofLinks(urls []string) string {
	var lines []string
	for i, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			lines = append(lines, fmt.Sprintf("[Proof %d](%s)", i+1, u))
		}
	}
	return strings.Join(lines, "\n")
}
