package cli

import (
	"regexp"
	"strings"
)

// linkPattern matches markdown-style links: [description](url).
var linkPattern = regexp.MustCompile(`(\[.+?\])(\s*\(.+?\))`)

// HideLinks removes the (url) part of every [description](url) link in text,
// leaving the bracketed description.
func HideLinks(text string) string {
	return linkPattern.ReplaceAllString(text, "$1")
}

// LinkAt returns the URL of the i-th link in text, counting from 1.
func LinkAt(text string, i int) (string, bool) {
	matches := linkPattern.FindAllStringSubmatch(text, -1)
	if i < 1 || i > len(matches) {
		return "", false
	}
	target := strings.TrimSpace(matches[i-1][2])
	return strings.TrimSpace(target[1 : len(target)-1]), true
}

// CountLinks returns the number of links in text.
func CountLinks(text string) int {
	return len(linkPattern.FindAllStringIndex(text, -1))
}
