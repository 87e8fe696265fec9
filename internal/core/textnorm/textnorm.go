// Package textnorm converts downloaded artifacts into the normalized
// renditions the library stores: cleaned plain text, a minimal HTML shell,
// a markdown rendition, and chapter segments.
//
// Cleaning pipeline
// 1 UTF-8 repair drop invalid bytes
// 2 Unicode NFC normalization
// 3 CRLF to LF
// 4 Collapse space runs to a single space
// 5 Cap consecutive newlines at two and trim
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// Clean normalizes raw text following the pipeline described above
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// WordCount counts whitespace-separated tokens in text
func WordCount(text string) int {
	return len(strings.Fields(text))
}
