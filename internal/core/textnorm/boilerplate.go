package textnorm

import (
	"regexp"
	"strings"
)

// Header patterns mark publisher front matter: everything from the start of
// the document through the end of the match is removed. Footer patterns mark
// back matter: everything from the start of the match onward is removed.
// All patterns are case-insensitive with dot matching newlines.
var (
	headerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)\*{3} ?START OF (?:THE|THIS) PROJECT GUTENBERG EBOOK[^\n]*\*{3}`),
		regexp.MustCompile(`(?is)The Project Gutenberg eBook.*?\n\n`),
		regexp.MustCompile(`(?is)Project Gutenberg's.*?\n\n`),
		regexp.MustCompile(`(?is)This eBook is for the use of anyone anywhere.*?electronic works\.`),
		regexp.MustCompile(`(?is)This etext was prepared by.*?\n\n`),
	}
	footerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)\*{3} ?END OF (?:THE|THIS) PROJECT GUTENBERG EBOOK.*`),
		regexp.MustCompile(`(?is)End of the Project Gutenberg EBook.*`),
		regexp.MustCompile(`(?is)End of Project Gutenberg's.*`),
		regexp.MustCompile(`(?is)This file should be named.*`),
		regexp.MustCompile(`(?is)This and all associated files.*`),
	}
)

// StripBoilerplate removes publisher branding front and back matter from a
// text. The work's license depends on this removal for the HTML-catalog
// source. Footers run first so header phrases repeated in the back matter
// are already gone when the header pass cuts the preamble.
// Idempotent: stripping already-stripped text is a no-op
func StripBoilerplate(text string) string {
	for _, re := range footerPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			text = text[:loc[0]]
		}
	}
	for _, re := range headerPatterns {
		if loc := re.FindStringIndex(text); loc != nil {
			text = text[loc[1]:]
		}
	}
	return strings.TrimSpace(text)
}
