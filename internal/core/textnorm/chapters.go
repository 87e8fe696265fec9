package textnorm

import (
	"regexp"
	"sort"
	"strings"
)

// Chapter is one segment of a split text. Pos is the byte offset of the
// segment start in the original document
type Chapter struct {
	Pos  int
	Text string
}

var chapterMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^CHAPTER [IVXLCDM]+\.?`),
	regexp.MustCompile(`(?m)^CHAPTER \d+\.?`),
	regexp.MustCompile(`(?m)^Chapter [IVXLCDM]+\.?`),
	regexp.MustCompile(`(?m)^Chapter \d+\.?`),
	regexp.MustCompile(`(?m)^\d+\.`),
	regexp.MustCompile(`(?m)^[IVXLCDM]+\.`),
}

// SplitChapters cuts a text at chapter headings. Every marker pattern is
// tried and all match positions are collected; the text is then cut at each
// distinct position in document order, and anything before the first heading
// is dropped. When no marker matches, the whole text is returned as a
// single chapter
func SplitChapters(text string) []Chapter {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	seen := map[int]bool{}
	var cuts []int
	for _, re := range chapterMarkers {
		for _, loc := range re.FindAllStringIndex(trimmed, -1) {
			if !seen[loc[0]] {
				seen[loc[0]] = true
				cuts = append(cuts, loc[0])
			}
		}
	}
	if len(cuts) == 0 {
		return []Chapter{{Pos: 0, Text: trimmed}}
	}
	sort.Ints(cuts)

	var chapters []Chapter
	for i, start := range cuts {
		end := len(trimmed)
		if i+1 < len(cuts) {
			end = cuts[i+1]
		}
		if seg := strings.TrimSpace(trimmed[start:end]); seg != "" {
			chapters = append(chapters, Chapter{Pos: start, Text: seg})
		}
	}
	return chapters
}
