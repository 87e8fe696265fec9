package textnorm

import (
	"fmt"
	"html"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const documentStyle = `body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 1em; }
h1 { text-align: center; }
h2 { text-align: center; }`

// ToHTML renders plain text as a minimal styled HTML document. Blank lines
// separate paragraphs; single newlines inside a paragraph become <br>
func ToHTML(text, title, author string) string {
	if text == "" {
		return ""
	}
	escaped := html.EscapeString(text)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	if title != "" {
		fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	}
	b.WriteString("<meta charset=\"utf-8\">\n<style>\n")
	b.WriteString(documentStyle)
	b.WriteString("\n</style>\n</head>\n<body>\n")
	if title != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	}
	if author != "" {
		fmt.Fprintf(&b, "<h2>by %s</h2>\n", html.EscapeString(author))
	}
	for _, para := range strings.Split(escaped, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", strings.ReplaceAll(para, "\n", "<br>"))
	}
	b.WriteString("</body>\n</html>")
	return b.String()
}

// ToMarkdown converts an HTML rendition into markdown
func ToMarkdown(markup string) (string, error) {
	if markup == "" {
		return "", nil
	}
	md, err := htmltomarkdown.ConvertString(markup)
	if err != nil {
		return "", fmt.Errorf("textnorm: convert to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}
