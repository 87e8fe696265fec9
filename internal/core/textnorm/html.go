package textnorm

import (
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLToText strips markup from an HTML fragment or document, dropping
// script/style subtrees and inserting line breaks at block boundaries,
// then runs Clean
func HTMLToText(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	var b strings.Builder
	collectText(doc, &b)
	return Clean(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return
		case atom.Br:
			b.WriteByte('\n')
			return
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		b.WriteString("\n\n")
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Tr, atom.Blockquote, atom.Pre, atom.Section, atom.Article:
		return true
	}
	return false
}

// ExtractArticle pulls the main readable content out of a full web page,
// returning its title and cleaned text. Used for HTML-format downloads where
// the page carries navigation and chrome around the work itself
func ExtractArticle(markup, pageURL string) (title, text string, err error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", "", err
	}
	article, err := readability.FromReader(strings.NewReader(markup), u)
	if err != nil {
		return "", "", err
	}
	return article.Title, Clean(article.TextContent), nil
}

// ugcPolicy keeps basic document structure and drops everything risky
var ugcPolicy = bluemonday.UGCPolicy()

// SanitizeHTML scrubs scraped HTML before it is re-emitted into an archived
// section document
func SanitizeHTML(markup string) string {
	return ugcPolicy.Sanitize(markup)
}
