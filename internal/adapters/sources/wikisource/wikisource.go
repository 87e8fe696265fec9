// Package wikisource is the Wikisource connector. Search goes through the
// MediaWiki API; work pages are scraped. A work is either a single content
// page or an index page whose text is spread over section pages, so
// downloads may have to walk the whole set
package wikisource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"openshelf/internal/adapters/fetch"
	"openshelf/internal/adapters/sources"
	"openshelf/internal/core/textnorm"
	perr "openshelf/internal/platform/errors"
	"openshelf/internal/platform/logger"
)

const defaultBaseURL = "https://en.wikisource.org"

// Connector talks to English Wikisource
type Connector struct {
	fetch   *fetch.Client
	baseURL string

	// SearchLimit caps API search results, default 50
	SearchLimit int
}

// New creates the connector
func New(client *fetch.Client) *Connector {
	return &Connector{fetch: client, baseURL: defaultBaseURL, SearchLimit: 50}
}

// Source implements sources.Connector
func (c *Connector) Source() string { return sources.SourceWikisource }

type apiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			PageID  int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

// Search queries the MediaWiki API over the main and portal namespaces
func (c *Connector) Search(ctx context.Context, query string) ([]sources.Record, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srnamespace", "0|100")
	params.Set("srlimit", fmt.Sprint(c.SearchLimit))
	params.Set("format", "json")

	key := fetch.Key{Source: c.Source(), Kind: fetch.KindSearch, Parts: []string{query}}
	payload, err := c.fetch.GetBytes(ctx, key, c.baseURL+"/w/api.php?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return c.parseSearch(payload)
}

func (c *Connector) parseSearch(payload []byte) ([]sources.Record, error) {
	var resp apiSearchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, perr.Parsef("wikisource search response: %v", err)
	}
	var records []sources.Record
	for _, hit := range resp.Query.Search {
		// project and maintenance pages carry a namespace prefix
		if strings.Contains(hit.Title, ":") && !strings.HasPrefix(hit.Title, "Portal:") {
			continue
		}
		records = append(records, sources.Record{
			Source:      c.Source(),
			ID:          hit.Title,
			Title:       hit.Title,
			Description: textnorm.HTMLToText(hit.Snippet),
			URL:         c.pageURL(hit.Title),
		})
	}
	return records, nil
}

// Details scrapes a work page. When the page is an index of section links
// the record is marked composite and carries Sections instead of a text
// download
func (c *Connector) Details(ctx context.Context, title string) (sources.Record, error) {
	title = normalizeTitle(title)
	key := fetch.Key{Source: c.Source(), Kind: fetch.KindDetails, Parts: []string{title}}
	payload, err := c.fetch.GetBytes(ctx, key, c.pageURL(title))
	if err != nil {
		return sources.Record{}, err
	}
	return c.parseDetails(title, payload)
}

func (c *Connector) parseDetails(title string, payload []byte) (sources.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return sources.Record{}, perr.Parsef("wikisource page: %v", err)
	}
	rec := sources.Record{
		Source:      c.Source(),
		ID:          title,
		Title:       strings.ReplaceAll(title, "_", " "),
		URL:         c.pageURL(title),
		LicenseHint: "CC BY-SA",
	}
	rec.Author = strings.TrimSpace(doc.Find("#headerContainer .headertemplate-author").First().Text())
	rec.Date = strings.TrimSpace(doc.Find("#headerContainer .headertemplate-date").First().Text())

	if lic := strings.TrimSpace(doc.Find(".licensetpl_short").First().Text()); lic != "" {
		switch {
		case strings.Contains(lic, "CC BY-SA"):
			rec.LicenseHint = "CC BY-SA"
		case strings.Contains(lic, "CC0"):
			rec.LicenseHint = "CC0"
		case strings.Contains(strings.ToLower(lic), "public domain"):
			rec.LicenseHint = "US PD"
		}
	}

	content := doc.Find("#mw-content-text").First()
	if content.Length() == 0 {
		return rec, perr.NotFoundf("wikisource page %s has no content", title)
	}
	sectionLinks := content.Find(".prp-pages-output a")
	if sectionLinks.Length() > 0 {
		rec.Composite = true
		sectionLinks.Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			if strings.HasPrefix(href, "/") {
				href = c.baseURL + href
			}
			rec.Sections = append(rec.Sections, sources.SectionRef{
				Title: strings.TrimSpace(s.Text()),
				URL:   href,
			})
		})
		return rec, nil
	}

	content.Find(".mw-editsection, .reference").Remove()
	rec.Description = textnorm.Clean(content.Text())
	return rec, nil
}

// Download writes the work under destDir/<title>/. A content page becomes
// one text file. A composite work downloads every section, writes each as
// a sanitized HTML document plus an index page, and concatenates the
// section texts into <title>.txt. Sections that fail to fetch are logged
// and skipped; the download fails only when every section fails
func (c *Connector) Download(ctx context.Context, rec sources.Record, format, destDir string) (string, error) {
	title := normalizeTitle(rec.ID)
	bookDir := filepath.Join(destDir, title)
	if err := os.MkdirAll(bookDir, 0o755); err != nil {
		return "", err
	}

	if !rec.Composite {
		dest := filepath.Join(bookDir, title+".txt")
		body := rec.Title + "\n\n"
		if rec.Author != "" {
			body += "Author: " + rec.Author + "\n\n"
		}
		body += rec.Description
		if err := os.WriteFile(dest, []byte(body), 0o644); err != nil {
			return "", err
		}
		return dest, nil
	}

	log := logger.C(ctx)
	var all strings.Builder
	all.WriteString(rec.Title + "\n\n")
	if rec.Author != "" {
		all.WriteString("Author: " + rec.Author + "\n\n")
	}

	var index strings.Builder
	fmt.Fprintf(&index, "<html><head><title>%s</title></head><body>\n<h1>%s</h1>\n<h2>Contents</h2>\n<ul>\n", rec.Title, rec.Title)

	fetched := 0
	for _, section := range rec.Sections {
		markup, text, err := c.fetchSection(ctx, section.URL)
		if err != nil {
			log.Warn().Str("section", section.Title).Err(err).Msg("section fetch failed, skipping")
			continue
		}
		fetched++
		name := sectionFilename(section.URL)
		fmt.Fprintf(&index, "<li><a href=%q>%s</a></li>\n", name, section.Title)

		sectionDoc := fmt.Sprintf("<html><head><title>%s</title></head><body>\n<h1>%s</h1>\n%s\n</body></html>",
			section.Title, section.Title, textnorm.SanitizeHTML(markup))
		if err := os.WriteFile(filepath.Join(bookDir, name), []byte(sectionDoc), 0o644); err != nil {
			return "", err
		}
		all.WriteString("\n\n" + section.Title + "\n\n" + text)
	}
	if fetched == 0 {
		return "", perr.Unavailablef("wikisource work %s: no section could be fetched", rec.ID)
	}
	index.WriteString("</ul>\n</body></html>")
	if err := os.WriteFile(filepath.Join(bookDir, title+"_index.html"), []byte(index.String()), 0o644); err != nil {
		return "", err
	}

	dest := filepath.Join(bookDir, title+".txt")
	if err := os.WriteFile(dest, []byte(all.String()), 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

// fetchSection returns a section page's content markup and its plain text
func (c *Connector) fetchSection(ctx context.Context, sectionURL string) (markup, text string, err error) {
	key := fetch.Key{Source: c.Source(), Kind: fetch.KindDetails, Parts: []string{sectionURL}}
	payload, err := c.fetch.GetBytes(ctx, key, sectionURL)
	if err != nil {
		return "", "", err
	}
	return parseSection(payload)
}

func parseSection(payload []byte) (markup, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return "", "", perr.Parsef("wikisource section page: %v", err)
	}
	content := doc.Find("#mw-content-text").First()
	if content.Length() == 0 {
		return "", "", perr.Parsef("wikisource section page has no content element")
	}
	content.Find(".mw-editsection, .reference").Remove()
	markup, err = content.Html()
	if err != nil {
		return "", "", perr.Parsef("wikisource section markup: %v", err)
	}
	return markup, textnorm.Clean(content.Text()), nil
}

// FeaturedWorks scrapes the curated featured texts page
func (c *Connector) FeaturedWorks(ctx context.Context) ([]sources.Record, error) {
	key := fetch.Key{Source: c.Source(), Kind: fetch.KindCurated, Parts: []string{"featured"}}
	payload, err := c.fetch.GetBytes(ctx, key, c.pageURL("Wikisource:Featured_texts"))
	if err != nil {
		return nil, err
	}
	return c.parseFeatured(payload)
}

func (c *Connector) parseFeatured(payload []byte) ([]sources.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, perr.Parsef("wikisource featured page: %v", err)
	}
	seen := map[string]bool{}
	var records []sources.Record
	doc.Find("#mw-content-text a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.HasPrefix(href, "/wiki/") || strings.Contains(href, ":") {
			return
		}
		title := strings.TrimSpace(s.Text())
		if title == "" || title == "edit" || title == "view" || title == "history" {
			return
		}
		if seen[href] {
			return
		}
		seen[href] = true
		records = append(records, sources.Record{
			Source: c.Source(),
			ID:     strings.TrimPrefix(href, "/wiki/"),
			Title:  title,
			URL:    c.baseURL + href,
		})
	})
	return records, nil
}

func (c *Connector) pageURL(title string) string {
	return c.baseURL + "/wiki/" + normalizeTitle(title)
}

func normalizeTitle(title string) string {
	return strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
}

func sectionFilename(sectionURL string) string {
	parts := strings.Split(strings.TrimRight(sectionURL, "/"), "/")
	last := parts[len(parts)-1]
	if last == "" {
		last = "section"
	}
	if unescaped, err := url.PathUnescape(last); err == nil {
		last = unescaped
	}
	last = strings.ReplaceAll(last, "/", "_")
	return last + ".html"
}
