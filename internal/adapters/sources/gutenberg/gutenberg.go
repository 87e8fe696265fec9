// Package gutenberg is the Project Gutenberg connector. The site has no
// public JSON API, so search, details, and the popular list are scraped
// from the catalog's HTML
package gutenberg

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"openshelf/internal/adapters/fetch"
	"openshelf/internal/adapters/sources"
	perr "openshelf/internal/platform/errors"
)

const defaultBaseURL = "https://www.gutenberg.org"

// LicenseHint is the license every catalog entry carries before the
// branding scan verifies it
const LicenseHint = "Project Gutenberg License"

var ebookIDRe = regexp.MustCompile(`/ebooks/(\d+)`)

// Connector talks to the Project Gutenberg catalog
type Connector struct {
	fetch   *fetch.Client
	baseURL string
}

// New creates the connector
func New(client *fetch.Client) *Connector {
	return &Connector{fetch: client, baseURL: defaultBaseURL}
}

// Source implements sources.Connector
func (c *Connector) Source() string { return sources.SourceGutenberg }

// Search scrapes the catalog search page, restricted to fiction
func (c *Connector) Search(ctx context.Context, query string) ([]sources.Record, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("submit_search", "Go!")
	params.Set("include_content", "fiction")

	key := fetch.Key{Source: c.Source(), Kind: fetch.KindSearch, Parts: []string{query}}
	payload, err := c.fetch.GetBytes(ctx, key, c.baseURL+"/ebooks/search/?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return c.parseSearch(payload)
}

func (c *Connector) parseSearch(payload []byte) ([]sources.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, perr.Parsef("gutenberg search page: %v", err)
	}
	var records []sources.Record
	doc.Find("li.booklink").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Find("a.link").Attr("href")
		m := ebookIDRe.FindStringSubmatch(href)
		if m == nil {
			return
		}
		records = append(records, sources.Record{
			Source:      c.Source(),
			ID:          m[1],
			Title:       strings.TrimSpace(s.Find("span.title").First().Text()),
			Author:      strings.TrimSpace(s.Find("span.subtitle").First().Text()),
			URL:         c.bookURL(m[1]),
			LicenseHint: LicenseHint,
		})
	})
	return records, nil
}

// Details scrapes a book page: the bibliographic record table and the
// download links table
func (c *Connector) Details(ctx context.Context, id string) (sources.Record, error) {
	key := fetch.Key{Source: c.Source(), Kind: fetch.KindDetails, Parts: []string{id}}
	payload, err := c.fetch.GetBytes(ctx, key, c.bookURL(id))
	if err != nil {
		return sources.Record{}, err
	}
	return c.parseDetails(id, payload)
}

func (c *Connector) parseDetails(id string, payload []byte) (sources.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return sources.Record{}, perr.Parsef("gutenberg book page: %v", err)
	}
	rec := sources.Record{
		Source:      c.Source(),
		ID:          id,
		URL:         c.bookURL(id),
		Title:       strings.TrimSpace(doc.Find("h1").First().Text()),
		Author:      strings.TrimSpace(doc.Find("h2").First().Text()),
		LicenseHint: LicenseHint,
	}
	if rec.Title == "" {
		return rec, perr.NotFoundf("gutenberg ebook %s not found", id)
	}

	// bibliographic record rows
	doc.Find("table.bibrec tr").Each(func(_ int, row *goquery.Selection) {
		k := strings.ToLower(strings.TrimSpace(row.Find("th").First().Text()))
		v := strings.TrimSpace(row.Find("td").First().Text())
		if v == "" {
			return
		}
		switch k {
		case "release date":
			rec.Date = v
		case "subject":
			rec.Subjects = append(rec.Subjects, v)
		case "summary", "note":
			if rec.Description == "" {
				rec.Description = v
			}
		}
	})

	doc.Find("table.files tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cell := row.Find("td").First()
		link := cell.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		rec.Downloads = append(rec.Downloads, sources.DownloadLink{
			Format: strings.TrimSpace(cell.Text()),
			URL:    c.absURL(href),
		})
	})
	return rec, nil
}

// Popular scrapes the most downloaded list, at most count entries
func (c *Connector) Popular(ctx context.Context, count int) ([]sources.Record, error) {
	key := fetch.Key{Source: c.Source(), Kind: fetch.KindCatalog, Parts: []string{"popular", fmt.Sprint(count)}}
	payload, err := c.fetch.GetBytes(ctx, key, c.baseURL+"/browse/scores/top")
	if err != nil {
		return nil, err
	}
	return c.parsePopular(payload, count)
}

func (c *Connector) parsePopular(payload []byte, count int) ([]sources.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, perr.Parsef("gutenberg popular page: %v", err)
	}
	var records []sources.Record
	doc.Find("ol.results li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a").First()
		href, _ := link.Attr("href")
		m := ebookIDRe.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		records = append(records, sources.Record{
			Source:      c.Source(),
			ID:          m[1],
			Title:       strings.TrimSpace(link.Text()),
			Author:      strings.TrimSpace(s.Find("span.subtitle").First().Text()),
			URL:         c.bookURL(m[1]),
			LicenseHint: LicenseHint,
		})
		return len(records) < count
	})
	return records, nil
}

// Download fetches the requested format into destDir/<id>/<id>.<format>
func (c *Connector) Download(ctx context.Context, rec sources.Record, format, destDir string) (string, error) {
	link, ok := rec.PickDownload(format)
	if !ok {
		return "", perr.NotAvailablef("gutenberg ebook %s has no %s download", rec.ID, format)
	}
	dest := filepath.Join(destDir, rec.ID, rec.ID+"."+strings.ToLower(format))
	if _, err := c.fetch.Download(ctx, c.Source(), link.URL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (c *Connector) bookURL(id string) string { return c.baseURL + "/ebooks/" + id }

func (c *Connector) absURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return c.baseURL + href
}
