// Package standardebooks is the Standard Ebooks connector. The whole
// catalog arrives as one OPDS Atom feed; book pages are scraped for
// downloads and metadata. Every release is dedicated to the public domain
// under CC0, so the connector pins that hint on each record
package standardebooks

import (
	"bytes"
	"context"
	"encoding/xml"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"openshelf/internal/adapters/fetch"
	"openshelf/internal/adapters/sources"
	perr "openshelf/internal/platform/errors"
)

const defaultBaseURL = "https://standardebooks.org"

// LicenseHint applies to every record from this source
const LicenseHint = "CC0"

// Connector talks to Standard Ebooks
type Connector struct {
	fetch   *fetch.Client
	baseURL string
}

// New creates the connector
func New(client *fetch.Client) *Connector {
	return &Connector{fetch: client, baseURL: defaultBaseURL}
}

// Source implements sources.Connector
func (c *Connector) Source() string { return sources.SourceStandardEbooks }

type opdsFeed struct {
	Entries []opdsEntry `xml:"entry"`
}

type opdsEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Updated string `xml:"updated"`
	Summary string `xml:"summary"`
	Author  struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href string `xml:"href,attr"`
		Type string `xml:"type,attr"`
		Rel  string `xml:"rel,attr"`
	} `xml:"link"`
}

// Catalog fetches and parses the full OPDS feed
func (c *Connector) Catalog(ctx context.Context) ([]sources.Record, error) {
	key := fetch.Key{Source: c.Source(), Kind: fetch.KindCatalog, Parts: []string{"opds"}}
	payload, err := c.fetch.GetBytes(ctx, key, c.baseURL+"/opds")
	if err != nil {
		return nil, err
	}
	return c.parseCatalog(payload)
}

func (c *Connector) parseCatalog(payload []byte) ([]sources.Record, error) {
	var feed opdsFeed
	if err := xml.Unmarshal(payload, &feed); err != nil {
		return nil, perr.Parsef("standardebooks opds feed: %v", err)
	}
	var records []sources.Record
	for _, e := range feed.Entries {
		var epubURL, pageID string
		for _, l := range e.Links {
			switch {
			case l.Type == "application/epub+zip" && epubURL == "":
				epubURL = c.absURL(l.Href)
			case l.Type == "text/html" && l.Rel == "alternate":
				pageID = strings.TrimPrefix(l.Href, c.baseURL)
			}
		}
		// navigation and acquisition-root entries carry no epub
		if epubURL == "" || pageID == "" {
			continue
		}
		records = append(records, sources.Record{
			Source:      c.Source(),
			ID:          pageID,
			Title:       strings.TrimSpace(e.Title),
			Author:      strings.TrimSpace(e.Author.Name),
			Date:        e.Updated,
			Description: strings.TrimSpace(e.Summary),
			URL:         c.baseURL + pageID,
			LicenseHint: LicenseHint,
			Downloads:   []sources.DownloadLink{{Format: "epub", URL: epubURL}},
		})
	}
	return records, nil
}

// Search filters the catalog feed locally on title, author, and summary
func (c *Connector) Search(ctx context.Context, query string) ([]sources.Record, error) {
	all, err := c.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var hits []sources.Record
	for _, rec := range all {
		if strings.Contains(strings.ToLower(rec.Title), q) ||
			strings.Contains(strings.ToLower(rec.Author), q) ||
			strings.Contains(strings.ToLower(rec.Description), q) {
			hits = append(hits, rec)
		}
	}
	return hits, nil
}

// Details scrapes a book page. The id is the site relative page path,
// for example /ebooks/jane-austen/pride-and-prejudice
func (c *Connector) Details(ctx context.Context, id string) (sources.Record, error) {
	id = strings.TrimPrefix(id, c.baseURL)
	if !strings.HasPrefix(id, "/") {
		id = "/" + id
	}
	key := fetch.Key{Source: c.Source(), Kind: fetch.KindDetails, Parts: []string{id}}
	payload, err := c.fetch.GetBytes(ctx, key, c.baseURL+id)
	if err != nil {
		return sources.Record{}, err
	}
	return c.parseDetails(id, payload)
}

func (c *Connector) parseDetails(id string, payload []byte) (sources.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return sources.Record{}, perr.Parsef("standardebooks book page: %v", err)
	}
	rec := sources.Record{
		Source:      c.Source(),
		ID:          id,
		URL:         c.baseURL + id,
		Title:       strings.TrimSpace(doc.Find("h1.title").First().Text()),
		Author:      strings.TrimSpace(doc.Find("h2.author").First().Text()),
		Description: strings.TrimSpace(doc.Find("section#description").First().Text()),
		LicenseHint: LicenseHint,
	}
	if rec.Title == "" {
		return rec, perr.NotFoundf("standardebooks page %s not found", id)
	}
	doc.Find("section#download a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		rec.Downloads = append(rec.Downloads, sources.DownloadLink{
			Format: strings.TrimSpace(s.Text()),
			URL:    c.absURL(href),
		})
	})
	doc.Find("section#metadata dl").Each(func(_ int, dl *goquery.Selection) {
		dts := dl.Find("dt")
		dds := dl.Find("dd")
		n := dts.Length()
		if dds.Length() < n {
			n = dds.Length()
		}
		for i := 0; i < n; i++ {
			k := strings.ToLower(strings.TrimSpace(dts.Eq(i).Text()))
			v := strings.TrimSpace(dds.Eq(i).Text())
			switch k {
			case "subjects", "subject":
				rec.Subjects = append(rec.Subjects, v)
			case "released", "release date":
				if rec.Date == "" {
					rec.Date = v
				}
			}
		}
	})
	return rec, nil
}

// Download fetches the requested format into destDir/<slug>/<filename>
func (c *Connector) Download(ctx context.Context, rec sources.Record, format, destDir string) (string, error) {
	link, ok := rec.PickDownload(format)
	if !ok {
		return "", perr.NotAvailablef("standardebooks %s has no %s download", rec.ID, format)
	}
	slug := path.Base(strings.Trim(rec.ID, "/"))
	dest := filepath.Join(destDir, slug, path.Base(link.URL))
	if _, err := c.fetch.Download(ctx, c.Source(), link.URL, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (c *Connector) absURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return c.baseURL + href
}
