// Package archive is the Internet Archive connector. Search goes through
// the advanced search JSON API, details through the metadata API
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"openshelf/internal/adapters/fetch"
	"openshelf/internal/adapters/sources"
	perr "openshelf/internal/platform/errors"
)

const defaultBaseURL = "https://archive.org"

// Formats worth offering as downloads
var wantedFormats = map[string]bool{
	"Text PDF":   true,
	"EPUB":       true,
	"MOBI":       true,
	"Kindle":     true,
	"DjVu":       true,
	"HTML":       true,
	"Plain Text": true,
}

// Connector talks to the Internet Archive
type Connector struct {
	fetch   *fetch.Client
	baseURL string

	// SearchRows caps search result pages, default 50
	SearchRows int

	// FilterPD appends a pre 1929 date clause to searches
	FilterPD bool
}

// New creates the connector. Public domain filtering is on by default
func New(client *fetch.Client) *Connector {
	return &Connector{fetch: client, baseURL: defaultBaseURL, SearchRows: 50, FilterPD: true}
}

// Source implements sources.Connector
func (c *Connector) Source() string { return sources.SourceArchive }

// flexStrings tolerates the API returning either a string or a list
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(raw []byte) error {
	if len(raw) > 0 && raw[0] == '[' {
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return err
		}
		*f = list
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err != nil {
		return err
	}
	if one != "" {
		*f = []string{one}
	}
	return nil
}

func (f flexStrings) first() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

type searchDoc struct {
	Identifier  string      `json:"identifier"`
	Title       flexStrings `json:"title"`
	Creator     flexStrings `json:"creator"`
	Date        flexStrings `json:"date"`
	Description flexStrings `json:"description"`
	Subject     flexStrings `json:"subject"`
	Collection  flexStrings `json:"collection"`
}

type searchResponse struct {
	Response struct {
		Docs []searchDoc `json:"docs"`
	} `json:"response"`
}

// Search queries the advanced search API, constrained to texts and,
// when FilterPD is set, to works dated 1800 through 1928
func (c *Connector) Search(ctx context.Context, query string) ([]sources.Record, error) {
	q := query + " AND mediatype:texts"
	if c.FilterPD {
		q += " AND date:[1800 TO 1928]"
	}
	params := url.Values{}
	params.Set("q", q)
	for _, fl := range []string{"identifier", "title", "creator", "date", "description", "subject", "collection"} {
		params.Add("fl[]", fl)
	}
	params.Add("sort[]", "downloads desc")
	params.Set("rows", fmt.Sprint(c.SearchRows))
	params.Set("page", "1")
	params.Set("output", "json")

	searchURL := c.baseURL + "/advancedsearch.php?" + params.Encode()
	key := fetch.Key{Source: c.Source(), Kind: fetch.KindSearch, Parts: []string{query, fmt.Sprint(c.FilterPD)}}
	payload, err := c.fetch.GetBytes(ctx, key, searchURL)
	if err != nil {
		return nil, err
	}
	return c.parseSearch(payload)
}

func (c *Connector) parseSearch(payload []byte) ([]sources.Record, error) {
	var resp searchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, perr.Parsef("archive search response: %v", err)
	}
	records := make([]sources.Record, 0, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		if doc.Identifier == "" {
			continue
		}
		records = append(records, sources.Record{
			Source:      c.Source(),
			ID:          doc.Identifier,
			Title:       doc.Title.first(),
			Author:      doc.Creator.first(),
			Date:        doc.Date.first(),
			Description: doc.Description.first(),
			Subjects:    doc.Subject,
			Collections: doc.Collection,
			URL:         c.baseURL + "/details/" + doc.Identifier,
		})
	}
	return records, nil
}

type metadataResponse struct {
	Metadata struct {
		Title       flexStrings `json:"title"`
		Creator     flexStrings `json:"creator"`
		Date        flexStrings `json:"date"`
		Description flexStrings `json:"description"`
		Subject     flexStrings `json:"subject"`
		Collection  flexStrings `json:"collection"`
		LicenseURL  flexStrings `json:"licenseurl"`
	} `json:"metadata"`
	Files []struct {
		Name   string `json:"name"`
		Format string `json:"format"`
	} `json:"files"`
}

// Details resolves a full record through the metadata API, including
// download links for the text formats the pipeline can normalize
func (c *Connector) Details(ctx context.Context, id string) (sources.Record, error) {
	key := fetch.Key{Source: c.Source(), Kind: fetch.KindDetails, Parts: []string{id}}
	payload, err := c.fetch.GetBytes(ctx, key, c.baseURL+"/metadata/"+url.PathEscape(id))
	if err != nil {
		return sources.Record{}, err
	}
	return c.parseDetails(id, payload)
}

func (c *Connector) parseDetails(id string, payload []byte) (sources.Record, error) {
	var resp metadataResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return sources.Record{}, perr.Parsef("archive metadata response: %v", err)
	}
	md := resp.Metadata
	rec := sources.Record{
		Source:      c.Source(),
		ID:          id,
		Title:       md.Title.first(),
		Author:      md.Creator.first(),
		Date:        md.Date.first(),
		Description: strings.Join(md.Description, "\n"),
		Subjects:    md.Subject,
		Collections: md.Collection,
		LicenseURL:  md.LicenseURL.first(),
		URL:         c.baseURL + "/details/" + id,
	}
	for _, f := range resp.Files {
		if wantedFormats[f.Format] {
			rec.Downloads = append(rec.Downloads, sources.DownloadLink{
				Format: f.Format,
				Name:   f.Name,
				URL:    c.baseURL + "/download/" + id + "/" + f.Name,
			})
		}
	}
	if rec.Title == "" {
		return rec, perr.NotFoundf("archive item %s has no metadata", id)
	}
	return rec, nil
}

// Download fetches the requested format into destDir/<id>/<name>
func (c *Connector) Download(ctx context.Context, rec sources.Record, format, destDir string) (string, error) {
	link, ok := rec.PickDownload(format)
	if !ok {
		return "", perr.NotAvailablef("archive item %s has no %s download", rec.ID, format)
	}
	dest := filepath.Join(destDir, rec.ID, link.Name)
	if _, err := c.fetch.Download(ctx, c.Source(), link.URL, dest); err != nil {
		return "", err
	}
	return dest, nil
}
