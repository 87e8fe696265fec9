// Package sources defines the connector contract shared by the catalog
// adapters. Each connector lives in its own subpackage and translates one
// provider's catalog into Record values
package sources

import (
	"context"
	"strings"
)

// Source identifiers as persisted in verification and candidate records
const (
	SourceArchive        = "internet_archive"
	SourceGutenberg      = "project_gutenberg"
	SourceStandardEbooks = "standard_ebooks"
	SourceWikisource     = "wikisource"
)

// DownloadLink is one downloadable rendition of a work
type DownloadLink struct {
	Format string `json:"format"`
	Name   string `json:"name,omitempty"`
	URL    string `json:"url"`
}

// SectionRef points at one part of a multi page work
type SectionRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Record is a work as one source describes it. Search results fill only a
// few fields; Details fills the rest
type Record struct {
	Source      string         `json:"source"`
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Author      string         `json:"author,omitempty"`
	Date        string         `json:"date,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url"`
	Subjects    []string       `json:"subjects,omitempty"`
	Collections []string       `json:"collections,omitempty"`
	LicenseHint string         `json:"license_hint,omitempty"`
	LicenseURL  string         `json:"license_url,omitempty"`
	Downloads   []DownloadLink `json:"downloads,omitempty"`

	// Composite marks an index page whose content lives in Sections
	Composite bool         `json:"composite,omitempty"`
	Sections  []SectionRef `json:"sections,omitempty"`
}

// PickDownload returns the first download link whose format contains want,
// case insensitively
func (r Record) PickDownload(want string) (DownloadLink, bool) {
	want = strings.ToLower(want)
	for _, d := range r.Downloads {
		if strings.Contains(strings.ToLower(d.Format), want) {
			return d, true
		}
	}
	return DownloadLink{}, false
}

// Connector is one provider's catalog adapter
type Connector interface {
	// Source returns the connector's source identifier
	Source() string

	// Search queries the provider's catalog
	Search(ctx context.Context, query string) ([]Record, error)

	// Details resolves a full record for one work
	Details(ctx context.Context, id string) (Record, error)

	// Download fetches the work in the given format into destDir and
	// returns the path of the written artifact
	Download(ctx context.Context, rec Record, format, destDir string) (string, error)
}
