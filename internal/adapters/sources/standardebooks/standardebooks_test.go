package standardebooks

import (
	"strings"
	"testing"
)

const feedFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Standard Ebooks</title>
  <entry>
    <id>https://standardebooks.org/ebooks/jane-austen/pride-and-prejudice</id>
    <title>Pride and Prejudice</title>
    <author><name>Jane Austen</name></author>
    <updated>2024-05-01T00:00:00Z</updated>
    <summary>A novel of manners.</summary>
    <link href="/ebooks/jane-austen/pride-and-prejudice" type="text/html" rel="alternate"/>
    <link href="/ebooks/jane-austen/pride-and-prejudice/downloads/jane-austen_pride-and-prejudice.epub" type="application/epub+zip" rel="http://opds-spec.org/acquisition/open-access"/>
  </entry>
  <entry>
    <id>https://standardebooks.org/ebooks</id>
    <title>All ebooks</title>
    <link href="/ebooks" type="text/html" rel="alternate"/>
  </entry>
</feed>`

func TestParseCatalog(t *testing.T) {
	c := New(nil)
	got, err := c.parseCatalog([]byte(feedFixture))
	if err != nil {
		t.Fatalf("parseCatalog: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("navigation entries not skipped: %+v", got)
	}
	rec := got[0]
	if rec.ID != "/ebooks/jane-austen/pride-and-prejudice" {
		t.Fatalf("id = %s", rec.ID)
	}
	if rec.Author != "Jane Austen" || rec.LicenseHint != "CC0" {
		t.Fatalf("record = %+v", rec)
	}
	if len(rec.Downloads) != 1 || rec.Downloads[0].Format != "epub" {
		t.Fatalf("downloads = %+v", rec.Downloads)
	}
	if rec.Downloads[0].URL != "https://standardebooks.org/ebooks/jane-austen/pride-and-prejudice/downloads/jane-austen_pride-and-prejudice.epub" {
		t.Fatalf("epub url = %s", rec.Downloads[0].URL)
	}
}

const detailsFixture = `<html><body>
<h1 class="title">Pride and Prejudice</h1>
<h2 class="author">Jane Austen</h2>
<section id="description"><p>Elizabeth Bennet navigates manners and marriage.</p></section>
<section id="download">
  <a href="/ebooks/jane-austen/pride-and-prejudice/downloads/pride.epub">epub</a>
  <a href="/ebooks/jane-austen/pride-and-prejudice/downloads/pride.azw3">azw3</a>
</section>
<section id="metadata">
  <dl>
    <dt>Subjects</dt><dd>Fiction</dd>
    <dt>Released</dt><dd>2024-05-01</dd>
  </dl>
</section>
</body></html>`

func TestParseDetails(t *testing.T) {
	c := New(nil)
	rec, err := c.parseDetails("/ebooks/jane-austen/pride-and-prejudice", []byte(detailsFixture))
	if err != nil {
		t.Fatalf("parseDetails: %v", err)
	}
	if rec.Title != "Pride and Prejudice" || rec.Author != "Jane Austen" {
		t.Fatalf("record = %+v", rec)
	}
	if !strings.Contains(rec.Description, "Elizabeth Bennet") {
		t.Fatalf("description = %q", rec.Description)
	}
	if len(rec.Downloads) != 2 {
		t.Fatalf("downloads = %+v", rec.Downloads)
	}
	if rec.Date != "2024-05-01" || len(rec.Subjects) != 1 {
		t.Fatalf("metadata not extracted: %+v", rec)
	}
}

func TestParseDetailsMissing(t *testing.T) {
	c := New(nil)
	if _, err := c.parseDetails("/ebooks/unknown", []byte(`<html><body></body></html>`)); err == nil {
		t.Fatalf("expected error for missing page")
	}
}
