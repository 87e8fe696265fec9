package archive

import "testing"

func TestParseSearch(t *testing.T) {
	payload := []byte(`{"response":{"docs":[
		{"identifier":"prideandprejudice1813","title":"Pride and Prejudice","creator":["Austen, Jane"],
		 "date":"1813","subject":["Fiction","Courtship"],"collection":["gutenberg","americana"]},
		{"identifier":"","title":"ghost entry"},
		{"identifier":"mobydick","title":["Moby Dick"],"creator":"Melville, Herman","date":"1851"}
	]}}`)

	c := New(nil)
	got, err := c.parseSearch(payload)
	if err != nil {
		t.Fatalf("parseSearch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	first := got[0]
	if first.ID != "prideandprejudice1813" || first.Title != "Pride and Prejudice" || first.Author != "Austen, Jane" {
		t.Fatalf("first record = %+v", first)
	}
	if len(first.Collections) != 2 || first.Collections[0] != "gutenberg" {
		t.Fatalf("collections = %v", first.Collections)
	}
	if first.URL != "https://archive.org/details/prideandprejudice1813" {
		t.Fatalf("url = %s", first.URL)
	}
	if got[1].Author != "Melville, Herman" {
		t.Fatalf("string creator not accepted: %+v", got[1])
	}
}

func TestParseDetails(t *testing.T) {
	payload := []byte(`{
		"metadata":{
			"title":"Pride and Prejudice","creator":"Austen, Jane","date":"1813",
			"description":"A classic novel.","collection":["gutenberg"],
			"licenseurl":"https://creativecommons.org/publicdomain/zero/1.0/"
		},
		"files":[
			{"name":"book.epub","format":"EPUB"},
			{"name":"book_djvu.xml","format":"Djvu XML"},
			{"name":"book.txt","format":"Plain Text"},
			{"name":"scandata.xml","format":"Scandata"}
		]}`)

	c := New(nil)
	rec, err := c.parseDetails("prideandprejudice1813", payload)
	if err != nil {
		t.Fatalf("parseDetails: %v", err)
	}
	if rec.LicenseURL != "https://creativecommons.org/publicdomain/zero/1.0/" {
		t.Fatalf("license url = %s", rec.LicenseURL)
	}
	if len(rec.Downloads) != 2 {
		t.Fatalf("downloads = %+v", rec.Downloads)
	}
	if rec.Downloads[0].URL != "https://archive.org/download/prideandprejudice1813/book.epub" {
		t.Fatalf("download url = %s", rec.Downloads[0].URL)
	}
	if link, ok := rec.PickDownload("text"); !ok || link.Name != "book.txt" {
		t.Fatalf("PickDownload(text) = %+v, %v", link, ok)
	}
}

func TestParseDetailsEmpty(t *testing.T) {
	c := New(nil)
	if _, err := c.parseDetails("missing", []byte(`{"metadata":{}}`)); err == nil {
		t.Fatalf("expected error for empty metadata")
	}
}
