package license

import (
	"strings"
	"testing"
	"time"

	"openshelf/internal/platform/testkit"
)

func mustRules(t *testing.T) *Rules {
	t.Helper()
	r, err := Load()
	testkit.MustNoErr(t, err)
	return r
}

var now = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestClassifyByDate(t *testing.T) {
	r := mustRules(t)

	cases := []struct {
		name       string
		pubYear    int
		deathYear  int
		verified   bool
		typ        Type
		confidence Confidence
	}{
		{"pre-cutoff publication", 1813, 0, true, TypeUSPD, ConfidenceHigh},
		{"modern publication", 2020, 0, false, TypeUnknown, ConfidenceLow},
		{"author long dead", 2020, 1945, true, TypeUSPD, ConfidenceMedium},
		{"author recently dead", 2020, 2010, false, TypeUnknown, ConfidenceLow},
		{"no year at all", 0, 0, false, TypeUnknown, ConfidenceLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.ClassifyByDate(tc.pubYear, tc.deathYear, now)
			if got.Verified != tc.verified || got.Type != tc.typ || got.Confidence != tc.confidence {
				t.Fatalf("ClassifyByDate(%d, %d) = %+v, want verified=%v type=%s confidence=%s",
					tc.pubYear, tc.deathYear, got, tc.verified, tc.typ, tc.confidence)
			}
			if len(got.Notes) == 0 {
				t.Fatalf("expected an explanatory note")
			}
		})
	}
}

func TestClassifyByURL(t *testing.T) {
	r := mustRules(t)

	cases := []struct {
		url      string
		typ      Type
		verified bool
	}{
		{"https://creativecommons.org/publicdomain/zero/1.0/", TypeCC0, true},
		{"https://creativecommons.org/licenses/by/4.0/", TypeCCBY, true},
		{"https://creativecommons.org/licenses/by-sa/3.0/", TypeCCBYSA, true},
		{"https://creativecommons.org/licenses/by-nd/4.0/", TypeCCND, false},
		{"https://creativecommons.org/licenses/by-nc/4.0/", TypeCCNC, false},
		{"https://example.com/some-license", TypeUnknown, false},
		{"", TypeUnknown, false},
	}
	for _, tc := range cases {
		got := r.ClassifyByURL(tc.url)
		if got.Type != tc.typ || got.Verified != tc.verified {
			t.Fatalf("ClassifyByURL(%q) = %+v, want type=%s verified=%v", tc.url, got, tc.typ, tc.verified)
		}
		if tc.typ != TypeUnknown && got.Confidence != ConfidenceHigh {
			t.Fatalf("ClassifyByURL(%q) confidence = %s, want high", tc.url, got.Confidence)
		}
	}
}

func TestClassifyBranding(t *testing.T) {
	r := mustRules(t)

	dirty := "CHAPTER I\n\nIt was the best of times.\n\nEnd of the Project Gutenberg EBook of A Tale"
	got := r.ClassifyBranding(dirty)
	if got.Verified {
		t.Fatalf("expected branding hit to fail verification: %+v", got)
	}
	if got.Confidence != ConfidenceMedium {
		t.Fatalf("negative finding confidence = %s, want medium baseline", got.Confidence)
	}
	found := false
	for _, n := range got.Notes {
		if strings.Contains(n, "branding found") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a branding note, got %v", got.Notes)
	}

	clean := "CHAPTER I\n\nIt was the best of times."
	got = r.ClassifyBranding(clean)
	if !got.Verified || got.Type != TypeUSPD || got.Confidence != ConfidenceHigh {
		t.Fatalf("clean text = %+v, want verified US PD high", got)
	}
}

func TestClassifyMetadata(t *testing.T) {
	r := mustRules(t)

	t.Run("gutenberg collection is high confidence", func(t *testing.T) {
		got := r.ClassifyMetadata(Metadata{Collections: []string{"gutenberg", "texts"}}, now)
		if !got.Verified || got.Type != TypeUSPD || got.Confidence != ConfidenceHigh {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("license url wins over date", func(t *testing.T) {
		got := r.ClassifyMetadata(Metadata{
			LicenseURL: "https://creativecommons.org/licenses/by-sa/3.0/",
			Date:       "1850",
		}, now)
		if !got.Verified || got.Type != TypeCCBYSA {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("old date alone is medium", func(t *testing.T) {
		got := r.ClassifyMetadata(Metadata{Date: "circa 1887"}, now)
		if !got.Verified || got.Type != TypeUSPD || got.Confidence != ConfidenceMedium {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("nothing usable stays unverified", func(t *testing.T) {
		got := r.ClassifyMetadata(Metadata{Date: "2019", Description: "a recent novel"}, now)
		if got.Verified {
			t.Fatalf("got %+v", got)
		}
	})
}

func TestFinalizeAndRemixable(t *testing.T) {
	// a low-confidence "verified" result must be demoted
	r := Finalize(Result{Verified: true, Type: TypeUSPD, Confidence: ConfidenceLow})
	if r.Verified {
		t.Fatalf("low confidence must not stay verified")
	}
	// a non-remixable type must be demoted even at high confidence
	r = Finalize(Result{Verified: true, Type: TypeCCND, Confidence: ConfidenceHigh})
	if r.Verified {
		t.Fatalf("ND must not stay verified")
	}
	if !Remixable(Result{Verified: true, Type: TypeCC0, Confidence: ConfidenceHigh}) {
		t.Fatalf("CC0 high should be remixable")
	}
	if Remixable(Result{Verified: true, Type: TypeCCNC, Confidence: ConfidenceHigh}) {
		t.Fatalf("NC must not be remixable")
	}
}

func TestYearFromDate(t *testing.T) {
	cases := map[string]int{
		"1850":           1850,
		"circa 1887":     1887,
		"2021-03-01":     2021,
		"no year here":   0,
		"year 950 early": 0,
	}
	for in, want := range cases {
		if got := YearFromDate(in); got != want {
			t.Fatalf("YearFromDate(%q) = %d, want %d", in, got, want)
		}
	}
}
