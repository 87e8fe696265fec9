// Package license implements the pure classification rules deciding whether
// a work's license permits remixing. Every classifier returns a Result; the
// Finalize invariant is what actually gates publication
package license

import (
	"fmt"
	"regexp"
	"time"
)

// Type is the recognized license classification. String values are stable;
// they appear in the persisted verification store
type Type string

// Known license types
const (
	TypeUnknown Type = "unknown"
	TypeUSPD    Type = "US PD"
	TypeCC0     Type = "CC0"
	TypeCCBY    Type = "CC BY"
	TypeCCBYSA  Type = "CC BY-SA"
	TypeCCND    Type = "CC ND"
	TypeCCNC    Type = "CC NC"
)

// Confidence grades how sure a classifier is of its finding
type Confidence string

// Confidence levels
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// atLeast reports whether c is medium or high
func (c Confidence) atLeast(min Confidence) bool {
	rank := map[Confidence]int{ConfidenceLow: 0, ConfidenceMedium: 1, ConfidenceHigh: 2}
	return rank[c] >= rank[min]
}

// Result is the outcome of a single classification pass.
// It is a pure value; persistence wraps it in a verification record
type Result struct {
	Verified   bool       `json:"is_verified"`
	Type       Type       `json:"license_type"`
	Confidence Confidence `json:"confidence"`
	Notes      []string   `json:"notes"`
}

func unknownResult(notes ...string) Result {
	return Result{Type: TypeUnknown, Confidence: ConfidenceLow, Notes: notes}
}

// remixTypes is the set of license types that permit remixing
var remixTypes = map[Type]bool{
	TypeUSPD:   true,
	TypeCC0:    true,
	TypeCCBY:   true,
	TypeCCBYSA: true,
}

// Remixable reports whether r permits remixing: confidence must be medium or
// high and the license type must be in the remix-permitting set
func Remixable(r Result) bool {
	return r.Verified && r.Confidence.atLeast(ConfidenceMedium) && remixTypes[r.Type]
}

// Finalize enforces the verification invariant on a raw classifier result:
// Verified may only stand when confidence is medium or high and the type
// permits remixing
func Finalize(r Result) Result {
	if r.Verified && (!r.Confidence.atLeast(ConfidenceMedium) || !remixTypes[r.Type]) {
		r.Verified = false
	}
	return r
}

// ClassifyByDate decides US public-domain status from publication year and,
// when the publication year alone is inconclusive, the author's death year.
// pubYear or deathYear of 0 means not supplied. now supplies the current year
func (r *Rules) ClassifyByDate(pubYear, deathYear int, now time.Time) Result {
	if pubYear == 0 {
		return unknownResult("No publication year provided")
	}
	if pubYear < r.PDCutoffYear {
		return Result{
			Verified:   true,
			Type:       TypeUSPD,
			Confidence: ConfidenceHigh,
			Notes: []string{fmt.Sprintf(
				"Publication year %d is before %d, indicating US public domain status", pubYear, r.PDCutoffYear)},
		}
	}
	if deathYear != 0 {
		if now.Year()-deathYear > r.DeathPlusYears {
			return Result{
				Verified:   true,
				Type:       TypeUSPD,
				Confidence: ConfidenceMedium,
				Notes: []string{fmt.Sprintf(
					"Author died in %d, which is more than %d years ago", deathYear, r.DeathPlusYears)},
			}
		}
		return unknownResult(fmt.Sprintf(
			"Author died in %d, which is less than %d years ago", deathYear, r.DeathPlusYears))
	}
	return unknownResult(fmt.Sprintf(
		"Publication year %d is after %d, not in US public domain based on publication date",
		pubYear, r.PDCutoffYear))
}

// ClassifyByURL matches a license URL against the known fragments in
// priority order. Unrecognized URLs come back unknown/low
func (r *Rules) ClassifyByURL(url string) Result {
	if url == "" {
		return unknownResult("No license URL provided")
	}
	for _, rule := range r.URLRules {
		if rule.matches(url) {
			return Result{
				Verified:   rule.Verified,
				Type:       rule.Type,
				Confidence: rule.Confidence,
				Notes:      []string{rule.Note},
			}
		}
	}
	return unknownResult(fmt.Sprintf("Unknown or unsupported license URL: %s", url))
}

// ClassifyBranding scans normalized text for publisher branding phrases.
// Any hit means the text cannot be treated as cleanly licensed; a clean scan
// is US PD at high confidence
func (r *Rules) ClassifyBranding(text string) Result {
	res := Result{Verified: true, Type: TypeUSPD, Confidence: ConfidenceMedium}
	for _, pat := range r.branding {
		if pat.re.MatchString(text) {
			res.Verified = false
			res.Notes = append(res.Notes, fmt.Sprintf("Publisher branding found: %q", pat.phrase))
		}
	}
	if res.Verified {
		res.Notes = append(res.Notes, "No publisher branding found")
		res.Confidence = ConfidenceHigh
	}
	return res
}

// Metadata carries the catalog fields license inference draws on
type Metadata struct {
	LicenseURL  string
	Date        string
	Description string
	Collections []string
}

var yearRe = regexp.MustCompile(`\b(1[0-9]{3}|20[0-2][0-9])\b`)

// YearFromDate extracts a plausible publication year from a free-form date
// string, 0 when none is found
func YearFromDate(date string) int {
	m := yearRe.FindString(date)
	if m == "" {
		return 0
	}
	year := 0
	for _, ch := range m {
		year = year*10 + int(ch-'0')
	}
	return year
}

// ClassifyMetadata runs the composite inference used for catalog-API records:
// explicit license URL, publication year in the date field, public-domain
// wording in the description, and known public-domain collections all
// contribute, with the strongest signal setting confidence
func (r *Rules) ClassifyMetadata(m Metadata, now time.Time) Result {
	res := unknownResult()

	if m.LicenseURL != "" {
		if byURL := r.ClassifyByURL(m.LicenseURL); byURL.Type != TypeUnknown {
			res.Type = byURL.Type
			res.Confidence = ConfidenceMedium
			res.Notes = append(res.Notes, fmt.Sprintf("%s license URL found in metadata", byURL.Type))
		}
	}

	if year := YearFromDate(m.Date); year != 0 && year < r.PDCutoffYear {
		res.Notes = append(res.Notes, fmt.Sprintf("Publication year %d suggests US public domain status", year))
		if res.Type == TypeUnknown {
			res.Type = TypeUSPD
		}
		if res.Confidence == ConfidenceLow {
			res.Confidence = ConfidenceMedium
		}
	}

	if desc := lower(m.Description); desc != "" {
		if contains(desc, "public domain") || contains(desc, "not copyrighted") {
			res.Notes = append(res.Notes, "Public domain mentioned in description")
			if res.Type == TypeUnknown {
				res.Type = TypeUSPD
			}
			if res.Confidence == ConfidenceLow {
				res.Confidence = ConfidenceMedium
			}
		}
	}

	for _, coll := range m.Collections {
		if contains(lower(coll), "gutenberg") {
			res.Notes = append(res.Notes, "Part of Project Gutenberg collection")
			if res.Type == TypeUnknown {
				res.Type = TypeUSPD
			}
			res.Confidence = ConfidenceHigh
		}
	}

	if res.Confidence.atLeast(ConfidenceMedium) && res.Type != TypeUnknown {
		res.Verified = true
	}
	return Finalize(res)
}
