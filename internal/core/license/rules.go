package license

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

//go:embed rules.json
var embedded []byte

type rawURLRule struct {
	Fragment   string     `json:"fragment"`
	Requires   []string   `json:"requires,omitempty"`
	Excludes   []string   `json:"excludes,omitempty"`
	Type       Type       `json:"type"`
	Verified   bool       `json:"verified"`
	Confidence Confidence `json:"confidence"`
	Note       string     `json:"note"`
}

type rawRules struct {
	Version          int          `json:"version"`
	PDCutoffYear     int          `json:"pd_cutoff_year"`
	DeathPlusYears   int          `json:"death_plus_years"`
	URLRules         []rawURLRule `json:"url_rules"`
	BrandingPatterns []string     `json:"branding_patterns"`
}

// URLRule is one compiled license-URL classification rule. Rules are
// evaluated in declaration order; the first match wins
type URLRule struct {
	Fragment   string
	Requires   []string
	Excludes   []string
	Type       Type
	Verified   bool
	Confidence Confidence
	Note       string
}

func (u URLRule) matches(url string) bool {
	if !strings.Contains(url, u.Fragment) {
		return false
	}
	for _, req := range u.Requires {
		if !strings.Contains(url, req) {
			return false
		}
	}
	for _, exc := range u.Excludes {
		if strings.Contains(url, exc) {
			return false
		}
	}
	return true
}

type brandingPattern struct {
	phrase string
	re     *regexp.Regexp
}

// Rules is the compiled classification rule set
type Rules struct {
	Version        int
	PDCutoffYear   int
	DeathPlusYears int
	URLRules       []URLRule

	branding []brandingPattern
}

// Load compiles the embedded rules.json
func Load() (*Rules, error) {
	var rr rawRules
	if err := json.Unmarshal(embedded, &rr); err != nil {
		return nil, fmt.Errorf("license: parse rules.json: %w", err)
	}
	if rr.PDCutoffYear == 0 || rr.DeathPlusYears == 0 {
		return nil, fmt.Errorf("license: rules.json missing cutoff years")
	}

	r := &Rules{
		Version:        rr.Version,
		PDCutoffYear:   rr.PDCutoffYear,
		DeathPlusYears: rr.DeathPlusYears,
	}
	for _, u := range rr.URLRules {
		if u.Fragment == "" || u.Type == "" {
			return nil, fmt.Errorf("license: url rule missing fragment or type")
		}
		r.URLRules = append(r.URLRules, URLRule(u))
	}
	for _, phrase := range rr.BrandingPatterns {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(phrase))
		if err != nil {
			return nil, fmt.Errorf("license: compile branding pattern %q: %w", phrase, err)
		}
		r.branding = append(r.branding, brandingPattern{phrase: phrase, re: re})
	}
	if len(r.URLRules) == 0 || len(r.branding) == 0 {
		return nil, fmt.Errorf("license: rules.json is empty")
	}
	return r, nil
}

// MustLoad panics when the embedded rules cannot be compiled; for use in
// binaries where a broken embed is unrecoverable
func MustLoad() *Rules {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

func lower(s string) string { return strings.ToLower(s) }

func contains(s, sub string) bool { return strings.Contains(s, sub) }
