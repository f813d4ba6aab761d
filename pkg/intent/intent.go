// Package intent classifies free-text questions into one of four fixed
// query categories using keyword matching. Classification is a pure
// function of the input text and the injected keyword configuration;
// there is no hidden global state, so classifiers are safe to share
// across goroutines and parallel tests.
package intent

import (
	"strings"
	"unicode"

	"github.com/gertd/go-pluralize"
)

// Intent is one of the four fixed query categories.
type Intent string

const (
	Segment Intent = "segment"
	Product Intent = "product"
	Trend   Intent = "trend"
	Geo     Intent = "geo"
)

// Rule names identify which classification rule fired, for diagnostics.
const (
	RuleGeo           = "geo_keywords"
	RuleTrend         = "trend_keywords"
	RuleProduct       = "product_keywords"
	RuleSegment       = "segment_keywords"
	RuleFallbackTrend = "fallback_trend"
)

// Config holds the keyword sets the classifier matches against. Geo
// words are matched at token level (after singularization); the other
// sets are matched as substrings.
type Config struct {
	GeoWords       []string
	TrendPhrases   []string
	ProductPhrases []string
	SegmentPhrases []string
}

// DefaultConfig returns the standing keyword sets for the thelook
// dataset.
func DefaultConfig() Config {
	return Config{
		GeoWords: []string{
			"country", "state", "city", "region", "geo", "location",
			"by", "where",
		},
		TrendPhrases: []string{
			"trend", "over time", "by month", "by day", "daily", "weekly",
			"monthly", "timeseries", "time series", "seasonality",
			"evolution",
		},
		ProductPhrases: []string{
			"product", "sku", "top products", "best sellers",
			"bestsellers", "brand", "category", "top items", "top sku",
		},
		SegmentPhrases: []string{
			"customer", "users", "segment", "segmentation", "cohort",
			"demographic", "by gender", "by age", "audience",
			"customers by",
		},
	}
}

// Result describes a classification: the chosen intent, the rule that
// fired, and the keywords that matched.
type Result struct {
	Intent  Intent
	Rule    string
	Matched []string
}

// Classifier matches user text against a fixed keyword configuration.
type Classifier struct {
	cfg      Config
	geoWords map[string]struct{}
	plural   *pluralize.Client
}

// New builds a classifier from cfg. The config is copied; later
// mutation of cfg has no effect.
func New(cfg Config) *Classifier {
	geo := make(map[string]struct{}, len(cfg.GeoWords))
	for _, w := range cfg.GeoWords {
		geo[strings.ToLower(w)] = struct{}{}
	}
	return &Classifier{
		cfg: Config{
			GeoWords:       copyStrings(cfg.GeoWords),
			TrendPhrases:   copyStrings(cfg.TrendPhrases),
			ProductPhrases: copyStrings(cfg.ProductPhrases),
			SegmentPhrases: copyStrings(cfg.SegmentPhrases),
		},
		geoWords: geo,
		plural:   pluralize.NewClient(),
	}
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Classify maps user text to an intent. Rules are tried in strict
// priority order and the first match wins:
//
//  1. geo, on exact (singularized) tokens so that e.g. "geology" does
//     not match "geo"
//  2. trend, on substrings
//  3. product, on substrings
//  4. segment, on substrings
//  5. fallback to trend
//
// Trend outranks product/segment so a query mixing a time phrase with a
// product noun gets the temporal base template; refinement can still
// add a category filter on top.
func (c *Classifier) Classify(text string) Result {
	lowered := strings.ToLower(text)

	if matched := c.matchGeoTokens(lowered); len(matched) > 0 {
		return Result{Intent: Geo, Rule: RuleGeo, Matched: matched}
	}
	if matched := matchSubstrings(lowered, c.cfg.TrendPhrases); len(matched) > 0 {
		return Result{Intent: Trend, Rule: RuleTrend, Matched: matched}
	}
	if matched := matchSubstrings(lowered, c.cfg.ProductPhrases); len(matched) > 0 {
		return Result{Intent: Product, Rule: RuleProduct, Matched: matched}
	}
	if matched := matchSubstrings(lowered, c.cfg.SegmentPhrases); len(matched) > 0 {
		return Result{Intent: Segment, Rule: RuleSegment, Matched: matched}
	}
	return Result{Intent: Trend, Rule: RuleFallbackTrend}
}

// matchGeoTokens intersects the singularized tokens of the text with
// the geo word set. Token-level matching keeps broad words like "by"
// from firing on substrings of larger words.
func (c *Classifier) matchGeoTokens(lowered string) []string {
	var matched []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(lowered) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return unicode.IsPunct(r)
		})
		if tok == "" {
			continue
		}
		norm := c.plural.Singular(tok)
		if _, ok := c.geoWords[norm]; !ok {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		matched = append(matched, norm)
	}
	return matched
}

func matchSubstrings(lowered string, phrases []string) []string {
	var matched []string
	for _, p := range phrases {
		if strings.Contains(lowered, p) {
			matched = append(matched, p)
		}
	}
	return matched
}
