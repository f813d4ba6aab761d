package plan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/OfirItzhaky/thelook-agent/pkg/intent"
	"github.com/OfirItzhaky/thelook-agent/pkg/sqlgen"
)

// KeywordMapping maps a canonical value to the phrases that select it.
// Mappings are checked in order; the first hit wins.
type KeywordMapping struct {
	Name    string
	Phrases []string
}

// ExtractionConfig holds the phrase dictionaries the deterministic
// planner layers over a locked base plan. Injected so tests can swap
// dictionaries without touching package state.
type ExtractionConfig struct {
	SeasonalityPhrases []string
	CategoryKeywords   []KeywordMapping
	DepartmentKeywords []KeywordMapping
	CountryKeywords    []KeywordMapping
}

// DefaultExtractionConfig returns the standing dictionaries for the
// thelook catalog.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		SeasonalityPhrases: []string{
			"seasonality", "seasonal", "year over year", "year-over-year",
			"yoy", "compare years", "annual pattern",
		},
		CategoryKeywords: []KeywordMapping{
			{Name: "Outerwear & Coats", Phrases: []string{"outerwear", "coat", "jacket", "parka"}},
			{Name: "Jeans", Phrases: []string{"jeans", "denim"}},
			{Name: "Swim", Phrases: []string{"swim", "swimwear", "bikini"}},
			{Name: "Accessories", Phrases: []string{"accessor", "belt", "scarf", "hat"}},
			{Name: "Active", Phrases: []string{"activewear", "sportswear", "athletic"}},
			{Name: "Sleep & Lounge", Phrases: []string{"sleepwear", "pajama", "lounge"}},
		},
		DepartmentKeywords: []KeywordMapping{
			{Name: "Women", Phrases: []string{"women", "female", "womens"}},
			{Name: "Men", Phrases: []string{"men's", "mens", " men ", "male"}},
		},
		CountryKeywords: []KeywordMapping{
			{Name: "United States", Phrases: []string{"united states", "usa", "u.s."}},
			{Name: "China", Phrases: []string{"china", "chinese"}},
			{Name: "Brasil", Phrases: []string{"brazil", "brasil", "brazilian"}},
			{Name: "United Kingdom", Phrases: []string{"united kingdom", " uk ", "britain", "british"}},
			{Name: "Germany", Phrases: []string{"germany", "german"}},
			{Name: "France", Phrases: []string{"france", "french"}},
			{Name: "Spain", Phrases: []string{"spain", "spanish"}},
			{Name: "Japan", Phrases: []string{"japan", "japanese"}},
			{Name: "South Korea", Phrases: []string{"south korea", "korea", "korean"}},
			{Name: "Australia", Phrases: []string{"australia", "australian"}},
		},
	}
}

var lastNDaysRE = regexp.MustCompile(`(?:past|last)\s+(\d+)\s+days?`)

// applyExtraction layers the lightweight pattern extraction over the
// locked base plan. Only parameters change here, never the template id.
func applyExtraction(p *Plan, userText string, cfg ExtractionConfig) {
	q := strings.ToLower(userText)

	// "last/past N days" overrides the window.
	days := 0
	if m := lastNDaysRE.FindStringSubmatch(q); m != nil {
		days, _ = strconv.Atoi(m[1])
		p.Params["start_date"] = relativeDays(days)
		p.Params["end_date"] = "CURRENT_DATE()"
	}

	// Seasonality / year-over-year framing forces a two-year monthly
	// window, which only makes sense on the trend template.
	if p.TemplateID == sqlgen.TemplateSalesTrend && matchesAny(q, cfg.SeasonalityPhrases) {
		p.Params["start_date"] = relativeDays(730)
		p.Params["end_date"] = "CURRENT_DATE()"
		p.Params["grain"] = "month"
		p.Params["comparison_mode"] = "yoy"
	}

	if name := firstKeywordMatch(q, cfg.CategoryKeywords); name != "" {
		p.Params["category"] = name
	}
	if name := firstKeywordMatch(q, cfg.DepartmentKeywords); name != "" {
		p.Params["department"] = name
	}
	if countries := allKeywordMatches(q, cfg.CountryKeywords); len(countries) > 0 {
		p.Params["countries"] = countries
	}

	// Relative date phrases.
	switch {
	case strings.Contains(q, "last quarter"):
		p.Params["start_date"] = relativeDays(90)
		p.Params["end_date"] = "CURRENT_DATE()"
	case strings.Contains(q, "last year"), strings.Contains(q, "previous year"):
		p.Params["start_date"] = relativeDays(365)
		p.Params["end_date"] = "CURRENT_DATE()"
	case strings.Contains(q, "this month"):
		p.Params["start_date"] = "DATE_TRUNC(CURRENT_DATE(), MONTH)"
		p.Params["end_date"] = "CURRENT_DATE()"
	}

	// Short explicit trend windows read better at daily grain.
	if p.Intent == intent.Trend && days > 0 && days <= 30 {
		p.Params["grain"] = "day"
	}
}

func relativeDays(n int) string {
	return "DATE_SUB(CURRENT_DATE(), INTERVAL " + strconv.Itoa(n) + " DAY)"
}

func matchesAny(q string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

func firstKeywordMatch(q string, mappings []KeywordMapping) string {
	for _, m := range mappings {
		if matchesAny(q, m.Phrases) {
			return m.Name
		}
	}
	return ""
}

func allKeywordMatches(q string, mappings []KeywordMapping) []string {
	var out []string
	for _, m := range mappings {
		if matchesAny(q, m.Phrases) {
			out = append(out, m.Name)
		}
	}
	return out
}
