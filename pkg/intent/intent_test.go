package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyGeo(t *testing.T) {
	c := New(DefaultConfig())

	res := c.Classify("which countries bought the most last month?")
	require.Equal(t, Geo, res.Intent)
	require.Equal(t, RuleGeo, res.Rule)
	require.Contains(t, res.Matched, "country")

	// Plural and punctuation both normalize away.
	res = c.Classify("Top cities, please.")
	require.Equal(t, Geo, res.Intent)
	require.Contains(t, res.Matched, "city")
}

func TestClassifyGeoTokenBoundaries(t *testing.T) {
	c := New(DefaultConfig())

	// "geology" contains "geo" as a substring but not as a token.
	res := c.Classify("show me geology trends")
	require.NotEqual(t, Geo, res.Intent)
	require.Equal(t, Trend, res.Intent)

	// "statement" must not fire "state".
	res = c.Classify("give me a statement of monthly revenue")
	require.NotEqual(t, Geo, res.Intent)
}

func TestClassifyPriorityOrder(t *testing.T) {
	c := New(DefaultConfig())

	// Geo outranks everything.
	res := c.Classify("product sales by country over time")
	require.Equal(t, Geo, res.Intent)

	// Trend outranks product.
	res = c.Classify("monthly product sales")
	require.Equal(t, Trend, res.Intent)
	require.Equal(t, RuleTrend, res.Rule)

	// Product outranks segment.
	res = c.Classify("top products for our customers")
	require.Equal(t, Product, res.Intent)
}

func TestClassifyProduct(t *testing.T) {
	c := New(DefaultConfig())

	res := c.Classify("what are the best sellers right now")
	require.Equal(t, Product, res.Intent)
	require.Equal(t, RuleProduct, res.Rule)
	require.Contains(t, res.Matched, "best sellers")
}

func TestClassifySegment(t *testing.T) {
	c := New(DefaultConfig())

	res := c.Classify("break down our customer demographics")
	require.Equal(t, Segment, res.Intent)
	require.Equal(t, RuleSegment, res.Rule)
}

func TestClassifyFallback(t *testing.T) {
	c := New(DefaultConfig())

	res := c.Classify("how are we doing?")
	require.Equal(t, Trend, res.Intent)
	require.Equal(t, RuleFallbackTrend, res.Rule)
	require.Empty(t, res.Matched)
}

func TestClassifyIdempotent(t *testing.T) {
	c := New(DefaultConfig())

	first := c.Classify("revenue by country for jeans")
	second := c.Classify("revenue by country for jeans")
	require.Equal(t, first, second)
}

func TestConfigCopiedOnNew(t *testing.T) {
	cfg := Config{
		GeoWords:     []string{"realm"},
		TrendPhrases: []string{"lately"},
	}
	c := New(cfg)

	// Mutating the caller's slices after construction changes nothing.
	cfg.GeoWords[0] = "sales"
	cfg.TrendPhrases[0] = "sales"

	res := c.Classify("sales per realm")
	require.Equal(t, Geo, res.Intent)

	res = c.Classify("how have sales been lately")
	require.Equal(t, Trend, res.Intent)
}

func TestClassifyCustomConfig(t *testing.T) {
	c := New(Config{
		GeoWords:     []string{"realm"},
		TrendPhrases: []string{"lately"},
	})

	res := c.Classify("sales per realm")
	require.Equal(t, Geo, res.Intent)

	res = c.Classify("how have sales been lately")
	require.Equal(t, Trend, res.Intent)
	require.Equal(t, RuleTrend, res.Rule)
}
