package sqlgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCustomerSegments(t *testing.T) {
	sql, err := CustomerSegments(SegmentOptions{By: "gender", Limit: 100})
	require.NoError(t, err)
	require.Contains(t, sql, "users.gender AS gender")
	require.Contains(t, sql, "`bigquery-public-data.thelook_ecommerce.orders`")
	require.Contains(t, sql, "orders.status != 'Cancelled'")
	require.Contains(t, sql, "SAFE_DIVIDE")
	require.Contains(t, sql, "LIMIT 100")
	// Default date window applies when no dates given.
	require.Contains(t, sql, "DATE_SUB(CURRENT_DATE(), INTERVAL 365 DAY)")
}

func TestCustomerSegmentsAgeBucket(t *testing.T) {
	sql, err := CustomerSegments(SegmentOptions{By: "age_bucket", Limit: 50})
	require.NoError(t, err)
	require.Contains(t, sql, "CASE")
	require.Contains(t, sql, "AS age_bucket")
	require.Contains(t, sql, "'60+'")
}

func TestCustomerSegmentsBadDimension(t *testing.T) {
	_, err := CustomerSegments(SegmentOptions{By: "zodiac_sign"})
	require.Error(t, err)
}

func TestTopProducts(t *testing.T) {
	sql, err := TopProducts(ProductOptions{Metric: "units", Limit: 20})
	require.NoError(t, err)
	require.Contains(t, sql, "ORDER BY COUNT(*) DESC")
	require.Contains(t, sql, "oi.status != 'Cancelled'")
	require.Contains(t, sql, "orders.status != 'Cancelled'")
	require.Contains(t, sql, "`bigquery-public-data.thelook_ecommerce.products`")
	require.Contains(t, sql, "LIMIT 20")

	_, err = TopProducts(ProductOptions{Metric: "profit"})
	require.Error(t, err)
}

func TestSalesTrendGrains(t *testing.T) {
	sql, err := SalesTrend(TrendOptions{Grain: "day", Limit: 1000})
	require.NoError(t, err)
	require.Contains(t, sql, "DATE(orders.created_at) AS period")

	sql, err = SalesTrend(TrendOptions{Grain: "week", Limit: 1000})
	require.NoError(t, err)
	require.Contains(t, sql, "FORMAT_DATE('%G-%V'")

	sql, err = SalesTrend(TrendOptions{Grain: "month", Limit: 1000})
	require.NoError(t, err)
	require.Contains(t, sql, "FORMAT_DATE('%Y-%m'")

	_, err = SalesTrend(TrendOptions{Grain: "quarter"})
	require.Error(t, err)
}

func TestGeoSales(t *testing.T) {
	sql, err := GeoSales(GeoOptions{Level: "state", Limit: 200})
	require.NoError(t, err)
	require.Contains(t, sql, "users.state AS state")
	require.Contains(t, sql, "revenue_share")
	require.Contains(t, sql, "OVER ()")
	require.Contains(t, sql, "LIMIT 200")

	// Empty level defaults to country.
	sql, err = GeoSales(GeoOptions{})
	require.NoError(t, err)
	require.Contains(t, sql, "users.country AS country")

	_, err = GeoSales(GeoOptions{Level: "continent"})
	require.Error(t, err)
}

func TestDateBounds(t *testing.T) {
	// Literal dates are wrapped; relative expressions pass through.
	sql, err := SalesTrend(TrendOptions{
		Grain:     "month",
		StartDate: "2024-01-01",
		EndDate:   "2024-06-30",
		Limit:     100,
	})
	require.NoError(t, err)
	require.Contains(t, sql, "BETWEEN DATE('2024-01-01') AND DATE('2024-06-30')")

	sql, err = SalesTrend(TrendOptions{
		Grain:     "month",
		StartDate: "DATE_SUB(CURRENT_DATE(), INTERVAL 90 DAY)",
		EndDate:   "CURRENT_DATE()",
		Limit:     100,
	})
	require.NoError(t, err)
	require.Contains(t, sql, "BETWEEN DATE_SUB(CURRENT_DATE(), INTERVAL 90 DAY) AND CURRENT_DATE()")
	require.NotContains(t, sql, "DATE('DATE_SUB")
}

func TestSafeLimit(t *testing.T) {
	sql, err := SalesTrend(TrendOptions{Grain: "month", Limit: 50000})
	require.NoError(t, err)
	require.Contains(t, sql, "LIMIT 1000")
	require.NotContains(t, sql, "50000")

	sql, err = SalesTrend(TrendOptions{Grain: "month", Limit: -5})
	require.NoError(t, err)
	require.Contains(t, sql, "LIMIT 50")
}

func TestGenerateDispatch(t *testing.T) {
	sql, err := Generate(TemplateCustomerSegments, map[string]any{"by": "country"})
	require.NoError(t, err)
	require.Contains(t, sql, "users.country")
	require.Contains(t, sql, "LIMIT 100")

	// JSON-decoded numbers arrive as float64.
	sql, err = Generate(TemplateTopProducts, map[string]any{"limit": float64(7)})
	require.NoError(t, err)
	require.Contains(t, sql, "LIMIT 7")

	_, err = Generate(TemplateID("q_everything"), nil)
	require.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestGenerateRawSQL(t *testing.T) {
	raw := "SELECT order_id FROM orders LIMIT 10"
	sql, err := Generate(TemplateRawSQL, map[string]any{ParamRawSQL: raw})
	require.NoError(t, err)
	require.Equal(t, raw, sql)

	_, err = Generate(TemplateRawSQL, map[string]any{})
	require.Error(t, err)
}

func TestKnownTemplate(t *testing.T) {
	for _, id := range TemplateIDs() {
		require.True(t, KnownTemplate(id))
	}
	require.False(t, KnownTemplate(TemplateRawSQL))
	require.False(t, KnownTemplate(TemplateID("q_everything")))
}

func TestNormalizeRawSQL(t *testing.T) {
	in := "SELECT * FROM orders WHERE orders.created_at >= DATE_SUB(CURRENT_DATE(), INTERVAL 30 DAY) LIMIT 10"
	out := NormalizeRawSQL(in)
	require.Contains(t, out, "DATE(orders.created_at) >= DATE_SUB(CURRENT_DATE(), INTERVAL 30 DAY)")

	// Already wrapped columns are left alone.
	in = "SELECT * FROM orders WHERE DATE(orders.created_at) >= DATE_SUB(CURRENT_DATE(), INTERVAL 30 DAY) LIMIT 10"
	require.Equal(t, in, NormalizeRawSQL(in))

	// Aliased columns are covered too.
	in = "SELECT * FROM order_items AS oi WHERE oi.created_at < CURRENT_DATE() LIMIT 10"
	out = NormalizeRawSQL(in)
	require.Contains(t, out, "DATE(oi.created_at) < CURRENT_DATE()")

	// Non-date predicates are untouched.
	in = "SELECT * FROM orders WHERE orders.num_of_item >= 2 LIMIT 10"
	require.Equal(t, in, NormalizeRawSQL(in))
}

func TestTemplatesAlwaysLimited(t *testing.T) {
	for _, id := range TemplateIDs() {
		sql, err := Generate(id, nil)
		require.NoError(t, err, "template %s", id)
		require.True(t, strings.Contains(sql, "LIMIT "), "template %s has no LIMIT", id)
	}
}
