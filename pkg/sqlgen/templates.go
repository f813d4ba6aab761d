// Package sqlgen renders final SQL text for a plan: either one of the
// fixed, parameterized template builders, or pass-through of raw SQL
// that already cleared the guardrail at planning time.
//
// Every template uses only whitelisted tables, columns, and joins from
// the schema registry, applies safe date bounds (default last 365
// days), excludes cancelled rows, and enforces a LIMIT so scans stay
// predictable. Parameters are validated against fixed choices; no
// free-form SQL parts are interpolated.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/OfirItzhaky/thelook-agent/pkg/schema"
)

const (
	maxLimit     = 1000
	defaultLimit = 50
)

// SegmentOptions parameterizes the customer-segments template.
type SegmentOptions struct {
	By        string // gender, country, state, city, age, age_bucket
	StartDate string
	EndDate   string
	Limit     int
}

// CustomerSegments segments customers by a dimension and computes
// users, orders, revenue, and AOV. Monetary metrics come from
// order_items.sale_price; date filters use orders.created_at.
func CustomerSegments(opts SegmentOptions) (string, error) {
	var dimExpr, alias string
	if opts.By == "age_bucket" {
		dimExpr = ageBucketExpr
		alias = "age_bucket"
	} else {
		resolved, err := schema.ResolveDimension(opts.By)
		if err != nil {
			return "", err
		}
		dimExpr = resolved
		alias = opts.By
	}

	where := whereClause(
		dateClause("orders", opts.StartDate, opts.EndDate),
		"orders.status != 'Cancelled'",
	)

	return fmt.Sprintf(`SELECT
  %s AS %s,
  COUNT(DISTINCT users.id) AS users,
  COUNT(DISTINCT orders.order_id) AS orders,
  ROUND(SUM(oi.sale_price), 2) AS revenue,
  ROUND(SAFE_DIVIDE(SUM(oi.sale_price), COUNT(DISTINCT orders.order_id)), 2) AS aov
FROM `+"`%s`"+` AS orders
JOIN `+"`%s`"+` AS users
  ON orders.user_id = users.id
JOIN `+"`%s`"+` AS oi
  ON orders.order_id = oi.order_id
%s
GROUP BY %s
ORDER BY revenue DESC
LIMIT %d`,
		dimExpr, alias,
		schema.MustFQTN("orders"), schema.MustFQTN("users"), schema.MustFQTN("order_items"),
		where, alias, safeLimit(opts.Limit)), nil
}

const ageBucketExpr = `CASE
    WHEN users.age < 20 THEN '<20'
    WHEN users.age BETWEEN 20 AND 29 THEN '20s'
    WHEN users.age BETWEEN 30 AND 39 THEN '30s'
    WHEN users.age BETWEEN 40 AND 49 THEN '40s'
    WHEN users.age BETWEEN 50 AND 59 THEN '50s'
    ELSE '60+'
  END`

// ProductOptions parameterizes the top-products template.
type ProductOptions struct {
	Metric    string // revenue, units, avg_price
	StartDate string
	EndDate   string
	Limit     int
}

// TopProducts ranks products by revenue, units, or average price.
func TopProducts(opts ProductOptions) (string, error) {
	var sortExpr string
	switch opts.Metric {
	case "revenue", "":
		sortExpr = "SUM(oi.sale_price)"
	case "units":
		sortExpr = "COUNT(*)"
	case "avg_price":
		sortExpr = "AVG(oi.sale_price)"
	default:
		return "", fmt.Errorf("unsupported product metric %q", opts.Metric)
	}

	where := whereClause(
		dateClause("orders", opts.StartDate, opts.EndDate),
		"oi.status != 'Cancelled'",
		"orders.status != 'Cancelled'",
	)

	return fmt.Sprintf(`SELECT
  p.id,
  p.name AS product_name,
  p.brand,
  p.category,
  p.department,
  ROUND(SUM(oi.sale_price), 2) AS revenue,
  COUNT(*) AS units,
  ROUND(AVG(oi.sale_price), 2) AS avg_price
FROM `+"`%s`"+` AS oi
JOIN `+"`%s`"+` AS p
  ON oi.product_id = p.id
JOIN `+"`%s`"+` AS orders
  ON oi.order_id = orders.order_id
%s
GROUP BY p.id, product_name, p.brand, p.category, p.department
ORDER BY %s DESC
LIMIT %d`,
		schema.MustFQTN("order_items"), schema.MustFQTN("products"), schema.MustFQTN("orders"),
		where, sortExpr, safeLimit(opts.Limit)), nil
}

// TrendOptions parameterizes the sales-trend template.
type TrendOptions struct {
	Grain     string // day, week, month
	StartDate string
	EndDate   string
	Limit     int
}

// SalesTrend builds a time series of orders, revenue, and AOV grouped
// by day, week, or month.
func SalesTrend(opts TrendOptions) (string, error) {
	periodExpr, err := timeGrainExpr("orders", opts.Grain)
	if err != nil {
		return "", err
	}

	where := whereClause(
		dateClause("orders", opts.StartDate, opts.EndDate),
		"orders.status != 'Cancelled'",
	)

	return fmt.Sprintf(`SELECT
  %s AS period,
  COUNT(DISTINCT orders.order_id) AS orders,
  ROUND(SUM(oi.sale_price), 2) AS revenue,
  ROUND(SAFE_DIVIDE(SUM(oi.sale_price), COUNT(DISTINCT orders.order_id)), 2) AS aov
FROM `+"`%s`"+` AS orders
JOIN `+"`%s`"+` AS oi
  ON orders.order_id = oi.order_id
%s
GROUP BY period
ORDER BY period
LIMIT %d`,
		periodExpr,
		schema.MustFQTN("orders"), schema.MustFQTN("order_items"),
		where, safeLimit(opts.Limit)), nil
}

// GeoOptions parameterizes the geo-sales template.
type GeoOptions struct {
	Level     string // country, state, city
	StartDate string
	EndDate   string
	Limit     int
}

// GeoSales computes revenue, order counts, and revenue share by
// geographic level.
func GeoSales(opts GeoOptions) (string, error) {
	level := opts.Level
	if level == "" {
		level = "country"
	}
	switch level {
	case "country", "state", "city":
	default:
		return "", fmt.Errorf("unsupported geo level %q", level)
	}
	dimExpr, err := schema.ResolveDimension(level)
	if err != nil {
		return "", err
	}

	where := whereClause(
		dateClause("orders", opts.StartDate, opts.EndDate),
		"orders.status != 'Cancelled'",
	)

	return fmt.Sprintf(`SELECT
  %s AS %s,
  COUNT(DISTINCT orders.order_id) AS orders,
  ROUND(SUM(oi.sale_price), 2) AS revenue,
  ROUND(SAFE_DIVIDE(SUM(oi.sale_price), NULLIF(SUM(SUM(oi.sale_price)) OVER (), 0)), 4) AS revenue_share
FROM `+"`%s`"+` AS orders
JOIN `+"`%s`"+` AS users
  ON orders.user_id = users.id
JOIN `+"`%s`"+` AS oi
  ON orders.order_id = oi.order_id
%s
GROUP BY %s
ORDER BY revenue DESC
LIMIT %d`,
		dimExpr, level,
		schema.MustFQTN("orders"), schema.MustFQTN("users"), schema.MustFQTN("order_items"),
		where, level, safeLimit(opts.Limit)), nil
}

// dateClause builds a WHERE date condition on the table's default date
// column. Start and end accept either literal dates ('2024-01-01') or
// database-relative expressions (DATE_SUB(CURRENT_DATE(), INTERVAL 30
// DAY)); relative expressions pass through untouched, literals are
// wrapped in DATE('...'). Both empty defaults to the last 365 days.
// Tables without a date column get no clause.
func dateClause(table, startDate, endDate string) string {
	dateCol, err := schema.DefaultDateColumn(table)
	if err != nil || dateCol == "" {
		return ""
	}
	fq := fmt.Sprintf("DATE(%s.%s)", table, dateCol)

	switch {
	case startDate != "" && endDate != "":
		return fmt.Sprintf("%s BETWEEN %s AND %s", fq, dateTerm(startDate), dateTerm(endDate))
	case startDate != "":
		return fmt.Sprintf("%s >= %s", fq, dateTerm(startDate))
	case endDate != "":
		return fmt.Sprintf("%s <= %s", fq, dateTerm(endDate))
	default:
		return fq + " >= DATE_SUB(CURRENT_DATE(), INTERVAL 365 DAY)"
	}
}

// IsRelativeDateExpr reports whether val is a database-relative date
// expression rather than a literal date string.
func IsRelativeDateExpr(val string) bool {
	v := strings.ToUpper(strings.TrimSpace(val))
	return strings.HasPrefix(v, "DATE_SUB(") ||
		strings.HasPrefix(v, "DATE_ADD(") ||
		strings.HasPrefix(v, "DATE_TRUNC(") ||
		strings.HasPrefix(v, "DATE(") ||
		v == "CURRENT_DATE()"
}

func dateTerm(val string) string {
	if IsRelativeDateExpr(val) {
		return val
	}
	return fmt.Sprintf("DATE('%s')", val)
}

func whereClause(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(kept, "\n  AND ")
}

func safeLimit(n int) int {
	if n <= 0 {
		n = defaultLimit
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n
}

func timeGrainExpr(table, grain string) (string, error) {
	col, err := schema.DefaultDateColumn(table)
	if err != nil {
		return "", err
	}
	if col == "" {
		col = "created_at"
	}
	fq := fmt.Sprintf("DATE(%s.%s)", table, col)
	switch grain {
	case "day":
		return fq, nil
	case "week":
		return fmt.Sprintf("FORMAT_DATE('%%G-%%V', %s)", fq), nil
	case "month", "":
		return fmt.Sprintf("FORMAT_DATE('%%Y-%%m', %s)", fq), nil
	default:
		return "", fmt.Errorf("unsupported time grain %q", grain)
	}
}
