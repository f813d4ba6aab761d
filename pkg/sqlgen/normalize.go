package sqlgen

import "regexp"

// tsCompareRE matches a bare timestamp column compared against a
// DATE-typed expression, e.g.
//
//	orders.created_at >= DATE_SUB(CURRENT_DATE(), INTERVAL 30 DAY)
//
// Comparing a TIMESTAMP column to a DATE silently fails in BigQuery,
// and LLM-authored SQL gets this wrong often enough to patch. A column
// already wrapped in DATE(...) does not match because of the closing
// parenthesis between the column and the comparison operator.
var tsCompareRE = regexp.MustCompile(
	`(?i)\b((?:orders|order_items|users|oi|o|u)\.(?:created_at|shipped_at|delivered_at|returned_at))` +
		`\s*(>=|<=|>|<)\s*` +
		`(DATE_SUB\(\s*CURRENT_DATE\(\)\s*,\s*INTERVAL\s+\d+\s+(?:DAY|WEEK|MONTH|YEAR)\s*\)|DATE_TRUNC\([^)]*\)|CURRENT_DATE\(\))`)

// NormalizeRawSQL applies the defensive syntactic patches for
// guardrail-validated raw SQL. It rewrites timestamp-vs-date
// comparisons to compare at DATE precision; the predicate's meaning is
// unchanged.
func NormalizeRawSQL(sql string) string {
	return tsCompareRE.ReplaceAllString(sql, "DATE($1) $2 $3")
}
