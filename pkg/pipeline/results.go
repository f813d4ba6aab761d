package pipeline

import (
	"math"
	"sort"
)

// Summary holds the simple aggregates computed over the preview rows.
type Summary struct {
	TotalRows    int
	TotalRevenue float64
	HasRevenue   bool
	TotalOrders  int64
	HasOrders    bool

	// TopPreview is the top five rows by revenue, or the first five
	// rows when no revenue column exists. Each row gains a
	// revenue_share key when totals allow it.
	TopPreview []map[string]any
}

// Aggregate post-processes the preview rows: totals for the revenue
// and orders columns when present, per-row revenue shares, and a
// top-five preview.
func Aggregate(rows []map[string]any) Summary {
	s := Summary{TotalRows: len(rows)}
	if len(rows) == 0 {
		return s
	}

	for _, row := range rows {
		if v, ok := numericValue(row["revenue"]); ok {
			s.TotalRevenue += v
			s.HasRevenue = true
		}
		if v, ok := numericValue(row["orders"]); ok {
			s.TotalOrders += int64(v)
			s.HasOrders = true
		}
	}
	s.TotalRevenue = round2(s.TotalRevenue)

	preview := make([]map[string]any, len(rows))
	copy(preview, rows)
	if s.HasRevenue {
		sort.SliceStable(preview, func(i, j int) bool {
			a, _ := numericValue(preview[i]["revenue"])
			b, _ := numericValue(preview[j]["revenue"])
			return a > b
		})
		if s.TotalRevenue > 0 {
			for i, row := range preview {
				rev, ok := numericValue(row["revenue"])
				if !ok {
					continue
				}
				// Copy before annotating so callers' rows stay untouched.
				annotated := make(map[string]any, len(row)+1)
				for k, v := range row {
					annotated[k] = v
				}
				annotated["revenue_share"] = round4(rev / s.TotalRevenue)
				preview[i] = annotated
			}
		}
	}
	if len(preview) > 5 {
		preview = preview[:5]
	}
	s.TopPreview = preview
	return s
}

// numericValue coerces BigQuery row values to float64. NaN and Inf are
// rejected so a single bad cell cannot poison the totals.
func numericValue(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
