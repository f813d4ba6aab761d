package sqlgen

import (
	"errors"
	"fmt"
)

// TemplateID names a whitelisted SQL template. RawSQL is the escape
// hatch for guardrail-validated dynamic SQL.
type TemplateID string

const (
	TemplateCustomerSegments TemplateID = "q_customer_segments"
	TemplateTopProducts      TemplateID = "q_top_products"
	TemplateSalesTrend       TemplateID = "q_sales_trend"
	TemplateGeoSales         TemplateID = "q_geo_sales"
	TemplateRawSQL           TemplateID = "raw_sql"
)

// ParamRawSQL is the parameter key the validated dynamic SQL text is
// stashed under.
const ParamRawSQL = "raw_sql"

// ErrUnknownTemplate is returned when generation is asked for a
// template id outside the whitelist. Ids can arrive as free strings
// from LLM JSON, so this stays a runtime check.
var ErrUnknownTemplate = errors.New("unknown template id")

// KnownTemplate reports whether id names one of the four fixed
// templates (RawSQL is deliberately excluded; it is not selectable by
// refinement).
func KnownTemplate(id TemplateID) bool {
	switch id {
	case TemplateCustomerSegments, TemplateTopProducts, TemplateSalesTrend, TemplateGeoSales:
		return true
	}
	return false
}

// TemplateIDs returns the four selectable template ids.
func TemplateIDs() []TemplateID {
	return []TemplateID{
		TemplateCustomerSegments,
		TemplateTopProducts,
		TemplateSalesTrend,
		TemplateGeoSales,
	}
}

// Generate renders the final SQL text for a template id and parameter
// map. Raw SQL passes through (it was validated at planning time and
// is trusted here) after the timestamp-comparison normalization pass;
// missing parameters fall back to each template's own defaults.
func Generate(id TemplateID, params map[string]any) (string, error) {
	startDate := stringParam(params, "start_date", "")
	endDate := stringParam(params, "end_date", "")

	switch id {
	case TemplateRawSQL:
		raw := stringParam(params, ParamRawSQL, "")
		if raw == "" {
			return "", fmt.Errorf("raw_sql template selected but no SQL present")
		}
		return NormalizeRawSQL(raw), nil

	case TemplateCustomerSegments:
		return CustomerSegments(SegmentOptions{
			By:        stringParam(params, "by", "country"),
			StartDate: startDate,
			EndDate:   endDate,
			Limit:     intParam(params, "limit", 100),
		})

	case TemplateTopProducts:
		return TopProducts(ProductOptions{
			Metric:    stringParam(params, "metric", "revenue"),
			StartDate: startDate,
			EndDate:   endDate,
			Limit:     intParam(params, "limit", 20),
		})

	case TemplateSalesTrend:
		return SalesTrend(TrendOptions{
			Grain:     stringParam(params, "grain", "month"),
			StartDate: startDate,
			EndDate:   endDate,
			Limit:     intParam(params, "limit", 1000),
		})

	case TemplateGeoSales:
		return GeoSales(GeoOptions{
			Level:     stringParam(params, "level", "country"),
			StartDate: startDate,
			EndDate:   endDate,
			Limit:     intParam(params, "limit", 200),
		})

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
}

func stringParam(params map[string]any, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

// intParam reads an integer parameter, tolerating the float64 shape
// JSON decoding produces.
func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}
