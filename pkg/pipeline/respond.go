package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// maxResponseLen bounds the final response text.
const maxResponseLen = 2000

// FormatResponse renders the final CLI answer: insight bullets, an
// ASCII preview table, and a redirect note when the dynamic guardrail
// swapped the user's question for the safe fallback. Deterministic,
// no model calls.
func FormatResponse(res Result) string {
	var parts []string

	if len(res.Insights.Insights) > 0 {
		parts = append(parts, formatBullets("Insights:", res.Insights.Insights))
	} else {
		parts = append(parts,
			"No insights were produced. This can happen if the query returned no rows "+
				"or the time range was too narrow.")
	}

	if len(res.Insights.Actions) > 0 {
		parts = append(parts, formatBullets("Recommended actions:", res.Insights.Actions))
	}
	if len(res.Insights.Followups) > 0 {
		parts = append(parts, formatBullets("Follow-ups:", res.Insights.Followups))
	}

	if table := previewTable(res.Summary.TopPreview); table != "" {
		parts = append(parts, "Preview:\n"+table)
	}

	if res.Plan.GuardrailReason != "" && res.Plan.GuardrailReason != "ok" {
		parts = append(parts, fmt.Sprintf(
			"Note: the generated query was redirected to a safe sales-trend fallback (%s).",
			res.Plan.GuardrailReason))
	}

	text := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if len(text) > maxResponseLen {
		text = text[:maxResponseLen-3] + "..."
	}
	return text
}

func formatBullets(title string, items []string) string {
	lines := make([]string, 0, len(items)+1)
	lines = append(lines, title)
	for _, it := range items {
		lines = append(lines, "- "+it)
	}
	return strings.Join(lines, "\n")
}

// previewTable renders the top rows as an ASCII table. Columns come
// from the first row, sorted for stable output.
func previewTable(rows []map[string]any) string {
	if len(rows) == 0 {
		return ""
	}

	cols := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	var b strings.Builder
	table := tablewriter.NewWriter(&b)
	table.SetHeader(cols)
	for _, row := range rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = formatCell(row[c])
		}
		table.Append(cells)
	}
	table.Render()
	return b.String()
}

func formatCell(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.2f", n)
	case float32:
		return fmt.Sprintf("%.2f", n)
	default:
		return fmt.Sprintf("%v", v)
	}
}
