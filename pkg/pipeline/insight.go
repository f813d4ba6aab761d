package pipeline

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/OfirItzhaky/thelook-agent/pkg/llm"
)

//go:embed prompts/INSIGHT.md
var insightPrompt string

// Insights is the narrative layer over the aggregates: what happened,
// what to do about it, and what to ask next.
type Insights struct {
	Insights  []string `json:"insights"`
	Actions   []string `json:"actions"`
	Followups []string `json:"followups"`
}

// narrate turns the aggregates into insight bullets via one LLM call.
// Every failure path degrades to the deterministic summary; insight
// generation never fails a run.
func (p *Pipeline) narrate(ctx context.Context, log *slog.Logger, res Result) Insights {
	if p.cfg.LLM == nil {
		return deterministicInsights(res)
	}

	response, err := p.cfg.LLM.Complete(ctx, insightPrompt, insightUserPrompt(res))
	if err != nil {
		log.Warn("pipeline: insight call failed, using deterministic summary", "error", err)
		return deterministicInsights(res)
	}

	jsonStr := llm.ExtractJSON(response)
	if jsonStr == "" {
		log.Warn("pipeline: insight response had no JSON",
			"response", llm.TruncateForError(response))
		return deterministicInsights(res)
	}

	var out Insights
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		log.Warn("pipeline: insight JSON invalid, using deterministic summary", "error", err)
		return deterministicInsights(res)
	}
	if len(out.Insights) == 0 {
		return deterministicInsights(res)
	}

	// Enforce the section bounds the prompt asks for.
	out.Insights = clip(out.Insights, 7)
	out.Actions = clip(out.Actions, 3)
	out.Followups = clip(out.Followups, 2)
	return out
}

// insightUserPrompt serializes the aggregates into the stable text
// form the insight prompt expects.
func insightUserPrompt(res Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", res.Question)
	fmt.Fprintf(&b, "Query intent: %s (template %s)\n\n", res.Intent.Intent, res.Plan.TemplateID)

	b.WriteString("== SUMMARY ==\n")
	fmt.Fprintf(&b, "- total_rows: %d\n", res.Summary.TotalRows)
	if res.Summary.HasRevenue {
		fmt.Fprintf(&b, "- total_revenue: %.2f\n", res.Summary.TotalRevenue)
	}
	if res.Summary.HasOrders {
		fmt.Fprintf(&b, "- total_orders: %d\n", res.Summary.TotalOrders)
	}
	if res.ExecError != "" {
		fmt.Fprintf(&b, "- execution_error: %s\n", res.ExecError)
	}

	b.WriteString("\n== TOP ROWS ==\n")
	if len(res.Summary.TopPreview) == 0 {
		b.WriteString("- (no rows)\n")
	}
	for _, row := range res.Summary.TopPreview {
		b.WriteString("- ")
		b.WriteString(formatRow(row))
		b.WriteString("\n")
	}
	return b.String()
}

// formatRow renders one row as "k=v" pairs in sorted key order so the
// prompt text is deterministic.
func formatRow(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
	}
	return strings.Join(parts, " ")
}

// deterministicInsights is the fail-soft narration: a plain recap of
// the aggregates with no model involved.
func deterministicInsights(res Result) Insights {
	var out Insights
	if res.ExecError != "" {
		out.Insights = append(out.Insights,
			fmt.Sprintf("The query could not complete: %s", res.ExecError))
	}
	if res.Summary.TotalRows == 0 {
		out.Insights = append(out.Insights,
			"The query returned no rows for the selected time range.")
		out.Followups = []string{
			"Would a wider time range help?",
			"Should the query use a different breakdown?",
		}
		return out
	}

	out.Insights = append(out.Insights,
		fmt.Sprintf("The query returned %d rows.", res.Summary.TotalRows))
	if res.Summary.HasRevenue {
		out.Insights = append(out.Insights,
			fmt.Sprintf("Total revenue across the result set is %.2f.", res.Summary.TotalRevenue))
	}
	if res.Summary.HasOrders {
		out.Insights = append(out.Insights,
			fmt.Sprintf("Total orders across the result set is %d.", res.Summary.TotalOrders))
	}
	return out
}

func clip(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
