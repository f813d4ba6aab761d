package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/OfirItzhaky/thelook-agent/pkg/intent"
	"github.com/OfirItzhaky/thelook-agent/pkg/llm"
	"github.com/OfirItzhaky/thelook-agent/pkg/sqlgen"
)

// Default lookback window, expressed as database-relative SQL so "now"
// is evaluated at execution time, not planning time.
const (
	defaultStartExpr = "DATE_SUB(CURRENT_DATE(), INTERVAL 365 DAY)"
	defaultEndExpr   = "CURRENT_DATE()"
)

// DeterministicConfig configures the deterministic planner.
type DeterministicConfig struct {
	Logger *slog.Logger
	// LLM enables the optional refinement pass. Nil skips refinement
	// entirely; a missing credential is a config condition, never a
	// request failure.
	LLM        llm.Completer
	Extraction ExtractionConfig
}

// Deterministic is the rule-based planner: template and parameters
// follow directly from the intent, enriched by pattern extraction and
// (for unlocked plans only) a constrained LLM refinement.
type Deterministic struct {
	cfg     DeterministicConfig
	prompts *Prompts
	log     *slog.Logger
}

// NewDeterministic creates a deterministic planner. A zero Extraction
// config gets the default dictionaries.
func NewDeterministic(cfg DeterministicConfig) (*Deterministic, error) {
	if cfg.Extraction.CategoryKeywords == nil && cfg.Extraction.SeasonalityPhrases == nil {
		cfg.Extraction = DefaultExtractionConfig()
	}
	prompts, err := LoadPrompts()
	if err != nil {
		return nil, err
	}
	return &Deterministic{cfg: cfg, prompts: prompts, log: cfg.Logger}, nil
}

// Plan builds a plan for the classified intent. It always succeeds:
// refinement failures are logged and discarded, never propagated.
func (d *Deterministic) Plan(ctx context.Context, res intent.Result, userText string) Plan {
	p := Plan{
		Intent: res.Intent,
		Params: map[string]any{
			"start_date": defaultStartExpr,
			"end_date":   defaultEndExpr,
		},
		Rule: res.Rule,
	}

	// Rule-based template selection. The plan is locked immediately:
	// once a canonical intent picked its template, refinement may only
	// ever adjust parameters.
	switch res.Intent {
	case intent.Segment:
		p.TemplateID = sqlgen.TemplateCustomerSegments
		p.Params["by"] = "country"
		p.Params["limit"] = 100
	case intent.Product:
		p.TemplateID = sqlgen.TemplateTopProducts
		p.Params["metric"] = "revenue"
		p.Params["limit"] = 20
		p.Params["start_date"] = relativeDays(30)
		p.Params["end_date"] = defaultEndExpr
	case intent.Geo:
		p.TemplateID = sqlgen.TemplateGeoSales
		p.Params["level"] = "country"
		p.Params["limit"] = 200
		p.Params["start_date"] = relativeDays(30)
		p.Params["end_date"] = defaultEndExpr
	default: // trend, including the classifier fallback
		p.TemplateID = sqlgen.TemplateSalesTrend
		p.Params["grain"] = "month"
		p.Params["limit"] = 1000
	}
	p.Locked = true

	applyExtraction(&p, userText, d.cfg.Extraction)

	if !p.Locked {
		d.refine(ctx, userText, &p)
		p.Confidence = ConfidenceRefined
	} else {
		p.Confidence = ConfidenceRule
	}

	if d.log != nil {
		d.log.Info("plan: deterministic plan built",
			"intent", p.Intent,
			"rule", p.Rule,
			"template", p.TemplateID,
			"locked", p.Locked,
			"confidence", p.Confidence)
	}
	return p
}

// refineResponse is the JSON shape the refinement call must return.
type refineResponse struct {
	TemplateID string         `json:"template_id"`
	Params     map[string]any `json:"params"`
}

// refine asks the LLM to adjust plan parameters. The response is
// constrained to the template and parameter whitelists; everything
// else is dropped. Any failure leaves the plan exactly as it was.
func (d *Deterministic) refine(ctx context.Context, userText string, p *Plan) {
	if d.cfg.LLM == nil {
		if d.log != nil {
			d.log.Debug("plan: skipping refinement, no LLM configured")
		}
		return
	}

	userPrompt := fmt.Sprintf("User question: %s\nCurrent template_id: %s\nCurrent params: %s",
		userText, p.TemplateID, formatParams(p.Params))

	response, err := d.cfg.LLM.Complete(ctx, d.prompts.Refine, userPrompt)
	if err != nil {
		if d.log != nil {
			d.log.Warn("plan: refinement call failed, keeping base plan", "error", err)
		}
		return
	}

	jsonStr := llm.ExtractJSON(response)
	if jsonStr == "" {
		if d.log != nil {
			d.log.Warn("plan: refinement returned no JSON, keeping base plan",
				"response", llm.TruncateForError(response))
		}
		return
	}

	var refined refineResponse
	if err := json.Unmarshal([]byte(jsonStr), &refined); err != nil {
		if d.log != nil {
			d.log.Warn("plan: refinement JSON invalid, keeping base plan", "error", err)
		}
		return
	}

	// Template id changes are allowed only within the whitelist, and
	// never on a locked plan.
	if !p.Locked && refined.TemplateID != "" {
		if id := sqlgen.TemplateID(refined.TemplateID); sqlgen.KnownTemplate(id) {
			p.TemplateID = id
		}
	}
	mergeWhitelisted(p.Params, refined.Params)
}

func formatParams(params map[string]any) string {
	b, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(b)
}
