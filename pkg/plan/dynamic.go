package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/OfirItzhaky/thelook-agent/pkg/guardrail"
	"github.com/OfirItzhaky/thelook-agent/pkg/intent"
	"github.com/OfirItzhaky/thelook-agent/pkg/llm"
	"github.com/OfirItzhaky/thelook-agent/pkg/schema"
	"github.com/OfirItzhaky/thelook-agent/pkg/sqlgen"
)

// DynamicConfig configures the dynamic planner.
type DynamicConfig struct {
	Logger *slog.Logger
	LLM    llm.Completer
	Policy guardrail.Policy
}

// Dynamic is the LLM-first planner: the model picks a template or
// writes SQL directly, and every piece of model output is validated
// before it reaches execution. Anything the model gets wrong degrades
// to a safe sales-trend plan rather than failing the request.
type Dynamic struct {
	cfg     DynamicConfig
	prompts *Prompts
	log     *slog.Logger
}

// NewDynamic creates a dynamic planner. The LLM is required here,
// unlike the deterministic planner where it is a refinement extra.
func NewDynamic(cfg DynamicConfig) (*Dynamic, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("dynamic planner requires an LLM client")
	}
	if cfg.Policy.AllowedTables == nil {
		cfg.Policy = guardrail.DefaultPolicy()
	}
	prompts, err := LoadPrompts()
	if err != nil {
		return nil, err
	}
	return &Dynamic{cfg: cfg, prompts: prompts, log: cfg.Logger}, nil
}

// dynamicResponse is the JSON contract for the planning call.
type dynamicResponse struct {
	Mode       string         `json:"mode"`
	TemplateID string         `json:"template_id"`
	Params     map[string]any `json:"params"`
	SQL        string         `json:"sql"`
}

// Plan asks the LLM to plan the question and validates the result.
func (d *Dynamic) Plan(ctx context.Context, res intent.Result, userText string) Plan {
	systemPrompt := strings.ReplaceAll(d.prompts.Dynamic, "{{schema}}", schema.PromptSummary())

	response, err := d.cfg.LLM.Complete(ctx, systemPrompt, userText)
	if err != nil {
		if d.log != nil {
			d.log.Warn("plan: dynamic planning call failed", "error", err)
		}
		return d.trendFallback(res, 90, "llm_error", nil)
	}

	jsonStr := llm.ExtractJSON(response)
	if jsonStr == "" {
		if d.log != nil {
			d.log.Warn("plan: dynamic response had no JSON",
				"response", llm.TruncateForError(response))
		}
		return d.trendFallback(res, 90, "invalid_json", nil)
	}

	var resp dynamicResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		if d.log != nil {
			d.log.Warn("plan: dynamic response JSON invalid", "error", err)
		}
		return d.trendFallback(res, 90, "invalid_json", nil)
	}

	switch resp.Mode {
	case "template":
		id := sqlgen.TemplateID(resp.TemplateID)
		if !sqlgen.KnownTemplate(id) {
			if d.log != nil {
				d.log.Warn("plan: dynamic planner picked unknown template", "template", resp.TemplateID)
			}
			return d.trendFallback(res, 30, "unknown_template", nil)
		}
		p := Plan{
			Intent:     res.Intent,
			TemplateID: id,
			Params: map[string]any{
				"start_date": defaultStartExpr,
				"end_date":   defaultEndExpr,
			},
			Locked:     true,
			Rule:       res.Rule,
			Confidence: ConfidenceDynamic,
		}
		mergeWhitelisted(p.Params, resp.Params)
		if d.log != nil {
			d.log.Info("plan: dynamic template plan", "template", p.TemplateID)
		}
		return p

	case "sql":
		sql := strings.TrimSpace(resp.SQL)
		sql = strings.TrimSuffix(sql, ";")
		verdict := guardrail.Validate(sql, d.cfg.Policy)
		if !verdict.Accepted {
			if d.log != nil {
				d.log.Warn("plan: dynamic SQL rejected by guardrail",
					"reason", verdict.Reason, "detail", verdict.Detail)
			}
			return d.trendFallback(res, 30, string(verdict.Reason), verdict.Detail)
		}
		if d.log != nil {
			d.log.Info("plan: dynamic SQL accepted",
				"tables", verdict.Tables, "limit", verdict.Limit)
		}
		return Plan{
			Intent:     res.Intent,
			TemplateID: sqlgen.TemplateRawSQL,
			Params: map[string]any{
				sqlgen.ParamRawSQL: sql,
			},
			Locked:     true,
			Rule:       res.Rule,
			Confidence: ConfidenceDynamic,
		}

	default:
		// "none" and anything unrecognized.
		if d.log != nil {
			d.log.Info("plan: dynamic planner declined", "mode", resp.Mode)
		}
		return d.trendFallback(res, 30, "mode_"+safeModeLabel(resp.Mode), nil)
	}
}

// trendFallback builds the safe default plan: a monthly sales trend
// over the given lookback window.
func (d *Dynamic) trendFallback(res intent.Result, days int, reason string, detail map[string]any) Plan {
	return Plan{
		Intent:     res.Intent,
		TemplateID: sqlgen.TemplateSalesTrend,
		Params: map[string]any{
			"start_date": relativeDays(days),
			"end_date":   defaultEndExpr,
			"grain":      "month",
			"limit":      1000,
		},
		Locked:          true,
		Rule:            res.Rule,
		Confidence:      ConfidenceFallback,
		GuardrailReason: guardrail.Reason(reason),
		GuardrailDetail: detail,
	}
}

func safeModeLabel(mode string) string {
	if mode == "" {
		return "none"
	}
	if len(mode) > 32 {
		mode = mode[:32]
	}
	return mode
}
