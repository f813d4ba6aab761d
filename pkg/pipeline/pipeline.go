// Package pipeline orchestrates one question through the agent: intent
// classification, planning, SQL generation, capped execution, result
// aggregation, insight narration, and response formatting. The steps
// run strictly linearly; one invocation per question, no state shared
// across invocations.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/OfirItzhaky/thelook-agent/pkg/guardrail"
	"github.com/OfirItzhaky/thelook-agent/pkg/intent"
	"github.com/OfirItzhaky/thelook-agent/pkg/llm"
	"github.com/OfirItzhaky/thelook-agent/pkg/plan"
	"github.com/OfirItzhaky/thelook-agent/pkg/sqlgen"
)

// Executor runs SQL with the dry-run cost gate and preview cap applied.
type Executor interface {
	DryRun(ctx context.Context, sql string) (int64, error)
	ExecuteWithCap(ctx context.Context, sql string) ([]map[string]any, error)
}

// Planner is the planning step contract; both planner modes satisfy it.
type Planner interface {
	Plan(ctx context.Context, res intent.Result, userText string) plan.Plan
}

// Config holds the configuration for the pipeline.
type Config struct {
	Logger *slog.Logger
	// LLM is used for dynamic planning, deterministic refinement, and
	// insight narration. Nil disables all three; the pipeline still
	// answers with deterministic plans and summaries.
	LLM llm.Completer
	// Executor runs the generated SQL. Nil puts the pipeline in
	// plan-only mode: plans and SQL are produced but never executed.
	Executor Executor
	// Mode selects the planner. Defaults to deterministic.
	Mode plan.Mode
	// Classifier defaults to the standard rule set.
	Classifier *intent.Classifier
	// Extraction defaults to the standing dictionaries.
	Extraction plan.ExtractionConfig
	// Policy defaults to the dataset table whitelist with the standard
	// row cap. Only consulted in dynamic mode.
	Policy guardrail.Policy
}

// Result is the complete outcome of one pipeline invocation.
type Result struct {
	InvocationID string
	Question     string

	Intent intent.Result
	Plan   plan.Plan
	SQL    string

	// Execution outcome. ExecError is recorded, not fatal: the
	// pipeline still narrates whatever it has.
	DryRunBytes int64
	Rows        []map[string]any
	ExecError   string

	Summary  Summary
	Insights Insights
	Response string
}

// Pipeline runs questions through the linear step sequence.
type Pipeline struct {
	cfg           Config
	classifier    *intent.Classifier
	deterministic *plan.Deterministic
	dynamic       *plan.Dynamic
	log           *slog.Logger
}

// New creates a Pipeline, building the planners for the configured mode.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Mode == "" {
		cfg.Mode = plan.ModeDeterministic
	}
	if cfg.Mode != plan.ModeDeterministic && cfg.Mode != plan.ModeDynamic {
		return nil, fmt.Errorf("unknown planner mode %q", cfg.Mode)
	}
	if cfg.Mode == plan.ModeDynamic && cfg.LLM == nil {
		return nil, fmt.Errorf("dynamic mode requires an LLM client")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = intent.New(intent.DefaultConfig())
	}

	p := &Pipeline{cfg: cfg, classifier: cfg.Classifier, log: cfg.Logger}

	det, err := plan.NewDeterministic(plan.DeterministicConfig{
		Logger:     cfg.Logger,
		LLM:        cfg.LLM,
		Extraction: cfg.Extraction,
	})
	if err != nil {
		return nil, err
	}
	p.deterministic = det

	if cfg.Mode == plan.ModeDynamic {
		dyn, err := plan.NewDynamic(plan.DynamicConfig{
			Logger: cfg.Logger,
			LLM:    cfg.LLM,
			Policy: cfg.Policy,
		})
		if err != nil {
			return nil, err
		}
		p.dynamic = dyn
	}

	return p, nil
}

// BuildPlan runs only the planning half: classify, plan, and generate
// SQL. Nothing is executed.
func (p *Pipeline) BuildPlan(ctx context.Context, question string) (Result, error) {
	res := Result{
		InvocationID: uuid.NewString(),
		Question:     question,
	}
	log := p.logWith(res.InvocationID)

	res.Intent = p.classifier.Classify(question)
	log.Info("pipeline: intent classified",
		"intent", res.Intent.Intent, "rule", res.Intent.Rule)

	res.Plan = p.planner().Plan(ctx, res.Intent, question)

	sql, err := sqlgen.Generate(res.Plan.TemplateID, res.Plan.Params)
	if err != nil {
		return res, fmt.Errorf("generate SQL for template %q: %w", res.Plan.TemplateID, err)
	}
	res.SQL = sql
	log.Info("pipeline: SQL generated", "template", res.Plan.TemplateID)
	return res, nil
}

// Run executes the full sequence for one question.
func (p *Pipeline) Run(ctx context.Context, question string) (Result, error) {
	res, err := p.BuildPlan(ctx, question)
	if err != nil {
		return res, err
	}
	log := p.logWith(res.InvocationID)

	if p.cfg.Executor != nil {
		p.execute(ctx, log, &res)
	} else {
		log.Info("pipeline: no executor configured, skipping execution")
	}

	res.Summary = Aggregate(res.Rows)
	res.Insights = p.narrate(ctx, log, res)
	res.Response = FormatResponse(res)

	log.Info("pipeline: done",
		"rows", res.Summary.TotalRows,
		"exec_error", res.ExecError != "")
	return res, nil
}

// execute runs the dry-run gate and the capped query. Failures are
// stored on the result so downstream steps can narrate them.
func (p *Pipeline) execute(ctx context.Context, log *slog.Logger, res *Result) {
	scanned, err := p.cfg.Executor.DryRun(ctx, res.SQL)
	if err != nil {
		res.ExecError = fmt.Sprintf("dry run failed: %v", err)
		log.Warn("pipeline: dry run failed", "error", err)
		return
	}
	res.DryRunBytes = scanned
	log.Info("pipeline: dry run complete", "bytes", scanned)

	rows, err := p.cfg.Executor.ExecuteWithCap(ctx, res.SQL)
	if err != nil {
		res.ExecError = fmt.Sprintf("execution failed: %v", err)
		log.Warn("pipeline: execution failed", "error", err)
		return
	}
	res.Rows = rows
	log.Info("pipeline: execution complete", "rows", len(rows))
}

func (p *Pipeline) planner() Planner {
	if p.cfg.Mode == plan.ModeDynamic {
		return p.dynamic
	}
	return p.deterministic
}

func (p *Pipeline) logWith(invocationID string) *slog.Logger {
	if p.log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.log.With("invocation", invocationID)
}
