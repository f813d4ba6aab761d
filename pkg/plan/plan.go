// Package plan builds query plans from classified intents. Two
// planners exist: a deterministic, template-locked planner driven by
// rules and lightweight text extraction, and a dynamic planner that
// asks an LLM for a full plan and gates any raw SQL through the
// guardrail validator. Both always return a valid, executable, safe
// plan; planning failures degrade to the trend default instead of
// surfacing errors.
package plan

import (
	"github.com/OfirItzhaky/thelook-agent/pkg/guardrail"
	"github.com/OfirItzhaky/thelook-agent/pkg/intent"
	"github.com/OfirItzhaky/thelook-agent/pkg/sqlgen"
)

// Mode selects which planner a pipeline uses.
type Mode string

const (
	ModeDeterministic Mode = "deterministic"
	ModeDynamic       Mode = "dynamic"
)

// Confidence tags describe how a plan was produced, for observability.
const (
	ConfidenceRule     = "deterministic_rule"
	ConfidenceRefined  = "deterministic_refined"
	ConfidenceDynamic  = "dynamic"
	ConfidenceFallback = "dynamic_fallback"
)

// Plan is the artifact handed from planning to SQL generation: the
// chosen template and its parameters, plus diagnostics about how the
// choice was made. One plan exists per pipeline invocation and is not
// shared across requests.
type Plan struct {
	Intent     intent.Intent
	TemplateID sqlgen.TemplateID
	Params     map[string]any
	// Locked forbids any later refinement from changing the template
	// id; parameters may still be adjusted.
	Locked bool

	// Rule records which planner path produced the plan.
	Rule       string
	Confidence string

	// GuardrailReason and GuardrailDetail are set when a dynamic plan
	// fell back because LLM-authored SQL was rejected, so the response
	// layer can tell the user the question was redirected.
	GuardrailReason guardrail.Reason
	GuardrailDetail map[string]any
}

// allowedParamKeys is the fixed whitelist of parameter keys an LLM
// response (refinement or dynamic template mode) may set. Anything
// else is silently dropped.
var allowedParamKeys = map[string]struct{}{
	"start_date": {},
	"end_date":   {},
	"by":         {},
	"limit":      {},
	"metric":     {},
	"level":      {},
	"grain":      {},
	"category":   {},
	"countries":  {},
	"department": {},
}

// mergeWhitelisted copies the whitelisted keys of src over dst,
// leaving every other dst key untouched. The merge never removes a
// parameter: a refinement that omits a key keeps the base value.
func mergeWhitelisted(dst, src map[string]any) {
	for k, v := range src {
		if _, ok := allowedParamKeys[k]; ok {
			dst[k] = v
		}
	}
}
