package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OfirItzhaky/thelook-agent/pkg/plan/prompts"
	"github.com/OfirItzhaky/thelook-agent/pkg/sqlgen"
)

// Prompts holds the planner prompt templates loaded from the embedded
// filesystem, with the whitelists already substituted in.
type Prompts struct {
	Refine  string
	Dynamic string
}

// LoadPrompts loads the planner prompts.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Refine, err = loadPrompt("REFINE.md"); err != nil {
		return nil, err
	}
	if p.Dynamic, err = loadPrompt("PLAN_DYNAMIC.md"); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(sqlgen.TemplateIDs()))
	for _, id := range sqlgen.TemplateIDs() {
		ids = append(ids, string(id))
	}
	keys := make([]string, 0, len(allowedParamKeys))
	for k := range allowedParamKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	idList := strings.Join(ids, ", ")
	keyList := strings.Join(keys, ", ")
	p.Refine = strings.ReplaceAll(p.Refine, "{{template_ids}}", idList)
	p.Refine = strings.ReplaceAll(p.Refine, "{{param_keys}}", keyList)
	p.Dynamic = strings.ReplaceAll(p.Dynamic, "{{template_ids}}", idList)
	p.Dynamic = strings.ReplaceAll(p.Dynamic, "{{param_keys}}", keyList)

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.PromptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
