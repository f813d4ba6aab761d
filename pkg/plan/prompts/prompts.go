// Package prompts embeds the planner prompt templates.
package prompts

import "embed"

//go:embed *.md
var PromptsFS embed.FS
