// Package prompts renders every model-facing instruction through eino prompt
// templates so prompt callbacks and formatting stay in one place.
package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/diagnostic_system.txt
var diagnosticSystemPrompt string

//go:embed template/diagnosis.txt
var diagnosisPrompt string

//go:embed template/explain.txt
var explainPrompt string

//go:embed template/photo.txt
var photoPrompt string

//go:embed template/wiring_system.txt
var wiringSystemPrompt string

//go:embed template/extract_components.txt
var extractComponentsPrompt string

//go:embed template/trace_path.txt
var tracePathPrompt string

//go:embed template/analyze_component.txt
var analyzeComponentPrompt string

const (
	// ReassessMarker is the user-side history entry recorded for a reassessment.
	ReassessMarker = "[reassessment requested]"
	// PhotoMarker stands in for the user turn of a photo sent without a comment.
	PhotoMarker = "[photo submitted]"
)

// render formats a single-message template with the eino GoTemplate formatter.
func render(ctx context.Context, msg *schema.Message, vars map[string]any) (*schema.Message, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, msg)
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return nil, fmt.Errorf("prompt render: empty result")
	}
	return msgs[0], nil
}

func renderText(ctx context.Context, tpl string, vars map[string]any) (string, error) {
	msg, err := render(ctx, schema.UserMessage(tpl), vars)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}
