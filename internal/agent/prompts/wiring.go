package prompts

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/wiresense/server/internal/agent/model"
)

type componentLine struct {
	ID, Name, Type, Connections string
}

func WiringSystem(ctx context.Context) (*schema.Message, error) {
	return render(ctx, schema.SystemMessage(wiringSystemPrompt), map[string]any{})
}

func ExtractComponents(ctx context.Context) (string, error) {
	return renderText(ctx, extractComponentsPrompt, map[string]any{})
}

// TracePath grounds the trace request on the known component roster.
func TracePath(ctx context.Context, from, to model.Component, known []model.Component) (string, error) {
	lines := make([]componentLine, 0, len(known))
	for _, c := range known {
		lines = append(lines, componentLine{
			ID:          c.ID,
			Name:        c.Name,
			Type:        c.Type,
			Connections: strings.Join(c.Connections, ", "),
		})
	}
	return renderText(ctx, tracePathPrompt, map[string]any{
		"From":  from,
		"To":    to,
		"Known": lines,
	})
}

func AnalyzeComponent(ctx context.Context, componentID string) (string, error) {
	return renderText(ctx, analyzeComponentPrompt, map[string]any{"ComponentID": componentID})
}
