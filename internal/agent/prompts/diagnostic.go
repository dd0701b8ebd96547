package prompts

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/wiresense/server/internal/agent/inference"
	"github.com/wiresense/server/internal/agent/model"
)

// DiagnosticSystem is the framing sent with every session call: the vehicle
// plus the causes and tests accumulated so far.
func DiagnosticSystem(ctx context.Context, vehicle model.VehicleContext, causes []model.ProbableCause, tests []model.SuggestedTest) (*schema.Message, error) {
	return render(ctx, schema.SystemMessage(diagnosticSystemPrompt), map[string]any{
		"Vehicle": vehicle.Describe(),
		"Class":   string(vehicle.Class),
		"Causes":  causes,
		"Tests":   tests,
	})
}

// Diagnose asks for an initial diagnosis of symptom.
func Diagnose(ctx context.Context, symptom string, hasImage bool) (string, error) {
	return renderText(ctx, diagnosisPrompt, map[string]any{
		"Symptom":    strings.TrimSpace(symptom),
		"HasImage":   hasImage,
		"Transcript": "",
	})
}

// Reassess asks for a fresh diagnosis over the whole conversation.
func Reassess(ctx context.Context, history []*schema.Message) (string, error) {
	return renderText(ctx, diagnosisPrompt, map[string]any{
		"Symptom":    "",
		"HasImage":   false,
		"Transcript": Transcript(history),
	})
}

// Explain asks the model to justify one claim of the current diagnosis.
func Explain(ctx context.Context, topic string) (string, error) {
	return renderText(ctx, explainPrompt, map[string]any{"Topic": strings.TrimSpace(topic)})
}

// Photo is the text part of a photo submission.
func Photo(ctx context.Context, comment string) (string, error) {
	return renderText(ctx, photoPrompt, map[string]any{"Comment": strings.TrimSpace(comment)})
}

// Transcript renders history as tagged turns. Image references are noted
// inline; system turns are skipped.
func Transcript(history []*schema.Message) string {
	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for _, msg := range history {
		if msg == nil {
			continue
		}
		content := msg.Content
		if ref := inference.ImageRefOf(msg); ref != "" {
			content += " [image: " + ref + "]"
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			b.WriteString("UserMessage(" + content + ")\n")
		case schema.Assistant:
			b.WriteString("AssistantMessage(" + content + ")\n")
		}
	}
	b.WriteString("</conversation_context>")
	return b.String()
}
