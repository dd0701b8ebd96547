package prompts

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiresense/server/internal/agent/inference"
	"github.com/wiresense/server/internal/agent/model"
)

func TestDiagnosticSystemIncludesContext(t *testing.T) {
	msg, err := DiagnosticSystem(context.Background(),
		model.VehicleContext{Make: "Cessna", Model: "172", Class: model.Aircraft},
		[]model.ProbableCause{{Cause: "Failed landing light relay", Likelihood: model.LikelihoodHigh, Reason: "clicks but no output"}},
		[]model.SuggestedTest{{Step: 1, Title: "Check coil voltage", Instruction: "Measure at K2 pin 86", Expected: "14 V"}},
	)
	require.NoError(t, err)
	assert.Equal(t, schema.System, msg.Role)
	assert.Contains(t, msg.Content, "Cessna 172 (aircraft)")
	assert.Contains(t, msg.Content, "- [High] Failed landing light relay: clicks but no output")
	assert.Contains(t, msg.Content, "1. Check coil voltage: Measure at K2 pin 86 (expected: 14 V)")
}

func TestDiagnosticSystemEmptyState(t *testing.T) {
	msg, err := DiagnosticSystem(context.Background(), model.VehicleContext{Class: model.Marine}, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, msg.Content, "unspecified vehicle (marine)")
	assert.Contains(t, msg.Content, "none established yet")
	assert.Contains(t, msg.Content, "none suggested yet")
}

func TestDiagnoseAndReassess(t *testing.T) {
	ctx := context.Background()

	text, err := Diagnose(ctx, "Starter clicks once", true)
	require.NoError(t, err)
	assert.Contains(t, text, "Starter clicks once")
	assert.Contains(t, text, "wiring diagram")
	assert.Contains(t, text, `"probableCauses"`)

	history := []*schema.Message{
		schema.UserMessage("Starter clicks once"),
		schema.AssistantMessage("Check the battery ground.", nil),
	}
	text, err = Reassess(ctx, history)
	require.NoError(t, err)
	assert.Contains(t, text, "UserMessage(Starter clicks once)")
	assert.Contains(t, text, "AssistantMessage(Check the battery ground.)")
	assert.NotContains(t, text, "reports the following symptom")
}

func TestTranscript(t *testing.T) {
	photo := inference.TagImageRef(schema.UserMessage(PhotoMarker), "https://x/p.jpg")
	got := Transcript([]*schema.Message{
		schema.SystemMessage("framing"),
		nil,
		photo,
		schema.AssistantMessage("", nil),
	})
	assert.Equal(t, "<conversation_context>\nUserMessage([photo submitted] [image: https://x/p.jpg])\n</conversation_context>", got)
}

func TestWiringPrompts(t *testing.T) {
	ctx := context.Background()

	sys, err := WiringSystem(ctx)
	require.NoError(t, err)
	assert.Equal(t, schema.System, sys.Role)

	text, err := ExtractComponents(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, `"id": "CB1"`)

	cb1 := model.Component{ID: "CB1", Name: "Breaker", Type: "circuit_breaker", Connections: []string{"S3", "K2"}}
	l1 := model.Component{ID: "L1", Name: "Landing light"}
	text, err = TracePath(ctx, cb1, l1, []model.Component{cb1, l1})
	require.NoError(t, err)
	assert.Contains(t, text, "from CB1 (Breaker) to L1 (Landing light)")
	assert.Contains(t, text, "- CB1: Breaker [circuit_breaker] connects to S3, K2")
	assert.Contains(t, text, "- L1: Landing light\n")

	text, err = AnalyzeComponent(ctx, "K2")
	require.NoError(t, err)
	assert.Contains(t, text, "Describe component K2")
}

func TestExplainAndPhoto(t *testing.T) {
	ctx := context.Background()
	text, err := Explain(ctx, " the relay theory ")
	require.NoError(t, err)
	assert.Contains(t, text, "the relay theory\n")

	text, err = Photo(ctx, "")
	require.NoError(t, err)
	assert.NotContains(t, text, "Technician comment")

	text, err = Photo(ctx, "green crust on pin 3")
	require.NoError(t, err)
	assert.Contains(t, text, "Technician comment: green crust on pin 3")
}
