package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiresense/server/internal/agent/inference"
	"github.com/wiresense/server/internal/agent/model"
	"github.com/wiresense/server/internal/agent/prompts"
	errx "github.com/wiresense/server/internal/core/error"
)

// scriptedGateway returns its replies in order and records every request.
type scriptedGateway struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []inference.Request
}

func (g *scriptedGateway) Generate(_ context.Context, req inference.Request) (*inference.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	var text string
	if len(g.replies) > 0 {
		text, g.replies = g.replies[0], g.replies[1:]
	}
	return &inference.Response{Text: text, Model: "stub", Usage: model.TokenUsage{TotalTokens: 42}}, nil
}

func (g *scriptedGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func seededSession() *Session {
	s := New("s1", model.VehicleContext{Make: "Ford", Model: "F-150", Class: model.Automotive}, time.Unix(0, 0))
	s.History = append(s.History, schema.UserMessage("Headlights flicker"), schema.AssistantMessage("Check the ground.", nil))
	s.ProbableCauses = []model.ProbableCause{
		{Cause: "Loose ground G100", Likelihood: model.LikelihoodHigh},
		{Cause: "Worn headlight switch", Likelihood: model.LikelihoodLow},
	}
	s.SuggestedTests = []model.SuggestedTest{{Step: 1, Title: "Ground voltage drop", Instruction: "Measure"}}
	return s
}

const newDiagnosis = `Here is the updated analysis:
{"summary": "Alternator diode failure is now most likely.",
 "probableCauses": [{"cause": "Failed alternator diode", "likelihood": "high", "reason": "AC ripple measured"}],
 "suggestedTests": [{"step": "1", "title": "Ripple test", "instruction": "Measure AC volts at B+", "expected": "< 0.5 V AC"}]}`

func TestReassessReplacesWholesale(t *testing.T) {
	gw := &scriptedGateway{replies: []string{newDiagnosis}}
	before := seededSession()

	next, res, err := NewEngine(gw).Apply(context.Background(), before, Reassess{})
	require.NoError(t, err)

	assert.Equal(t, []model.ProbableCause{
		{Cause: "Failed alternator diode", Likelihood: model.LikelihoodHigh, Reason: "AC ripple measured"},
	}, next.ProbableCauses)
	assert.Equal(t, []model.SuggestedTest{
		{Step: 1, Title: "Ripple test", Instruction: "Measure AC volts at B+", Expected: "< 0.5 V AC"},
	}, next.SuggestedTests)

	require.Len(t, next.History, 4)
	assert.Equal(t, prompts.ReassessMarker, next.History[2].Content)
	assert.Equal(t, schema.Assistant, next.History[3].Role)
	assert.Equal(t, "Alternator diode failure is now most likely.", next.History[3].Content)
	assert.Equal(t, "Alternator diode failure is now most likely.", res.Reply)
	require.NotNil(t, res.Diagnosis)

	// input untouched
	assert.Len(t, before.ProbableCauses, 2)
	assert.Len(t, before.History, 2)

	req := gw.requests[0]
	assert.Equal(t, inference.ExpectJSON, req.Expect)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[1].Content, "UserMessage(Headlights flicker)")
}

func TestReassessMalformedLeavesStateUnchanged(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"I need more information."}}
	before := seededSession()

	next, res, err := NewEngine(gw).Apply(context.Background(), before, Reassess{})
	require.Error(t, err)
	assert.Equal(t, errx.CodeInference, errx.CodeOf(err))
	assert.Nil(t, next)
	assert.Nil(t, res)
	assert.Len(t, before.ProbableCauses, 2)
}

func TestChatAppendsTwoEntries(t *testing.T) {
	tests := []struct {
		name        string
		action      Action
		imageRef    string
		userContent string
	}{
		{name: "text chat", action: Chat{Message: "Still flickers at idle"}, userContent: "Still flickers at idle"},
		{name: "chat with diagram", action: Chat{Message: "Where is G100?", DiagramRef: "https://x/d.png"}, imageRef: "https://x/d.png", userContent: "Where is G100?"},
		{name: "photo with comment", action: Photo{ImageRef: "https://x/p.jpg", Comment: "green crust"}, imageRef: "https://x/p.jpg", userContent: "green crust"},
		{name: "photo without comment", action: Photo{ImageRef: "https://x/p.jpg"}, imageRef: "https://x/p.jpg", userContent: prompts.PhotoMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &scriptedGateway{replies: []string{"Tighten the ground lug."}}
			before := seededSession()

			next, res, err := NewEngine(gw).Apply(context.Background(), before, tt.action)
			require.NoError(t, err)
			assert.Equal(t, "Tighten the ground lug.", res.Reply)
			assert.Equal(t, 42, res.Usage.TotalTokens)

			require.Len(t, next.History, len(before.History)+2)
			user, assistant := next.History[2], next.History[3]
			assert.Equal(t, schema.User, user.Role)
			assert.Equal(t, tt.userContent, user.Content)
			assert.Equal(t, tt.imageRef, inference.ImageRefOf(user))
			assert.Empty(t, user.MultiContent)
			assert.Equal(t, schema.Assistant, assistant.Role)
			assert.Equal(t, "Tighten the ground lug.", assistant.Content)
			assert.Equal(t, before.ProbableCauses, next.ProbableCauses)

			req := gw.requests[0]
			assert.Equal(t, schema.System, req.Messages[0].Role)
			assert.Len(t, req.Messages, len(before.History)+2)
			assert.Equal(t, tt.imageRef, inference.ImageRefOf(req.Messages[len(req.Messages)-1]))
		})
	}
}

func TestFailedActionAppendsNothing(t *testing.T) {
	actions := []Action{
		Chat{Message: "hello"},
		Photo{ImageRef: "https://x/p.jpg"},
		Explain{Topic: "ground"},
		Reassess{},
		Diagnose{Symptom: "no crank"},
	}
	for _, a := range actions {
		t.Run(a.Name(), func(t *testing.T) {
			gw := &scriptedGateway{err: errx.Inference(context.DeadlineExceeded)}
			before := seededSession()

			next, _, err := NewEngine(gw).Apply(context.Background(), before, a)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errx.ErrInference))
			assert.Nil(t, next)
			assert.Len(t, before.History, 2)
		})
	}
}

func TestChatEmptyReplyIsFailure(t *testing.T) {
	gw := &scriptedGateway{replies: []string{""}}
	_, _, err := NewEngine(gw).Apply(context.Background(), seededSession(), Chat{Message: "hi"})
	assert.Equal(t, errx.CodeInference, errx.CodeOf(err))
}

func TestExplainKeepsDiagnosis(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"Because the flicker follows engine RPM."}}
	before := seededSession()

	next, res, err := NewEngine(gw).Apply(context.Background(), before, Explain{Topic: "Loose ground G100"})
	require.NoError(t, err)
	assert.Equal(t, "Because the flicker follows engine RPM.", res.Reply)
	assert.Equal(t, before.ProbableCauses, next.ProbableCauses)
	assert.Equal(t, before.SuggestedTests, next.SuggestedTests)
	require.Len(t, next.History, 4)
	assert.Equal(t, "Loose ground G100", next.History[2].Content)
}

func TestExplainEmptyReplyAppendsNothing(t *testing.T) {
	gw := &scriptedGateway{replies: []string{""}}
	next, res, err := NewEngine(gw).Apply(context.Background(), seededSession(), Explain{Topic: "x"})
	require.NoError(t, err)
	assert.Equal(t, "", res.Reply)
	assert.Len(t, next.History, 2)
}

func TestDiagnoseAppends(t *testing.T) {
	gw := &scriptedGateway{replies: []string{newDiagnosis}}
	before := seededSession()

	next, res, err := NewEngine(gw).Apply(context.Background(), before, Diagnose{Symptom: "Battery light on", DiagramRef: "https://x/charging.png"})
	require.NoError(t, err)
	require.Len(t, next.ProbableCauses, 3)
	assert.Equal(t, "Loose ground G100", next.ProbableCauses[0].Cause)
	assert.Equal(t, "Failed alternator diode", next.ProbableCauses[2].Cause)
	require.Len(t, next.SuggestedTests, 2)
	assert.Equal(t, 2, next.SuggestedTests[1].Step)
	assert.Equal(t, "Battery light on", next.History[2].Content)
	assert.Equal(t, "https://x/charging.png", inference.ImageRefOf(next.History[2]))
	assert.Equal(t, ActionDiagnose, res.Action)
}

func TestApplyRejectsUnknownAction(t *testing.T) {
	gw := &scriptedGateway{}
	_, _, err := NewEngine(gw).Apply(context.Background(), seededSession(), nil)
	assert.Equal(t, errx.CodeInvalidAction, errx.CodeOf(err))
	assert.Zero(t, gw.calls())
}
