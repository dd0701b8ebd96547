package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/wiresense/server/internal/agent/inference"
	"github.com/wiresense/server/internal/agent/model"
	"github.com/wiresense/server/internal/agent/parsers"
	"github.com/wiresense/server/internal/agent/prompts"
	errx "github.com/wiresense/server/internal/core/error"
	logx "github.com/wiresense/server/pkg/logger"
)

// fallbackSummary is recorded when a diagnosis comes back without a summary.
const fallbackSummary = "Diagnosis updated."

// Result is what an action hands back to the caller.
type Result struct {
	Action    string           `json:"action"`
	Reply     string           `json:"reply"`
	Diagnosis *model.Diagnosis `json:"diagnosis,omitempty"`
	Model     string           `json:"model,omitempty"`
	Usage     model.TokenUsage `json:"usage"`
}

// Engine applies actions to sessions through the inference gateway.
type Engine struct {
	gateway inference.Gateway
}

func NewEngine(gateway inference.Gateway) *Engine {
	return &Engine{gateway: gateway}
}

// Apply runs action against s and returns the next state. s is never
// modified; on error no next state is returned.
func (e *Engine) Apply(ctx context.Context, s *Session, action Action) (*Session, *Result, error) {
	if s == nil {
		return nil, nil, errx.InvalidArgument("session is required")
	}
	switch a := action.(type) {
	case Chat:
		return e.chat(ctx, s, a)
	case Photo:
		return e.photo(ctx, s, a)
	case Explain:
		return e.explain(ctx, s, a)
	case Reassess:
		return e.reassess(ctx, s)
	case Diagnose:
		return e.diagnose(ctx, s, a)
	default:
		return nil, nil, errx.InvalidAction(fmt.Sprintf("%T", action))
	}
}

func (e *Engine) chat(ctx context.Context, s *Session, a Chat) (*Session, *Result, error) {
	turn := schema.UserMessage(a.Message)
	if a.DiagramRef != "" {
		turn = inference.VisionMessage(a.Message, a.DiagramRef)
	}
	resp, err := e.converse(ctx, s, "session.chat", turn, inference.ExpectText)
	if err != nil {
		return nil, nil, err
	}
	if resp.Text == "" {
		return nil, nil, errx.Inference(errors.New("model returned an empty reply"))
	}

	next := s.Clone()
	next.History = append(next.History,
		inference.TagImageRef(schema.UserMessage(a.Message), a.DiagramRef),
		schema.AssistantMessage(resp.Text, nil),
	)
	return next, newResult(ActionChat, resp.Text, resp), nil
}

func (e *Engine) photo(ctx context.Context, s *Session, a Photo) (*Session, *Result, error) {
	text, err := prompts.Photo(ctx, a.Comment)
	if err != nil {
		return nil, nil, err
	}
	resp, err := e.converse(ctx, s, "session.photo", inference.VisionMessage(text, a.ImageRef), inference.ExpectText)
	if err != nil {
		return nil, nil, err
	}
	if resp.Text == "" {
		return nil, nil, errx.Inference(errors.New("model returned an empty reply"))
	}

	userContent := a.Comment
	if userContent == "" {
		userContent = prompts.PhotoMarker
	}
	next := s.Clone()
	next.History = append(next.History,
		inference.TagImageRef(schema.UserMessage(userContent), a.ImageRef),
		schema.AssistantMessage(resp.Text, nil),
	)
	return next, newResult(ActionPhoto, resp.Text, resp), nil
}

func (e *Engine) explain(ctx context.Context, s *Session, a Explain) (*Session, *Result, error) {
	text, err := prompts.Explain(ctx, a.Topic)
	if err != nil {
		return nil, nil, err
	}
	resp, err := e.converse(ctx, s, "session.explain", schema.UserMessage(text), inference.ExpectText)
	if err != nil {
		return nil, nil, err
	}

	next := s.Clone()
	if resp.Text != "" {
		next.History = append(next.History,
			schema.UserMessage(a.Topic),
			schema.AssistantMessage(resp.Text, nil),
		)
	}
	return next, newResult(ActionExplain, resp.Text, resp), nil
}

func (e *Engine) reassess(ctx context.Context, s *Session) (*Session, *Result, error) {
	system, err := prompts.DiagnosticSystem(ctx, s.Vehicle, s.ProbableCauses, s.SuggestedTests)
	if err != nil {
		return nil, nil, err
	}
	text, err := prompts.Reassess(ctx, s.History)
	if err != nil {
		return nil, nil, err
	}
	resp, err := e.gateway.Generate(ctx, inference.Request{
		Operation: "session.reassess",
		Messages:  []*schema.Message{system, schema.UserMessage(text)},
		Expect:    inference.ExpectJSON,
	})
	if err != nil {
		return nil, nil, err
	}
	d, err := decodeDiagnosis(resp.Text)
	if err != nil {
		return nil, nil, err
	}

	next := s.Clone()
	next.ProbableCauses = d.ProbableCauses
	next.SuggestedTests = d.SuggestedTests
	next.History = append(next.History,
		schema.UserMessage(prompts.ReassessMarker),
		schema.AssistantMessage(summaryOf(d), nil),
	)
	res := newResult(ActionReassess, summaryOf(d), resp)
	res.Diagnosis = d
	return next, res, nil
}

func (e *Engine) diagnose(ctx context.Context, s *Session, a Diagnose) (*Session, *Result, error) {
	text, err := prompts.Diagnose(ctx, a.Symptom, a.DiagramRef != "")
	if err != nil {
		return nil, nil, err
	}
	turn := schema.UserMessage(text)
	if a.DiagramRef != "" {
		turn = inference.VisionMessage(text, a.DiagramRef)
	}
	resp, err := e.converse(ctx, s, "session.diagnose", turn, inference.ExpectJSON)
	if err != nil {
		return nil, nil, err
	}
	d, err := decodeDiagnosis(resp.Text)
	if err != nil {
		return nil, nil, err
	}

	next := s.Clone()
	next.ProbableCauses = append(next.ProbableCauses, d.ProbableCauses...)
	offset := len(next.SuggestedTests)
	for i, t := range d.SuggestedTests {
		t.Step = offset + i + 1
		next.SuggestedTests = append(next.SuggestedTests, t)
	}
	next.History = append(next.History,
		inference.TagImageRef(schema.UserMessage(a.Symptom), a.DiagramRef),
		schema.AssistantMessage(summaryOf(d), nil),
	)
	res := newResult(ActionDiagnose, summaryOf(d), resp)
	res.Diagnosis = d
	return next, res, nil
}

// converse sends the system framing, the full history and turn.
func (e *Engine) converse(ctx context.Context, s *Session, operation string, turn *schema.Message, expect inference.Expectation) (*inference.Response, error) {
	system, err := prompts.DiagnosticSystem(ctx, s.Vehicle, s.ProbableCauses, s.SuggestedTests)
	if err != nil {
		return nil, err
	}
	messages := make([]*schema.Message, 0, len(s.History)+2)
	messages = append(messages, system)
	messages = append(messages, s.History...)
	messages = append(messages, turn)
	return e.gateway.Generate(ctx, inference.Request{
		Operation: operation,
		Messages:  messages,
		Expect:    expect,
	})
}

func newResult(action, reply string, resp *inference.Response) *Result {
	return &Result{
		Action: action,
		Reply:  reply,
		Model:  resp.Model,
		Usage:  resp.Usage,
	}
}

func summaryOf(d *model.Diagnosis) string {
	if d.Summary == "" {
		return fallbackSummary
	}
	return d.Summary
}

type diagnosisDTO struct {
	Summary        parsers.FlexString `json:"summary"`
	ProbableCauses []causeDTO         `json:"probableCauses"`
	SuggestedTests []testDTO          `json:"suggestedTests"`
}

type causeDTO struct {
	Cause      parsers.FlexString `json:"cause"`
	Likelihood parsers.FlexString `json:"likelihood"`
	Reason     parsers.FlexString `json:"reason"`
}

type testDTO struct {
	Step        parsers.FlexString `json:"step"`
	Title       parsers.FlexString `json:"title"`
	Instruction parsers.FlexString `json:"instruction"`
	Expected    parsers.FlexString `json:"expected"`
}

// decodeDiagnosis parses a diagnosis answer. Unlike wire tracing there is no
// useful degenerate result here, so an unparsable or empty answer is an
// inference failure and the session stays as it was.
func decodeDiagnosis(raw string) (*model.Diagnosis, error) {
	outcome := parsers.DecodeObject[diagnosisDTO]("diagnosis", raw)
	dto, ok := outcome.Get()
	if !ok {
		return nil, errx.Inference(fmt.Errorf("malformed diagnosis response: %s", outcome.Reason()))
	}

	d := &model.Diagnosis{Summary: string(dto.Summary)}
	for _, c := range dto.ProbableCauses {
		d.ProbableCauses = append(d.ProbableCauses, model.ProbableCause{
			Cause:      string(c.Cause),
			Likelihood: model.Likelihood(c.Likelihood),
			Reason:     string(c.Reason),
		})
	}
	for _, t := range dto.SuggestedTests {
		step, _ := strconv.Atoi(strings.TrimSpace(string(t.Step)))
		d.SuggestedTests = append(d.SuggestedTests, model.SuggestedTest{
			Step:        step,
			Title:       strings.TrimSpace(string(t.Title)),
			Instruction: strings.TrimSpace(string(t.Instruction)),
			Expected:    strings.TrimSpace(string(t.Expected)),
		})
	}
	d.Normalize()

	if d.Summary == "" && len(d.ProbableCauses) == 0 && len(d.SuggestedTests) == 0 {
		logx.Warn().Msg("diagnosis response carried no content")
		return nil, errx.Inference(errors.New("empty diagnosis response"))
	}
	return d, nil
}
