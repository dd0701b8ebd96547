package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/wiresense/server/internal/agent/model"
	errx "github.com/wiresense/server/internal/core/error"
	logx "github.com/wiresense/server/pkg/logger"
)

const jsonInstruction = "Respond with a single JSON value only. Do not wrap it in prose."

// ChatModelGateway adapts an eino chat model to Gateway.
type ChatModelGateway struct {
	chatModel einomodel.BaseChatModel
	modelName string
	timeout   time.Duration
	handlers  []einocb.Handler
	now       func() time.Time
}

// ChatModelOption configures a ChatModelGateway.
type ChatModelOption func(*ChatModelGateway)

// WithCallbacks attaches eino callback handlers to every call.
func WithCallbacks(handlers ...einocb.Handler) ChatModelOption {
	return func(g *ChatModelGateway) { g.handlers = append(g.handlers, handlers...) }
}

// WithTimeout bounds every call; zero disables the bound.
func WithTimeout(d time.Duration) ChatModelOption {
	return func(g *ChatModelGateway) { g.timeout = d }
}

// NewChatModelGateway wraps cm. modelName is reported in responses and used for pricing.
func NewChatModelGateway(cm einomodel.BaseChatModel, modelName string, opts ...ChatModelOption) (*ChatModelGateway, error) {
	if cm == nil {
		return nil, errx.Configuration(fmt.Errorf("chat model is nil"))
	}
	g := &ChatModelGateway{
		chatModel: cm,
		modelName: modelName,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate runs one bounded model call.
func (g *ChatModelGateway) Generate(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, errx.InvalidArgument("inference request has no messages")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if len(g.handlers) > 0 {
		ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
			Name:      req.Operation,
			Type:      g.modelName,
			Component: components.ComponentOfChatModel,
		}, g.handlers...)
	}

	messages := req.Messages
	if req.Expect == ExpectJSON {
		messages = withJSONInstruction(messages)
	}

	start := g.now()
	out, err := g.chatModel.Generate(ctx, messages)
	latency := g.now().Sub(start)
	if err != nil {
		classified := Classify(err)
		logx.Error().
			Err(err).
			Str("operation", req.Operation).
			Str("model", g.modelName).
			Str("error_code", string(errx.CodeOf(classified))).
			Dur("latency", latency).
			Msg("inference call failed")
		return nil, classified
	}
	if out == nil {
		return nil, errx.Inference(fmt.Errorf("model returned no message"))
	}

	resp := &Response{
		Text:    strings.TrimSpace(out.Content),
		Model:   g.modelName,
		Latency: latency,
	}
	if out.ResponseMeta != nil {
		resp.Usage = model.UsageFromSchema(out.ResponseMeta.Usage)
	}
	_, _, resp.CostUSD = model.ComputeCost(resp.Usage, model.ResolvePricing(g.modelName))

	logx.Debug().
		Str("operation", req.Operation).
		Str("model", g.modelName).
		Str("expect", req.Expect.String()).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Float64("total_cost_usd", resp.CostUSD).
		Dur("latency", latency).
		Msg("LLM usage")
	return resp, nil
}

// withJSONInstruction returns a copy of messages whose system turn asks for
// bare JSON. The caller's slice and messages are left untouched.
func withJSONInstruction(messages []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, len(messages))
	copy(out, messages)
	for i, m := range out {
		if m != nil && m.Role == schema.System {
			clone := *m
			clone.Content = strings.TrimSpace(m.Content) + "\n\n" + jsonInstruction
			out[i] = &clone
			return out
		}
	}
	return append([]*schema.Message{schema.SystemMessage(jsonInstruction)}, out...)
}

var _ Gateway = (*ChatModelGateway)(nil)
