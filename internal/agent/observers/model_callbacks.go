package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/wiresense/server/pkg/logger"
)

const maxLoggedContent = 300

// newModelHandler builds a typed ModelCallbackHandler that logs the turn being
// answered and the model's reply around every chat model call.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Debug().Str("operation", info.Name).Str("model", info.Type)
			if input != nil {
				ev = ev.Int("messages", len(input.Messages)).
					Int("images", countImages(input.Messages)).
					Str("user", truncate(lastUserContent(input.Messages)))
			}
			ev.Msg("model call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			ev := logx.Debug().Str("operation", info.Name).Str("model", info.Type)
			if output != nil && output.Message != nil {
				ev = ev.Str("assistant", truncate(output.Message.Content))
				if meta := output.Message.ResponseMeta; meta != nil {
					ev = ev.Str("finish_reason", meta.FinishReason)
				}
			}
			ev.Msg("model call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().Err(err).Str("operation", info.Name).Str("model", info.Type).Msg("model call error")
			return ctx
		},
	}
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		if m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}

func countImages(msgs []*schema.Message) int {
	n := 0
	for _, m := range msgs {
		if m == nil {
			continue
		}
		for _, p := range m.MultiContent {
			if p.Type == schema.ChatMessagePartTypeImageURL {
				n++
			}
		}
	}
	return n
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLoggedContent {
		return s
	}
	return s[:maxLoggedContent] + "…"
}
