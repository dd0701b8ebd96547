package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/wiresense/server/internal/agent/model"
	errx "github.com/wiresense/server/internal/core/error"
	logx "github.com/wiresense/server/pkg/logger"
)

// GeminiConfig holds the configuration for Gemini chat model creation.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   model.InferenceModelConfig
}

// NewGeminiChatModel creates the Gemini chat model used behind the gateway.
func NewGeminiChatModel(ctx context.Context, config GeminiConfig) (*gemini.ChatModel, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, errx.Configuration(fmt.Errorf("gemini api key is required"))
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, errx.Configuration(fmt.Errorf("error creating Gemini client: %w", err))
	}

	cfg := &gemini.Config{
		Client:      client,
		Model:       config.Model.Model,
		Temperature: &config.Model.Temperature,
		MaxTokens:   &config.Model.MaxTokens,
	}
	if config.Model.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(config.Model.ThinkingBudget),
		}
	}

	chatModel, err := gemini.NewChatModel(ctx, cfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini chat model")
		return nil, errx.Configuration(fmt.Errorf("error creating Gemini chat model: %w", err))
	}
	return chatModel, nil
}
