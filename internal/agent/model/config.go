package model

import "time"

// ================ Config ================
type InferenceModelConfig struct {
	Model       string        `envconfig:"INFERENCE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int           `envconfig:"INFERENCE_MAX_TOKENS" default:"4096"`
	Temperature float32       `envconfig:"INFERENCE_TEMPERATURE" default:"0.2"`
	Timeout     time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"45s"`
	// ThinkingBudget caps Gemini reasoning tokens; 0 disables thinking output.
	ThinkingBudget int32 `envconfig:"INFERENCE_THINKING_BUDGET" default:"1024"`
}

type SessionConfig struct {
	// Store selects the registry backend: "memory" or "redis".
	Store string        `envconfig:"SESSION_STORE" default:"memory"`
	TTL   time.Duration `envconfig:"SESSION_TTL" default:"24h"`
}

type WiringConfig struct {
	BatchConcurrency int `envconfig:"WIRING_BATCH_CONCURRENCY" default:"4"`
}
