package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/wiresense/server/internal/agent/model"
	"github.com/wiresense/server/internal/core"
	"github.com/wiresense/server/internal/quota"
	"github.com/wiresense/server/internal/repo"
	"github.com/wiresense/server/internal/server"
	logx "github.com/wiresense/server/pkg/logger"
	pkgredis "github.com/wiresense/server/pkg/redis"
)

// AppConfig defines every configurable parameter, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis    pkgredis.Config
	Database repo.Config
	HTTP     server.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Domain configs
	Inference model.InferenceModelConfig
	Session   model.SessionConfig
	Wiring    model.WiringConfig
	Quota     quota.Config
}

// loadConfig reads the dotenv file named by --env-file, then the process
// environment. A missing dotenv file is not an error.
func loadConfig(cmd *cobra.Command) (AppConfig, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logx.Warn().Err(err).Str("file", envFile).Msg("could not load env file")
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("process environment config: %w", err)
	}
	return cfg, nil
}
