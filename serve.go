package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/wiresense/server/internal/agent/inference"
	"github.com/wiresense/server/internal/agent/model"
	"github.com/wiresense/server/internal/agent/observers"
	"github.com/wiresense/server/internal/agent/session"
	"github.com/wiresense/server/internal/agent/wiring"
	"github.com/wiresense/server/internal/dispatch"
	"github.com/wiresense/server/internal/quota"
	"github.com/wiresense/server/internal/repo"
	"github.com/wiresense/server/internal/server"
	logx "github.com/wiresense/server/pkg/logger"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
	storeGorm   = "gorm"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg AppConfig) error {
	logx.Init(logx.LoggerOpts{Environment: cfg.Environment})

	chatModel, err := inference.NewGeminiChatModel(ctx, inference.GeminiConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Inference,
	})
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, chatModel)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Start()
	logx.Info().
		Str("environment", cfg.Environment.String()).
		Str("model", cfg.Inference.Model).
		Str("sessionStore", cfg.Session.Store).
		Str("quotaStore", cfg.Quota.Store).
		Msg("wiresense starting")
	return server.Start(ctx, a.router, cfg.HTTP.Port)
}

// app is the assembled service graph.
type app struct {
	router *gin.Engine
	ledger *quota.Ledger
	pruner *quota.Pruner
	db     *gorm.DB
	rdb    *goredis.Client
}

func newApp(ctx context.Context, cfg AppConfig, chatModel einomodel.BaseChatModel) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.db, err = repo.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err = repo.AutoMigrate(a.db); err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.Session.Store, storeRedis) || strings.EqualFold(cfg.Quota.Store, storeRedis) {
		a.rdb, err = cfg.Redis.New(ctx)
		if err != nil {
			return nil, err
		}
	}

	gateway, err := inference.NewChatModelGateway(chatModel, cfg.Inference.Model,
		inference.WithCallbacks(observers.NewAllCallbacks()),
		inference.WithTimeout(cfg.Inference.Timeout),
	)
	if err != nil {
		return nil, err
	}

	sessions, err := a.sessionStore(cfg.Session)
	if err != nil {
		return nil, err
	}
	ledger, err := a.newLedger(cfg.Quota)
	if err != nil {
		return nil, err
	}
	a.ledger = ledger

	diagnostics := dispatch.NewDiagnostics(ledger, session.NewRegistry(sessions), session.NewEngine(gateway))
	wires := dispatch.NewWireTracing(ledger,
		wiring.NewEngine(gateway, cfg.Wiring),
		repo.NewDiagrams(a.db),
		repo.NewComponents(a.db),
	)

	a.router = server.NewRouter(server.Options{
		Diagnostics: diagnostics,
		WireTracing: wires,
		Usage:       ledger,
		Release:     cfg.Environment.IsProduction(),
	})
	return a, nil
}

func (a *app) sessionStore(cfg model.SessionConfig) (session.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case storeMemory, "":
		return session.NewMemoryStore(), nil
	case storeRedis:
		return session.NewRedisStore(a.rdb, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported SESSION_STORE %q", cfg.Store)
	}
}

func (a *app) newLedger(cfg quota.Config) (*quota.Ledger, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	plans, err := quota.DefaultPlans()
	if cfg.PlansFile != "" {
		plans, err = quota.LoadPlans(cfg.PlansFile)
	}
	if err != nil {
		return nil, err
	}

	var store quota.Store
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case storeGorm, "":
		gs := quota.NewGormStore(a.db)
		a.pruner, err = quota.NewPruner(gs, cfg.PruneSchedule, cfg.RetentionMonths, loc)
		if err != nil {
			return nil, fmt.Errorf("quota: prune schedule %q: %w", cfg.PruneSchedule, err)
		}
		store = gs
	case storeRedis:
		store = quota.NewRedisStore(a.rdb)
	default:
		return nil, fmt.Errorf("unsupported QUOTA_STORE %q", cfg.Store)
	}

	return quota.NewLedger(store, plans, repo.NewSubscriptionPlans(a.db), loc,
		quota.WithRecordTimeout(cfg.RecordTimeout),
	), nil
}

// Start launches background jobs.
func (a *app) Start() {
	if a.pruner != nil {
		a.pruner.Start()
	}
}

// Close stops background jobs, drains pending usage writes and releases
// connections, in that order.
func (a *app) Close() {
	if a.pruner != nil {
		a.pruner.Stop()
	}
	if a.ledger != nil {
		a.ledger.Wait()
	}
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if err := errors.Join(errs...); err != nil {
		logx.Warn().Err(err).Msg("closing connections")
	}
}
