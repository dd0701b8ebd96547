package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/wiresense/server/internal/repo"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return withDB(cfg.Database, func(db *gorm.DB) error {
				if err := repo.AutoMigrate(db); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables (%s)\n", len(repo.AllModels()), driverName(cfg.Database))
				return nil
			})
		},
	}
}

func newSubscriptionCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "subscription <user-id> <plan>",
		Short: "Set the plan a user is subscribed to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			userID, plan := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if userID == "" || plan == "" {
				return fmt.Errorf("user id and plan are required")
			}
			return withDB(cfg.Database, func(db *gorm.DB) error {
				if err := repo.AutoMigrate(db); err != nil {
					return err
				}
				if err := repo.NewSubscriptionPlans(db).Upsert(context.Background(), userID, plan, status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s is on plan %s (%s)\n", userID, plan, status)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "active", "subscription status (active, trialing, past_due, canceled)")
	return cmd
}

func withDB(cfg repo.Config, fn func(db *gorm.DB) error) error {
	db, err := repo.Connect(cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	return fn(db)
}

func driverName(cfg repo.Config) string {
	if cfg.Driver == "" {
		return repo.DriverSQLite
	}
	return cfg.Driver
}
