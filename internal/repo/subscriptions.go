package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errx "github.com/wiresense/server/internal/core/error"
)

// Subscription statuses that keep the paid plan in force.
var activeStatuses = map[string]bool{
	"active":   true,
	"trialing": true,
	"past_due": true,
}

// SubscriptionPlans resolves a user's current plan name.
type SubscriptionPlans struct {
	db *gorm.DB
}

func NewSubscriptionPlans(db *gorm.DB) *SubscriptionPlans {
	return &SubscriptionPlans{db: db}
}

// PlanFor returns the user's plan, or "" when the user has no subscription in
// force; callers fall back to their default plan.
func (s *SubscriptionPlans) PlanFor(ctx context.Context, userID string) (string, error) {
	var sub Subscription
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", errx.WrapDB(err)
	}
	if !activeStatuses[strings.ToLower(sub.Status)] {
		return "", nil
	}
	return sub.Plan, nil
}

// Upsert records the user's plan and status.
func (s *SubscriptionPlans) Upsert(ctx context.Context, userID, plan, status string) error {
	sub := Subscription{UserID: userID, Plan: plan, Status: status, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plan", "status", "updated_at"}),
	}).Create(&sub).Error
	return errx.WrapDB(err)
}
