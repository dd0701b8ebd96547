package quota

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	errx "github.com/wiresense/server/internal/core/error"
	"github.com/wiresense/server/internal/repo"
)

// GormStore keeps usage as append-only rows and counts them per key.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Count(ctx context.Context, key Key) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&repo.UsageEvent{}).
		Where("user_id = ? AND category = ? AND period = ?", key.UserID, string(key.Category), key.Period).
		Count(&n).Error
	if err != nil {
		return 0, errx.WrapDB(err)
	}
	return int(n), nil
}

func (s *GormStore) Append(ctx context.Context, event Event) error {
	meta := ""
	if len(event.Metadata) > 0 {
		b, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal usage metadata: %w", err)
		}
		meta = string(b)
	}
	row := repo.UsageEvent{
		ID:        event.ID,
		UserID:    event.Key.UserID,
		Category:  string(event.Key.Category),
		Period:    event.Key.Period,
		Metadata:  meta,
		CreatedAt: event.At,
	}
	return errx.WrapDB(s.db.WithContext(ctx).Create(&row).Error)
}

// PruneBefore deletes events of periods strictly before period.
func (s *GormStore) PruneBefore(ctx context.Context, period string) (int64, error) {
	res := s.db.WithContext(ctx).Where("period < ?", period).Delete(&repo.UsageEvent{})
	if res.Error != nil {
		return 0, errx.WrapDB(res.Error)
	}
	return res.RowsAffected, nil
}

var _ Store = (*GormStore)(nil)
