package quota

import (
	"fmt"
	"time"
)

type Config struct {
	Timezone        string        `envconfig:"QUOTA_TIMEZONE" default:"UTC"`
	PlansFile       string        `envconfig:"QUOTA_PLANS_FILE"`
	Store           string        `envconfig:"QUOTA_STORE" default:"gorm"`
	RecordTimeout   time.Duration `envconfig:"QUOTA_RECORD_TIMEOUT" default:"5s"`
	RetentionMonths int           `envconfig:"QUOTA_RETENTION_MONTHS" default:"13"`
	PruneSchedule   string        `envconfig:"QUOTA_PRUNE_SCHEDULE" default:"0 3 * * *"`
}

// Location loads the billing timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("quota: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
