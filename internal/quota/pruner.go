package quota

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	logx "github.com/wiresense/server/pkg/logger"
)

// PruneStore deletes usage of periods before a given period.
type PruneStore interface {
	PruneBefore(ctx context.Context, period string) (int64, error)
}

// Pruner drops usage events older than the retention window on a cron schedule.
type Pruner struct {
	store     PruneStore
	retention int
	loc       *time.Location
	now       func() time.Time
	cron      *cron.Cron
}

// NewPruner schedules pruning with a standard 5-field cron expression in loc.
func NewPruner(store PruneStore, schedule string, retentionMonths int, loc *time.Location) (*Pruner, error) {
	if loc == nil {
		loc = time.UTC
	}
	p := &Pruner{
		store:     store,
		retention: retentionMonths,
		loc:       loc,
		now:       time.Now,
		cron:      cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{lg: logx.Logger().With().Str("component", "quota.pruner").Logger()})),
	}
	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pruner) Start() { p.cron.Start() }

// Stop stops the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

// RunOnce deletes everything before the oldest retained period. The current
// period is always retained.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	keep := max(p.retention, 1)
	cutoff := periodsAgo(p.now(), p.loc, keep-1)
	return p.store.PruneBefore(ctx, cutoff)
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := p.RunOnce(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("usage pruning failed")
		return
	}
	logx.Info().Int64("deleted", n).Msg("pruned usage events")
}

// cronLogger routes cron's scheduler logs (including recovered job panics)
// into zerolog.
type cronLogger struct {
	lg zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.lg.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.lg.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
