package quota

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	errx "github.com/wiresense/server/internal/core/error"
	logx "github.com/wiresense/server/pkg/logger"
)

const defaultRecordTimeout = 5 * time.Second

// Ledger answers whether a metered action is allowed and records it once it
// has run. Check and record are separate steps: two requests racing at the
// limit can both pass the check, so a counter may end slightly over its limit.
type Ledger struct {
	store    Store
	plans    *Plans
	resolver PlanResolver
	loc      *time.Location
	now      func() time.Time

	recordTimeout time.Duration
	inflight      sync.WaitGroup
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithRecordTimeout bounds each background recording.
func WithRecordTimeout(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.recordTimeout = d }
}

func NewLedger(store Store, plans *Plans, resolver PlanResolver, loc *time.Location, opts ...LedgerOption) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	l := &Ledger{
		store:         store,
		plans:         plans,
		resolver:      resolver,
		loc:           loc,
		now:           time.Now,
		recordTimeout: defaultRecordTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckLimit reports the user's standing in category for the current period.
func (l *Ledger) CheckLimit(ctx context.Context, userID string, category Category) (State, error) {
	if userID == "" {
		return State{}, errx.Unauthorized("user id is required")
	}
	plan, err := l.resolver.PlanFor(ctx, userID)
	if err != nil {
		logx.Error().Err(err).Str("userID", userID).Msg("failed to resolve plan")
		return State{}, err
	}
	period := Period(l.now(), l.loc)
	current, err := l.store.Count(ctx, Key{UserID: userID, Category: category, Period: period})
	if err != nil {
		return State{}, err
	}
	return newState(category, period, current, l.plans.LimitFor(plan, category)), nil
}

// Enforce is CheckLimit that fails with *ExceededError when the action is not allowed.
func (l *Ledger) Enforce(ctx context.Context, userID string, category Category) (State, error) {
	st, err := l.CheckLimit(ctx, userID, category)
	if err != nil {
		return st, err
	}
	if !st.Allowed {
		logx.Info().
			Str("userID", userID).
			Str("category", string(category)).
			Int("current", st.Current).
			Msg("quota exceeded")
		return st, &ExceededError{State: st}
	}
	return st, nil
}

// Record appends one usage event for the current period.
func (l *Ledger) Record(ctx context.Context, userID string, category Category, metadata map[string]any) error {
	at := l.now()
	return l.store.Append(ctx, Event{
		ID:       uuid.NewString(),
		Key:      Key{UserID: userID, Category: category, Period: Period(at, l.loc)},
		Metadata: metadata,
		At:       at,
	})
}

// RecordAsync records in the background on a context detached from the
// request. Failures are logged and never reach the caller.
func (l *Ledger) RecordAsync(ctx context.Context, userID string, category Category, metadata map[string]any) {
	bg := context.WithoutCancel(ctx)
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		rctx, cancel := context.WithTimeout(bg, l.recordTimeout)
		defer cancel()
		if err := l.Record(rctx, userID, category, metadata); err != nil {
			logx.Error().
				Err(err).
				Str("userID", userID).
				Str("category", string(category)).
				Msg("failed to record usage")
		}
	}()
}

// Wait blocks until background recordings finish.
func (l *Ledger) Wait() {
	l.inflight.Wait()
}

// Usage returns the user's standing in every category.
func (l *Ledger) Usage(ctx context.Context, userID string) ([]State, error) {
	out := make([]State, 0, len(Categories()))
	for _, c := range Categories() {
		st, err := l.CheckLimit(ctx, userID, c)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
