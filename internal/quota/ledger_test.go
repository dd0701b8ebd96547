package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	errx "github.com/wiresense/server/internal/core/error"
	"github.com/wiresense/server/internal/repo"
)

func intPtr(n int) *int { return &n }

func testPlans(t *testing.T) *Plans {
	t.Helper()
	p, err := ParsePlans([]byte(`
default: basic
plans:
  basic:
    ai_analyses: 3
    diagram_uploads: 0
  unlimited:
    ai_analyses: null
    diagram_uploads: null
    exports: null
`))
	require.NoError(t, err)
	return p
}

func planOf(name string) PlanResolver {
	return PlanResolverFunc(func(context.Context, string) (string, error) { return name, nil })
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// stores runs a test against every Store implementation.
func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"gorm":  NewGormStore(testDB(t)),
		"redis": NewRedisStore(testRedis(t)),
	}
}

var march = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestCheckLimitMonotonic(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ledger := NewLedger(store, testPlans(t), planOf("basic"), time.UTC, WithClock(fixedClock(march)))
			ctx := context.Background()

			prev := -1
			for range 3 {
				st, err := ledger.CheckLimit(ctx, "u1", AIAnalyses)
				require.NoError(t, err)
				assert.True(t, st.Allowed)
				assert.Greater(t, st.Current, prev)
				prev = st.Current
				require.NoError(t, ledger.Record(ctx, "u1", AIAnalyses, map[string]any{"action": "chat"}))
			}

			st, err := ledger.CheckLimit(ctx, "u1", AIAnalyses)
			require.NoError(t, err)
			assert.False(t, st.Allowed)
			assert.Equal(t, 3, st.Current)
			assert.Equal(t, intPtr(3), st.Limit)
			assert.Equal(t, 100, st.Percentage)
			assert.Equal(t, "2026-03", st.Period)
		})
	}
}

func TestCheckLimitUnlimited(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ledger := NewLedger(store, testPlans(t), planOf("unlimited"), time.UTC, WithClock(fixedClock(march)))
			ctx := context.Background()
			for range 25 {
				require.NoError(t, ledger.Record(ctx, "u1", AIAnalyses, nil))
			}
			st, err := ledger.CheckLimit(ctx, "u1", AIAnalyses)
			require.NoError(t, err)
			assert.True(t, st.Allowed)
			assert.Nil(t, st.Limit)
			assert.Equal(t, 25, st.Current)
			assert.Equal(t, 0, st.Percentage)
		})
	}
}

func TestCheckLimitPeriodRollover(t *testing.T) {
	now := march
	ledger := NewLedger(NewGormStore(testDB(t)), testPlans(t), planOf("basic"), time.UTC,
		WithClock(func() time.Time { return now }))
	ctx := context.Background()
	for range 3 {
		require.NoError(t, ledger.Record(ctx, "u1", AIAnalyses, nil))
	}
	now = time.Date(2026, 4, 1, 0, 0, 1, 0, time.UTC)

	st, err := ledger.CheckLimit(ctx, "u1", AIAnalyses)
	require.NoError(t, err)
	assert.True(t, st.Allowed)
	assert.Equal(t, 0, st.Current)
	assert.Equal(t, "2026-04", st.Period)
}

func TestCheckLimitTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 02:00 UTC on April 1st is still March 31st in New York.
	ledger := NewLedger(NewGormStore(testDB(t)), testPlans(t), planOf("basic"), loc,
		WithClock(fixedClock(time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC))))
	st, err := ledger.CheckLimit(context.Background(), "u1", AIAnalyses)
	require.NoError(t, err)
	assert.Equal(t, "2026-03", st.Period)
}

func TestEnforce(t *testing.T) {
	ledger := NewLedger(NewGormStore(testDB(t)), testPlans(t), planOf("basic"), time.UTC, WithClock(fixedClock(march)))
	ctx := context.Background()

	_, err := ledger.Enforce(ctx, "u1", DiagramUploads)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 0, exceeded.State.Current)
	assert.Equal(t, 100, exceeded.State.Percentage)
	assert.Equal(t, errx.CodeQuotaExceeded, errx.CodeOf(err))
	assert.Equal(t, 429, errx.StatusOf(err))

	// exports is not listed on basic
	st, err := ledger.Enforce(ctx, "u1", Exports)
	require.Error(t, err)
	assert.Equal(t, intPtr(0), st.Limit)

	_, err = ledger.Enforce(ctx, "u1", AIAnalyses)
	assert.NoError(t, err)
}

func TestCheckLimitRequiresUser(t *testing.T) {
	ledger := NewLedger(NewGormStore(testDB(t)), testPlans(t), planOf("basic"), time.UTC)
	_, err := ledger.CheckLimit(context.Background(), "", AIAnalyses)
	assert.Equal(t, errx.CodeUnauthorized, errx.CodeOf(err))
}

func TestCheckLimitResolverFailure(t *testing.T) {
	boom := errors.New("db down")
	ledger := NewLedger(NewGormStore(testDB(t)), testPlans(t),
		PlanResolverFunc(func(context.Context, string) (string, error) { return "", boom }), time.UTC)
	_, err := ledger.CheckLimit(context.Background(), "u1", AIAnalyses)
	assert.ErrorIs(t, err, boom)
}

type failingStore struct {
	mu      sync.Mutex
	appends int
}

func (f *failingStore) Count(context.Context, Key) (int, error) { return 0, nil }

func (f *failingStore) Append(context.Context, Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	return errors.New("store unavailable")
}

func TestRecordAsyncSwallowsFailures(t *testing.T) {
	store := &failingStore{}
	ledger := NewLedger(store, testPlans(t), planOf("basic"), time.UTC, WithRecordTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	ledger.RecordAsync(ctx, "u1", AIAnalyses, nil)
	cancel()
	ledger.Wait()

	assert.Equal(t, 1, store.appends)
}

func TestRecordAsyncSurvivesRequestCancel(t *testing.T) {
	ledger := NewLedger(NewGormStore(testDB(t)), testPlans(t), planOf("basic"), time.UTC, WithClock(fixedClock(march)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 2 {
		ledger.RecordAsync(ctx, "u1", AIAnalyses, map[string]any{"action": "photo"})
	}
	ledger.Wait()

	st, err := ledger.CheckLimit(context.Background(), "u1", AIAnalyses)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Current)
	assert.Equal(t, 67, st.Percentage)
}

func TestUsage(t *testing.T) {
	ledger := NewLedger(NewRedisStore(testRedis(t)), testPlans(t), planOf("basic"), time.UTC, WithClock(fixedClock(march)))
	ctx := context.Background()
	require.NoError(t, ledger.Record(ctx, "u1", AIAnalyses, nil))

	states, err := ledger.Usage(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.Equal(t, DiagramUploads, states[0].Category)
	assert.Equal(t, AIAnalyses, states[1].Category)
	assert.Equal(t, 1, states[1].Current)
	assert.Equal(t, 33, states[1].Percentage)
}
