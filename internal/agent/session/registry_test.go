package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/wiresense/server/internal/agent/model"
	errx "github.com/wiresense/server/internal/core/error"
)

var cessna = model.VehicleContext{Make: "Cessna", Model: "172", Class: model.Aircraft}

func appendTurn(content string) UpdateFunc {
	return func(_ context.Context, cur *Session) (*Session, error) {
		next := cur.Clone()
		next.History = append(next.History, schema.UserMessage(content))
		return next, nil
	}
}

func TestRegistryCreatesOnFirstReference(t *testing.T) {
	reg := NewRegistry(NewMemoryStore())
	ctx := context.Background()

	_, err := reg.Get(ctx, "s1")
	assert.Equal(t, errx.CodeNotFound, errx.CodeOf(err))

	s, err := reg.Update(ctx, "s1", cessna, appendTurn("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Version)
	assert.Equal(t, cessna, s.Vehicle)

	got, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got.History, 1)
	assert.Equal(t, "hello", got.History[0].Content)
}

func TestRegistryVehicleIsImmutable(t *testing.T) {
	reg := NewRegistry(NewMemoryStore())
	ctx := context.Background()

	_, err := reg.Update(ctx, "s1", cessna, appendTurn("a"))
	require.NoError(t, err)
	s, err := reg.Update(ctx, "s1", model.VehicleContext{Make: "Ford", Class: model.Automotive}, appendTurn("b"))
	require.NoError(t, err)
	assert.Equal(t, cessna, s.Vehicle)
	assert.Equal(t, int64(2), s.Version)
}

func TestRegistryFailedUpdateWritesNothing(t *testing.T) {
	reg := NewRegistry(NewMemoryStore())
	ctx := context.Background()
	_, err := reg.Update(ctx, "s1", cessna, appendTurn("a"))
	require.NoError(t, err)

	boom := errx.Inference(errors.New("timeout"))
	_, err = reg.Update(ctx, "s1", cessna, func(context.Context, *Session) (*Session, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	got, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.History, 1)
	assert.Equal(t, int64(1), got.Version)
}

func TestRegistrySerializesSameSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := NewRegistry(NewMemoryStore())
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Update(ctx, "shared", cessna, func(ctx context.Context, cur *Session) (*Session, error) {
				time.Sleep(time.Millisecond)
				return appendTurn(fmt.Sprintf("turn %d", i))(ctx, cur)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := reg.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, got.History, writers)
	assert.Equal(t, int64(writers), got.Version)
	assert.Zero(t, reg.lockCount())
}

func TestRegistryWaitHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := NewRegistry(NewMemoryStore())
	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = reg.Update(context.Background(), "s1", cessna, func(ctx context.Context, cur *Session) (*Session, error) {
			close(entered)
			<-unblock
			return appendTurn("slow")(ctx, cur)
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := reg.Update(ctx, "s1", cessna, appendTurn("fast"))
	assert.Equal(t, errx.CodeConflict, errx.CodeOf(err))

	close(unblock)
	<-done
	assert.Zero(t, reg.lockCount())
}

func TestMemoryStoreVersionCheck(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	s := New("s1", cessna, time.Now())
	s.Version = 1
	require.NoError(t, store.Save(ctx, s, 0))

	stale := s.Clone()
	stale.Version = 2
	require.NoError(t, store.Save(ctx, stale, 1))

	err := store.Save(ctx, stale, 1)
	assert.Equal(t, errx.CodeConflict, errx.CodeOf(err))
	assert.True(t, errx.IsRetryable(err))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	s := New("s1", cessna, time.Now())
	s.History = append(s.History, schema.UserMessage("a"))
	s.Version = 1
	require.NoError(t, store.Save(ctx, s, 0))

	s.History[0].Content = "mutated"
	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.History[0].Content)
}
