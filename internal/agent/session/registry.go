package session

import (
	"context"
	"sync"
	"time"

	"github.com/wiresense/server/internal/agent/model"
	errx "github.com/wiresense/server/internal/core/error"
	logx "github.com/wiresense/server/pkg/logger"
)

// UpdateFunc computes the next state from the current one. It must not
// modify current.
type UpdateFunc func(ctx context.Context, current *Session) (*Session, error)

// Registry maps session ids to sessions held in a Store. Updates to the same
// id run one at a time within a process; the Store's version check covers
// writers in other processes.
type Registry struct {
	store Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewRegistry(store Store) *Registry {
	return &Registry{
		store: store,
		now:   time.Now,
		locks: make(map[string]*keyLock),
	}
}

// Get returns the stored session or an errx.CodeNotFound error.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	return r.store.Load(ctx, id)
}

// Update loads the session, creating it with vehicle on first reference, runs
// fn and commits its result. Nothing is written when fn fails. The vehicle
// of an existing session is never changed.
func (r *Registry) Update(ctx context.Context, id string, vehicle model.VehicleContext, fn UpdateFunc) (*Session, error) {
	release, err := r.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := r.store.Load(ctx, id)
	switch {
	case errx.CodeOf(err) == errx.CodeNotFound:
		current = New(id, vehicle, r.now())
		logx.Debug().Str("sessionID", id).Str("vehicle", vehicle.Describe()).Msg("created diagnostic session")
	case err != nil:
		return nil, err
	}

	next, err := fn(ctx, current)
	if err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.Vehicle = current.Vehicle
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = r.now()

	if err := r.store.Save(ctx, next, current.Version); err != nil {
		return nil, err
	}
	return next, nil
}

func (r *Registry) acquire(ctx context.Context, id string) (func(), error) {
	r.mu.Lock()
	l, ok := r.locks[id]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		r.locks[id] = l
	}
	l.refs++
	r.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			r.unref(id, l)
		}, nil
	case <-ctx.Done():
		r.unref(id, l)
		return nil, errx.Conflict(ctx.Err(), "session is busy")
	}
}

func (r *Registry) unref(id string, l *keyLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, id)
	}
}

// lockCount reports how many ids currently hold or wait for a lock.
func (r *Registry) lockCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
