package hub

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sage-x-project/corehub/internal/logger"
	"github.com/sage-x-project/corehub/internal/metrics"
	"github.com/sage-x-project/corehub/uuidv7"
)

// Registry owns the key -> Context map and coalesces concurrent
// creation attempts for the same key onto a single Hydrate call.
type Registry struct {
	hydrate Hydrate
	reducer Reducer
	filter  ActionFilter
	log     logger.Logger

	group singleflight.Group

	mu        sync.RWMutex
	contexts  map[string]*Context
	idleProbe time.Duration
}

// NewRegistry returns a Registry backed by the given collaborators.
func NewRegistry(hydrate Hydrate, reducer Reducer, filter ActionFilter, log logger.Logger) *Registry {
	return &Registry{
		hydrate:  hydrate,
		reducer:  reducer,
		filter:   filter,
		log:      log,
		contexts: make(map[string]*Context),
	}
}

// SetIdleProbe overrides the idle-probe interval used by every
// context worker created from this point on (already-running workers
// keep their interval). A non-positive value restores the default.
func (r *Registry) SetIdleProbe(d time.Duration) {
	r.idleProbe = d
}

// GetOrCreate returns the Context for key, hydrating it if this is the
// first access. Concurrent calls for the same cold key share exactly
// one Hydrate invocation. A nil, nil result means "no such store".
func (r *Registry) GetOrCreate(ctx context.Context, key string, identity any) (*Context, error) {
	if c := r.lookup(key); c != nil {
		return c, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		// Re-check under the singleflight call: another caller may
		// have completed hydration for this key between our lookup
		// above and entering Do.
		if c := r.lookup(key); c != nil {
			return c, nil
		}

		start := time.Now()
		initial, hydrateErr := r.hydrate(ctx, key, identity)
		metrics.HydrateDuration.WithLabelValues(key).Observe(time.Since(start).Seconds())
		if hydrateErr != nil {
			return nil, logger.NewCoreError(logger.ErrCodeInternal, "hydrate collaborator failed", hydrateErr).
				WithDetails("context", key)
		}
		if initial == nil {
			return nil, nil
		}

		c := r.newContext(key, initial)
		r.store(key, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*Context), nil
}

func (r *Registry) lookup(key string) *Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contexts[key]
}

func (r *Registry) store(key string, c *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[key] = c
	metrics.ActiveContexts.Set(float64(len(r.contexts)))
}

func (r *Registry) newContext(key string, initial any) *Context {
	log := r.log.WithFields(logger.String("context", key))
	c := &Context{
		Key:     key,
		reducer: r.reducer,
		filter:  r.filter,
		log:     log,
		state:   initial,
		clients: make(map[*ClientSession]struct{}),
	}
	c.worker = newWorker(key, log, r.idleProbe)
	c.mintState = freshMintState()
	c.lastActionID = uuidv7.Mint(c.mintState, nil, nil)
	return c
}

// freshMintState returns a fresh, randomly seeded generator used to
// mint the context's own action ids (the "next" candidate in the id
// policy, and the initial lastActionId). It is independent of any
// client's genState and is never used for UUID verification.
func freshMintState() *uuidv7.State {
	var seed [uuidv7.SeedSize]byte
	_, _ = rand.Read(seed[:])
	return uuidv7.NewState(seed[:])
}
