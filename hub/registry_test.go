package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S5 — concurrent GetOrCreate on a cold key invokes Hydrate exactly
// once and every caller observes the same Context.
func TestScenarioS5SingleFlightHydration(t *testing.T) {
	var calls int32
	release := make(chan struct{})

	hydrate := func(_ context.Context, key string, _ any) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return countingState{Count: 0}, nil
	}

	reg := NewRegistry(hydrate, incrementReducer, identityFilter, testLogger())

	const n = 8
	results := make([]*Context, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			c, err := reg.GetOrCreate(context.Background(), "room/b", nil)
			results[i] = c
			errs[i] = err
		}(i)
	}

	time.Sleep(50 * time.Millisecond) // let every goroutine reach group.Do
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "hydrate must run exactly once for a cold key")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Same(t, results[0], results[i], "all callers must observe the same Context")
	}
}

// S6 — invalid store: hydrate returning nil yields (nil, nil), and a
// later call for the same key retries hydrate rather than caching the
// miss.
func TestScenarioS6InvalidStoreRetriesOnNextCall(t *testing.T) {
	var calls int32
	hydrate := func(_ context.Context, key string, _ any) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}
	reg := NewRegistry(hydrate, incrementReducer, identityFilter, testLogger())

	c, err := reg.GetOrCreate(context.Background(), "room/ghost", nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = reg.GetOrCreate(context.Background(), "room/ghost", nil)
	require.NoError(t, err)
	assert.Nil(t, c)

	assert.EqualValues(t, 2, atomic.LoadInt32(&calls), "a nil result must not be tombstoned")
}

func TestGetOrCreatePropagatesHydrateError(t *testing.T) {
	boom := errors.New("boom")
	hydrate := func(_ context.Context, key string, _ any) (any, error) {
		return nil, boom
	}
	reg := NewRegistry(hydrate, incrementReducer, identityFilter, testLogger())

	c, err := reg.GetOrCreate(context.Background(), "room/broken", nil)
	assert.Nil(t, c)
	assert.ErrorIs(t, err, boom)
}

func TestGetOrCreateReusesWarmContext(t *testing.T) {
	var calls int32
	hydrate := func(_ context.Context, key string, _ any) (any, error) {
		atomic.AddInt32(&calls, 1)
		return countingState{Count: 0}, nil
	}
	reg := NewRegistry(hydrate, incrementReducer, identityFilter, testLogger())

	c1, err := reg.GetOrCreate(context.Background(), "room/warm", nil)
	require.NoError(t, err)
	c2, err := reg.GetOrCreate(context.Background(), "room/warm", nil)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
