package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/corehub/uuidv7"
)

// Invariant 3: a client-claimed UUIDv7 verifies iff it was derived
// from the session's decoded genState with matching ts/seq.
func TestVerifyClientUUIDMatchesOnlyDerivedIDs(t *testing.T) {
	h := newTestHub(t, incrementReducer, identityFilter, hydrateFixed(countingState{Count: 0}, nil))
	sender := newFakeSender()
	sess := connectAndWaitLive(t, h, sender, "room/verify")

	require.NoError(t, h.HandleMessage(sess, connectEnvelope(t, "")))
	require.Eventually(t, func() bool { return len(sender.snapshot()) >= 1 }, time.Second, time.Millisecond)

	sess.mu.Lock()
	state := sess.genState
	sess.mu.Unlock()
	require.NotNil(t, state)

	ts := int64(1_700_000_000_000)
	seq := 3
	derived := uuidv7.Mint(state, &ts, &seq)
	assert.True(t, verifyClientUUID(sess, derived.String()))

	foreignState := uuidv7.NewState([]byte("a completely different seed entirely"))
	foreign := uuidv7.Mint(foreignState, &ts, &seq)
	assert.False(t, verifyClientUUID(sess, foreign.String()))

	assert.False(t, verifyClientUUID(sess, "not-a-uuid"))
}

func TestSessionClosesOnInvalidStore(t *testing.T) {
	h := newTestHub(t, incrementReducer, identityFilter, hydrateFixed(nil, map[string]bool{}))
	sender := newFakeSender()

	sess := h.OnConnect(context.Background(), sender, "room/ghost", nil)
	require.Eventually(t, func() bool { return sess.Phase() == Closed }, time.Second, time.Millisecond)

	found := false
	for _, m := range sender.snapshot() {
		if _, ok := m.(wireInvalidStore); ok {
			found = true
		}
	}
	assert.True(t, found, "expected an invalidStore message")
}

func TestSessionClosesSilentlyIfSocketClosedDuringHydration(t *testing.T) {
	blocked := make(chan struct{})
	hydrate := func(_ context.Context, key string, _ any) (any, error) {
		<-blocked
		return countingState{Count: 0}, nil
	}
	h := newTestHub(t, incrementReducer, identityFilter, hydrate)
	sender := newFakeSender()

	sess := h.OnConnect(context.Background(), sender, "room/race", nil)
	sender.close()
	close(blocked)

	require.Eventually(t, func() bool { return sess.Phase() == Closed }, time.Second, time.Millisecond)
	assert.Empty(t, sender.snapshot(), "a socket closed mid-hydration must not receive any message")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := newTestHub(t, incrementReducer, identityFilter, hydrateFixed(countingState{Count: 0}, nil))
	sender := newFakeSender()
	sess := connectAndWaitLive(t, h, sender, "room/disconnect")

	sess.Disconnect()
	assert.NotPanics(t, func() { sess.Disconnect() })
	assert.Equal(t, Closed, sess.Phase())
}
