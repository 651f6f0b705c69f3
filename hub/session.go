package hub

import (
	"context"
	"crypto/rand"

	"github.com/sage-x-project/corehub/genparams"
	"github.com/sage-x-project/corehub/internal/logger"
	"github.com/sage-x-project/corehub/uuidv7"
)

// Hub ties a Registry to the genparams service and exposes the
// connection-session lifecycle a transport adapter drives.
type Hub struct {
	registry *Registry
	genSvc   *genparams.Service
	log      logger.Logger
}

// NewHub returns a Hub that hydrates contexts via reg and mints/
// verifies generation parameters via genSvc.
func NewHub(reg *Registry, genSvc *genparams.Service, log logger.Logger) *Hub {
	return &Hub{registry: reg, genSvc: genSvc, log: log}
}

// NewSession creates a session bound to no context yet, in Buffering
// phase. The caller must call Attach to bind it to contextKey.
func (h *Hub) NewSession(sender Sender, contextKey string, identity any) *ClientSession {
	var id [16]byte
	_, _ = rand.Read(id[:])

	sess := &ClientSession{
		AutoClientID: uuidv7.Mint(uuidv7.NewState(id[:]), nil, nil),
		contextKey:   contextKey,
		sender:       sender,
		identity:     identity,
		genSvc:       h.genSvc,
		phase:        Buffering,
	}
	return sess
}

// buffer appends a raw client message to sess's pending inbox while it
// is still Buffering. Returns false if the session is not Buffering
// (caller should process the message immediately instead).
func (s *ClientSession) buffer(env wireEnvelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Buffering {
		return false
	}
	s.pendingInbox = append(s.pendingInbox, env)
	return true
}

// Phase reports the session's current lifecycle phase.
func (s *ClientSession) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// IsOpen reports whether the session's socket is still expected to be
// writable. Transport adapters should supply a Sender whose Send
// method fails once the socket is gone; Attach re-checks liveness via
// this method after hydration completes.
type openChecker interface {
	IsOpen() bool
}

// Attach performs the Buffering -> Live transition: looks up (or
// hydrates) the context for the session's key, re-checks the socket is
// still open, and either closes the session (no such store, or the
// socket went away mid-hydration) or attaches it and replays any
// buffered messages.
//
// dispatch is the function used to process each live message
// (connect/action); OnConnect supplies the hub's own dispatch, so
// Attach itself stays free of wire decisions beyond replay ordering.
func (h *Hub) Attach(ctx context.Context, sess *ClientSession, dispatch func(*ClientSession, wireEnvelope)) {
	c, err := h.registry.GetOrCreate(ctx, sess.contextKey, sess.identity)
	if err != nil {
		h.log.Error("hydrate failed", logger.String("context", sess.contextKey), logger.Error(err))
		sess.close()
		return
	}

	if checker, ok := sess.sender.(openChecker); ok && !checker.IsOpen() {
		sess.close()
		return
	}

	if c == nil {
		h.log.Warn("no such store",
			logger.String("context", sess.contextKey),
			logger.Error(logger.NewCoreError(logger.ErrCodeNotFound, "hydrate returned no store for context", nil)),
		)
		_ = sess.sender.Send(wireInvalidStore{Type: "invalidStore"})
		sess.close()
		return
	}

	sess.mu.Lock()
	sess.ctx = c
	sess.phase = Live
	buffered := sess.pendingInbox
	sess.pendingInbox = nil
	sess.mu.Unlock()

	c.addClient(sess)

	for _, env := range buffered {
		dispatch(sess, env)
	}
}

// Disconnect removes sess from its context's client set (idempotent)
// and marks it Closed.
func (s *ClientSession) Disconnect() {
	s.mu.Lock()
	c := s.ctx
	s.phase = Closed
	s.mu.Unlock()

	if c != nil {
		c.removeClient(s)
	}
}

func (s *ClientSession) close() {
	s.mu.Lock()
	s.phase = Closed
	s.mu.Unlock()
}

// filterContextFor builds the FilterContext an ActionFilter sees for
// one invocation against c, scoped to sess for UUID verification.
func filterContextFor(c *Context, sess *ClientSession) *FilterContext {
	return &FilterContext{
		Key:        c.Key,
		getState:   c.State,
		scheduleFn: c.Schedule,
		verifyFn: func(uuidStr string) bool {
			return verifyClientUUID(sess, uuidStr)
		},
	}
}

func verifyClientUUID(sess *ClientSession, uuidStr string) bool {
	sess.mu.Lock()
	state := sess.genState
	sess.mu.Unlock()
	if state == nil {
		return false
	}

	u, err := uuidv7.Parse(uuidStr)
	if err != nil || !u.IsV7() {
		return false
	}

	ts := u.Timestamp()
	seq := u.Sequence()
	candidate := uuidv7.Mint(state, &ts, &seq)
	return uuidv7.Compare(candidate, u) == 0
}
