// Package hub implements the authoritative server core: context
// lifecycle, the per-context serial worker, connection sessions, and
// the action ingestion pipeline.
package hub

import (
	"context"
	"sync"

	"github.com/sage-x-project/corehub/genparams"
	"github.com/sage-x-project/corehub/internal/logger"
	"github.com/sage-x-project/corehub/uuidv7"
)

// Action is a tagged, unstructured payload applied to a context's
// state. Only Type is introspected by the core; Data carries whatever
// the reducer and filter understand.
type Action struct {
	Type string
	Data map[string]any
}

// Reducer applies an action to the current state and returns the next
// state. It must be pure, deterministic, and synchronous.
type Reducer func(state any, action Action) any

// Hydrate loads (or lazily creates) the initial state for key. A nil
// state with a nil error means "no such store". identity is the
// authenticated principal of the connection that triggered hydration,
// or nil.
type Hydrate func(ctx context.Context, key string, identity any) (any, error)

// VerdictKind discriminates the outcome of an ActionFilter call.
type VerdictKind int

const (
	// VerdictAccept means the action (possibly rewritten) may be applied.
	VerdictAccept VerdictKind = iota
	VerdictReject
	VerdictNeedAuth
	VerdictBadAuth
)

// Verdict is the filter's decision for one action.
type Verdict struct {
	Kind VerdictKind
	// Action is the (possibly rewritten) action to apply, for
	// VerdictAccept. The filter sets Rewritten to report that Action
	// replaces the one it was handed; the pipeline does not compare the
	// two actions itself.
	Action    Action
	Rewritten bool
	// Message carries the fault text for the reject/needAuth/badAuth
	// kinds. Empty means "use the default message".
	Message string
}

// ActionFilter inspects (and may rewrite or refuse) an action before
// it reaches the reducer.
type ActionFilter func(fctx *FilterContext, action Action) (Verdict, error)

// FilterContext is handed to an ActionFilter invocation. It exposes a
// read of the current state, a way to schedule follow-up work on the
// owning context's worker, and a way to verify a client-claimed
// UUIDv7 against the calling session's generator state.
type FilterContext struct {
	Key        string
	getState   func() any
	scheduleFn func(task func())
	verifyFn   func(uuidStr string) bool
}

// GetState returns the context's current state.
func (f *FilterContext) GetState() any { return f.getState() }

// Schedule enqueues task on the owning context's worker. Safe to call
// from any goroutine; blocks only while 256 tasks are already queued.
func (f *FilterContext) Schedule(task func()) { f.scheduleFn(task) }

// VerifyUUID reports whether uuidStr is a valid v7 UUID that could
// have been minted under the calling session's generator state.
func (f *FilterContext) VerifyUUID(uuidStr string) bool { return f.verifyFn(uuidStr) }

// Context is the server-side singleton for one key: state, the
// client set, the id high-water mark, and the serial worker that
// owns all of it.
type Context struct {
	Key     string
	reducer Reducer
	filter  ActionFilter
	log     logger.Logger

	worker    *worker
	mintState *uuidv7.State

	mu           sync.RWMutex
	state        any
	lastActionID uuidv7.UUID
	clients      map[*ClientSession]struct{}
}

// Phase is a ClientSession's position in its state machine.
type Phase int

const (
	Buffering Phase = iota
	Live
	Closed
)

// Sender abstracts the transport-level "send one wire message" op so
// hub stays independent of the concrete socket implementation.
type Sender interface {
	Send(v any) error
}

// ClientSession is one server-side binding of a socket to a context.
type ClientSession struct {
	AutoClientID uuidv7.UUID
	ClientID     string

	contextKey string
	sender     Sender
	identity   any

	genSvc    *genparams.Service
	genParams *genparams.SignedGenParams
	genState  *uuidv7.State

	mu           sync.Mutex
	phase        Phase
	pendingInbox []wireEnvelope
	ctx          *Context
}
