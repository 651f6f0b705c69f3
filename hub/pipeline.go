package hub

import (
	"context"
	"fmt"

	"github.com/sage-x-project/corehub/genparams"
	"github.com/sage-x-project/corehub/internal/logger"
	"github.com/sage-x-project/corehub/internal/metrics"
	"github.com/sage-x-project/corehub/uuidv7"
)

// OnConnect accepts a freshly opened socket: it builds a session bound
// to contextKey and starts hydration/attachment in the background. The
// returned session starts in Buffering phase; callers should feed
// every subsequent raw message through HandleMessage.
func (h *Hub) OnConnect(ctx context.Context, sender Sender, contextKey string, identity any) *ClientSession {
	sess := h.NewSession(sender, contextKey, identity)
	go h.Attach(ctx, sess, h.dispatch)
	return sess
}

// HandleMessage decodes and routes one raw client message for sess. If
// the session is still Buffering, the message is queued for replay
// once attachment completes.
func (h *Hub) HandleMessage(sess *ClientSession, raw []byte) error {
	var env wireEnvelope
	if err := env.UnmarshalJSON(raw); err != nil {
		return logger.NewCoreError(logger.ErrCodeInvalidInput, "decode raw message", err)
	}

	if sess.buffer(env) {
		return nil
	}
	h.dispatch(sess, env)
	return nil
}

func (h *Hub) dispatch(sess *ClientSession, env wireEnvelope) {
	msg, err := decodeWireMessage(env)
	if err != nil {
		h.log.Warn("dropping malformed message",
			logger.Error(logger.NewCoreError(logger.ErrCodeValidationError, "decode wire message", err)),
		)
		return
	}

	switch m := msg.(type) {
	case wireConnect:
		h.handleConnect(sess, m)
	case wireAction:
		sess.mu.Lock()
		c := sess.ctx
		sess.mu.Unlock()
		if c == nil {
			return
		}
		c.Schedule(func() { h.handleAction(c, sess, m) })
	}
}

// handleConnect implements spec §4.7.1.
func (h *Hub) handleConnect(sess *ClientSession, m wireConnect) {
	if m.ClientID != "" {
		sess.ClientID = m.ClientID
	}

	var bundle genparams.SignedGenParams
	verified := false
	if m.UUIDParams != nil {
		if b, ok := genparams.UnmarshalWire(m.UUIDParams.InitBytesBase64, m.UUIDParams.SignatureBase64); ok {
			if sess.genSvc.Verify(b) {
				bundle = b
				verified = true
			}
		}
	}
	if !verified {
		fresh, err := sess.genSvc.MintSigned()
		if err != nil {
			h.log.Error("mint generation parameters failed",
				logger.Error(logger.NewCoreError(logger.ErrCodeInternal, "mint signed generation parameters", err)),
			)
			return
		}
		bundle = fresh
	}

	sess.mu.Lock()
	sess.genParams = &bundle
	sess.genState = sess.genSvc.Decode(bundle)
	clientID := sess.ClientID
	if clientID == "" {
		clientID = sess.AutoClientID.String()
	}
	sess.mu.Unlock()

	initB64, sigB64 := genparams.MarshalWire(bundle)

	sess.mu.Lock()
	ctx := sess.ctx
	sess.mu.Unlock()

	var initialState any
	if ctx != nil {
		initialState = ctx.State()
	}

	_ = sess.sender.Send(wireConnected{
		Type:         "connected",
		InitialState: initialState,
		ClientID:     clientID,
		UUIDParams: wireSignedGenParams{
			InitBytesBase64: initB64,
			SignatureBase64: sigB64,
		},
	})
}

// handleAction implements spec §4.7.2. It runs inside c's serial
// worker and may safely mutate c.state.
func (h *Hub) handleAction(c *Context, sess *ClientSession, m wireAction) {
	data, ok := m.structuredData()
	if !ok {
		// Non-object payload: silently dropped (defensive against
		// type confusion in the reducer).
		return
	}
	action := Action{Type: fmt.Sprint(data["type"]), Data: data}

	next := uuidv7.Mint(c.mintState, nil, nil)
	claimedID, parseErr := uuidv7.Parse(m.ActionID)

	var id uuidv7.UUID
	switch {
	case parseErr != nil:
		id = next
	case uuidv7.Compare(claimedID, c.LastActionID()) <= 0, uuidv7.Compare(claimedID, next) > 0:
		h.log.Warn("claimed action id stale or out of range, reassigning",
			logger.String("context", c.Key),
			logger.Error(logger.NewCoreError(logger.ErrCodeConflict, "claimed action id conflicts with id policy", nil).
				WithDetails("claimedId", m.ActionID)),
		)
		id = next
	default:
		id = claimedID
	}

	fctx := filterContextFor(c, sess)
	verdict, err := c.filter(fctx, action)
	if err != nil {
		h.log.Error("filter invocation failed",
			logger.String("context", c.Key),
			logger.Error(logger.NewCoreError(logger.ErrCodeInternal, "filter invocation failed", err)),
		)
		return
	}

	switch verdict.Kind {
	case VerdictReject:
		metrics.ActionsRejected.WithLabelValues(c.Key, "reject").Inc()
		_ = sess.sender.Send(wireRejectAction{
			Type:     "rejectAction",
			Message:  faultMessage(verdict.Message, "rejectAction"),
			ActionID: m.ActionID,
		})
		return
	case VerdictNeedAuth:
		metrics.ActionsRejected.WithLabelValues(c.Key, "needAuth").Inc()
		h.log.Warn("action requires authentication",
			logger.String("context", c.Key),
			logger.Error(logger.NewCoreError(logger.ErrCodeUnauthorized, "action requires authentication", nil)),
		)
		_ = sess.sender.Send(wireNeedAuthentication{Type: "needAuthentication"})
		return
	case VerdictBadAuth:
		metrics.ActionsRejected.WithLabelValues(c.Key, "badAuth").Inc()
		h.log.Warn("action authorization rejected",
			logger.String("context", c.Key),
			logger.Error(logger.NewCoreError(logger.ErrCodeForbidden, "action authorization rejected", nil)),
		)
		_ = sess.sender.Send(wireBadAuthorization{Type: "badAuthorization", ActionID: m.ActionID})
		return
	}

	accepted := verdict.Action
	replaced := verdict.Rewritten

	c.setState(c.reducer(c.State(), accepted))
	c.setLastActionID(id)

	if replaced {
		metrics.ActionsRewritten.WithLabelValues(c.Key).Inc()
	}
	metrics.ActionsAccepted.WithLabelValues(c.Key).Inc()

	switch {
	case replaced:
		_ = sess.sender.Send(wireReplaceAction{
			Type:   "replaceAction",
			FromID: m.ActionID,
			ToID:   id.String(),
			Action: accepted.Data,
		})
	case id.String() != m.ActionID:
		_ = sess.sender.Send(wireRenameID{
			Type:   "renameId",
			FromID: m.ActionID,
			ToID:   id.String(),
		})
	default:
		_ = sess.sender.Send(wireAckAction{Type: "ackAction", ID: m.ActionID})
	}

	c.fanout(sess, wireActionFanout{Type: "action", Action: accepted.Data, ID: id.String()})
}

func faultMessage(msg, respType string) string {
	if msg != "" {
		return msg
	}
	return fmt.Sprintf("no extra message given for %s", respType)
}
