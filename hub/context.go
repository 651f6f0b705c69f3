package hub

import (
	"github.com/sage-x-project/corehub/internal/logger"
	"github.com/sage-x-project/corehub/internal/metrics"
	"github.com/sage-x-project/corehub/uuidv7"
)

// Schedule enqueues task on this context's serial worker. Safe to call
// from any goroutine; blocks only while 256 tasks are already queued.
func (c *Context) Schedule(task func()) {
	c.worker.schedule(task)
}

// State returns the context's current state. Safe for concurrent use;
// callers outside the worker only ever read a snapshot.
func (c *Context) State() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// setState replaces the context's state. Must only be called from
// within a task running on this context's worker.
func (c *Context) setState(s any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

// LastActionID returns the high-water mark for accepted action ids.
func (c *Context) LastActionID() uuidv7.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActionID
}

func (c *Context) setLastActionID(id uuidv7.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActionID = id
}

// addClient attaches sess to this context's live client set.
func (c *Context) addClient(sess *ClientSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[sess] = struct{}{}
	metrics.ActiveSessions.Inc()
}

// removeClient detaches sess. Idempotent: removing an absent session
// is a no-op, so disconnect handling never needs to check membership
// first.
func (c *Context) removeClient(sess *ClientSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.clients[sess]; !ok {
		return
	}
	delete(c.clients, sess)
	metrics.ActiveSessions.Dec()
}

// fanout sends msg to every attached client except exclude.
func (c *Context) fanout(exclude *ClientSession, msg any) {
	c.mu.RLock()
	targets := make([]*ClientSession, 0, len(c.clients))
	for sess := range c.clients {
		if sess == exclude {
			continue
		}
		targets = append(targets, sess)
	}
	c.mu.RUnlock()

	for _, sess := range targets {
		if err := sess.sender.Send(msg); err != nil {
			c.log.Warn("fanout send failed",
				logger.String("client", sess.AutoClientID.String()),
				logger.Error(err),
			)
			continue
		}
		metrics.FanoutMessages.WithLabelValues(c.Key).Inc()
	}
}
