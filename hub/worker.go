package hub

import (
	"time"

	"github.com/sage-x-project/corehub/internal/logger"
	"github.com/sage-x-project/corehub/internal/metrics"
)

const defaultIdleProbeInterval = 10 * time.Second

// worker is the single cooperative task queue owned by one Context.
// Exactly one task body runs at a time. The queue holds 256 tasks.
type worker struct {
	tasks     chan func()
	log       logger.Logger
	key       string
	idleProbe time.Duration
}

// newWorker starts a worker whose liveness ticker fires every
// idleProbe. A non-positive idleProbe falls back to
// defaultIdleProbeInterval.
func newWorker(key string, log logger.Logger, idleProbe time.Duration) *worker {
	if idleProbe <= 0 {
		idleProbe = defaultIdleProbeInterval
	}
	w := &worker{
		tasks:     make(chan func(), 256),
		log:       log,
		key:       key,
		idleProbe: idleProbe,
	}
	go w.run()
	return w
}

// schedule enqueues task. Safe to call from any goroutine. It returns
// at once while the queue has room; once 256 tasks are waiting, it
// blocks until the worker takes one.
func (w *worker) schedule(task func()) {
	w.tasks <- task
	metrics.WorkerQueueDepth.WithLabelValues(w.key).Set(float64(len(w.tasks)))
}

func (w *worker) run() {
	ticker := time.NewTicker(w.idleProbe)
	defer ticker.Stop()

	for {
		select {
		case task, ok := <-w.tasks:
			if !ok {
				return
			}
			w.exec(task)
			metrics.WorkerQueueDepth.WithLabelValues(w.key).Set(float64(len(w.tasks)))
		case <-ticker.C:
			// liveness probe only; nothing to evict
		}
	}
}

func (w *worker) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("worker task panicked",
				logger.String("context", w.key),
				logger.Any("panic", r),
			)
		}
	}()
	task()
}
