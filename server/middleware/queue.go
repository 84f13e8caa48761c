package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue/v2"

	"github.com/tarjuman/tarjuman/errors"
	"github.com/tarjuman/tarjuman/server/metrics"
)

// QueueMiddleware bounds the number of translate requests in flight.
//
// Each admitted request puts its completion channel on a FIFO queue and
// takes it off when done; once the queue holds maxSize entries further
// requests get a 503 unavailable_error instead of piling up behind a slow
// upstream.
type QueueMiddleware struct {
	queue      *queue.Queue[chan struct{}] // FIFO of completion channels for admitted requests
	maxSize    atomic.Int64                // Maximum queue size, updated atomically
	mu         sync.Mutex                  // Protects queue operations
	processing atomic.Int32                // Count of requests being processed
	metrics    *metrics.Metrics
	done       chan struct{}
	closeOnce  sync.Once
}

// QueueConfig defines the operational parameters for the queue middleware.
type QueueConfig struct {
	MaxSize int64            // Maximum number of requests in flight
	Metrics *metrics.Metrics // Optional metrics collector
}

// NewQueueMiddleware creates a queue that admits up to cfg.MaxSize
// requests at once.
func NewQueueMiddleware(cfg QueueConfig) *QueueMiddleware {
	qm := &QueueMiddleware{
		queue:   queue.New[chan struct{}](),
		metrics: cfg.Metrics,
		done:    make(chan struct{}),
	}
	qm.maxSize.Store(cfg.MaxSize)
	return qm
}

// SetMaxSize updates the limit. Requests already admitted are not
// affected.
func (qm *QueueMiddleware) SetMaxSize(size int64) {
	qm.maxSize.Store(size)
}

// GetQueueSize returns the current queue length.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.queue.Length()
}

// GetMaxSize returns the current maximum queue size.
func (qm *QueueMiddleware) GetMaxSize() int64 {
	return qm.maxSize.Load()
}

// GetProcessing returns the number of requests currently being processed.
func (qm *QueueMiddleware) GetProcessing() int32 {
	return qm.processing.Load()
}

// Shutdown stops admitting requests and waits for admitted ones to
// finish or ctx to end.
func (qm *QueueMiddleware) Shutdown(ctx context.Context) error {
	qm.closeOnce.Do(func() { close(qm.done) })

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if qm.GetQueueSize() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_shutdown_timeout").Inc()
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (qm *QueueMiddleware) closing() bool {
	select {
	case <-qm.done:
		return true
	default:
		return false
	}
}

// Handler admits the request if there is room, otherwise answers 503.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := GetRequestID(r.Context())

		qm.mu.Lock()
		if qm.closing() || int64(qm.queue.Length()) >= qm.maxSize.Load() {
			qm.mu.Unlock()
			errors.WriteError(w, errors.NewUnavailableError(requestID, "Server is busy, please try again later."))
			return
		}
		done := make(chan struct{})
		qm.queue.Add(done)
		qm.setDepth()
		qm.mu.Unlock()

		qm.processing.Add(1)
		defer func() {
			qm.processing.Add(-1)
			close(done)
			qm.mu.Lock()
			qm.queue.Remove()
			qm.setDepth()
			qm.mu.Unlock()
		}()

		next.ServeHTTP(w, r)
	})
}

// setDepth must be called with mu held.
func (qm *QueueMiddleware) setDepth() {
	if qm.metrics != nil {
		qm.metrics.QueueDepth.Set(float64(qm.queue.Length()))
	}
}
