package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/biostack-engine/internal/domain"
)

// Writer persists run records off the request path. Emit enqueues and
// returns immediately; a single background worker drains the queue so
// audit persistence can never block or fail a response. When the queue is
// full the record is dropped and counted, not waited on.
type Writer struct {
	store  domain.AuditStore
	logger *logrus.Logger
	queue  chan *domain.RunRecord
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	dropped int64
}

// saveTimeout bounds a single store write so a hung database cannot stall
// the drain worker forever.
const saveTimeout = 5 * time.Second

// NewWriter creates a writer with the given queue capacity and starts its
// drain worker.
func NewWriter(store domain.AuditStore, queueSize int, logger *logrus.Logger) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &Writer{
		store:  store,
		logger: logger,
		queue:  make(chan *domain.RunRecord, queueSize),
		done:   make(chan struct{}),
	}
	go w.drain()
	return w
}

// Emit enqueues a run record for persistence. Never blocks.
func (w *Writer) Emit(record *domain.RunRecord) {
	select {
	case w.queue <- record:
	default:
		w.mu.Lock()
		w.dropped++
		dropped := w.dropped
		w.mu.Unlock()
		w.logger.WithFields(logrus.Fields{
			"run_id":        record.RunID,
			"total_dropped": dropped,
		}).Warn("Audit queue full, run record dropped")
	}
}

// Dropped reports how many records were discarded due to a full queue.
func (w *Writer) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

func (w *Writer) drain() {
	for record := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := w.store.SaveRun(ctx, record); err != nil {
			w.logger.WithError(err).WithField("run_id", record.RunID).Error("Failed to persist audit record")
		}
		cancel()
	}
	close(w.done)
}

// Close stops accepting records, waits for the queue to drain, and closes
// the underlying store.
func (w *Writer) Close() error {
	w.once.Do(func() {
		close(w.queue)
	})
	<-w.done
	return w.store.Close()
}
