package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue runs document processing in the background so upload requests do not
// block on ingestion. A fixed worker pool consumes document ids; callers
// observe completion through the document status.
type Queue struct {
	pipeline *Pipeline
	jobs     chan uuid.UUID
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewQueue(p *Pipeline, workers, size int) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 64
	}
	q := &Queue{
		pipeline: p,
		jobs:     make(chan uuid.UUID, size),
		logger:   slog.Default().With("component", "processing_queue"),
	}
	q.start(workers)
	return q
}

func (q *Queue) start(workers int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info("queue started", "workers", workers)
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case docID := <-q.jobs:
			start := time.Now()
			if err := q.pipeline.Process(ctx, docID); err != nil {
				q.logger.Error("background processing failed",
					"document_id", docID,
					"duration", time.Since(start),
					"error", err)
			} else {
				q.logger.Info("background processing completed",
					"document_id", docID,
					"duration", time.Since(start))
			}
		}
	}
}

// Enqueue submits a document for background processing. Returns false when
// the queue is full; the caller can fall back to synchronous processing or
// report back-pressure.
func (q *Queue) Enqueue(docID uuid.UUID) bool {
	select {
	case q.jobs <- docID:
		return true
	default:
		return false
	}
}

// Stop cancels the workers and waits for in-flight runs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("queue stopped")
}
