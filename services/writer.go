package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one durable write deferred off the request path.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Writer is the write-behind worker for durable records. The live store is
// authoritative while an event is open, so durable writes only need
// eventual delivery: jobs are retried a few times and then dropped with a
// log line rather than blocking or failing the request that produced them.
type Writer struct {
	jobs chan Job
	wg   sync.WaitGroup

	maxAttempts int
	backoff     time.Duration
}

func NewWriter(queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Writer{
		jobs:        make(chan Job, queueSize),
		maxAttempts: 3,
		backoff:     100 * time.Millisecond,
	}
}

func (w *Writer) Start() {
	w.wg.Add(1)
	go w.run()
}

// Enqueue hands off a durable write. Returns false when the queue is full;
// the job is dropped and logged, never blocked on.
func (w *Writer) Enqueue(job Job) bool {
	select {
	case w.jobs <- job:
		return true
	default:
		slog.Error("durable write queue full, dropping job", "job", job.Name)
		return false
	}
}

// Stop drains the queue and waits for the worker to finish.
func (w *Writer) Stop() {
	close(w.jobs)
	w.wg.Wait()
}

func (w *Writer) run() {
	defer w.wg.Done()

	for job := range w.jobs {
		w.execute(job)
	}
}

func (w *Writer) execute(job Job) {
	var err error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = job.Run(ctx)
		cancel()
		if err == nil {
			return
		}
		slog.Warn("durable write failed",
			"job", job.Name, "attempt", attempt, "error", err)
		time.Sleep(w.backoff * time.Duration(attempt))
	}
	slog.Error("durable write dropped after retries", "job", job.Name, "error", err)
}
