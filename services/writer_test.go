package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriter_ExecutesJobs(t *testing.T) {
	w := NewWriter(8)
	w.Start()

	var ran atomic.Int32
	w.Enqueue(Job{Name: "job", Run: func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}})

	w.Stop()
	assert.Equal(t, int32(1), ran.Load())
}

func TestWriter_RetriesUntilSuccess(t *testing.T) {
	w := NewWriter(8)
	w.backoff = time.Millisecond
	w.Start()

	var attempts atomic.Int32
	w.Enqueue(Job{Name: "flaky", Run: func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}})

	w.Stop()
	assert.Equal(t, int32(3), attempts.Load())
}

func TestWriter_GivesUpAfterMaxAttempts(t *testing.T) {
	w := NewWriter(8)
	w.backoff = time.Millisecond
	w.Start()

	var attempts atomic.Int32
	w.Enqueue(Job{Name: "doomed", Run: func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("permanent")
	}})

	w.Stop()
	assert.Equal(t, int32(3), attempts.Load(), "bounded retries, then dropped")
}

func TestWriter_FullQueueDropsInsteadOfBlocking(t *testing.T) {
	w := NewWriter(1)
	// Not started: the single buffer slot fills and the next enqueue must
	// report the drop immediately.
	ok := w.Enqueue(Job{Name: "first", Run: func(ctx context.Context) error { return nil }})
	assert.True(t, ok)

	ok = w.Enqueue(Job{Name: "second", Run: func(ctx context.Context) error { return nil }})
	assert.False(t, ok)

	w.Start()
	w.Stop()
}

func TestWriter_StopDrainsQueuedJobs(t *testing.T) {
	w := NewWriter(16)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		w.Enqueue(Job{Name: "queued", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}})
	}

	w.Start()
	w.Stop()
	assert.Equal(t, int32(10), ran.Load())
}
