package schedule

import "context"

// Semaphore bounds concurrent access to a fixed number of slots using a
// buffered channel, the same idiom the retrieval pack's own worked
// example of a bounded worker fleet (billie-coop-loco's
// llm/queue.Processor) uses for its semaphore field: a buffered channel
// of struct{}, filled on acquire and drained on release. It is used by
// internal/postprocess for the worker cap.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a Semaphore with n slots. n must be >= 1.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is available or ctx is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire acquires a slot without blocking, reporting success.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a previously acquired slot.
func (s *Semaphore) Release() {
	select {
	case <-s.slots:
	default:
	}
}

// InUse reports how many slots are currently held.
func (s *Semaphore) InUse() int { return len(s.slots) }
