package pace

import "sync"

// laneQueue is a thread-safe FIFO queue of pending submissions for one
// lane.
//
// The queue is unbounded so a burst of submissions never blocks the
// submitting goroutine - pacing happens at dispatch time, not enqueue
// time.
//
// The queue uses a buffered signal channel for availability wakeups so
// the lane loop can wait without polling. Multiple signals coalesce
// into one (buffer of 1).
type laneQueue struct {
	mu     sync.Mutex
	subs   []*submission
	closed bool
	signal chan struct{}
}

func newLaneQueue() *laneQueue {
	return &laneQueue{
		subs:   make([]*submission, 0, 8),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a submission.
// Returns false if the queue has been closed.
func (q *laneQueue) Enqueue(s *submission) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.subs = append(q.subs, s)

	// Non-blocking signal; a full buffer means a wakeup is already pending.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// Dequeue removes and returns the front submission, blocking until one
// is available. Returns (nil, false) once the queue is closed and
// drained.
func (q *laneQueue) Dequeue() (*submission, bool) {
	for {
		q.mu.Lock()
		if len(q.subs) > 0 {
			s := q.subs[0]
			// Nil out the slot so the backing array does not retain the
			// submission's pointers after dequeue.
			q.subs[0] = nil
			if len(q.subs) == 1 {
				q.subs = q.subs[:0]
			} else {
				q.subs = q.subs[1:]
			}
			q.mu.Unlock()
			return s, true
		}
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		<-q.signal
	}
}

// Close marks the queue closed and wakes any blocked Dequeue.
// Submissions already queued are still drained by the lane.
func (q *laneQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Len returns the number of queued submissions.
func (q *laneQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.subs)
}
