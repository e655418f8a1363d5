package pace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Submit after the dispatcher has been closed.
var ErrClosed = errors.New("pace: dispatcher closed")

// UnknownChannelError is returned when Submit names a channel that was
// not configured at construction.
type UnknownChannelError struct {
	Channel string
}

// Error implements the error interface.
func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("pace: unknown channel %q", e.Channel)
}

// IsUnknownChannel returns true if the error is an UnknownChannelError.
// Uses errors.As to handle wrapped errors.
func IsUnknownChannel(err error) bool {
	var ue *UnknownChannelError
	return errors.As(err, &ue)
}

// Operation is a zero-argument asynchronous operation submitted for
// paced dispatch. The context passed in is the submitting caller's.
type Operation func(ctx context.Context) (any, error)

// ChannelConfig is the fixed pacing budget for one named channel.
type ChannelConfig struct {
	// Interval is the minimum time between two dispatches on one lane.
	Interval time.Duration

	// Lanes is the number of parallel lanes (>= 1). Zero means 1.
	Lanes int
}

func (c ChannelConfig) normalize() ChannelConfig {
	if c.Lanes < 1 {
		c.Lanes = 1
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
	return c
}

// submission is one queued operation plus its result slot.
type submission struct {
	ctx  context.Context
	op   Operation
	done chan outcome // buffered 1 so the lane never blocks on delivery
}

type outcome struct {
	value any
	err   error
}

// lane is a single FIFO dispatch line within a channel.
type lane struct {
	queue *laneQueue
	seq   atomic.Int64 // strictly increasing dispatch counter
}

// channel groups the lanes sharing one pacing budget.
type channel struct {
	name  string
	cfg   ChannelConfig
	lanes []*lane
	next  int // round-robin cursor, guarded by Dispatcher.mu
}

// Dispatcher serializes and paces outbound calls per named channel.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Close(): safe from any goroutine, idempotent
//
// Each lane is drained by exactly one goroutine, so per-lane dispatch
// order is submission order with no locking around the operation call.
type Dispatcher struct {
	mu       sync.Mutex
	clock    Clock
	channels map[string]*channel
	closed   bool

	// base is cancelled by Close to interrupt in-flight pacing sleeps.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Dispatcher with the given channel configurations and
// starts one goroutine per lane. Call Close to release them.
func New(clock Clock, configs map[string]ChannelConfig) *Dispatcher {
	base, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		clock:    clock,
		channels: make(map[string]*channel, len(configs)),
		base:     base,
		cancel:   cancel,
	}

	for name, cfg := range configs {
		cfg = cfg.normalize()
		ch := &channel{name: name, cfg: cfg}
		for i := 0; i < cfg.Lanes; i++ {
			l := &lane{queue: newLaneQueue()}
			ch.lanes = append(ch.lanes, l)
			d.wg.Add(1)
			go d.runLane(ch, l, i)
		}
		d.channels[name] = ch
	}

	return d
}

// Submit enqueues op on the named channel and blocks until the
// operation has run, returning its result or failure.
//
// A submission whose context is cancelled before dispatch fails with
// the context's error; the lane skips it without consuming a pacing
// slot. Submit never returns silence: every accepted submission
// eventually yields a value or an error.
func (d *Dispatcher) Submit(ctx context.Context, name string, op Operation) (any, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	ch, ok := d.channels[name]
	if !ok {
		d.mu.Unlock()
		return nil, &UnknownChannelError{Channel: name}
	}
	l := ch.lanes[ch.next]
	ch.next = (ch.next + 1) % len(ch.lanes)
	d.mu.Unlock()

	sub := &submission{
		ctx:  ctx,
		op:   op,
		done: make(chan outcome, 1),
	}
	if !l.queue.Enqueue(sub) {
		return nil, ErrClosed
	}

	select {
	case out := <-sub.done:
		return out.value, out.err
	case <-ctx.Done():
		// The lane will still observe the cancelled context and deliver
		// into the buffered done channel; nothing leaks.
		return nil, ctx.Err()
	}
}

// Close stops all lanes. Queued submissions are drained and completed;
// new submissions fail with ErrClosed. Blocks until every lane has
// exited. Idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.channels {
		for _, l := range ch.lanes {
			l.queue.Close()
		}
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

// LaneSeq returns the dispatch count of one lane.
// Used for diagnostics and testing.
func (d *Dispatcher) LaneSeq(name string, idx int) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.channels[name]
	if !ok || idx < 0 || idx >= len(ch.lanes) {
		return 0
	}
	return ch.lanes[idx].seq.Load()
}

// runLane is the dispatch loop for one lane.
// Pacing applies between consecutive dispatches regardless of the
// prior operation's outcome.
func (d *Dispatcher) runLane(ch *channel, l *lane, idx int) {
	defer d.wg.Done()

	var last time.Time
	for {
		sub, ok := l.queue.Dequeue()
		if !ok {
			return
		}

		// A caller that gave up before dispatch gets its context error
		// and does not consume a pacing slot.
		if err := sub.ctx.Err(); err != nil {
			sub.done <- outcome{err: err}
			continue
		}

		if !last.IsZero() && ch.cfg.Interval > 0 {
			if wait := ch.cfg.Interval - d.clock.Now().Sub(last); wait > 0 {
				if err := d.clock.Sleep(d.base, wait); err != nil {
					// Dispatcher closing - fail the submission rather
					// than dispatch unpaced.
					sub.done <- outcome{err: ErrClosed}
					continue
				}
			}
		}

		seq := l.seq.Add(1)
		last = d.clock.Now()
		value, err := sub.op(sub.ctx)
		if err != nil {
			slog.Debug("paced operation failed",
				"channel", ch.name,
				"lane", idx,
				"seq", seq,
				"error", err,
			)
		}
		sub.done <- outcome{value: value, err: err}
	}
}
