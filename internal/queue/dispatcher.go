// Package queue delivers envelopes to the daemon in per-device order.
package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"goxlr-controller/internal/command"
)

var (
	// ErrQueueFull is returned when a device's lane already holds Depth envelopes.
	ErrQueueFull = errors.New("command queue full")
	// ErrDispatcherClosed is returned by Enqueue after Close, and passed to the
	// completion of every envelope still queued when Close ran.
	ErrDispatcherClosed = errors.New("dispatcher closed")
)

// Sender delivers one envelope. daemon.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, env command.Envelope) error
}

// Options size the lanes. Zero values fall back to 20 commands/s, burst 10, depth 64.
type Options struct {
	RateLimit float64
	RateBurst int
	Depth     int
}

type item struct {
	env  command.Envelope
	done func(error)
}

type lane struct {
	serial  string
	items   chan item
	limiter *rate.Limiter
	pending atomic.Int64
}

// Dispatcher keeps one lane per device serial. Envelopes for one serial are sent
// one at a time in the order they were enqueued; different serials do not wait on
// each other.
type Dispatcher struct {
	sender Sender
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
}

// NewDispatcher creates a dispatcher that sends through s.
func NewDispatcher(s Sender, opts Options) *Dispatcher {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}
	if opts.Depth <= 0 {
		opts.Depth = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sender: s,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		lanes:  make(map[string]*lane),
	}
}

// Enqueue appends env to its serial's lane without blocking. done, if not nil, is
// called from the lane goroutine with the send result.
func (d *Dispatcher) Enqueue(env command.Envelope, done func(error)) error {
	if env.IsZero() {
		return command.ErrUnknownCommandKind
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	l, ok := d.lanes[env.Serial()]
	if !ok {
		l = &lane{
			serial:  env.Serial(),
			items:   make(chan item, d.opts.Depth),
			limiter: rate.NewLimiter(rate.Limit(d.opts.RateLimit), d.opts.RateBurst),
		}
		d.lanes[l.serial] = l
		d.wg.Add(1)
		go d.runLane(l)
	}

	l.pending.Add(1)
	select {
	case l.items <- item{env: env, done: done}:
		return nil
	default:
		l.pending.Add(-1)
		log.Printf("[Queue] Lane %s full, rejecting %s", l.serial, env.Name())
		return ErrQueueFull
	}
}

// Pending reports how many envelopes each serial has queued or in flight.
func (d *Dispatcher) Pending() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int, len(d.lanes))
	for serial, l := range d.lanes {
		if n := l.pending.Load(); n > 0 {
			out[serial] = int(n)
		}
	}
	return out
}

// Close stops every lane and waits for them to exit. Envelopes not yet sent
// complete with ErrDispatcherClosed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) runLane(l *lane) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			d.drain(l)
			return
		case it := <-l.items:
			if err := l.limiter.Wait(d.ctx); err != nil {
				finish(l, it, ErrDispatcherClosed)
				d.drain(l)
				return
			}
			err := d.sender.Send(d.ctx, it.env)
			if err != nil {
				log.Printf("[Queue] %s failed on %s: %v", it.env.Name(), l.serial, err)
			}
			finish(l, it, err)
		}
	}
}

func (d *Dispatcher) drain(l *lane) {
	for {
		select {
		case it := <-l.items:
			finish(l, it, ErrDispatcherClosed)
		default:
			return
		}
	}
}

func finish(l *lane, it item, err error) {
	l.pending.Add(-1)
	if it.done != nil {
		it.done(err)
	}
}
