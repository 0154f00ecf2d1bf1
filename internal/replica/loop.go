// Package replica keeps an in-process copy of one store path consistent with
// the remote store and writes local edits through to it.
//
// Each replica runs a single event loop (Run). Subscription deliveries,
// connectivity errors, the connect watchdog, write results and every public
// operation are serialised onto that loop, so local state is never mutated
// concurrently. Write-throughs go to one writer goroutine in issue order and
// never block the loop. Conflicts between clients are left to the store:
// the latest snapshot replaces local state, except where this client still
// has writes queued or in flight. Those entries keep their local value until
// the writer reports back, so a snapshot echoing an older write of ours
// cannot undo a newer one.
package replica

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dyluth/gauge/pkg/store"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
	DefaultDrainTimeout   = 5 * time.Second
)

// Store is the subset of the store client a replica needs.
type Store interface {
	Subscribe(ctx context.Context, path string) (*store.Subscription, error)
	Set(ctx context.Context, path string, value any) error
	Delete(ctx context.Context, path string) error
	GenerateKey() string
}

// WriteMode selects when local state reflects a write.
type WriteMode int

const (
	// Optimistic applies a change locally before the write-through and never
	// rolls it back; the next snapshot corrects any drift.
	Optimistic WriteMode = iota

	// Confirmed applies a change locally only once the store accepted it.
	Confirmed
)

func (m WriteMode) String() string {
	switch m {
	case Optimistic:
		return "optimistic"
	case Confirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// Options tunes a replica. Zero values select the defaults.
type Options struct {
	ConnectTimeout time.Duration // negative disables the watchdog
	WriteTimeout   time.Duration
	DrainTimeout   time.Duration // how long Run waits for queued writes on exit
	Mode           WriteMode
	Alerter        Alerter
	Logger         *log.Entry
}

func (o Options) withDefaults(path string) Options {
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.Alerter == nil {
		o.Alerter = nopAlerter{}
	}
	if o.Logger == nil {
		o.Logger = log.WithField("component", "replica")
	}
	o.Logger = o.Logger.WithField("path", path)
	return o
}

// handler is the model-specific half of a replica.
type handler interface {
	// apply replaces local state with the snapshot. Must be idempotent.
	apply(snap store.Snapshot) error
	// seedValue returns the default dataset for an empty path.
	seedValue() (any, bool)
	// emit notifies listeners of the current state.
	emit()
	// settled is called once no write to op.path is outstanding.
	settled(op writeOp)
}

// loop is the event loop shared by Collection and Document.
type loop struct {
	client Store
	path   string
	opts   Options
	log    *log.Entry

	ops     chan func()
	results chan writeResult
	writes  *writeQueue

	started   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once
	stopped   chan struct{}

	// owned by the event loop
	status  Status
	seeded  bool
	pending map[string]int // outstanding writes by store path
}

func newLoop(client Store, path string, opts Options) *loop {
	opts = opts.withDefaults(path)
	return &loop{
		client:  client,
		path:    path,
		opts:    opts,
		log:     opts.Logger,
		ops:     make(chan func()),
		results: make(chan writeResult),
		writes:  newWriteQueue(),
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
		status:  Status{Loading: true},
		pending: make(map[string]int),
	}
}

// Path returns the store path this replica mirrors.
func (l *loop) Path() string {
	return l.path
}

// Ready is closed after the first delivery, error or connect timeout.
func (l *loop) Ready() <-chan struct{} {
	return l.ready
}

// Done is closed once the event loop has stopped serving.
func (l *loop) Done() <-chan struct{} {
	return l.stopped
}

func (l *loop) markReady() {
	l.readyOnce.Do(func() { close(l.ready) })
}

// do runs fn on the event loop and waits for it to finish.
func (l *loop) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case l.ops <- wrapped:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// run subscribes and serves events until ctx is cancelled, then flushes
// queued writes. In-flight writes are never cancelled.
func (l *loop) run(ctx context.Context, h handler) error {
	if _, err := store.ParsePath(l.path); err != nil {
		return err
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	writerDone := make(chan struct{})
	go l.writer(writerDone)

	l.log.WithField("mode", l.opts.Mode).Info("Replica started")
	l.serve(ctx, l.subscribe(ctx), h)

	close(l.stopped)
	l.drain(writerDone)
	l.log.Info("Replica stopped")
	return nil
}

type subscribeResult struct {
	sub *store.Subscription
	err error
}

// subscribe connects in the background so the loop keeps serving local
// operations, and the watchdog keeps running, while the store is slow to
// answer. The subscription ends with ctx.
func (l *loop) subscribe(ctx context.Context) <-chan subscribeResult {
	out := make(chan subscribeResult, 1)
	go func() {
		sub, err := l.client.Subscribe(ctx, l.path)
		if err != nil {
			err = fmt.Errorf("failed to subscribe to %s: %w", l.path, err)
		}
		out <- subscribeResult{sub: sub, err: err}
	}()
	return out
}

func (l *loop) serve(ctx context.Context, subscribed <-chan subscribeResult, h handler) {
	wd := newWatchdog(l.opts.ConnectTimeout)
	defer wd.stop()

	var sub *store.Subscription
	defer func() {
		if sub != nil {
			sub.Close()
		}
	}()

	var (
		events <-chan store.Snapshot
		errs   <-chan error
	)
	for {
		select {
		case <-ctx.Done():
			return

		case r := <-subscribed:
			subscribed = nil
			if r.err != nil {
				wd.stop()
				l.onRemoteError(r.err, h)
				continue
			}
			sub = r.sub
			events, errs = sub.Events(), sub.Errors()

		case snap, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			wd.stop()
			l.onRemoteUpdate(snap, h)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			wd.stop()
			l.onRemoteError(err, h)

		case <-wd.C():
			wd.stop()
			l.onTimeout(h)

		case fn := <-l.ops:
			fn()

		case r := <-l.results:
			l.onWriteResult(r, h)
		}
	}
}

func (l *loop) onRemoteUpdate(snap store.Snapshot, h handler) {
	l.markReady()

	if !l.seeded {
		l.seeded = true
		if !snap.Exists {
			l.seed(h)
		}
	}

	if err := h.apply(snap); err != nil {
		l.log.WithError(err).Warn("Ignoring undecodable snapshot")
		return
	}
	l.status = Status{}
	h.emit()
}

func (l *loop) onRemoteError(err error, h handler) {
	l.markReady()
	l.status = Status{Err: &ConnectivityError{Path: l.path, Err: err}}
	l.log.WithError(err).Error("Subscription failed")
	h.emit()
}

func (l *loop) onTimeout(h handler) {
	l.markReady()
	l.status = Status{Err: &ConnectivityError{Path: l.path, Err: ErrConnectTimeout}}
	l.log.WithField("timeout", l.opts.ConnectTimeout).Warn("No delivery from store")
	h.emit()
}

// seed queues the default dataset as one whole-path write. Clients racing
// on an empty path all write the same payload, so the store converges on a
// single copy whichever write lands last.
func (l *loop) seed(h handler) {
	value, ok := h.seedValue()
	if !ok {
		return
	}
	l.log.Info("Path is empty, writing default dataset")
	l.enqueue(writeOp{action: "seed", path: l.path, value: value, silent: true})
}

// writeThrough applies local according to the write mode and queues op.
func (l *loop) writeThrough(op writeOp, local func(), h handler) {
	l.pending[op.path]++
	if l.opts.Mode == Confirmed {
		op.onSuccess = local
		l.enqueue(op)
		return
	}
	local()
	h.emit()
	l.enqueue(op)
}

func (l *loop) enqueue(op writeOp) {
	if !l.writes.push(op) {
		l.log.WithField("target", op.path).Warn("Write dropped after shutdown")
	}
}

func (l *loop) onWriteResult(r writeResult, h handler) {
	defer l.release(r.op, h)
	if r.err != nil {
		l.settle(r)
		return
	}
	if r.op.onSuccess != nil {
		r.op.onSuccess()
		h.emit()
	}
}

// release drops op from the outstanding writes. Seed writes are never
// counted.
func (l *loop) release(op writeOp, h handler) {
	n, ok := l.pending[op.path]
	if !ok || op.silent {
		return
	}
	if n > 1 {
		l.pending[op.path] = n - 1
		return
	}
	delete(l.pending, op.path)
	h.settled(op)
}

// settle reports a failed write. Local state is left as is.
func (l *loop) settle(r writeResult) {
	entry := l.log.WithFields(log.Fields{
		"action": r.op.action,
		"target": r.op.path,
	}).WithError(r.err)

	if r.op.silent {
		entry.Error("Write failed, leaving it to the next client")
		return
	}
	entry.Error("Write-through failed")
	l.opts.Alerter.Alert(r.op.action, r.err)
}

func (l *loop) writer(done chan<- struct{}) {
	defer close(done)
	for {
		op, ok := l.writes.pop()
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.opts.WriteTimeout)
		var err error
		if op.remove {
			err = l.client.Delete(ctx, op.path)
		} else {
			err = l.client.Set(ctx, op.path, op.value)
		}
		cancel()

		r := writeResult{op: op, err: err}
		select {
		case l.results <- r:
		case <-l.stopped:
			if err != nil {
				l.settle(r)
			}
		}
	}
}

func (l *loop) drain(writerDone <-chan struct{}) {
	if pending := l.writes.len(); pending > 0 {
		l.log.WithField("pending", pending).Info("Flushing queued writes")
	}
	l.writes.close()

	select {
	case <-writerDone:
	case <-time.After(l.opts.DrainTimeout):
		l.log.WithField("pending", l.writes.len()).Warn("Gave up waiting for queued writes")
	}
}
