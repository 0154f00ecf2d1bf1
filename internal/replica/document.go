package replica

import (
	"context"
	"sync"

	"github.com/dyluth/gauge/pkg/store"
)

// DocumentView is what listeners render for a single-document replica.
type DocumentView[T any] struct {
	Value   T
	Exists  bool
	Loading bool
	Err     error
}

// Document mirrors a root path holding one value that is always read and
// written whole. Values handed out share backing arrays with local state,
// so callers must treat them as read-only and mutate through Mutate.
type Document[T any] struct {
	*loop

	seed   *T
	value  T
	exists bool
	local  *T // last value this client wrote, until the writer is idle

	mu        sync.Mutex
	listeners []func(DocumentView[T])
}

// NewDocument creates a replica of path. A non-nil seed is written once if
// the path does not exist on the first delivery.
func NewDocument[T any](client Store, path string, seed *T, opts Options) *Document[T] {
	return &Document[T]{
		loop: newLoop(client, path, opts),
		seed: seed,
	}
}

// Run blocks until ctx is cancelled.
func (d *Document[T]) Run(ctx context.Context) error {
	return d.run(ctx, d)
}

// OnChange registers fn to receive every new view. fn runs on the event
// loop and must not call back into the document.
func (d *Document[T]) OnChange(fn func(DocumentView[T])) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Save replaces the whole document.
func (d *Document[T]) Save(ctx context.Context, v T) error {
	if err := validate(v); err != nil {
		return err
	}
	return d.do(ctx, func() { d.replace("save", v) })
}

// Mutate applies fn to the current value and writes the result through.
// While earlier writes from this client are outstanding fn sees the last
// value written rather than the last one confirmed, so consecutive
// mutations compose in either write mode. If fn fails nothing is written
// and its error is returned.
func (d *Document[T]) Mutate(ctx context.Context, fn func(T) (T, error)) error {
	var fnErr error
	err := d.do(ctx, func() {
		base := d.value
		if d.local != nil {
			base = *d.local
		}
		next, err := fn(base)
		if err == nil {
			err = validate(next)
		}
		if err != nil {
			fnErr = err
			return
		}
		d.replace("save", next)
	})
	if err != nil {
		return err
	}
	return fnErr
}

func (d *Document[T]) replace(action string, v T) {
	op := writeOp{action: action, path: d.path, value: v}
	d.local = &v
	d.writeThrough(op, func() {
		d.value = v
		d.exists = true
	}, d)
}

// Value returns the current value and whether the document exists.
func (d *Document[T]) Value(ctx context.Context) (T, bool, error) {
	v, err := d.View(ctx)
	return v.Value, v.Exists, err
}

// View returns the current view.
func (d *Document[T]) View(ctx context.Context) (DocumentView[T], error) {
	var v DocumentView[T]
	err := d.do(ctx, func() { v = d.view() })
	return v, err
}

func (d *Document[T]) view() DocumentView[T] {
	return DocumentView[T]{
		Value:   d.value,
		Exists:  d.exists,
		Loading: d.status.Loading,
		Err:     d.status.Err,
	}
}

func (d *Document[T]) apply(snap store.Snapshot) error {
	if d.local != nil && d.opts.Mode == Optimistic {
		return nil
	}
	var v T
	if err := snap.Decode(&v); err != nil {
		return err
	}
	d.value = v
	d.exists = snap.Exists
	return nil
}

func (d *Document[T]) seedValue() (any, bool) {
	if d.seed == nil {
		return nil, false
	}
	return *d.seed, true
}

func (d *Document[T]) settled(writeOp) {
	d.local = nil
}

func (d *Document[T]) emit() {
	d.mu.Lock()
	listeners := append([]func(DocumentView[T]){}, d.listeners...)
	d.mu.Unlock()
	if len(listeners) == 0 {
		return
	}

	v := d.view()
	for _, fn := range listeners {
		fn(v)
	}
}
