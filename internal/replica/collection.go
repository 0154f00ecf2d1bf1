package replica

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/dyluth/gauge/pkg/store"
)

// Shape tells a Collection how to address and order its records.
// Less must be a total order for the sorted view to be stable.
type Shape[T any] interface {
	ID(rec T) string
	WithID(rec T, id string) T
	Less(a, b T) bool
}

// View is what listeners render: sorted records plus connection state.
type View[T any] struct {
	Items   []T
	Loading bool
	Err     error
}

// Collection mirrors a root path whose children are records keyed by id.
type Collection[T any] struct {
	*loop

	shape   Shape[T]
	seed    map[string]T
	records map[string]T
	sorted  []T
	local   map[string]localEdit[T] // ids with writes still outstanding

	mu        sync.Mutex
	listeners []func(View[T])
}

// NewCollection creates a replica of path. A non-empty seed is written once
// if the path does not exist on the first delivery.
func NewCollection[T any](client Store, path string, shape Shape[T], seed map[string]T, opts Options) *Collection[T] {
	return &Collection[T]{
		loop:    newLoop(client, path, opts),
		shape:   shape,
		seed:    seed,
		records: make(map[string]T),
		local:   make(map[string]localEdit[T]),
	}
}

// localEdit is this client's latest value for a record whose write-through
// has not come back yet.
type localEdit[T any] struct {
	rec     T
	removed bool
}

// Run blocks until ctx is cancelled.
func (c *Collection[T]) Run(ctx context.Context) error {
	return c.run(ctx, c)
}

// OnChange registers fn to receive every new view. fn runs on the event
// loop and must not call back into the collection.
func (c *Collection[T]) OnChange(fn func(View[T])) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// GenerateKey mints an id for a record that has not been saved yet.
func (c *Collection[T]) GenerateKey() string {
	return c.client.GenerateKey()
}

// Create assigns a fresh id to draft, inserts it and writes it through.
func (c *Collection[T]) Create(ctx context.Context, draft T) (string, error) {
	id := c.client.GenerateKey()
	rec := c.shape.WithID(draft, id)
	if err := validate(rec); err != nil {
		return "", err
	}
	return id, c.write(ctx, "create", rec)
}

// Save writes rec under its id, replacing any existing record.
func (c *Collection[T]) Save(ctx context.Context, rec T) error {
	if c.shape.ID(rec) == "" {
		return ErrMissingID
	}
	if err := validate(rec); err != nil {
		return err
	}
	return c.write(ctx, "save", rec)
}

func (c *Collection[T]) write(ctx context.Context, action string, rec T) error {
	id := c.shape.ID(rec)
	op := writeOp{action: action, path: store.Join(c.path, id), value: rec, key: id}
	return c.do(ctx, func() {
		c.writeThrough(op, func() {
			c.records[id] = rec
			c.local[id] = localEdit[T]{rec: rec}
			c.resort()
		}, c)
	})
}

// Remove deletes the record with id. Removing an unknown id still issues
// the delete so a record this replica has not seen yet is removed too.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	op := writeOp{action: "delete", path: store.Join(c.path, id), remove: true, key: id}
	return c.do(ctx, func() {
		c.writeThrough(op, func() {
			c.local[id] = localEdit[T]{removed: true}
			if _, ok := c.records[id]; ok {
				delete(c.records, id)
				c.resort()
			}
		}, c)
	})
}

// Get returns the record with id from local state.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var (
		rec T
		ok  bool
	)
	if err := c.do(ctx, func() { rec, ok = c.records[id] }); err != nil {
		return rec, err
	}
	if !ok {
		return rec, fmt.Errorf("%s/%s: %w", c.path, id, ErrNotFound)
	}
	return rec, nil
}

// Items returns the records in sort order.
func (c *Collection[T]) Items(ctx context.Context) ([]T, error) {
	v, err := c.View(ctx)
	return v.Items, err
}

// View returns the current view.
func (c *Collection[T]) View(ctx context.Context) (View[T], error) {
	var v View[T]
	err := c.do(ctx, func() { v = c.view() })
	return v, err
}

func (c *Collection[T]) view() View[T] {
	return View[T]{
		Items:   append([]T(nil), c.sorted...),
		Loading: c.status.Loading,
		Err:     c.status.Err,
	}
}

func (c *Collection[T]) resort() {
	sorted := make([]T, 0, len(c.records))
	for _, rec := range c.records {
		sorted = append(sorted, rec)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return c.shape.Less(sorted[i], sorted[j])
	})
	c.sorted = sorted
}

func (c *Collection[T]) apply(snap store.Snapshot) error {
	children, err := snap.Children()
	if err != nil {
		return err
	}

	records := make(map[string]T, len(children))
	for id, raw := range children {
		var rec T
		if err := sonic.ConfigStd.Unmarshal(raw, &rec); err != nil {
			c.log.WithError(err).WithField("id", id).Warn("Skipping undecodable record")
			continue
		}
		records[id] = c.shape.WithID(rec, id)
	}
	for id, e := range c.local {
		if e.removed {
			delete(records, id)
		} else {
			records[id] = e.rec
		}
	}

	c.records = records
	c.resort()
	return nil
}

func (c *Collection[T]) seedValue() (any, bool) {
	if len(c.seed) == 0 {
		return nil, false
	}
	return c.seed, true
}

func (c *Collection[T]) settled(op writeOp) {
	delete(c.local, op.key)
}

func (c *Collection[T]) emit() {
	c.mu.Lock()
	listeners := append([]func(View[T]){}, c.listeners...)
	c.mu.Unlock()
	if len(listeners) == 0 {
		return
	}

	v := c.view()
	for _, fn := range listeners {
		fn(v)
	}
}

// validate runs rec's Validate method when it has one.
func validate(rec any) error {
	if v, ok := rec.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}
