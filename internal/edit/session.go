// Package edit tracks the single record a user is editing.
//
// A Session is either Idle or Editing one record through a private draft.
// The live collection is not touched until Commit, which hands the draft to
// a Saver and returns to Idle without waiting for the store. Beginning a new
// edit while one is open discards the open draft.
package edit

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotEditing is returned by operations that need an open edit.
var ErrNotEditing = errors.New("no edit in progress")

// State of a Session.
type State int

const (
	Idle State = iota
	Editing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Saver receives committed drafts. replica.Collection and board.ItemSaver
// both satisfy it.
type Saver[T any] interface {
	Save(ctx context.Context, rec T) error
}

// Keys mints ids for records that do not exist yet.
type Keys interface {
	GenerateKey() string
}

// Identity reads and assigns record ids.
type Identity[T any] interface {
	ID(rec T) string
	WithID(rec T, id string) T
}

// Snapshot is a copy of the session state.
type Snapshot[T any] struct {
	State State
	ID    string
	Draft T
	New   bool // record has never been saved
}

// Session is safe for concurrent use.
type Session[T any] struct {
	saver Saver[T]
	keys  Keys
	ident Identity[T]

	mu    sync.Mutex
	state State
	id    string
	draft T
	isNew bool
}

// NewSession returns an idle session that commits to saver.
func NewSession[T any](saver Saver[T], keys Keys, ident Identity[T]) *Session[T] {
	return &Session[T]{saver: saver, keys: keys, ident: ident}
}

// Begin opens an edit of rec. Any open draft is discarded.
func (s *Session[T]) Begin(rec T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open(s.ident.ID(rec), rec, false)
}

// BeginNew opens an edit of a record that does not exist yet, under a
// freshly minted id. Any open draft is discarded.
func (s *Session[T]) BeginNew(draft T) string {
	id := s.keys.GenerateKey()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.open(id, s.ident.WithID(draft, id), true)
	return id
}

func (s *Session[T]) open(id string, draft T, isNew bool) {
	s.state = Editing
	s.id = id
	s.draft = draft
	s.isNew = isNew
}

func (s *Session[T]) close() {
	var zero T
	s.state = Idle
	s.id = ""
	s.draft = zero
	s.isNew = false
}

// Update applies fn to the draft. The record id cannot be changed.
func (s *Session[T]) Update(fn func(T) T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Editing {
		return ErrNotEditing
	}
	s.draft = s.ident.WithID(fn(s.draft), s.id)
	return nil
}

// Draft returns the draft, or false when idle.
func (s *Session[T]) Draft() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, s.state == Editing
}

// State returns the current state.
func (s *Session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a copy of the whole session state.
func (s *Session[T]) Snapshot() Snapshot[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot[T]{State: s.state, ID: s.id, Draft: s.draft, New: s.isNew}
}

// Cancel discards the draft without writing. Cancelling an idle session
// is a no-op.
func (s *Session[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close()
}

// Forget ends the session if it is editing id, e.g. because the record
// was deleted. Reports whether a draft was discarded.
func (s *Session[T]) Forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Editing || s.id != id {
		return false
	}
	s.close()
	return true
}

// Commit hands the draft to the saver and returns to Idle. The session is
// closed even when Save fails; Save itself never waits for the store.
func (s *Session[T]) Commit(ctx context.Context) (T, error) {
	s.mu.Lock()
	if s.state != Editing {
		s.mu.Unlock()
		var zero T
		return zero, ErrNotEditing
	}
	draft := s.draft
	s.close()
	s.mu.Unlock()

	if err := s.saver.Save(ctx, draft); err != nil {
		return draft, fmt.Errorf("failed to save %s: %w", s.ident.ID(draft), err)
	}
	return draft, nil
}
