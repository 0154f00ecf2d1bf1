package replica

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectTimeout marks a connectivity error raised because no
	// delivery arrived within the connect timeout.
	ErrConnectTimeout = errors.New("no response from store")

	// ErrMissingID is returned when saving a record without an id.
	ErrMissingID = errors.New("record has no id")

	// ErrNotFound is returned by lookups for ids absent from local state.
	ErrNotFound = errors.New("record not found")

	// ErrStopped is returned by operations issued after Run has returned.
	ErrStopped = errors.New("replica is not running")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("replica is already running")
)

// ConnectivityError is the persistent banner state: the subscription failed
// or never answered. Locally cached records stay visible.
type ConnectivityError struct {
	Path string
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot reach store at %s: %v", e.Path, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// IsConnectivityError reports whether err is a ConnectivityError.
func IsConnectivityError(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// Status is the connection state shown alongside the data.
type Status struct {
	Loading bool  // no delivery yet
	Err     error // *ConnectivityError, nil when live
}

// Alerter receives one-shot notifications about failed write-throughs.
// Implementations must be safe for concurrent use.
type Alerter interface {
	Alert(action string, err error)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(action string, err error)

func (f AlerterFunc) Alert(action string, err error) {
	f(action, err)
}

type nopAlerter struct{}

func (nopAlerter) Alert(string, error) {}
