package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrSubscriptionClosed is delivered when Redis drops the notification
// stream while the subscription is still wanted.
var ErrSubscriptionClosed = errors.New("change stream closed by server")

// Subscription represents a continuous watch on one path.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan Snapshot
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of snapshots. The first snapshot is the state
// at subscription time; each later one follows a committed change.
// The channel is closed when the subscription ends.
func (s *Subscription) Events() <-chan Snapshot {
	return s.events
}

// Errors returns the channel carrying at most one terminal error.
// After an error is delivered no further snapshots follow.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe watches a path. The current state is delivered first, then a
// fresh snapshot after every change that touches the path. Consecutive
// identical states are delivered once.
//
// Connection and read failures are reported once on Errors() and end the
// subscription; there is no resubscribe. Context cancellation also stops it.
func (c *Client) Subscribe(ctx context.Context, path string) (*Subscription, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	channel := ChangesChannel(c.project, p.Root)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan Snapshot, 10)
	errorsChan := make(chan error, 1)

	subCtx, cancelFunc := context.WithCancel(ctx)

	// Closing the pubsub unblocks a Receive stuck on an unresponsive server.
	go func() {
		<-subCtx.Done()
		pubsub.Close()
	}()

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer cancelFunc()

		fail := func(err error) {
			if subCtx.Err() != nil {
				return
			}
			errorsChan <- err
		}
		send := func(snap Snapshot) bool {
			select {
			case eventsChan <- snap:
				return true
			case <-subCtx.Done():
				return false
			}
		}

		// Wait for the server to confirm the subscription before the first
		// read, so no change between read and subscribe is missed.
		if _, err := pubsub.Receive(subCtx); err != nil {
			fail(fmt.Errorf("failed to subscribe to %s: %w", p, err))
			return
		}

		last, err := c.get(subCtx, p)
		if err != nil {
			fail(err)
			return
		}
		if !send(last) {
			return
		}

		ch := pubsub.ChannelWithSubscriptions()
		for {
			select {
			case <-subCtx.Done():
				return

			case msg, ok := <-ch:
				if !ok {
					fail(fmt.Errorf("%s: %w", p, ErrSubscriptionClosed))
					return
				}

				switch m := msg.(type) {
				case *redis.Message:
					var change Change
					if err := codec.UnmarshalFromString(m.Payload, &change); err == nil {
						if changed, err := ParsePath(change.Path); err == nil && !p.Covers(changed) {
							continue
						}
					}
				case *redis.Subscription:
					// Resubscribed after a reconnect: notifications may have
					// been lost, so fall through and re-read.
				default:
					continue
				}

				snap, err := c.get(subCtx, p)
				if err != nil {
					fail(err)
					return
				}
				if snap.Equal(last) {
					continue
				}
				last = snap
				if !send(snap) {
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
