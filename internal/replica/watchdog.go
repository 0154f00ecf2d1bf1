package replica

import "time"

// watchdog fires once if no delivery arrives within the connect timeout.
// It is owned by the event loop and not safe for concurrent use.
type watchdog struct {
	timer *time.Timer
}

// newWatchdog arms a timer. A non-positive timeout disables it.
func newWatchdog(timeout time.Duration) *watchdog {
	if timeout <= 0 {
		return &watchdog{}
	}
	return &watchdog{timer: time.NewTimer(timeout)}
}

// C returns the expiry channel, or nil once stopped so a select never
// observes a stale expiry.
func (w *watchdog) C() <-chan time.Time {
	if w.timer == nil {
		return nil
	}
	return w.timer.C
}

// stop disarms the watchdog. Safe to call repeatedly.
func (w *watchdog) stop() {
	if w.timer == nil {
		return
	}
	w.timer.Stop()
	w.timer = nil
}
