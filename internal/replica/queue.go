package replica

import "sync"

// writeOp is one write-through waiting for the writer goroutine.
type writeOp struct {
	action string // user-facing verb for alerts: "save", "delete", "create", "seed"
	path   string
	value  any
	remove bool

	// key names the local entry the write belongs to: the record id for
	// collections, empty for documents.
	key string

	// silent ops are logged on failure but never alerted (seed writes)
	silent bool

	// onSuccess runs on the event loop after the store accepted the write.
	// Only set in Confirmed mode.
	onSuccess func()
}

type writeResult struct {
	op  writeOp
	err error
}

// writeQueue is an unbounded FIFO feeding the single writer goroutine.
// push never blocks, so the event loop stays responsive while writes are
// in flight, and one writer keeps a client's writes in issue order.
type writeQueue struct {
	mu     sync.Mutex
	items  []writeOp
	closed bool
	signal chan struct{}
}

func newWriteQueue() *writeQueue {
	return &writeQueue{signal: make(chan struct{}, 1)}
}

func (q *writeQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// push appends op. Returns false once the queue is closed.
func (q *writeQueue) push(op writeOp) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, op)
	q.mu.Unlock()
	q.wake()
	return true
}

// pop blocks until an op is available. Returns false when the queue is
// closed and empty.
func (q *writeQueue) pop() (writeOp, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			op := q.items[0]
			q.items[0] = writeOp{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return op, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return writeOp{}, false
		}
		<-q.signal
	}
}

// close stops accepting ops; queued ops are still handed out.
func (q *writeQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}

func (q *writeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
