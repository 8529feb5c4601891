package dynamics

import "github.com/sasha-s/go-deadlock"

// Mailbox is an unbounded queue of closures with any number of producers and
// a single consumer. Posting never blocks; closures run in post order.
type Mailbox struct {
	mu     deadlock.Mutex
	queue  []func()
	spare  []func()
	closed bool

	ready chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Post appends fn to the queue. It returns false once the mailbox is closed.
func (m *Mailbox) Post(fn func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready is signalled after a Post. A signal may cover several closures.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Drain runs every closure queued before the call on the calling goroutine
// and returns how many ran. Closures posted while draining wait for the next
// call. Only the consumer may call Drain.
func (m *Mailbox) Drain() int {
	m.mu.Lock()
	batch := m.queue
	m.queue = m.spare[:0]
	m.spare = nil
	m.mu.Unlock()

	for i, fn := range batch {
		fn()
		batch[i] = nil
	}

	m.mu.Lock()
	if m.spare == nil {
		m.spare = batch[:0]
	}
	m.mu.Unlock()
	return len(batch)
}

// Len returns the number of queued closures.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close rejects further posts. Queued closures are kept and still run on Drain.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
