package bridge

import "sync"

// mailbox is an unbounded-until-limit FIFO queue. pop blocks until an item
// is available and ready reports true, or the mailbox closes.
type mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	limit  int
	closed bool
}

func newMailbox[T any](limit int) *mailbox[T] {
	m := &mailbox[T]{limit: limit}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// push appends v; false when closed or full
func (m *mailbox[T]) push(v T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || (m.limit > 0 && len(m.items) >= m.limit) {
		return false
	}
	m.items = append(m.items, v)
	m.cond.Signal()
	return true
}

func (m *mailbox[T]) pop(ready func() bool) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.closed && (len(m.items) == 0 || !ready()) {
		m.cond.Wait()
	}
	if m.closed {
		var zero T
		return zero, false
	}

	v := m.items[0]
	var zero T
	m.items[0] = zero
	m.items = m.items[1:]
	return v, true
}

// wake re-evaluates ready for a blocked pop
func (m *mailbox[T]) wake() {
	m.mu.Lock()
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *mailbox[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// close wakes every waiter and discards queued items
func (m *mailbox[T]) close() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := len(m.items)
	m.closed = true
	m.items = nil
	m.cond.Broadcast()
	return dropped
}

func always() bool { return true }
