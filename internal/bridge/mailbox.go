package bridge

import (
	"sync"
	"sync/atomic"
)

// DefaultMailboxSize bounds the number of inbound messages held between ticks.
const DefaultMailboxSize = 256

type messageKind uint8

const (
	msgFix messageKind = iota
	msgStatus
	msgProviderEnabled
	msgProviderDisabled
)

type message struct {
	kind    messageKind
	payload string
}

// Mailbox is a LocationSink that queues inbound traffic from provider
// goroutines until Drain delivers it to the destination sink on the tick
// goroutine. When full, new messages are dropped and counted.
type Mailbox struct {
	mu      sync.Mutex
	queue   []message
	size    int
	dropped atomic.Uint64
}

// NewMailbox creates a mailbox holding at most size undelivered messages.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{size: size}
}

func (m *Mailbox) OnFix(payload string)       { m.push(message{msgFix, payload}) }
func (m *Mailbox) OnStatus(payload string)    { m.push(message{msgStatus, payload}) }
func (m *Mailbox) OnProviderEnabled(p string) { m.push(message{msgProviderEnabled, p}) }
func (m *Mailbox) OnProviderDisabled(p string) {
	m.push(message{msgProviderDisabled, p})
}

func (m *Mailbox) push(msg message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) >= m.size {
		m.dropped.Add(1)
		return
	}
	m.queue = append(m.queue, msg)
}

// Drain delivers every queued message to dst in arrival order and returns
// how many were delivered. Messages pushed while draining wait for the next
// call.
func (m *Mailbox) Drain(dst LocationSink) int {
	m.mu.Lock()
	batch := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, msg := range batch {
		switch msg.kind {
		case msgFix:
			dst.OnFix(msg.payload)
		case msgStatus:
			dst.OnStatus(msg.payload)
		case msgProviderEnabled:
			dst.OnProviderEnabled(msg.payload)
		case msgProviderDisabled:
			dst.OnProviderDisabled(msg.payload)
		}
	}
	return len(batch)
}

// Pending returns the number of undelivered messages.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Dropped returns how many messages were discarded because the mailbox was
// full.
func (m *Mailbox) Dropped() uint64 { return m.dropped.Load() }
