package confirm

import (
	"log/slog"
	"sync"
)

// Subscription is returned by OnConfirmed and OnReset.
type Subscription interface {
	// Cancel removes the listener. Calling it more than once is harmless.
	Cancel()
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// notifier is an ordered listener list for one notification kind.
// Registration may happen at any time; emit iterates a snapshot.
type notifier[T any] struct {
	kind      string
	logger    *slog.Logger
	mu        sync.Mutex
	nextID    uint64
	listeners []listener[T]
}

func newNotifier[T any](kind string, logger *slog.Logger) *notifier[T] {
	return &notifier[T]{kind: kind, logger: logger}
}

func (n *notifier[T]) subscribe(fn func(T)) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.listeners = append(n.listeners, listener[T]{id: id, fn: fn})

	return &subscription{cancel: func() { n.unsubscribe(id) }}
}

func (n *notifier[T]) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, l := range n.listeners {
		if l.id == id {
			n.listeners = append(n.listeners[:i:i], n.listeners[i+1:]...)
			return
		}
	}
}

func (n *notifier[T]) len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// emit calls every listener in subscription order. A panicking listener is
// logged and skipped.
func (n *notifier[T]) emit(event T) {
	n.mu.Lock()
	snapshot := make([]listener[T], len(n.listeners))
	copy(snapshot, n.listeners)
	n.mu.Unlock()

	for _, l := range snapshot {
		n.call(l, event)
	}
}

func (n *notifier[T]) call(l listener[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("listener failed",
				"notification", n.kind,
				"listener", l.id,
				"panic", r,
			)
		}
	}()
	l.fn(event)
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}
