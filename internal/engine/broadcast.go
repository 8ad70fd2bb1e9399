package engine

import (
	"context"
	"sync"
)

// snapshots fans out the latest state. Each subscriber channel holds at most
// one value and a slow reader only ever sees the newest snapshot.
type snapshots[S any] struct {
	mu     sync.Mutex
	subs   map[chan S]struct{}
	closed bool
}

func newSnapshots[S any]() *snapshots[S] {
	return &snapshots[S]{subs: make(map[chan S]struct{})}
}

// subscribe reads current under the lock so no publish can slip between the
// initial value and registration.
func (b *snapshots[S]) subscribe(ctx context.Context, current func() S, done <-chan struct{}) <-chan S {
	ch := make(chan S, 1)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	ch <- current()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.remove(ch)
		case <-done:
		}
	}()
	return ch
}

func (b *snapshots[S]) remove(ch chan S) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

func (b *snapshots[S]) publish(s S) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

func (b *snapshots[S]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

type noteSub struct {
	ch   chan Notification
	gone chan struct{}

	mu     sync.Mutex
	closed bool
}

// deliver blocks until the subscriber takes note, unsubscribes or the engine stops.
func (sub *noteSub) deliver(note Notification, done <-chan struct{}) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return true
	}
	select {
	case sub.ch <- note:
	case <-sub.gone:
	case <-done:
		return false
	}
	return true
}

func (sub *noteSub) shut() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// notifier delivers every notification to every subscriber in order. Producers
// never block; delivery blocks on slow subscribers.
type notifier struct {
	mu      sync.Mutex
	pending []Notification
	subs    []*noteSub
	wake    chan struct{}
	closed  bool
}

func newNotifier() *notifier {
	return &notifier{wake: make(chan struct{}, 1)}
}

func (n *notifier) push(notes []Notification) {
	if len(notes) == 0 {
		return
	}
	n.mu.Lock()
	n.pending = append(n.pending, notes...)
	n.mu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) subscribe(ctx context.Context, done <-chan struct{}) <-chan Notification {
	sub := &noteSub{ch: make(chan Notification, 16), gone: make(chan struct{})}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			n.unsubscribe(sub)
		case <-done:
		}
	}()
	return sub.ch
}

func (n *notifier) unsubscribe(sub *noteSub) {
	n.mu.Lock()
	found := false
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			found = true
			break
		}
	}
	n.mu.Unlock()
	if found {
		close(sub.gone)
		sub.shut()
	}
}

func (n *notifier) run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-n.wake:
		}
		for {
			n.mu.Lock()
			if len(n.pending) == 0 {
				n.mu.Unlock()
				break
			}
			note := n.pending[0]
			n.pending = n.pending[1:]
			subs := append([]*noteSub(nil), n.subs...)
			n.mu.Unlock()

			for _, sub := range subs {
				if !sub.deliver(note, done) {
					return
				}
			}
		}
	}
}

// close must run after run has returned.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()
	for _, sub := range subs {
		sub.shut()
	}
}
