// Package notify broadcasts payload-less change signals keyed by category.
//
// Writers call Publish after a successful write; readers subscribe to the
// categories whose cached data they hold and refetch when signalled.
// Delivery is synchronous, in-process and in subscription order.
package notify

import (
	"fmt"
	"sync"

	"gofolio/internal/logger"
)

// Category names a family of records, e.g. "project" or "blog".
type Category string

// Forwarder receives every category published locally, after local delivery.
type Forwarder func(Category)

type subscriber struct {
	id uint64
	fn func()
}

// Notifier is a category-keyed publish/subscribe registry.
// The zero value is not usable; use New.
type Notifier struct {
	mu         sync.RWMutex
	nextID     uint64
	subs       map[Category][]subscriber
	forwarders []Forwarder
	logger     logger.Logger
}

// New creates an empty Notifier.
func New(log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Notifier{
		subs:   make(map[Category][]subscriber),
		logger: log,
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	n        *Notifier
	category Category
	id       uint64
	once     sync.Once
}

// Category returns the category the subscription listens to.
func (s *Subscription) Category() Category {
	return s.category
}

// Unsubscribe stops delivery. It may be called any number of times.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.n == nil {
		return
	}
	s.once.Do(func() { s.n.remove(s.category, s.id) })
}

// Subscribe registers fn for category. fn runs on the publisher's goroutine
// and must not block.
func (n *Notifier) Subscribe(category Category, fn func()) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.subs[category] = append(n.subs[category], subscriber{id: id, fn: fn})

	return &Subscription{n: n, category: category, id: id}
}

// Unsubscribe is equivalent to s.Unsubscribe().
func (n *Notifier) Unsubscribe(s *Subscription) {
	s.Unsubscribe()
}

func (n *Notifier) remove(category Category, id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subs := n.subs[category]
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		// Copy so that snapshots taken by in-flight Deliver calls stay intact.
		next := make([]subscriber, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(n.subs, category)
		} else {
			n.subs[category] = next
		}
		return
	}
}

// AddForwarder registers f to receive every locally published category.
func (n *Notifier) AddForwarder(f Forwarder) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.forwarders = append(n.forwarders, f)
}

// Publish delivers a signal for category to local subscribers, then hands it
// to the registered forwarders.
func (n *Notifier) Publish(category Category) {
	n.Deliver(category)

	n.mu.RLock()
	forwarders := n.forwarders
	n.mu.RUnlock()

	for _, f := range forwarders {
		f(category)
	}
}

// Deliver invokes the current subscribers of category in subscription order.
// A panicking subscriber is logged and does not affect the others.
func (n *Notifier) Deliver(category Category) {
	n.mu.RLock()
	subs := n.subs[category]
	n.mu.RUnlock()

	for _, sub := range subs {
		n.invoke(category, sub)
	}
}

func (n *Notifier) invoke(category Category, sub subscriber) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Change subscriber panicked",
				logger.String("category", string(category)),
				logger.Error(fmt.Errorf("%v", r)),
			)
		}
	}()
	sub.fn()
}

// Subscribers returns the number of active subscriptions for category.
func (n *Notifier) Subscribers(category Category) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs[category])
}
