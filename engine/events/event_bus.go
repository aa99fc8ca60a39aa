// Package events implements the publish/subscribe bus every engine subsystem hangs off.
//
// Subscriptions are keyed by an explicit (topic, namespace) pair. Publishers choose
// between Trigger, which reaches a single namespace, and TriggerAll, which reaches the
// topic in every namespace. Callbacks always run in registration order.
package events

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-valley/engine/logger"
)

// DefaultNamespace is the namespace assigned to specifiers written without one.
const DefaultNamespace Namespace = "base"

var (
	// ErrEmptyName is returned when a subscription has no topic.
	ErrEmptyName = errors.New("event name is empty")
	// ErrNilCallback is returned when a subscription has no callback.
	ErrNilCallback = errors.New("event callback is nil")
	// ErrReentrantTrigger is reported when a topic is triggered from inside its own dispatch.
	ErrReentrantTrigger = errors.New("event topic is already dispatching")
)

// Topic names an event, e.g. "tick" or "resize".
type Topic string

// Namespace groups subscriptions, usually by the subsystem that owns them.
type Namespace string

// Key identifies one subscription list.
type Key struct {
	Topic     Topic
	Namespace Namespace
}

// String renders the key in "topic.namespace" form.
func (k Key) String() string {
	return fmt.Sprintf("%s.%s", k.Topic, k.Namespace)
}

// Callback receives the trigger arguments. Its result is only observed when it is the
// first non-nil result of a dispatch.
type Callback func(args ...any) any

type subscription struct {
	key Key
	cb  Callback
}

type eventBus struct {
	mu *sync.Mutex

	label string

	// subscriptions keeps one registration-ordered list per topic so that a
	// broadcast across namespaces preserves global registration order.
	subscriptions map[Topic][]subscription
	dispatching   map[Topic]bool

	recoverPanics bool
}

// EventBus is a namespaced publish/subscribe registry.
//
// Malformed input never panics: it is logged, ignored, and leaves the table as it was.
// Triggering a topic nobody subscribed to is a no-op.
type EventBus interface {
	// On registers cb under every key parsed from names (see ParseNames) and returns the
	// bus so calls can be chained. Empty names or a nil callback are logged and ignored.
	//
	// Parameters:
	//   - names: delimiter-separated specifiers, e.g. "tick.pointer" or "resize, tick"
	//   - cb: the callback to register
	//
	// Returns:
	//   - EventBus: the same bus
	On(names string, cb Callback) EventBus

	// Subscribe is the typed form of On for a single key. The key is normalized the way
	// ParseNames resolves names, so "load-failed" and "loadfailed" are the same topic.
	//
	// Parameters:
	//   - key: the topic/namespace pair
	//   - cb: the callback to register
	//
	// Returns:
	//   - error: ErrEmptyName or ErrNilCallback on misuse, nil otherwise
	Subscribe(key Key, cb Callback) error

	// Off removes subscriptions. "topic" removes the topic in every namespace,
	// "topic.ns" removes one key and ".ns" removes every topic in the namespace.
	//
	// Parameters:
	//   - names: delimiter-separated specifiers
	//
	// Returns:
	//   - EventBus: the same bus
	Off(names string) EventBus

	// Trigger invokes, in registration order, the callbacks registered for topic in one namespace.
	//
	// Parameters:
	//   - topic: the topic to trigger
	//   - namespace: the namespace to restrict dispatch to
	//   - args: arguments forwarded to every callback
	//
	// Returns:
	//   - any: the first non-nil callback result, or nil
	Trigger(topic Topic, namespace Namespace, args ...any) any

	// TriggerAll invokes, in registration order, the callbacks registered for topic in every namespace.
	//
	// Parameters:
	//   - topic: the topic to broadcast
	//   - args: arguments forwarded to every callback
	//
	// Returns:
	//   - any: the first non-nil callback result, or nil
	TriggerAll(topic Topic, args ...any) any

	// Emit is the string form of Trigger / TriggerAll. A qualified name ("tick.pointer")
	// triggers one namespace, a bare name broadcasts. Only the first specifier is used.
	//
	// Parameters:
	//   - name: the event specifier
	//   - args: arguments forwarded to every callback
	//
	// Returns:
	//   - any: the first non-nil callback result, or nil
	Emit(name string, args ...any) any

	// Has reports whether at least one callback is registered under key.
	//
	// Parameters:
	//   - key: the topic/namespace pair
	//
	// Returns:
	//   - bool: true if the key has subscribers
	Has(key Key) bool

	// Len returns the total number of registered callbacks.
	//
	// Returns:
	//   - int: the subscription count
	Len() int
}

var _ EventBus = &eventBus{}

// NewEventBus creates an empty EventBus.
//
// Parameters:
//   - options: functional options applied in order
//
// Returns:
//   - EventBus: the new bus
func NewEventBus(options ...EventBusBuilderOption) EventBus {
	b := &eventBus{
		mu:            &sync.Mutex{},
		label:         "events",
		subscriptions: make(map[Topic][]subscription),
		dispatching:   make(map[Topic]bool),
		recoverPanics: true,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *eventBus) On(names string, cb Callback) EventBus {
	parsed := parseNames(names)
	if len(parsed) == 0 {
		logger.Logger().Warn("event subscription rejected", "bus", b.label, "names", names, "err", ErrEmptyName)
		return b
	}
	if cb == nil {
		logger.Logger().Warn("event subscription rejected", "bus", b.label, "names", names, "err", ErrNilCallback)
		return b
	}
	for _, p := range parsed {
		if err := b.Subscribe(Key{Topic: p.topic, Namespace: p.namespace}, cb); err != nil {
			logger.Logger().Warn("event subscription rejected", "bus", b.label, "names", names, "err", err)
		}
	}
	return b
}

func (b *eventBus) Subscribe(key Key, cb Callback) error {
	key = normalizeKey(key)
	if key.Topic == "" {
		return ErrEmptyName
	}
	if cb == nil {
		return ErrNilCallback
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions[key.Topic] = append(b.subscriptions[key.Topic], subscription{key: key, cb: cb})
	return nil
}

func (b *eventBus) Off(names string) EventBus {
	parsed := parseNames(names)
	if len(parsed) == 0 {
		logger.Logger().Warn("event unsubscribe rejected", "bus", b.label, "names", names, "err", ErrEmptyName)
		return b
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range parsed {
		switch {
		case p.topic == "" && p.qualified:
			for topic := range b.subscriptions {
				b.removeLocked(topic, func(s subscription) bool { return s.key.Namespace == p.namespace })
			}
		case p.topic == "":
		case !p.qualified:
			delete(b.subscriptions, p.topic)
		default:
			b.removeLocked(p.topic, func(s subscription) bool { return s.key.Namespace == p.namespace })
		}
	}
	return b
}

// removeLocked drops every subscription of topic matching drop. Caller must hold the mutex.
func (b *eventBus) removeLocked(topic Topic, drop func(subscription) bool) {
	subs := b.subscriptions[topic]
	kept := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if !drop(s) {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(b.subscriptions, topic)
		return
	}
	b.subscriptions[topic] = kept
}

func (b *eventBus) Trigger(topic Topic, namespace Namespace, args ...any) any {
	key := normalizeKey(Key{Topic: topic, Namespace: namespace})
	return b.dispatch(key.Topic, func(s subscription) bool { return s.key.Namespace == key.Namespace }, args)
}

func (b *eventBus) TriggerAll(topic Topic, args ...any) any {
	return b.dispatch(normalizeKey(Key{Topic: topic}).Topic, nil, args)
}

func (b *eventBus) Emit(name string, args ...any) any {
	parsed := parseNames(name)
	if len(parsed) == 0 || parsed[0].topic == "" {
		logger.Logger().Warn("event trigger rejected", "bus", b.label, "name", name, "err", ErrEmptyName)
		return nil
	}
	p := parsed[0]
	if p.qualified {
		return b.Trigger(p.topic, p.namespace, args...)
	}
	return b.TriggerAll(p.topic, args...)
}

func (b *eventBus) Has(key Key) bool {
	key = normalizeKey(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subscriptions[key.Topic] {
		if s.key == key {
			return true
		}
	}
	return false
}

func (b *eventBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, subs := range b.subscriptions {
		n += len(subs)
	}
	return n
}

// dispatch runs a snapshot of the topic's subscribers, so callbacks registered while
// the topic is dispatching first run on the next trigger.
func (b *eventBus) dispatch(topic Topic, match func(subscription) bool, args []any) any {
	if topic == "" {
		logger.Logger().Warn("event trigger rejected", "bus", b.label, "err", ErrEmptyName)
		return nil
	}

	b.mu.Lock()
	if b.dispatching[topic] {
		b.mu.Unlock()
		logger.Logger().Warn("event trigger rejected", "bus", b.label, "topic", topic, "err", ErrReentrantTrigger)
		return nil
	}
	subs := b.subscriptions[topic]
	if len(subs) == 0 {
		b.mu.Unlock()
		return nil
	}
	snapshot := make([]subscription, len(subs))
	copy(snapshot, subs)
	b.dispatching[topic] = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.dispatching, topic)
		b.mu.Unlock()
	}()

	var result any
	for _, s := range snapshot {
		if match != nil && !match(s) {
			continue
		}
		if r := b.invoke(s, args); result == nil && r != nil {
			result = r
		}
	}
	return result
}

func (b *eventBus) invoke(s subscription, args []any) (result any) {
	if b.recoverPanics {
		defer func() {
			if r := recover(); r != nil {
				logger.Logger().Error("event callback panicked", "bus", b.label, "event", s.key.String(), "panic", r)
				result = nil
			}
		}()
	}
	return s.cb(args...)
}
