// Package events implements post-commit domain event dispatch. Events are
// published synchronously in emission order once the surrounding unit of
// work has committed; a failing subscriber is logged and never prevents the
// remaining subscribers from running.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// Subscriber consumes published events. Implementations must tolerate event
// variants they do not care about.
type Subscriber interface {
	Handle(ctx context.Context, e domain.Event) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, e domain.Event) error

// Handle implements Subscriber.
func (f SubscriberFunc) Handle(ctx context.Context, e domain.Event) error { return f(ctx, e) }

// Dispatcher fans events out to subscribers registered per namespace.
// Subscription normally happens once at startup, but the dispatcher guards
// its table anyway so tests can subscribe concurrently with publication.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[string][]Subscriber
	log  zerolog.Logger
}

// NewDispatcher returns an empty dispatcher logging through log.
func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		subs: make(map[string][]Subscriber),
		log:  log,
	}
}

// Subscribe registers s for one event namespace. Multiple subscribers per
// namespace run in subscription order.
func (d *Dispatcher) Subscribe(namespace string, s Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs[namespace] = append(d.subs[namespace], s)
}

// SubscribeAll registers s for every currently known namespace.
func (d *Dispatcher) SubscribeAll(s Subscriber) {
	for _, ns := range []string{
		domain.NSMessageAdded,
		domain.NSMessageUpdated,
		domain.NSMessagePinned,
		domain.NSFeedbackAdded,
		domain.NSConversationRenamed,
		domain.NSConversationArchived,
		domain.NSConversationUnarchived,
		domain.NSParticipantAdded,
	} {
		d.Subscribe(ns, s)
	}
}

// Publish delivers events to their subscribers in the given order. Each
// subscriber failure (error or panic) is logged as a warning and the
// remaining subscribers still run: publication is at-least-one-best-effort,
// never transactional.
func (d *Dispatcher) Publish(ctx context.Context, events ...domain.Event) {
	for _, e := range events {
		d.mu.RLock()
		subs := make([]Subscriber, len(d.subs[e.Namespace()]))
		copy(subs, d.subs[e.Namespace()])
		d.mu.RUnlock()

		for _, s := range subs {
			d.deliver(ctx, s, e)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, s Subscriber, e domain.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Warn().
				Str("namespace", e.Namespace()).
				Interface("panic", rec).
				Msg("event subscriber panicked")
		}
	}()
	if err := s.Handle(ctx, e); err != nil {
		d.log.Warn().
			Str("namespace", e.Namespace()).
			Err(err).
			Msg("event subscriber failed")
	}
}
