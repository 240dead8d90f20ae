package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// eventsPublished counts published domain events by namespace.
var eventsPublished = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "domain_events_published_total",
		Help: "Total number of domain events published after commit.",
	},
	[]string{"namespace"},
)

func init() {
	prometheus.MustRegister(eventsPublished)
}

// LoggingSubscriber emits one structured log line per event.
type LoggingSubscriber struct {
	Log zerolog.Logger
}

// Handle implements Subscriber.
func (s LoggingSubscriber) Handle(_ context.Context, e domain.Event) error {
	ev := s.Log.Info().
		Str("namespace", e.Namespace()).
		Time("occurred_at", e.OccurredAt())
	switch t := e.(type) {
	case domain.MessageAdded:
		ev = ev.Str("conversation_id", t.ConversationID.String()).
			Str("message_id", t.MessageID.String()).
			Str("sender_id", t.SenderID)
	case domain.MessageUpdated:
		ev = ev.Str("conversation_id", t.ConversationID.String()).
			Str("message_id", t.MessageID.String()).
			Int("revision", t.Revision)
	case domain.MessagePinned:
		ev = ev.Str("conversation_id", t.ConversationID.String()).
			Str("message_id", t.MessageID.String())
	case domain.FeedbackAdded:
		ev = ev.Str("conversation_id", t.ConversationID.String()).
			Str("message_id", t.MessageID.String()).
			Int("revision", t.Revision).
			Str("rating", string(t.Rating))
	case domain.ConversationRenamed:
		ev = ev.Str("conversation_id", t.ConversationID.String()).
			Str("title", t.Title)
	case domain.ConversationArchived:
		ev = ev.Str("conversation_id", t.ConversationID.String())
	case domain.ConversationUnarchived:
		ev = ev.Str("conversation_id", t.ConversationID.String())
	case domain.ParticipantAdded:
		ev = ev.Str("conversation_id", t.ConversationID.String()).
			Str("user_id", t.UserID).
			Str("role", string(t.Role))
	}
	ev.Msg("domain event")
	return nil
}

// MetricsSubscriber counts events per namespace.
type MetricsSubscriber struct{}

// Handle implements Subscriber.
func (MetricsSubscriber) Handle(_ context.Context, e domain.Event) error {
	eventsPublished.WithLabelValues(e.Namespace()).Inc()
	return nil
}
