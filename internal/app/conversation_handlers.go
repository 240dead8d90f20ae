// This file implements the command handlers of the conversation core. Each
// handler opens a unit of work, loads the aggregate, mutates it, and lets
// the unit of work commit (persist + publish events) or roll back. Stale
// version conflicts are retried a bounded number of times by re-loading.
//
// Observability: handlers are OpenTelemetry-instrumented; spans carry the
// conversation id and the command correlation id.
package app

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/convoforge/go-assistant-backend/internal/domain"
	"github.com/convoforge/go-assistant-backend/internal/repo"
	"github.com/convoforge/go-assistant-backend/internal/uow"
)

// DefaultConflictRetries bounds the re-load-and-retry loop on stale saves.
const DefaultConflictRetries = 3

// ConversationHandlers owns the command side of the conversation core.
type ConversationHandlers struct {
	Engine    *gorm.DB
	Events    uow.Publisher
	Generator ResponseGenerator

	// ConflictRetries overrides DefaultConflictRetries when > 0.
	ConflictRetries int

	// TxTimeout bounds each unit of work when > 0. The generator call is
	// not covered; it runs before the transaction opens and carries its
	// own client timeout.
	TxTimeout time.Duration
}

// RegisterAll installs every command handler on the bus.
func (h *ConversationHandlers) RegisterAll(bus *CommandBus) {
	bus.Register(StartConversation{}, func(ctx context.Context, cmd Command) (any, error) {
		return h.StartConversation(ctx, cmd.(StartConversation))
	})
	bus.Register(SendMessage{}, func(ctx context.Context, cmd Command) (any, error) {
		return h.SendMessage(ctx, cmd.(SendMessage))
	})
	bus.Register(UpdateMessage{}, func(ctx context.Context, cmd Command) (any, error) {
		return h.UpdateMessage(ctx, cmd.(UpdateMessage))
	})
	bus.Register(PinMessage{}, func(ctx context.Context, cmd Command) (any, error) {
		return h.PinMessage(ctx, cmd.(PinMessage))
	})
	bus.Register(AttachFeedback{}, func(ctx context.Context, cmd Command) (any, error) {
		return h.AttachFeedback(ctx, cmd.(AttachFeedback))
	})
	bus.Register(ArchiveConversation{}, func(ctx context.Context, cmd Command) (any, error) {
		return h.ArchiveConversation(ctx, cmd.(ArchiveConversation))
	})
	bus.Register(UnarchiveConversation{}, func(ctx context.Context, cmd Command) (any, error) {
		return h.UnarchiveConversation(ctx, cmd.(UnarchiveConversation))
	})
	bus.Register(RenameConversation{}, func(ctx context.Context, cmd Command) (any, error) {
		return h.RenameConversation(ctx, cmd.(RenameConversation))
	})
	bus.Register(AddParticipant{}, func(ctx context.Context, cmd Command) (any, error) {
		return h.AddParticipant(ctx, cmd.(AddParticipant))
	})
}

// StartConversation creates and persists a fresh aggregate.
func (h *ConversationHandlers) StartConversation(ctx context.Context, cmd StartConversation) (ConversationStarted, error) {
	ctx, span := h.span(ctx, "StartConversation", cmd.CommandID())
	defer span.End()

	c, err := domain.NewConversation(cmd.CreatorID, cmd.Title)
	if err != nil {
		return ConversationStarted{}, err
	}

	err = h.run(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		r := repo.NewConversationRepository(u.Tx())
		uow.Register(u, r)
		u.Track(c)
		return r.Save(ctx, c)
	})
	if err != nil {
		return ConversationStarted{}, err
	}
	return ConversationStarted{ID: c.ID().String(), Title: c.Title()}, nil
}

// SendMessage synthesizes the assistant response (when a generator is
// wired), then appends the message inside a unit of work. The generator is
// called before the transaction opens so a slow model never holds a DB
// transaction.
//
// Idempotent retry: when the command carries a client-supplied message UUID
// that the aggregate already holds, the send is acknowledged as a duplicate
// without writing anything.
func (h *ConversationHandlers) SendMessage(ctx context.Context, cmd SendMessage) (SentMessage, error) {
	ctx, span := h.span(ctx, "SendMessage", cmd.CommandID(),
		attribute.String("conversation.id", cmd.ConversationID.String()))
	defer span.End()

	response, err := h.generate(ctx, cmd.Text)
	if err != nil {
		return SentMessage{}, err
	}
	content, err := domain.NewContent(cmd.Text, response)
	if err != nil {
		return SentMessage{}, err
	}

	msgID := cmd.MessageID
	if msgID == uuid.Nil {
		msgID = uuid.New()
	}

	var out SentMessage
	err = h.withRetry(ctx, func() error {
		return h.run(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
			r := repo.NewConversationRepository(u.Tx())
			uow.Register(u, r)
			c, err := r.Get(ctx, cmd.ConversationID)
			if err != nil {
				return err
			}
			u.Track(c)

			if _, err := c.Message(msgID); err == nil {
				out = SentMessage{
					MessageID:      msgID.String(),
					ConversationID: c.ID().String(),
					SenderID:       cmd.SenderID,
					Deduplicated:   true,
				}
				return nil
			}

			if _, err := c.AddMessageWithID(msgID, content, cmd.SenderID); err != nil {
				return err
			}
			if isPlaceholderTitle(c.Title()) {
				if t := autoTitle(cmd.Text); t != "" {
					if err := c.Rename(t); err != nil {
						return err
					}
				}
			}
			out = SentMessage{
				MessageID:      msgID.String(),
				ConversationID: c.ID().String(),
				SenderID:       cmd.SenderID,
				Response:       content.Response(),
			}
			return r.Save(ctx, c)
		})
	})
	if err != nil {
		return SentMessage{}, err
	}
	return out, nil
}

// UpdateMessage appends a new revision with a freshly generated response.
func (h *ConversationHandlers) UpdateMessage(ctx context.Context, cmd UpdateMessage) (MessageRevised, error) {
	ctx, span := h.span(ctx, "UpdateMessage", cmd.CommandID(),
		attribute.String("conversation.id", cmd.ConversationID.String()),
		attribute.String("message.id", cmd.MessageID.String()))
	defer span.End()

	response, err := h.generate(ctx, cmd.Text)
	if err != nil {
		return MessageRevised{}, err
	}
	content, err := domain.NewContent(cmd.Text, response)
	if err != nil {
		return MessageRevised{}, err
	}

	var out MessageRevised
	err = h.mutate(ctx, cmd.ConversationID, func(c *domain.Conversation) error {
		if err := c.UpdateMessage(cmd.MessageID, content); err != nil {
			return err
		}
		m, err := c.Message(cmd.MessageID)
		if err != nil {
			return err
		}
		out = MessageRevised{MessageID: cmd.MessageID.String(), Revision: m.RevisionCount() - 1}
		return nil
	})
	if err != nil {
		return MessageRevised{}, err
	}
	return out, nil
}

// PinMessage pins the target message.
func (h *ConversationHandlers) PinMessage(ctx context.Context, cmd PinMessage) (Ack, error) {
	ctx, span := h.span(ctx, "PinMessage", cmd.CommandID(),
		attribute.String("conversation.id", cmd.ConversationID.String()))
	defer span.End()

	err := h.mutate(ctx, cmd.ConversationID, func(c *domain.Conversation) error {
		return c.PinMessage(cmd.MessageID)
	})
	if err != nil {
		return Ack{}, err
	}
	return Ack{ConversationID: cmd.ConversationID.String()}, nil
}

// AttachFeedback attaches a rating to one revision; duplicates fail.
func (h *ConversationHandlers) AttachFeedback(ctx context.Context, cmd AttachFeedback) (FeedbackAttached, error) {
	ctx, span := h.span(ctx, "AttachFeedback", cmd.CommandID(),
		attribute.String("conversation.id", cmd.ConversationID.String()),
		attribute.String("message.id", cmd.MessageID.String()))
	defer span.End()

	err := h.mutate(ctx, cmd.ConversationID, func(c *domain.Conversation) error {
		return c.AttachFeedback(cmd.MessageID, cmd.Revision, cmd.Rating, cmd.Comment)
	})
	if err != nil {
		return FeedbackAttached{}, err
	}
	return FeedbackAttached{
		ConversationID: cmd.ConversationID.String(),
		MessageID:      cmd.MessageID.String(),
		Revision:       cmd.Revision,
	}, nil
}

// ArchiveConversation soft-deletes. Idempotent.
func (h *ConversationHandlers) ArchiveConversation(ctx context.Context, cmd ArchiveConversation) (Ack, error) {
	ctx, span := h.span(ctx, "ArchiveConversation", cmd.CommandID(),
		attribute.String("conversation.id", cmd.ConversationID.String()))
	defer span.End()

	err := h.mutate(ctx, cmd.ConversationID, func(c *domain.Conversation) error {
		c.Archive()
		return nil
	})
	if err != nil {
		return Ack{}, err
	}
	return Ack{ConversationID: cmd.ConversationID.String(), Archived: true}, nil
}

// UnarchiveConversation restores an archived conversation. Idempotent.
func (h *ConversationHandlers) UnarchiveConversation(ctx context.Context, cmd UnarchiveConversation) (Ack, error) {
	ctx, span := h.span(ctx, "UnarchiveConversation", cmd.CommandID(),
		attribute.String("conversation.id", cmd.ConversationID.String()))
	defer span.End()

	err := h.mutate(ctx, cmd.ConversationID, func(c *domain.Conversation) error {
		c.Unarchive()
		return nil
	})
	if err != nil {
		return Ack{}, err
	}
	return Ack{ConversationID: cmd.ConversationID.String(), Archived: false}, nil
}

// RenameConversation sets a new title.
func (h *ConversationHandlers) RenameConversation(ctx context.Context, cmd RenameConversation) (Ack, error) {
	ctx, span := h.span(ctx, "RenameConversation", cmd.CommandID(),
		attribute.String("conversation.id", cmd.ConversationID.String()))
	defer span.End()

	var title string
	err := h.mutate(ctx, cmd.ConversationID, func(c *domain.Conversation) error {
		if err := c.Rename(cmd.Title); err != nil {
			return err
		}
		title = c.Title()
		return nil
	})
	if err != nil {
		return Ack{}, err
	}
	return Ack{ConversationID: cmd.ConversationID.String(), Title: title}, nil
}

// AddParticipant adds a member.
func (h *ConversationHandlers) AddParticipant(ctx context.Context, cmd AddParticipant) (Ack, error) {
	ctx, span := h.span(ctx, "AddParticipant", cmd.CommandID(),
		attribute.String("conversation.id", cmd.ConversationID.String()))
	defer span.End()

	err := h.mutate(ctx, cmd.ConversationID, func(c *domain.Conversation) error {
		return c.AddParticipant(cmd.UserID, cmd.DisplayName, cmd.Role)
	})
	if err != nil {
		return Ack{}, err
	}
	return Ack{ConversationID: cmd.ConversationID.String()}, nil
}

// mutate runs the load-mutate-save cycle inside a unit of work, re-loading
// and retrying on stale version conflicts.
func (h *ConversationHandlers) mutate(ctx context.Context, conversationID uuid.UUID, fn func(c *domain.Conversation) error) error {
	return h.withRetry(ctx, func() error {
		return h.run(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
			r := repo.NewConversationRepository(u.Tx())
			uow.Register(u, r)
			c, err := r.Get(ctx, conversationID)
			if err != nil {
				return err
			}
			u.Track(c)
			if err := fn(c); err != nil {
				return err
			}
			return r.Save(ctx, c)
		})
	})
}

// run opens a unit of work under the configured transaction budget. The
// derived context is handed back to fn so repository calls inherit the same
// deadline.
func (h *ConversationHandlers) run(ctx context.Context, fn func(ctx context.Context, u *uow.UnitOfWork) error) error {
	if h.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.TxTimeout)
		defer cancel()
	}
	return uow.Run(ctx, h.Engine, h.Events, func(u *uow.UnitOfWork) error {
		return fn(ctx, u)
	})
}

// withRetry re-runs attempt while it fails with a version conflict, up to
// the configured bound. Every other error returns immediately.
func (h *ConversationHandlers) withRetry(ctx context.Context, attempt func() error) error {
	retries := h.ConflictRetries
	if retries <= 0 {
		retries = DefaultConflictRetries
	}
	var err error
	for i := 0; i <= retries; i++ {
		err = attempt()
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return domain.Timeoutf("conflict retry interrupted: %v", ctx.Err())
		}
	}
	return err
}

// generate calls the wired generator, clipping overlong replies to the
// domain bound. A missing generator yields no response.
func (h *ConversationHandlers) generate(ctx context.Context, text string) (string, error) {
	if h.Generator == nil {
		return "", nil
	}
	reply, err := h.Generator.Generate(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", domain.Timeoutf("generate response: %v", err)
		}
		if errors.Is(err, domain.ErrUpstream) || errors.Is(err, domain.ErrTimeout) {
			return "", err
		}
		return "", domain.Upstreamf("generate response: %v", err)
	}
	if utf8.RuneCountInString(reply) > domain.MaxResponseRunes {
		reply = string([]rune(reply)[:domain.MaxResponseRunes])
	}
	if utf8.RuneCountInString(reply) < domain.MinResponseRunes {
		// A degenerate reply is recorded as no response rather than failing
		// the user's message.
		return "", nil
	}
	return reply, nil
}

func (h *ConversationHandlers) span(ctx context.Context, name string, correlationID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := otel.Tracer("app/ConversationHandlers")
	attrs = append(attrs, attribute.String("command.id", correlationID.String()))
	return tr.Start(ctx, name, trace.WithAttributes(attrs...))
}
