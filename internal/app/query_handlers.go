// This file implements the query handlers. Queries never open a unit of
// work: they run read-only against the engine and return DTOs shaped by the
// repository projections.
package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/convoforge/go-assistant-backend/internal/repo"
)

// QueryHandlers owns the read side of the conversation core.
type QueryHandlers struct {
	Engine *gorm.DB
}

// RegisterAll installs every query handler on the bus.
func (h *QueryHandlers) RegisterAll(bus *QueryBus) {
	bus.Register(GetConversationDetails{}, func(ctx context.Context, q Query) (any, error) {
		return h.GetConversationDetails(ctx, q.(GetConversationDetails))
	})
	bus.Register(ListUserConversations{}, func(ctx context.Context, q Query) (any, error) {
		return h.ListUserConversations(ctx, q.(ListUserConversations))
	})
	bus.Register(ListMessages{}, func(ctx context.Context, q Query) (any, error) {
		return h.ListMessages(ctx, q.(ListMessages))
	})
}

// GetConversationDetails returns the header and participant set.
func (h *QueryHandlers) GetConversationDetails(ctx context.Context, q GetConversationDetails) (ConversationDetails, error) {
	tr := otel.Tracer("app/QueryHandlers")
	ctx, span := tr.Start(ctx, "GetConversationDetails",
		trace.WithAttributes(attribute.String("conversation.id", q.ConversationID.String())))
	defer span.End()

	r := repo.NewConversationRepository(h.Engine)
	c, err := r.Get(ctx, q.ConversationID)
	if err != nil {
		return ConversationDetails{}, err
	}

	parts := make([]ParticipantDTO, 0, len(c.Participants()))
	for _, p := range c.Participants() {
		parts = append(parts, ParticipantDTO{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Role:        string(p.Role),
		})
	}
	return ConversationDetails{
		ID:           c.ID().String(),
		Title:        c.Title(),
		CreatorID:    c.CreatorID(),
		IsArchived:   c.Archived(),
		CreatedAt:    c.CreatedAt(),
		UpdatedAt:    c.UpdatedAt(),
		Participants: parts,
	}, nil
}

// ListUserConversations returns one page of conversation summaries.
func (h *QueryHandlers) ListUserConversations(ctx context.Context, q ListUserConversations) (ConversationPage, error) {
	tr := otel.Tracer("app/QueryHandlers")
	ctx, span := tr.Start(ctx, "ListUserConversations",
		trace.WithAttributes(
			attribute.String("user.id", q.UserID),
			attribute.Bool("include_archived", q.IncludeArchived),
			attribute.Int("limit", q.Limit),
		))
	defer span.End()

	r := repo.NewConversationRepository(h.Engine)
	items, next, err := r.ListByUser(ctx, q.UserID, q.IncludeArchived, q.Limit, q.Cursor)
	if err != nil {
		return ConversationPage{}, err
	}
	return ConversationPage{Items: items, NextCursor: next}, nil
}

// ListMessages returns one page of message views in insertion order.
func (h *QueryHandlers) ListMessages(ctx context.Context, q ListMessages) (MessagePage, error) {
	tr := otel.Tracer("app/QueryHandlers")
	ctx, span := tr.Start(ctx, "ListMessages",
		trace.WithAttributes(
			attribute.String("conversation.id", q.ConversationID.String()),
			attribute.Int("limit", q.Limit),
		))
	defer span.End()

	r := repo.NewConversationRepository(h.Engine)
	items, next, err := r.Messages(ctx, q.ConversationID, q.Limit, q.Cursor)
	if err != nil {
		return MessagePage{}, err
	}
	return MessagePage{Items: items, NextCursor: next}, nil
}
