package app

import (
	"time"

	"github.com/google/uuid"

	"github.com/convoforge/go-assistant-backend/internal/repo"
)

// GetConversationDetails fetches the header and participant set of one
// conversation.
type GetConversationDetails struct {
	BaseQuery
	ConversationID uuid.UUID
}

// ParticipantDTO is one member in the details DTO.
type ParticipantDTO struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// ConversationDetails is the GetConversationDetails result.
type ConversationDetails struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	CreatorID    string           `json:"creator_id"`
	IsArchived   bool             `json:"is_archived"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Participants []ParticipantDTO `json:"participants"`
}

// ListUserConversations pages over the conversations the user participates
// in. Cursor is the opaque token from a previous page; "" starts over.
type ListUserConversations struct {
	BaseQuery
	UserID          string
	IncludeArchived bool
	Limit           int
	Cursor          string
}

// ConversationPage is the ListUserConversations result.
type ConversationPage struct {
	Items      []repo.ConversationSummary `json:"items"`
	NextCursor string                     `json:"next_cursor,omitempty"`
}

// ListMessages pages over a conversation's messages in insertion order.
type ListMessages struct {
	BaseQuery
	ConversationID uuid.UUID
	Limit          int
	Cursor         string
}

// MessagePage is the ListMessages result.
type MessagePage struct {
	Items      []repo.MessageView `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}
