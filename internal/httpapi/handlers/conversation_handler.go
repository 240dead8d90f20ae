// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - POST   /conversations                    (start)
//   - GET    /conversations                    (list, cursor-paginated)
//   - GET    /conversations/{id}               (details)
//   - PUT    /conversations/{id}/title         (rename)
//   - POST   /conversations/{id}/archive       (archive)
//   - POST   /conversations/{id}/unarchive     (restore)
//   - POST   /conversations/{id}/participants  (add member)
//
// Handlers are transport-thin: they validate input, dispatch commands and
// queries on the buses, and translate results into HTTP responses.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/convoforge/go-assistant-backend/internal/app"
	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// Handlers groups the HTTP endpoints for conversations, messages, and
// feedback. It depends only on the command and query buses so transport
// concerns stay separate from business logic.
type Handlers struct {
	commands *app.CommandBus
	queries  *app.QueryBus
}

// New constructs a Handlers instance bound to the given buses.
func New(commands *app.CommandBus, queries *app.QueryBus) *Handlers {
	return &Handlers{commands: commands, queries: queries}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header, and
// finally to "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// pathUUID parses the named path parameter as a UUID, failing the request
// with 400 when it is malformed. The bool reports success.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

//
// DTOs
//

// StartConversationRequest is the JSON payload for starting a conversation.
type StartConversationRequest struct {
	// Title optionally sets the conversation title; a default is used when empty.
	Title string `json:"title"`
}

// RenameConversationRequest is the JSON payload for renaming a conversation.
type RenameConversationRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255"`
}

// AddParticipantRequest is the JSON payload for adding a member.
type AddParticipantRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role" binding:"required"`
}

//
// Handlers
//

// StartConversation creates a conversation owned by the current user and
// returns its id and title.
func (h *Handlers) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	cmd := app.StartConversation{
		BaseCommand: app.NewBaseCommand(),
		CreatorID:   userID(c),
		Title:       strings.TrimSpace(req.Title),
	}
	res, err := h.commands.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}

// GetConversation returns the header and participant set of one conversation.
func (h *Handlers) GetConversation(c *gin.Context) {
	id, okID := pathUUID(c, "id")
	if !okID {
		return
	}

	res, err := h.queries.Ask(c.Request.Context(), app.GetConversationDetails{
		BaseQuery:      app.NewBaseQuery(),
		ConversationID: id,
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ListConversations returns a cursor page of the current user's
// conversations, newest first. Query params: limit, cursor,
// include_archived.
func (h *Handlers) ListConversations(c *gin.Context) {
	res, err := h.queries.Ask(c.Request.Context(), app.ListUserConversations{
		BaseQuery:       app.NewBaseQuery(),
		UserID:          userID(c),
		IncludeArchived: c.Query("include_archived") == "true",
		Limit:           atoiDefault(c.Query("limit"), 0),
		Cursor:          c.Query("cursor"),
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// RenameConversation sets a new title on the conversation.
func (h *Handlers) RenameConversation(c *gin.Context) {
	id, okID := pathUUID(c, "id")
	if !okID {
		return
	}
	var req RenameConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title is required (1-255 chars)")
		return
	}

	res, err := h.commands.Dispatch(c.Request.Context(), app.RenameConversation{
		BaseCommand:    app.NewBaseCommand(),
		ConversationID: id,
		Title:          req.Title,
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ArchiveConversation soft-deletes the conversation. Idempotent.
func (h *Handlers) ArchiveConversation(c *gin.Context) {
	id, okID := pathUUID(c, "id")
	if !okID {
		return
	}

	res, err := h.commands.Dispatch(c.Request.Context(), app.ArchiveConversation{
		BaseCommand:    app.NewBaseCommand(),
		ConversationID: id,
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// UnarchiveConversation restores an archived conversation. Idempotent.
func (h *Handlers) UnarchiveConversation(c *gin.Context) {
	id, okID := pathUUID(c, "id")
	if !okID {
		return
	}

	res, err := h.commands.Dispatch(c.Request.Context(), app.UnarchiveConversation{
		BaseCommand:    app.NewBaseCommand(),
		ConversationID: id,
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// AddParticipant adds a member with the given role to the conversation.
func (h *Handlers) AddParticipant(c *gin.Context) {
	id, okID := pathUUID(c, "id")
	if !okID {
		return
	}
	var req AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id and role are required")
		return
	}

	res, err := h.commands.Dispatch(c.Request.Context(), app.AddParticipant{
		BaseCommand:    app.NewBaseCommand(),
		ConversationID: id,
		UserID:         req.UserID,
		DisplayName:    req.DisplayName,
		Role:           domain.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}

// atoiDefault parses s as a decimal int, returning def on empty or malformed
// input.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
	}
	return n
}
