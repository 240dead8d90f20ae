// Message HTTP handlers.
//
// This file exposes REST endpoints for message resources:
//   - POST /conversations/{id}/messages                 (send, with assistant reply)
//   - GET  /conversations/{id}/messages                 (list, cursor-paginated)
//   - PUT  /conversations/{id}/messages/{messageID}     (revise)
//   - POST /conversations/{id}/messages/{messageID}/pin (pin)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/convoforge/go-assistant-backend/internal/app"
)

// SendMessageRequest is the JSON payload for posting a message.
//
// MessageID is optional: clients that retry a send supply the same UUID so
// the server persists exactly one message for the exchange.
type SendMessageRequest struct {
	Text      string `json:"text" binding:"required"`
	MessageID string `json:"message_id"`
}

// UpdateMessageRequest is the JSON payload for revising a message.
type UpdateMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// SendMessage appends the user's message to the conversation and, when a
// generator is configured, the assistant's reply. Returns 200 with the
// deduplicated flag set when a retried send matches an already-persisted
// message id.
func (h *Handlers) SendMessage(c *gin.Context) {
	convID, okID := pathUUID(c, "id")
	if !okID {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
		return
	}

	msgID := uuid.Nil
	if req.MessageID != "" {
		var err error
		if msgID, err = uuid.Parse(req.MessageID); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message_id")
			return
		}
	}

	res, err := h.commands.Dispatch(c.Request.Context(), app.SendMessage{
		BaseCommand:    app.NewBaseCommand(),
		ConversationID: convID,
		MessageID:      msgID,
		SenderID:       userID(c),
		Text:           req.Text,
	})
	if err != nil {
		failDomain(c, err)
		return
	}

	status := http.StatusCreated
	if sent, okType := res.(app.SentMessage); okType && sent.Deduplicated {
		status = http.StatusOK
	}
	ok(c, status, res)
}

// ListMessages returns a cursor page of the conversation's messages in
// insertion order. Query params: limit, cursor.
func (h *Handlers) ListMessages(c *gin.Context) {
	convID, okID := pathUUID(c, "id")
	if !okID {
		return
	}

	res, err := h.queries.Ask(c.Request.Context(), app.ListMessages{
		BaseQuery:      app.NewBaseQuery(),
		ConversationID: convID,
		Limit:          atoiDefault(c.Query("limit"), 0),
		Cursor:         c.Query("cursor"),
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// UpdateMessage appends a fresh content revision to the message and
// regenerates the assistant response for it.
func (h *Handlers) UpdateMessage(c *gin.Context) {
	convID, okConv := pathUUID(c, "id")
	if !okConv {
		return
	}
	msgID, okMsg := pathUUID(c, "messageID")
	if !okMsg {
		return
	}
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
		return
	}

	res, err := h.commands.Dispatch(c.Request.Context(), app.UpdateMessage{
		BaseCommand:    app.NewBaseCommand(),
		ConversationID: convID,
		MessageID:      msgID,
		Text:           req.Text,
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// PinMessage pins the target message, unpinning any previously pinned one.
func (h *Handlers) PinMessage(c *gin.Context) {
	convID, okConv := pathUUID(c, "id")
	if !okConv {
		return
	}
	msgID, okMsg := pathUUID(c, "messageID")
	if !okMsg {
		return
	}

	res, err := h.commands.Dispatch(c.Request.Context(), app.PinMessage{
		BaseCommand:    app.NewBaseCommand(),
		ConversationID: convID,
		MessageID:      msgID,
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
