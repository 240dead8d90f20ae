// Feedback HTTP handlers.
//
// This file exposes the endpoint for rating a message revision:
//   - POST /conversations/{id}/messages/{messageID}/feedback
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/convoforge/go-assistant-backend/internal/app"
	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// AttachFeedbackRequest is the JSON payload for leaving feedback.
//
// Revision selects which content revision the rating applies to; omit it (or
// pass the latest index) to rate the current text. One rating per revision.
type AttachFeedbackRequest struct {
	Rating   string `json:"rating" binding:"required"`
	Comment  string `json:"comment"`
	Revision int    `json:"revision"`
}

// AttachFeedback records a rating for one revision of a message. A second
// rating for the same revision is rejected with 409.
func (h *Handlers) AttachFeedback(c *gin.Context) {
	convID, okConv := pathUUID(c, "id")
	if !okConv {
		return
	}
	msgID, okMsg := pathUUID(c, "messageID")
	if !okMsg {
		return
	}
	var req AttachFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "rating is required")
		return
	}

	res, err := h.commands.Dispatch(c.Request.Context(), app.AttachFeedback{
		BaseCommand:    app.NewBaseCommand(),
		ConversationID: convID,
		MessageID:      msgID,
		Revision:       req.Revision,
		Rating:         domain.Rating(strings.ToLower(strings.TrimSpace(req.Rating))),
		Comment:        req.Comment,
	})
	if err != nil {
		failDomain(c, err)
		return
	}
	ok(c, http.StatusCreated, res)
}
