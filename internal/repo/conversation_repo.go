// Package repo implements the data persistence layer for the conversation
// aggregate, backed by GORM. This file provides the ConversationRepository.
//
// Error semantics:
//   - A missing conversation surfaces as a domain not-found failure.
//   - A stale aggregate version on Save surfaces as a domain conflict; the
//     application handler re-loads and retries a bounded number of times.
//   - Other DB errors are wrapped as infrastructure failures.
package repo

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/convoforge/go-assistant-backend/internal/domain"
)

// DefaultPageSize is used when a caller passes a non-positive limit.
const DefaultPageSize = 20

// MaxPageSize caps a single page.
const MaxPageSize = 100

// ConversationSummary is a header-only projection for listings.
type ConversationSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatorID  string    `json:"creator_id"`
	IsArchived bool      `json:"is_archived"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FeedbackView is one feedback entry of a message projection.
type FeedbackView struct {
	Revision int    `json:"revision"`
	Rating   string `json:"rating"`
	Comment  string `json:"comment,omitempty"`
}

// MessageView is a message projection carrying the latest content revision
// plus any feedback.
type MessageView struct {
	ID        string         `json:"id"`
	SenderID  string         `json:"sender_id"`
	Position  int            `json:"position"`
	Pinned    bool           `json:"pinned"`
	CreatedAt time.Time      `json:"created_at"`
	Revision  int            `json:"revision"`
	Text      string         `json:"text"`
	Response  string         `json:"response,omitempty"`
	Feedback  []FeedbackView `json:"feedback,omitempty"`
}

// ConversationRepository persists the aggregate. The handle may be an engine
// or, inside a unit of work, a transaction.
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository wraps the given handle.
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Get loads the full aggregate.
func (r *ConversationRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	var header ConversationRecord
	err := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFoundf("conversation %s", id)
	}
	if err != nil {
		return nil, domain.Infraf(err, "load conversation %s", id)
	}

	var parts []ParticipantRecord
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", header.ID).
		Order("user_id ASC").
		Find(&parts).Error; err != nil {
		return nil, domain.Infraf(err, "load participants of %s", id)
	}

	var msgs []MessageRecord
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", header.ID).
		Order("position ASC").
		Find(&msgs).Error; err != nil {
		return nil, domain.Infraf(err, "load messages of %s", id)
	}

	msgIDs := make([]string, len(msgs))
	for i, m := range msgs {
		msgIDs[i] = m.ID
	}

	contents := map[string][]ContentRecord{}
	feedback := map[string][]FeedbackRecord{}
	if len(msgIDs) > 0 {
		var crs []ContentRecord
		if err := r.db.WithContext(ctx).
			Where("message_id IN ?", msgIDs).
			Order("message_id ASC, revision_index ASC").
			Find(&crs).Error; err != nil {
			return nil, domain.Infraf(err, "load contents of %s", id)
		}
		for _, cr := range crs {
			contents[cr.MessageID] = append(contents[cr.MessageID], cr)
		}

		var frs []FeedbackRecord
		if err := r.db.WithContext(ctx).
			Where("message_id IN ?", msgIDs).
			Find(&frs).Error; err != nil {
			return nil, domain.Infraf(err, "load feedback of %s", id)
		}
		for _, fr := range frs {
			feedback[fr.MessageID] = append(feedback[fr.MessageID], fr)
		}
	}

	participants := make([]domain.Participant, 0, len(parts))
	for _, p := range parts {
		participants = append(participants, domain.Participant{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Role:        domain.Role(p.Role),
		})
	}

	rehydrated := make([]domain.RehydratedMessage, 0, len(msgs))
	for _, m := range msgs {
		mid, err := uuid.Parse(m.ID)
		if err != nil {
			return nil, domain.Infraf(err, "corrupt message id %q", m.ID)
		}
		var revs []domain.Content
		for _, cr := range contents[m.ID] {
			revs = append(revs, domain.RehydrateContent(cr.Text, cr.Response))
		}
		fbs := make(map[int]domain.Feedback, len(feedback[m.ID]))
		for _, fr := range feedback[m.ID] {
			fbs[fr.RevisionIndex] = domain.RehydrateFeedback(domain.Rating(fr.Rating), fr.Comment)
		}
		rehydrated = append(rehydrated, domain.RehydratedMessage{
			ID:        mid,
			SenderID:  m.SenderID,
			Contents:  revs,
			Feedback:  fbs,
			CreatedAt: m.CreatedAt,
			Pinned:    m.Pinned,
		})
	}

	return domain.Rehydrate(
		id,
		header.CreatorID,
		header.Title,
		header.IsArchived,
		header.Version,
		header.CreatedAt,
		header.UpdatedAt,
		participants,
		rehydrated,
	), nil
}

// Save upserts the aggregate and its children in the caller's transaction.
//
// Optimistic concurrency: the header row is inserted with version 1 for a
// new aggregate, or updated with WHERE version = <loaded version> otherwise.
// Zero affected rows means a competing commit won; the error is a conflict
// and the caller re-loads and retries. On success the in-memory version is
// advanced to match the stored one.
//
// Child rows are append-only upserts: messages, revisions, feedback, and
// participants conflict-ignore on their primary keys, which also makes a
// retried send with the same client-supplied message UUID persist exactly
// one message. The pinned flag is the only mutable message column.
func (r *ConversationRepository) Save(ctx context.Context, c *domain.Conversation) error {
	tx := r.db.WithContext(ctx)

	if c.Version() == 0 {
		rec := ConversationRecord{
			ID:         c.ID().String(),
			CreatorID:  c.CreatorID(),
			Title:      c.Title(),
			IsArchived: c.Archived(),
			Version:    1,
			CreatedAt:  c.CreatedAt(),
			UpdatedAt:  c.UpdatedAt(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if res.Error != nil {
			return domain.Infraf(res.Error, "insert conversation %s", c.ID())
		}
		if res.RowsAffected == 0 {
			// An aggregate with this id already exists; the caller's view is
			// stale by construction.
			return domain.Conflictf("conversation %s already exists", c.ID())
		}
	} else {
		res := tx.Model(&ConversationRecord{}).
			Where("id = ? AND version = ?", c.ID().String(), c.Version()).
			Updates(map[string]any{
				"title":       c.Title(),
				"is_archived": c.Archived(),
				"version":     c.Version() + 1,
				"updated_at":  c.UpdatedAt(),
			})
		if res.Error != nil {
			return domain.Infraf(res.Error, "update conversation %s", c.ID())
		}
		if res.RowsAffected == 0 {
			return domain.Conflictf("conversation %s stale at version %d", c.ID(), c.Version())
		}
	}

	if err := r.saveChildren(tx, c); err != nil {
		return err
	}

	c.AdvanceVersion()
	return nil
}

func (r *ConversationRepository) saveChildren(tx *gorm.DB, c *domain.Conversation) error {
	convID := c.ID().String()

	var parts []ParticipantRecord
	for _, p := range c.Participants() {
		parts = append(parts, ParticipantRecord{
			ConversationID: convID,
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			Role:           string(p.Role),
		})
	}
	if len(parts) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&parts).Error; err != nil {
			return domain.Infraf(err, "save participants of %s", c.ID())
		}
	}

	var msgs []MessageRecord
	var contents []ContentRecord
	var fbs []FeedbackRecord
	for pos, m := range c.Messages() {
		msgs = append(msgs, MessageRecord{
			ID:             m.ID().String(),
			ConversationID: convID,
			SenderID:       m.SenderID(),
			Pinned:         m.Pinned(),
			Position:       pos,
			CreatedAt:      m.CreatedAt(),
		})
		for rev, cr := range m.Revisions() {
			contents = append(contents, ContentRecord{
				MessageID:     m.ID().String(),
				RevisionIndex: rev,
				Text:          cr.Text(),
				Response:      cr.Response(),
			})
		}
		for rev, fb := range m.FeedbackEntries() {
			fbs = append(fbs, FeedbackRecord{
				MessageID:     m.ID().String(),
				RevisionIndex: rev,
				Rating:        string(fb.Rating()),
				Comment:       fb.Comment(),
				CreatedAt:     time.Now().UTC(),
			})
		}
	}
	if len(msgs) > 0 {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"pinned"}),
		}).Create(&msgs).Error; err != nil {
			return domain.Infraf(err, "save messages of %s", c.ID())
		}
	}
	if len(contents) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&contents).Error; err != nil {
			return domain.Infraf(err, "save contents of %s", c.ID())
		}
	}
	if len(fbs) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fbs).Error; err != nil {
			return domain.Infraf(err, "save feedback of %s", c.ID())
		}
	}
	return nil
}

// ListByUser pages over the conversations the user participates in, ordered
// by (created_at, id) ascending with the id as a stable tie-break. cursor is
// the opaque token returned by a previous page, "" for the first page. The
// returned next cursor is "" on the last page.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, includeArchived bool, limit int, cursor string) ([]ConversationSummary, string, error) {
	limit = clampLimit(limit)

	q := r.db.WithContext(ctx).
		Model(&ConversationRecord{}).
		Joins("JOIN participants ON participants.conversation_id = conversations.id AND participants.user_id = ?", userID)
	if !includeArchived {
		q = q.Where("conversations.is_archived = ?", false)
	}
	if cursor != "" {
		ts, id, err := decodeTimeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		q = q.Where(
			"(conversations.created_at > ?) OR (conversations.created_at = ? AND conversations.id > ?)",
			ts, ts, id,
		)
	}

	var rows []ConversationRecord
	err := q.Order("conversations.created_at ASC, conversations.id ASC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, "", domain.Infraf(err, "list conversations for user %s", userID)
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = encodeTimeCursor(last.CreatedAt, last.ID)
	}

	out := make([]ConversationSummary, 0, len(rows))
	for _, rec := range rows {
		out = append(out, ConversationSummary{
			ID:         rec.ID,
			Title:      rec.Title,
			CreatorID:  rec.CreatorID,
			IsArchived: rec.IsArchived,
			CreatedAt:  rec.CreatedAt,
			UpdatedAt:  rec.UpdatedAt,
		})
	}
	return out, next, nil
}

// Messages pages over a conversation's messages in insertion order and
// shapes each into a view carrying its latest revision plus feedback.
func (r *ConversationRepository) Messages(ctx context.Context, conversationID uuid.UUID, limit int, cursor string) ([]MessageView, string, error) {
	limit = clampLimit(limit)

	var exists int64
	if err := r.db.WithContext(ctx).
		Model(&ConversationRecord{}).
		Where("id = ?", conversationID.String()).
		Count(&exists).Error; err != nil {
		return nil, "", domain.Infraf(err, "check conversation %s", conversationID)
	}
	if exists == 0 {
		return nil, "", domain.NotFoundf("conversation %s", conversationID)
	}

	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID.String())
	if cursor != "" {
		pos, err := decodePositionCursor(cursor)
		if err != nil {
			return nil, "", err
		}
		q = q.Where("position > ?", pos)
	}

	var msgs []MessageRecord
	if err := q.Order("position ASC").Limit(limit + 1).Find(&msgs).Error; err != nil {
		return nil, "", domain.Infraf(err, "list messages of %s", conversationID)
	}

	next := ""
	if len(msgs) > limit {
		msgs = msgs[:limit]
		next = encodePositionCursor(msgs[len(msgs)-1].Position)
	}
	if len(msgs) == 0 {
		return []MessageView{}, "", nil
	}

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	var crs []ContentRecord
	if err := r.db.WithContext(ctx).
		Where("message_id IN ?", ids).
		Order("message_id ASC, revision_index ASC").
		Find(&crs).Error; err != nil {
		return nil, "", domain.Infraf(err, "load contents of %s", conversationID)
	}
	latest := map[string]ContentRecord{}
	for _, cr := range crs {
		if cur, ok := latest[cr.MessageID]; !ok || cr.RevisionIndex > cur.RevisionIndex {
			latest[cr.MessageID] = cr
		}
	}

	var frs []FeedbackRecord
	if err := r.db.WithContext(ctx).
		Where("message_id IN ?", ids).
		Order("message_id ASC, revision_index ASC").
		Find(&frs).Error; err != nil {
		return nil, "", domain.Infraf(err, "load feedback of %s", conversationID)
	}
	fbByMsg := map[string][]FeedbackView{}
	for _, fr := range frs {
		fbByMsg[fr.MessageID] = append(fbByMsg[fr.MessageID], FeedbackView{
			Revision: fr.RevisionIndex,
			Rating:   fr.Rating,
			Comment:  fr.Comment,
		})
	}

	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		lc := latest[m.ID]
		out = append(out, MessageView{
			ID:        m.ID,
			SenderID:  m.SenderID,
			Position:  m.Position,
			Pinned:    m.Pinned,
			CreatedAt: m.CreatedAt,
			Revision:  lc.RevisionIndex,
			Text:      lc.Text,
			Response:  lc.Response,
			Feedback:  fbByMsg[m.ID],
		})
	}
	return out, next, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func encodeTimeCursor(ts time.Time, id string) string {
	return base64.RawURLEncoding.EncodeToString(
		[]byte(ts.UTC().Format(time.RFC3339Nano) + "|" + id),
	)
}

func decodeTimeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", domain.Validationf("malformed cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", domain.Validationf("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", domain.Validationf("malformed cursor")
	}
	return ts, parts[1], nil
}

func encodePositionCursor(pos int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(pos)))
}

func decodePositionCursor(cursor string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, domain.Validationf("malformed cursor")
	}
	pos, err := strconv.Atoi(string(raw))
	if err != nil || pos < 0 {
		return 0, domain.Validationf("malformed cursor")
	}
	return pos, nil
}
