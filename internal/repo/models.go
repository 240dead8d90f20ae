// Package repo implements the data persistence layer for the conversation
// aggregate, backed by GORM. This file defines the persisted record types.
// Records are a private mapping concern of this package; the rest of the
// system only ever sees the domain aggregate and the read DTOs.
package repo

import (
	"time"
)

// ConversationRecord is the aggregate header row.
//
// Version is the optimistic concurrency counter: Save only applies when the
// stored version matches the one the aggregate was loaded with.
type ConversationRecord struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	CreatorID  string    `gorm:"type:varchar(64);not null;index:idx_creator_convs"`
	Title      string    `gorm:"type:varchar(255);not null"`
	IsArchived bool      `gorm:"not null;default:false"`
	Version    int       `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"index:idx_conv_page,priority:1"`
	UpdatedAt  time.Time
}

// TableName returns the database table name for ConversationRecord.
func (ConversationRecord) TableName() string { return "conversations" }

// MessageRecord is one message of a conversation. Position is the insertion
// index, monotonic within a conversation; it is the authoritative ordering,
// CreatedAt is informational.
type MessageRecord struct {
	ID             string `gorm:"type:char(36);primaryKey"`
	ConversationID string `gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1;uniqueIndex:ux_conv_position"`
	SenderID       string `gorm:"type:varchar(64);not null"`
	Pinned         bool   `gorm:"not null;default:false"`
	Position       int    `gorm:"not null;index:idx_conv_msgs,priority:2;uniqueIndex:ux_conv_position"`
	CreatedAt      time.Time

	Conversation ConversationRecord `gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MessageRecord.
func (MessageRecord) TableName() string { return "messages" }

// ContentRecord is one content revision of a message.
type ContentRecord struct {
	MessageID     string `gorm:"type:char(36);primaryKey"`
	RevisionIndex int    `gorm:"primaryKey;autoIncrement:false"`
	Text          string `gorm:"type:text;not null"`
	Response      string `gorm:"type:text"`

	Message MessageRecord `gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ContentRecord.
func (ContentRecord) TableName() string { return "message_contents" }

// FeedbackRecord is the feedback attached to one content revision. The
// composite primary key enforces at most one row per (message, revision).
type FeedbackRecord struct {
	MessageID     string `gorm:"type:char(36);primaryKey"`
	RevisionIndex int    `gorm:"primaryKey;autoIncrement:false"`
	Rating        string `gorm:"type:varchar(16);not null;check:rating IN ('positive','negative','neutral')"`
	Comment       string `gorm:"type:text"`
	CreatedAt     time.Time

	Message MessageRecord `gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for FeedbackRecord.
func (FeedbackRecord) TableName() string { return "message_feedback" }

// ParticipantRecord is one member of a conversation.
type ParticipantRecord struct {
	ConversationID string `gorm:"type:char(36);primaryKey"`
	UserID         string `gorm:"type:varchar(64);primaryKey;index:idx_participant_user"`
	DisplayName    string `gorm:"type:varchar(255);not null"`
	Role           string `gorm:"type:varchar(16);not null;check:role IN ('owner','writer','reader')"`

	Conversation ConversationRecord `gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ParticipantRecord.
func (ParticipantRecord) TableName() string { return "participants" }
