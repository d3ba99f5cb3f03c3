package models

import "time"

// ReplyStatus tracks the lifecycle of an outbound comment reply.
type ReplyStatus string

const (
	ReplyStatusNone    ReplyStatus = ""
	ReplyStatusSent    ReplyStatus = "sent"
	ReplyStatusPending ReplyStatus = "pending"
)

// Comment is one row per (owning account, remote media id, remote comment id).
// Created by sync or webhook; mutated when a reply is posted.
type Comment struct {
	ID              string `gorm:"primaryKey"` // UUID
	AccountID       string `gorm:"uniqueIndex:idx_comment_remote"`
	RemoteMediaID   string `gorm:"uniqueIndex:idx_comment_remote"`
	RemoteCommentID string `gorm:"uniqueIndex:idx_comment_remote"`
	Text            string `gorm:"type:text"`
	AuthorID        string `gorm:"index"`
	AuthorUsername  string
	Replied         bool        `gorm:"default:false"`
	ReplyText       string      `gorm:"type:text"`
	ReplyStatus     ReplyStatus `gorm:"default:''"`
	RepliedAt       time.Time
	CommentedAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
