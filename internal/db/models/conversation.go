package models

import "time"

// Conversation is one direct-message thread per (owning account, provider, remote
// conversation id). Created on the first webhook or sync touching the thread.
type Conversation struct {
	ID                   string `gorm:"primaryKey"` // UUID
	AccountID            string `gorm:"uniqueIndex:idx_conv_remote"`
	Provider             string `gorm:"uniqueIndex:idx_conv_remote"`
	RemoteConversationID string `gorm:"uniqueIndex:idx_conv_remote"`
	RemoteThreadID       string `gorm:"index"` // provider thread id when known (bulk sync only)
	ParticipantID        string `gorm:"index"` // remote user id of the other party
	ParticipantName      string // cached display name, filled lazily by identity cache
	LastMessageAt        time.Time
	UnreadCount          int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// MessageDirection distinguishes inbound from outbound messages.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// Message is one row per (conversation, remote message id); the remote message id
// is the idempotency key, so duplicate webhook deliveries collapse into one row.
type Message struct {
	ID              string `gorm:"primaryKey"` // UUID
	ConversationID  string `gorm:"uniqueIndex:idx_msg_remote"`
	RemoteMessageID string `gorm:"uniqueIndex:idx_msg_remote"`
	Direction       MessageDirection
	SenderID        string
	Text            string `gorm:"type:text"`
	SentAt          time.Time
	CreatedAt       time.Time
}
