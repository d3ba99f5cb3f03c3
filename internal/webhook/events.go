package webhook

import "time"

// Envelope is the provider's webhook delivery body:
// { object, entry: [{ id, messaging?, changes? }] }.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups the events delivered for one provider account.
type Entry struct {
	ID        string          `json:"id"`   // remote account id the events belong to
	Time      int64           `json:"time"` // epoch millis
	Messaging []MessagingItem `json:"messaging,omitempty"`
	Changes   []ChangeItem    `json:"changes,omitempty"`
}

// MessagingItem is one direct-message delivery.
type MessagingItem struct {
	Sender    idRef  `json:"sender"`
	Recipient idRef  `json:"recipient"`
	Timestamp int64  `json:"timestamp"` // epoch millis
	Message   *struct {
		MID    string `json:"mid"`
		Text   string `json:"text"`
		IsEcho bool   `json:"is_echo"`
	} `json:"message,omitempty"`
}

// ChangeItem is one field-change notification (comments, mentions, ...).
type ChangeItem struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue is the comment payload inside a "comments" change.
type ChangeValue struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	From      idRef  `json:"from"`
	Timestamp string `json:"timestamp,omitempty"`
	Media     struct {
		ID string `json:"id"`
	} `json:"media"`
}

type idRef struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// EventKind is the closed set of canonical event kinds the ingestor understands.
// Adding a kind means adding a case to the apply switch, which the compiler
// checks via the default panic in tests.
type EventKind int

const (
	// KindMessage is a direct message delivered or echoed on a conversation.
	KindMessage EventKind = iota
	// KindComment is a comment created on one of the account's media objects.
	KindComment
)

// Event is the canonical, normalized form of one webhook event. Exactly one of
// the payload fields matching Kind is non-nil.
type Event struct {
	Kind    EventKind
	Message *MessageEvent
	Comment *CommentEvent
}

// MessageEvent is a normalized direct-message mutation.
type MessageEvent struct {
	RemoteMessageID string
	SenderID        string
	RecipientID     string
	Text            string
	SentAt          time.Time
	IsEcho          bool
}

// CommentEvent is a normalized comment mutation.
type CommentEvent struct {
	RemoteCommentID string
	RemoteMediaID   string
	AuthorID        string
	AuthorUsername  string
	Text            string
	CommentedAt     time.Time
}

// parseGraphTime handles the provider's "+0000" timestamp variant alongside
// strict RFC3339. Unparseable values fall back to receipt time.
func parseGraphTime(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now()
}

// normalizeEntry maps one raw entry to its canonical events. Unknown change
// fields yield no events; the provider adds fields faster than we adopt them.
func normalizeEntry(entry Entry) []Event {
	var events []Event

	for _, item := range entry.Messaging {
		if item.Message == nil || item.Message.MID == "" {
			continue
		}
		events = append(events, Event{
			Kind: KindMessage,
			Message: &MessageEvent{
				RemoteMessageID: item.Message.MID,
				SenderID:        item.Sender.ID,
				RecipientID:     item.Recipient.ID,
				Text:            item.Message.Text,
				SentAt:          time.UnixMilli(item.Timestamp),
				IsEcho:          item.Message.IsEcho,
			},
		})
	}

	for _, change := range entry.Changes {
		if change.Field != "comments" || change.Value.ID == "" {
			continue
		}
		commentedAt := parseGraphTime(change.Value.Timestamp)
		events = append(events, Event{
			Kind: KindComment,
			Comment: &CommentEvent{
				RemoteCommentID: change.Value.ID,
				RemoteMediaID:   change.Value.Media.ID,
				AuthorID:        change.Value.From.ID,
				AuthorUsername:  change.Value.From.Username,
				Text:            change.Value.Text,
				CommentedAt:     commentedAt,
			},
		})
	}

	return events
}
