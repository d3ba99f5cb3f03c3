package graph

// Permission scopes granted through the provider's OAuth consent. Each write
// operation requires a specific scope; callers check these before any network call.
const (
	ScopeBasic          = "instagram_business_basic"
	ScopeManageMessages = "instagram_business_manage_messages"
	ScopeManageComments = "instagram_manage_comments"
)

// Paging is the provider's opaque continuation envelope.
type Paging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next,omitempty"`
}

// After returns the opaque continuation cursor, or "" when the feed is exhausted.
// The provider omits "next" on the last page even when cursors are present.
func (p *Paging) After() string {
	if p == nil || p.Next == "" {
		return ""
	}
	return p.Cursors.After
}

// UserRef identifies a remote user inside nested payloads.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// Comment is a comment or nested reply on a media object.
type Comment struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Username  string       `json:"username,omitempty"`
	From      *UserRef     `json:"from,omitempty"`
	Timestamp string       `json:"timestamp"`
	Replies   *CommentList `json:"replies,omitempty"`
}

// CommentList is a nested, independently paginated comment collection.
type CommentList struct {
	Data   []Comment `json:"data"`
	Paging *Paging   `json:"paging,omitempty"`
}

// Media is one media object with its nested comment expansion.
type Media struct {
	ID        string       `json:"id"`
	Caption   string       `json:"caption,omitempty"`
	MediaType string       `json:"media_type,omitempty"`
	MediaURL  string       `json:"media_url,omitempty"`
	Permalink string       `json:"permalink,omitempty"`
	Timestamp string       `json:"timestamp"`
	Comments  *CommentList `json:"comments,omitempty"`
}

// MediaPage is one page of the media feed.
type MediaPage struct {
	Data   []Media `json:"data"`
	Paging *Paging `json:"paging,omitempty"`
}

// Message is one direct message inside a conversation expansion.
type Message struct {
	ID          string   `json:"id"`
	From        *UserRef `json:"from,omitempty"`
	Message     string   `json:"message"`
	CreatedTime string   `json:"created_time"`
}

// MessageList is the nested message collection of a conversation.
type MessageList struct {
	Data   []Message `json:"data"`
	Paging *Paging   `json:"paging,omitempty"`
}

// Conversation is one inbox thread with its nested message expansion.
type Conversation struct {
	ID           string       `json:"id"`
	UpdatedTime  string       `json:"updated_time"`
	Participants struct {
		Data []UserRef `json:"data"`
	} `json:"participants"`
	Messages *MessageList `json:"messages,omitempty"`
}

// ConversationPage is one page of the inbox listing.
type ConversationPage struct {
	Data   []Conversation `json:"data"`
	Paging *Paging        `json:"paging,omitempty"`
}

// UserProfile is the resolved display identity for a remote user id.
type UserProfile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name,omitempty"`
	ProfilePic string `json:"profile_pic,omitempty"`
}

// RefreshedToken is the provider's long-lived token refresh response.
type RefreshedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}
