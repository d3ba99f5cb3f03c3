// Package sync implements cursor-paginated bulk reconciliation against the
// provider API. Webhooks are a hint; a pull sync is the source of truth and is
// safe to run at any time, regardless of what webhook deliveries did or did
// not arrive.
package sync

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/bizpulse/socialsync/internal/auth/token"
	"github.com/bizpulse/socialsync/internal/db"
	"github.com/bizpulse/socialsync/internal/db/models"
	"github.com/bizpulse/socialsync/internal/graph"
	"gorm.io/gorm"
)

// RequiredScopes is the full scope set the sync engine can make use of. The
// granted-vs-required delta is reported through SyncState for diagnostics.
var RequiredScopes = []string{
	graph.ScopeBasic,
	graph.ScopeManageMessages,
	graph.ScopeManageComments,
}

// maxSyncPages bounds a runaway full sync against a misbehaving cursor.
const maxSyncPages = 50

// ErrPageLimit marks a sync that stopped at the page cap with the remote feed
// not yet exhausted. The resume cursor in SyncState picks up from there.
var ErrPageLimit = errors.New("sync stopped at the page limit before the cursor was exhausted")

// Orchestrator drives paginated pulls and merges them into the local store.
type Orchestrator struct {
	db     *gorm.DB
	graph  *graph.Client
	tokens *token.Manager
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(database *gorm.DB, graphClient *graph.Client, tokens *token.Manager) *Orchestrator {
	return &Orchestrator{db: database, graph: graphClient, tokens: tokens}
}

// Page is one caller-visible page of the media feed.
type Page struct {
	Items      []graph.Media `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// SyncPage fetches one feed page (media with nested comments and replies in a
// single round trip), persists the comments it saw, and returns the raw items
// plus the opaque continuation cursor.
func (o *Orchestrator) SyncPage(ctx context.Context, accountID, cursor string, opts graph.PageOptions) (*Page, error) {
	conn, err := o.tokens.ValidToken(ctx, accountID, "")
	if err != nil {
		return nil, err
	}

	opts.After = cursor
	mediaPage, err := o.graph.ListMedia(ctx, conn.AccessToken, conn.RemoteAccountID, opts)
	if err != nil {
		return nil, err
	}

	for i := range mediaPage.Data {
		o.persistMediaComments(conn, &mediaPage.Data[i])
	}

	return &Page{
		Items:      mediaPage.Data,
		NextCursor: mediaPage.Paging.After(),
	}, nil
}

// Result is the outcome of a full sync. Err is a terminal error marker, not an
// exception: accumulated items from pages before the failure are preserved and
// the caller decides whether partial data counts as success.
type Result struct {
	Items         []graph.Media `json:"items"`
	Pages         int           `json:"pages"`
	Conversations int           `json:"conversations"`
	Err           error         `json:"-"`
	ErrMessage    string        `json:"error,omitempty"`
	MissingScopes []string      `json:"missing_scopes,omitempty"`

	// ResumeCursor is the cursor of the page that failed, recorded so a later
	// sync can pick up where this one stopped. Empty on full success.
	ResumeCursor string `json:"resume_cursor,omitempty"`
}

// FullSync pulls the media feed and the message inbox page by page until the
// cursor is exhausted or a page fails, deduplicating items across pages, then
// records the outcome in SyncState.
func (o *Orchestrator) FullSync(ctx context.Context, accountID string) *Result {
	result := &Result{}

	conn, err := o.tokens.ValidToken(ctx, accountID, "")
	if err != nil {
		result.Err = err
		result.ErrMessage = err.Error()
		o.recordSyncState(accountID, nil, result)
		return result
	}
	result.MissingScopes = token.MissingScopes(conn, RequiredScopes)

	seen := make(map[string]struct{})
	cursor := ""
	for page := 0; page < maxSyncPages; page++ {
		pageResult, err := o.SyncPage(ctx, accountID, cursor, graph.PageOptions{})
		if err != nil {
			// Partial failure: keep everything accumulated so far.
			result.Err = err
			result.ErrMessage = err.Error()
			result.ResumeCursor = cursor
			break
		}
		result.Pages++

		// Provider pagination can return overlapping items across pages when
		// the remote side mutates concurrently; dedupe before appending.
		for _, item := range pageResult.Items {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			result.Items = append(result.Items, item)
		}

		cursor = pageResult.NextCursor
		if cursor == "" {
			break
		}
	}

	// Hitting the cap with pages still remaining is a truncation, not a clean
	// finish; surface it like any other partial failure so it lands in SyncState.
	if result.Err == nil && cursor != "" {
		result.Err = ErrPageLimit
		result.ErrMessage = ErrPageLimit.Error()
		result.ResumeCursor = cursor
	}

	if result.Err == nil {
		if convCount, err := o.syncConversations(ctx, conn); err != nil {
			result.Err = err
			result.ErrMessage = err.Error()
		} else {
			result.Conversations = convCount
		}
	}

	o.recordSyncState(accountID, conn, result)
	if result.Err != nil {
		log.Printf("⚠️ Full sync for account %s ended with partial data (%d items): %v",
			accountID, len(result.Items), result.Err)
	} else {
		log.Printf("✅ Full sync for account %s: %d items across %d pages, %d conversations",
			accountID, len(result.Items), result.Pages, result.Conversations)
	}
	return result
}

// syncConversations pulls the message inbox and merges threads and messages
// into the store. Returns the number of conversations touched.
func (o *Orchestrator) syncConversations(ctx context.Context, conn *models.Connection) (int, error) {
	if !token.HasScope(conn, graph.ScopeManageMessages) {
		// Inbox access needs the messaging scope; skip rather than fail the
		// whole sync, the scope delta already reports it.
		return 0, nil
	}

	total := 0
	cursor := ""
	for page := 0; page < maxSyncPages; page++ {
		convPage, err := o.graph.ListConversations(ctx, conn.AccessToken, conn.RemoteAccountID,
			graph.PageOptions{After: cursor})
		if err != nil {
			return total, err
		}

		for i := range convPage.Data {
			if err := o.mergeConversation(conn, &convPage.Data[i]); err != nil {
				return total, err
			}
			total++
		}

		cursor = convPage.Paging.After()
		if cursor == "" {
			break
		}
	}
	return total, nil
}

func (o *Orchestrator) mergeConversation(conn *models.Connection, remote *graph.Conversation) error {
	participantID := ""
	for _, p := range remote.Participants.Data {
		if p.ID != conn.RemoteAccountID {
			participantID = p.ID
			break
		}
	}
	if participantID == "" {
		return nil
	}

	lastMessageAt := parseGraphTime(remote.UpdatedTime)
	conv, err := db.UpsertConversation(o.db, &models.Conversation{
		AccountID:            conn.AccountID,
		Provider:             conn.Provider,
		RemoteConversationID: participantID,
		ParticipantID:        participantID,
		LastMessageAt:        lastMessageAt,
	})
	if err != nil {
		return err
	}
	if conv.RemoteThreadID != remote.ID {
		o.db.Model(&models.Conversation{}).Where("id = ?", conv.ID).
			Update("remote_thread_id", remote.ID)
	}

	if remote.Messages == nil {
		return nil
	}
	for _, msg := range remote.Messages.Data {
		direction := models.DirectionInbound
		senderID := participantID
		if msg.From != nil {
			senderID = msg.From.ID
			if msg.From.ID == conn.RemoteAccountID {
				direction = models.DirectionOutbound
			}
		}
		inserted, err := db.InsertMessageIfAbsent(o.db, &models.Message{
			ConversationID:  conv.ID,
			RemoteMessageID: msg.ID,
			Direction:       direction,
			SenderID:        senderID,
			Text:            msg.Message,
			SentAt:          parseGraphTime(msg.CreatedTime),
		})
		if err != nil {
			return err
		}
		if inserted && direction == models.DirectionInbound {
			if err := db.IncrementUnread(o.db, conv.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// persistMediaComments walks a media item's nested comment expansion and
// upserts every foreign comment. A nested reply authored by the connected
// account marks its parent as replied, reconciling replies posted elsewhere.
func (o *Orchestrator) persistMediaComments(conn *models.Connection, media *graph.Media) {
	if media.Comments == nil {
		return
	}
	for i := range media.Comments.Data {
		comment := &media.Comments.Data[i]
		authorID, authorName := commentAuthor(comment)
		if authorID == conn.RemoteAccountID {
			continue
		}

		err := db.UpsertComment(o.db, &models.Comment{
			AccountID:       conn.AccountID,
			RemoteMediaID:   media.ID,
			RemoteCommentID: comment.ID,
			Text:            comment.Text,
			AuthorID:        authorID,
			AuthorUsername:  authorName,
			CommentedAt:     parseGraphTime(comment.Timestamp),
		})
		if err != nil {
			log.Printf("⚠️ Failed to upsert comment %s: %v", comment.ID, err)
			continue
		}

		if comment.Replies == nil {
			continue
		}
		for _, reply := range comment.Replies.Data {
			replyAuthor, _ := commentAuthor(&reply)
			if replyAuthor != conn.RemoteAccountID {
				continue
			}
			o.db.Model(&models.Comment{}).
				Where("account_id = ? AND remote_comment_id = ? AND replied = ?", conn.AccountID, comment.ID, false).
				Updates(map[string]interface{}{
					"replied":      true,
					"reply_text":   reply.Text,
					"reply_status": models.ReplyStatusSent,
					"replied_at":   parseGraphTime(reply.Timestamp),
				})
		}
	}
}

func commentAuthor(c *graph.Comment) (id, username string) {
	if c.From != nil {
		return c.From.ID, firstNonEmpty(c.From.Username, c.Username)
	}
	return "", c.Username
}

// recordSyncState persists the sync-health singleton. conn may be nil when the
// sync failed before authentication.
func (o *Orchestrator) recordSyncState(accountID string, conn *models.Connection, result *Result) {
	state := &models.SyncState{
		AccountID: accountID,
		Provider:  token.Provider,
		LastError: result.ErrMessage,
		Cursor:    result.ResumeCursor,
	}
	if result.Err == nil {
		state.LastSyncAt = time.Now()
	} else if prior, err := o.State(accountID); err == nil {
		state.LastSyncAt = prior.LastSyncAt
	}
	if conn != nil {
		state.GrantedScopes = conn.Scopes
		state.MissingScopes = marshalScopes(result.MissingScopes)
	}
	if err := db.UpsertSyncState(o.db, state); err != nil {
		log.Printf("⚠️ Failed to record sync state for account %s: %v", accountID, err)
	}
}

// State returns the stored sync-health record for an account.
func (o *Orchestrator) State(accountID string) (*models.SyncState, error) {
	var state models.SyncState
	err := o.db.Where("account_id = ? AND provider = ?", accountID, token.Provider).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
