// Package graph is the HTTP client for the Instagram/Meta Graph API. All calls
// carry explicit timeouts via context and translate non-2xx responses into
// *ProviderError so callers can classify failures without re-parsing bodies.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bizpulse/socialsync/internal/util"
)

// DefaultBaseURL is the Instagram Graph API root.
const DefaultBaseURL = "https://graph.instagram.com/v23.0"

const defaultTimeout = 30 * time.Second

// Default expansion sizes for one feed round trip: parent items with nested
// comments and nested replies fetched together to minimize call count.
const (
	DefaultMediaLimit   = 12
	DefaultCommentLimit = 20
	DefaultReplyLimit   = 20
)

// Client handles communication with the provider's Graph API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Graph client with the default endpoint and timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    DefaultBaseURL,
	}
}

// NewClientWithBaseURL creates a client pointed at an alternate endpoint.
// Tests point this at an httptest server.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
	}
}

// PageOptions bounds one list call. Zero values fall back to the defaults.
type PageOptions struct {
	After        string
	Limit        int
	CommentLimit int
	ReplyLimit   int
}

func (o PageOptions) limitOr(def int) int {
	if o.Limit > 0 {
		return o.Limit
	}
	return def
}

func (o PageOptions) commentLimitOr(def int) int {
	if o.CommentLimit > 0 {
		return o.CommentLimit
	}
	return def
}

func (o PageOptions) replyLimitOr(def int) int {
	if o.ReplyLimit > 0 {
		return o.ReplyLimit
	}
	return def
}

// ListMedia fetches one page of the account's media feed with nested comments
// and nested replies expanded in the same round trip.
func (c *Client) ListMedia(ctx context.Context, accessToken, igUserID string, opts PageOptions) (*MediaPage, error) {
	fields := fmt.Sprintf(
		"id,caption,media_type,media_url,permalink,timestamp,"+
			"comments.limit(%d){id,text,username,from,timestamp,replies.limit(%d){id,text,username,from,timestamp}}",
		opts.commentLimitOr(DefaultCommentLimit), opts.replyLimitOr(DefaultReplyLimit),
	)

	query := url.Values{}
	query.Set("fields", fields)
	query.Set("limit", strconv.Itoa(opts.limitOr(DefaultMediaLimit)))
	if opts.After != "" {
		query.Set("after", opts.After)
	}

	var page MediaPage
	if err := c.getJSON(ctx, accessToken, "/"+igUserID+"/media", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListConversations fetches one page of the account's message inbox with
// nested messages expanded.
func (c *Client) ListConversations(ctx context.Context, accessToken, igUserID string, opts PageOptions) (*ConversationPage, error) {
	query := url.Values{}
	query.Set("platform", "instagram")
	query.Set("fields", fmt.Sprintf(
		"id,updated_time,participants,messages.limit(%d){id,from,message,created_time}",
		opts.commentLimitOr(DefaultCommentLimit)))
	query.Set("limit", strconv.Itoa(opts.limitOr(DefaultMediaLimit)))
	if opts.After != "" {
		query.Set("after", opts.After)
	}

	var page ConversationPage
	if err := c.getJSON(ctx, accessToken, "/"+igUserID+"/conversations", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetUserProfile resolves a remote user id to its display identity.
func (c *Client) GetUserProfile(ctx context.Context, accessToken, remoteUserID string) (*UserProfile, error) {
	query := url.Values{}
	query.Set("fields", "id,username,name,profile_pic")

	var profile UserProfile
	if err := c.getJSON(ctx, accessToken, "/"+remoteUserID, query, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ReplyToComment posts a reply under an existing comment and returns the
// remote id of the created reply.
func (c *Client) ReplyToComment(ctx context.Context, accessToken, commentID, text string) (string, error) {
	payload := map[string]string{"message": text}

	var created struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, accessToken, "/"+commentID+"/replies", payload, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// SendMessage sends a direct message to a conversation participant and returns
// the remote message id.
func (c *Client) SendMessage(ctx context.Context, accessToken, igUserID, recipientID, text string) (string, error) {
	payload := map[string]interface{}{
		"recipient": map[string]string{"id": recipientID},
		"message":   map[string]string{"text": text},
	}

	var sent struct {
		RecipientID string `json:"recipient_id"`
		MessageID   string `json:"message_id"`
	}
	if err := c.postJSON(ctx, accessToken, "/"+igUserID+"/messages", payload, &sent); err != nil {
		return "", err
	}
	return sent.MessageID, nil
}

// ExchangeLongLivedToken trades the short-lived token from the OAuth code
// exchange for a long-lived (~60 day) token.
func (c *Client) ExchangeLongLivedToken(ctx context.Context, appSecret, shortLivedToken string) (*RefreshedToken, error) {
	query := url.Values{}
	query.Set("grant_type", "ig_exchange_token")
	query.Set("client_secret", appSecret)

	var exchanged RefreshedToken
	if err := c.getJSON(ctx, shortLivedToken, "/access_token", query, &exchanged); err != nil {
		return nil, err
	}
	return &exchanged, nil
}

// RefreshAccessToken refreshes a long-lived token before it expires.
func (c *Client) RefreshAccessToken(ctx context.Context, accessToken string) (*RefreshedToken, error) {
	query := url.Values{}
	query.Set("grant_type", "ig_refresh_token")

	var refreshed RefreshedToken
	if err := c.getJSON(ctx, accessToken, "/refresh_access_token", query, &refreshed); err != nil {
		return nil, err
	}
	return &refreshed, nil
}

// getJSON performs a GET and decodes a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, accessToken, path string, query url.Values, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, accessToken, path, query, nil, out)
}

// postJSON performs a POST with a JSON body and decodes a 2xx body into out.
func (c *Client) postJSON(ctx context.Context, accessToken, path string, payload, out interface{}) error {
	return c.doJSON(ctx, http.MethodPost, accessToken, path, nil, payload, out)
}

func (c *Client) doJSON(ctx context.Context, method, accessToken, path string, query url.Values, payload, out interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body *bytes.Buffer
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)

		if util.IsVerbose() {
			log.Printf("🔄 [VERBOSE] Graph API request %s %s: %s", method, path, util.TruncateBytes(jsonData))
		}
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, reqURL, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, reqURL, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseErrorResponse(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
