// Package figma is the REST collaborator behind the comment, reaction, and
// config commands. It holds the credential blob and shapes upstream
// failures into the command error taxonomy.
package figma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/protocol"
)

const (
	// DefaultAPIBase is the production REST endpoint.
	DefaultAPIBase = "https://api.figma.com"

	// excerptLimit bounds how much of an upstream error body is carried in
	// the command error.
	excerptLimit = 1024

	// responseLimit bounds a successful response body. Comment threads on
	// large files stay far below this.
	responseLimit = 8 << 20
)

// Client calls the REST API with the stored credentials. Safe for
// concurrent use; only the default file key is mutable.
type Client struct {
	base       string
	httpClient *http.Client
	logger     zerolog.Logger

	mu    sync.RWMutex
	creds Credentials
}

// NewClient builds a client for the given API base. An empty base selects
// production.
func NewClient(base string, creds Credentials, logger zerolog.Logger) *Client {
	if base == "" {
		base = DefaultAPIBase
	}
	return &Client{
		base:       base,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With().Str("component", "figma").Logger(),
		creds:      creds,
	}
}

// APIBase returns the configured endpoint.
func (c *Client) APIBase() string { return c.base }

// Authenticated reports whether an access token is present. It does not
// verify the token upstream.
func (c *Client) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.AccessToken != ""
}

// DefaultFileKey returns the file key used when a command omits one.
func (c *Client) DefaultFileKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.DefaultFileKey
}

// SetDefaultFileKey overrides the default for this run. It does not write
// the credential blob back to disk.
func (c *Client) SetDefaultFileKey(fileKey string) {
	c.mu.Lock()
	c.creds.DefaultFileKey = fileKey
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds.AccessToken
}

// GetComments fetches the comment threads of a file. asMarkdown requests
// message bodies rendered as markdown.
func (c *Client) GetComments(ctx context.Context, fileKey string, asMarkdown bool) (json.RawMessage, error) {
	path := fmt.Sprintf("/v1/files/%s/comments", url.PathEscape(fileKey))
	if asMarkdown {
		path += "?as_md=true"
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

// PostComment creates a comment. With a node id the comment anchors to the
// node at the given offset; otherwise x,y are absolute canvas coordinates.
func (c *Client) PostComment(ctx context.Context, fileKey, message, nodeID string, x, y float64) (json.RawMessage, error) {
	body := map[string]any{"message": message}
	if nodeID != "" {
		body["client_meta"] = map[string]any{
			"node_id":     nodeID,
			"node_offset": map[string]float64{"x": x, "y": y},
		}
	} else {
		body["client_meta"] = map[string]float64{"x": x, "y": y}
	}
	path := fmt.Sprintf("/v1/files/%s/comments", url.PathEscape(fileKey))
	return c.do(ctx, http.MethodPost, path, body)
}

// ReplyComment appends a reply to an existing comment thread.
func (c *Client) ReplyComment(ctx context.Context, fileKey, commentID, message string) (json.RawMessage, error) {
	body := map[string]any{"message": message, "comment_id": commentID}
	path := fmt.Sprintf("/v1/files/%s/comments", url.PathEscape(fileKey))
	return c.do(ctx, http.MethodPost, path, body)
}

// PostReaction adds an emoji reaction to a comment.
func (c *Client) PostReaction(ctx context.Context, fileKey, commentID, emoji string) (json.RawMessage, error) {
	body := map[string]any{"emoji": emoji}
	path := fmt.Sprintf("/v1/files/%s/comments/%s/reactions",
		url.PathEscape(fileKey), url.PathEscape(commentID))
	return c.do(ctx, http.MethodPost, path, body)
}

// GetReactions lists reactions on a comment, paged by cursor.
func (c *Client) GetReactions(ctx context.Context, fileKey, commentID, cursor string) (json.RawMessage, error) {
	path := fmt.Sprintf("/v1/files/%s/comments/%s/reactions",
		url.PathEscape(fileKey), url.PathEscape(commentID))
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

// DeleteReaction removes one of the caller's reactions from a comment.
func (c *Client) DeleteReaction(ctx context.Context, fileKey, commentID, emoji string) (json.RawMessage, error) {
	path := fmt.Sprintf("/v1/files/%s/comments/%s/reactions?emoji=%s",
		url.PathEscape(fileKey), url.PathEscape(commentID), url.QueryEscape(emoji))
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do issues one authenticated request and maps failures onto the command
// error taxonomy. The request never runs without a token.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	token := c.token()
	if token == "" {
		return nil, protocol.Errorf(protocol.KindUnauthenticated,
			"no access token; sign in through the desktop app or set FIGMA_ACCESS_TOKEN")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, protocol.Errorf(protocol.KindInternal, "encoding request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, protocol.Errorf(protocol.KindInternal, "building request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection refused or client timeout: the API is unreachable,
		// not misused.
		return nil, protocol.Errorf(protocol.KindUpstream, "calling REST API: %v", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().Str("method", method).Str("path", path).
		Int("status", resp.StatusCode).Dur("took", time.Since(started)).Msg("REST call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, excerptLimit))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &protocol.CommandError{
				Kind:    protocol.KindUnauthenticated,
				Message: "REST API rejected the credentials",
				Status:  resp.StatusCode,
				Excerpt: string(excerpt),
			}
		}
		return nil, protocol.UpstreamError(resp.StatusCode, string(excerpt),
			fmt.Sprintf("REST API returned %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseLimit))
	if err != nil {
		return nil, protocol.Errorf(protocol.KindInternal, "reading response: %v", err)
	}
	if len(raw) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(raw) {
		// Non-JSON 2xx bodies become a JSON string so replies stay well-formed.
		quoted, _ := json.Marshal(string(raw))
		return quoted, nil
	}
	return raw, nil
}
