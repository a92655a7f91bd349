// Package rest is the request/response client for the chat server API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatsync/internal/wire"
)

// ErrUnauthorized is returned for 401 responses.
var ErrUnauthorized = errors.New("rest: unauthorized")

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// maxErrorBody caps the response body kept on a StatusError.
const maxErrorBody = 512

// Client talks to the REST API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.Named("rest")
	return c
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (wire.User, error) {
	var u wire.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &u)
	return u, err
}

// DirectHistory returns messages exchanged between self and peer in ascending
// order. A limit of zero returns everything.
func (c *Client) DirectHistory(ctx context.Context, self, peer string, limit int) ([]wire.Message, error) {
	q := url.Values{}
	q.Set("sender_id", self)
	q.Set("receiver_id", peer)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []wire.Message
	err := c.do(ctx, http.MethodGet, "/messages", q, nil, &out)
	return out, err
}

// GroupHistory returns messages of a group in ascending order.
func (c *Client) GroupHistory(ctx context.Context, groupID string, limit int) ([]wire.Message, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []wire.Message
	err := c.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID)+"/messages", q, nil, &out)
	return out, err
}

// Conversations returns one summary per conversation, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]wire.ConversationSummary, error) {
	var out []wire.ConversationSummary
	err := c.do(ctx, http.MethodGet, "/messages/conversations", nil, nil, &out)
	return out, err
}

// Groups returns the groups the user belongs to.
func (c *Client) Groups(ctx context.Context) ([]wire.Group, error) {
	var out []wire.Group
	err := c.do(ctx, http.MethodGet, "/groups", nil, nil, &out)
	return out, err
}

// Friends returns the friend list with each friend's presence status.
func (c *Client) Friends(ctx context.Context) ([]wire.User, error) {
	var out []wire.User
	err := c.do(ctx, http.MethodGet, "/users/friends", nil, nil, &out)
	return out, err
}

// FriendRequests returns pending incoming friend requests.
func (c *Client) FriendRequests(ctx context.Context) ([]wire.FriendRequest, error) {
	var out []wire.FriendRequest
	err := c.do(ctx, http.MethodGet, "/users/friend-requests", nil, nil, &out)
	return out, err
}

// Accept accepts the friend request from userID.
func (c *Client) Accept(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/accept", nil, struct{}{}, nil)
}

// Reject rejects the friend request from userID.
func (c *Client) Reject(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/reject", nil, struct{}{}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("code", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
