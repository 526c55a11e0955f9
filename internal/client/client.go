// Package client talks to a lanes server over its HTTP API and websocket
// change feed. A Client plugs straight into the board loader, the drag
// controller and the realtime reconciler.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/lanes/internal/domain"
)

const apiPrefix = "/api/v1"

// APIError is a non-2xx answer from the server. It unwraps to the matching
// domain sentinel so callers can use errors.Is(err, domain.ErrNotFound).
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("lanes api: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("lanes api: %d %s", e.Status, e.Title)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrInvalid
	default:
		return nil
	}
}

// Client is an authenticated lanes API client.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for the server at baseURL using a bearer token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client.New: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client.New: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		base:  u,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CurrentUser returns the user the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &u); err != nil {
		return nil, fmt.Errorf("client.CurrentUser: %w", err)
	}
	return &u, nil
}

func (c *Client) ListBoards(ctx context.Context) ([]*domain.Board, error) {
	var out []*domain.Board
	if err := c.do(ctx, http.MethodGet, "/boards", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListBoards: %w", err)
	}
	return out, nil
}

func (c *Client) CreateBoard(ctx context.Context, name string) (*domain.Board, error) {
	var b domain.Board
	if err := c.do(ctx, http.MethodPost, "/boards", nil, map[string]any{"name": name}, &b); err != nil {
		return nil, fmt.Errorf("client.CreateBoard: %w", err)
	}
	return &b, nil
}

func (c *Client) GetBoard(ctx context.Context, boardID uuid.UUID) (*domain.Board, error) {
	var b domain.Board
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID.String(), nil, nil, &b); err != nil {
		return nil, fmt.Errorf("client.GetBoard: %w", err)
	}
	return &b, nil
}

// GetMembership returns the caller's own membership row. The server only
// reveals the caller's row, so userID must be the token's user.
func (c *Client) GetMembership(ctx context.Context, boardID, _ uuid.UUID) (*domain.Membership, error) {
	var m domain.Membership
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID.String()+"/membership", nil, nil, &m); err != nil {
		return nil, fmt.Errorf("client.GetMembership: %w", err)
	}
	return &m, nil
}

func (c *Client) ListColumns(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	var out []*domain.Column
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID.String()+"/columns", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListColumns: %w", err)
	}
	return out, nil
}

func (c *Client) CreateColumn(ctx context.Context, boardID uuid.UUID, name string) (*domain.Column, error) {
	var col domain.Column
	path := "/boards/" + boardID.String() + "/columns"
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]any{"name": name}, &col); err != nil {
		return nil, fmt.Errorf("client.CreateColumn: %w", err)
	}
	return &col, nil
}

// ListTasksByColumns fetches every task whose column is in columnIDs.
func (c *Client) ListTasksByColumns(ctx context.Context, columnIDs []uuid.UUID) ([]*domain.Task, error) {
	if len(columnIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(columnIDs))
	for i, id := range columnIDs {
		ids[i] = id.String()
	}
	q := url.Values{"column_id": {strings.Join(ids, ",")}}

	var out []*domain.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListTasksByColumns: %w", err)
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, columnID uuid.UUID, title string) (*domain.Task, error) {
	var t domain.Task
	path := "/columns/" + columnID.String() + "/tasks"
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]any{"title": title}, &t); err != nil {
		return nil, fmt.Errorf("client.CreateTask: %w", err)
	}
	return &t, nil
}

// UpdatePlacement overwrites column_id and position of one task.
func (c *Client) UpdatePlacement(ctx context.Context, id, columnID uuid.UUID, position int) error {
	body := map[string]any{"column_id": columnID, "position": position}
	if err := c.do(ctx, http.MethodPut, "/tasks/"+id.String()+"/placement", nil, body, nil); err != nil {
		return fmt.Errorf("client.UpdatePlacement: %w", err)
	}
	return nil
}

func (c *Client) ListMembers(ctx context.Context, boardID uuid.UUID) ([]*domain.Membership, error) {
	var out []*domain.Membership
	if err := c.do(ctx, http.MethodGet, "/boards/"+boardID.String()+"/members", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListMembers: %w", err)
	}
	return out, nil
}

func (c *Client) ListNotifications(ctx context.Context, limit int) ([]*domain.Notification, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var out []*domain.Notification
	if err := c.do(ctx, http.MethodGet, "/notifications", q, nil, &out); err != nil {
		return nil, fmt.Errorf("client.ListNotifications: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path = c.base.Path + apiPrefix + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &problem); err == nil {
		if problem.Title != "" {
			apiErr.Title = problem.Title
		}
		apiErr.Detail = problem.Detail
	}
	return apiErr
}
