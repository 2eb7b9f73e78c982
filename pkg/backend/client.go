package backend

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

	"opschat/pkg/httpx"
	"opschat/pkg/models"
	"opschat/pkg/session"
)

// APIError is a non-2xx response from the backend store.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// CreateRoomRequest is the provisioning payload for POST /rooms.
type CreateRoomRequest struct {
	ParticipantIDs []string `json:"participantIds"`
	IsGroup        bool     `json:"isGroup"`
	Name           string   `json:"name,omitempty"`
}

type sendMessageRequest struct {
	RoomID      string              `json:"roomId"`
	Content     string              `json:"content"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// Client talks to the backend store over request/response calls. Every call
// carries the session's bearer token; absence of a token short-circuits the
// call with session.ErrNoSession rather than going out unauthenticated.
type Client struct {
	base    string
	doer    httpx.Doer
	session *session.Session
}

// New returns a Client for the given base URL. The base is trimmed of any
// trailing slash so paths can be appended directly.
func New(baseURL string, doer httpx.Doer, sess *session.Session) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid backend base URL %s: %w", baseURL, err)
	}
	if doer == nil {
		doer = httpx.NewNetHTTPDoer(15 * time.Second)
	}
	return &Client{base: base, doer: doer, session: sess}, nil
}

// ListRooms fetches the actor's conversation rooms, ordered by the backend
// (updatedAt descending).
func (c *Client) ListRooms(ctx context.Context) ([]models.Room, error) {
	var out []models.Room
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages fetches the ordered message history of one room.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	q := url.Values{"roomId": {roomID}}
	var out []models.Message
	if err := c.do(ctx, http.MethodGet, "/messages", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage issues the durable write and returns the canonical record with
// its backend-assigned id and authoritative createdAt.
func (c *Client) SendMessage(ctx context.Context, roomID, content string, attachments []models.Attachment) (models.Message, error) {
	body := sendMessageRequest{RoomID: roomID, Content: content, Attachments: attachments}
	var out models.Message
	if err := c.do(ctx, http.MethodPost, "/messages", nil, body, &out); err != nil {
		return models.Message{}, err
	}
	return out, nil
}

// CreateRoom provisions a new direct or group room.
func (c *Client) CreateRoom(ctx context.Context, req CreateRoomRequest) (models.Room, error) {
	var out models.Room
	if err := c.do(ctx, http.MethodPost, "/rooms", nil, req, &out); err != nil {
		return models.Room{}, err
	}
	return out, nil
}

// ListStaff fetches internal participant candidates.
func (c *Client) ListStaff(ctx context.Context) ([]models.Actor, error) {
	var out []models.Actor
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCustomers fetches external customer-contact candidates.
func (c *Client) ListCustomers(ctx context.Context) ([]models.Actor, error) {
	var out []models.Actor
	if err := c.do(ctx, http.MethodGet, "/customers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	token, ok := c.session.Token()
	if !ok {
		return session.ErrNoSession
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &APIError{Status: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
