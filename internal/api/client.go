// Package api is the bulk data provider: a thin client for the VRChat HTTP
// API, authenticated with the stored login cookie. Responses are JSON decoded
// by the caller-facing methods; transport errors are returned, never retried
// here (retry policy belongs to the session layer).
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/angelware-net/spectre/internal/proto"
)

type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client

	cookies *CookieStore
}

func NewClient(baseURL, userAgent string, timeout time.Duration, cookies *CookieStore) *Client {
	return &Client{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		HTTP: &http.Client{
			Timeout: timeout,
		},
		cookies: cookies,
	}
}

// Cookies exposes the underlying cookie store (the session manager needs the
// auth token for the websocket handshake).
func (c *Client) Cookies() *CookieStore {
	return c.cookies
}

// getJSON performs an authenticated GET, drains the response body, and
// decodes JSON into v. Non-2xx statuses are errors; 401 means the cookie is
// stale and surfaces as ErrNoCookie so callers treat it as an auth failure.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	if cookie, err := c.cookies.Load(); err == nil {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNoCookie
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("GET %s: status %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// ListFriends fetches the full online friend list in one call.
func (c *Client) ListFriends(ctx context.Context) ([]proto.Friend, error) {
	var friends []proto.Friend
	if err := c.getJSON(ctx, "/auth/user/friends?offline=false", &friends); err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

// GetUser fetches a full user record by ID.
func (c *Client) GetUser(ctx context.Context, userID string) (*proto.User, error) {
	var user proto.User
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(userID), &user); err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return &user, nil
}

// GetInstance fetches an instance record by its location string
// ("wrld_xxx:12345~...").
func (c *Client) GetInstance(ctx context.Context, instanceID string) (*proto.Instance, error) {
	var inst proto.Instance
	if err := c.getJSON(ctx, "/instances/"+url.PathEscape(instanceID), &inst); err != nil {
		return nil, fmt.Errorf("get instance %s: %w", instanceID, err)
	}
	return &inst, nil
}

// GetCurrentUser fetches the logged-in user's own record.
func (c *Client) GetCurrentUser(ctx context.Context) (*proto.User, error) {
	var user proto.User
	if err := c.getJSON(ctx, "/auth/user", &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return &user, nil
}

// GetNotifications fetches pending notifications (missed while offline).
func (c *Client) GetNotifications(ctx context.Context) ([]proto.Notification, error) {
	var notifs []proto.Notification
	if err := c.getJSON(ctx, "/auth/user/notifications", &notifs); err != nil {
		return nil, fmt.Errorf("get notifications: %w", err)
	}
	return notifs, nil
}
