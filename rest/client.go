// Package rest talks to the fleet server's notification endpoints.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/types"
)

const (
	PathRecentNotifications = "/recent-notifications"
	PathMarkRead            = "/notifications/mark-read"
	PathMarkAllRead         = "/notifications/mark-all-read"

	HeaderCSRFToken = "X-CSRF-Token"
	HeaderClientID  = "X-Client-ID"

	DefaultRecentLimit = 10
)

type Options struct {
	BaseURL     string // e.g. https://fleet.example.org/api
	Token       string
	CSRFToken   string
	ClientID    string
	RecentLimit int
	// ConfirmRate limits mark-read requests per second, 0 disables the limit.
	ConfirmRate int
	HTTPClient  *http.Client
}

// Client implements store.Fetcher and store.Confirmer.
type Client struct {
	baseURL     string
	token       string
	csrfToken   string
	clientID    string
	recentLimit int
	httpClient  *http.Client
	limiter     *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = tool.NewHTTPClient(false)
	}
	if opts.ClientID == "" {
		opts.ClientID = tool.NewClientID()
	}
	c := &Client{
		baseURL:     opts.BaseURL,
		token:       opts.Token,
		csrfToken:   opts.CSRFToken,
		clientID:    opts.ClientID,
		recentLimit: opts.RecentLimit,
		httpClient:  opts.HTTPClient,
	}
	if opts.ConfirmRate > 0 {
		burst := max(opts.ConfirmRate*2, 5)
		c.limiter = rate.NewLimiter(rate.Limit(opts.ConfirmRate), burst)
	}
	return c
}

func (c *Client) ClientID() string {
	return c.clientID
}

// RecentNotifications fetches the baseline. The server may answer with the
// object form or a bare array; for the latter the unread count is derived
// from the read flags.
func (c *Client) RecentNotifications(ctx context.Context) (types.RecentNotifications, error) {
	var result types.RecentNotifications

	u, err := url.Parse(c.baseURL + PathRecentNotifications)
	if err != nil {
		return result, fmt.Errorf("invalid recent-notifications URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(c.recentLimit))
	u.RawQuery = q.Encode()

	body, err := c.do(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return result, fmt.Errorf("failed to fetch recent notifications: %w", err)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return result, fmt.Errorf("recent-notifications response body is empty")
	}

	if trimmed[0] == '[' {
		var list []types.Notification
		if err := sonic.Unmarshal(trimmed, &list); err != nil {
			return result, fmt.Errorf("failed to parse recent notifications: %w", err)
		}
		result.Notifications = list
		for _, n := range list {
			if !n.Read {
				result.UnreadCount++
			}
		}
		return result, nil
	}
	if err := sonic.Unmarshal(trimmed, &result); err != nil {
		return result, fmt.Errorf("failed to parse recent notifications: %w", err)
	}
	return result, nil
}

// MarkRead asks the server to persist a single read.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	payload, err := sonic.Marshal(map[string]string{"notification_id": id})
	if err != nil {
		return fmt.Errorf("failed to marshal mark-read request: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPost, c.baseURL+PathMarkRead, payload); err != nil {
		return fmt.Errorf("failed to mark notification %s as read: %w", id, err)
	}
	return nil
}

// MarkAllRead asks the server to mark every notification read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.do(ctx, http.MethodPost, c.baseURL+PathMarkAllRead, []byte("{}")); err != nil {
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("confirmation rate limit: %w", err)
	}
	return nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

func (c *Client) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := tool.NewHTTPReqWithApplication(http.NewRequestWithContext(ctx, method, target, reader))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.csrfToken != "" {
		req.Header.Set(HeaderCSRFToken, c.csrfToken)
	}
	req.Header.Set(HeaderClientID, c.clientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Errorf("[REST] Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// try to parse error message from response body
		var errorResponse struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		msg := ""
		if len(body) > 0 && sonic.Unmarshal(body, &errorResponse) == nil {
			msg = errorResponse.Error
			if msg == "" {
				msg = errorResponse.Message
			}
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	tool.DefaultLogger.Debugf("[REST] %s %s -> %d", method, target, resp.StatusCode)
	return body, nil
}
