// Package messagesapi is the HTTP client for the messaging backend.
package messagesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tenantry/tenantry/internal/models"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10

	CodeRateLimited = "RATE_LIMITED"
)

// APIError captures a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter string
	URL        string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("messagesapi: unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("messagesapi: status %d from %s: %s", e.StatusCode, e.URL, e.Message)
}

func (e *APIError) HTTPStatusCode() int { return e.StatusCode }

func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.Code == CodeRateLimited
}

func (e *APIError) RetryAfterValue() string { return e.RetryAfter }

type errorBody struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter *int   `json:"retryAfter"`
}

// Client calls the messages routes with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("messagesapi: base url must not be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("messagesapi: parse base url: %w", err)
	}
	c := &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return c.baseURL + "/api/messages/" + strings.Join(escaped, "/")
}

func (c *Client) ListMessages(ctx context.Context, peerID string) ([]models.Message, error) {
	if strings.TrimSpace(peerID) == "" {
		return nil, errors.New("messagesapi: peer id must not be empty")
	}
	var payload struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint(peerID), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, input models.SendMessageInput) (*models.Message, error) {
	var payload struct {
		Message *models.Message `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/messages", input, &payload); err != nil {
		return nil, err
	}
	if payload.Message == nil {
		return nil, errors.New("messagesapi: send response has no message")
	}
	return payload.Message, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var payload struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint("conversations"), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Conversations, nil
}

func (c *Client) MarkRead(ctx context.Context, peerID string) error {
	return c.do(ctx, http.MethodPut, c.endpoint("read", peerID), nil, nil)
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var payload struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, c.endpoint("unread-count"), nil, &payload); err != nil {
		return 0, err
	}
	return payload.Count, nil
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("messagesapi: marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("messagesapi: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messagesapi: %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeError(resp, target)
		c.logger.Debug("messages api error",
			zap.String("method", method),
			zap.String("url", target),
			zap.Int("status", apiErr.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("messagesapi: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response, target string) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: strings.TrimSpace(resp.Header.Get("Retry-After")),
		URL:        target,
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		if apiErr.RetryAfter == "" && body.RetryAfter != nil {
			apiErr.RetryAfter = fmt.Sprintf("%d", *body.RetryAfter)
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
