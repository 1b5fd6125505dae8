// Package chatsync keeps one open conversation in sync between the
// authoritative message history served over HTTP and messages pushed live
// over the session's event stream.
package chatsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	API           MessagesAPI
	Push          PushChannel
	CurrentUserID string
	Logger        *zap.Logger

	// TickInterval drives the send cooldown. Defaults to one second.
	TickInterval time.Duration
}

// Client wires the store, selector, ingestor and sender for one session.
type Client struct {
	store    *Store
	selector *Selector
	ingestor *Ingestor
	sender   *Sender
	userID   string
	tick     time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) (*Client, error) {
	if opts.API == nil {
		return nil, errors.New("chatsync: messages api is required")
	}
	if opts.CurrentUserID == "" {
		return nil, errors.New("chatsync: current user id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tick := opts.TickInterval
	if tick <= 0 {
		tick = time.Second
	}

	store := NewStore()
	selector := NewSelector(store, opts.API, opts.Push, logger)
	return &Client{
		store:    store,
		selector: selector,
		ingestor: NewIngestor(store, opts.Push, opts.CurrentUserID, logger),
		sender:   NewSender(opts.API, store, selector, logger),
		userID:   opts.CurrentUserID,
		tick:     tick,
		logger:   logger,
	}, nil
}

// Start subscribes to live events and starts the cooldown ticker.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	c.ingestor.Start()
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	go func() {
		defer close(done)
		c.sender.RunCooldown(runCtx, c.tick)
	}()
}

func (c *Client) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	c.ingestor.Stop()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Client) SelectConversation(ctx context.Context, peerID string) error {
	return c.selector.Select(ctx, peerID)
}

func (c *Client) Send(ctx context.Context, content string) error {
	return c.sender.Send(ctx, content)
}

// View returns the merged, ordered message list of the open conversation.
func (c *Client) View() ([]ViewMessage, error) {
	_, history, live := c.store.Snapshot()
	merged, err := MergedView(history, live)
	if err != nil {
		return nil, err
	}
	return annotate(merged, c.userID), nil
}

func (c *Client) RefreshConversations(ctx context.Context) error {
	return c.selector.RefreshConversations(ctx)
}

func (c *Client) RefreshUnread(ctx context.Context) error {
	return c.selector.RefreshUnread(ctx)
}

func (c *Client) Changes() <-chan struct{} { return c.store.Changes() }

func (c *Client) Store() *Store { return c.store }

func (c *Client) Sender() *Sender { return c.sender }

func (c *Client) CurrentUserID() string { return c.userID }
