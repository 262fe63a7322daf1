// Package push holds the session's single server-sent-events subscription and fans its
// events out to typed handlers.
package push

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sprintdesk/internal/model"

	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"
)

// Handler receives one event's raw data. A returned error is logged and the stream continues.
type Handler func(data []byte) error

// Bus is the subscription side of a Channel.
type Bus interface {
	Subscribe(name string, h Handler) (unsubscribe func())
}

// State is the connection state of a Channel.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "closed"
	}
}

// ChannelError describes an event that could not be handled, or a refused connection.
type ChannelError struct {
	Event string
	Err   error
}

func (e ChannelError) Error() string {
	if e.Event == "" {
		return "push: " + e.Err.Error()
	}
	return fmt.Sprintf("push %s: %s", e.Event, e.Err)
}

func (e ChannelError) Unwrap() error { return e.Err }

type subscription struct {
	id int
	fn Handler
}

// Channel is one SSE subscription. Exactly one should exist per session.
type Channel struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	minDelay   time.Duration
	maxDelay   time.Duration

	mu       sync.Mutex
	handlers map[string][]subscription
	nextID   int
	gen      int
	cancel   context.CancelFunc
	done     chan struct{}
	state    State
	lastErr  error
	dropped  int
	watchers []func(State)
}

type Option func(*Channel)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Channel) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithReconnectDelay bounds the delay between reconnect attempts.
func WithReconnectDelay(initial, limit time.Duration) Option {
	return func(c *Channel) {
		if initial > 0 {
			c.minDelay = initial
		}
		if limit >= c.minDelay {
			c.maxDelay = limit
		}
	}
}

// New returns a closed channel for the subscribe endpoint at rawURL.
func New(rawURL string, opts ...Option) *Channel {
	c := &Channel{
		url:        rawURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		minDelay:   500 * time.Millisecond,
		maxDelay:   30 * time.Second,
		handlers:   map[string][]subscription{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "push"))
	return c
}

// Subscribe registers h for events named name. Handlers run in stream order on the channel's
// goroutine and should only do synchronous state updates.
func (c *Channel) Subscribe(name string, h Handler) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[name] = append(c.handlers[name], subscription{id: id, fn: h})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			subs := c.handlers[name]
			for i := range subs {
				if subs[i].id == id {
					c.handlers[name] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// OnState registers fn to be called on every connection state change.
func (c *Channel) OnState(fn func(State)) {
	c.mu.Lock()
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Dropped returns how many handler invocations failed since the channel was created.
func (c *Channel) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Err returns the last connection error, if any.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Channel) setState(gen int, s State, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	changed := c.state != s
	c.state = s
	if err != nil {
		c.lastErr = err
	}
	watchers := append([]func(State){}, c.watchers...)
	c.mu.Unlock()
	if changed {
		for _, fn := range watchers {
			fn(s)
		}
	}
}

// Open starts the subscription. Calling Open on an open channel does nothing.
func (c *Channel) Open(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ChannelError{Err: fmt.Errorf("missing session token")}
	}
	streamURL, err := withToken(c.url, token)
	if err != nil {
		return ChannelError{Err: err}
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.lastErr = nil
	c.mu.Unlock()

	// Reset on every accepted connection; no elapsed-time limit.
	schedule := backoff.NewExponentialBackOff()
	schedule.InitialInterval = c.minDelay
	schedule.MaxInterval = c.maxDelay
	schedule.MaxElapsedTime = 0
	strategy := backoff.WithContext(schedule, ctx)

	client := sse.NewClient(streamURL)
	client.Connection = c.httpClient
	client.Headers = map[string]string{"Cache-Control": "no-cache"}
	client.ReconnectStrategy = strategy
	client.ReconnectNotify = func(err error, next time.Duration) {
		c.logger.Warn("push stream dropped; reconnecting", slog.String("error", err.Error()), slog.Duration("in", next))
		c.setState(gen, StateConnecting, err)
	}
	client.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode == http.StatusOK {
			schedule.Reset()
			return nil
		}
		resp.Body.Close()
		err := fmt.Errorf("subscribe refused: %s", resp.Status)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return backoff.Permanent(err)
		}
		return err
	}
	client.OnConnect(func(*sse.Client) {
		c.logger.Info("push stream connected")
		c.setState(gen, StateConnected, nil)
	})
	client.OnDisconnect(func(*sse.Client) {
		c.setState(gen, StateConnecting, nil)
	})

	c.setState(gen, StateConnecting, nil)
	go func() {
		defer close(done)
		c.run(ctx, gen, client, strategy)
		c.mu.Lock()
		if gen == c.gen {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}()
	return nil
}

// run keeps the subscription alive until ctx ends. The sse client reconnects after stream
// errors by itself; a stream the server ends cleanly is resubscribed here on the same schedule.
func (c *Channel) run(ctx context.Context, gen int, client *sse.Client, strategy backoff.BackOff) {
	handler := func(msg *sse.Event) {
		if ctx.Err() != nil {
			return
		}
		c.Deliver(string(msg.Event), msg.Data)
	}
	for {
		err := client.SubscribeRawWithContext(ctx, handler)
		if ctx.Err() != nil {
			c.setState(gen, StateClosed, nil)
			return
		}
		if err != nil {
			cerr := ChannelError{Err: err}
			c.logger.Error("push stream stopped", slog.String("error", cerr.Error()))
			c.setState(gen, StateClosed, cerr)
			return
		}
		delay := strategy.NextBackOff()
		if delay == backoff.Stop {
			c.setState(gen, StateClosed, nil)
			return
		}
		c.logger.Info("push stream ended by server; resubscribing", slog.Duration("in", delay))
		c.setState(gen, StateConnecting, nil)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.setState(gen, StateClosed, nil)
			return
		}
	}
}

// Close stops the subscription. The stream goroutine exits in the background; Done reports it.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancel
	gen := c.gen
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	c.setState(gen, StateClosed, nil)
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
}

// Done is closed when the most recently opened stream goroutine has exited.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

// Deliver dispatches one event to its handlers as if it had arrived on the stream.
func (c *Channel) Deliver(name string, data []byte) {
	if name == "" {
		name = "message"
	}
	if name == model.EventConnectionEstablished {
		return
	}
	c.mu.Lock()
	subs := append([]subscription(nil), c.handlers[name]...)
	c.mu.Unlock()
	if len(subs) == 0 {
		c.logger.Debug("push event without handler", slog.String("event", name))
		return
	}
	for _, s := range subs {
		if err := c.call(s.fn, data); err != nil {
			cerr := ChannelError{Event: name, Err: err}
			c.mu.Lock()
			c.dropped++
			c.mu.Unlock()
			c.logger.Warn("push event dropped", slog.String("error", cerr.Error()))
		}
	}
}

func (c *Channel) call(fn Handler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(data)
}

func withToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse push url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
