// Package session owns everything that lives from login to logout: the REST client, the single
// push channel, the notification store and the boards opened during the session.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"sprintdesk/internal/api"
	"sprintdesk/internal/board"
	"sprintdesk/internal/model"
	"sprintdesk/internal/notify"
	"sprintdesk/internal/push"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	APIURL      string
	StreamURL   string
	HTTPTimeout time.Duration
	// Prefetch lists projects whose message history is loaded by Start.
	Prefetch   []model.ID
	Logger     *slog.Logger
	HTTPClient *http.Client
	// Now is used for token expiry; nil means time.Now.
	Now func() time.Time
}

type Session struct {
	ID     string
	Token  string
	Claims Claims

	Client        *api.Client
	Channel       *push.Channel
	Notifications *notify.Store

	logger   *slog.Logger
	prefetch []model.ID

	mu     sync.Mutex
	boards []*board.Board
	closed bool
}

// New builds a session for token. Nothing is contacted until Start.
func New(opts Options, token string) (*Session, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	claims, err := ParseClaims(token, now())
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	logger = logger.With(slog.String("session", id))

	var clientOpts []api.Option
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	clientOpts = append(clientOpts, api.WithLogger(logger), api.WithTimeout(opts.HTTPTimeout))
	client := api.New(opts.APIURL, token, clientOpts...)

	streamURL := opts.StreamURL
	if streamURL == "" {
		streamURL = strings.TrimRight(opts.APIURL, "/") + "/sse/subscribe"
	}
	ch := push.New(streamURL, push.WithLogger(logger))
	store := notify.New(client, logger)
	store.Attach(ch)

	return &Session{
		ID:            id,
		Token:         token,
		Claims:        claims,
		Client:        client,
		Channel:       ch,
		Notifications: store,
		logger:        logger,
		prefetch:      append([]model.ID(nil), opts.Prefetch...),
	}, nil
}

// Start opens the push channel, then loads unread counts and prefetched project histories
// concurrently. The session stays usable when a load fails; the first error is returned.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Channel.Open(ctx, s.Token); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Notifications.LoadInitialCounts(gctx) })
	for _, p := range s.prefetch {
		g.Go(func() error {
			_, err := s.Notifications.LoadMessagesForProject(gctx, p)
			return err
		})
	}
	err := g.Wait()
	if err != nil {
		s.logger.Warn("session start incomplete", slog.String("error", err.Error()))
	}
	return err
}

// NewBoard returns a board bound to this session's client. It is reset at Close.
func (s *Session) NewBoard(projectID, sprintID model.ID) *board.Board {
	b := board.New(s.Client, projectID, sprintID, s.logger)
	s.mu.Lock()
	s.boards = append(s.boards, b)
	s.mu.Unlock()
	return b
}

// ReleaseBoard resets b and stops tracking it. Boards the session did not create are ignored.
func (s *Session) ReleaseBoard(b *board.Board) {
	if b == nil {
		return
	}
	s.mu.Lock()
	found := false
	for i, tracked := range s.boards {
		if tracked == b {
			s.boards = append(s.boards[:i:i], s.boards[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()
	if found {
		b.Reset()
	}
}

// Close tears the session down (logout). It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	boards := s.boards
	s.boards = nil
	s.mu.Unlock()

	s.Channel.Close()
	s.Notifications.Detach()
	s.Notifications.Reset()
	for _, b := range boards {
		b.Reset()
	}
	s.Client.SetToken("")
	s.logger.Info("session closed")
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
