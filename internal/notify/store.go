// Package notify caches per-project unread counts and message threads fed by the push
// channel, plus the pending-invitation flag.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"sprintdesk/internal/board"
	"sprintdesk/internal/model"
	"sprintdesk/internal/push"

	"golang.org/x/sync/singleflight"
)

// Backend is the message surface of the REST backend.
type Backend interface {
	UnreadCounts(ctx context.Context) (map[model.ID]int, error)
	ProjectMessages(ctx context.Context, projectID model.ID) ([]model.Message, error)
	MarkProjectRead(ctx context.Context, projectID model.ID) error
	SendMessage(ctx context.Context, msg model.SendMessage) (model.Message, error)
}

// LoadState tracks whether a project's history has been fetched this session.
type LoadState int

const (
	NotRequested LoadState = iota
	Loading
	Loaded
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "not-requested"
	}
}

// FetchError reports a failed counts or history fetch. Stored state is unchanged.
type FetchError struct {
	ProjectID model.ID
	Err       error
}

func (e FetchError) Error() string {
	if e.ProjectID.IsZero() {
		return "load unread counts: " + board.UserMessage(e.Err, "Impossible de charger les notifications.")
	}
	return fmt.Sprintf("load messages (project %s): %s", e.ProjectID,
		board.UserMessage(e.Err, "Impossible de charger les messages du projet."))
}

func (e FetchError) Unwrap() error { return e.Err }

type Store struct {
	backend Backend
	logger  *slog.Logger
	group   singleflight.Group

	mu         sync.Mutex
	counts     map[model.ID]int
	messages   map[model.ID][]model.Message
	states     map[model.ID]LoadState
	invitation bool
	gen        int
	unsubs     []func()
	observers  []func()
}

func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:  backend,
		logger:   logger.With(slog.String("component", "notify")),
		counts:   map[model.ID]int{},
		messages: map[model.ID][]model.Message{},
		states:   map[model.ID]LoadState{},
	}
}

// OnChange registers fn to be called after every state change, without the store's lock held.
func (s *Store) OnChange(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.Lock()
	obs := append([]func(){}, s.observers...)
	s.mu.Unlock()
	for _, fn := range obs {
		fn()
	}
}

// Attach wires the push appliers to bus. It replaces any previous attachment.
func (s *Store) Attach(bus push.Bus) {
	unsubs := []func(){
		push.On(bus, model.EventNewMessage, s.AddMessage),
		push.On(bus, model.EventProjectUnreadCount, s.SetUnreadCount),
		push.OnSignal(bus, model.EventNewInvitation, s.MarkNewInvitation),
		push.On(bus, model.EventMessagesRead, func(u model.MessagesReadUpdate) { s.MarkProjectRead(u.ProjectID) }),
	}
	s.mu.Lock()
	old := s.unsubs
	s.unsubs = unsubs
	s.mu.Unlock()
	for _, fn := range old {
		fn()
	}
}

// Detach removes the push appliers.
func (s *Store) Detach() {
	s.mu.Lock()
	old := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, fn := range old {
		fn()
	}
}

// LoadInitialCounts replaces all unread counts with the backend's.
func (s *Store) LoadInitialCounts(ctx context.Context) error {
	counts, err := s.backend.UnreadCounts(ctx)
	if err != nil {
		s.logger.Error("load unread counts failed", slog.String("error", err.Error()))
		return FetchError{Err: err}
	}
	next := make(map[model.ID]int, len(counts))
	for id, n := range counts {
		next[id] = clampCount(n)
	}
	s.mu.Lock()
	s.counts = next
	s.mu.Unlock()
	s.notify()
	return nil
}

// LoadMessagesForProject fetches a project's history at most once per session and returns the
// project's messages. Concurrent callers share one request. Messages pushed before the history
// arrived are kept after it.
func (s *Store) LoadMessagesForProject(ctx context.Context, projectID model.ID) ([]model.Message, error) {
	if projectID.IsZero() {
		return nil, board.ValidationError{Field: "projectId", Reason: "must not be empty"}
	}
	s.mu.Lock()
	if s.states[projectID] == Loaded {
		out := cloneMessages(s.messages[projectID])
		s.mu.Unlock()
		return out, nil
	}
	s.states[projectID] = Loading
	gen := s.gen
	s.mu.Unlock()
	s.notify()

	// The fetch is detached from the starting caller's cancellation; each caller waits on
	// its own ctx.
	flight := s.group.DoChan(projectID.String(), func() (any, error) {
		history, err := s.backend.ProjectMessages(context.WithoutCancel(ctx), projectID)
		s.mu.Lock()
		if err != nil {
			if gen == s.gen && s.states[projectID] == Loading {
				delete(s.states, projectID)
			}
			s.mu.Unlock()
			s.logger.Error("load project messages failed",
				slog.String("project", projectID.String()),
				slog.String("error", err.Error()))
			s.notify()
			return nil, err
		}
		if gen != s.gen {
			s.mu.Unlock()
			return history, nil
		}
		if s.states[projectID] != Loaded {
			s.messages[projectID] = mergeHistory(history, s.messages[projectID])
			s.states[projectID] = Loaded
		}
		out := cloneMessages(s.messages[projectID])
		s.mu.Unlock()
		s.notify()
		return out, nil
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			s.mu.Lock()
			if gen == s.gen && s.states[projectID] == Loading {
				delete(s.states, projectID)
			}
			s.mu.Unlock()
			return nil, FetchError{ProjectID: projectID, Err: res.Err}
		}
		return cloneMessages(res.Val.([]model.Message)), nil
	case <-ctx.Done():
		return nil, FetchError{ProjectID: projectID, Err: ctx.Err()}
	}
}

// mergeHistory returns history followed by the pushed messages it does not contain. When ids
// repeat, the first occurrence wins.
func mergeHistory(history, pushed []model.Message) []model.Message {
	out := make([]model.Message, 0, len(history)+len(pushed))
	seen := make(map[model.ID]bool, len(history)+len(pushed))
	for _, list := range [][]model.Message{history, pushed} {
		for _, m := range list {
			if !m.ID.IsZero() && seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	return out
}

// AddMessage stores a pushed message unless its id is already known for the project.
func (s *Store) AddMessage(m model.Message) {
	if m.ProjectID.IsZero() {
		s.logger.Warn("pushed message without project", slog.String("message", m.ID.String()))
		return
	}
	s.mu.Lock()
	list := s.messages[m.ProjectID]
	if !m.ID.IsZero() {
		for _, existing := range list {
			if existing.ID == m.ID {
				s.mu.Unlock()
				return
			}
		}
	}
	s.messages[m.ProjectID] = append(list, m)
	s.mu.Unlock()
	s.notify()
}

// SetUnreadCount stores the server's count for a project; the last update wins.
func (s *Store) SetUnreadCount(u model.UnreadCountUpdate) {
	if u.ProjectID.IsZero() {
		s.logger.Warn("unread count without project")
		return
	}
	s.mu.Lock()
	s.counts[u.ProjectID] = clampCount(u.Count)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) MarkNewInvitation() {
	s.mu.Lock()
	s.invitation = true
	s.mu.Unlock()
	s.notify()
}

func (s *Store) ClearNewInvitation() {
	s.mu.Lock()
	s.invitation = false
	s.mu.Unlock()
	s.notify()
}

func (s *Store) HasNewInvitation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invitation
}

// MarkProjectRead flags every cached message of projectID as read. Counts are left alone.
func (s *Store) MarkProjectRead(projectID model.ID) {
	s.mu.Lock()
	list := s.messages[projectID]
	if len(list) > 0 {
		next := make([]model.Message, len(list))
		for i, m := range list {
			m.IsRead = true
			next[i] = m
		}
		s.messages[projectID] = next
	}
	s.mu.Unlock()
	s.notify()
}

// MarkRead asks the backend to mark a project's messages as read. The store changes when
// the resulting push events arrive.
func (s *Store) MarkRead(ctx context.Context, projectID model.ID) error {
	if projectID.IsZero() {
		return board.ValidationError{Field: "projectId", Reason: "must not be empty"}
	}
	if err := s.backend.MarkProjectRead(ctx, projectID); err != nil {
		s.logger.Error("mark read failed", slog.String("project", projectID.String()), slog.String("error", err.Error()))
		return board.MutationError{Op: board.OpMarkRead, Err: err}
	}
	return nil
}

// Send posts a message to a project. The message itself comes back through the push channel.
func (s *Store) Send(ctx context.Context, projectID model.ID, content string) (model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Message{}, board.ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if projectID.IsZero() {
		return model.Message{}, board.ValidationError{Field: "projectId", Reason: "must not be empty"}
	}
	m, err := s.backend.SendMessage(ctx, model.SendMessage{ProjectID: projectID, Content: content})
	if err != nil {
		s.logger.Error("send message failed", slog.String("project", projectID.String()), slog.String("error", err.Error()))
		return model.Message{}, board.MutationError{Op: board.OpSendMessage, Err: err}
	}
	return m, nil
}

func (s *Store) UnreadCount(projectID model.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[projectID]
}

// UnreadCounts returns a copy of the per-project counts.
func (s *Store) UnreadCounts() map[model.ID]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.ID]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// TotalUnread is the sum of the stored per-project counts.
func (s *Store) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.counts {
		total += n
	}
	return total
}

// Projects returns every project id with a count or cached messages, sorted.
func (s *Store) Projects() []model.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[model.ID]bool{}
	for id := range s.counts {
		seen[id] = true
	}
	for id := range s.messages {
		seen[id] = true
	}
	out := make([]model.ID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i], out[j]) })
	return out
}

// Messages returns a copy of the cached messages of a project, in arrival order.
func (s *Store) Messages(projectID model.ID) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages[projectID])
}

func (s *Store) LoadState(projectID model.ID) LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[projectID]
}

// Reset clears everything. Fetches still in flight are discarded when they return.
func (s *Store) Reset() {
	s.mu.Lock()
	s.counts = map[model.ID]int{}
	s.messages = map[model.ID][]model.Message{}
	s.states = map[model.ID]LoadState{}
	s.invitation = false
	s.gen++
	s.mu.Unlock()
	s.notify()
}

func cloneMessages(in []model.Message) []model.Message {
	out := make([]model.Message, len(in))
	copy(out, in)
	return out
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// lessID orders numeric ids numerically and everything else lexically.
func lessID(a, b model.ID) bool {
	as, bs := a.String(), b.String()
	if len(as) != len(bs) && isDigits(as) && isDigits(bs) {
		return len(as) < len(bs)
	}
	return as < bs
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
