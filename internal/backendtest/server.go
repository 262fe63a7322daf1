// Package backendtest runs an in-memory fake of the backend's REST and SSE surface for tests.
package backendtest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"sprintdesk/internal/model"

	"github.com/gin-gonic/gin"
)

// Request is one recorded call, with the /api prefix stripped from Path.
type Request struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

type failure struct {
	status  int
	message string
	times   int
}

type frame struct {
	event   string
	data    any
	comment bool
	end     bool
}

// Server is a fake backend. Its zero state has no tasks, messages or unread counts.
type Server struct {
	*httptest.Server

	// Token, when set, is required as the bearer token and as the SSE token parameter.
	Token string

	mu       sync.Mutex
	tasks    []model.Task
	messages []model.Message
	unread   map[string]int
	requests []Request
	failures map[string]*failure
	subs     map[chan frame]struct{}
	nextID   int

	done      chan struct{}
	closeOnce sync.Once
}

// New starts a server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		unread:   map[string]int{},
		failures: map[string]*failure{},
		subs:     map[chan frame]struct{}{},
		nextID:   1000,
		done:     make(chan struct{}),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// APIURL returns the REST base URL, ending in /api.
func (s *Server) APIURL() string { return s.Server.URL + "/api" }

// Close stops open push streams and the HTTP server.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.Server.CloseClientConnections()
		s.Server.Close()
	})
}

func (s *Server) routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.injectFailures)

	api := r.Group("/api")
	api.GET("/sse/subscribe", s.subscribe)

	authed := api.Group("", s.auth)
	authed.GET("/projects/:project/sprints/:sprint/tasks", s.listTasks)
	authed.POST("/tasks", s.createTask)
	authed.PUT("/tasks/:id", s.updateTask)
	authed.DELETE("/tasks/:id", s.deleteTask)
	authed.POST("/tasks/:id/subtasks", s.createSubtask)
	authed.PUT("/subtasks/:id/status", s.updateSubtaskStatus)
	authed.DELETE("/subtasks/:id", s.deleteSubtask)
	authed.GET("/messages/count/unread-per-project", s.unreadPerProject)
	authed.GET("/messages/project/:project", s.projectMessages)
	authed.PUT("/messages/project/:project/mark-as-read", s.markRead)
	authed.POST("/messages", s.sendMessage)
	return r
}

func (s *Server) record(c *gin.Context) {
	var body []byte
	if c.Request.Body != nil {
		body, _ = io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(strings.NewReader(string(body)))
	}
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: c.Request.Method,
		Path:   strings.TrimPrefix(c.Request.URL.Path, "/api"),
		Body:   string(body),
		Header: c.Request.Header.Clone(),
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) injectFailures(c *gin.Context) {
	key := c.Request.Method + " " + strings.TrimPrefix(c.Request.URL.Path, "/api")
	s.mu.Lock()
	f, ok := s.failures[key]
	if ok {
		if f.times > 0 {
			f.times--
			if f.times == 0 {
				delete(s.failures, key)
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		c.Next()
		return
	}
	if f.message == "" {
		c.AbortWithStatus(f.status)
		return
	}
	c.AbortWithStatusJSON(f.status, gin.H{"message": f.message})
}

func (s *Server) auth(c *gin.Context) {
	if s.Token == "" {
		c.Next()
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+s.Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Non authentifié"})
		return
	}
	c.Next()
}

// Fail makes the next times requests to "METHOD /path" fail with status; times <= 0 means
// until cleared. An empty message sends no body.
func (s *Server) Fail(method, path string, status int, message string, times int) {
	s.mu.Lock()
	s.failures[method+" "+path] = &failure{status: status, message: message, times: times}
	s.mu.Unlock()
}

// Requests returns recorded calls, optionally filtered by "METHOD /path".
func (s *Server) Requests(filter ...string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if len(filter) > 0 && r.Method+" "+r.Path != filter[0] {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Server) id() model.ID {
	s.nextID++
	return model.ID(strconv.Itoa(s.nextID))
}

// AddTask stores t, assigning ids to it and its subtasks when missing.
func (s *Server) AddTask(t model.Task) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = s.id()
	}
	for i := range t.Subtasks {
		if t.Subtasks[i].ID.IsZero() {
			t.Subtasks[i].ID = s.id()
		}
	}
	s.tasks = append(s.tasks, t.Clone())
	return t
}

func (s *Server) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneTasks(s.tasks)
}

// AddMessage stores m as history without pushing it.
func (s *Server) AddMessage(m model.Message) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID.IsZero() {
		m.ID = s.id()
	}
	if m.SentAt.IsZero() {
		m.SentAt = model.Timestamp{Time: time.Now().UTC().Truncate(time.Second)}
	}
	s.messages = append(s.messages, m)
	return m
}

func (s *Server) SetUnread(projectID model.ID, count int) {
	s.mu.Lock()
	s.unread[projectID.String()] = count
	s.mu.Unlock()
}

func (s *Server) taskIndex(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID.String() == id {
			return i
		}
	}
	return -1
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("%s non trouvée", what)})
}
