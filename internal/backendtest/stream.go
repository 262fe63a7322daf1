package backendtest

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"sprintdesk/internal/model"

	"github.com/gin-gonic/gin"
)

func (s *Server) subscribe(c *gin.Context) {
	if s.Token != "" && c.Query("token") != s.Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token invalide"})
		return
	}

	ch := make(chan frame, 64)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent(model.EventConnectionEstablished, "Connexion SSE établie")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case f := <-ch:
			if f.end {
				return false
			}
			if f.comment {
				fmt.Fprint(w, ":heartbeat\n\n")
				return true
			}
			c.SSEvent(f.event, f.data)
			return true
		case <-c.Request.Context().Done():
			return false
		case <-s.done:
			return false
		}
	})
}

// Push sends an event to every open stream. Non-string data is JSON-encoded.
func (s *Server) Push(event string, data any) {
	s.broadcast(frame{event: event, data: data})
}

// Heartbeat sends a comment frame to every open stream.
func (s *Server) Heartbeat() {
	s.broadcast(frame{comment: true})
}

// EndStreams finishes every open stream cleanly, as a server restart would.
func (s *Server) EndStreams() {
	s.broadcast(frame{end: true})
}

func (s *Server) broadcast(f frame) {
	s.mu.Lock()
	subs := make([]chan frame, 0, len(s.subs))
	for ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- f:
		case <-s.done:
			return
		}
	}
}

// Subscribers returns the number of open push streams.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// WaitSubscribers blocks until at least n streams are open or the timeout passes.
func (s *Server) WaitSubscribers(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Subscribers() >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s.Subscribers() >= n
}
