package model

import (
	"encoding/json"
	"strings"
	"time"
)

type Message struct {
	ID              ID        `json:"id"`
	SenderID        ID        `json:"senderId"`
	SenderFirstname string    `json:"senderFirstname,omitempty"`
	SenderLastname  string    `json:"senderLastname,omitempty"`
	SenderEmail     string    `json:"senderEmail,omitempty"`
	ProjectID       ID        `json:"projectId"`
	ProjectName     string    `json:"projectName,omitempty"`
	Content         string    `json:"content"`
	SentAt          Timestamp `json:"sentAt"`
	IsRead          bool      `json:"isRead"`
}

func (m Message) SenderName() string {
	name := strings.TrimSpace(m.SenderFirstname + " " + m.SenderLastname)
	if name == "" {
		return strings.TrimSpace(m.SenderEmail)
	}
	return name
}

// UnmarshalJSON also accepts "read", which is how some backend builds serialize isRead.
func (m *Message) UnmarshalJSON(b []byte) error {
	type alias Message
	var w struct {
		alias
		Read *bool `json:"read"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message(w.alias)
	if w.Read != nil && !m.IsRead {
		m.IsRead = *w.Read
	}
	return nil
}

// Timestamp parses the backend's zone-less local date-times as well as RFC 3339.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		v, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = v
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Push event names.
const (
	EventNewMessage            = "newMessage"
	EventProjectUnreadCount    = "projectUnreadCountUpdate"
	EventNewInvitation         = "newInvitation"
	EventMessagesRead          = "messagesReadUpdate"
	EventConnectionEstablished = "connection-established"
)

type UnreadCountUpdate struct {
	ProjectID ID  `json:"projectId"`
	Count     int `json:"count"`
}

type MessagesReadUpdate struct {
	ProjectID ID `json:"projectId"`
}
