package api

import (
	"context"
	"net/http"

	"sprintdesk/internal/model"
)

// UnreadCounts returns the unread message count per project id.
func (c *Client) UnreadCounts(ctx context.Context) (map[model.ID]int, error) {
	var raw map[string]int
	if err := c.get(ctx, "/messages/count/unread-per-project", &raw); err != nil {
		return nil, err
	}
	out := make(map[model.ID]int, len(raw))
	for k, v := range raw {
		out[model.ID(k)] = v
	}
	return out, nil
}

func (c *Client) ProjectMessages(ctx context.Context, projectID model.ID) ([]model.Message, error) {
	var out []model.Message
	if err := c.get(ctx, pathf("/messages/project/%s", projectID.String()), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Message{}
	}
	return out, nil
}

func (c *Client) MarkProjectRead(ctx context.Context, projectID model.ID) error {
	return c.do(ctx, http.MethodPut, pathf("/messages/project/%s/mark-as-read", projectID.String()), nil, nil)
}

// SendMessage posts a message. The stored message comes back, and is also pushed to every
// project member.
func (c *Client) SendMessage(ctx context.Context, msg model.SendMessage) (model.Message, error) {
	var out model.Message
	err := c.do(ctx, http.MethodPost, "/messages", msg, &out)
	return out, err
}
