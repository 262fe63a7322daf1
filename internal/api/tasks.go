package api

import (
	"context"
	"net/http"

	"sprintdesk/internal/model"
)

func (c *Client) ListTasks(ctx context.Context, projectID, sprintID model.ID) ([]model.Task, error) {
	var out []model.Task
	if err := c.get(ctx, pathf("/projects/%s/sprints/%s/tasks", projectID.String(), sprintID.String()), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Task{}
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, draft model.TaskDraft) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodPost, "/tasks", draft, &out)
	return out, err
}

// UpdateTask sends only the fields set on patch.
func (c *Client) UpdateTask(ctx context.Context, taskID model.ID, patch model.TaskPatch) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodPut, pathf("/tasks/%s", taskID.String()), patch, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, taskID model.ID) error {
	return c.do(ctx, http.MethodDelete, pathf("/tasks/%s", taskID.String()), nil, nil)
}

type subtaskStatusBody struct {
	Status string `json:"status"`
}

// UpdateSubtaskStatus sends the status label the backend expects ("Fait" or "À faire").
func (c *Client) UpdateSubtaskStatus(ctx context.Context, subtaskID model.ID, completed bool) error {
	body := subtaskStatusBody{Status: model.SubtaskLabel(completed)}
	return c.do(ctx, http.MethodPut, pathf("/subtasks/%s/status", subtaskID.String()), body, nil)
}

type subtaskTitleBody struct {
	Title string `json:"title"`
}

func (c *Client) CreateSubtask(ctx context.Context, taskID model.ID, title string) (model.Subtask, error) {
	var out model.Subtask
	err := c.do(ctx, http.MethodPost, pathf("/tasks/%s/subtasks", taskID.String()), subtaskTitleBody{Title: title}, &out)
	return out, err
}

func (c *Client) DeleteSubtask(ctx context.Context, subtaskID model.ID) error {
	return c.do(ctx, http.MethodDelete, pathf("/subtasks/%s", subtaskID.String()), nil, nil)
}
