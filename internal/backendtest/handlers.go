package backendtest

import (
	"net/http"
	"time"

	"sprintdesk/internal/model"

	"github.com/gin-gonic/gin"
)

func (s *Server) listTasks(c *gin.Context) {
	sprint := c.Param("sprint")
	s.mu.Lock()
	out := make([]model.Task, 0)
	for _, t := range s.tasks {
		if t.SprintID.IsZero() || t.SprintID.String() == sprint {
			out = append(out, t.Clone())
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) createTask(c *gin.Context) {
	var d model.TaskDraft
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if d.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Le titre est obligatoire"})
		return
	}
	s.mu.Lock()
	t := model.Task{
		ID:                  s.id(),
		Title:               d.Title,
		Description:         d.Description,
		Status:              d.Status,
		SprintID:            d.SprintID,
		AssignedUserID:      d.AssignedUserID,
		PrerequisiteTaskIDs: d.PrerequisiteTaskIDs,
	}
	if t.Status == "" {
		t.Status = model.ColumnTodo
	}
	for _, st := range d.Subtasks {
		st.ID = s.id()
		t.Subtasks = append(t.Subtasks, st)
	}
	s.tasks = append(s.tasks, t.Clone())
	s.mu.Unlock()
	c.JSON(http.StatusCreated, t)
}

func (s *Server) updateTask(c *gin.Context) {
	var p model.TaskPatch
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(c.Param("id"))
	if i < 0 {
		notFound(c, "Tâche")
		return
	}
	t := &s.tasks[i]
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.AssignedUserID != nil {
		t.AssignedUserID = *p.AssignedUserID
	}
	if p.Subtasks != nil {
		subs := make([]model.Subtask, 0, len(*p.Subtasks))
		for _, st := range *p.Subtasks {
			if st.ID.IsZero() {
				st.ID = s.id()
			}
			subs = append(subs, st)
		}
		t.Subtasks = subs
	}
	if p.PrerequisiteTaskIDs != nil {
		t.PrerequisiteTaskIDs = append([]model.ID(nil), (*p.PrerequisiteTaskIDs)...)
	}
	c.JSON(http.StatusOK, t.Clone())
}

func (s *Server) deleteTask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(c.Param("id"))
	if i < 0 {
		notFound(c, "Tâche")
		return
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	c.Status(http.StatusNoContent)
}

func (s *Server) createSubtask(c *gin.Context) {
	var body struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Le titre est obligatoire"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(c.Param("id"))
	if i < 0 {
		notFound(c, "Tâche")
		return
	}
	st := model.Subtask{ID: s.id(), Title: body.Title}
	s.tasks[i].Subtasks = append(s.tasks[i].Subtasks, st)
	c.JSON(http.StatusCreated, st)
}

func (s *Server) findSubtask(id string) (int, int) {
	for i := range s.tasks {
		for j := range s.tasks[i].Subtasks {
			if s.tasks[i].Subtasks[j].ID.String() == id {
				return i, j
			}
		}
	}
	return -1, -1
}

func (s *Server) updateSubtaskStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, j := s.findSubtask(c.Param("id"))
	if i < 0 {
		notFound(c, "Sous-tâche")
		return
	}
	s.tasks[i].Subtasks[j].Completed = body.Status == model.SubtaskLabelDone
	c.JSON(http.StatusOK, s.tasks[i].Subtasks[j])
}

func (s *Server) deleteSubtask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, j := s.findSubtask(c.Param("id"))
	if i < 0 {
		notFound(c, "Sous-tâche")
		return
	}
	subs := s.tasks[i].Subtasks
	s.tasks[i].Subtasks = append(subs[:j:j], subs[j+1:]...)
	c.Status(http.StatusNoContent)
}

func (s *Server) unreadPerProject(c *gin.Context) {
	s.mu.Lock()
	out := make(map[string]int, len(s.unread))
	for k, v := range s.unread {
		out[k] = v
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) projectMessages(c *gin.Context) {
	project := c.Param("project")
	s.mu.Lock()
	out := make([]model.Message, 0)
	for _, m := range s.messages {
		if m.ProjectID.String() == project {
			out = append(out, m)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) markRead(c *gin.Context) {
	project := model.ID(c.Param("project"))
	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ProjectID == project {
			s.messages[i].IsRead = true
		}
	}
	s.unread[project.String()] = 0
	s.mu.Unlock()
	c.Status(http.StatusOK)

	s.Push(model.EventMessagesRead, model.MessagesReadUpdate{ProjectID: project})
	s.Push(model.EventProjectUnreadCount, model.UnreadCountUpdate{ProjectID: project, Count: 0})
}

func (s *Server) sendMessage(c *gin.Context) {
	var in model.SendMessage
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if in.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Le message ne peut pas être vide"})
		return
	}
	s.mu.Lock()
	m := model.Message{
		ID:              s.id(),
		SenderID:        "1",
		SenderFirstname: "Test",
		SenderLastname:  "User",
		ProjectID:       in.ProjectID,
		Content:         in.Content,
		SentAt:          model.Timestamp{Time: time.Now().UTC().Truncate(time.Second)},
	}
	s.messages = append(s.messages, m)
	s.mu.Unlock()
	c.JSON(http.StatusCreated, m)

	s.Push(model.EventNewMessage, m)
}
